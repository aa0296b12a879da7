// Package clipper imports recipes from web pages that publish schema.org
// Recipe metadata.
package clipper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoRecipe is returned when a page carries no Recipe metadata.
var ErrNoRecipe = errors.New("no recipe found on page")

// Recipe is the part of a schema.org Recipe used to build a meal.
type Recipe struct {
	Title        string
	Ingredients  []string
	Instructions string
	SourceURL    string
}

// Clipper handles fetching and extracting recipes from URLs.
type Clipper struct {
	httpClient *http.Client
}

// NewClipper creates a new Clipper instance.
func NewClipper() *Clipper {
	return &Clipper{httpClient: &http.Client{Timeout: 15 * time.Second}}
}

// Extract fetches url and reads the first Recipe from its JSON-LD blocks.
func (c *Clipper) Extract(ctx context.Context, url string) (Recipe, error) {
	doc, err := c.fetch(ctx, url)
	if err != nil {
		return Recipe{}, fmt.Errorf("failed to fetch content: %w", err)
	}

	var found *Recipe
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return true
		}
		if node := findRecipe(raw); node != nil {
			r := toRecipe(node)
			found = &r
			return false
		}
		return true
	})
	if found == nil || found.Title == "" {
		return Recipe{}, fmt.Errorf("%w: %s", ErrNoRecipe, url)
	}
	found.SourceURL = url
	return *found, nil
}

func (c *Clipper) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// findRecipe walks a decoded JSON-LD value: a single node, an array of
// nodes, or a node with an @graph.
func findRecipe(v any) map[string]any {
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			if r := findRecipe(item); r != nil {
				return r
			}
		}
	case map[string]any:
		if isRecipe(x["@type"]) {
			return x
		}
		if graph, ok := x["@graph"]; ok {
			return findRecipe(graph)
		}
	}
	return nil
}

func isRecipe(t any) bool {
	switch x := t.(type) {
	case string:
		return x == "Recipe"
	case []any:
		for _, item := range x {
			if s, ok := item.(string); ok && s == "Recipe" {
				return true
			}
		}
	}
	return false
}

func toRecipe(node map[string]any) Recipe {
	r := Recipe{Title: strings.TrimSpace(text(node["name"]))}
	if ings, ok := node["recipeIngredient"].([]any); ok {
		for _, ing := range ings {
			if s := strings.TrimSpace(text(ing)); s != "" {
				r.Ingredients = append(r.Ingredients, s)
			}
		}
	}
	r.Instructions = strings.Join(steps(node["recipeInstructions"]), "\n")
	return r
}

// steps flattens recipeInstructions, which may be text, a list of text,
// HowToStep nodes or HowToSection nodes.
func steps(v any) []string {
	switch x := v.(type) {
	case string:
		if s := strings.TrimSpace(x); s != "" {
			return []string{s}
		}
	case []any:
		var out []string
		for _, item := range x {
			out = append(out, steps(item)...)
		}
		return out
	case map[string]any:
		if items, ok := x["itemListElement"]; ok {
			return steps(items)
		}
		return steps(x["text"])
	}
	return nil
}

func text(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

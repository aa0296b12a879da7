package content

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// jsonObject captures the outermost {...} so prose around a JSON reply is ignored.
var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// Validator checks generator output against the embedded CUE schema.
type Validator struct{}

// NewValidator returns a Validator. It compiles the schema once to fail fast
// on a broken embed.
func NewValidator() (*Validator, error) {
	v := &Validator{}
	if _, err := v.definition(cuecontext.New(), "#MealPlan"); err != nil {
		return nil, err
	}
	return v, nil
}

// MealPlan parses raw generator output. When dates is non-empty every date
// must be covered by a day in the plan.
func (v *Validator) MealPlan(raw []byte, dates []string) Result[MealPlan] {
	body, reason := v.check(raw, "#MealPlan")
	if reason != "" {
		return Invalid[MealPlan](reason)
	}

	var plan MealPlan
	if err := json.Unmarshal(body, &plan); err != nil {
		return Invalid[MealPlan](fmt.Sprintf("decode meal plan: %v", err))
	}

	if len(dates) > 0 {
		seen := make(map[string]bool, len(plan.Days))
		for _, d := range plan.Days {
			seen[d.Date] = true
		}
		var missing []string
		for _, d := range dates {
			if !seen[d] {
				missing = append(missing, d)
			}
		}
		if len(missing) > 0 {
			return Invalid[MealPlan]("missing days: " + strings.Join(missing, ", "))
		}
	}
	return Valid(plan)
}

// PackingList parses raw generator output.
func (v *Validator) PackingList(raw []byte) Result[PackingList] {
	body, reason := v.check(raw, "#PackingList")
	if reason != "" {
		return Invalid[PackingList](reason)
	}

	var list PackingList
	if err := json.Unmarshal(body, &list); err != nil {
		return Invalid[PackingList](fmt.Sprintf("decode packing list: %v", err))
	}
	return Valid(list)
}

// check extracts the JSON object from raw and unifies it with the named
// definition. It returns the JSON body or a rejection reason.
func (v *Validator) check(raw []byte, def string) ([]byte, string) {
	body := jsonObject.Find(raw)
	if body == nil {
		return nil, "no JSON object in response"
	}
	if !json.Valid(body) {
		return nil, "response is not valid JSON"
	}

	// cue.Context is not safe for concurrent use; a context per call keeps
	// the validator shareable across requests.
	ctx := cuecontext.New()
	schema, err := v.definition(ctx, def)
	if err != nil {
		return nil, err.Error()
	}
	data := ctx.CompileBytes(body)
	if data.Err() != nil {
		return nil, "response is not valid JSON: " + errors.Details(data.Err(), nil)
	}
	if err := schema.Unify(data).Validate(cue.Concrete(true)); err != nil {
		return nil, "schema mismatch: " + firstLine(errors.Details(err, nil))
	}
	return body, ""
}

func (v *Validator) definition(ctx *cue.Context, def string) (cue.Value, error) {
	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("failed to compile content schema: %w", err)
	}
	d := schema.LookupPath(cue.ParsePath(def))
	if err := d.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("failed to find %s in content schema: %w", def, err)
	}
	return d, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

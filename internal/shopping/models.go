package shopping

import (
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidItem = errors.New("invalid item")
)

// ListType is the kind of a list.
type ListType string

const (
	Grocery ListType = "grocery"
	Packing ListType = "packing"
	Custom  ListType = "custom"
)

// ParseListType reports whether s names a known list type.
func ParseListType(s string) (ListType, bool) {
	switch t := ListType(s); t {
	case Grocery, Packing, Custom:
		return t, true
	}
	return "", false
}

// List is a grocery, packing or custom list owned by a family.
type List struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"family_id"`
	Type      ListType  `json:"type"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Item is one entry of a list. Position defines the manual order and is
// dense from 0 within a list.
type Item struct {
	ID       string `json:"id"`
	ListID   string `json:"list_id"`
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	Category string `json:"category,omitempty"`
	Checked  bool   `json:"checked"`
	Position int    `json:"position"`
}

// NewItem describes an item to insert.
type NewItem struct {
	Name     string
	Quantity string
	Category string
}

// Addition is an ingredient added to an existing list.
type Addition struct {
	Name string `json:"name"`
	Qty  string `json:"qty,omitempty"`
}

// AddResult reports how many additions became new items and how many were
// merged into existing ones.
type AddResult struct {
	ListID      string `json:"listId"`
	AddedCount  int    `json:"addedCount"`
	MergedCount int    `json:"mergedCount"`
}

// AddItemResult reports the outcome of adding one item.
type AddItemResult struct {
	Merged   bool   `json:"merged"`
	ID       string `json:"id"`
	Quantity string `json:"quantity"`
	Message  string `json:"message"`
}

// Placement moves an item to a position.
type Placement struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// ReorderResult counts applied placements. Updated < Total means some
// placements failed and the caller should re-read the list.
type ReorderResult struct {
	Updated int `json:"updated"`
	Total   int `json:"total"`
}

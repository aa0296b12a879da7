// Package store defines the record-store contract the household core is
// written against, plus an in-memory and a SQLite implementation of it.
//
// Records are addressed by collection name. There are no transactions across
// collections: every operation is atomic on its own and composite operations
// must be safe to re-run.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Collection names.
const (
	Families        = "families"
	FamilyMembers   = "family_members"
	Children        = "children"
	Subscriptions   = "subscriptions"
	Routines        = "routines"
	RoutineTaskLogs = "routine_task_logs"
	RoutineLogs     = "routine_logs"
	Meals           = "meals"
	Lists           = "lists"
	ListItems       = "list_items"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownField      = errors.New("unknown field")
	ErrEmptyFilter       = errors.New("delete many requires a filter")
)

// TimestampLayout is fixed-width so that timestamps order lexically.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Record is one row of a collection keyed by field name.
type Record map[string]any

// ID returns the record id or "".
func (r Record) ID() string {
	return AsString(r["id"])
}

// Clone returns a shallow copy; record values are scalars.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// In matches a field against any of the listed values.
type In []any

// Prefix matches string fields starting with the given value.
type Prefix string

// Filter is a conjunction of per-field conditions. A plain value means
// equality, nil means the field is unset.
type Filter map[string]any

// Order sorts by one field.
type Order struct {
	Field string
	Desc  bool
}

// Asc orders by field ascending.
func Asc(field string) Order { return Order{Field: field} }

// Desc orders by field descending.
func Desc(field string) Order { return Order{Field: field, Desc: true} }

// Query selects records from a collection. Limit <= 0 means no limit.
type Query struct {
	Where   Filter
	OrderBy []Order
	Limit   int
}

// Gateway is the generic record store.
type Gateway interface {
	List(ctx context.Context, collection string, q Query) ([]Record, error)
	Create(ctx context.Context, collection string, rec Record) (Record, error)
	Update(ctx context.Context, collection, id string, patch Record) error
	Delete(ctx context.Context, collection, id string) error
	DeleteMany(ctx context.Context, collection string, where Filter) (int, error)
}

// NewID returns a time-ordered unique id.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// First returns the first record matching where, or ErrNotFound.
func First(ctx context.Context, gw Gateway, collection string, where Filter) (Record, error) {
	recs, err := gw.List(ctx, collection, Query{Where: where, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

// Get loads a record by id, or ErrNotFound.
func Get(ctx context.Context, gw Gateway, collection, id string) (Record, error) {
	return First(ctx, gw, collection, Filter{"id": id})
}

func timestamp(now time.Time) string {
	return now.UTC().Format(TimestampLayout)
}

// prepare validates a record against the collection schema and converts its
// values to storage form.
func prepare(collection string, rec Record) (Record, error) {
	cols, err := columnsOf(collection)
	if err != nil {
		return nil, err
	}
	out := make(Record, len(rec))
	for k, v := range rec {
		if !cols.has(k) {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, collection, k)
		}
		nv, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", collection, k, err)
		}
		out[k] = nv
	}
	return out, nil
}

// stampCreate fills id and timestamps for a new record.
func stampCreate(collection string, rec Record, now time.Time) {
	cols, _ := columnsOf(collection)
	if AsString(rec["id"]) == "" {
		rec["id"] = NewID()
	}
	ts := timestamp(now)
	if cols.has("created_at") {
		if _, ok := rec["created_at"]; !ok {
			rec["created_at"] = ts
		}
	}
	if cols.has("updated_at") {
		if _, ok := rec["updated_at"]; !ok {
			rec["updated_at"] = ts
		}
	}
}

// complete adds nil for every schema column missing from rec.
func complete(collection string, rec Record) Record {
	cols, _ := columnsOf(collection)
	for _, c := range cols.names {
		if _, ok := rec[c]; !ok {
			rec[c] = nil
		}
	}
	return rec
}

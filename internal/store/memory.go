package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Gateway. It is safe for concurrent use and returns
// copies, so callers never alias stored records.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]Record
	now  func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]map[string]Record),
		now:  time.Now,
	}
}

func (m *Memory) table(collection string) map[string]Record {
	t, ok := m.data[collection]
	if !ok {
		t = make(map[string]Record)
		m.data[collection] = t
	}
	return t
}

// List returns matching records in the requested order.
func (m *Memory) List(ctx context.Context, collection string, q Query) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkQuery(collection, q); err != nil {
		return nil, err
	}

	m.mu.RLock()
	var out []Record
	for _, rec := range m.table(collection) {
		if matches(rec, q.Where) {
			out = append(out, rec.Clone())
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		for _, o := range q.OrderBy {
			c := compareValues(out[i][o.Field], out[j][o.Field])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		if len(q.OrderBy) > 0 && q.OrderBy[0].Desc {
			return out[i].ID() > out[j].ID()
		}
		return out[i].ID() < out[j].ID()
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Create stores a new record and returns it with id and timestamps set.
func (m *Memory) Create(ctx context.Context, collection string, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prepared, err := prepare(collection, rec)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stampCreate(collection, prepared, m.now())
	t := m.table(collection)
	if _, exists := t[prepared.ID()]; exists {
		return nil, fmt.Errorf("failed to create %s record %s: duplicate id", collection, prepared.ID())
	}
	if err := m.checkUnique(collection, prepared, ""); err != nil {
		return nil, err
	}
	stored := complete(collection, prepared)
	t[stored.ID()] = stored
	return stored.Clone(), nil
}

// Update merges patch into the record with the given id.
func (m *Memory) Update(ctx context.Context, collection, id string, patch Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prepared, err := prepare(collection, patch)
	if err != nil {
		return err
	}
	delete(prepared, "id")

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.table(collection)[id]
	if !ok {
		return fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	next := rec.Clone()
	for k, v := range prepared {
		next[k] = v
	}
	if cols, _ := columnsOf(collection); cols.has("updated_at") {
		if _, set := prepared["updated_at"]; !set {
			next["updated_at"] = timestamp(m.now())
		}
	}
	if err := m.checkUnique(collection, next, id); err != nil {
		return err
	}
	m.table(collection)[id] = next
	return nil
}

// Delete removes the record with the given id.
func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := columnsOf(collection); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(collection)
	if _, ok := t[id]; !ok {
		return fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	delete(t, id)
	return nil
}

// DeleteMany removes every record matching where and reports how many.
func (m *Memory) DeleteMany(ctx context.Context, collection string, where Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(where) == 0 {
		return 0, ErrEmptyFilter
	}
	if err := checkQuery(collection, Query{Where: where}); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	t := m.table(collection)
	for id, rec := range t {
		if matches(rec, where) {
			delete(t, id)
			n++
		}
	}
	return n, nil
}

// uniqueKeys mirrors the UNIQUE indexes of the SQL schema.
var uniqueKeys = map[string][]string{
	RoutineTaskLogs: {"routine_id", "task_index", "date"},
	Meals:           {"family_id", "date", "meal_type"},
}

func (m *Memory) checkUnique(collection string, rec Record, selfID string) error {
	key, ok := uniqueKeys[collection]
	if !ok {
		return nil
	}
	for id, other := range m.table(collection) {
		if id == selfID || id == rec.ID() {
			continue
		}
		same := true
		for _, f := range key {
			if !equalValues(other[f], rec[f]) {
				same = false
				break
			}
		}
		if same {
			return fmt.Errorf("unique constraint failed: %s(%s)", collection, strings.Join(key, ", "))
		}
	}
	return nil
}

func checkQuery(collection string, q Query) error {
	if _, err := columnsOf(collection); err != nil {
		return err
	}
	for f := range q.Where {
		if err := checkField(collection, f); err != nil {
			return err
		}
	}
	for _, o := range q.OrderBy {
		if err := checkField(collection, o.Field); err != nil {
			return err
		}
	}
	return nil
}

func matches(rec Record, where Filter) bool {
	for field, cond := range where {
		v := rec[field]
		switch c := cond.(type) {
		case In:
			found := false
			for _, want := range c {
				if equalValues(v, want) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case Prefix:
			s, ok := v.(string)
			if !ok || !strings.HasPrefix(s, string(c)) {
				return false
			}
		default:
			if !equalValues(v, c) {
				return false
			}
		}
	}
	return true
}

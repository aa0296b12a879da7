package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// SQLite is a Gateway over the tables created by internal/database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite wraps an open database whose schema is migrated.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, now: time.Now}
}

// List runs a SELECT built from the query.
func (s *SQLite) List(ctx context.Context, collection string, q Query) ([]Record, error) {
	if err := checkQuery(collection, q); err != nil {
		return nil, err
	}
	cols, _ := columnsOf(collection)

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(cols.names, ", "), collection)
	where, args := whereClause(q.Where)
	sb.WriteString(where)

	sb.WriteString(" ORDER BY ")
	for _, o := range q.OrderBy {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, "%s %s, ", o.Field, dir)
	}
	if len(q.OrderBy) > 0 && q.OrderBy[0].Desc {
		sb.WriteString("id DESC")
	} else {
		sb.WriteString("id ASC")
	}

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		vals := make([]any, len(cols.names))
		ptrs := make([]any, len(vals))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", collection, err)
		}
		rec := make(Record, len(vals))
		for i, name := range cols.names {
			v := vals[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rec[name] = v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Create inserts a record.
func (s *SQLite) Create(ctx context.Context, collection string, rec Record) (Record, error) {
	prepared, err := prepare(collection, rec)
	if err != nil {
		return nil, err
	}
	stampCreate(collection, prepared, s.now())

	fields := sortedKeys(prepared)
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = prepared[f]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		collection, strings.Join(fields, ", "), placeholders(len(fields)))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to create %s record: %w", collection, err)
	}
	return complete(collection, prepared), nil
}

// Update applies patch to the row with the given id.
func (s *SQLite) Update(ctx context.Context, collection, id string, patch Record) error {
	prepared, err := prepare(collection, patch)
	if err != nil {
		return err
	}
	delete(prepared, "id")
	if cols, _ := columnsOf(collection); cols.has("updated_at") {
		if _, set := prepared["updated_at"]; !set {
			prepared["updated_at"] = timestamp(s.now())
		}
	}
	if len(prepared) == 0 {
		return nil
	}

	fields := sortedKeys(prepared)
	sets := make([]string, len(fields))
	args := make([]any, 0, len(fields)+1)
	for i, f := range fields {
		sets[i] = f + " = ?"
		args = append(args, prepared[f])
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", collection, strings.Join(sets, ", ")), args...)
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", collection, id, err)
	}
	return requireAffected(res, collection, id)
}

// Delete removes the row with the given id.
func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	if _, err := columnsOf(collection); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", collection), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", collection, id, err)
	}
	return requireAffected(res, collection, id)
}

// DeleteMany removes all rows matching where.
func (s *SQLite) DeleteMany(ctx context.Context, collection string, where Filter) (int, error) {
	if len(where) == 0 {
		return 0, ErrEmptyFilter
	}
	if err := checkQuery(collection, Query{Where: where}); err != nil {
		return 0, err
	}
	clause, args := whereClause(where)
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+collection+clause, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", collection, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func requireAffected(res sql.Result, collection, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	return nil
}

// whereClause renders a filter whose field names were already validated.
func whereClause(where Filter) (string, []any) {
	if len(where) == 0 {
		return "", nil
	}
	var (
		conds []string
		args  []any
	)
	for _, field := range sortedFilterKeys(where) {
		switch c := where[field].(type) {
		case In:
			if len(c) == 0 {
				conds = append(conds, "1 = 0")
				continue
			}
			for _, v := range c {
				nv, _ := normalize(v)
				args = append(args, nv)
			}
			conds = append(conds, fmt.Sprintf("%s IN (%s)", field, placeholders(len(c))))
		case Prefix:
			conds = append(conds, fmt.Sprintf("substr(%s, 1, %d) = ?", field, utf8.RuneCountInString(string(c))))
			args = append(args, string(c))
		case nil:
			conds = append(conds, field+" IS NULL")
		default:
			nv, _ := normalize(c)
			conds = append(conds, field+" = ?")
			args = append(args, nv)
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func sortedKeys(r Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedFilterKeys(f Filter) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

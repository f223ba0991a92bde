// Package memory implements an in-memory migration target.
//
// It keeps rows per table with upsert-by-id semantics and can enforce link integrity the
// way a relational target would: a link may only point at a row that already exists.
package memory

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"sync"

	"github.com/stokaro/ferry/core/targetschema"
	"github.com/stokaro/ferry/dbschema/types"
	"github.com/stokaro/ferry/migration/schemaplan"
)

// DefaultPageSize is the number of rows returned per page when Options.PageSize is zero.
const DefaultPageSize = 100

// Options configures a Store.
type Options struct {
	// EnforceLinks rejects writes whose link fields reference a missing row.
	EnforceLinks bool

	// PageSize is the number of rows returned per page.
	PageSize int
}

type table struct {
	schema targetschema.Table
	ids    []string
	rows   map[string]map[string]any
}

// Store is an in-memory target. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	opts     Options
	database string
	tables   map[string]*table
}

var _ types.Target = (*Store)(nil)

// New creates an empty store.
func New(opts Options) *Store {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Store{opts: opts, tables: make(map[string]*table)}
}

// Info implements types.Target.
func (s *Store) Info() types.DBInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.DBInfo{Dialect: "memory", Name: s.database, URL: "memory://" + s.database}
}

// Close implements types.Target.
func (s *Store) Close() error {
	return nil
}

// CreateDatabase implements types.SchemaApplier.
func (s *Store) CreateDatabase(_ context.Context, name string, _ types.DatabaseOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.database = name
	return nil
}

// ApplyPlan implements types.SchemaApplier.
func (s *Store) ApplyPlan(_ context.Context, plan *schemaplan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range plan.TablesAdded {
		if existing, ok := s.tables[t.Name]; ok {
			existing.schema = t
			continue
		}
		s.tables[t.Name] = &table{schema: t, rows: make(map[string]map[string]any)}
	}

	for _, diff := range plan.TablesModified {
		t, ok := s.tables[diff.TableName]
		if !ok {
			return fmt.Errorf("table %s does not exist", diff.TableName)
		}
		t.schema.Columns = slices.DeleteFunc(t.schema.Columns, func(c targetschema.Column) bool {
			return slices.Contains(diff.ColumnsRemoved, c.Name)
		})
		for _, row := range t.rows {
			for _, col := range diff.ColumnsRemoved {
				delete(row, col)
			}
		}
		if len(diff.NewColumnOrder) > 0 {
			slices.SortStableFunc(t.schema.Columns, func(a, b targetschema.Column) int {
				return position(diff.NewColumnOrder, a.Name) - position(diff.NewColumnOrder, b.Name)
			})
		}
	}

	for _, name := range plan.TablesRemoved {
		delete(s.tables, name)
	}
	return nil
}

func position(order []string, name string) int {
	if i := slices.Index(order, name); i >= 0 {
		return i
	}
	return len(order)
}

// Upsert implements types.Writer.
func (s *Store) Upsert(_ context.Context, tableName, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(tableName, id, fields, false)
}

// BulkUpsert implements types.BulkWriter. Rows are checked before any is written.
func (s *Store) BulkUpsert(_ context.Context, tableName string, rows []types.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		if err := s.check(tableName, row.Fields); err != nil {
			return err
		}
	}
	for _, row := range rows {
		if err := s.put(tableName, row.ID, row.Fields, false); err != nil {
			return err
		}
	}
	return nil
}

// Update implements types.Updater.
func (s *Store) Update(_ context.Context, tableName, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(tableName, id, fields, true)
}

func (s *Store) put(tableName, id string, fields map[string]any, merge bool) error {
	if err := s.check(tableName, fields); err != nil {
		return err
	}
	t := s.tables[tableName]
	existing, ok := t.rows[id]
	switch {
	case merge && !ok:
		return &types.TransportError{
			Op:      "update " + tableName,
			Status:  http.StatusNotFound,
			Payload: fmt.Sprintf("record %s not found", id),
		}
	case merge:
		maps.Copy(existing, fields)
	default:
		if !ok {
			t.ids = append(t.ids, id)
		}
		t.rows[id] = maps.Clone(fields)
		if t.rows[id] == nil {
			t.rows[id] = map[string]any{}
		}
	}
	return nil
}

func (s *Store) check(tableName string, fields map[string]any) error {
	t, ok := s.tables[tableName]
	if !ok {
		return &types.TransportError{Op: "write " + tableName, Status: http.StatusNotFound, Payload: "table not found"}
	}
	for name, value := range fields {
		col, ok := t.schema.Column(name)
		if !ok {
			return &types.TransportError{
				Op:      "write " + tableName,
				Status:  http.StatusBadRequest,
				Payload: fmt.Sprintf("column %s does not exist", name),
			}
		}
		if !s.opts.EnforceLinks || col.Type != targetschema.Link || value == nil {
			continue
		}
		id, _ := value.(string)
		linked, ok := s.tables[col.Link.Table]
		if !ok {
			return &types.TransportError{Op: "write " + tableName, Status: http.StatusBadRequest, Payload: "linked table not found"}
		}
		if _, ok := linked.rows[id]; !ok {
			return &types.TransportError{
				Op:      "write " + tableName,
				Status:  http.StatusBadRequest,
				Payload: fmt.Sprintf("invalid link: record %q not found in %s", id, col.Link.Table),
			}
		}
	}
	return nil
}

// ReadPage implements types.RecordReader. The cursor is the offset of the next row.
func (s *Store) ReadPage(_ context.Context, tableName, cursor string) (types.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[tableName]
	if !ok {
		return types.Page{}, &types.TransportError{Op: "query " + tableName, Status: http.StatusNotFound, Payload: "table not found"}
	}

	offset := 0
	if cursor != "" {
		var err error
		if offset, err = strconv.Atoi(cursor); err != nil || offset < 0 {
			return types.Page{}, fmt.Errorf("invalid cursor %q", cursor)
		}
	}

	end := min(offset+s.opts.PageSize, len(t.ids))
	var page types.Page
	for _, id := range t.ids[min(offset, end):end] {
		page.Rows = append(page.Rows, types.Row{ID: id, Fields: maps.Clone(t.rows[id])})
	}
	if end < len(t.ids) {
		page.Cursor = strconv.Itoa(end)
	}
	return page, nil
}

// HasUnresolvedLinks implements types.LinkChecker.
func (s *Store) HasUnresolvedLinks(_ context.Context, schema targetschema.Table) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[schema.Name]
	if !ok {
		return false, &types.TransportError{Op: "query " + schema.Name, Status: http.StatusNotFound, Payload: "table not found"}
	}
	links := schema.LinkColumns()
	for _, row := range t.rows {
		for _, link := range links {
			if isEmpty(row[link+targetschema.UnresolvedSuffix]) {
				continue
			}
			if isEmpty(row[link]) {
				return true, nil
			}
		}
	}
	return false, nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// Row returns a copy of a stored row.
func (s *Store) Row(tableName, id string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[tableName]
	if !ok {
		return nil, false
	}
	row, ok := t.rows[id]
	return maps.Clone(row), ok
}

// Count returns the number of rows in a table.
func (s *Store) Count(tableName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tables[tableName]; ok {
		return len(t.ids)
	}
	return 0
}

// Table returns the current schema of a table.
func (s *Store) Table(tableName string) (targetschema.Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[tableName]
	if !ok {
		return targetschema.Table{}, false
	}
	return t.schema, true
}

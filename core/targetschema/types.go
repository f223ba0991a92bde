// Package targetschema defines the schema model of the target store.
//
// A Schema is an ordered collection of tables. Order matters: it is the order in which
// tables are created in the target store and the order in which every later phase walks
// them, so two transformations of the same migration always produce identical schemas.
package targetschema

import (
	"slices"
	"strings"
)

// ColumnType is a target column type as understood by the target store.
type ColumnType string

const (
	String   ColumnType = "string"
	Text     ColumnType = "text"
	Email    ColumnType = "email"
	Int      ColumnType = "int"
	Float    ColumnType = "float"
	Bool     ColumnType = "bool"
	DateTime ColumnType = "datetime"
	Multiple ColumnType = "multiple"
	Link     ColumnType = "link"
	Object   ColumnType = "object"
)

var columnTypes = []ColumnType{String, Text, Email, Int, Float, Bool, DateTime, Multiple, Link, Object}

// Valid reports whether t is one of the known column types.
func (t ColumnType) Valid() bool {
	return slices.Contains(columnTypes, t)
}

const (
	// UnresolvedSuffix marks staging columns holding a reference before it is resolved.
	UnresolvedSuffix = "_unresolved"

	// ReasonsColumn holds the serialized validation failures in error tables.
	ReasonsColumn = "__reasons"

	// AttachmentsTable is the shared satellite table for file attachments.
	AttachmentsTable = "attachments"

	// CollaboratorsTable is the shared satellite table for collaborators.
	CollaboratorsTable = "collaborators"
)

// TableKind tells how a target table came to exist.
type TableKind string

const (
	KindSuccess   TableKind = "success"
	KindError     TableKind = "error"
	KindJunction  TableKind = "junction"
	KindSatellite TableKind = "satellite"
)

// LinkRef points a link column at the table it references.
type LinkRef struct {
	Table string `json:"table" yaml:"table"`
}

// Column is a target column. Link columns carry a LinkRef, object columns carry
// their nested columns.
type Column struct {
	Name    string     `json:"name" yaml:"name"`
	Type    ColumnType `json:"type" yaml:"type"`
	Link    *LinkRef   `json:"link,omitempty" yaml:"link,omitempty"`
	Columns []Column   `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// IsStaging reports whether the column is an `_unresolved` staging column.
func (c Column) IsStaging() bool {
	return strings.HasSuffix(c.Name, UnresolvedSuffix)
}

// Table is a target table.
type Table struct {
	Name    string    `json:"name" yaml:"name"`
	Kind    TableKind `json:"-" yaml:"-"`
	Columns []Column  `json:"columns" yaml:"columns"`
}

// Column returns the column with the given name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasLinks reports whether the table has at least one link column.
func (t Table) HasLinks() bool {
	return slices.ContainsFunc(t.Columns, func(c Column) bool { return c.Type == Link })
}

// LinkColumns returns the names of the link columns in table order.
func (t Table) LinkColumns() []string {
	var names []string
	for _, c := range t.Columns {
		if c.Type == Link {
			names = append(names, c.Name)
		}
	}
	return names
}

// IsLinkColumn reports whether name is a link column of the table.
func (t Table) IsLinkColumn(name string) bool {
	c, ok := t.Column(name)
	return ok && c.Type == Link
}

// StagingColumns returns the names of the `_unresolved` string columns.
func (t Table) StagingColumns() []string {
	var names []string
	for _, c := range t.Columns {
		if c.Type == String && c.IsStaging() {
			names = append(names, c.Name)
		}
	}
	return names
}

// FinalColumnOrder returns the column names once staging columns are dropped.
func (t Table) FinalColumnOrder() []string {
	var names []string
	for _, c := range t.Columns {
		if !c.IsStaging() {
			names = append(names, c.Name)
		}
	}
	return names
}

// Schema is an ordered set of tables keyed by name.
type Schema struct {
	tables []Table
	index  map[string]int
}

// NewSchema creates a schema holding the given tables in order.
func NewSchema(tables ...Table) *Schema {
	s := &Schema{index: make(map[string]int)}
	for _, t := range tables {
		s.Put(t)
	}
	return s
}

// Put adds the table or replaces the table with the same name, keeping its position.
func (s *Schema) Put(t Table) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[t.Name]; ok {
		s.tables[i] = t
		return
	}
	s.index[t.Name] = len(s.tables)
	s.tables = append(s.tables, t)
}

// Has reports whether the schema contains a table with the given name.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Table returns the table with the given name.
func (s *Schema) Table(name string) (Table, bool) {
	i, ok := s.index[name]
	if !ok {
		return Table{}, false
	}
	return s.tables[i], true
}

// Tables returns a copy of the tables in schema order.
func (s *Schema) Tables() []Table {
	return slices.Clone(s.tables)
}

// Names returns the table names in schema order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.tables))
	for i, t := range s.tables {
		names[i] = t.Name
	}
	return names
}

// Len returns the number of tables.
func (s *Schema) Len() int {
	return len(s.tables)
}

// TablesWithLinks returns the tables that have at least one link column, in schema order.
func (s *Schema) TablesWithLinks() []Table {
	var out []Table
	for _, t := range s.tables {
		if t.HasLinks() {
			out = append(out, t)
		}
	}
	return out
}

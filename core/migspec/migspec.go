// Package migspec holds the migration specification: the source tables to migrate, how their
// columns are typed and named in the target, and which phases of a run to skip.
//
// A Migration is immutable once a run starts. Every name lookup goes through the Migration
// so the naming rules are applied the same way by every phase.
package migspec

import (
	"github.com/stokaro/ferry/core/naming"
	"github.com/stokaro/ferry/core/sourcetype"
	"github.com/stokaro/ferry/core/targetschema"
)

// ValueExtractor computes a column value from a whole source record. It must be pure.
type ValueExtractor func(id string, fields map[string]any) any

// Column describes one source column and how it lands in the target.
type Column struct {
	SourceColumnName string
	SourceColumnType sourcetype.Type

	// TargetColumnName overrides the formatted source column name.
	TargetColumnName string

	// TargetColumnType overrides the mapped column type.
	TargetColumnType targetschema.ColumnType

	Required bool

	// GetValue replaces the plain field lookup when set.
	GetValue ValueExtractor

	// LinkSourceTableName is the source table name referenced by a record links column.
	LinkSourceTableName string

	// AllowMultipleRecords turns a record links column into a junction table.
	AllowMultipleRecords bool
}

// IsSingleLink reports whether the column is a single-valued record link.
func (c Column) IsSingleLink() bool {
	return c.SourceColumnType.Kind() == sourcetype.KindRecordLinks && !c.AllowMultipleRecords
}

// IsMultiLink reports whether the column is a multi-valued record link.
func (c Column) IsMultiLink() bool {
	return c.SourceColumnType.Kind() == sourcetype.KindRecordLinks && c.AllowMultipleRecords
}

// Table describes one source table.
type Table struct {
	SourceTableID   string
	SourceTableName string

	// TargetTableName overrides the formatted source table name.
	TargetTableName string

	Columns []Column
}

// Skip holds the per-phase skip flags of a run.
type Skip struct {
	CreateTargetDatabase bool
	MigrateRecords       bool
	ResolveLinks         bool
	CheckAndClean        bool
}

// Migration is the full description of a migration run.
type Migration struct {
	Tables []Table

	// TableNameFormatter defaults to naming.Camel.
	TableNameFormatter naming.Formatter

	// ColumnNameFormatter defaults to naming.Camel.
	ColumnNameFormatter naming.Formatter

	// ErrorTableName defaults to appending naming.DefaultErrorSuffix.
	ErrorTableName naming.ErrorTableNamer

	Skip Skip
}

// TargetTableName returns the target name of a source table.
func (m *Migration) TargetTableName(t *Table) string {
	if t.TargetTableName != "" {
		return t.TargetTableName
	}
	return naming.Or(m.TableNameFormatter, naming.Camel)(t.SourceTableName)
}

// TargetColumnName returns the target name of a source column.
func (m *Migration) TargetColumnName(c *Column) string {
	if c.TargetColumnName != "" {
		return c.TargetColumnName
	}
	return naming.Or(m.ColumnNameFormatter, naming.Camel)(c.SourceColumnName)
}

// ErrorTableNameOf returns the error table name for a success table name.
func (m *Migration) ErrorTableNameOf(table string) string {
	if m.ErrorTableName != nil {
		return m.ErrorTableName(table)
	}
	return table + naming.DefaultErrorSuffix
}

// FindBySourceName returns the table with the given source name.
func (m *Migration) FindBySourceName(name string) (*Table, bool) {
	for i := range m.Tables {
		if m.Tables[i].SourceTableName == name {
			return &m.Tables[i], true
		}
	}
	return nil, false
}

// FindByTargetName returns the table whose target name is name.
func (m *Migration) FindByTargetName(name string) (*Table, bool) {
	for i := range m.Tables {
		if m.TargetTableName(&m.Tables[i]) == name {
			return &m.Tables[i], true
		}
	}
	return nil, false
}

// LinkedTableName returns the target table a relation column points at. Record links point
// at the table named by LinkSourceTableName; attachments and collaborators point at their
// shared satellite table. The boolean is false when a record links column names an
// unknown table.
func (m *Migration) LinkedTableName(c *Column) (string, bool) {
	switch c.SourceColumnType.Kind() {
	case sourcetype.KindAttachments:
		return targetschema.AttachmentsTable, true
	case sourcetype.KindSingleCollaborator, sourcetype.KindMultipleCollaborators:
		return targetschema.CollaboratorsTable, true
	case sourcetype.KindRecordLinks:
		linked, ok := m.FindBySourceName(c.LinkSourceTableName)
		if !ok {
			return "", false
		}
		return m.TargetTableName(linked), true
	default:
		return "", false
	}
}

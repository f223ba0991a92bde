// Package schemaplan describes the schema changes applied to the target store during a run.
//
// A run applies two plans. The initial plan creates every table derived from the migration.
// The cleanup plan, applied once links are verified, drops the staging columns of fully
// resolved tables and removes error tables that never received a row.
package schemaplan

import (
	"github.com/stokaro/ferry/core/targetschema"
)

const (
	// VersionInitial is the version of the plan creating the target schema.
	VersionInitial = 1

	// VersionCleanup is the version of the plan applied after link verification.
	VersionCleanup = 2
)

// Plan is a set of schema changes for the target store.
//
// # Structure Organization
//
// Changes are grouped by kind, and applied in this order:
//   - TablesAdded: tables to create, with their full column layout
//   - TablesModified: existing tables losing columns or getting a new column order
//   - TablesRemoved: tables to drop
//
// # JSON Serialization
//
// All fields are JSON-serializable so a plan can be printed, stored, or sent as-is to a
// target that accepts schema edits over HTTP.
//
// # Example Usage
//
//	plan := schemaplan.Initial(schema)
//	if plan.HasChanges() {
//		err := target.ApplyPlan(ctx, plan)
//		// ...
//	}
type Plan struct {
	// Version is VersionInitial or VersionCleanup
	Version int `json:"version" yaml:"version"`

	// TablesAdded contains the tables to create, in creation order
	TablesAdded []targetschema.Table `json:"tables_added,omitempty" yaml:"tables_added,omitempty"`

	// TablesModified contains the tables whose columns change
	TablesModified []TableDiff `json:"tables_modified,omitempty" yaml:"tables_modified,omitempty"`

	// TablesRemoved contains the names of the tables to drop
	TablesRemoved []string `json:"tables_removed,omitempty" yaml:"tables_removed,omitempty"`
}

// TableDiff is the change to one existing table.
type TableDiff struct {
	// TableName is the table being modified
	TableName string `json:"table_name" yaml:"table_name"`

	// ColumnsRemoved contains the columns to drop
	ColumnsRemoved []string `json:"columns_removed,omitempty" yaml:"columns_removed,omitempty"`

	// NewColumnOrder is the order of the remaining columns once the change is applied
	NewColumnOrder []string `json:"new_column_order,omitempty" yaml:"new_column_order,omitempty"`
}

// HasChanges returns true if the plan contains any schema change.
func (p *Plan) HasChanges() bool {
	return len(p.TablesAdded) > 0 ||
		len(p.TablesModified) > 0 ||
		len(p.TablesRemoved) > 0
}

// Initial returns the plan creating every table of the schema in schema order.
func Initial(schema *targetschema.Schema) *Plan {
	return &Plan{
		Version:     VersionInitial,
		TablesAdded: schema.Tables(),
	}
}

// CleanupDiff returns the change dropping the staging columns of a fully resolved table.
func CleanupDiff(table targetschema.Table) TableDiff {
	return TableDiff{
		TableName:      table.Name,
		ColumnsRemoved: table.StagingColumns(),
		NewColumnOrder: table.FinalColumnOrder(),
	}
}

// Cleanup returns the plan applying the given table changes and removing the given tables.
func Cleanup(modified []TableDiff, removed []string) *Plan {
	return &Plan{
		Version:        VersionCleanup,
		TablesModified: modified,
		TablesRemoved:  removed,
	}
}

package xata

import (
	"github.com/stokaro/ferry/core/targetschema"
	"github.com/stokaro/ferry/migration/schemaplan"
)

// MigrationRequest is the body of a branch migration.
type MigrationRequest struct {
	Version   int       `json:"version"`
	Migration Migration `json:"migration"`
}

// Migration describes the schema changes of a branch migration.
type Migration struct {
	LocalChanges    bool                          `json:"localChanges"`
	Status          string                        `json:"status"`
	NewTables       map[string]targetschema.Table `json:"newTables,omitempty"`
	NewTableOrder   []string                      `json:"newTableOrder,omitempty"`
	RemovedTables   []string                      `json:"removedTables,omitempty"`
	TableMigrations map[string]TableMigration     `json:"tableMigrations,omitempty"`
}

// TableMigration is the change of one existing table.
type TableMigration struct {
	RemovedColumns []string `json:"removedColumns,omitempty"`
	NewColumnOrder []string `json:"newColumnOrder,omitempty"`
}

// BranchMigration converts a schema plan into a branch migration request.
// Xata numbers migrations from zero.
func BranchMigration(plan *schemaplan.Plan) MigrationRequest {
	m := Migration{LocalChanges: true, Status: "started", RemovedTables: plan.TablesRemoved}
	if len(plan.TablesAdded) > 0 {
		m.NewTables = make(map[string]targetschema.Table, len(plan.TablesAdded))
		for _, t := range plan.TablesAdded {
			m.NewTables[t.Name] = t
			m.NewTableOrder = append(m.NewTableOrder, t.Name)
		}
	}
	if len(plan.TablesModified) > 0 {
		m.TableMigrations = make(map[string]TableMigration, len(plan.TablesModified))
		for _, d := range plan.TablesModified {
			m.TableMigrations[d.TableName] = TableMigration{RemovedColumns: d.ColumnsRemoved, NewColumnOrder: d.NewColumnOrder}
		}
	}
	return MigrationRequest{Version: plan.Version - 1, Migration: m}
}

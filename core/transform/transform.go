// Package transform derives the target schema of a migration.
//
// For every source table, in input order, Transform emits the success table, the junction
// and satellite tables its columns need, and finally its error table. Output depends only
// on the migration, so the same migration always yields the same schema.
package transform

import (
	"fmt"

	"github.com/stokaro/ferry/core/migspec"
	"github.com/stokaro/ferry/core/sourcetype"
	"github.com/stokaro/ferry/core/targetschema"
	"github.com/stokaro/ferry/core/typemap"
)

// ConfigurationError reports a migration that cannot be transformed.
type ConfigurationError struct {
	Table  string
	Column string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("configuration error in table %q: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("configuration error in table %q, column %q: %s", e.Table, e.Column, e.Reason)
}

// Transform computes the target schema of m.
func Transform(m *migspec.Migration) (*targetschema.Schema, error) {
	if err := check(m); err != nil {
		return nil, err
	}

	schema := targetschema.NewSchema()
	for i := range m.Tables {
		transformTable(m, &m.Tables[i], schema)
	}
	return schema, nil
}

func check(m *migspec.Migration) error {
	for i := range m.Tables {
		t := &m.Tables[i]
		if m.TargetTableName(t) == "" {
			return &ConfigurationError{Table: t.SourceTableName, Reason: "empty target table name"}
		}

		for j := range t.Columns {
			col := &t.Columns[j]
			if !col.SourceColumnType.Valid() {
				return &ConfigurationError{Table: t.SourceTableName, Column: col.SourceColumnName, Reason: "invalid source column type"}
			}
			if col.TargetColumnType != "" && !col.TargetColumnType.Valid() {
				return &ConfigurationError{
					Table:  t.SourceTableName,
					Column: col.SourceColumnName,
					Reason: fmt.Sprintf("unknown target column type %q", col.TargetColumnType),
				}
			}
			if col.SourceColumnType.Kind() != sourcetype.KindRecordLinks {
				continue
			}
			if _, ok := m.FindBySourceName(col.LinkSourceTableName); !ok {
				return &ConfigurationError{
					Table:  t.SourceTableName,
					Column: col.SourceColumnName,
					Reason: fmt.Sprintf("%q link table not found", col.LinkSourceTableName),
				}
			}
		}
	}
	return checkNames(m)
}

// checkNames rejects two target tables with the same name. Only satellite tables are
// shared between the source tables that need them.
func checkNames(m *migspec.Migration) error {
	type owner struct {
		kind  targetschema.TableKind
		table string
	}
	seen := make(map[string]owner)

	for i := range m.Tables {
		t := &m.Tables[i]
		for _, e := range tableNames(m, t) {
			prev, ok := seen[e.name]
			if !ok {
				seen[e.name] = owner{kind: e.kind, table: t.SourceTableName}
				continue
			}
			if e.kind == targetschema.KindSatellite && prev.kind == targetschema.KindSatellite {
				continue
			}
			return &ConfigurationError{
				Table:  t.SourceTableName,
				Reason: fmt.Sprintf("target table name %q already used by %q", e.name, prev.table),
			}
		}
	}
	return nil
}

type tableName struct {
	name string
	kind targetschema.TableKind
}

// tableNames lists the tables transformTable emits for t, in emission order.
func tableNames(m *migspec.Migration, t *migspec.Table) []tableName {
	name := m.TargetTableName(t)
	names := []tableName{{name: name, kind: targetschema.KindSuccess}}

	for i := range t.Columns {
		col := &t.Columns[i]
		junction := tableName{name: targetschema.JunctionTableName(name, m.TargetColumnName(col)), kind: targetschema.KindJunction}

		switch col.SourceColumnType.Kind() {
		case sourcetype.KindRecordLinks:
			if col.AllowMultipleRecords {
				names = append(names, junction)
			}
		case sourcetype.KindAttachments:
			names = append(names, tableName{name: targetschema.AttachmentsTable, kind: targetschema.KindSatellite}, junction)
		case sourcetype.KindSingleCollaborator:
			names = append(names, tableName{name: targetschema.CollaboratorsTable, kind: targetschema.KindSatellite})
		case sourcetype.KindMultipleCollaborators:
			names = append(names, tableName{name: targetschema.CollaboratorsTable, kind: targetschema.KindSatellite}, junction)
		}
	}
	return append(names, tableName{name: m.ErrorTableNameOf(name), kind: targetschema.KindError})
}

func transformTable(m *migspec.Migration, t *migspec.Table, schema *targetschema.Schema) {
	tableName := m.TargetTableName(t)

	var columns []targetschema.Column
	var synthetic []targetschema.Table

	for i := range t.Columns {
		col := &t.Columns[i]
		colName := m.TargetColumnName(col)

		switch col.SourceColumnType.Kind() {
		case sourcetype.KindRecordLinks:
			linked, _ := m.LinkedTableName(col)
			if col.AllowMultipleRecords {
				synthetic = append(synthetic, targetschema.JunctionTable(
					targetschema.JunctionTableName(tableName, colName), tableName, linked, colName))
				continue
			}
			columns = append(columns, stagedLink(colName, linked)...)

		case sourcetype.KindAttachments:
			synthetic = append(synthetic,
				targetschema.AttachmentsTableSpec(),
				targetschema.JunctionTable(
					targetschema.JunctionTableName(tableName, colName), tableName, targetschema.AttachmentsTable, colName),
			)

		case sourcetype.KindSingleCollaborator:
			synthetic = append(synthetic, targetschema.CollaboratorsTableSpec())
			columns = append(columns, stagedLink(colName, targetschema.CollaboratorsTable)...)

		case sourcetype.KindMultipleCollaborators:
			synthetic = append(synthetic,
				targetschema.CollaboratorsTableSpec(),
				targetschema.JunctionTable(
					targetschema.JunctionTableName(tableName, colName), tableName, targetschema.CollaboratorsTable, colName),
			)

		case sourcetype.KindObject:
			if col.TargetColumnType != "" && col.TargetColumnType != targetschema.Object {
				columns = append(columns, targetschema.Column{Name: colName, Type: col.TargetColumnType})
				continue
			}
			columns = append(columns, targetschema.Column{
				Name:    colName,
				Type:    targetschema.Object,
				Columns: typemap.Layout(col.SourceColumnType),
			})

		default:
			columns = append(columns, targetschema.Column{
				Name: colName,
				Type: typemap.Resolve(col.SourceColumnType, col.TargetColumnType),
			})
		}
	}

	success := targetschema.Table{Name: tableName, Kind: targetschema.KindSuccess, Columns: columns}
	schema.Put(success)

	for _, s := range synthetic {
		if s.Kind == targetschema.KindSatellite && schema.Has(s.Name) {
			continue
		}
		schema.Put(s)
	}

	schema.Put(ErrorTable(m.ErrorTableNameOf(tableName), success))
}

func stagedLink(name, linked string) []targetschema.Column {
	return []targetschema.Column{
		{Name: name + targetschema.UnresolvedSuffix, Type: targetschema.String},
		{Name: name, Type: targetschema.Link, Link: &targetschema.LinkRef{Table: linked}},
	}
}

// ErrorTable derives the error table of a success table: a reasons column followed by one
// text column per non-link column.
func ErrorTable(name string, success targetschema.Table) targetschema.Table {
	columns := []targetschema.Column{{Name: targetschema.ReasonsColumn, Type: targetschema.Text}}
	for _, c := range success.Columns {
		if c.Type == targetschema.Link {
			continue
		}
		columns = append(columns, targetschema.Column{Name: c.Name, Type: targetschema.Text})
	}
	return targetschema.Table{Name: name, Kind: targetschema.KindError, Columns: columns}
}

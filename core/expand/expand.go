// Package expand rewrites validated records so they can be written before the rows they
// reference exist.
//
// Single-valued relations are moved to their `_unresolved` staging column. Multi-valued
// relations are removed from the record and become junction rows, and attachment or
// collaborator values also become rows of their shared satellite table.
package expand

import (
	"maps"

	"github.com/stokaro/ferry/core/migspec"
	"github.com/stokaro/ferry/core/record"
	"github.com/stokaro/ferry/core/sourcetype"
	"github.com/stokaro/ferry/core/targetschema"
)

// Result is the expansion of one record.
type Result struct {
	// Fields is the record as written to its success table.
	Fields map[string]any

	// Ops holds the junction and satellite rows, each satellite row preceding the junction
	// row that references it.
	Ops []record.WriteOp
}

// Record expands a valid record. Records with reasons must not be expanded.
func Record(m *migspec.Migration, v record.Validated) Result {
	tableName := m.TargetTableName(v.Table)
	res := Result{Fields: maps.Clone(v.Fields)}
	if res.Fields == nil {
		res.Fields = map[string]any{}
	}

	for i := range v.Table.Columns {
		col := &v.Table.Columns[i]
		if !col.SourceColumnType.IsRelation() {
			continue
		}
		colName := m.TargetColumnName(col)
		value, present := res.Fields[colName]
		if !present {
			continue
		}
		linked, _ := m.LinkedTableName(col)

		switch {
		case col.IsSingleLink(), col.SourceColumnType.Kind() == sourcetype.KindSingleCollaborator:
			delete(res.Fields, colName)
			ref, ok := single(value)
			if !ok {
				continue
			}
			res.Fields[colName+targetschema.UnresolvedSuffix] = ref
			if col.SourceColumnType.Kind() == sourcetype.KindSingleCollaborator {
				if op, ok := satellite(linked, value); ok {
					res.Ops = append(res.Ops, op)
				}
			}

		default:
			delete(res.Fields, colName)
			junction := targetschema.JunctionTableName(tableName, colName)
			ownerCol, linkedCol := targetschema.JunctionSides(tableName, linked, colName)
			hasSatellite := col.SourceColumnType.Kind() != sourcetype.KindRecordLinks

			for _, elem := range elements(value) {
				elemID, ok := ID(elem)
				if !ok {
					continue
				}
				if hasSatellite {
					if op, ok := satellite(linked, elem); ok {
						res.Ops = append(res.Ops, op)
					}
				}
				res.Ops = append(res.Ops, record.WriteOp{
					Table: junction,
					ID:    v.ID + "_" + elemID,
					Fields: map[string]any{
						ownerCol + targetschema.UnresolvedSuffix:  v.ID,
						linkedCol + targetschema.UnresolvedSuffix: elemID,
					},
				})
			}
		}
	}
	return res
}

// ID returns the record id of a reference: the value itself for a string, the id field for
// an object.
func ID(v any) (string, bool) {
	switch ref := v.(type) {
	case string:
		return ref, ref != ""
	case map[string]any:
		id, ok := ref["id"].(string)
		return id, ok && id != ""
	}
	return "", false
}

// Staging returns the staging value of a single-valued relation. A value holding more than
// one reference has none.
func Staging(v any) (string, bool) {
	if len(elements(v)) > 1 {
		return "", false
	}
	return single(v)
}

// single collapses a single-valued relation to its reference. An empty array is absent.
func single(v any) (string, bool) {
	if items := elements(v); items != nil {
		if len(items) == 0 {
			return "", false
		}
		return ID(items[0])
	}
	return ID(v)
}

func elements(v any) []any {
	switch items := v.(type) {
	case []any:
		return items
	case []string:
		out := make([]any, len(items))
		for i, s := range items {
			out[i] = s
		}
		return out
	}
	return nil
}

// satellite builds the satellite row of an attachment or collaborator object.
func satellite(table string, v any) (record.WriteOp, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return record.WriteOp{}, false
	}
	id, ok := ID(obj)
	if !ok {
		return record.WriteOp{}, false
	}
	fields := maps.Clone(obj)
	delete(fields, "id")
	return record.WriteOp{Table: table, ID: id, Fields: fields}, true
}

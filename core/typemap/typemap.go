// Package typemap maps source column types to target column types.
package typemap

import (
	"github.com/stokaro/ferry/core/sourcetype"
	"github.com/stokaro/ferry/core/targetschema"
)

// mapping holds every source type whose target type is not the string default.
var mapping = map[sourcetype.Type]targetschema.ColumnType{
	sourcetype.AutoNumber:       targetschema.Int,
	sourcetype.Count:            targetschema.Int,
	sourcetype.Number:           targetschema.Int,
	sourcetype.Rating:           targetschema.Int,
	sourcetype.Currency:         targetschema.Float,
	sourcetype.Duration:         targetschema.Float,
	sourcetype.Percent:          targetschema.Float,
	sourcetype.Checkbox:         targetschema.Bool,
	sourcetype.Date:             targetschema.DateTime,
	sourcetype.DateTime:         targetschema.DateTime,
	sourcetype.CreatedTime:      targetschema.DateTime,
	sourcetype.LastModifiedTime: targetschema.DateTime,
	sourcetype.Text:             targetschema.Text,
	sourcetype.LongText:         targetschema.Text,
	sourcetype.RichText:         targetschema.Text,
	sourcetype.MultilineText:    targetschema.Text,
	sourcetype.MultipleSelects:  targetschema.Multiple,
	sourcetype.Email:            targetschema.Email,
	sourcetype.Barcode:          targetschema.Object,
	sourcetype.Button:           targetschema.Object,
}

// layouts holds the nested columns of object-shaped source types.
var layouts = map[sourcetype.Type]func() []targetschema.Column{
	sourcetype.Barcode: targetschema.BarcodeColumns,
	sourcetype.Button:  targetschema.ButtonColumns,
}

// Map returns the target column type for a source type. Types without an entry map to string.
func Map(t sourcetype.Type) targetschema.ColumnType {
	if ct, ok := mapping[t]; ok {
		return ct
	}
	return targetschema.String
}

// Resolve returns the override when it is set, otherwise the mapped type.
func Resolve(t sourcetype.Type, override targetschema.ColumnType) targetschema.ColumnType {
	if override != "" {
		return override
	}
	return Map(t)
}

// Layout returns the nested layout of an object-shaped source type, or nil.
func Layout(t sourcetype.Type) []targetschema.Column {
	if f, ok := layouts[t]; ok {
		return f()
	}
	return nil
}

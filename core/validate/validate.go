// Package validate checks source records against their column specifications.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
	"github.com/spf13/cast"

	"github.com/stokaro/ferry/core/migspec"
	"github.com/stokaro/ferry/core/record"
	"github.com/stokaro/ferry/core/sourcetype"
)

// MessageRequired is the reason message of a required column without a value.
const MessageRequired = "Required"

// DateLayout is the layout date values are normalized to.
const DateLayout = "2006-01-02T15:04:05.000Z"

// checker validates a present value and returns its typed form, or the issues found.
type checker func(v any) (any, []string)

var checkers map[sourcetype.Type]checker

func init() {
	checkers = map[sourcetype.Type]checker{
		sourcetype.AutoNumber:            number,
		sourcetype.Barcode:               object(field("text", str), optional("type", str)),
		sourcetype.Button:                object(field("label", str), field("url", str)),
		sourcetype.Checkbox:              boolean,
		sourcetype.Count:                 number,
		sourcetype.CreatedBy:             collaborator,
		sourcetype.CreatedTime:           dateTime,
		sourcetype.Currency:              number,
		sourcetype.Date:                  date,
		sourcetype.DateTime:              dateTime,
		sourcetype.Duration:              number,
		sourcetype.Email:                 str,
		sourcetype.ExternalSyncSource:    never,
		sourcetype.Formula:               stringOrNumber,
		sourcetype.LastModifiedBy:        collaborator,
		sourcetype.LastModifiedTime:      dateTime,
		sourcetype.LongText:              str,
		sourcetype.MultilineText:         str,
		sourcetype.MultipleAttachments:   array(attachment),
		sourcetype.MultipleCollaborators: array(collaborator),
		sourcetype.MultipleLookupValues:  never,
		sourcetype.MultipleRecordLinks:   array(reference),
		sourcetype.MultipleSelects:       array(str),
		sourcetype.Number:                number,
		sourcetype.Percent:               number,
		sourcetype.PhoneNumber:           str,
		sourcetype.Rating:                number,
		sourcetype.RichText:              str,
		sourcetype.Rollup:                stringOrNumber,
		sourcetype.SingleCollaborator:    collaborator,
		sourcetype.SingleLineText:        str,
		sourcetype.SingleSelect:          str,
		sourcetype.Text:                  str,
		sourcetype.URL:                   str,
	}
}

// Record validates every column of the record's table. All columns are evaluated, so an
// invalid record carries one reason per failing column.
//
// Valid values are stored in their typed form under the target column name. Invalid values
// are stored raw under the same key so they can be reported. Absent values are not stored.
func Record(m *migspec.Migration, src record.Source) record.Validated {
	out := record.Validated{
		Table:  src.Table,
		ID:     src.ID,
		Fields: make(map[string]any, len(src.Table.Columns)),
	}

	for i := range src.Table.Columns {
		col := &src.Table.Columns[i]
		key := m.TargetColumnName(col)
		raw := Value(col, src.ID, src.Fields)

		typed, issues := Column(col, raw)
		if len(issues) > 0 {
			out.Reasons = append(out.Reasons, record.Reason{Key: key, Message: strings.Join(issues, ". ")})
			if raw != nil {
				out.Fields[key] = raw
			}
			continue
		}
		if typed != nil {
			out.Fields[key] = typed
		}
	}
	return out
}

// Value returns the raw value of a column, through its extractor when it has one.
func Value(col *migspec.Column, id string, fields map[string]any) any {
	if col.GetValue != nil {
		return col.GetValue(id, fields)
	}
	return fields[col.SourceColumnName]
}

// Column validates a single raw value against a column specification.
func Column(col *migspec.Column, raw any) (any, []string) {
	if raw == nil {
		if col.Required {
			return nil, []string{MessageRequired}
		}
		return nil, nil
	}

	check, ok := checkers[col.SourceColumnType]
	if !ok {
		return nil, []string{fmt.Sprintf("Unsupported column type %s", col.SourceColumnType)}
	}
	typed, issues := check(raw)
	if len(issues) > 0 {
		return nil, issues
	}

	if col.IsSingleLink() {
		if refs, _ := typed.([]any); len(refs) > 1 {
			return nil, []string{fmt.Sprintf("Expected at most 1 linked record, received %d", len(refs))}
		}
	}
	return typed, nil
}

func expected(want string, v any) []string {
	return []string{fmt.Sprintf("Expected %s, received %s", want, shape(v))}
}

func shape(v any) string {
	switch v.(type) {
	case nil:
		return "undefined"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any, []string:
		return "array"
	case map[string]any:
		return "object"
	}
	if isNumber(v) {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	}
	return false
}

func str(v any) (any, []string) {
	s, ok := v.(string)
	if !ok {
		return nil, expected("string", v)
	}
	return s, nil
}

func number(v any) (any, []string) {
	if !isNumber(v) {
		return nil, expected("number", v)
	}
	n, ok := v.(json.Number)
	if !ok {
		return v, nil
	}
	f, err := cast.ToFloat64E(n.String())
	if err != nil {
		return nil, []string{fmt.Sprintf("Invalid number %q", n)}
	}
	return f, nil
}

func boolean(v any) (any, []string) {
	b, ok := v.(bool)
	if !ok {
		return nil, expected("boolean", v)
	}
	return b, nil
}

func stringOrNumber(v any) (any, []string) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	if isNumber(v) {
		return number(v)
	}
	return nil, expected("string | number", v)
}

func never(v any) (any, []string) {
	return nil, expected("never", v)
}

func parseTime(v any) (time.Time, []string) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, expected("string", v)
	}
	t, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, []string{"Invalid date"}
	}
	return t, nil
}

func date(v any) (any, []string) {
	t, issues := parseTime(v)
	if len(issues) > 0 {
		return nil, issues
	}
	return t.UTC().Format(DateLayout), nil
}

func dateTime(v any) (any, []string) {
	if _, issues := parseTime(v); len(issues) > 0 {
		return nil, issues
	}
	return v, nil
}

// reference accepts a record id or an object carrying one.
func reference(v any) (any, []string) {
	switch ref := v.(type) {
	case string:
		return ref, nil
	case map[string]any:
		if _, ok := ref["id"].(string); ok {
			return ref, nil
		}
		return nil, []string{"id: " + MessageRequired}
	}
	return nil, expected("string", v)
}

func array(elem checker) checker {
	return func(v any) (any, []string) {
		var items []any
		switch a := v.(type) {
		case []any:
			items = a
		case []string:
			items = make([]any, len(a))
			for i, s := range a {
				items[i] = s
			}
		default:
			return nil, expected("array", v)
		}

		out := make([]any, 0, len(items))
		var issues []string
		for i, item := range items {
			typed, errs := elem(item)
			for _, e := range errs {
				issues = append(issues, fmt.Sprintf("[%d] %s", i, e))
			}
			out = append(out, typed)
		}
		if len(issues) > 0 {
			return nil, issues
		}
		return out, nil
	}
}

type fieldRule struct {
	name     string
	check    checker
	optional bool
}

func field(name string, check checker) fieldRule {
	return fieldRule{name: name, check: check}
}

func optional(name string, check checker) fieldRule {
	return fieldRule{name: name, check: check, optional: true}
}

// object checks the listed fields and passes unknown fields through.
func object(rules ...fieldRule) checker {
	return func(v any) (any, []string) {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, expected("object", v)
		}

		var issues []string
		for _, r := range rules {
			fv, present := obj[r.name]
			if !present || fv == nil {
				if !r.optional {
					issues = append(issues, r.name+": "+MessageRequired)
				}
				continue
			}
			if _, errs := r.check(fv); len(errs) > 0 {
				for _, e := range errs {
					issues = append(issues, r.name+": "+e)
				}
			}
		}
		if len(issues) > 0 {
			return nil, issues
		}
		return obj, nil
	}
}

var thumbnail = object(field("url", str), field("width", number), field("height", number))

var attachment = object(
	field("id", str),
	field("url", str),
	field("filename", str),
	optional("type", str),
	field("size", number),
	optional("width", number),
	optional("height", number),
	optional("thumbnails", object(field("small", thumbnail), field("large", thumbnail), optional("full", thumbnail))),
)

// collaborator accepts a collaborator object or a bare collaborator id.
func collaborator(v any) (any, []string) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return collaboratorObject(v)
}

var collaboratorObject = object(field("id", str), optional("name", str), optional("email", str))

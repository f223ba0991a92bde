package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/relvacode/iso8601"
	"github.com/spf13/cast"

	"github.com/stokaro/ferry/core/targetschema"
)

// encode converts a field value to the driver value stored in a column.
func (s *Store) encode(col targetschema.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch col.Type {
	case targetschema.Int:
		return cast.ToInt64E(v)
	case targetschema.Float:
		return cast.ToFloat64E(v)
	case targetschema.Bool:
		return cast.ToBoolE(v)
	case targetschema.DateTime:
		if t, ok := v.(time.Time); ok {
			return t.UTC(), nil
		}
		str, err := cast.ToStringE(v)
		if err != nil {
			return nil, err
		}
		t, err := iso8601.ParseString(str)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	case targetschema.Multiple:
		items, err := cast.ToStringSliceE(v)
		if err != nil {
			return nil, err
		}
		if s.dialect == "postgres" {
			return pq.StringArray(items), nil
		}
		b, err := json.Marshal(items)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case targetschema.Object:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case targetschema.Link:
		id, err := cast.ToStringE(v)
		if err != nil || id == "" {
			return nil, err
		}
		return id, nil
	default:
		return cast.ToStringE(v)
	}
}

// scanDest returns the scan destination of a column.
func (s *Store) scanDest(col targetschema.Column) any {
	switch col.Type {
	case targetschema.Int:
		return new(sql.NullInt64)
	case targetschema.Float:
		return new(sql.NullFloat64)
	case targetschema.Bool:
		return new(sql.NullBool)
	case targetschema.DateTime:
		return new(sql.NullTime)
	case targetschema.Multiple:
		if s.dialect == "postgres" {
			return new(pq.StringArray)
		}
		return new([]byte)
	case targetschema.Object:
		return new([]byte)
	default:
		return new(sql.NullString)
	}
}

// decode converts a scanned destination to a field value. It reports false for NULL.
func decode(col targetschema.Column, dest any) (any, bool, error) {
	switch d := dest.(type) {
	case *sql.NullInt64:
		return d.Int64, d.Valid, nil
	case *sql.NullFloat64:
		return d.Float64, d.Valid, nil
	case *sql.NullBool:
		return d.Bool, d.Valid, nil
	case *sql.NullTime:
		return d.Time.UTC().Format(time.RFC3339Nano), d.Valid, nil
	case *sql.NullString:
		return d.String, d.Valid, nil
	case *pq.StringArray:
		if *d == nil {
			return nil, false, nil
		}
		return toAny(*d), true, nil
	case *[]byte:
		if *d == nil {
			return nil, false, nil
		}
		var v any
		if err := json.Unmarshal(*d, &v); err != nil {
			return nil, false, fmt.Errorf("invalid JSON in column %s: %w", col.Name, err)
		}
		return v, true, nil
	default:
		return nil, false, fmt.Errorf("unsupported scan destination %T", dest)
	}
}

func toAny(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

// columnTypeOf maps an information_schema data type back to a target column type.
func columnTypeOf(dataType string) targetschema.ColumnType {
	switch dataType {
	case "bigint", "integer", "int", "smallint":
		return targetschema.Int
	case "double precision", "double", "real", "float", "numeric", "decimal":
		return targetschema.Float
	case "boolean", "tinyint":
		return targetschema.Bool
	case "timestamp with time zone", "timestamp without time zone", "timestamp", "datetime":
		return targetschema.DateTime
	case "array":
		return targetschema.Multiple
	case "json", "jsonb":
		return targetschema.Object
	case "longtext", "mediumtext":
		return targetschema.Text
	default:
		return targetschema.String
	}
}

package sqlstore

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/stokaro/ferry/core/targetschema"
	"github.com/stokaro/ferry/dbschema/types"
)

func newStore(c *qt.C, dialect string) *Store {
	c.Helper()
	s, err := New(nil, Options{Dialect: dialect})
	c.Assert(err, qt.IsNil)
	return s
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		dialect  string
		colType  targetschema.ColumnType
		value    any
		expected any
		err      string
	}{
		{name: "nil", dialect: "postgres", colType: targetschema.Int, value: nil, expected: nil},
		{name: "int from float", dialect: "postgres", colType: targetschema.Int, value: 33.0, expected: int64(33)},
		{name: "int from string", dialect: "mysql", colType: targetschema.Int, value: "42", expected: int64(42)},
		{name: "invalid int", dialect: "mysql", colType: targetschema.Int, value: "abc", err: `.*"abc".*`},
		{name: "float", dialect: "postgres", colType: targetschema.Float, value: 1, expected: 1.0},
		{name: "bool", dialect: "postgres", colType: targetschema.Bool, value: "true", expected: true},
		{name: "string from number", dialect: "postgres", colType: targetschema.String, value: 33, expected: "33"},
		{name: "empty link is null", dialect: "postgres", colType: targetschema.Link, value: "", expected: nil},
		{name: "link", dialect: "mysql", colType: targetschema.Link, value: "t1", expected: "t1"},
		{name: "postgres multiple", dialect: "postgres", colType: targetschema.Multiple, value: []any{"a", "b"}, expected: pq.StringArray{"a", "b"}},
		{name: "mysql multiple", dialect: "mysql", colType: targetschema.Multiple, value: []any{"a", "b"}, expected: `["a","b"]`},
		{name: "object", dialect: "mariadb", colType: targetschema.Object, value: map[string]any{"text": "x"}, expected: `{"text":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			got, err := newStore(c, tt.dialect).encode(targetschema.Column{Name: "col", Type: tt.colType}, tt.value)
			if tt.err != "" {
				c.Assert(err, qt.ErrorMatches, tt.err)
				return
			}
			c.Assert(err, qt.IsNil)
			c.Assert(got, qt.DeepEquals, tt.expected)
		})
	}
}

func TestEncode_DateTime(t *testing.T) {
	c := qt.New(t)
	s := newStore(c, "mysql")
	col := targetschema.Column{Name: "at", Type: targetschema.DateTime}
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	got, err := s.encode(col, "2024-01-02T05:04:05+02:00")
	c.Assert(err, qt.IsNil)
	c.Assert(got.(time.Time).Equal(want), qt.IsTrue)
	c.Assert(got.(time.Time).Location(), qt.Equals, time.UTC)

	_, err = s.encode(col, "yesterday")
	c.Assert(err, qt.IsNotNil)
}

func TestDecode(t *testing.T) {
	col := targetschema.Column{Name: "col"}
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	list := pq.StringArray{"a", "b"}
	raw := []byte(`{"text":"x"}`)
	var null []byte

	tests := []struct {
		name     string
		dest     any
		expected any
		ok       bool
	}{
		{name: "int", dest: &sql.NullInt64{Int64: 3, Valid: true}, expected: int64(3), ok: true},
		{name: "null int", dest: &sql.NullInt64{}, expected: int64(0), ok: false},
		{name: "time", dest: &sql.NullTime{Time: at, Valid: true}, expected: "2024-01-02T03:04:05Z", ok: true},
		{name: "string", dest: &sql.NullString{String: "x", Valid: true}, expected: "x", ok: true},
		{name: "array", dest: &list, expected: []any{"a", "b"}, ok: true},
		{name: "json", dest: &raw, expected: map[string]any{"text": "x"}, ok: true},
		{name: "null json", dest: &null, expected: nil, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			got, ok, err := decode(col, tt.dest)
			c.Assert(err, qt.IsNil)
			c.Assert(ok, qt.Equals, tt.ok)
			c.Assert(got, qt.DeepEquals, tt.expected)
		})
	}
}

func TestReadTableHelpers(t *testing.T) {
	c := qt.New(t)

	c.Assert(columnTypeOf("timestamp with time zone"), qt.Equals, targetschema.DateTime)
	c.Assert(columnTypeOf("array"), qt.Equals, targetschema.Multiple)
	c.Assert(columnTypeOf("jsonb"), qt.Equals, targetschema.Object)
	c.Assert(columnTypeOf("varchar"), qt.Equals, targetschema.String)

	table := targetschema.Table{Name: "teamMember", Columns: []targetschema.Column{
		{Name: "name", Type: targetschema.String},
		{Name: "team_unresolved", Type: targetschema.String},
		{Name: "team", Type: targetschema.String},
	}}
	markLinks(&table)
	c.Assert(table.LinkColumns(), qt.DeepEquals, []string{"team"})
}

func TestLastByID(t *testing.T) {
	c := qt.New(t)

	rows := lastByID([]types.Row{
		{ID: "a", Fields: map[string]any{"n": 1}},
		{ID: "b", Fields: map[string]any{"n": 2}},
		{ID: "a", Fields: map[string]any{"n": 3}},
	})
	c.Assert(rows, qt.DeepEquals, []types.Row{
		{ID: "a", Fields: map[string]any{"n": 3}},
		{ID: "b", Fields: map[string]any{"n": 2}},
	})
}

func TestOnConflict(t *testing.T) {
	c := qt.New(t)

	c.Assert(newStore(c, "postgres").onConflict([]string{"name", "team"}), qt.Equals,
		`ON CONFLICT ("id") DO UPDATE SET "name" = EXCLUDED."name", "team" = EXCLUDED."team"`)
	c.Assert(newStore(c, "postgres").onConflict(nil), qt.Equals, `ON CONFLICT ("id") DO NOTHING`)
	c.Assert(newStore(c, "mysql").onConflict([]string{"name"}), qt.Equals,
		"ON DUPLICATE KEY UPDATE `name` = VALUES(`name`)")
	c.Assert(newStore(c, "mariadb").onConflict(nil), qt.Equals, "ON DUPLICATE KEY UPDATE `id` = `id`")
}

func TestCheckFields(t *testing.T) {
	c := qt.New(t)

	err := checkFields("bulk insert team", targetschema.Table{Name: "team", Columns: []targetschema.Column{{Name: "name"}}},
		map[string]any{"name": "x", "nope": 1})
	c.Assert(err, qt.ErrorMatches, "bulk insert team: status 400: column nope does not exist")
}

func TestTransportError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		retryable bool
	}{
		{name: "foreign key violation", err: &pgconn.PgError{Code: "23503", Message: "violates foreign key"}, status: http.StatusBadRequest},
		{name: "postgres deadlock", err: &pgconn.PgError{Code: "40P01"}, status: http.StatusServiceUnavailable, retryable: true},
		{name: "postgres too many connections", err: &pgconn.PgError{Code: "53300"}, status: http.StatusServiceUnavailable, retryable: true},
		{name: "mysql foreign key violation", err: &mysql.MySQLError{Number: 1452}, status: http.StatusBadRequest},
		{name: "mysql deadlock", err: &mysql.MySQLError{Number: 1213}, status: http.StatusServiceUnavailable, retryable: true},
		{name: "connection failure", err: errors.New("connection reset by peer"), status: 0, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			err := newStore(c, "postgres").transportError("update team/t1", tt.err)

			var te *types.TransportError
			c.Assert(errors.As(err, &te), qt.IsTrue)
			c.Assert(te.Status, qt.Equals, tt.status)
			c.Assert(types.IsRetryable(err), qt.Equals, tt.retryable)
		})
	}
}

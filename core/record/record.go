// Package record defines the records flowing through a migration run.
package record

import (
	"github.com/stokaro/ferry/core/migspec"
)

// Source is a record read from the source store, tagged with its owning table.
type Source struct {
	Table  *migspec.Table
	ID     string
	Fields map[string]any
}

// Reason is one validation failure.
type Reason struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// Validated is the outcome of validating a Source record. Fields are keyed by target
// column name.
type Validated struct {
	Table   *migspec.Table
	ID      string
	Fields  map[string]any
	Reasons []Reason
}

// IsValid reports whether validation produced no reasons.
func (v Validated) IsValid() bool {
	return len(v.Reasons) == 0
}

// WriteOp is one upsert sent to the target store.
type WriteOp struct {
	Table  string
	ID     string
	Fields map[string]any
}

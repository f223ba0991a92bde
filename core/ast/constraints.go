package ast

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"
)

// MaxIdentifierLength is the longest identifier, in bytes, kept intact by every supported
// dialect. Postgres truncates longer names and MySQL rejects them.
const MaxIdentifierLength = 63

// NewPrimaryKeyConstraint creates a table-level primary key constraint.
//
// Example:
//
//	pk := NewPrimaryKeyConstraint("id")
func NewPrimaryKeyConstraint(columns ...string) *ConstraintNode {
	return &ConstraintNode{
		Type:    PrimaryKeyConstraint,
		Columns: columns,
	}
}

// NewForeignKeyConstraint creates a named foreign key constraint.
//
// Example:
//
//	ref := &ForeignKeyRef{Table: "team", Column: "id", OnDelete: "SET NULL"}
//	fk := NewForeignKeyConstraint("fk_teamMember_team", []string{"team"}, ref)
func NewForeignKeyConstraint(name string, columns []string, ref *ForeignKeyRef) *ConstraintNode {
	return &ConstraintNode{
		Type:      ForeignKeyConstraint,
		Name:      name,
		Columns:   columns,
		Reference: ref,
	}
}

// ForeignKeyName returns the conventional constraint name of a link column. Names longer
// than MaxIdentifierLength are cut and end with a short hash of the full name, so distinct
// columns keep distinct names.
func ForeignKeyName(table, column string) string {
	name := "fk_" + table + "_" + column
	if len(name) <= MaxIdentifierLength {
		return name
	}
	sum := sha256.Sum256([]byte(name))
	suffix := "_" + hex.EncodeToString(sum[:4])

	cut := MaxIdentifierLength - len(suffix)
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut] + suffix
}

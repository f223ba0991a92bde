package types

import (
	"github.com/stokaro/ferry/core/ast"
	"github.com/stokaro/ferry/core/targetschema"
)

// RenderVisitor is an ast.Visitor producing the SQL of one dialect.
type RenderVisitor interface {
	ast.Visitor

	// Render resets the output, visits node and returns the SQL it produced
	Render(node ast.Node) (string, error)
	// Dialect returns the dialect name, e.g. "postgres"
	Dialect() string
	// Reset clears the output
	Reset()
	// Output returns the SQL produced since the last Reset
	Output() string
}

// Dialect describes how a SQL target stores the target schema.
type Dialect interface {
	// NewRenderer returns a fresh renderer for the dialect
	NewRenderer() RenderVisitor
	// ColumnType returns the SQL type of a target column type
	ColumnType(t targetschema.ColumnType) string
	// IDType returns the SQL type of the id primary key
	IDType() string
	// QuoteIdentifier quotes a table or column name
	QuoteIdentifier(name string) string
	// Placeholder returns the bind parameter at 1-based position n
	Placeholder(n int) string
}

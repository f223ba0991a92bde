// Package postgres renders PostgreSQL DDL.
package postgres

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/stokaro/ferry/core/ast"
	"github.com/stokaro/ferry/core/renderer/dialects/internal/bufwriter"
	"github.com/stokaro/ferry/core/renderer/types"
	"github.com/stokaro/ferry/core/targetschema"
)

var (
	_ types.RenderVisitor = (*Renderer)(nil)
	_ types.Dialect       = Dialect{}
)

// Renderer provides PostgreSQL-specific SQL rendering
type Renderer struct {
	w bufwriter.Writer
}

// New creates a new PostgreSQL renderer
func New() *Renderer {
	return &Renderer{}
}

// Dialect returns "postgres".
func (r *Renderer) Dialect() string {
	return "postgres"
}

// Reset clears the output.
func (r *Renderer) Reset() {
	r.w.Reset()
}

// Output returns the SQL rendered since the last Reset.
func (r *Renderer) Output() string {
	return r.w.String()
}

// Render renders an AST node to SQL and returns the result
func (r *Renderer) Render(node ast.Node) (string, error) {
	r.Reset()
	if err := node.Accept(r); err != nil {
		return "", err
	}
	return r.Output(), nil
}

// VisitCreateTable renders CREATE TABLE. Table options are MySQL-only and are not rendered.
func (r *Renderer) VisitCreateTable(node *ast.CreateTableNode) error {
	if node.Name == "" {
		return errors.New("table name is required")
	}
	if len(node.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", node.Name)
	}

	r.w.WriteString("CREATE TABLE ")
	if node.IfNotExists {
		r.w.WriteString("IF NOT EXISTS ")
	}
	r.w.Printf("%s (\n", pq.QuoteIdentifier(node.Name))

	lines := len(node.Columns) + len(node.Constraints)
	written := 0
	next := func() {
		written++
		if written < lines {
			r.w.WriteString(",")
		}
		r.w.WriteString("\n")
	}
	for _, col := range node.Columns {
		r.w.WriteString("  ")
		if err := col.Accept(r); err != nil {
			return err
		}
		next()
	}
	for _, cons := range node.Constraints {
		r.w.WriteString("  ")
		if err := cons.Accept(r); err != nil {
			return err
		}
		next()
	}
	r.w.WriteString(");\n")
	return nil
}

// VisitColumn renders a column definition
func (r *Renderer) VisitColumn(node *ast.ColumnNode) error {
	r.w.Printf("%s %s", pq.QuoteIdentifier(node.Name), node.Type)
	switch {
	case node.Primary:
		r.w.WriteString(" PRIMARY KEY")
	case !node.Nullable:
		r.w.WriteString(" NOT NULL")
	}
	return nil
}

// VisitConstraint renders a table-level constraint
func (r *Renderer) VisitConstraint(node *ast.ConstraintNode) error {
	cols := quoteAll(node.Columns)
	switch node.Type {
	case ast.PrimaryKeyConstraint:
		r.w.Printf("PRIMARY KEY (%s)", cols)
	case ast.ForeignKeyConstraint:
		if node.Reference == nil {
			return fmt.Errorf("foreign key %s has no reference", node.Name)
		}
		if node.Name != "" {
			r.w.Printf("CONSTRAINT %s ", pq.QuoteIdentifier(node.Name))
		}
		r.w.Printf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			cols, pq.QuoteIdentifier(node.Reference.Table), pq.QuoteIdentifier(node.Reference.Column))
		if node.Reference.OnDelete != "" {
			r.w.Printf(" ON DELETE %s", node.Reference.OnDelete)
		}
	default:
		return fmt.Errorf("unsupported constraint type %s", node.Type)
	}
	return nil
}

// VisitAlterTable renders ALTER TABLE with its operations separated by commas
func (r *Renderer) VisitAlterTable(node *ast.AlterTableNode) error {
	if len(node.Operations) == 0 {
		return nil
	}
	r.w.Printf("ALTER TABLE %s ", pq.QuoteIdentifier(node.Name))
	for i, op := range node.Operations {
		if i > 0 {
			r.w.WriteString(", ")
		}
		switch op := op.(type) {
		case *ast.AddConstraintOperation:
			r.w.WriteString("ADD ")
			if err := op.Constraint.Accept(r); err != nil {
				return err
			}
		case *ast.DropColumnOperation:
			r.w.Printf("DROP COLUMN IF EXISTS %s", pq.QuoteIdentifier(op.ColumnName))
		default:
			return fmt.Errorf("unsupported alter operation %T", op)
		}
	}
	r.w.WriteString(";\n")
	return nil
}

// VisitDropTable renders DROP TABLE
func (r *Renderer) VisitDropTable(node *ast.DropTableNode) error {
	r.w.WriteString("DROP TABLE ")
	if node.IfExists {
		r.w.WriteString("IF EXISTS ")
	}
	r.w.WriteString(pq.QuoteIdentifier(node.Name))
	if node.Cascade {
		r.w.WriteString(" CASCADE")
	}
	r.w.WriteString(";\n")
	return nil
}

// VisitComment renders an SQL line comment
func (r *Renderer) VisitComment(node *ast.CommentNode) error {
	r.w.Printf("-- %s\n", node.Text)
	return nil
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = pq.QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}

// Dialect describes how PostgreSQL stores the target schema
type Dialect struct{}

func (Dialect) NewRenderer() types.RenderVisitor { return New() }

// ColumnType returns the PostgreSQL type of a target column type
func (Dialect) ColumnType(t targetschema.ColumnType) string {
	switch t {
	case targetschema.Int:
		return "BIGINT"
	case targetschema.Float:
		return "DOUBLE PRECISION"
	case targetschema.Bool:
		return "BOOLEAN"
	case targetschema.DateTime:
		return "TIMESTAMPTZ"
	case targetschema.Multiple:
		return "TEXT[]"
	case targetschema.Object:
		return "JSONB"
	default:
		return "TEXT"
	}
}

func (Dialect) IDType() string { return "TEXT" }

func (Dialect) QuoteIdentifier(name string) string { return pq.QuoteIdentifier(name) }

func (Dialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

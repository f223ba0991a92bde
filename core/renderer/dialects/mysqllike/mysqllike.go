// Package mysqllike renders the SQL shared by MySQL and MariaDB.
package mysqllike

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/stokaro/ferry/core/ast"
	"github.com/stokaro/ferry/core/renderer/dialects/internal/bufwriter"
	"github.com/stokaro/ferry/core/targetschema"
)

// Renderer renders MySQL-family SQL into a shared writer.
type Renderer struct {
	dialect string
	w       *bufwriter.Writer
}

// New creates a renderer for the named dialect writing into w.
func New(dialect string, w *bufwriter.Writer) *Renderer {
	return &Renderer{dialect: dialect, w: w}
}

// Dialect returns the dialect name.
func (r *Renderer) Dialect() string {
	return r.dialect
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

// QuoteIdentifier quotes a name with backticks.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// ColumnType returns the MySQL type of a target column type.
func ColumnType(t targetschema.ColumnType) string {
	switch t {
	case targetschema.Text:
		return "LONGTEXT"
	case targetschema.Int:
		return "BIGINT"
	case targetschema.Float:
		return "DOUBLE"
	case targetschema.Bool:
		return "BOOLEAN"
	case targetschema.DateTime:
		return "DATETIME(3)"
	case targetschema.Multiple, targetschema.Object:
		return "JSON"
	default:
		// string, email and link, plus staging columns; links must match the id type
		return "VARCHAR(255)"
	}
}

// VisitCreateTable renders CREATE TABLE with table options such as ENGINE
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
	r.w.Printf("%s (\n", QuoteIdentifier(node.Name))

	n := len(node.Columns) + len(node.Constraints)
	i := 0
	sep := func() {
		i++
		if i < n {
			r.w.WriteString(",")
		}
		r.w.WriteString("\n")
	}
	for _, col := range node.Columns {
		r.w.WriteString("  ")
		if err := col.Accept(r); err != nil {
			return err
		}
		sep()
	}
	for _, cons := range node.Constraints {
		r.w.WriteString("  ")
		if err := cons.Accept(r); err != nil {
			return err
		}
		sep()
	}
	r.w.WriteString(")")

	for _, key := range slices.Sorted(maps.Keys(node.Options)) {
		r.w.Printf(" %s=%s", key, node.Options[key])
	}
	r.w.WriteString(";\n")
	return nil
}

// VisitColumn renders a column definition
func (r *Renderer) VisitColumn(node *ast.ColumnNode) error {
	r.w.Printf("%s %s", QuoteIdentifier(node.Name), node.Type)
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
			r.w.Printf("CONSTRAINT %s ", QuoteIdentifier(node.Name))
		}
		r.w.Printf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			cols, QuoteIdentifier(node.Reference.Table), QuoteIdentifier(node.Reference.Column))
		if node.Reference.OnDelete != "" {
			r.w.Printf(" ON DELETE %s", node.Reference.OnDelete)
		}
	default:
		return fmt.Errorf("unsupported constraint type %s", node.Type)
	}
	return nil
}

// VisitAlterTable renders ALTER TABLE with its operations separated by commas.
// MariaDB drops columns with IF EXISTS, MySQL has no such clause.
func (r *Renderer) VisitAlterTable(node *ast.AlterTableNode) error {
	if len(node.Operations) == 0 {
		return nil
	}
	r.w.Printf("ALTER TABLE %s ", QuoteIdentifier(node.Name))
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
			r.w.WriteString("DROP COLUMN ")
			if r.dialect == "mariadb" {
				r.w.WriteString("IF EXISTS ")
			}
			r.w.WriteString(QuoteIdentifier(op.ColumnName))
		default:
			return fmt.Errorf("unsupported alter operation %T", op)
		}
	}
	r.w.WriteString(";\n")
	return nil
}

// VisitDropTable renders DROP TABLE. CASCADE is accepted and ignored by MySQL, so it is not rendered.
func (r *Renderer) VisitDropTable(node *ast.DropTableNode) error {
	r.w.WriteString("DROP TABLE ")
	if node.IfExists {
		r.w.WriteString("IF EXISTS ")
	}
	r.w.Printf("%s;\n", QuoteIdentifier(node.Name))
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
		quoted[i] = QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}

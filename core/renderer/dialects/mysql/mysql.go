package mysql

import (
	"github.com/stokaro/ferry/core/ast"
	"github.com/stokaro/ferry/core/renderer/dialects/internal/bufwriter"
	"github.com/stokaro/ferry/core/renderer/dialects/mysqllike"
	"github.com/stokaro/ferry/core/renderer/types"
	"github.com/stokaro/ferry/core/targetschema"
)

var (
	_ types.RenderVisitor = (*Renderer)(nil)
	_ types.Dialect       = Dialect{}
)

// Renderer provides MySQL-specific SQL rendering
type Renderer struct {
	r *mysqllike.Renderer
	w *bufwriter.Writer
}

// New creates a new MySQL renderer
func New() *Renderer {
	w := &bufwriter.Writer{}
	return &Renderer{
		r: mysqllike.New("mysql", w),
		w: w,
	}
}

func (r *Renderer) Dialect() string {
	return r.r.Dialect()
}

func (r *Renderer) Reset() {
	r.r.Reset()
}

func (r *Renderer) Output() string {
	return r.r.Output()
}

// Render renders an AST node to SQL and returns the result
func (r *Renderer) Render(node ast.Node) (string, error) {
	r.Reset()
	if err := node.Accept(r); err != nil {
		return "", err
	}
	return r.Output(), nil
}

// VisitCreateTable renders MySQL-specific CREATE TABLE statements
func (r *Renderer) VisitCreateTable(node *ast.CreateTableNode) error {
	return r.r.VisitCreateTable(node)
}

// VisitAlterTable renders MySQL-specific ALTER TABLE statements
func (r *Renderer) VisitAlterTable(node *ast.AlterTableNode) error {
	return r.r.VisitAlterTable(node)
}

// VisitColumn is called when visiting individual columns (used by other visitors)
func (r *Renderer) VisitColumn(node *ast.ColumnNode) error {
	return r.r.VisitColumn(node)
}

// VisitConstraint is called when visiting table-level constraints
func (r *Renderer) VisitConstraint(node *ast.ConstraintNode) error {
	return r.r.VisitConstraint(node)
}

func (r *Renderer) VisitDropTable(node *ast.DropTableNode) error {
	return r.r.VisitDropTable(node)
}

func (r *Renderer) VisitComment(node *ast.CommentNode) error {
	return r.r.VisitComment(node)
}

// Dialect describes how MySQL stores the target schema
type Dialect struct{}

func (Dialect) NewRenderer() types.RenderVisitor { return New() }

func (Dialect) ColumnType(t targetschema.ColumnType) string { return mysqllike.ColumnType(t) }

func (Dialect) IDType() string { return "VARCHAR(255)" }

func (Dialect) QuoteIdentifier(name string) string { return mysqllike.QuoteIdentifier(name) }

func (Dialect) Placeholder(int) string { return "?" }

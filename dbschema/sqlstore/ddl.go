package sqlstore

import (
	"fmt"
	"strings"

	"github.com/stokaro/ferry/core/ast"
	"github.com/stokaro/ferry/core/renderer/dialects/mariadb"
	"github.com/stokaro/ferry/core/renderer/dialects/mysql"
	"github.com/stokaro/ferry/core/renderer/dialects/postgres"
	rtypes "github.com/stokaro/ferry/core/renderer/types"
	"github.com/stokaro/ferry/core/targetschema"
	"github.com/stokaro/ferry/migration/schemaplan"
)

// IDColumn is the primary key every table gets.
const IDColumn = "id"

// Dialects lists the supported dialect names.
var Dialects = []string{"postgres", "mysql", "mariadb"}

// DialectFor returns the dialect with the given name.
func DialectFor(name string) (rtypes.Dialect, error) {
	switch name {
	case "postgres", "postgresql":
		return postgres.Dialect{}, nil
	case "mysql":
		return mysql.Dialect{}, nil
	case "mariadb":
		return mariadb.Dialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q (supported: %s)", name, strings.Join(Dialects, ", "))
	}
}

// CreateTableNode returns the CREATE TABLE statement of a target table. Links are plain
// columns here; their foreign keys are added by ForeignKeysNode once every table exists.
func CreateTableNode(d rtypes.Dialect, table targetschema.Table) *ast.CreateTableNode {
	node := ast.NewCreateTable(table.Name).
		SetIfNotExists().
		SetOption("ENGINE", "InnoDB").
		SetOption("DEFAULT CHARSET", "utf8mb4").
		AddColumn(ast.NewColumn(IDColumn, d.IDType()).SetPrimary())
	for _, col := range table.Columns {
		node.AddColumn(ast.NewColumn(col.Name, d.ColumnType(col.Type)))
	}
	return node
}

// ForeignKeysNode returns the ALTER TABLE adding a foreign key per link column, or nil
// for a table without links.
func ForeignKeysNode(table targetschema.Table) *ast.AlterTableNode {
	var ops []ast.AlterOperation
	for _, col := range table.Columns {
		if col.Type != targetschema.Link || col.Link == nil {
			continue
		}
		ref := &ast.ForeignKeyRef{Table: col.Link.Table, Column: IDColumn, OnDelete: "SET NULL"}
		fk := ast.NewForeignKeyConstraint(ast.ForeignKeyName(table.Name, col.Name), []string{col.Name}, ref)
		ops = append(ops, &ast.AddConstraintOperation{Constraint: fk})
	}
	if len(ops) == 0 {
		return nil
	}
	return ast.NewAlterTable(table.Name, ops...)
}

// PlanNodes returns the statements applying a schema plan, in execution order: every
// table is created before any foreign key is added, so links may reference tables
// created later in the plan.
func PlanNodes(d rtypes.Dialect, plan *schemaplan.Plan) []ast.Node {
	nodes := []ast.Node{ast.NewComment(fmt.Sprintf("schema plan %d", plan.Version))}
	for _, t := range plan.TablesAdded {
		nodes = append(nodes, CreateTableNode(d, t))
	}
	for _, t := range plan.TablesAdded {
		if fk := ForeignKeysNode(t); fk != nil {
			nodes = append(nodes, fk)
		}
	}
	for _, diff := range plan.TablesModified {
		if len(diff.ColumnsRemoved) == 0 {
			continue
		}
		ops := make([]ast.AlterOperation, len(diff.ColumnsRemoved))
		for i, col := range diff.ColumnsRemoved {
			ops[i] = &ast.DropColumnOperation{ColumnName: col}
		}
		nodes = append(nodes, ast.NewAlterTable(diff.TableName, ops...))
	}
	for _, name := range plan.TablesRemoved {
		nodes = append(nodes, ast.NewDropTable(name).SetIfExists().SetCascade())
	}
	return nodes
}

// RenderPlan renders the statements of a plan as one SQL script.
func RenderPlan(d rtypes.Dialect, plan *schemaplan.Plan) (string, error) {
	r := d.NewRenderer()
	var sb strings.Builder
	for _, node := range PlanNodes(d, plan) {
		sql, err := r.Render(node)
		if err != nil {
			return "", fmt.Errorf("failed to render schema plan %d: %w", plan.Version, err)
		}
		sb.WriteString(sql)
	}
	return sb.String(), nil
}

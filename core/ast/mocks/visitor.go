package mocks

import (
	"errors"

	"github.com/stokaro/ferry/core/ast"
)

// MockVisitor implements the Visitor interface for testing
type MockVisitor struct {
	VisitedNodes []string
	ReturnError  bool
}

func (m *MockVisitor) visit(name string) error {
	m.VisitedNodes = append(m.VisitedNodes, name)
	if m.ReturnError {
		return errors.New("mock error")
	}
	return nil
}

func (m *MockVisitor) VisitCreateTable(node *ast.CreateTableNode) error {
	return m.visit("CreateTable:" + node.Name)
}

func (m *MockVisitor) VisitAlterTable(node *ast.AlterTableNode) error {
	return m.visit("AlterTable:" + node.Name)
}

func (m *MockVisitor) VisitColumn(node *ast.ColumnNode) error {
	return m.visit("Column:" + node.Name)
}

func (m *MockVisitor) VisitConstraint(node *ast.ConstraintNode) error {
	return m.visit("Constraint:" + node.Name)
}

func (m *MockVisitor) VisitDropTable(node *ast.DropTableNode) error {
	return m.visit("DropTable:" + node.Name)
}

func (m *MockVisitor) VisitComment(node *ast.CommentNode) error {
	return m.visit("Comment:" + node.Text)
}

// Package ast models the DDL statements issued against SQL targets.
//
// Nodes are built from the target schema and rendered to dialect-specific SQL by the
// visitors in core/renderer/dialects. Only the statements a migration run needs are
// modelled: table creation, foreign keys added once every table exists, column drops
// for the cleanup plan, and table drops.
package ast

// Node represents any SQL AST node that can be visited by a Visitor.
//
// All AST nodes implement this interface to participate in the visitor pattern.
// The Accept method allows visitors to traverse the AST and generate
// dialect-specific SQL output.
type Node interface {
	// Accept implements the visitor pattern for rendering
	Accept(visitor Visitor) error
}

// Visitor renders nodes. A dialect renderer implements every method.
type Visitor interface {
	VisitCreateTable(node *CreateTableNode) error
	VisitAlterTable(node *AlterTableNode) error
	VisitColumn(node *ColumnNode) error
	VisitConstraint(node *ConstraintNode) error
	VisitDropTable(node *DropTableNode) error
	VisitComment(node *CommentNode) error
}

// CreateTableNode represents a CREATE TABLE statement with all its components.
//
// This node contains the complete definition of a table including columns,
// constraints and dialect-specific options. It supports a fluent API for easy
// construction.
type CreateTableNode struct {
	// Name is the name of the table to create
	Name string
	// Columns contains all column definitions for the table
	Columns []*ColumnNode
	// Constraints contains table-level constraints (PRIMARY KEY, FOREIGN KEY)
	Constraints []*ConstraintNode
	// Options contains dialect-specific table options like ENGINE for MySQL
	Options map[string]string
	// IfNotExists makes the statement a no-op when the table exists
	IfNotExists bool
}

// NewCreateTable creates a new CREATE TABLE node with the specified table name.
//
// Example:
//
//	table := NewCreateTable("teamMember")
func NewCreateTable(name string) *CreateTableNode {
	return &CreateTableNode{
		Name:        name,
		Columns:     make([]*ColumnNode, 0),
		Constraints: make([]*ConstraintNode, 0),
		Options:     make(map[string]string),
	}
}

// Accept implements the Node interface for CreateTableNode.
func (n *CreateTableNode) Accept(visitor Visitor) error {
	return visitor.VisitCreateTable(n)
}

// AddColumn adds a column to the CREATE TABLE statement and returns the table node for chaining.
func (n *CreateTableNode) AddColumn(column *ColumnNode) *CreateTableNode {
	n.Columns = append(n.Columns, column)
	return n
}

// AddConstraint adds a table-level constraint and returns the table node for chaining.
func (n *CreateTableNode) AddConstraint(constraint *ConstraintNode) *CreateTableNode {
	n.Constraints = append(n.Constraints, constraint)
	return n
}

// SetOption sets a dialect-specific table option and returns the table node for chaining.
//
// Example:
//
//	table.SetOption("ENGINE", "InnoDB")
func (n *CreateTableNode) SetOption(key, value string) *CreateTableNode {
	n.Options[key] = value
	return n
}

// SetIfNotExists sets the IF NOT EXISTS option and returns the table node for chaining.
func (n *CreateTableNode) SetIfNotExists() *CreateTableNode {
	n.IfNotExists = true
	return n
}

// ColumnNode represents a table column definition.
type ColumnNode struct {
	// Name is the column name
	Name string
	// Type is the column data type as understood by the dialect (e.g. "TEXT", "JSONB")
	Type string
	// Nullable indicates whether the column allows NULL values (default: true)
	Nullable bool
	// Primary indicates whether this column is the primary key
	Primary bool
}

// NewColumn creates a new nullable column node with the specified name and data type.
func NewColumn(name, dataType string) *ColumnNode {
	return &ColumnNode{
		Name:     name,
		Type:     dataType,
		Nullable: true,
	}
}

// Accept implements the Node interface for ColumnNode.
func (n *ColumnNode) Accept(visitor Visitor) error {
	return visitor.VisitColumn(n)
}

// SetPrimary marks the column as the primary key and returns the column for chaining.
//
// Setting a column as primary automatically makes it NOT NULL, as primary keys
// cannot contain NULL values in SQL.
func (n *ColumnNode) SetPrimary() *ColumnNode {
	n.Primary = true
	n.Nullable = false
	return n
}

// SetNotNull marks the column as NOT NULL and returns the column for chaining.
func (n *ColumnNode) SetNotNull() *ColumnNode {
	n.Nullable = false
	return n
}

// ConstraintType is the kind of a table-level constraint.
type ConstraintType int

const (
	PrimaryKeyConstraint ConstraintType = iota
	ForeignKeyConstraint
)

func (t ConstraintType) String() string {
	switch t {
	case PrimaryKeyConstraint:
		return "PRIMARY KEY"
	case ForeignKeyConstraint:
		return "FOREIGN KEY"
	default:
		return "UNKNOWN"
	}
}

// ForeignKeyRef is the referenced side of a foreign key.
type ForeignKeyRef struct {
	// Table is the referenced table
	Table string
	// Column is the referenced column
	Column string
	// OnDelete is the referential action on delete (e.g. "SET NULL")
	OnDelete string
}

// ConstraintNode represents table-level constraints (PRIMARY KEY, FOREIGN KEY).
//
// Table-level constraints are defined separately from column definitions, either inside
// CREATE TABLE or added later through an AddConstraintOperation.
type ConstraintNode struct {
	// Type specifies the constraint type
	Type ConstraintType
	// Name is the constraint name (optional for primary keys)
	Name string
	// Columns contains the list of column names involved in the constraint
	Columns []string
	// Reference contains foreign key reference information (only for FOREIGN KEY constraints)
	Reference *ForeignKeyRef
}

// Accept implements the Node interface for ConstraintNode.
func (n *ConstraintNode) Accept(visitor Visitor) error {
	return visitor.VisitConstraint(n)
}

// AlterOperation is one operation of an ALTER TABLE statement.
type AlterOperation interface {
	alterOperation()
}

// AddConstraintOperation adds a table-level constraint.
type AddConstraintOperation struct {
	Constraint *ConstraintNode
}

// DropColumnOperation drops a column.
type DropColumnOperation struct {
	ColumnName string
}

func (*AddConstraintOperation) alterOperation() {}
func (*DropColumnOperation) alterOperation()    {}

// AlterTableNode represents ALTER TABLE statements with one or more operations.
type AlterTableNode struct {
	// Name is the name of the table to alter
	Name string
	// Operations contains the list of operations to perform on the table
	Operations []AlterOperation
}

// NewAlterTable creates an ALTER TABLE node for the table.
func NewAlterTable(name string, ops ...AlterOperation) *AlterTableNode {
	return &AlterTableNode{Name: name, Operations: ops}
}

// Accept implements the Node interface for AlterTableNode.
func (n *AlterTableNode) Accept(visitor Visitor) error {
	return visitor.VisitAlterTable(n)
}

// DropTableNode represents a DROP TABLE statement.
type DropTableNode struct {
	// Name is the name of the table to drop
	Name string
	// IfExists makes the statement a no-op when the table is missing
	IfExists bool
	// Cascade drops the objects depending on the table (PostgreSQL)
	Cascade bool
}

// NewDropTable creates a new DROP TABLE node with the specified table name.
func NewDropTable(name string) *DropTableNode {
	return &DropTableNode{Name: name}
}

// SetIfExists sets the IF EXISTS option for the DROP TABLE statement.
func (n *DropTableNode) SetIfExists() *DropTableNode {
	n.IfExists = true
	return n
}

// SetCascade sets the CASCADE option for the DROP TABLE statement.
func (n *DropTableNode) SetCascade() *DropTableNode {
	n.Cascade = true
	return n
}

// Accept implements the Node interface for DropTableNode.
func (n *DropTableNode) Accept(visitor Visitor) error {
	return visitor.VisitDropTable(n)
}

// CommentNode represents an SQL comment included in generated scripts.
type CommentNode struct {
	Text string
}

// NewComment creates a new comment node with the specified text.
func NewComment(text string) *CommentNode {
	return &CommentNode{Text: text}
}

// Accept implements the Node interface for CommentNode.
func (n *CommentNode) Accept(visitor Visitor) error {
	return visitor.VisitComment(n)
}

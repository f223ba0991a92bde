package sqlstore_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/ferry/core/ast"
	"github.com/stokaro/ferry/core/migspec/testutil"
	"github.com/stokaro/ferry/core/targetschema"
	"github.com/stokaro/ferry/core/transform"
	"github.com/stokaro/ferry/dbschema/sqlstore"
	"github.com/stokaro/ferry/migration/schemaplan"
)

var (
	team = targetschema.Table{
		Name:    "team",
		Columns: []targetschema.Column{{Name: "name", Type: targetschema.Text}},
	}
	member = targetschema.Table{
		Name: "teamMember",
		Columns: []targetschema.Column{
			{Name: "team_unresolved", Type: targetschema.String},
			{Name: "team", Type: targetschema.Link, Link: &targetschema.LinkRef{Table: "team"}},
		},
	}
)

func TestRenderPlan(t *testing.T) {
	initial := schemaplan.Initial(targetschema.NewSchema(member, team))
	cleanup := schemaplan.Cleanup([]schemaplan.TableDiff{schemaplan.CleanupDiff(member)}, []string{"team_error"})

	tests := []struct {
		name     string
		dialect  string
		plan     *schemaplan.Plan
		expected string
	}{
		{
			name:    "postgres initial plan adds foreign keys after every table",
			dialect: "postgres",
			plan:    initial,
			expected: "-- schema plan 1\n" +
				"CREATE TABLE IF NOT EXISTS \"teamMember\" (\n" +
				"  \"id\" TEXT PRIMARY KEY,\n" +
				"  \"team_unresolved\" TEXT,\n" +
				"  \"team\" TEXT\n" +
				");\n" +
				"CREATE TABLE IF NOT EXISTS \"team\" (\n" +
				"  \"id\" TEXT PRIMARY KEY,\n" +
				"  \"name\" TEXT\n" +
				");\n" +
				"ALTER TABLE \"teamMember\" ADD CONSTRAINT \"fk_teamMember_team\" FOREIGN KEY (\"team\") REFERENCES \"team\" (\"id\") ON DELETE SET NULL;\n",
		},
		{
			name:    "mysql initial plan",
			dialect: "mysql",
			plan:    schemaplan.Initial(targetschema.NewSchema(team)),
			expected: "-- schema plan 1\n" +
				"CREATE TABLE IF NOT EXISTS `team` (\n" +
				"  `id` VARCHAR(255) PRIMARY KEY,\n" +
				"  `name` LONGTEXT\n" +
				") DEFAULT CHARSET=utf8mb4 ENGINE=InnoDB;\n",
		},
		{
			name:    "postgres cleanup plan",
			dialect: "postgres",
			plan:    cleanup,
			expected: "-- schema plan 2\n" +
				"ALTER TABLE \"teamMember\" DROP COLUMN IF EXISTS \"team_unresolved\";\n" +
				"DROP TABLE IF EXISTS \"team_error\" CASCADE;\n",
		},
		{
			name:    "mysql cleanup plan",
			dialect: "mysql",
			plan:    cleanup,
			expected: "-- schema plan 2\n" +
				"ALTER TABLE `teamMember` DROP COLUMN `team_unresolved`;\n" +
				"DROP TABLE IF EXISTS `team_error`;\n",
		},
		{
			name:     "empty plan",
			dialect:  "mariadb",
			plan:     schemaplan.Cleanup(nil, nil),
			expected: "-- schema plan 2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			d, err := sqlstore.DialectFor(tt.dialect)
			c.Assert(err, qt.IsNil)

			sql, err := sqlstore.RenderPlan(d, tt.plan)
			c.Assert(err, qt.IsNil)
			c.Assert(sql, qt.Equals, tt.expected)
		})
	}
}

func TestPlanNodes_TeamMigration(t *testing.T) {
	c := qt.New(t)

	schema, err := transform.Transform(testutil.TeamMigration())
	c.Assert(err, qt.IsNil)
	d, err := sqlstore.DialectFor("postgres")
	c.Assert(err, qt.IsNil)

	// comment, five tables, then the foreign keys of teamMember and teamMember_teams
	nodes := sqlstore.PlanNodes(d, schemaplan.Initial(schema))
	c.Assert(nodes, qt.HasLen, 8)

	fk := sqlstore.ForeignKeysNode(schema.Tables()[3])
	c.Assert(fk.Name, qt.Equals, "teamMember_teams")
	c.Assert(fk.Operations, qt.HasLen, 2)

	c.Assert(sqlstore.ForeignKeysNode(schema.Tables()[0]), qt.IsNil)
}

func TestForeignKeysNode_LongJunctionName(t *testing.T) {
	c := qt.New(t)

	owner := "quarterlyRegionalSalesPerformanceReport"
	junction := targetschema.JunctionTable(
		targetschema.JunctionTableName(owner, "relatedReports"), owner, owner, "relatedReports")

	alter := sqlstore.ForeignKeysNode(junction)
	c.Assert(alter.Operations, qt.HasLen, 2)

	var names []string
	for _, op := range alter.Operations {
		add, ok := op.(*ast.AddConstraintOperation)
		c.Assert(ok, qt.IsTrue)
		c.Assert(len(add.Constraint.Name) <= ast.MaxIdentifierLength, qt.IsTrue, qt.Commentf("name %s", add.Constraint.Name))
		c.Assert(add.Constraint.Name, qt.Matches, `fk_quarterlyRegionalSalesPerformanceReport_.*_[0-9a-f]{8}`)
		names = append(names, add.Constraint.Name)
	}
	c.Assert(names[0], qt.Not(qt.Equals), names[1])

	d, err := sqlstore.DialectFor("mysql")
	c.Assert(err, qt.IsNil)
	sql, err := sqlstore.RenderPlan(d, schemaplan.Initial(targetschema.NewSchema(junction)))
	c.Assert(err, qt.IsNil)
	c.Assert(sql, qt.Contains, "CONSTRAINT `"+names[0]+"` FOREIGN KEY")
}

func TestDialectFor(t *testing.T) {
	c := qt.New(t)

	for _, name := range append(sqlstore.Dialects, "postgresql") {
		_, err := sqlstore.DialectFor(name)
		c.Assert(err, qt.IsNil, qt.Commentf("dialect %s", name))
	}

	_, err := sqlstore.DialectFor("oracle")
	c.Assert(err, qt.ErrorMatches, `unsupported dialect "oracle" \(supported: postgres, mysql, mariadb\)`)
}

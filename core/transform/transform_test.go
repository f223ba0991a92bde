package transform_test

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/ferry/core/migspec"
	"github.com/stokaro/ferry/core/migspec/testutil"
	"github.com/stokaro/ferry/core/sourcetype"
	"github.com/stokaro/ferry/core/targetschema"
	"github.com/stokaro/ferry/core/transform"
)

func TestTransform_TeamMigration(t *testing.T) {
	c := qt.New(t)

	schema, err := transform.Transform(testutil.TeamMigration())
	c.Assert(err, qt.IsNil)

	c.Assert(schema.Names(), qt.DeepEquals, []string{
		"team",
		"team_error",
		"teamMember",
		"teamMember_teams",
		"teamMember_error",
	})

	team, _ := schema.Table("team")
	c.Assert(team.Columns, qt.DeepEquals, []targetschema.Column{
		{Name: "name", Type: targetschema.Text},
		{Name: "age", Type: targetschema.Int},
		{Name: "email", Type: targetschema.Email},
	})

	member, _ := schema.Table("teamMember")
	c.Assert(member.Columns, qt.DeepEquals, []targetschema.Column{
		{Name: "name", Type: targetschema.Text},
		{Name: "team_unresolved", Type: targetschema.String},
		{Name: "team", Type: targetschema.Link, Link: &targetschema.LinkRef{Table: "team"}},
	})

	junction, _ := schema.Table("teamMember_teams")
	c.Assert(junction.Kind, qt.Equals, targetschema.KindJunction)
	c.Assert(junction.Columns, qt.DeepEquals, []targetschema.Column{
		{Name: "teamMember", Type: targetschema.Link, Link: &targetschema.LinkRef{Table: "teamMember"}},
		{Name: "teamMember_unresolved", Type: targetschema.String},
		{Name: "team", Type: targetschema.Link, Link: &targetschema.LinkRef{Table: "team"}},
		{Name: "team_unresolved", Type: targetschema.String},
	})

	memberErrors, _ := schema.Table("teamMember_error")
	c.Assert(memberErrors.Columns, qt.DeepEquals, []targetschema.Column{
		{Name: "__reasons", Type: targetschema.Text},
		{Name: "name", Type: targetschema.Text},
		{Name: "team_unresolved", Type: targetschema.Text},
	})
}

func TestTransform_KitchenSink(t *testing.T) {
	c := qt.New(t)

	schema, err := transform.Transform(testutil.KitchenSinkMigration())
	c.Assert(err, qt.IsNil)

	c.Assert(schema.Names(), qt.DeepEquals, []string{
		"products",
		"attachments",
		"products_pictures",
		"collaborators",
		"products_reviewers",
		"products_related",
		"products_error",
	})

	products, _ := schema.Table("products")
	c.Assert(products.Columns, qt.DeepEquals, []targetschema.Column{
		{Name: "name", Type: targetschema.String},
		{Name: "price", Type: targetschema.Float},
		{Name: "released", Type: targetschema.DateTime},
		{Name: "tags", Type: targetschema.Multiple},
		{Name: "code", Type: targetschema.Object, Columns: targetschema.BarcodeColumns()},
		{Name: "owner_unresolved", Type: targetschema.String},
		{Name: "owner", Type: targetschema.Link, Link: &targetschema.LinkRef{Table: "collaborators"}},
	})

	attachments, _ := schema.Table("attachments")
	c.Assert(attachments, qt.DeepEquals, targetschema.AttachmentsTableSpec())

	pictures, _ := schema.Table("products_pictures")
	c.Assert(pictures.LinkColumns(), qt.DeepEquals, []string{"products", "attachments"})

	related, _ := schema.Table("products_related")
	c.Assert(related.Columns[0].Name, qt.Equals, "products")
	c.Assert(related.Columns[2].Name, qt.Equals, "related")
	c.Assert(related.Columns[2].Link.Table, qt.Equals, "products")
}

func TestTransform_Deterministic(t *testing.T) {
	c := qt.New(t)

	for _, m := range []*migspec.Migration{testutil.TeamMigration(), testutil.KitchenSinkMigration()} {
		first, err := transform.Transform(m)
		c.Assert(err, qt.IsNil)
		second, err := transform.Transform(m)
		c.Assert(err, qt.IsNil)
		c.Assert(second.Tables(), qt.DeepEquals, first.Tables())
	}
}

func TestTransform_ErrorTableColumnCompleteness(t *testing.T) {
	c := qt.New(t)

	m := testutil.KitchenSinkMigration()
	m.Tables = append(m.Tables, testutil.TeamMigration().Tables...)

	schema, err := transform.Transform(m)
	c.Assert(err, qt.IsNil)

	for i := range m.Tables {
		name := m.TargetTableName(&m.Tables[i])
		success, ok := schema.Table(name)
		c.Assert(ok, qt.IsTrue)
		errTable, ok := schema.Table(m.ErrorTableNameOf(name))
		c.Assert(ok, qt.IsTrue)

		nonLink := len(success.Columns) - len(success.LinkColumns())
		c.Assert(errTable.Columns, qt.HasLen, nonLink+1, qt.Commentf("table %s", name))
		for _, col := range errTable.Columns {
			c.Assert(col.Type, qt.Equals, targetschema.Text)
		}
	}
}

func TestTransform_JunctionTablesAreNotShared(t *testing.T) {
	c := qt.New(t)

	m := &migspec.Migration{
		Tables: []migspec.Table{
			{SourceTableName: "tag", Columns: []migspec.Column{{SourceColumnName: "label", SourceColumnType: sourcetype.Text}}},
			{SourceTableName: "post", Columns: []migspec.Column{
				{SourceColumnName: "tags", SourceColumnType: sourcetype.MultipleRecordLinks, LinkSourceTableName: "tag", AllowMultipleRecords: true},
			}},
			{SourceTableName: "page", Columns: []migspec.Column{
				{SourceColumnName: "tags", SourceColumnType: sourcetype.MultipleRecordLinks, LinkSourceTableName: "tag", AllowMultipleRecords: true},
			}},
		},
	}

	schema, err := transform.Transform(m)
	c.Assert(err, qt.IsNil)
	c.Assert(schema.Has("post_tags"), qt.IsTrue)
	c.Assert(schema.Has("page_tags"), qt.IsTrue)
}

func TestTransform_SatelliteTablesCreatedOnce(t *testing.T) {
	c := qt.New(t)

	m := &migspec.Migration{
		Tables: []migspec.Table{
			{SourceTableName: "a", Columns: []migspec.Column{{SourceColumnName: "files", SourceColumnType: sourcetype.MultipleAttachments}}},
			{SourceTableName: "b", Columns: []migspec.Column{{SourceColumnName: "files", SourceColumnType: sourcetype.MultipleAttachments}}},
		},
	}

	schema, err := transform.Transform(m)
	c.Assert(err, qt.IsNil)
	c.Assert(schema.Names(), qt.DeepEquals, []string{"a", "attachments", "a_files", "a_error", "b", "b_files", "b_error"})
}

func TestTransform_OverrideWins(t *testing.T) {
	c := qt.New(t)

	m := &migspec.Migration{
		Tables: []migspec.Table{{SourceTableName: "t", Columns: []migspec.Column{
			{SourceColumnName: "total", SourceColumnType: sourcetype.Formula, TargetColumnType: targetschema.Float},
			{SourceColumnName: "Label", SourceColumnType: sourcetype.Text, TargetColumnName: "title"},
		}}},
	}

	schema, err := transform.Transform(m)
	c.Assert(err, qt.IsNil)
	table, _ := schema.Table("t")
	c.Assert(table.Columns, qt.DeepEquals, []targetschema.Column{
		{Name: "total", Type: targetschema.Float},
		{Name: "title", Type: targetschema.Text},
	})
}

func TestTransform_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name    string
		tables  []migspec.Table
		pattern string
	}{
		{
			name: "unknown link table",
			tables: []migspec.Table{{SourceTableName: "member", Columns: []migspec.Column{
				{SourceColumnName: "team", SourceColumnType: sourcetype.MultipleRecordLinks, LinkSourceTableName: "ghost"},
			}}},
			pattern: `configuration error in table "member", column "team": "ghost" link table not found`,
		},
		{
			name: "invalid source type",
			tables: []migspec.Table{{SourceTableName: "member", Columns: []migspec.Column{
				{SourceColumnName: "x"},
			}}},
			pattern: `.*invalid source column type`,
		},
		{
			name: "unknown target type",
			tables: []migspec.Table{{SourceTableName: "member", Columns: []migspec.Column{
				{SourceColumnName: "x", SourceColumnType: sourcetype.Formula, TargetColumnType: "decimal"},
			}}},
			pattern: `.*unknown target column type "decimal"`,
		},
		{
			name: "duplicate target table",
			tables: []migspec.Table{
				{SourceTableName: "Team"},
				{SourceTableName: "team"},
			},
			pattern: `.*target table name "team" already used by "Team"`,
		},
		{
			name: "success table named like a satellite table",
			tables: []migspec.Table{
				{SourceTableName: "products", Columns: []migspec.Column{
					{SourceColumnName: "pics", SourceColumnType: sourcetype.MultipleAttachments},
				}},
				{SourceTableName: "attachments", Columns: []migspec.Column{
					{SourceColumnName: "label", SourceColumnType: sourcetype.Text},
				}},
			},
			pattern: `configuration error in table "attachments": target table name "attachments" already used by "products"`,
		},
		{
			name: "satellite table named like a success table",
			tables: []migspec.Table{
				{SourceTableName: "collaborators"},
				{SourceTableName: "task", Columns: []migspec.Column{
					{SourceColumnName: "owner", SourceColumnType: sourcetype.SingleCollaborator},
				}},
			},
			pattern: `.*target table name "collaborators" already used by "collaborators"`,
		},
		{
			name: "success table named like a junction table",
			tables: []migspec.Table{
				{SourceTableName: "team", Columns: []migspec.Column{
					{SourceColumnName: "members", SourceColumnType: sourcetype.MultipleRecordLinks, LinkSourceTableName: "team", AllowMultipleRecords: true},
				}},
				{SourceTableName: "roster", TargetTableName: "team_members"},
			},
			pattern: `configuration error in table "roster": target table name "team_members" already used by "team"`,
		},
		{
			name: "success table named like an error table",
			tables: []migspec.Table{
				{SourceTableName: "team"},
				{SourceTableName: "failures", TargetTableName: "team_error"},
			},
			pattern: `.*target table name "team_error" already used by "team"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)

			schema, err := transform.Transform(&migspec.Migration{Tables: tt.tables})
			c.Assert(schema, qt.IsNil)
			c.Assert(err, qt.ErrorMatches, tt.pattern)

			var cfgErr *transform.ConfigurationError
			c.Assert(errors.As(err, &cfgErr), qt.IsTrue)
		})
	}
}

package verifier_test

import (
	"context"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/ferry/core/migspec/testutil"
	"github.com/stokaro/ferry/core/targetschema"
	"github.com/stokaro/ferry/core/transform"
	"github.com/stokaro/ferry/dbschema/memory"
	"github.com/stokaro/ferry/migration/schemaplan"
	"github.com/stokaro/ferry/migration/verifier"
)

type stubChecker map[string]bool

func (s stubChecker) HasUnresolvedLinks(_ context.Context, table targetschema.Table) (bool, error) {
	has, ok := s[table.Name]
	if !ok {
		return false, errors.New("boom")
	}
	return has, nil
}

func schema(c *qt.C) *targetschema.Schema {
	c.Helper()
	s, err := transform.Transform(testutil.TeamMigration())
	c.Assert(err, qt.IsNil)
	return s
}

func TestVerify(t *testing.T) {
	c := qt.New(t)

	res, err := verifier.New(schema(c), stubChecker{"teamMember": false, "teamMember_teams": true}).Verify(context.Background())
	c.Assert(err, qt.IsNil)

	c.Assert(res.ErrorTables, qt.DeepEquals, []string{"teamMember_teams"})
	c.Assert(res.ResolvedTableMigrations, qt.DeepEquals, []schemaplan.TableDiff{{
		TableName:      "teamMember",
		ColumnsRemoved: []string{"team_unresolved"},
		NewColumnOrder: []string{"name", "team"},
	}})
	c.Assert(res.Resolved("teamMember"), qt.IsTrue)
	c.Assert(res.Resolved("teamMember_teams"), qt.IsFalse)
}

func TestVerify_CheckerFailure(t *testing.T) {
	c := qt.New(t)

	_, err := verifier.New(schema(c), stubChecker{"teamMember": false}).WithConcurrency(1).Verify(context.Background())
	c.Assert(err, qt.ErrorMatches, `failed to check links of teamMember_teams: boom`)
}

func TestReaderChecker(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	s := schema(c)
	store := memory.New(memory.Options{PageSize: 1})
	c.Assert(store.ApplyPlan(ctx, schemaplan.Initial(s)), qt.IsNil)
	member, _ := s.Table("teamMember")
	checker := verifier.ReaderChecker{Reader: store}

	c.Assert(store.Upsert(ctx, "teamMember", "m1", map[string]any{"team_unresolved": "t1", "team": "t1"}), qt.IsNil)
	c.Assert(store.Upsert(ctx, "teamMember", "m2", map[string]any{"name": "no link"}), qt.IsNil)
	has, err := checker.HasUnresolvedLinks(ctx, member)
	c.Assert(err, qt.IsNil)
	c.Assert(has, qt.IsFalse)

	c.Assert(store.Upsert(ctx, "teamMember", "m3", map[string]any{"team_unresolved": "t9"}), qt.IsNil)
	has, err = checker.HasUnresolvedLinks(ctx, member)
	c.Assert(err, qt.IsNil)
	c.Assert(has, qt.IsTrue)
}

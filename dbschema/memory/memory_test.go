package memory_test

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/ferry/core/migspec/testutil"
	"github.com/stokaro/ferry/core/transform"
	"github.com/stokaro/ferry/dbschema/memory"
	"github.com/stokaro/ferry/dbschema/types"
	"github.com/stokaro/ferry/migration/schemaplan"
)

func newStore(c *qt.C, opts memory.Options) *memory.Store {
	c.Helper()

	schema, err := transform.Transform(testutil.TeamMigration())
	c.Assert(err, qt.IsNil)

	store := memory.New(opts)
	c.Assert(store.ApplyPlan(context.Background(), schemaplan.Initial(schema)), qt.IsNil)
	return store
}

func TestStore_UpsertIsIdempotent(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	store := newStore(c, memory.Options{})

	fields := map[string]any{"name": "fabien", "age": 33}
	c.Assert(store.Upsert(ctx, "team", "rec1", fields), qt.IsNil)
	once, _ := store.Row("team", "rec1")

	c.Assert(store.Upsert(ctx, "team", "rec1", fields), qt.IsNil)
	twice, _ := store.Row("team", "rec1")

	c.Assert(twice, qt.DeepEquals, once)
	c.Assert(store.Count("team"), qt.Equals, 1)
}

func TestStore_LastWriteWins(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	store := newStore(c, memory.Options{})

	c.Assert(store.BulkUpsert(ctx, "team", []types.Row{
		{ID: "rec1", Fields: map[string]any{"name": "a", "age": 1}},
		{ID: "rec1", Fields: map[string]any{"name": "b"}},
	}), qt.IsNil)

	row, ok := store.Row("team", "rec1")
	c.Assert(ok, qt.IsTrue)
	c.Assert(row, qt.DeepEquals, map[string]any{"name": "b"})
}

func TestStore_RejectsUnknownColumn(t *testing.T) {
	c := qt.New(t)
	store := newStore(c, memory.Options{})

	err := store.Upsert(context.Background(), "team", "rec1", map[string]any{"nope": 1})
	c.Assert(err, qt.ErrorMatches, `write team: status 400: column nope does not exist`)
}

func TestStore_EnforceLinks(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	store := newStore(c, memory.Options{EnforceLinks: true})

	c.Assert(store.Upsert(ctx, "teamMember", "m1", map[string]any{"name": "x", "team_unresolved": "t1"}), qt.IsNil)

	err := store.Update(ctx, "teamMember", "m1", map[string]any{"team": "t1"})
	c.Assert(err, qt.ErrorMatches, `.*invalid link: record "t1" not found in team`)
	c.Assert(types.IsRetryable(err), qt.IsFalse)

	c.Assert(store.Upsert(ctx, "team", "t1", map[string]any{"name": "T"}), qt.IsNil)
	c.Assert(store.Update(ctx, "teamMember", "m1", map[string]any{"team": "t1"}), qt.IsNil)

	row, _ := store.Row("teamMember", "m1")
	c.Assert(row, qt.DeepEquals, map[string]any{"name": "x", "team_unresolved": "t1", "team": "t1"})
}

func TestStore_UpdateMissingRow(t *testing.T) {
	c := qt.New(t)
	store := newStore(c, memory.Options{})

	err := store.Update(context.Background(), "team", "ghost", map[string]any{"name": "x"})
	c.Assert(err, qt.ErrorMatches, `update team: status 404: record ghost not found`)
}

func TestStore_Pagination(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	store := newStore(c, memory.Options{PageSize: 2})

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		c.Assert(store.Upsert(ctx, "team", id, map[string]any{"name": id}), qt.IsNil)
	}

	var ids []string
	for row, err := range types.Rows(ctx, store, "team", "") {
		c.Assert(err, qt.IsNil)
		ids = append(ids, row.ID)
	}
	c.Assert(ids, qt.DeepEquals, []string{"a", "b", "c", "d", "e"})

	// restart from a cursor
	page, err := store.ReadPage(ctx, "team", "4")
	c.Assert(err, qt.IsNil)
	c.Assert(page.Rows, qt.HasLen, 1)
	c.Assert(page.Cursor, qt.Equals, "")
}

func TestStore_HasUnresolvedLinks(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	store := newStore(c, memory.Options{})
	member, _ := store.Table("teamMember")

	c.Assert(store.Upsert(ctx, "teamMember", "m1", map[string]any{"name": "x"}), qt.IsNil)
	has, err := store.HasUnresolvedLinks(ctx, member)
	c.Assert(err, qt.IsNil)
	c.Assert(has, qt.IsFalse)

	c.Assert(store.Upsert(ctx, "teamMember", "m2", map[string]any{"team_unresolved": "t1"}), qt.IsNil)
	has, err = store.HasUnresolvedLinks(ctx, member)
	c.Assert(err, qt.IsNil)
	c.Assert(has, qt.IsTrue)

	c.Assert(store.Update(ctx, "teamMember", "m2", map[string]any{"team": "t1"}), qt.IsNil)
	has, err = store.HasUnresolvedLinks(ctx, member)
	c.Assert(err, qt.IsNil)
	c.Assert(has, qt.IsFalse)
}

func TestStore_ApplyCleanupPlan(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	store := newStore(c, memory.Options{})
	member, _ := store.Table("teamMember")

	c.Assert(store.Upsert(ctx, "teamMember", "m1", map[string]any{"name": "x", "team_unresolved": "t1", "team": "t1"}), qt.IsNil)

	plan := schemaplan.Cleanup([]schemaplan.TableDiff{schemaplan.CleanupDiff(member)}, []string{"team_error"})
	c.Assert(store.ApplyPlan(ctx, plan), qt.IsNil)

	cleaned, _ := store.Table("teamMember")
	c.Assert(cleaned.FinalColumnOrder(), qt.DeepEquals, []string{"name", "team"})
	row, _ := store.Row("teamMember", "m1")
	c.Assert(row, qt.DeepEquals, map[string]any{"name": "x", "team": "t1"})

	_, ok := store.Table("team_error")
	c.Assert(ok, qt.IsFalse)
}

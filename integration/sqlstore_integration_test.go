//go:build integration

package integration_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/ferry/config"
	"github.com/stokaro/ferry/core/migspec/testutil"
	"github.com/stokaro/ferry/dbschema"
	"github.com/stokaro/ferry/dbschema/sqlstore"
	"github.com/stokaro/ferry/dbschema/types"
	"github.com/stokaro/ferry/migration/migrator"
)

// source serves every row of a table in a single page.
type source map[string][]types.Row

func (s source) ReadPage(_ context.Context, table, _ string) (types.Page, error) {
	rows, ok := s[table]
	if !ok {
		return types.Page{}, errors.New("unknown table " + table)
	}
	return types.Page{Rows: rows}, nil
}

var targets = []struct {
	service string
	env     string
}{
	{service: "postgres", env: "POSTGRES_TEST_DSN"},
	{service: "mysql", env: "MYSQL_TEST_DSN"},
	{service: "mariadb", env: "MARIADB_TEST_DSN"},
}

// reset drops every table a run of the team migration may leave behind.
func reset(c *qt.C, service, dsn string) {
	c.Helper()
	db, err := dbschema.Connect(dsn)
	c.Assert(err, qt.IsNil)
	defer db.Close()

	d, err := sqlstore.DialectFor(service)
	c.Assert(err, qt.IsNil)
	cascade := ""
	if service == "postgres" {
		cascade = " CASCADE"
	}
	for _, table := range []string{"teamMember_teams", "teamMember_error", "teamMember", "team_error", "team", sqlstore.PlansTable} {
		_, err := db.Exec("DROP TABLE IF EXISTS " + d.QuoteIdentifier(table) + cascade)
		c.Assert(err, qt.IsNil)
	}
}

func TestMigrator_SQLTargets(t *testing.T) {
	for _, tt := range targets {
		t.Run(tt.service, func(t *testing.T) {
			dsn := os.Getenv(tt.env)
			if dsn == "" {
				t.Skipf("Skipping %s integration test: %s environment variable not set", tt.service, tt.env)
			}
			c := qt.New(t)
			ctx := context.Background()
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			reset(c, tt.service, dsn)

			target, err := dbschema.OpenTarget(config.TargetConfig{Service: tt.service, DSN: dsn, DatabaseName: "ferry"}, logger)
			c.Assert(err, qt.IsNil)
			defer target.Close()

			src := source{
				"tblTeam": {
					{ID: "t1", Fields: map[string]any{"name": "Core", "age": 3, "email": "core@example.com"}},
					{ID: "t2", Fields: map[string]any{"name": "Ops", "age": "old"}},
				},
				"tblTeamMember": {
					{ID: "m1", Fields: map[string]any{"name": "Ann", "team": []any{"t1"}, "teams": []any{"t1"}}},
					{ID: "m2", Fields: map[string]any{"name": "Bob", "team": []any{"t2"}}},
				},
			}
			opts := config.DefaultOptions().WithResolveInterval(time.Millisecond)
			mig, err := migrator.NewMigrator(testutil.TeamMigration(), src, target, opts)
			c.Assert(err, qt.IsNil)

			report, err := mig.WithLogger(logger).Run(ctx)
			c.Assert(err, qt.IsNil)

			team, _ := report.Table("team")
			c.Assert(team.Written, qt.Equals, 1)
			c.Assert(team.Diverted, qt.Equals, 1)

			// t2 went to the error table, so the target refuses the link of m2.
			c.Assert(report.Unresolved(), qt.DeepEquals, []string{"teamMember"})
			c.Assert(report.RowErrors, qt.HasLen, 1)
			c.Assert(report.RowErrors[0].ID, qt.Equals, "m2")

			junction, _ := report.Table("teamMember_teams")
			c.Assert(junction.Links, qt.Equals, migrator.LinksResolved)

			page, err := target.ReadPage(ctx, "teamMember", "")
			c.Assert(err, qt.IsNil)
			c.Assert(page.Rows, qt.HasLen, 2)
			c.Assert(page.Rows[0].ID, qt.Equals, "m1")
			c.Assert(page.Rows[0].Fields["team"], qt.Equals, "t1")

			page, err = target.ReadPage(ctx, "teamMember_teams", "")
			c.Assert(err, qt.IsNil)
			c.Assert(page.Rows, qt.HasLen, 1)
			_, staged := page.Rows[0].Fields["team_unresolved"]
			c.Assert(staged, qt.IsFalse)
		})
	}
}

// Package verifier checks that every staging value was turned into a link.
package verifier

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/stokaro/ferry/core/targetschema"
	"github.com/stokaro/ferry/dbschema/types"
	"github.com/stokaro/ferry/migration/schemaplan"
)

// Result is the outcome of a verification.
type Result struct {
	// ResolvedTableMigrations holds the cleanup of every fully resolved table, in schema order.
	ResolvedTableMigrations []schemaplan.TableDiff

	// ErrorTables holds the tables that still have unresolved links, in schema order.
	ErrorTables []string
}

// Resolved reports whether the table has a cleanup instruction.
func (r *Result) Resolved(table string) bool {
	for _, d := range r.ResolvedTableMigrations {
		if d.TableName == table {
			return true
		}
	}
	return false
}

// Verifier checks the link tables of a schema.
type Verifier struct {
	schema      *targetschema.Schema
	checker     types.LinkChecker
	concurrency int
	logger      *slog.Logger
}

// New creates a verifier.
func New(schema *targetschema.Schema, checker types.LinkChecker) *Verifier {
	return &Verifier{schema: schema, checker: checker, concurrency: 4, logger: slog.Default()}
}

// WithLogger sets the logger for the verifier
func (v *Verifier) WithLogger(l *slog.Logger) *Verifier {
	tmp := *v
	tmp.logger = l
	return &tmp
}

// WithConcurrency sets how many tables are checked at once
func (v *Verifier) WithConcurrency(n int) *Verifier {
	tmp := *v
	tmp.concurrency = max(n, 1)
	return &tmp
}

// Verify checks every table with link columns. A fully resolved table gets a cleanup
// instruction; a table with unresolved links is listed in ErrorTables and keeps its
// staging columns.
func (v *Verifier) Verify(ctx context.Context) (*Result, error) {
	tables := v.schema.TablesWithLinks()
	unresolved := make([]bool, len(tables))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for i, table := range tables {
		g.Go(func() error {
			has, err := v.checker.HasUnresolvedLinks(ctx, table)
			if err != nil {
				return fmt.Errorf("failed to check links of %s: %w", table.Name, err)
			}
			unresolved[i] = has
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	for i, table := range tables {
		if unresolved[i] {
			v.logger.Warn("Table has unresolved links", "table", table.Name)
			res.ErrorTables = append(res.ErrorTables, table.Name)
			continue
		}
		res.ResolvedTableMigrations = append(res.ResolvedTableMigrations, schemaplan.CleanupDiff(table))
	}
	return res, nil
}

// ReaderChecker implements types.LinkChecker by scanning every row of a table.
// It serves targets that cannot filter rows server-side.
type ReaderChecker struct {
	Reader types.RecordReader
}

// HasUnresolvedLinks implements types.LinkChecker.
func (rc ReaderChecker) HasUnresolvedLinks(ctx context.Context, table targetschema.Table) (bool, error) {
	links := table.LinkColumns()
	for row, err := range types.Rows(ctx, rc.Reader, table.Name, "") {
		if err != nil {
			return false, err
		}
		for _, link := range links {
			if empty(row.Fields[link+targetschema.UnresolvedSuffix]) {
				continue
			}
			if empty(row.Fields[link]) {
				return true, nil
			}
		}
	}
	return false, nil
}

func empty(v any) bool {
	s, isString := v.(string)
	return v == nil || (isString && s == "")
}

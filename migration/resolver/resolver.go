// Package resolver turns staging values into links once every target row exists.
//
// For each table with link columns, the resolver reads back the stored rows and rewrites
// every `{name}_unresolved` value as the `{name}` link. Requests are spaced by a minimum
// interval to stay under the target's rate limits, and a rejected update is recorded
// without stopping the pass.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/stokaro/ferry/config"
	"github.com/stokaro/ferry/core/targetschema"
	"github.com/stokaro/ferry/dbschema/types"
)

// IDMapper maps a staging value of a link column to the id of the target row.
type IDMapper func(linkedTable, id string) string

// RowError is a rejected update.
type RowError struct {
	Table string
	ID    string
	Err   error
}

func (e RowError) Error() string {
	return fmt.Sprintf("failed to resolve %s/%s: %v", e.Table, e.ID, e.Err)
}

// Result is the outcome of a resolve pass.
type Result struct {
	// Updated counts the rows updated per table.
	Updated map[string]int

	// RowErrors holds the rejected updates in the order they happened.
	RowErrors []RowError

	// TableErrors holds the tables whose rows could not be read.
	TableErrors map[string]error
}

// Failures returns the number of rows that could not be resolved in a table.
func (r *Result) Failures(table string) int {
	n := 0
	for _, e := range r.RowErrors {
		if e.Table == table {
			n++
		}
	}
	return n
}

// Resolver runs the resolve pass.
type Resolver struct {
	schema  *targetschema.Schema
	reader  types.RecordReader
	updater types.Updater
	opts    *config.Options
	clock   clockwork.Clock
	mapper  IDMapper
	logger  *slog.Logger
}

// New creates a resolver reading rows from reader and sending updates to updater.
func New(schema *targetschema.Schema, reader types.RecordReader, updater types.Updater, opts *config.Options) *Resolver {
	if opts == nil {
		opts = config.DefaultOptions()
	}
	return &Resolver{
		schema:  schema,
		reader:  reader,
		updater: updater,
		opts:    opts.Normalize(),
		clock:   clockwork.NewRealClock(),
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger for the resolver
func (r *Resolver) WithLogger(l *slog.Logger) *Resolver {
	tmp := *r
	tmp.logger = l
	return &tmp
}

// WithClock sets the clock used to space requests
func (r *Resolver) WithClock(c clockwork.Clock) *Resolver {
	tmp := *r
	tmp.clock = c
	return &tmp
}

// WithIDMapper sets the mapping applied to staging values
func (r *Resolver) WithIDMapper(m IDMapper) *Resolver {
	tmp := *r
	tmp.mapper = m
	return &tmp
}

// Resolve runs the resolve pass over every table with link columns. Only a cancelled
// context stops it early.
func (r *Resolver) Resolve(ctx context.Context) (*Result, error) {
	res := &Result{Updated: make(map[string]int), TableErrors: make(map[string]error)}
	t := &throttle{clock: r.clock, interval: r.opts.ResolveInterval}

	for _, table := range r.schema.TablesWithLinks() {
		r.logger.Info("Resolving links", "table", table.Name)
		if err := r.resolveTable(ctx, table, t, res); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.TableErrors[table.Name] = err
			r.logger.Error("Failed to read table", "table", table.Name, "error", err)
		}
		r.logger.Info("Resolved links", "table", table.Name, "rows", res.Updated[table.Name], "errors", res.Failures(table.Name))
	}
	return res, ctx.Err()
}

func (r *Resolver) resolveTable(ctx context.Context, table targetschema.Table, t *throttle, res *Result) error {
	bulk, _ := r.updater.(types.BulkUpdater)
	batchSize := r.opts.ResolveBatchSize
	if bulk == nil {
		batchSize = 0
	}

	var pending []types.Row
	send := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := t.wait(ctx); err != nil {
			return err
		}
		if err := bulk.BulkUpdate(ctx, table.Name, pending); err != nil {
			for _, row := range pending {
				res.RowErrors = append(res.RowErrors, RowError{Table: table.Name, ID: row.ID, Err: err})
			}
		} else {
			res.Updated[table.Name] += len(pending)
		}
		pending = nil
		return nil
	}

	for row, err := range types.Rows(ctx, r.reader, table.Name, "") {
		if err != nil {
			return err
		}
		payload, ok := Payload(table, row, r.mapper)
		if !ok {
			continue
		}

		if batchSize > 0 {
			pending = append(pending, types.Row{ID: row.ID, Fields: payload})
			if len(pending) >= batchSize {
				if err := send(); err != nil {
					return err
				}
			}
			continue
		}

		if err := t.wait(ctx); err != nil {
			return err
		}
		if err := r.updater.Update(ctx, table.Name, row.ID, payload); err != nil {
			res.RowErrors = append(res.RowErrors, RowError{Table: table.Name, ID: row.ID, Err: err})
			r.logger.Warn("Failed to resolve row", "table", table.Name, "id", row.ID, "error", err)
			continue
		}
		res.Updated[table.Name]++
	}
	return send()
}

// Payload builds the update of a stored row. Link fields already present are dropped and
// each non-empty staging value of a link column becomes the value of that link column.
// Other fields are copied. It reports false for rows without staging values.
func Payload(table targetschema.Table, row types.Row, mapper IDMapper) (map[string]any, bool) {
	payload := make(map[string]any, len(row.Fields))
	staged := false

	for key, value := range row.Fields {
		if table.IsLinkColumn(key) {
			continue
		}
		base, isStaging := strings.CutSuffix(key, targetschema.UnresolvedSuffix)
		if !isStaging || !table.IsLinkColumn(base) {
			payload[key] = value
			continue
		}
		id, _ := value.(string)
		if id == "" {
			continue
		}
		staged = true
		if mapper != nil {
			col, _ := table.Column(base)
			id = mapper(col.Link.Table, id)
		}
		payload[base] = id
	}
	return payload, staged
}

// throttle enforces a minimum interval between requests.
type throttle struct {
	clock    clockwork.Clock
	interval time.Duration
	last     time.Time
}

func (t *throttle) wait(ctx context.Context) error {
	if !t.last.IsZero() {
		if remaining := t.interval - t.clock.Since(t.last); remaining > 0 {
			select {
			case <-t.clock.After(remaining):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	t.last = t.clock.Now()
	return nil
}

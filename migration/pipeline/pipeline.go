// Package pipeline runs the record migration phase.
//
// Three stages are connected by bounded channels. Producers read every source table and
// drop records with no value for any of the table's columns. Workers validate and expand
// records into write ops: valid records go to their success table along with their
// junction and satellite rows, invalid records are diverted to the error table. Flushers
// send the accumulated ops to the target in bulk.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"

	"github.com/stokaro/ferry/config"
	"github.com/stokaro/ferry/core/expand"
	"github.com/stokaro/ferry/core/migspec"
	"github.com/stokaro/ferry/core/record"
	"github.com/stokaro/ferry/core/sourcetype"
	"github.com/stokaro/ferry/core/targetschema"
	"github.com/stokaro/ferry/core/validate"
	"github.com/stokaro/ferry/dbschema/types"
)

// TableStats counts what happened to the records of one source table.
type TableStats struct {
	Read     int `json:"read"`
	Empty    int `json:"empty"`
	Valid    int `json:"valid"`
	Diverted int `json:"diverted"`
}

// Result is the outcome of a pipeline run.
type Result struct {
	// Tables is keyed by success table name.
	Tables map[string]*TableStats

	// Written counts the rows sent per target table.
	Written map[string]int

	// Failed holds the tables that stopped on a store failure.
	Failed map[string]error
}

// Err joins the table failures in table name order.
func (r *Result) Err() error {
	names := make([]string, 0, len(r.Failed))
	for name := range r.Failed {
		names = append(names, name)
	}
	sort.Strings(names)

	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, r.Failed[name])
	}
	return errors.Join(errs...)
}

// Pipeline migrates source records into the target.
type Pipeline struct {
	migration *migspec.Migration
	schema    *targetschema.Schema
	source    types.RecordReader
	sink      types.BulkWriter
	opts      *config.Options
	logger    *slog.Logger

	mu     sync.Mutex
	result *Result
}

// New creates a pipeline. The schema must be the transformation of m.
func New(m *migspec.Migration, schema *targetschema.Schema, source types.RecordReader, sink types.BulkWriter, opts *config.Options) *Pipeline {
	if opts == nil {
		opts = config.DefaultOptions()
	}
	return &Pipeline{
		migration: m,
		schema:    schema,
		source:    source,
		sink:      sink,
		opts:      opts.Normalize(),
		logger:    slog.Default(),
	}
}

// WithLogger sets the logger for the pipeline
func (p *Pipeline) WithLogger(l *slog.Logger) *Pipeline {
	return &Pipeline{
		migration: p.migration,
		schema:    p.schema,
		source:    p.source,
		sink:      p.sink,
		opts:      p.opts,
		logger:    l,
	}
}

// Run migrates every table. A store failure stops the affected table only; the failures
// are reported in the result and joined in the returned error. Cancelling ctx stops the run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	p.result = &Result{
		Tables:  make(map[string]*TableStats),
		Written: make(map[string]int),
		Failed:  make(map[string]error),
	}
	for i := range p.migration.Tables {
		p.result.Tables[p.migration.TargetTableName(&p.migration.Tables[i])] = &TableStats{}
	}

	records := make(chan record.Source, p.opts.QueueSize)
	chunks := make(chan Chunk, p.opts.QueueSize)
	batches := NewBatches(p.opts.BulkChunkSize)

	g, ctx := errgroup.WithContext(ctx)

	var producers sync.WaitGroup
	for i := range p.migration.Tables {
		table := &p.migration.Tables[i]
		producers.Add(1)
		g.Go(func() error {
			defer producers.Done()
			return p.produce(ctx, table, records)
		})
	}
	g.Go(func() error {
		producers.Wait()
		close(records)
		return nil
	})

	var workers sync.WaitGroup
	for range p.opts.Workers {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			return p.work(ctx, records, batches, chunks)
		})
	}
	g.Go(func() error {
		workers.Wait()
		defer close(chunks)
		for _, chunk := range batches.Drain() {
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for range p.opts.Workers {
		g.Go(func() error {
			return p.flush(ctx, chunks)
		})
	}

	if err := g.Wait(); err != nil {
		return p.result, err
	}
	return p.result, p.result.Err()
}

func (p *Pipeline) produce(ctx context.Context, table *migspec.Table, out chan<- record.Source) error {
	name := p.migration.TargetTableName(table)
	p.logger.Info("Reading source table", "table", name, "sourceTableId", table.SourceTableID)

	for row, err := range types.Rows(ctx, p.source, table.SourceTableID, "") {
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.fail(name, err)
			return nil
		}
		if p.failed(name) {
			return nil
		}

		p.count(name, func(s *TableStats) { s.Read++ })
		if isEmpty(table, row) {
			p.count(name, func(s *TableStats) { s.Empty++ })
			continue
		}

		select {
		case out <- record.Source{Table: table, ID: row.ID, Fields: row.Fields}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// isEmpty reports whether the record has no value for any column of its table.
func isEmpty(table *migspec.Table, row types.Row) bool {
	for _, col := range table.Columns {
		if row.Fields[col.SourceColumnName] != nil {
			return false
		}
	}
	return true
}

func (p *Pipeline) work(ctx context.Context, in <-chan record.Source, batches *Batches, out chan<- Chunk) error {
	for src := range in {
		for _, op := range p.Process(src) {
			chunk, full := batches.Add(op)
			if !full {
				continue
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// Process turns one source record into its write ops. Junction and satellite ops come
// first and the record's own op last.
func (p *Pipeline) Process(src record.Source) []record.WriteOp {
	name := p.migration.TargetTableName(src.Table)
	v := validate.Record(p.migration, src)

	if !v.IsValid() {
		p.count(name, func(s *TableStats) { s.Diverted++ })
		p.logger.Debug("Diverting invalid record", "table", name, "id", v.ID, "reasons", len(v.Reasons))
		return []record.WriteOp{ErrorOp(p.migration, v)}
	}

	p.count(name, func(s *TableStats) { s.Valid++ })
	res := expand.Record(p.migration, v)
	return append(res.Ops, record.WriteOp{Table: name, ID: v.ID, Fields: res.Fields})
}

// ErrorOp builds the error table row of an invalid record. Every field is stringified and
// the reasons are stored as JSON. Single-valued relations keep their reference in the
// staging column, or the raw value when it holds several. Multi-valued relations have no
// error table column and are dropped.
func ErrorOp(m *migspec.Migration, v record.Validated) record.WriteOp {
	fields := make(map[string]any, len(v.Fields)+1)
	for i := range v.Table.Columns {
		col := &v.Table.Columns[i]
		key := m.TargetColumnName(col)
		value, ok := v.Fields[key]
		if !ok {
			continue
		}

		switch {
		case col.IsSingleLink(), col.SourceColumnType.Kind() == sourcetype.KindSingleCollaborator:
			staging := key + targetschema.UnresolvedSuffix
			if ref, ok := expand.Staging(value); ok {
				fields[staging] = ref
			} else if s, ok := Stringify(value); ok {
				fields[staging] = s
			}
		case col.SourceColumnType.IsRelation():
		default:
			if s, ok := Stringify(value); ok {
				fields[key] = s
			}
		}
	}

	reasons, err := json.Marshal(v.Reasons)
	if err != nil {
		reasons = []byte(fmt.Sprintf("%q", err.Error()))
	}
	fields[targetschema.ReasonsColumn] = string(reasons)
	return record.WriteOp{Table: m.ErrorTableNameOf(m.TargetTableName(v.Table)), ID: v.ID, Fields: fields}
}

// Stringify renders a raw value as text: objects and arrays as JSON, everything else by
// string coercion. Absent values report false.
func Stringify(value any) (string, bool) {
	switch value.(type) {
	case nil:
		return "", false
	case map[string]any, []any, []string:
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value), true
		}
		return string(b), true
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		b, jerr := json.Marshal(value)
		if jerr != nil {
			return fmt.Sprint(value), true
		}
		return string(b), true
	}
	return s, true
}

func (p *Pipeline) flush(ctx context.Context, in <-chan Chunk) error {
	for chunk := range in {
		owner := p.ownerOf(chunk.Table)
		if p.failed(owner) {
			continue
		}
		if err := p.sink.BulkUpsert(ctx, chunk.Table, chunk.Rows); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.fail(owner, fmt.Errorf("failed to write %d rows to %s: %w", len(chunk.Rows), chunk.Table, err))
			continue
		}
		p.mu.Lock()
		p.result.Written[chunk.Table] += len(chunk.Rows)
		p.mu.Unlock()
		p.logger.Info("Wrote rows", "table", chunk.Table, "rows", len(chunk.Rows))
	}
	return nil
}

// ownerOf returns the success table responsible for a target table. Shared satellite tables
// are their own owner.
func (p *Pipeline) ownerOf(table string) string {
	for i := range p.migration.Tables {
		name := p.migration.TargetTableName(&p.migration.Tables[i])
		if table == name || table == p.migration.ErrorTableNameOf(name) {
			return name
		}
		if t, ok := p.schema.Table(table); ok && t.Kind == targetschema.KindJunction && len(t.Columns) > 0 && t.Columns[0].Link.Table == name {
			return name
		}
	}
	return table
}

func (p *Pipeline) count(table string, f func(*TableStats)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.result == nil {
		return
	}
	if s, ok := p.result.Tables[table]; ok {
		f(s)
	}
}

func (p *Pipeline) fail(table string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.result.Failed[table]; ok {
		return
	}
	p.result.Failed[table] = err
	p.logger.Error("Table migration failed", "table", table, "error", err)
}

func (p *Pipeline) failed(table string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.result.Failed[table]
	return ok
}

// Package retry decorates a target with exponential backoff on retryable store failures.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/stokaro/ferry/config"
	"github.com/stokaro/ferry/core/targetschema"
	"github.com/stokaro/ferry/dbschema/types"
	"github.com/stokaro/ferry/migration/schemaplan"
)

// Target retries the operations of the wrapped target. Only errors wrapping a retryable
// types.TransportError are retried; any other error is returned at once.
type Target struct {
	types.Target
	opts   config.RetryOptions
	logger *slog.Logger
}

// bulkTarget additionally retries bulk updates when the wrapped target supports them.
type bulkTarget struct {
	*Target
	bulk types.BulkUpdater
}

// Wrap returns t decorated with retries. The result implements types.BulkUpdater when t does.
func Wrap(t types.Target, opts config.RetryOptions) types.Target {
	return wrap(t, opts, slog.Default())
}

// WrapWithLogger is Wrap with a logger for the retry attempts.
func WrapWithLogger(t types.Target, opts config.RetryOptions, l *slog.Logger) types.Target {
	return wrap(t, opts, l)
}

func wrap(t types.Target, opts config.RetryOptions, l *slog.Logger) types.Target {
	rt := &Target{Target: t, opts: opts, logger: l}
	if bu, ok := t.(types.BulkUpdater); ok {
		return &bulkTarget{Target: rt, bulk: bu}
	}
	return rt
}

func (t *Target) newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.opts.InitialInterval
	b.MaxInterval = t.opts.MaxInterval
	b.Multiplier = t.opts.Multiplier
	b.RandomizationFactor = t.opts.RandomizationFactor
	b.MaxElapsedTime = 0 // bounded by MaxRetries
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, t.opts.MaxRetries), ctx)
}

func (t *Target) do(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err == nil || types.IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, t.newBackoff(ctx), func(err error, next time.Duration) {
		t.logger.Warn("Retrying store operation", "op", op, "attempt", attempt, "next", next, "error", err)
	})
}

// CreateDatabase implements types.SchemaApplier.
func (t *Target) CreateDatabase(ctx context.Context, name string, opts types.DatabaseOptions) error {
	return t.do(ctx, "create database", func() error {
		return t.Target.CreateDatabase(ctx, name, opts)
	})
}

// ApplyPlan implements types.SchemaApplier.
func (t *Target) ApplyPlan(ctx context.Context, plan *schemaplan.Plan) error {
	return t.do(ctx, "apply plan", func() error {
		return t.Target.ApplyPlan(ctx, plan)
	})
}

// Upsert implements types.Writer.
func (t *Target) Upsert(ctx context.Context, table, id string, fields map[string]any) error {
	return t.do(ctx, "upsert "+table, func() error {
		return t.Target.Upsert(ctx, table, id, fields)
	})
}

// BulkUpsert implements types.BulkWriter.
func (t *Target) BulkUpsert(ctx context.Context, table string, rows []types.Row) error {
	return t.do(ctx, "bulk upsert "+table, func() error {
		return t.Target.BulkUpsert(ctx, table, rows)
	})
}

// Update implements types.Updater.
func (t *Target) Update(ctx context.Context, table, id string, fields map[string]any) error {
	return t.do(ctx, "update "+table, func() error {
		return t.Target.Update(ctx, table, id, fields)
	})
}

// ReadPage implements types.RecordReader.
func (t *Target) ReadPage(ctx context.Context, table, cursor string) (types.Page, error) {
	var page types.Page
	err := t.do(ctx, "read "+table, func() error {
		var err error
		page, err = t.Target.ReadPage(ctx, table, cursor)
		return err
	})
	return page, err
}

// HasUnresolvedLinks implements types.LinkChecker.
func (t *Target) HasUnresolvedLinks(ctx context.Context, table targetschema.Table) (bool, error) {
	var has bool
	err := t.do(ctx, "check links "+table.Name, func() error {
		var err error
		has, err = t.Target.HasUnresolvedLinks(ctx, table)
		return err
	})
	return has, err
}

// BulkUpdate implements types.BulkUpdater.
func (t *bulkTarget) BulkUpdate(ctx context.Context, table string, rows []types.Row) error {
	return t.do(ctx, "bulk update "+table, func() error {
		return t.bulk.BulkUpdate(ctx, table, rows)
	})
}

// Reader retries the reads of a source store.
type Reader struct {
	reader types.RecordReader
	target *Target
}

// WrapReader returns r decorated with retries.
func WrapReader(r types.RecordReader, opts config.RetryOptions, l *slog.Logger) *Reader {
	return &Reader{reader: r, target: &Target{opts: opts, logger: l}}
}

// ReadPage implements types.RecordReader.
func (r *Reader) ReadPage(ctx context.Context, table, cursor string) (types.Page, error) {
	var page types.Page
	err := r.target.do(ctx, "read "+table, func() error {
		var err error
		page, err = r.reader.ReadPage(ctx, table, cursor)
		return err
	})
	return page, err
}

// Package config provides the run options and the migration file loader of ferry.
//
// Options tune how a run talks to the stores: worker counts, batch sizes, throttling and
// retries. They are plain values with sensible defaults so ferry can be driven from Go code
// as easily as from the command line. The migration file itself is loaded by Load.
package config

import (
	"time"

	"github.com/stokaro/ferry/core/naming"
)

// Options contains the tuning knobs of a migration run.
type Options struct {
	// ErrorTableSuffix is appended to a success table name to name its error table.
	ErrorTableSuffix string

	// Workers is the number of goroutines validating and expanding records.
	Workers int

	// QueueSize bounds the channels between pipeline stages.
	QueueSize int

	// BulkChunkSize is the number of rows sent per bulk upsert.
	BulkChunkSize int

	// ResolveInterval is the minimum delay between two link resolution requests.
	ResolveInterval time.Duration

	// ResolveBatchSize groups link updates when the target supports bulk updates.
	// Zero sends one update per row.
	ResolveBatchSize int

	// VerifyConcurrency is the number of tables checked at once by the link verifier.
	VerifyConcurrency int

	// Retry configures the backoff applied to retryable store failures.
	Retry RetryOptions
}

// RetryOptions configures exponential backoff at the store boundary.
type RetryOptions struct {
	MaxRetries          uint64
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultOptions returns the default run options.
func DefaultOptions() *Options {
	return &Options{
		ErrorTableSuffix:  naming.DefaultErrorSuffix,
		Workers:           4,
		QueueSize:         256,
		BulkChunkSize:     1000,
		ResolveInterval:   500 * time.Millisecond,
		VerifyConcurrency: 4,
		Retry:             DefaultRetryOptions(),
	}
}

// DefaultRetryOptions returns the default backoff settings.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:          5,
		InitialInterval:     50 * time.Millisecond,
		MaxInterval:         5 * time.Second,
		Multiplier:          2,
		RandomizationFactor: 0.2,
	}
}

// WithWorkers returns a copy of the options with the given worker count.
func (o *Options) WithWorkers(n int) *Options {
	tmp := *o
	tmp.Workers = n
	return &tmp
}

// WithResolveInterval returns a copy of the options with the given resolve interval.
//
// Example:
//
//	opts := config.DefaultOptions().WithResolveInterval(time.Second)
func (o *Options) WithResolveInterval(d time.Duration) *Options {
	tmp := *o
	tmp.ResolveInterval = d
	return &tmp
}

// WithResolveBatchSize returns a copy of the options with the given resolve batch size.
func (o *Options) WithResolveBatchSize(n int) *Options {
	tmp := *o
	tmp.ResolveBatchSize = n
	return &tmp
}

// WithBulkChunkSize returns a copy of the options with the given bulk chunk size.
func (o *Options) WithBulkChunkSize(n int) *Options {
	tmp := *o
	tmp.BulkChunkSize = n
	return &tmp
}

// WithErrorTableSuffix returns a copy of the options with the given error table suffix.
func (o *Options) WithErrorTableSuffix(suffix string) *Options {
	tmp := *o
	tmp.ErrorTableSuffix = suffix
	return &tmp
}

// WithRetry returns a copy of the options with the given retry settings.
func (o *Options) WithRetry(r RetryOptions) *Options {
	tmp := *o
	tmp.Retry = r
	return &tmp
}

// Normalize replaces unset values with their defaults.
func (o *Options) Normalize() *Options {
	def := DefaultOptions()
	tmp := *o
	if tmp.ErrorTableSuffix == "" {
		tmp.ErrorTableSuffix = def.ErrorTableSuffix
	}
	if tmp.Workers <= 0 {
		tmp.Workers = def.Workers
	}
	if tmp.QueueSize <= 0 {
		tmp.QueueSize = def.QueueSize
	}
	if tmp.BulkChunkSize <= 0 {
		tmp.BulkChunkSize = def.BulkChunkSize
	}
	if tmp.ResolveInterval <= 0 {
		tmp.ResolveInterval = def.ResolveInterval
	}
	if tmp.VerifyConcurrency <= 0 {
		tmp.VerifyConcurrency = def.VerifyConcurrency
	}
	if tmp.Retry.InitialInterval <= 0 {
		tmp.Retry = def.Retry
	}
	return &tmp
}

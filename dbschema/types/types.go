package types

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"

	"github.com/stokaro/ferry/core/targetschema"
	"github.com/stokaro/ferry/migration/schemaplan"
)

// Row is a stored record: an id and its fields
type Row struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Page is one page of a paginated read. Cursor is empty once the table is exhausted.
type Page struct {
	Rows   []Row
	Cursor string
}

// DBInfo contains connection and metadata information
type DBInfo struct {
	Dialect string `json:"dialect"` // xata, postgres, mysql, memory
	Name    string `json:"name"`    // database name
	URL     string `json:"url"`     // connection URL (for reference)
}

// DatabaseOptions are passed when the target database is created
type DatabaseOptions struct {
	Color string `json:"color,omitempty"`
}

// RecordReader reads the rows of a table page by page, restartable from any cursor
type RecordReader interface {
	ReadPage(ctx context.Context, table, cursor string) (Page, error)
}

// Writer upserts rows by id
type Writer interface {
	Upsert(ctx context.Context, table, id string, fields map[string]any) error
}

// BulkWriter upserts many rows of one table at once, with the same upsert-by-id semantics as Writer
type BulkWriter interface {
	BulkUpsert(ctx context.Context, table string, rows []Row) error
}

// Updater patches the given fields of an existing row
type Updater interface {
	Update(ctx context.Context, table, id string, fields map[string]any) error
}

// BulkUpdater patches many rows of one table at once
type BulkUpdater interface {
	BulkUpdate(ctx context.Context, table string, rows []Row) error
}

// SchemaApplier creates the target database and applies schema plans to it
type SchemaApplier interface {
	CreateDatabase(ctx context.Context, name string, opts DatabaseOptions) error
	ApplyPlan(ctx context.Context, plan *schemaplan.Plan) error
}

// LinkChecker reports whether a table still has rows whose staging value was never turned into a link
type LinkChecker interface {
	HasUnresolvedLinks(ctx context.Context, table targetschema.Table) (bool, error)
}

// Target is the full set of capabilities a migration target offers
type Target interface {
	SchemaApplier
	Writer
	BulkWriter
	Updater
	RecordReader
	LinkChecker
	Info() DBInfo
	Close() error
}

// Rows iterates over every row of a table starting at cursor, fetching pages lazily.
// Iteration stops at the first error, which is yielded with a zero Row.
func Rows(ctx context.Context, r RecordReader, table, cursor string) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for {
			page, err := r.ReadPage(ctx, table, cursor)
			if err != nil {
				yield(Row{}, fmt.Errorf("failed to read %s: %w", table, err))
				return
			}
			for _, row := range page.Rows {
				if !yield(row, nil) {
					return
				}
			}
			if page.Cursor == "" {
				return
			}
			cursor = page.Cursor
		}
	}
}

// TransportError is a failed request to an external store
type TransportError struct {
	Op      string // operation, e.g. "bulk insert teamMember"
	Status  int    // HTTP status, 0 when no response was received
	Payload string // response body, if any
	Err     error  // underlying cause, if any
}

func (e *TransportError) Error() string {
	msg := e.Op
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Payload != "" {
		msg += ": " + e.Payload
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the request may succeed if sent again
func (e *TransportError) Retryable() bool {
	switch {
	case e.Status == 0:
		return e.Err != nil && !errors.Is(e.Err, context.Canceled) && !errors.Is(e.Err, context.DeadlineExceeded)
	case e.Status == http.StatusRequestTimeout,
		e.Status == http.StatusConflict,
		e.Status == http.StatusLocked,
		e.Status == http.StatusTooManyRequests,
		e.Status >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err wraps a retryable TransportError
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Retryable()
}

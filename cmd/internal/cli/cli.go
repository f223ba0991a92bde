// Package cli holds what the ferry commands share: common flags, logger setup, loading the
// migration file and opening the stores, and writing results.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-extras/cobraflags"
	"gopkg.in/yaml.v3"

	"github.com/stokaro/ferry/config"
	"github.com/stokaro/ferry/core/migspec"
	"github.com/stokaro/ferry/dbschema"
	"github.com/stokaro/ferry/dbschema/retry"
	"github.com/stokaro/ferry/dbschema/types"
	"github.com/stokaro/ferry/migration/migrator"
)

const (
	ConfigFlag    = "config"
	FormatFlag    = "format"
	LogFormatFlag = "log-format"
	LogLevelFlag  = "log-level"
)

// Output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// CommonFlags returns the flags of every command.
func CommonFlags() map[string]cobraflags.Flag {
	return map[string]cobraflags.Flag{
		ConfigFlag: &cobraflags.StringFlag{
			Name:  ConfigFlag,
			Value: "ferry.yaml",
			Usage: "Migration file (YAML, JSON or TOML)",
		},
		FormatFlag: &cobraflags.StringFlag{
			Name:  FormatFlag,
			Value: FormatTable,
			Usage: "Output format (table, json, yaml)",
		},
		LogFormatFlag: &cobraflags.StringFlag{
			Name:  LogFormatFlag,
			Value: "text",
			Usage: "Log format (text, json)",
		},
		LogLevelFlag: &cobraflags.StringFlag{
			Name:  LogLevelFlag,
			Value: "info",
			Usage: "Log level (debug, info, warn, error)",
		},
	}
}

// NewLogger builds the logger of a command. Logs go to w, results to the command output.
func NewLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (supported: text, json)", format)
	}
}

// Load reads the migration file and converts it into a migration with default options.
func Load(path string) (*config.File, *migspec.Migration, *config.Options, error) {
	f, err := config.Load(path)
	if err != nil {
		return nil, nil, nil, err
	}
	opts := config.DefaultOptions()
	m, err := f.Migration(opts)
	if err != nil {
		return nil, nil, nil, err
	}
	return f, m, opts, nil
}

// Stores holds the opened source and target of a run.
type Stores struct {
	Source types.RecordReader
	Target types.Target
}

// Close closes the target.
func (s *Stores) Close() error {
	return s.Target.Close()
}

// OpenStores opens the stores of the file, both wrapped with retries.
func OpenStores(f *config.File, opts *config.Options, logger *slog.Logger) (*Stores, error) {
	source, err := dbschema.OpenSource(f.Source, logger)
	if err != nil {
		return nil, err
	}
	target, err := dbschema.OpenTarget(f.Target, logger)
	if err != nil {
		return nil, err
	}
	return &Stores{
		Source: retry.WrapReader(source, opts.Retry, logger),
		Target: retry.WrapWithLogger(target, opts.Retry, logger),
	}, nil
}

// NewMigrator creates the migrator of a run on opened stores.
func NewMigrator(f *config.File, m *migspec.Migration, opts *config.Options, stores *Stores, logger *slog.Logger) (*migrator.Migrator, error) {
	mig, err := migrator.NewMigrator(m, stores.Source, stores.Target, opts)
	if err != nil {
		return nil, err
	}
	return mig.
		WithLogger(logger).
		WithDatabase(f.Target.DatabaseName, types.DatabaseOptions{Color: f.Target.DatabaseColor}), nil
}

// Write renders v in the requested format. table renders the table format.
func Write(w io.Writer, format string, v any, table func(io.Writer) error) error {
	switch format {
	case FormatTable, "":
		return table(w)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("invalid format %q (supported: table, json, yaml)", format)
	}
}

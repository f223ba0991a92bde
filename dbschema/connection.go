// Package dbschema opens the stores a migration reads from and writes to.
package dbschema

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/stokaro/ferry/config"
	"github.com/stokaro/ferry/dbschema/airtable"
	"github.com/stokaro/ferry/dbschema/memory"
	"github.com/stokaro/ferry/dbschema/sqlstore"
	"github.com/stokaro/ferry/dbschema/types"
	"github.com/stokaro/ferry/dbschema/xata"
)

// Connect opens a database connection for a postgres://, postgresql://, mysql:// or
// mariadb:// URL. PostgreSQL goes through pgx.
func Connect(dsn string) (*sql.DB, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}

	switch u.Scheme {
	case "postgres", "postgresql":
		db, err := sql.Open("pgx", removePostgresPoolParams(dsn))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return db, nil
	case "mysql", "mariadb":
		cfg, err := mysqlConfig(u)
		if err != nil {
			return nil, err
		}
		connector, err := mysql.NewConnector(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return sql.OpenDB(connector), nil
	default:
		return nil, fmt.Errorf("unsupported database URL scheme %q", u.Scheme)
	}
}

// removePostgresPoolParams drops the pgxpool settings database/sql does not understand.
func removePostgresPoolParams(dsn string) string {
	if dsn == "" {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	q := u.Query()
	q.Del("pool_max_conns")
	q.Del("pool_min_conns")
	u.RawQuery = q.Encode()
	return u.String()
}

// mysqlConfig converts a mysql:// URL to a driver config. Times are parsed and updates
// report matched rows, which the store relies on to detect missing records.
func mysqlConfig(u *url.URL) (*mysql.Config, error) {
	userinfo := ""
	if u.User != nil {
		userinfo = u.User.Username()
		if pass, ok := u.User.Password(); ok {
			userinfo += ":" + pass
		}
		userinfo += "@"
	}
	host := u.Host
	if u.Port() == "" {
		host += ":3306"
	}
	dsn := fmt.Sprintf("%stcp(%s)/%s", userinfo, host, u.Path[min(1, len(u.Path)):])
	if u.RawQuery != "" {
		dsn += "?" + u.RawQuery
	}

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL URL: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	return cfg, nil
}

// OpenSource returns the reader of the source store.
func OpenSource(cfg config.SourceConfig, logger *slog.Logger) (types.RecordReader, error) {
	switch cfg.Service {
	case "airtable":
		return airtable.New(airtable.Options{
			APIKey:  cfg.APIKey,
			BaseID:  cfg.BaseID,
			BaseURL: cfg.BaseURL,
		}).WithLogger(logger), nil
	default:
		return nil, fmt.Errorf("unsupported source service %q", cfg.Service)
	}
}

// OpenTarget returns the target store. The caller closes it.
func OpenTarget(cfg config.TargetConfig, logger *slog.Logger) (types.Target, error) {
	switch cfg.Service {
	case "xata":
		return xata.New(xata.Options{
			APIKey:      cfg.APIKey,
			WorkspaceID: cfg.WorkspaceID,
			Region:      cfg.Region,
			Database:    cfg.DatabaseName,
			BaseURL:     cfg.BaseURL,
		}).WithLogger(logger), nil
	case "postgres", "mysql", "mariadb":
		db, err := Connect(cfg.DSN)
		if err != nil {
			return nil, err
		}
		store, err := sqlstore.New(db, sqlstore.Options{
			Dialect:  cfg.Service,
			Database: cfg.DatabaseName,
			URL:      redact(cfg.DSN),
		})
		if err != nil {
			db.Close()
			return nil, err
		}
		return store.WithLogger(logger), nil
	case "memory":
		return memory.New(memory.Options{EnforceLinks: true}), nil
	default:
		return nil, fmt.Errorf("unsupported target service %q", cfg.Service)
	}
}

func redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return ""
	}
	return u.Redacted()
}

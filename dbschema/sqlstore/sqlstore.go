// Package sqlstore implements a migration target on a PostgreSQL, MySQL or MariaDB database.
//
// Each target table becomes an SQL table keyed by a text id. Link columns carry a foreign
// key to the linked table, so the database refuses a link to a row that does not exist
// yet, the same way a hosted target does. The DDL is built as an ast and rendered by the
// dialect renderers in core/renderer/dialects.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stokaro/ferry/core/ast"
	rtypes "github.com/stokaro/ferry/core/renderer/types"
	"github.com/stokaro/ferry/core/targetschema"
	"github.com/stokaro/ferry/dbschema/types"
	"github.com/stokaro/ferry/migration/schemaplan"
)

const (
	// DefaultPageSize is the number of rows read per page when Options.PageSize is zero.
	DefaultPageSize = 500

	// PlansTable records the schema plans applied to the database.
	PlansTable = "ferry_schema_plans"
)

// Options configures a Store.
type Options struct {
	// Dialect is postgres, mysql or mariadb
	Dialect string
	// Database is the database name reported by Info
	Database string
	// URL is the connection URL reported by Info, with the password redacted
	URL string
	// PageSize is the number of rows returned per page
	PageSize int
}

// tableCache holds the layout of the tables known to the store, shared by the copies
// WithLogger returns.
type tableCache struct {
	mu     sync.RWMutex
	tables map[string]targetschema.Table
}

// Store is an SQL target.
type Store struct {
	db      *sql.DB
	d       rtypes.Dialect
	dialect string
	opts    Options
	cache   *tableCache
	logger  *slog.Logger
}

var (
	_ types.Target      = (*Store)(nil)
	_ types.BulkUpdater = (*Store)(nil)
)

// New creates a store on an open database.
func New(db *sql.DB, opts Options) (*Store, error) {
	d, err := DialectFor(opts.Dialect)
	if err != nil {
		return nil, err
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Store{
		db:      db,
		d:       d,
		dialect: d.NewRenderer().Dialect(),
		opts:    opts,
		cache:   &tableCache{tables: make(map[string]targetschema.Table)},
		logger:  slog.Default(),
	}, nil
}

// WithLogger sets the logger for the store
func (s *Store) WithLogger(l *slog.Logger) *Store {
	tmp := *s
	tmp.logger = l
	return &tmp
}

// Info implements types.Target.
func (s *Store) Info() types.DBInfo {
	return types.DBInfo{Dialect: s.dialect, Name: s.opts.Database, URL: s.opts.URL}
}

// Close implements types.Target.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateDatabase implements types.SchemaApplier. The database is the one named by the
// connection URL and must exist, so only its name is recorded.
func (s *Store) CreateDatabase(_ context.Context, name string, _ types.DatabaseOptions) error {
	s.logger.Info("Using database from connection URL", "database", s.opts.Database, "requested", name)
	return nil
}

// ApplyPlan implements types.SchemaApplier. The initial plan is applied once per
// database: when its version is already recorded the tables are only registered.
func (s *Store) ApplyPlan(ctx context.Context, plan *schemaplan.Plan) error {
	if !plan.HasChanges() {
		return nil
	}
	if err := s.ensurePlansTable(ctx); err != nil {
		return err
	}

	applied, err := s.planApplied(ctx, plan.Version)
	if err != nil {
		return err
	}
	if applied && plan.Version == schemaplan.VersionInitial {
		s.logger.Info("Schema plan already applied", "version", plan.Version)
		s.register(plan)
		return nil
	}

	plan, err = s.existingColumnsOnly(ctx, plan)
	if err != nil {
		return err
	}
	r := s.d.NewRenderer()
	var stmts []string
	for _, node := range PlanNodes(s.d, plan) {
		if _, ok := node.(*ast.CommentNode); ok {
			continue
		}
		stmt, err := r.Render(node)
		if err != nil {
			return fmt.Errorf("failed to render schema plan %d: %w", plan.Version, err)
		}
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.transportError("apply schema plan", err)
	}
	defer tx.Rollback() //nolint:errcheck
	for _, stmt := range stmts {
		s.logger.Debug("Executing statement", "sql", stmt)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return s.transportError("apply schema plan", err)
		}
	}
	if !applied {
		insert := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s, %s)",
			s.d.QuoteIdentifier(PlansTable), s.d.QuoteIdentifier("version"), s.d.QuoteIdentifier("applied_at"),
			s.d.Placeholder(1), s.d.Placeholder(2))
		if _, err := tx.ExecContext(ctx, insert, plan.Version, time.Now().UTC()); err != nil {
			return s.transportError("record schema plan", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return s.transportError("apply schema plan", err)
	}

	for _, diff := range plan.TablesModified {
		if len(diff.NewColumnOrder) > 0 {
			s.logger.Debug("Column order is kept by SQL targets", "table", diff.TableName)
		}
	}
	s.register(plan)
	return nil
}

func (s *Store) ensurePlansTable(ctx context.Context) error {
	node := ast.NewCreateTable(PlansTable).
		SetIfNotExists().
		AddColumn(ast.NewColumn("version", s.d.ColumnType(targetschema.Int)).SetPrimary()).
		AddColumn(ast.NewColumn("applied_at", s.d.ColumnType(targetschema.DateTime)).SetNotNull())
	stmt, err := s.d.NewRenderer().Render(node)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", PlansTable, err)
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return s.transportError("create "+PlansTable, err)
	}
	return nil
}

func (s *Store) planApplied(ctx context.Context, version int) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = %s",
		s.d.QuoteIdentifier(PlansTable), s.d.QuoteIdentifier("version"), s.d.Placeholder(1))
	var one int
	err := s.db.QueryRowContext(ctx, query, version).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, s.transportError("read "+PlansTable, err)
	}
	return true, nil
}

// existingColumnsOnly drops from the plan the removed columns the tables no longer have,
// so a cleanup can be applied again on dialects without DROP COLUMN IF EXISTS.
func (s *Store) existingColumnsOnly(ctx context.Context, plan *schemaplan.Plan) (*schemaplan.Plan, error) {
	if len(plan.TablesModified) == 0 {
		return plan, nil
	}
	out := *plan
	out.TablesModified = nil
	for _, diff := range plan.TablesModified {
		t, err := s.table(ctx, diff.TableName)
		if err != nil {
			return nil, err
		}
		diff.ColumnsRemoved = slices.DeleteFunc(slices.Clone(diff.ColumnsRemoved), func(name string) bool {
			_, ok := t.Column(name)
			return !ok
		})
		out.TablesModified = append(out.TablesModified, diff)
	}
	return &out, nil
}

func (s *Store) register(plan *schemaplan.Plan) {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	for _, t := range plan.TablesAdded {
		s.cache.tables[t.Name] = t
	}
	for _, diff := range plan.TablesModified {
		t, ok := s.cache.tables[diff.TableName]
		if !ok {
			continue
		}
		t.Columns = slices.DeleteFunc(slices.Clone(t.Columns), func(c targetschema.Column) bool {
			return slices.Contains(diff.ColumnsRemoved, c.Name)
		})
		s.cache.tables[diff.TableName] = t
	}
	for _, name := range plan.TablesRemoved {
		delete(s.cache.tables, name)
	}
}

// table returns the layout of a table, reading it from the database the first time a
// table not created by this store is used.
func (s *Store) table(ctx context.Context, name string) (targetschema.Table, error) {
	s.cache.mu.RLock()
	t, ok := s.cache.tables[name]
	s.cache.mu.RUnlock()
	if ok {
		return t, nil
	}

	t, err := s.readTable(ctx, name)
	if err != nil {
		return targetschema.Table{}, err
	}
	s.cache.mu.Lock()
	s.cache.tables[name] = t
	s.cache.mu.Unlock()
	return t, nil
}

func (s *Store) readTable(ctx context.Context, name string) (targetschema.Table, error) {
	schemaExpr := "current_schema()"
	if s.dialect != "postgres" {
		schemaExpr = "DATABASE()"
	}
	query := fmt.Sprintf(`
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = %s
		ORDER BY ordinal_position`, schemaExpr, s.d.Placeholder(1))

	rows, err := s.db.QueryContext(ctx, query, name)
	if err != nil {
		return targetschema.Table{}, s.transportError("read table "+name, err)
	}
	defer rows.Close()

	t := targetschema.Table{Name: name}
	for rows.Next() {
		var colName, dataType string
		if err := rows.Scan(&colName, &dataType); err != nil {
			return targetschema.Table{}, fmt.Errorf("failed to scan column: %w", err)
		}
		if colName == IDColumn {
			continue
		}
		t.Columns = append(t.Columns, targetschema.Column{Name: colName, Type: columnTypeOf(strings.ToLower(dataType))})
	}
	if err := rows.Err(); err != nil {
		return targetschema.Table{}, s.transportError("read table "+name, err)
	}
	if len(t.Columns) == 0 {
		return targetschema.Table{}, &types.TransportError{Op: "read table " + name, Status: http.StatusNotFound, Payload: "table not found"}
	}
	markLinks(&t)
	return t, nil
}

// markLinks marks as links the columns that have a staging column.
func markLinks(t *targetschema.Table) {
	for i, c := range t.Columns {
		if c.IsStaging() {
			continue
		}
		if _, ok := t.Column(c.Name + targetschema.UnresolvedSuffix); ok {
			t.Columns[i].Type = targetschema.Link
		}
	}
}

// Upsert implements types.Writer.
func (s *Store) Upsert(ctx context.Context, table, id string, fields map[string]any) error {
	return s.BulkUpsert(ctx, table, []types.Row{{ID: id, Fields: fields}})
}

// BulkUpsert implements types.BulkWriter. Every column of the table is written, so
// fields missing from a row are set to NULL.
func (s *Store) BulkUpsert(ctx context.Context, table string, rows []types.Row) error {
	if len(rows) == 0 {
		return nil
	}
	op := "bulk insert " + table
	t, err := s.table(ctx, table)
	if err != nil {
		return err
	}

	rows = lastByID(rows)
	cols := append([]string{IDColumn}, columnNames(t)...)
	args := make([]any, 0, len(rows)*len(cols))
	tuples := make([]string, len(rows))
	for i, row := range rows {
		if err := checkFields(op, t, row.Fields); err != nil {
			return err
		}
		holders := make([]string, len(cols))
		holders[0] = s.d.Placeholder(len(args) + 1)
		args = append(args, row.ID)
		for j, col := range t.Columns {
			v, err := s.encode(col, row.Fields[col.Name])
			if err != nil {
				return invalidValue(op, row.ID, col.Name, err)
			}
			holders[j+1] = s.d.Placeholder(len(args) + 1)
			args = append(args, v)
		}
		tuples[i] = "(" + strings.Join(holders, ", ") + ")"
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s %s",
		s.d.QuoteIdentifier(t.Name), s.quoteAll(cols), strings.Join(tuples, ", "), s.onConflict(cols[1:]))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return s.transportError(op, err)
	}
	return nil
}

func (s *Store) onConflict(cols []string) string {
	if s.dialect == "postgres" {
		if len(cols) == 0 {
			return "ON CONFLICT (" + s.d.QuoteIdentifier(IDColumn) + ") DO NOTHING"
		}
		sets := make([]string, len(cols))
		for i, c := range cols {
			q := s.d.QuoteIdentifier(c)
			sets[i] = q + " = EXCLUDED." + q
		}
		return "ON CONFLICT (" + s.d.QuoteIdentifier(IDColumn) + ") DO UPDATE SET " + strings.Join(sets, ", ")
	}
	if len(cols) == 0 {
		q := s.d.QuoteIdentifier(IDColumn)
		return "ON DUPLICATE KEY UPDATE " + q + " = " + q
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		q := s.d.QuoteIdentifier(c)
		sets[i] = q + " = VALUES(" + q + ")"
	}
	return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}

// Update implements types.Updater.
func (s *Store) Update(ctx context.Context, table, id string, fields map[string]any) error {
	return s.update(ctx, s.db, table, id, fields)
}

// BulkUpdate implements types.BulkUpdater. The rows are updated in one transaction.
func (s *Store) BulkUpdate(ctx context.Context, table string, rows []types.Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.transportError("bulk update "+table, err)
	}
	defer tx.Rollback() //nolint:errcheck
	for _, row := range rows {
		if err := s.update(ctx, tx, table, row.ID, row.Fields); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return s.transportError("bulk update "+table, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) update(ctx context.Context, db execer, table, id string, fields map[string]any) error {
	op := "update " + table + "/" + id
	t, err := s.table(ctx, table)
	if err != nil {
		return err
	}
	if err := checkFields(op, t, fields); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	var (
		sets []string
		args []any
	)
	for _, col := range t.Columns {
		v, ok := fields[col.Name]
		if !ok {
			continue
		}
		enc, err := s.encode(col, v)
		if err != nil {
			return invalidValue(op, id, col.Name, err)
		}
		args = append(args, enc)
		sets = append(sets, s.d.QuoteIdentifier(col.Name)+" = "+s.d.Placeholder(len(args)))
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		s.d.QuoteIdentifier(t.Name), strings.Join(sets, ", "), s.d.QuoteIdentifier(IDColumn), s.d.Placeholder(len(args)))

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return s.transportError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.transportError(op, err)
	}
	if n == 0 {
		return &types.TransportError{Op: op, Status: http.StatusNotFound, Payload: fmt.Sprintf("record %s not found", id)}
	}
	return nil
}

// ReadPage implements types.RecordReader. Rows come in id order and the cursor is the
// id of the last row of the page.
func (s *Store) ReadPage(ctx context.Context, table, cursor string) (types.Page, error) {
	op := "query " + table
	t, err := s.table(ctx, table)
	if err != nil {
		return types.Page{}, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s", s.quoteAll(append([]string{IDColumn}, columnNames(t)...)), s.d.QuoteIdentifier(t.Name))
	var args []any
	if cursor != "" {
		query += fmt.Sprintf(" WHERE %s > %s", s.d.QuoteIdentifier(IDColumn), s.d.Placeholder(1))
		args = append(args, cursor)
	}
	query += fmt.Sprintf(" ORDER BY %s LIMIT %d", s.d.QuoteIdentifier(IDColumn), s.opts.PageSize+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return types.Page{}, s.transportError(op, err)
	}
	defer rows.Close()

	var page types.Page
	for rows.Next() {
		var id string
		dests := []any{&id}
		for _, col := range t.Columns {
			dests = append(dests, s.scanDest(col))
		}
		if err := rows.Scan(dests...); err != nil {
			return types.Page{}, fmt.Errorf("failed to scan row of %s: %w", table, err)
		}
		fields := make(map[string]any)
		for i, col := range t.Columns {
			v, ok, err := decode(col, dests[i+1])
			if err != nil {
				return types.Page{}, err
			}
			if ok {
				fields[col.Name] = v
			}
		}
		page.Rows = append(page.Rows, types.Row{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return types.Page{}, s.transportError(op, err)
	}

	if len(page.Rows) > s.opts.PageSize {
		page.Rows = page.Rows[:s.opts.PageSize]
		page.Cursor = page.Rows[len(page.Rows)-1].ID
	}
	return page, nil
}

// HasUnresolvedLinks implements types.LinkChecker. Links whose staging column was
// already dropped are resolved.
func (s *Store) HasUnresolvedLinks(ctx context.Context, table targetschema.Table) (bool, error) {
	stored, err := s.table(ctx, table.Name)
	if err != nil {
		return false, err
	}
	var conds []string
	for _, link := range table.LinkColumns() {
		staging := link + targetschema.UnresolvedSuffix
		if _, ok := stored.Column(staging); !ok {
			continue
		}
		q := s.d.QuoteIdentifier(staging)
		conds = append(conds, fmt.Sprintf("(%s IS NOT NULL AND %s <> '' AND %s IS NULL)", q, q, s.d.QuoteIdentifier(link)))
	}
	if len(conds) == 0 {
		return false, nil
	}

	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s LIMIT 1", s.d.QuoteIdentifier(table.Name), strings.Join(conds, " OR "))
	var one int
	err = s.db.QueryRowContext(ctx, query).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, s.transportError("query "+table.Name, err)
	}
	return true, nil
}

func (s *Store) quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = s.d.QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}

func columnNames(t targetschema.Table) []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func checkFields(op string, t targetschema.Table, fields map[string]any) error {
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		if _, ok := t.Column(name); !ok {
			return &types.TransportError{Op: op, Status: http.StatusBadRequest, Payload: fmt.Sprintf("column %s does not exist", name)}
		}
	}
	return nil
}

// lastByID keeps the last row of every id, in first-seen order. A single INSERT may not
// touch a row twice.
func lastByID(rows []types.Row) []types.Row {
	index := make(map[string]int, len(rows))
	out := make([]types.Row, 0, len(rows))
	for _, row := range rows {
		if i, ok := index[row.ID]; ok {
			out[i] = row
			continue
		}
		index[row.ID] = len(out)
		out = append(out, row)
	}
	return out
}

func invalidValue(op, id, column string, err error) error {
	return &types.TransportError{Op: op, Status: http.StatusBadRequest, Payload: fmt.Sprintf("invalid value of %s in record %s", column, id), Err: err}
}

// transportError classifies a database error. Constraint and syntax errors are final;
// lock conflicts, overload and connection failures may succeed when retried.
func (s *Store) transportError(op string, err error) error {
	var (
		pgErr *pgconn.PgError
		myErr *mysql.MySQLError
	)
	switch {
	case errors.As(err, &pgErr):
		status := http.StatusBadRequest
		if pgErr.Code == "40001" || pgErr.Code == "40P01" || strings.HasPrefix(pgErr.Code, "53") {
			status = http.StatusServiceUnavailable
		}
		return &types.TransportError{Op: op, Status: status, Payload: pgErr.Code + ": " + pgErr.Message}
	case errors.As(err, &myErr):
		status := http.StatusBadRequest
		switch myErr.Number {
		case 1040, 1205, 1213:
			status = http.StatusServiceUnavailable
		}
		return &types.TransportError{Op: op, Status: status, Payload: fmt.Sprintf("%d: %s", myErr.Number, myErr.Message)}
	default:
		return &types.TransportError{Op: op, Err: err}
	}
}

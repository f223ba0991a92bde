// Package xata is the target store adapter for Xata databases.
//
// Every capability of types.Target maps to one REST call on the workspace endpoint:
// database creation, branch migrations for schema plans, bulk inserts, record updates,
// cursor paginated queries, and a filtered query of size one to detect unresolved links.
package xata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/stokaro/ferry/core/targetschema"
	"github.com/stokaro/ferry/dbschema/types"
	"github.com/stokaro/ferry/migration/schemaplan"
)

const (
	// Branch is the branch every table is created in.
	Branch = "main"

	// PageSize is the page size of record queries.
	PageSize = 100

	RequestTimeout = 45 * time.Second
)

// Options configures a Client.
type Options struct {
	APIKey      string
	WorkspaceID string
	Database    string
	// Region is the workspace region, e.g. us-east-1
	Region string
	// BaseURL defaults to https://{WorkspaceID}.xata.sh, or https://{WorkspaceID}.{Region}.xata.sh
	BaseURL string
}

// Client talks to one Xata database.
type Client struct {
	http     *resty.Client
	database string
	logger   *slog.Logger
}

// New creates a client for the database of opts.
func New(opts Options) *Client {
	baseURL := opts.BaseURL
	switch {
	case baseURL != "":
	case opts.Region != "":
		baseURL = fmt.Sprintf("https://%s.%s.xata.sh", opts.WorkspaceID, opts.Region)
	default:
		baseURL = fmt.Sprintf("https://%s.xata.sh", opts.WorkspaceID)
	}

	c := resty.New()
	c.SetBaseURL(baseURL)
	c.SetAuthToken(opts.APIKey)
	c.SetHeader("Content-Type", "application/json")
	c.SetTimeout(RequestTimeout)

	return &Client{http: c, database: opts.Database, logger: slog.Default()}
}

// WithLogger sets the logger for the client
func (c *Client) WithLogger(l *slog.Logger) *Client {
	tmp := *c
	tmp.logger = l
	return &tmp
}

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client {
	return c.http.GetClient()
}

// Info implements types.Target.
func (c *Client) Info() types.DBInfo {
	return types.DBInfo{Dialect: "xata", Name: c.database, URL: c.http.BaseURL + "/db/" + c.branch()}
}

// Close implements types.Target.
func (c *Client) Close() error {
	return nil
}

func (c *Client) branch() string {
	return c.database + ":" + Branch
}

func (c *Client) do(ctx context.Context, op, method, path string, params map[string]string, body, result any) error {
	req := c.http.R().SetContext(ctx).SetPathParams(params)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return &types.TransportError{Op: op, Err: err}
	}
	if !resp.IsSuccess() {
		return &types.TransportError{Op: op, Status: resp.StatusCode(), Payload: errorPayload(resp.Body())}
	}
	return nil
}

func errorPayload(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return string(body)
}

// CreateDatabase implements types.SchemaApplier.
func (c *Client) CreateDatabase(ctx context.Context, name string, opts types.DatabaseOptions) error {
	body := map[string]any{}
	if opts.Color != "" {
		body["ui"] = map[string]any{"color": "xata-" + opts.Color}
	}
	c.logger.Info("Creating database", "database", name, "color", opts.Color)
	return c.do(ctx, "create database "+name, http.MethodPut, "/dbs/{db}", map[string]string{"db": name}, body, nil)
}

// ApplyPlan implements types.SchemaApplier by executing the plan as a branch migration.
func (c *Client) ApplyPlan(ctx context.Context, plan *schemaplan.Plan) error {
	if !plan.HasChanges() {
		return nil
	}
	params := map[string]string{"branch": c.branch()}
	return c.do(ctx, fmt.Sprintf("apply plan %d", plan.Version), http.MethodPost, "/db/{branch}/migrations/execute", params, BranchMigration(plan), nil)
}

// Upsert implements types.Writer.
func (c *Client) Upsert(ctx context.Context, table, id string, fields map[string]any) error {
	params := map[string]string{"branch": c.branch(), "table": table, "id": id}
	return c.do(ctx, "upsert "+table, http.MethodPut, "/db/{branch}/tables/{table}/data/{id}", params, fields, nil)
}

// BulkUpsert implements types.BulkWriter. Records carry their id, so a row sent twice
// replaces the first one.
func (c *Client) BulkUpsert(ctx context.Context, table string, rows []types.Row) error {
	records := make([]map[string]any, len(rows))
	for i, row := range rows {
		rec := make(map[string]any, len(row.Fields)+1)
		for k, v := range row.Fields {
			rec[k] = v
		}
		rec["id"] = row.ID
		records[i] = rec
	}
	params := map[string]string{"branch": c.branch(), "table": table}
	body := map[string]any{"records": records}
	return c.do(ctx, "bulk insert "+table, http.MethodPost, "/db/{branch}/tables/{table}/bulk", params, body, nil)
}

// Update implements types.Updater.
func (c *Client) Update(ctx context.Context, table, id string, fields map[string]any) error {
	params := map[string]string{"branch": c.branch(), "table": table, "id": id}
	return c.do(ctx, fmt.Sprintf("update %s/%s", table, id), http.MethodPatch, "/db/{branch}/tables/{table}/data/{id}", params, fields, nil)
}

type queryResponse struct {
	Meta struct {
		Page struct {
			Cursor string `json:"cursor"`
			More   bool   `json:"more"`
		} `json:"page"`
	} `json:"meta"`
	Records []map[string]any `json:"records"`
}

func (c *Client) query(ctx context.Context, table string, body map[string]any) (*queryResponse, error) {
	var res queryResponse
	params := map[string]string{"branch": c.branch(), "table": table}
	if err := c.do(ctx, "query "+table, http.MethodPost, "/db/{branch}/tables/{table}/query", params, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ReadPage implements types.RecordReader. Record metadata is dropped and link values are
// flattened to the id of the linked record.
func (c *Client) ReadPage(ctx context.Context, table, cursor string) (types.Page, error) {
	page := map[string]any{"size": PageSize}
	if cursor != "" {
		page = map[string]any{"after": cursor}
	}
	res, err := c.query(ctx, table, map[string]any{"page": page})
	if err != nil {
		return types.Page{}, err
	}

	out := types.Page{Rows: make([]types.Row, 0, len(res.Records))}
	for _, rec := range res.Records {
		id, _ := rec["id"].(string)
		fields := make(map[string]any, len(rec))
		for k, v := range rec {
			if k == "id" || k == "xata" {
				continue
			}
			fields[k] = flattenLink(v)
		}
		out.Rows = append(out.Rows, types.Row{ID: id, Fields: fields})
	}
	if res.Meta.Page.More {
		out.Cursor = res.Meta.Page.Cursor
	}
	return out, nil
}

// flattenLink returns the id of an expanded link object, or v unchanged.
func flattenLink(v any) any {
	obj, ok := v.(map[string]any)
	if !ok || len(obj) != 1 {
		return v
	}
	if id, ok := obj["id"].(string); ok {
		return id
	}
	return v
}

// HasUnresolvedLinks implements types.LinkChecker with a query returning at most one row
// that has a staging value but no link.
func (c *Client) HasUnresolvedLinks(ctx context.Context, table targetschema.Table) (bool, error) {
	res, err := c.query(ctx, table.Name, map[string]any{
		"filter":  UnresolvedFilter(table.LinkColumns()),
		"columns": []string{"id"},
		"page":    map[string]any{"size": 1},
	})
	if err != nil {
		return false, err
	}
	return len(res.Records) > 0, nil
}

// UnresolvedFilter matches the rows where any of the link columns is empty while its
// staging column is set.
func UnresolvedFilter(linkColumns []string) map[string]any {
	clauses := make([]any, 0, len(linkColumns))
	for _, col := range linkColumns {
		clauses = append(clauses, map[string]any{
			"$all": []any{
				map[string]any{"$exists": col + targetschema.UnresolvedSuffix},
				map[string]any{"$notExists": col},
			},
		})
	}
	return map[string]any{"$any": clauses}
}

// Package airtable reads source records from the Airtable REST API.
package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/stokaro/ferry/dbschema/types"
)

const (
	// DefaultBaseURL is the Airtable API endpoint.
	DefaultBaseURL = "https://api.airtable.com"

	// MaxPageSize is the largest page the API serves.
	MaxPageSize = 100

	RequestTimeout = 45 * time.Second
)

// Options configures a Client.
type Options struct {
	APIKey  string
	BaseID  string
	BaseURL string // defaults to DefaultBaseURL
	// PageSize defaults to MaxPageSize
	PageSize int
}

// Client lists the records of the tables of one Airtable base.
type Client struct {
	http     *resty.Client
	baseID   string
	pageSize int
	logger   *slog.Logger
}

type listResponse struct {
	Records []struct {
		ID          string         `json:"id"`
		CreatedTime string         `json:"createdTime"`
		Fields      map[string]any `json:"fields"`
	} `json:"records"`
	Offset string `json:"offset"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// New creates a client for the base of opts.
func New(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	c := resty.New()
	c.SetBaseURL(baseURL)
	c.SetAuthToken(opts.APIKey)
	c.SetHeader("Content-Type", "application/json")
	c.SetTimeout(RequestTimeout)

	return &Client{http: c, baseID: opts.BaseID, pageSize: pageSize, logger: slog.Default()}
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

// ReadPage implements types.RecordReader. The table is the source table id, the cursor is
// the offset returned by the previous page.
func (c *Client) ReadPage(ctx context.Context, table, cursor string) (types.Page, error) {
	op := "list records " + table
	req := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"base": c.baseID, "table": table}).
		SetQueryParam("pageSize", strconv.Itoa(c.pageSize)).
		SetResult(&listResponse{})
	if cursor != "" {
		req.SetQueryParam("offset", cursor)
	}

	resp, err := req.Get("/v0/{base}/{table}")
	if err != nil {
		return types.Page{}, &types.TransportError{Op: op, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return types.Page{}, &types.TransportError{Op: op, Status: resp.StatusCode(), Payload: errorPayload(resp.Body())}
	}

	body := resp.Result().(*listResponse)
	page := types.Page{Rows: make([]types.Row, 0, len(body.Records)), Cursor: body.Offset}
	for _, r := range body.Records {
		page.Rows = append(page.Rows, types.Row{ID: r.ID, Fields: r.Fields})
	}
	c.logger.Debug("Listed records", "table", table, "records", len(page.Rows), "more", page.Cursor != "")
	return page, nil
}

func errorPayload(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Type != "" {
		return fmt.Sprintf("%s: %s", e.Error.Type, e.Error.Message)
	}
	return string(body)
}

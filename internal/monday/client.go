// Package monday implements the Monday.com sync engine: a GraphQL client,
// column-mapping resolution, value extraction, and reconciliation of remote
// boards against the local project mirror.
package monday

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	// maxAttempts bounds retries for transient transport failures.
	maxAttempts = 3
	// baseBackoff is the initial retry backoff.
	baseBackoff = time.Second
	// requestTimeout bounds each individual API request.
	requestTimeout = 30 * time.Second
)

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	APIURL      string
	Token       string
	PageSize    int
	IDBatchSize int
	Logger      *zap.Logger
	// For testing: inject an HTTP client instead of the default.
	HTTPClient *http.Client
	// For testing: override backoff between retries.
	Backoff time.Duration
}

// Client issues GraphQL queries against the Monday.com API, one request at
// a time, with bounded retry on transient network failure.
type Client struct {
	apiURL      string
	token       string
	pageSize    int
	idBatchSize int
	httpClient  *http.Client
	log         *zap.Logger
	backoff     time.Duration
}

// NewClient creates a Monday API client.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.APIURL == "" {
		return nil, fmt.Errorf("monday: api url is required")
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("monday: access token is required")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 500
	}
	if opts.IDBatchSize <= 0 {
		opts.IDBatchSize = 100
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Backoff <= 0 {
		opts.Backoff = baseBackoff
	}
	return &Client{
		apiURL:      opts.APIURL,
		token:       opts.Token,
		pageSize:    opts.PageSize,
		idBatchSize: opts.IDBatchSize,
		httpClient:  opts.HTTPClient,
		log:         opts.Logger,
		backoff:     opts.Backoff,
	}, nil
}

// graphqlError is one entry of a GraphQL-level error array.
type graphqlError struct {
	Message string `json:"message"`
}

// graphqlResponse is the API response envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// Request executes one GraphQL query and returns the raw data payload.
// Transient transport failures are retried up to maxAttempts with
// exponential backoff; HTTP and GraphQL-level errors fail immediately.
func (c *Client) Request(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.backoff * time.Duration(1<<(attempt-2))
			c.log.Debug("monday: retrying request",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		data, err := c.doRequest(ctx, query, variables)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("monday: request failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) doRequest(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, fmt.Errorf("monday: marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("monday: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("monday: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("monday: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &apiError{status: resp.StatusCode, body: string(raw)}
	}

	var envelope graphqlResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("monday: decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		msgs := make([]string, len(envelope.Errors))
		for i, e := range envelope.Errors {
			msgs[i] = e.Message
		}
		return nil, &apiError{graphql: strings.Join(msgs, "; ")}
	}
	return envelope.Data, nil
}

// apiError is a non-transient API-level failure (HTTP status or GraphQL
// error array). It is never retried.
type apiError struct {
	status  int
	body    string
	graphql string
}

func (e *apiError) Error() string {
	if e.graphql != "" {
		return fmt.Sprintf("monday: graphql error: %s", e.graphql)
	}
	return fmt.Sprintf("monday: http %d: %s", e.status, e.body)
}

// isTransient reports whether err looks like a transient network failure
// worth retrying: connection reset/refused, timeout, or DNS failure.
func isTransient(err error) bool {
	var api *apiError
	if errors.As(err, &api) {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// The per-request timeout surfaces as a deadline error on the request
	// context, not the caller's.
	return errors.Is(err, context.DeadlineExceeded)
}

const boardsQuery = `query {
  boards (limit: 200, state: active) {
    id
    name
    workspace { id }
  }
}`

// Boards fetches all active boards in the workspace.
func (c *Client) Boards(ctx context.Context) ([]Board, error) {
	data, err := c.Request(ctx, boardsQuery, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Boards []Board `json:"boards"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("monday: decode boards: %w", err)
	}
	return out.Boards, nil
}

const itemsPageQuery = `query ($boardID: [ID!], $limit: Int!) {
  boards (ids: $boardID) {
    items_page (limit: $limit) {
      cursor
      items {
        id
        name
        column_values { id type text value }
      }
    }
  }
}`

const nextItemsPageQuery = `query ($cursor: String!, $limit: Int!) {
  next_items_page (cursor: $cursor, limit: $limit) {
    cursor
    items {
      id
      name
      column_values { id type text value }
    }
  }
}`

// BoardItems fetches every item on a board, following the page cursor until
// exhausted. Cursors are only valid for a bounded window, so pages are
// fetched back to back.
func (c *Client) BoardItems(ctx context.Context, boardID string) ([]Item, error) {
	data, err := c.Request(ctx, itemsPageQuery, map[string]any{
		"boardID": []string{boardID},
		"limit":   c.pageSize,
	})
	if err != nil {
		return nil, err
	}
	var first struct {
		Boards []struct {
			ItemsPage itemsPage `json:"items_page"`
		} `json:"boards"`
	}
	if err := json.Unmarshal(data, &first); err != nil {
		return nil, fmt.Errorf("monday: decode items page: %w", err)
	}
	if len(first.Boards) == 0 {
		return nil, nil
	}

	page := first.Boards[0].ItemsPage
	items := page.Items
	for page.Cursor != "" {
		data, err := c.Request(ctx, nextItemsPageQuery, map[string]any{
			"cursor": page.Cursor,
			"limit":  c.pageSize,
		})
		if err != nil {
			return nil, err
		}
		var next struct {
			NextItemsPage itemsPage `json:"next_items_page"`
		}
		if err := json.Unmarshal(data, &next); err != nil {
			return nil, fmt.Errorf("monday: decode next items page: %w", err)
		}
		page = next.NextItemsPage
		items = append(items, page.Items...)
	}
	return items, nil
}

const itemsByIDsQuery = `query ($ids: [ID!]) {
  items (ids: $ids) {
    id
    name
    board { id name }
    column_values { id type text value }
  }
}`

// ItemsByIDs fetches specific items in batches. Used for completed boards,
// where only items already mirrored locally are of interest and a full scan
// would be wasteful.
func (c *Client) ItemsByIDs(ctx context.Context, ids []string) ([]Item, error) {
	var items []Item
	for start := 0; start < len(ids); start += c.idBatchSize {
		end := start + c.idBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		data, err := c.Request(ctx, itemsByIDsQuery, map[string]any{"ids": ids[start:end]})
		if err != nil {
			return nil, err
		}
		var out struct {
			Items []Item `json:"items"`
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("monday: decode items: %w", err)
		}
		items = append(items, out.Items...)
	}
	return items, nil
}

const subitemsQuery = `query ($ids: [ID!]) {
  items (ids: $ids) {
    subitems {
      id
      name
      column_values { id type text value }
    }
  }
}`

// Subitems fetches the subitems of a single item.
func (c *Client) Subitems(ctx context.Context, itemID string) ([]Item, error) {
	data, err := c.Request(ctx, subitemsQuery, map[string]any{"ids": []string{itemID}})
	if err != nil {
		return nil, err
	}
	var out struct {
		Items []struct {
			Subitems []Item `json:"subitems"`
		} `json:"items"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("monday: decode subitems: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	return out.Items[0].Subitems, nil
}

// Package accounting is a minimal read-only client for the studio's
// accounting API, used to pull invoice totals into the forecast. The OAuth
// consent flow lives outside this service; the client just spends a token.
package accounting

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

// Invoice is one invoice as the forecast needs it.
type Invoice struct {
	ID       string    `json:"id"`
	Contact  string    `json:"contact"`
	Total    float64   `json:"total"`
	Status   string    `json:"status"`
	IssuedAt time.Time `json:"issued_at"`
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	BaseURL  string
	TenantID string
	Token    string
	// For testing: inject an HTTP client and skip the oauth2 transport.
	HTTPClient *http.Client
}

// Client fetches invoices from the accounting API.
type Client struct {
	baseURL    string
	tenantID   string
	httpClient *http.Client
}

// NewClient creates an accounting API client authenticated with the given
// access token.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("accounting: base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		if opts.Token == "" {
			return nil, fmt.Errorf("accounting: access token is required")
		}
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		httpClient = oauth2.NewClient(context.Background(), src)
	}
	return &Client{
		baseURL:    opts.BaseURL,
		tenantID:   opts.TenantID,
		httpClient: httpClient,
	}, nil
}

// invoiceWire is the API's invoice representation.
type invoiceWire struct {
	InvoiceID string  `json:"InvoiceID"`
	Total     float64 `json:"Total"`
	Status    string  `json:"Status"`
	Date      string  `json:"DateString"`
	Contact   struct {
		Name string `json:"Name"`
	} `json:"Contact"`
}

// Invoices fetches invoices issued on or after since.
func (c *Client) Invoices(ctx context.Context, since time.Time) ([]Invoice, error) {
	u, err := url.Parse(c.baseURL + "/Invoices")
	if err != nil {
		return nil, fmt.Errorf("accounting: parse url: %w", err)
	}
	q := u.Query()
	q.Set("where", fmt.Sprintf("Date >= DateTime(%d, %d, %d)", since.Year(), since.Month(), since.Day()))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("accounting: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.tenantID != "" {
		req.Header.Set("Xero-Tenant-Id", c.tenantID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("accounting: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("accounting: http %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Invoices []invoiceWire `json:"Invoices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("accounting: decode invoices: %w", err)
	}

	invoices := make([]Invoice, 0, len(out.Invoices))
	for _, w := range out.Invoices {
		inv := Invoice{
			ID:      w.InvoiceID,
			Contact: w.Contact.Name,
			Total:   w.Total,
			Status:  w.Status,
		}
		if t, err := time.Parse("2006-01-02T15:04:05", w.Date); err == nil {
			inv.IssuedAt = t
		} else if t, err := time.Parse("2006-01-02", w.Date); err == nil {
			inv.IssuedAt = t
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

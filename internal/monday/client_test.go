package monday

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(ClientOpts{
		APIURL:      url,
		Token:       "tok",
		PageSize:    2,
		IDBatchSize: 2,
		Backoff:     time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(ClientOpts{Token: "tok"}); err == nil {
		t.Error("expected error for missing api url")
	}
	if _, err := NewClient(ClientOpts{APIURL: "http://x"}); err == nil {
		t.Error("expected error for missing token")
	}
}

func TestRequest_Success(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, `{"data": {"ok": true}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	data, err := c.Request(context.Background(), "query { ok }", map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if gotAuth != "tok" {
		t.Errorf("authorization = %q, want tok", gotAuth)
	}
	if gotBody["query"] != "query { ok }" {
		t.Errorf("query = %v", gotBody["query"])
	}
	if !strings.Contains(string(data), "true") {
		t.Errorf("data = %s", data)
	}
}

func TestRequest_GraphQLErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"errors": [{"message": "column not found"}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Request(context.Background(), "query { x }", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "column not found") {
		t.Errorf("err = %v, want graphql message surfaced", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on graphql error)", calls)
	}
}

func TestRequest_HTTPErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Request(context.Background(), "query { x }", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on http error)", calls)
	}
}

func TestRequest_TransientRetriedThenFails(t *testing.T) {
	// A server that is not listening produces connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url)
	start := time.Now()
	_, err := c.Request(context.Background(), "query { x }", nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("err = %v, want retry exhaustion", err)
	}
	// Two backoffs at 1ms base should still be fast.
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("retries took %v", elapsed)
	}
}

func TestIsTransient(t *testing.T) {
	if !isTransient(fmt.Errorf("wrap: %w", syscall.ECONNREFUSED)) {
		t.Error("ECONNREFUSED should be transient")
	}
	if !isTransient(fmt.Errorf("wrap: %w", syscall.ECONNRESET)) {
		t.Error("ECONNRESET should be transient")
	}
	if !isTransient(&net.DNSError{Err: "no such host"}) {
		t.Error("DNS failure should be transient")
	}
	if !isTransient(context.DeadlineExceeded) {
		t.Error("request timeout should be transient")
	}
	if isTransient(&apiError{status: 500, body: "boom"}) {
		t.Error("http error should not be transient")
	}
	if isTransient(&apiError{graphql: "bad query"}) {
		t.Error("graphql error should not be transient")
	}
	if isTransient(errors.New("something else")) {
		t.Error("unknown errors should not be transient")
	}
}

func TestBoardItems_Pagination(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		if strings.Contains(body.Query, "next_items_page") {
			if body.Variables["cursor"] != "c1" {
				t.Errorf("cursor = %v, want c1", body.Variables["cursor"])
			}
			fmt.Fprint(w, `{"data": {"next_items_page": {"cursor": "", "items": [{"id": "3", "name": "c"}]}}}`)
			return
		}
		fmt.Fprint(w, `{"data": {"boards": [{"items_page": {"cursor": "c1", "items": [{"id": "1", "name": "a"}, {"id": "2", "name": "b"}]}}]}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	items, err := c.BoardItems(context.Background(), "100")
	if err != nil {
		t.Fatalf("board items: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3 across pages", len(items))
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if items[2].ID != "3" {
		t.Errorf("last item = %q, want 3", items[2].ID)
	}
}

func TestItemsByIDs_Batching(t *testing.T) {
	var batches [][]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Variables struct {
				IDs []any `json:"ids"`
			} `json:"variables"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		batches = append(batches, body.Variables.IDs)
		fmt.Fprint(w, `{"data": {"items": [{"id": "1", "name": "a"}]}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL) // batch size 2
	if _, err := c.ItemsByIDs(context.Background(), []string{"1", "2", "3"}); err != nil {
		t.Fatalf("items by ids: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(batches))
	}
	if len(batches[0]) != 2 || len(batches[1]) != 1 {
		t.Errorf("batch sizes = %d/%d, want 2/1", len(batches[0]), len(batches[1]))
	}
}

func TestSubitems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {"items": [{"subitems": [{"id": "t1", "name": "Design"}]}]}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	subs, err := c.Subitems(context.Background(), "900")
	if err != nil {
		t.Fatalf("subitems: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != "t1" {
		t.Errorf("subitems = %+v, want one with id t1", subs)
	}
}

package client

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strconv"
    "strings"
    "time"

    "github.com/azikar24/WormaCeptor-sub003/internal/domain"
)

// Client talks to a running inspector's HTTP API.
type Client struct {
    BaseURL string
    HTTP    *http.Client
}

func New(baseURL string) *Client {
    return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: http.DefaultClient}
}

// APIError is the decoded error envelope of a non-2xx response.
type APIError struct {
    Status  int
    Code    string `json:"code"`
    Message string `json:"message"`
}

func (e *APIError) Error() string {
    return fmt.Sprintf("inspector api: %d %s: %s", e.Status, e.Code, e.Message)
}

type Page struct {
    Items      []domain.Transaction `json:"items"`
    NextCursor string               `json:"nextCursor"`
}

type Activity struct {
    Entries        []domain.ActivityEntry `json:"entries"`
    RequestedCount int                    `json:"requestedCount"`
}

type Retention struct {
    Period        domain.RetentionPeriod `json:"period"`
    LastCleanupAt *time.Time             `json:"lastCleanupAt"`
    State         string                 `json:"state"`
}

type PurgeResult struct {
    Purged  bool   `json:"purged"`
    Deleted int64  `json:"deleted"`
    Skipped string `json:"skipped,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
    req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
    if err != nil { return err }
    if body != nil { req.Header.Set("Content-Type", "application/json") }
    resp, err := c.HTTP.Do(req)
    if err != nil { return err }
    defer resp.Body.Close()
    if resp.StatusCode >= 300 {
        var env struct{ Error APIError `json:"error"` }
        _ = json.NewDecoder(resp.Body).Decode(&env)
        env.Error.Status = resp.StatusCode
        return &env.Error
    }
    if out == nil { return nil }
    return json.NewDecoder(resp.Body).Decode(out)
}

// ListTransactions returns one page; pass the previous NextCursor to continue.
func (c *Client) ListTransactions(ctx context.Context, query string, limit int, cursor string) (Page, error) {
    v := url.Values{}
    if query != "" { v.Set("q", query) }
    if limit > 0 { v.Set("limit", strconv.Itoa(limit)) }
    if cursor != "" { v.Set("cursor", cursor) }
    var p Page
    err := c.do(ctx, http.MethodGet, "/api/transactions?"+v.Encode(), nil, &p)
    return p, err
}

func (c *Client) GetTransaction(ctx context.Context, id int64) (domain.Transaction, error) {
    var tx domain.Transaction
    err := c.do(ctx, http.MethodGet, "/api/transactions/"+strconv.FormatInt(id, 10), nil, &tx)
    return tx, err
}

// DeleteBefore removes transactions requested before t; a zero t clears everything.
func (c *Client) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
    path := "/api/transactions"
    if !t.IsZero() {
        path += "?before=" + url.QueryEscape(t.UTC().Format(time.RFC3339))
    }
    var out struct{ Deleted int64 `json:"deleted"` }
    err := c.do(ctx, http.MethodDelete, path, nil, &out)
    return out.Deleted, err
}

func (c *Client) Activity(ctx context.Context) (Activity, error) {
    var a Activity
    err := c.do(ctx, http.MethodGet, "/api/activity", nil, &a)
    return a, err
}

func (c *Client) ClearActivity(ctx context.Context) error {
    return c.do(ctx, http.MethodDelete, "/api/activity", nil, nil)
}

func (c *Client) Retention(ctx context.Context) (Retention, error) {
    var r Retention
    err := c.do(ctx, http.MethodGet, "/api/retention", nil, &r)
    return r, err
}

func (c *Client) SetRetention(ctx context.Context, p domain.RetentionPeriod) (Retention, error) {
    b, _ := json.Marshal(map[string]string{"period": string(p)})
    var r Retention
    err := c.do(ctx, http.MethodPut, "/api/retention", strings.NewReader(string(b)), &r)
    return r, err
}

func (c *Client) RunRetention(ctx context.Context, force bool) (PurgeResult, error) {
    path := "/api/retention/run"
    if force { path += "?force=1" }
    var res PurgeResult
    err := c.do(ctx, http.MethodPost, path, nil, &res)
    return res, err
}

package client

import (
    "context"
    "errors"
    "io"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/azikar24/WormaCeptor-sub003/internal/domain"
    "github.com/azikar24/WormaCeptor-sub003/pkg/inspector"
)

func startEngine(t *testing.T) (*inspector.Engine, *Client) {
    t.Helper()
    cfg := inspector.DefaultConfig()
    cfg.Storage.Driver = "memory"
    cfg.Capture.AsyncWrites = false
    eng, err := inspector.New(context.Background(), cfg, nil, nil)
    if err != nil {
        t.Fatalf("engine: %v", err)
    }
    srv := httptest.NewServer(eng.Handler())
    t.Cleanup(func() {
        srv.Close()
        _ = eng.Close()
    })
    return eng, New(srv.URL + "/")
}

func TestClientRoundTrip(t *testing.T) {
    ctx := context.Background()
    eng, c := startEngine(t)
    up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        _, _ = io.WriteString(w, "ok")
    }))
    defer up.Close()
    for i := 0; i < 3; i++ {
        resp, err := eng.Client().Get(up.URL + "/x")
        if err != nil {
            t.Fatal(err)
        }
        resp.Body.Close()
    }

    p, err := c.ListTransactions(ctx, "", 2, "")
    if err != nil || len(p.Items) != 2 || p.NextCursor == "" {
        t.Fatalf("list: %+v %v", p, err)
    }
    rest, err := c.ListTransactions(ctx, "", 2, p.NextCursor)
    if err != nil || len(rest.Items) != 1 || rest.Items[0].ID != 1 {
        t.Fatalf("next page: %+v %v", rest, err)
    }

    tx, err := c.GetTransaction(ctx, 2)
    if err != nil || tx.Status != domain.StatusComplete {
        t.Fatalf("get: %+v %v", tx, err)
    }
    _, err = c.GetTransaction(ctx, 42)
    var apiErr *APIError
    if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || apiErr.Code != "NOT_FOUND" {
        t.Fatalf("expected not found, got %v", err)
    }

    a, err := c.Activity(ctx)
    if err != nil || len(a.Entries) != 3 || a.RequestedCount != 3 {
        t.Fatalf("activity: %+v %v", a, err)
    }
    if err := c.ClearActivity(ctx); err != nil {
        t.Fatal(err)
    }

    n, err := c.DeleteBefore(ctx, time.Time{})
    if err != nil || n != 3 {
        t.Fatalf("clear: %d %v", n, err)
    }
}

func TestClientRetention(t *testing.T) {
    ctx := context.Background()
    _, c := startEngine(t)

    r, err := c.SetRetention(ctx, domain.RetentionOneDay)
    if err != nil || r.Period != domain.RetentionOneDay {
        t.Fatalf("set: %+v %v", r, err)
    }
    res, err := c.RunRetention(ctx, true)
    if err != nil || !res.Purged {
        t.Fatalf("run: %+v %v", res, err)
    }
    r, err = c.Retention(ctx)
    if err != nil || r.LastCleanupAt == nil {
        t.Fatalf("get: %+v %v", r, err)
    }
}

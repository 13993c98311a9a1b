package inspector

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azikar24/WormaCeptor-sub003/internal/domain"
)

func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "pong "+r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func memoryConfig() Config {
	cfg := DefaultConfig()
	cfg.Storage.Driver = "memory"
	return cfg
}

func TestEngineCapturesClientTraffic(t *testing.T) {
	ctx := context.Background()
	srv := upstream(t)
	eng, err := New(ctx, memoryConfig(), nil, nil)
	require.NoError(t, err)
	eng.Start(ctx)
	defer eng.Close()

	resp, err := eng.Client().Get(srv.URL + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong /ping", string(body))
	require.NoError(t, eng.Flush(ctx))

	page, err := eng.Page(ctx, "", 10, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	tx := page.Items[0]
	assert.Equal(t, domain.StatusComplete, tx.Status)
	assert.Equal(t, eng.SessionID, tx.SessionID)
	assert.Equal(t, "pong /ping", tx.Response.Body.Text())

	activity := eng.RecentActivity()
	require.Len(t, activity, 1)
	assert.Equal(t, "200 GET /ping", activity[0].Summary)
	assert.Equal(t, 1, eng.RecentRequestedCount())

	rec := httptest.NewRecorder()
	eng.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var out Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Items, 1)
	assert.Equal(t, tx.ID, out.Items[0].ID)
}

func TestEngineResumesFromSQLite(t *testing.T) {
	ctx := context.Background()
	srv := upstream(t)
	cfg := DefaultConfig()
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "wc.db")

	eng, err := New(ctx, cfg, nil, nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		resp, err := eng.Client().Get(srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}
	require.NoError(t, eng.SetRetention(ctx, domain.RetentionOneDay))
	require.NoError(t, eng.Close())
	require.NoError(t, eng.Close())

	eng, err = New(ctx, cfg, nil, nil)
	require.NoError(t, err)
	defer eng.Close()
	assert.Len(t, eng.RecentActivity(), 3, "activity is rebuilt from the store")
	assert.Equal(t, domain.RetentionOneDay, eng.Retention(ctx))

	id, err := eng.Begin(ctx, RequestMetadata{Method: "GET", URL: "http://manual.test/"})
	require.NoError(t, err)
	assert.EqualValues(t, 4, id)
	require.NoError(t, eng.Fail(ctx, id, "cancelled", 0))
	require.NoError(t, eng.Flush(ctx))
	tx, err := eng.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, tx.Status)

	n, err := eng.ClearAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	assert.Empty(t, eng.RecentActivity())
}

func TestEngineRejectsUnknownDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Driver = "etcd"
	_, err := New(context.Background(), cfg, nil, nil)
	assert.Error(t, err)
}

func TestEngineRetentionDisabled(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, memoryConfig(), nil, nil)
	require.NoError(t, err)
	defer eng.Close()
	require.NoError(t, eng.SetRetention(ctx, domain.RetentionNever))
	res, err := eng.Maintain(ctx)
	require.NoError(t, err)
	assert.Equal(t, "disabled", res.Skipped)
	res, err = eng.ForcePurge(ctx)
	require.NoError(t, err)
	assert.False(t, res.Purged)
}

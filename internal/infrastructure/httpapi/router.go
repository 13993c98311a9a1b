package httpapi

import (
    "context"
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"
    "github.com/rs/zerolog"

    "github.com/azikar24/WormaCeptor-sub003/internal/infrastructure/config"
    obs "github.com/azikar24/WormaCeptor-sub003/internal/infrastructure/observability"
    "github.com/azikar24/WormaCeptor-sub003/internal/usecase"
)

type Deps struct {
    Cfg       config.Config
    Logger    *zerolog.Logger
    Metrics   *obs.Metrics
    Query     *usecase.QueryService
    Retention *usecase.RetentionScheduler
    Monitor   *MonitorHub
    // Transport carries /proxy traffic, normally the capture transport.
    Transport http.RoundTripper
    // Ready reports store health for /readyz; nil means always ready.
    Ready func(ctx context.Context) error
}

func NewRouter(d *Deps) http.Handler {
    if d.Logger == nil {
        nop := zerolog.Nop()
        d.Logger = &nop
    }
    if d.Metrics == nil {
        d.Metrics = obs.NewMetrics()
    }
    if d.Monitor == nil {
        d.Monitor = NewMonitorHub(d.Logger)
    }
    if d.Transport == nil {
        d.Transport = newTransport(d.Cfg)
    }
    return withCORS(d.Cfg, buildBaseMux(d))
}

// buildBaseMux constructs the mux with all routes, without wrappers.
func buildBaseMux(d *Deps) *http.ServeMux {
    mux := http.NewServeMux()

    mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
    })
    mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
        if d.Ready != nil {
            ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
            defer cancel()
            if err := d.Ready(ctx); err != nil {
                writeError(w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), nil)
                return
            }
        }
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ready"))
    })

    mux.Handle("GET /metrics", promhttp.HandlerFor(d.Metrics.Registry(), promhttp.HandlerOpts{}))

    mux.HandleFunc("GET /api/version", func(w http.ResponseWriter, r *http.Request) {
        writeJSON(w, http.StatusOK, obs.Build())
    })

    mux.HandleFunc("GET /api/transactions", d.handleListTransactions)
    mux.HandleFunc("DELETE /api/transactions", d.handleDeleteTransactions)
    mux.HandleFunc("GET /api/transactions.har", d.handleExportHAR)
    mux.HandleFunc("GET /api/transactions/{id}", d.handleGetTransaction)
    mux.HandleFunc("GET /api/transactions/{id}/har", d.handleTransactionHAR)

    mux.HandleFunc("GET /api/activity", d.handleActivity)
    mux.HandleFunc("DELETE /api/activity", d.handleClearActivity)

    mux.HandleFunc("GET /api/retention", d.handleGetRetention)
    mux.HandleFunc("PUT /api/retention", d.handlePutRetention)
    mux.HandleFunc("POST /api/retention/run", d.handleRunRetention)

    mux.HandleFunc("GET /api/monitor/ws", d.Monitor.HandleWS)

    // HTTP reverse proxy through the capture transport
    //  - GET /proxy?target=https://api.example.com            -> https://api.example.com/
    //  - GET /proxy/v1/users?target=https://api.example.com   -> https://api.example.com/v1/users
    mux.HandleFunc("/proxy", d.handleHTTPProxy)
    mux.HandleFunc("/proxy/", d.handleHTTPProxy)

    return mux
}

func withCORS(cfg config.Config, h http.Handler) http.Handler {
    origin := cfg.App.CORSAllowOrigin
    if origin == "" { origin = "*" }
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Access-Control-Allow-Origin", origin)
        w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Cookie, Sec-WebSocket-Protocol")
        w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
        if r.Method == http.MethodOptions {
            w.WriteHeader(http.StatusNoContent)
            return
        }
        h.ServeHTTP(w, r)
    })
}

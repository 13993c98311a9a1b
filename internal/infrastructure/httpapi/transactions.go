package httpapi

import (
    "net/http"
    "strconv"
    "time"

    "github.com/azikar24/WormaCeptor-sub003/internal/domain"
)

func (d *Deps) handleListTransactions(w http.ResponseWriter, r *http.Request) {
    q := r.URL.Query()
    limit := 0
    if v := q.Get("limit"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n < 0 {
            writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer", map[string]any{"limit": v})
            return
        }
        limit = n
    }
    page, err := d.Query.Page(r.Context(), q.Get("q"), limit, q.Get("cursor"))
    if err != nil {
        writeUsecaseError(w, err, nil)
        return
    }
    writeJSON(w, http.StatusOK, page)
}

func (d *Deps) handleDeleteTransactions(w http.ResponseWriter, r *http.Request) {
    var (
        n   int64
        err error
    )
    if v := r.URL.Query().Get("before"); v != "" {
        before, perr := time.Parse(time.RFC3339, v)
        if perr != nil {
            writeError(w, http.StatusBadRequest, "INVALID_BEFORE", "before must be RFC3339", map[string]any{"before": v})
            return
        }
        n, err = d.Query.DeleteBefore(r.Context(), before)
    } else {
        n, err = d.Query.ClearAll(r.Context())
    }
    if err != nil {
        writeUsecaseError(w, err, nil)
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
    raw := r.PathValue("id")
    id, err := strconv.ParseInt(raw, 10, 64)
    if err != nil || id <= 0 {
        writeError(w, http.StatusBadRequest, "INVALID_ID", "id must be a positive integer", map[string]any{"id": raw})
        return 0, false
    }
    return id, true
}

func (d *Deps) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
    id, ok := pathID(w, r)
    if !ok { return }
    tx, err := d.Query.Get(r.Context(), id)
    if err != nil {
        writeUsecaseError(w, err, map[string]any{"id": id})
        return
    }
    writeJSON(w, http.StatusOK, tx)
}

func (d *Deps) handleTransactionHAR(w http.ResponseWriter, r *http.Request) {
    id, ok := pathID(w, r)
    if !ok { return }
    tx, err := d.Query.Get(r.Context(), id)
    if err != nil {
        writeUsecaseError(w, err, map[string]any{"id": id})
        return
    }
    writeHAR(w, "transaction_"+strconv.FormatInt(id, 10), []domain.Transaction{tx})
}

func (d *Deps) handleExportHAR(w http.ResponseWriter, r *http.Request) {
    txs := make([]domain.Transaction, 0, 256)
    err := d.Query.All(r.Context(), r.URL.Query().Get("q"), func(tx domain.Transaction) error {
        txs = append(txs, tx)
        return nil
    })
    if err != nil {
        writeUsecaseError(w, err, nil)
        return
    }
    writeHAR(w, "transactions", txs)
}

func (d *Deps) handleActivity(w http.ResponseWriter, r *http.Request) {
    entries := d.Query.RecentActivity()
    if entries == nil { entries = []domain.ActivityEntry{} }
    writeJSON(w, http.StatusOK, map[string]any{
        "entries":        entries,
        "requestedCount": d.Query.RecentRequestedCount(),
    })
}

func (d *Deps) handleClearActivity(w http.ResponseWriter, r *http.Request) {
    d.Query.ClearActivity()
    w.WriteHeader(http.StatusNoContent)
}

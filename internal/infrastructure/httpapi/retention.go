package httpapi

import (
    "encoding/json"
    "net/http"
    "time"

    "github.com/azikar24/WormaCeptor-sub003/internal/domain"
)

type retentionDTO struct {
    Period        domain.RetentionPeriod `json:"period"`
    LastCleanupAt *time.Time             `json:"lastCleanupAt"`
    State         string                 `json:"state"`
}

func (d *Deps) retentionView(r *http.Request) (retentionDTO, error) {
    out := retentionDTO{
        Period: d.Retention.Period(r.Context()),
        State:  string(d.Retention.State()),
    }
    last, ok, err := d.Retention.LastCleanup(r.Context())
    if err != nil {
        return out, err
    }
    if ok {
        out.LastCleanupAt = &last
    }
    return out, nil
}

func (d *Deps) handleGetRetention(w http.ResponseWriter, r *http.Request) {
    v, err := d.retentionView(r)
    if err != nil {
        writeUsecaseError(w, err, nil)
        return
    }
    writeJSON(w, http.StatusOK, v)
}

func (d *Deps) handlePutRetention(w http.ResponseWriter, r *http.Request) {
    var in struct {
        Period string `json:"period"`
    }
    if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
        writeError(w, http.StatusBadRequest, "BAD_JSON", "invalid json", nil)
        return
    }
    p, err := domain.ParseRetentionPeriod(in.Period)
    if err != nil {
        writeError(w, http.StatusBadRequest, "BAD_VALUE", err.Error(), map[string]any{"period": in.Period})
        return
    }
    if err := d.Retention.SetPeriod(r.Context(), p); err != nil {
        writeUsecaseError(w, err, nil)
        return
    }
    d.handleGetRetention(w, r)
}

// handleRunRetention evaluates the policy now; ?force=1 ignores the cooldown.
func (d *Deps) handleRunRetention(w http.ResponseWriter, r *http.Request) {
    run := d.Retention.Maintain
    if f := r.URL.Query().Get("force"); f == "1" || f == "true" {
        run = d.Retention.Force
    }
    res, err := run(r.Context())
    if err != nil {
        writeUsecaseError(w, err, nil)
        return
    }
    writeJSON(w, http.StatusOK, res)
}

package httpapi

import (
    "encoding/json"
    "errors"
    "net/http"

    "github.com/azikar24/WormaCeptor-sub003/internal/usecase"
)

type apiErrorBody struct {
    Error apiError `json:"error"`
}

type apiError struct {
    Code    string      `json:"code"`
    Message string      `json:"message"`
    Details interface{} `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code string, message string, details interface{}) {
    if code == "" { code = http.StatusText(status) }
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(apiErrorBody{Error: apiError{Code: code, Message: message, Details: details}})
}

// writeUsecaseError maps engine sentinels onto the error envelope.
func writeUsecaseError(w http.ResponseWriter, err error, details interface{}) {
    switch {
    case errors.Is(err, usecase.ErrNotFound):
        writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), details)
    case errors.Is(err, usecase.ErrInvalidCursor):
        writeError(w, http.StatusBadRequest, "INVALID_CURSOR", err.Error(), details)
    case errors.Is(err, usecase.ErrRetentionPurgeFailed):
        writeError(w, http.StatusInternalServerError, "PURGE_FAILED", err.Error(), details)
    default:
        writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), details)
    }
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

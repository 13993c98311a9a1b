package domain

import (
	"fmt"
	"time"
)

// Color is the coarse classification used to tint activity entries.
type Color string

const (
	ColorRequested   Color = "requested"
	ColorSuccess     Color = "success"
	ColorRedirect    Color = "redirect"
	ColorClientError Color = "client_error"
	ColorServerError Color = "server_error"
	ColorFailed      Color = "failed"
)

// ActivityEntry is the lightweight view kept in the notification buffer.
type ActivityEntry struct {
	ID        int64     `json:"id"`
	Status    Status    `json:"status"`
	Summary   string    `json:"summary"`
	Color     Color     `json:"color"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewActivityEntry summarizes tx, e.g. "200 GET /x", "... GET /x", "!!! GET /x".
func NewActivityEntry(tx Transaction) ActivityEntry {
	e := ActivityEntry{ID: tx.ID, Status: tx.Status, Color: Classify(tx), UpdatedAt: tx.RequestedAt}
	path := tx.Path
	if path == "" {
		path = "/"
	}
	switch tx.Status {
	case StatusComplete:
		e.Summary = fmt.Sprintf("%d %s %s", tx.ResponseCode(), tx.Method, path)
		if tx.Response != nil {
			e.UpdatedAt = tx.Response.ReceivedAt
		}
	case StatusFailed:
		e.Summary = fmt.Sprintf("!!! %s %s", tx.Method, path)
		e.UpdatedAt = tx.RequestedAt.Add(tx.Duration)
	default:
		e.Summary = fmt.Sprintf("... %s %s", tx.Method, path)
	}
	return e
}

func Classify(tx Transaction) Color {
	switch tx.Status {
	case StatusFailed:
		return ColorFailed
	case StatusRequested:
		return ColorRequested
	}
	code := tx.ResponseCode()
	switch {
	case code >= 500:
		return ColorServerError
	case code >= 400:
		return ColorClientError
	case code >= 300:
		return ColorRedirect
	}
	return ColorSuccess
}

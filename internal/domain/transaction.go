package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a captured transaction.
type Status string

const (
	StatusRequested Status = "requested"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusComplete, StatusFailed:
		return true
	}
	return false
}

// Header is a single name/value pair. Headers keep wire order and duplicates.
type Header struct {
	Name  string `json:"name" bson:"name"`
	Value string `json:"value" bson:"value"`
}

type Headers []Header

// Get returns the first value for name, case-insensitively.
func (h Headers) Get(name string) string {
	for _, kv := range h {
		if strings.EqualFold(kv.Name, name) {
			return kv.Value
		}
	}
	return ""
}

// Body is a best-effort capture of a request or response payload.
// Content is empty when the payload exceeded the capture ceiling.
type Body struct {
	Content     []byte `json:"content,omitempty" bson:"content,omitempty"`
	ContentType string `json:"contentType,omitempty" bson:"content_type,omitempty"`
	Encoding    string `json:"encoding,omitempty" bson:"encoding,omitempty"`
	Size        int64  `json:"size" bson:"size"`
	PlainText   bool   `json:"plainText" bson:"plain_text"`
	Truncated   bool   `json:"truncated" bson:"truncated"`
}

// Text returns the payload as a string when it was captured as plain text.
func (b Body) Text() string {
	if !b.PlainText {
		return ""
	}
	return string(b.Content)
}

// Timings captures coarse-grained timing milestones for an exchange.
type Timings struct {
	DNS     int64 `json:"dnsMs" bson:"dns_ms"`         // DNS resolve duration in ms
	Connect int64 `json:"connectMs" bson:"connect_ms"` // TCP connect duration in ms
	TLS     int64 `json:"tlsMs" bson:"tls_ms"`         // TLS handshake duration in ms
	TTFB    int64 `json:"ttfbMs" bson:"ttfb_ms"`       // time to first response byte in ms
	Total   int64 `json:"totalMs" bson:"total_ms"`
}

type Response struct {
	Code       int       `json:"code" bson:"code"`
	Message    string    `json:"message,omitempty" bson:"message,omitempty"`
	Headers    Headers   `json:"headers" bson:"headers"`
	Body       Body      `json:"body" bson:"body"`
	ReceivedAt time.Time `json:"receivedAt" bson:"received_at"`
	Protocol   string    `json:"protocol,omitempty" bson:"protocol,omitempty"`
	TLS        bool      `json:"tls" bson:"tls"`
	Timings    Timings   `json:"timings" bson:"timings"`
}

// Transaction is one captured HTTP exchange.
type Transaction struct {
	ID        int64  `json:"id" bson:"_id"`
	SessionID string `json:"sessionId" bson:"session_id"`
	Status    Status `json:"status" bson:"status"`

	Method         string    `json:"method" bson:"method"`
	URL            string    `json:"url" bson:"url"`
	Scheme         string    `json:"scheme" bson:"scheme"`
	Host           string    `json:"host" bson:"host"`
	Path           string    `json:"path" bson:"path"`
	RequestHeaders Headers   `json:"requestHeaders" bson:"request_headers"`
	RequestBody    Body      `json:"requestBody" bson:"request_body"`
	RequestedAt    time.Time `json:"requestedAt" bson:"requested_at"`

	// Response is nil until the transaction completes.
	Response *Response     `json:"response,omitempty" bson:"response,omitempty"`
	Duration time.Duration `json:"duration" bson:"duration"`
	Error    string        `json:"error,omitempty" bson:"error,omitempty"`
}

// ResponseCode returns the response status code, or 0 when there is no response.
func (t Transaction) ResponseCode() int {
	if t.Response == nil {
		return 0
	}
	return t.Response.Code
}

// Clone returns a deep copy so stored records never alias caller memory.
func (t Transaction) Clone() Transaction {
	out := t
	out.RequestHeaders = cloneHeaders(t.RequestHeaders)
	out.RequestBody = cloneBody(t.RequestBody)
	if t.Response != nil {
		r := *t.Response
		r.Headers = cloneHeaders(t.Response.Headers)
		r.Body = cloneBody(t.Response.Body)
		out.Response = &r
	}
	return out
}

func cloneHeaders(h Headers) Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	copy(out, h)
	return out
}

func cloneBody(b Body) Body {
	if b.Content != nil {
		c := make([]byte, len(b.Content))
		copy(c, b.Content)
		b.Content = c
	}
	return b
}

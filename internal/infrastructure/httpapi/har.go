package httpapi

import (
    "encoding/base64"
    "net/http"
    "net/url"
    "strconv"
    "time"

    "github.com/azikar24/WormaCeptor-sub003/internal/domain"
    obs "github.com/azikar24/WormaCeptor-sub003/internal/infrastructure/observability"
)

// Minimal HAR 1.2 structs for export
type harFile struct {
    Log harLog `json:"log"`
}
type harLog struct {
    Version string     `json:"version"`
    Creator harName    `json:"creator"`
    Entries []harEntry `json:"entries"`
}
type harName struct {
    Name    string `json:"name"`
    Version string `json:"version"`
}
type harEntry struct {
    StartedDateTime time.Time   `json:"startedDateTime"`
    Time            int64       `json:"time"`
    Request         harRequest  `json:"request"`
    Response        harResponse `json:"response"`
    Cache           struct{}    `json:"cache"`
    Timings         harTimings  `json:"timings"`
    Comment         string      `json:"comment,omitempty"`
}
type harNV struct {
    Name  string `json:"name"`
    Value string `json:"value"`
}
type harRequest struct {
    Method      string       `json:"method"`
    URL         string       `json:"url"`
    HTTPVersion string       `json:"httpVersion"`
    Headers     []harNV      `json:"headers"`
    QueryString []harNV      `json:"queryString"`
    Cookies     []harNV      `json:"cookies"`
    PostData    *harPostData `json:"postData,omitempty"`
    HeadersSize int          `json:"headersSize"`
    BodySize    int64        `json:"bodySize"`
}
type harPostData struct {
    MimeType string `json:"mimeType"`
    Text     string `json:"text"`
}
type harResponse struct {
    Status      int        `json:"status"`
    StatusText  string     `json:"statusText"`
    HTTPVersion string     `json:"httpVersion"`
    Headers     []harNV    `json:"headers"`
    Cookies     []harNV    `json:"cookies"`
    Content     harContent `json:"content"`
    RedirectURL string     `json:"redirectURL"`
    HeadersSize int        `json:"headersSize"`
    BodySize    int64      `json:"bodySize"`
}
type harContent struct {
    Size     int64  `json:"size"`
    MimeType string `json:"mimeType"`
    Text     string `json:"text,omitempty"`
    Encoding string `json:"encoding,omitempty"`
}
type harTimings struct {
    DNS     int64 `json:"dns"`
    Connect int64 `json:"connect"`
    SSL     int64 `json:"ssl"`
    Send    int64 `json:"send"`
    Wait    int64 `json:"wait"`
    Receive int64 `json:"receive"`
}

func newHAR(txs []domain.Transaction) harFile {
    entries := make([]harEntry, 0, len(txs))
    // HAR entries are chronological
    for i := len(txs) - 1; i >= 0; i-- {
        entries = append(entries, harEntryFor(txs[i]))
    }
    return harFile{Log: harLog{Version: "1.2", Creator: harName{Name: "wormaceptor", Version: obs.Version}, Entries: entries}}
}

func harHeaders(h domain.Headers) []harNV {
    out := make([]harNV, 0, len(h))
    for _, kv := range h {
        out = append(out, harNV{Name: kv.Name, Value: kv.Value})
    }
    return out
}

func harEntryFor(tx domain.Transaction) harEntry {
    e := harEntry{
        StartedDateTime: tx.RequestedAt,
        Time:            tx.Duration.Milliseconds(),
        Request: harRequest{
            Method:      tx.Method,
            URL:         tx.URL,
            HTTPVersion: "HTTP/1.1",
            Headers:     harHeaders(tx.RequestHeaders),
            QueryString: []harNV{},
            Cookies:     []harNV{},
            HeadersSize: -1,
            BodySize:    tx.RequestBody.Size,
        },
        Response: harResponse{Headers: []harNV{}, Cookies: []harNV{}, HeadersSize: -1, BodySize: -1},
        Timings:  harTimings{DNS: -1, Connect: -1, SSL: -1},
        Comment:  string(tx.Status),
    }
    if u, err := url.Parse(tx.URL); err == nil {
        for k, vs := range u.Query() {
            for _, v := range vs {
                e.Request.QueryString = append(e.Request.QueryString, harNV{Name: k, Value: v})
            }
        }
    }
    if tx.RequestBody.PlainText && len(tx.RequestBody.Content) > 0 {
        e.Request.PostData = &harPostData{MimeType: tx.RequestBody.ContentType, Text: tx.RequestBody.Text()}
    }
    if tx.Error != "" {
        e.Comment = string(tx.Status) + ": " + tx.Error
    }
    if r := tx.Response; r != nil {
        e.Request.HTTPVersion = r.Protocol
        e.Response = harResponse{
            Status:      r.Code,
            StatusText:  r.Message,
            HTTPVersion: r.Protocol,
            Headers:     harHeaders(r.Headers),
            Cookies:     []harNV{},
            Content:     harContent{Size: r.Body.Size, MimeType: r.Body.ContentType},
            RedirectURL: r.Headers.Get("Location"),
            HeadersSize: -1,
            BodySize:    r.Body.Size,
        }
        if e.Response.StatusText == "" {
            e.Response.StatusText = http.StatusText(r.Code)
        }
        switch {
        case r.Body.PlainText:
            e.Response.Content.Text = r.Body.Text()
        case len(r.Body.Content) > 0:
            e.Response.Content.Text = base64.StdEncoding.EncodeToString(r.Body.Content)
            e.Response.Content.Encoding = "base64"
        }
        t := r.Timings
        e.Timings = harTimings{DNS: orNone(t.DNS), Connect: orNone(t.Connect), SSL: orNone(t.TLS), Wait: t.TTFB, Receive: max64(t.Total-t.TTFB, 0)}
    }
    return e
}

func orNone(ms int64) int64 {
    if ms <= 0 { return -1 }
    return ms
}

func max64(a, b int64) int64 {
    if a > b { return a }
    return b
}

func writeHAR(w http.ResponseWriter, name string, txs []domain.Transaction) {
    w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(name+".har"))
    writeJSON(w, http.StatusOK, newHAR(txs))
}

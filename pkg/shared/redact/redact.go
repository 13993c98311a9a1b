// Package redact masks sensitive header values and JSON fields before they
// are persisted.
package redact

import (
    "encoding/json"
    "strings"
)

// Mask replaces every redacted value.
const Mask = "**"

// DefaultJSONKeys are the body fields masked when no list is configured.
var DefaultJSONKeys = []string{"authorization", "cookie", "access_token", "id_token", "refresh_token", "session", "apikey", "password"}

// Redactor holds case-insensitive sets of header names and JSON keys.
// A nil *Redactor redacts nothing.
type Redactor struct {
    headers map[string]struct{}
    keys    map[string]struct{}
}

func New(headerNames, jsonKeys []string) *Redactor {
    return &Redactor{headers: toSet(headerNames), keys: toSet(jsonKeys)}
}

func toSet(in []string) map[string]struct{} {
    out := make(map[string]struct{}, len(in))
    for _, s := range in {
        s = strings.ToLower(strings.TrimSpace(s))
        if s != "" { out[s] = struct{}{} }
    }
    return out
}

// Header returns Mask when name is configured for redaction, value otherwise.
func (r *Redactor) Header(name, value string) string {
    if r == nil { return value }
    if _, ok := r.headers[strings.ToLower(name)]; ok {
        return Mask
    }
    return value
}

// JSON masks configured keys at any depth. ok is false when b is not JSON or
// nothing was masked, in which case b is returned untouched.
func (r *Redactor) JSON(b []byte) (out []byte, ok bool) {
    if r == nil || len(r.keys) == 0 { return b, false }
    var v any
    if err := json.Unmarshal(b, &v); err != nil {
        return b, false
    }
    if !r.redactNode(&v) { return b, false }
    out, err := json.Marshal(v)
    if err != nil { return b, false }
    return out, true
}

// RedactJSON masks DefaultJSONKeys in a JSON string best-effort.
func RedactJSON(s string) string {
    out, _ := New(nil, DefaultJSONKeys).JSON([]byte(s))
    return string(out)
}

func (r *Redactor) redactNode(n *any) bool {
    changed := false
    switch t := (*n).(type) {
    case map[string]any:
        for k, v := range t {
            if _, ok := r.keys[strings.ToLower(k)]; ok {
                t[k] = Mask
                changed = true
                continue
            }
            vv := any(v)
            if r.redactNode(&vv) {
                t[k] = vv
                changed = true
            }
        }
    case []any:
        for i := range t {
            vv := any(t[i])
            if r.redactNode(&vv) {
                t[i] = vv
                changed = true
            }
        }
    }
    return changed
}

package redact

import "testing"

func TestHeader(t *testing.T) {
    r := New([]string{"Authorization", " cookie "}, nil)
    if got := r.Header("authorization", "Bearer x"); got != Mask {
        t.Fatalf("authorization not masked: %q", got)
    }
    if got := r.Header("Cookie", "a=b"); got != Mask {
        t.Fatalf("cookie not masked: %q", got)
    }
    if got := r.Header("Accept", "*/*"); got != "*/*" {
        t.Fatalf("accept changed: %q", got)
    }
    var nilR *Redactor
    if got := nilR.Header("Authorization", "x"); got != "x" {
        t.Fatalf("nil redactor masked: %q", got)
    }
}

func TestJSON(t *testing.T) {
    r := New(nil, []string{"password", "token"})
    out, ok := r.JSON([]byte(`{"user":"a","password":"p","nested":[{"Token":"t","keep":1}]}`))
    if !ok {
        t.Fatalf("expected redaction")
    }
    want := `{"nested":[{"Token":"**","keep":1}],"password":"**","user":"a"}`
    if string(out) != want {
        t.Fatalf("got %s want %s", out, want)
    }

    in := []byte(`{"user":"a"}`)
    if out, ok := r.JSON(in); ok || string(out) != string(in) {
        t.Fatalf("untouched body rewritten: %s", out)
    }
    if _, ok := r.JSON([]byte("not json")); ok {
        t.Fatalf("non json reported as redacted")
    }
}

func TestRedactJSONDefaults(t *testing.T) {
    got := RedactJSON(`{"access_token":"x","a":1}`)
    if got != `{"a":1,"access_token":"**"}` {
        t.Fatalf("got %s", got)
    }
    if got := RedactJSON("plain"); got != "plain" {
        t.Fatalf("got %s", got)
    }
}

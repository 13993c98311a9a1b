package domain

import (
	"testing"
	"time"
)

func TestStatusTerminal(t *testing.T) {
	if StatusRequested.Terminal() {
		t.Fatalf("requested must not be terminal")
	}
	if !StatusComplete.Terminal() || !StatusFailed.Terminal() {
		t.Fatalf("complete and failed must be terminal")
	}
	if Status("bogus").Valid() {
		t.Fatalf("unknown status reported valid")
	}
}

func TestParseRetentionPeriod(t *testing.T) {
	cases := map[string]RetentionPeriod{
		"never":   RetentionNever,
		"Forever": RetentionNever,
		"1h":      RetentionOneHour,
		"day":     RetentionOneDay,
		"1W":      RetentionOneWeek,
	}
	for in, want := range cases {
		got, err := ParseRetentionPeriod(in)
		if err != nil || got != want {
			t.Fatalf("ParseRetentionPeriod(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseRetentionPeriod("1y"); err == nil {
		t.Fatalf("expected error for unknown period")
	}
}

func TestHorizonAndCooldowns(t *testing.T) {
	if RetentionNever.Horizon() != 0 {
		t.Fatalf("never must have zero horizon")
	}
	if RetentionOneWeek.Horizon() != 168*time.Hour {
		t.Fatalf("unexpected week horizon %v", RetentionOneWeek.Horizon())
	}
	c := DefaultCooldowns()
	if c.For(RetentionOneHour) != 30*time.Minute {
		t.Fatalf("hourly cooldown = %v", c.For(RetentionOneHour))
	}
	if c.For(RetentionOneDay) != 2*time.Hour || c.For(RetentionOneWeek) != 2*time.Hour {
		t.Fatalf("day/week cooldown must be 2h")
	}
}

func TestActivityEntrySummary(t *testing.T) {
	now := time.Now()
	tx := Transaction{ID: 7, Method: "GET", Path: "/x", Status: StatusRequested, RequestedAt: now}
	e := NewActivityEntry(tx)
	if e.Summary != "... GET /x" || e.Color != ColorRequested {
		t.Fatalf("unexpected requested entry: %+v", e)
	}

	tx.Status = StatusComplete
	tx.Response = &Response{Code: 404, ReceivedAt: now.Add(time.Second)}
	e = NewActivityEntry(tx)
	if e.Summary != "404 GET /x" || e.Color != ColorClientError || !e.UpdatedAt.Equal(now.Add(time.Second)) {
		t.Fatalf("unexpected complete entry: %+v", e)
	}

	tx.Status = StatusFailed
	tx.Response = nil
	tx.Path = ""
	e = NewActivityEntry(tx)
	if e.Summary != "!!! GET /" || e.Color != ColorFailed {
		t.Fatalf("unexpected failed entry: %+v", e)
	}
}

func TestClassifyCodes(t *testing.T) {
	tests := []struct {
		code int
		want Color
	}{
		{200, ColorSuccess},
		{101, ColorSuccess},
		{302, ColorRedirect},
		{418, ColorClientError},
		{503, ColorServerError},
	}
	for _, tt := range tests {
		tx := Transaction{Status: StatusComplete, Response: &Response{Code: tt.code}}
		if got := Classify(tx); got != tt.want {
			t.Errorf("Classify(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	tx := Transaction{
		RequestHeaders: Headers{{Name: "A", Value: "1"}},
		RequestBody:    Body{Content: []byte("abc")},
		Response:       &Response{Code: 200, Body: Body{Content: []byte("xyz")}},
	}
	c := tx.Clone()
	c.RequestHeaders[0].Value = "2"
	c.RequestBody.Content[0] = 'z'
	c.Response.Body.Content[0] = 'a'
	c.Response.Code = 500
	if tx.RequestHeaders[0].Value != "1" || string(tx.RequestBody.Content) != "abc" {
		t.Fatalf("request side aliased")
	}
	if tx.Response.Code != 200 || string(tx.Response.Body.Content) != "xyz" {
		t.Fatalf("response side aliased")
	}
	if tx.RequestHeaders.Get("a") != "1" {
		t.Fatalf("case-insensitive header lookup failed")
	}
}

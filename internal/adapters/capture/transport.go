// Package capture provides the http.RoundTripper that records every exchange
// passing through it.
package capture

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/azikar24/WormaCeptor-sub003/internal/domain"
	"github.com/azikar24/WormaCeptor-sub003/internal/usecase"
	"github.com/azikar24/WormaCeptor-sub003/pkg/shared/redact"
)

const (
	// SkipHeader set to "1" excludes a request from capture.
	SkipHeader = "X-Inspector-Skip"

	DefaultMaxContentLength = 250000
)

// Capturer is the subset of usecase.CaptureService the transport drives.
type Capturer interface {
	Begin(ctx context.Context, req usecase.RequestMetadata) (int64, error)
	Complete(ctx context.Context, id int64, resp usecase.ResponseMetadata) error
	Fail(ctx context.Context, id int64, message string, elapsed time.Duration) error
	SetRequestBody(id int64, body domain.Body) bool
}

type Options struct {
	MaxContentLength int64
	Decompress       bool
	Redactor         *redact.Redactor
	Logger           *zerolog.Logger
	Now              func() time.Time
}

type Transport struct {
	base             http.RoundTripper
	capturer         Capturer
	maxContentLength int64
	decompress       bool
	redactor         *redact.Redactor
	logger           *zerolog.Logger
	now              func() time.Time
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, c Capturer, opts Options) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &Transport{
		base:             base,
		capturer:         c,
		maxContentLength: opts.MaxContentLength,
		decompress:       opts.Decompress,
		redactor:         opts.Redactor,
		logger:           opts.Logger,
		now:              opts.Now,
	}
	if t.maxContentLength <= 0 {
		t.maxContentLength = DefaultMaxContentLength
	}
	if t.logger == nil {
		nop := zerolog.Nop()
		t.logger = &nop
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// timeline collects httptrace milestones; hooks may fire on transport goroutines.
type timeline struct {
	mu                  sync.Mutex
	dnsStart, dnsDone   time.Time
	connStart, connDone time.Time
	tlsStart, tlsDone   time.Time
	firstByte           time.Time
}

func (tl *timeline) mark(p *time.Time) func() {
	return func() {
		tl.mu.Lock()
		if p.IsZero() {
			*p = time.Now()
		}
		tl.mu.Unlock()
	}
}

func (tl *timeline) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart:             func(httptrace.DNSStartInfo) { tl.mark(&tl.dnsStart)() },
		DNSDone:              func(httptrace.DNSDoneInfo) { tl.mark(&tl.dnsDone)() },
		ConnectStart:         func(string, string) { tl.mark(&tl.connStart)() },
		ConnectDone:          func(string, string, error) { tl.mark(&tl.connDone)() },
		TLSHandshakeStart:    tl.mark(&tl.tlsStart),
		TLSHandshakeDone:     func(tls.ConnectionState, error) { tl.mark(&tl.tlsDone)() },
		GotFirstResponseByte: tl.mark(&tl.firstByte),
	}
}

func (tl *timeline) timings(start, end time.Time) domain.Timings {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return domain.Timings{
		DNS:     durationMs(tl.dnsStart, tl.dnsDone),
		Connect: durationMs(tl.connStart, tl.connDone),
		TLS:     durationMs(tl.tlsStart, tl.tlsDone),
		TTFB:    durationMs(start, tl.firstByte),
		Total:   durationMs(start, end),
	}
}

func durationMs(from, to time.Time) int64 {
	if from.IsZero() || to.IsZero() {
		return 0
	}
	return int64(to.Sub(from) / time.Millisecond)
}

// RoundTrip returns as soon as the base transport does. Bodies are captured
// as they stream through: the response body is wrapped, and the transaction
// completes when the caller reads it to the end or closes it. A response
// body that is never closed leaves its transaction in the requested state.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(SkipHeader) == "1" {
		out := req.Clone(req.Context())
		out.Header.Del(SkipHeader)
		return t.base.RoundTrip(out)
	}

	out := req.Clone(req.Context())
	start := t.now()
	// capture writes must outlive a caller that cancels mid-flight
	ctx := context.WithoutCancel(req.Context())
	id, err := t.capturer.Begin(ctx, usecase.RequestMetadata{
		Method:  req.Method,
		URL:     req.URL.String(),
		Headers: t.headers(req.Header),
		Body:    pendingBody(req.ContentLength, req.Header),
	})
	if err != nil {
		t.logger.Debug().Err(err).Str("url", req.URL.Redacted()).Msg("capture begin failed, passing through")
		return t.base.RoundTrip(out)
	}

	reqCap := t.teeRequest(out)
	requestBody := func() {
		if reqCap == nil {
			return
		}
		raw, seen, complete := reqCap.snapshot(req.ContentLength)
		t.capturer.SetRequestBody(id, t.buildBody(raw, seen, complete, req.ContentLength, req.Header))
	}

	tl := &timeline{}
	out = out.WithContext(httptrace.WithClientTrace(out.Context(), tl.trace()))
	resp, rtErr := t.base.RoundTrip(out)
	if rtErr != nil {
		requestBody()
		if err := t.capturer.Fail(ctx, id, rtErr.Error(), t.now().Sub(start)); err != nil {
			t.logger.Debug().Err(err).Int64("id", id).Msg("capture fail not recorded")
		}
		return resp, rtErr
	}

	meta := usecase.ResponseMetadata{
		Code:     resp.StatusCode,
		Message:  statusMessage(resp),
		Headers:  t.headers(resp.Header),
		Protocol: resp.Proto,
		TLS:      resp.TLS != nil,
	}
	complete := func(body domain.Body) {
		requestBody()
		end := t.now()
		meta.Body = body
		meta.ReceivedAt = end
		meta.Timings = tl.timings(start, end)
		meta.Duration = end.Sub(start)
		if err := t.capturer.Complete(ctx, id, meta); err != nil {
			t.logger.Debug().Err(err).Int64("id", id).Msg("capture complete not recorded")
		}
	}

	// a 101 body is the upgraded connection and must keep its concrete type
	if resp.StatusCode == http.StatusSwitchingProtocols || resp.Body == nil || resp.Body == http.NoBody {
		complete(domain.Body{PlainText: true, ContentType: resp.Header.Get("Content-Type")})
		return resp, nil
	}
	respCap := &capBuffer{limit: t.maxContentLength}
	cl, h := resp.ContentLength, resp.Header
	rb := &responseBody{teeBody: teeBody{rc: resp.Body, cap: respCap}}
	rb.finish = func() {
		raw, seen, done := respCap.snapshot(cl)
		complete(t.buildBody(raw, seen, done, cl, h))
	}
	resp.Body = rb
	return resp, nil
}

// teeRequest wraps out's body, and its GetBody rewinds, so that what the base
// transport sends is captured. nil means there is no body to capture.
func (t *Transport) teeRequest(out *http.Request) *capBuffer {
	if out.Body == nil || out.Body == http.NoBody {
		return nil
	}
	c := &capBuffer{limit: t.maxContentLength}
	out.Body = &teeBody{rc: out.Body, cap: c}
	if getBody := out.GetBody; getBody != nil {
		out.GetBody = func() (io.ReadCloser, error) {
			rc, err := getBody()
			if err != nil {
				return nil, err
			}
			c.reset()
			return &teeBody{rc: rc, cap: c}, nil
		}
	}
	return c
}

func statusMessage(resp *http.Response) string {
	msg := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return msg
}

// headers flattens h in name order, keeping duplicate values in wire order.
func (t *Transport) headers(h http.Header) domain.Headers {
	if len(h) == 0 {
		return nil
	}
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make(domain.Headers, 0, len(h))
	for _, k := range names {
		for _, v := range h[k] {
			out = append(out, domain.Header{Name: k, Value: t.redactor.Header(k, v)})
		}
	}
	return out
}

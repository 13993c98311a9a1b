package capture

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/azikar24/WormaCeptor-sub003/internal/domain"
)

// capBuffer keeps the first limit bytes that pass through a body and counts
// the rest. The transport may read a request body on its own goroutine while
// the response is being finished, so all access is locked.
type capBuffer struct {
	mu    sync.Mutex
	limit int64
	buf   []byte
	seen  int64
	eof   bool
}

func (c *capBuffer) write(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen += int64(len(p))
	if room := c.limit - int64(len(c.buf)); room > 0 {
		if int64(len(p)) > room {
			p = p[:room]
		}
		c.buf = append(c.buf, p...)
	}
}

func (c *capBuffer) markEOF() {
	c.mu.Lock()
	c.eof = true
	c.mu.Unlock()
}

// reset forgets everything seen so far; GetBody rewinds use it.
func (c *capBuffer) reset() {
	c.mu.Lock()
	c.buf, c.seen, c.eof = c.buf[:0], 0, false
	c.mu.Unlock()
}

// snapshot reports what has been seen. complete is true once the stream hit
// EOF or delivered a positive contentLength worth of bytes.
func (c *capBuffer) snapshot(contentLength int64) (raw []byte, seen int64, complete bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw = append([]byte(nil), c.buf...)
	complete = c.eof || (contentLength > 0 && c.seen >= contentLength)
	return raw, c.seen, complete
}

// teeBody copies everything read from rc into a capBuffer.
type teeBody struct {
	rc  io.ReadCloser
	cap *capBuffer
}

func (b *teeBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if n > 0 {
		b.cap.write(p[:n])
	}
	if err == io.EOF {
		b.cap.markEOF()
	}
	return n, err
}

func (b *teeBody) Close() error { return b.rc.Close() }

// responseBody tees a response body and runs finish exactly once, on the
// first read error (io.EOF included) or on Close.
type responseBody struct {
	teeBody
	once   sync.Once
	finish func()
}

func (b *responseBody) Read(p []byte) (int, error) {
	n, err := b.teeBody.Read(p)
	if err != nil {
		b.once.Do(b.finish)
	}
	return n, err
}

func (b *responseBody) Close() error {
	err := b.rc.Close()
	b.once.Do(b.finish)
	return err
}

// pendingBody describes a request body the transport has not sent yet. With
// no declared length it stands for an empty body until the tee reports.
func pendingBody(contentLength int64, h http.Header) domain.Body {
	b := domain.Body{
		ContentType: h.Get("Content-Type"),
		Encoding:    strings.ToLower(strings.TrimSpace(h.Get("Content-Encoding"))),
	}
	if contentLength > 0 {
		b.Size = contentLength
	} else {
		b.PlainText = true
	}
	return b
}

// buildBody applies the capture policy to what a body delivered. seen counts
// every byte, including those past the retained prefix in raw.
func (t *Transport) buildBody(raw []byte, seen int64, complete bool, contentLength int64, h http.Header) domain.Body {
	b := domain.Body{
		ContentType: h.Get("Content-Type"),
		Encoding:    strings.ToLower(strings.TrimSpace(h.Get("Content-Encoding"))),
	}
	if !complete || seen > t.maxContentLength {
		b.Truncated = true
		b.Size = seen
		if contentLength > b.Size {
			b.Size = contentLength
		}
		return b
	}
	b.Size = seen
	if len(raw) == 0 {
		b.PlainText = true
		return b
	}

	content, remaining := raw, b.Encoding
	if t.decompress && (b.Encoding == "gzip" || b.Encoding == "deflate") {
		if dec, ok := decompress(raw, b.Encoding, t.maxContentLength); ok {
			content, remaining = dec, ""
		}
	}
	b.Content = content
	b.PlainText = isPlainText(content, remaining, b.ContentType)
	if b.PlainText && isJSON(b.ContentType) {
		if out, ok := t.redactor.JSON(content); ok {
			b.Content = out
		}
	}
	return b
}

// decompress inflates b with a cap on the output size. ok is false when the
// data is corrupt or inflates past limit.
func decompress(b []byte, enc string, limit int64) ([]byte, bool) {
	var r io.ReadCloser
	switch enc {
	case "gzip":
		zr, err := gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, false
		}
		r = zr
	case "deflate":
		// HTTP deflate is usually zlib-wrapped; some servers send it raw
		if zr, err := zlib.NewReader(bytes.NewReader(b)); err == nil {
			r = zr
		} else {
			r = flate.NewReader(bytes.NewReader(b))
		}
	default:
		return nil, false
	}
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil || int64(len(out)) > limit {
		return nil, false
	}
	return out, true
}

// isPlainText reports whether b can be shown as text. encoding is whatever
// content coding is still applied to b; encoded bytes are never text.
func isPlainText(b []byte, encoding, contentType string) bool {
	if encoding != "" && encoding != "identity" {
		return false
	}
	if !textyContentType(contentType) {
		return false
	}
	if !utf8.Valid(b) {
		return false
	}
	for _, c := range b {
		if c < 0x20 && c != '\t' && c != '\n' && c != '\r' && c != '\f' {
			return false
		}
		if c == 0x7f {
			return false
		}
	}
	return true
}

func textyContentType(ct string) bool {
	if ct == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	}
	if strings.HasPrefix(mt, "text/") {
		return true
	}
	for _, s := range []string{"json", "xml", "javascript", "x-www-form-urlencoded", "graphql", "yaml", "csv", "html"} {
		if strings.Contains(mt, s) {
			return true
		}
	}
	return false
}

func isJSON(ct string) bool {
	return strings.Contains(strings.ToLower(ct), "json")
}

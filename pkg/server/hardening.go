package server

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

const (
	encodingBrotli = "br"
	encodingGzip   = "gzip"

	brotliLevel = 4
)

var compressibleContentTypes = []string{
	"text/",
	"application/json",
	"application/javascript",
	"application/xml",
	"image/svg+xml",
}

// SecurityHeaders sets browser hardening headers on every response. The task page only
// loads its own inline styles, so the policy allows nothing else.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; form-action 'self'")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		c.Next()
	}
}

// Compression buffers the response and, when the client accepts br or gzip and the body is a
// compressible type of at least minSize bytes, writes it compressed.
func Compression(minSize int) gin.HandlerFunc {
	if minSize < 0 {
		minSize = 0
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		encoding := negotiateEncoding(c.GetHeader("Accept-Encoding"))
		if encoding == "" {
			c.Next()
			return
		}

		base := c.Writer
		buffered := &bufferedWriter{ResponseWriter: base}
		c.Writer = buffered
		defer func() { c.Writer = base }()

		c.Next()

		c.Writer = base
		appendVary(base.Header(), "Accept-Encoding")
		status := buffered.Status()
		body := buffered.buf.Bytes()

		if !shouldCompress(base.Header(), status, len(body), minSize) {
			base.WriteHeader(status)
			if len(body) == 0 {
				base.WriteHeaderNow()
				return
			}
			_, _ = base.Write(body)
			return
		}

		base.Header().Del("Content-Length")
		base.Header().Set("Content-Encoding", encoding)
		base.WriteHeader(status)

		var zw io.WriteCloser
		if encoding == encodingBrotli {
			zw = brotli.NewWriterLevel(base, brotliLevel)
		} else {
			zw = gzip.NewWriter(base)
		}
		_, _ = zw.Write(body)
		_ = zw.Close()
	}
}

func shouldCompress(h http.Header, status, size, minSize int) bool {
	if noBodyStatus(status) || size == 0 || size < minSize {
		return false
	}
	if strings.TrimSpace(h.Get("Content-Encoding")) != "" {
		return false
	}
	ct := strings.ToLower(strings.TrimSpace(h.Get("Content-Type")))
	if ct == "" {
		return true
	}
	for _, prefix := range compressibleContentTypes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

// bufferedWriter holds status and body until the compression decision is made.
type bufferedWriter struct {
	gin.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *bufferedWriter) WriteHeader(code int) {
	if code > 0 {
		w.status = code
	}
}

func (w *bufferedWriter) WriteHeaderNow() {}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.buf.WriteString(s)
}

func (w *bufferedWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *bufferedWriter) Size() int {
	if w.buf.Len() == 0 && w.status == 0 {
		return -1
	}
	return w.buf.Len()
}

func (w *bufferedWriter) Written() bool {
	return w.status != 0 || w.buf.Len() > 0
}

func (w *bufferedWriter) Flush() {}

func negotiateEncoding(acceptEncoding string) string {
	if acceptEncoding == "" {
		return ""
	}
	qBr, hasBr := qualityForEncoding(acceptEncoding, encodingBrotli)
	qGzip, hasGzip := qualityForEncoding(acceptEncoding, encodingGzip)
	if qAny, hasAny := qualityForEncoding(acceptEncoding, "*"); hasAny {
		if !hasBr {
			qBr, hasBr = qAny, true
		}
		if !hasGzip {
			qGzip, hasGzip = qAny, true
		}
	}

	best, bestQ := "", 0.0
	if hasBr && qBr > 0 {
		best, bestQ = encodingBrotli, qBr
	}
	if hasGzip && qGzip > bestQ {
		best = encodingGzip
	}
	return best
}

func qualityForEncoding(acceptEncoding, encoding string) (float64, bool) {
	for _, part := range strings.Split(acceptEncoding, ",") {
		sections := strings.Split(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(sections[0]), encoding) {
			continue
		}
		q := 1.0
		for _, section := range sections[1:] {
			kv := strings.SplitN(strings.TrimSpace(section), "=", 2)
			if len(kv) != 2 || !strings.EqualFold(kv[0], "q") {
				continue
			}
			if parsed, err := strconv.ParseFloat(kv[1], 64); err == nil {
				q = parsed
			}
		}
		return q, true
	}
	return 0, false
}

func noBodyStatus(status int) bool {
	return status == http.StatusNoContent || status == http.StatusNotModified || (status >= 100 && status < 200)
}

func appendVary(header http.Header, value string) {
	current := header.Get("Vary")
	if current == "" {
		header.Set("Vary", value)
		return
	}
	for _, part := range strings.Split(current, ",") {
		if strings.EqualFold(strings.TrimSpace(part), value) {
			return
		}
	}
	header.Set("Vary", current+", "+value)
}

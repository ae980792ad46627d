package obs

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/kuitang/chaincmds/internal/logutil"
)

// maxLoggedBodyBytes bounds request and response bodies in http_request events.
const maxLoggedBodyBytes = 2048

// Transport logs one structured event per outgoing request. Sensitive
// headers and JSON body fields are redacted.
type Transport struct {
	Base http.RoundTripper
	Pkg  string
}

// NewTransport wraps base, or http.DefaultTransport when base is nil.
func NewTransport(pkg string, base http.RoundTripper) *Transport {
	return &Transport{Base: base, Pkg: pkg}
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()

	var reqBody []byte
	if r.Body != nil && r.GetBody != nil {
		if body, err := r.GetBody(); err == nil {
			reqBody, _ = io.ReadAll(io.LimitReader(body, maxLoggedBodyBytes+1))
			_ = body.Close()
		}
	}

	resp, err := t.base().RoundTrip(r)
	durMS := float64(time.Since(start).Microseconds()) / 1000.0
	l := From(r.Context()).With("pkg", t.Pkg)
	if err != nil {
		l.Warn("http_request",
			"method", r.Method,
			"url", r.URL.String(),
			"dur_ms", durMS,
			"error", err.Error(),
		)
		return nil, err
	}

	respBody, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(respBody))
	if readErr != nil {
		return nil, readErr
	}

	l.Debug("http_request",
		"method", r.Method,
		"url", r.URL.String(),
		"status", resp.StatusCode,
		"dur_ms", durMS,
		"req_headers", logutil.FormatHeadersForLog(r.Header),
		"req_body", logutil.FormatBodyForLog(r.Header.Get("Content-Type"), reqBody, maxLoggedBodyBytes, false),
		"resp_headers", logutil.FormatHeadersForLog(resp.Header),
		"resp_body", logutil.FormatBodyForLog(resp.Header.Get("Content-Type"), respBody, maxLoggedBodyBytes, false),
	)
	return resp, nil
}

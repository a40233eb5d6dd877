package logger

import (
	"net/http"
	"time"
)

// RequestIDHeader is the header used to correlate client requests with server logs
const RequestIDHeader = "X-Request-ID"

// Transport is an http.RoundTripper that logs every outgoing request
type Transport struct {
	// Base is the underlying transport (default: http.DefaultTransport)
	Base http.RoundTripper
	// Logger receives the request log lines (default: global logger)
	Logger *Logger
}

// NewTransport wraps base with request logging
func NewTransport(base http.RoundTripper, log *Logger) *Transport {
	return &Transport{Base: base, Logger: log}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	log := Ctx(req.Context(), t.Logger)

	start := time.Now()
	resp, err := base.RoundTrip(req)
	duration := time.Since(start)

	fields := map[string]interface{}{
		"method":   req.Method,
		"path":     req.URL.Path,
		"query":    req.URL.RawQuery,
		"duration": duration.String(),
	}
	if id := req.Header.Get(RequestIDHeader); id != "" {
		fields["request_id"] = id
	}

	if err != nil {
		fields["error"] = err.Error()
		log.Warn("HTTP request failed", fields)
		return nil, err
	}

	fields["status"] = resp.StatusCode
	log.Debug("HTTP request", fields)
	return resp, nil
}

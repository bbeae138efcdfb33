// Package middleware provides the HTTP middleware shared by the indexer's
// endpoints: request ids, Prometheus metrics and request deadlines.
package middleware

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/metrics"
)

// Metrics records request count, latency and in-flight requests. Requests
// are labelled by the matched ServeMux pattern so path values such as
// document refs do not explode label cardinality.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.HTTPStarted()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			m.HTTPFinished(r.Method, route(r), sw.status, time.Since(start))
		})
	}
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.wroteHeader = true
	}
	return sw.ResponseWriter.Write(b)
}

// route is the ServeMux pattern that matched r. Middleware wrapping the mux
// sees the pattern only after the mux has served the request.
func route(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return "unmatched"
}

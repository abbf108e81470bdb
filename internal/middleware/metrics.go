package middleware

import (
	"net/http"
	"time"

	"github.com/ryokrieger/CityConnect/internal/metrics"
)

// Metrics records request counts and latency labelled by the matched route
// pattern. It must wrap the ServeMux directly so the pattern set during
// routing is visible after the handler returns.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)

		next.ServeHTTP(rec, r)

		metrics.RecordHTTPRequest(r.Method, r.Pattern, rec.status, time.Since(start))
	})
}

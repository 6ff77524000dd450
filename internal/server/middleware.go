package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"vibedb/internal/domain"
)

type contextKey int

const reqContextKey contextKey = 0

// requestContext retrieves the per-request bookkeeping.
func requestContext(r *http.Request) *reqContext {
	rc, _ := r.Context().Value(reqContextKey).(*reqContext)
	if rc == nil {
		rc = &reqContext{requestID: uuid.NewString(), start: time.Now()}
	}
	return rc
}

// statusRecorder captures the written status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// withRequest seeds the request context with an ID and start time and
// records metrics and an access log line on completion.
func (s *Server) withRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := &reqContext{
			requestID: uuid.NewString(),
			start:     time.Now(),
		}
		ctx := context.WithValue(r.Context(), reqContextKey, rc)
		w.Header().Set("X-Request-Id", rc.requestID)

		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r.WithContext(ctx))

		elapsed := time.Since(rc.start)
		s.requestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(sr.status)).Inc()
		s.requestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(elapsed.Seconds())
		s.log.Debug("request",
			"method", r.Method, "path", r.URL.Path, "status", sr.status,
			"duration_ms", elapsed.Milliseconds(), "request_id", rc.requestID)
	})
}

// authenticated wraps a handler with API-key authentication. The resolved
// identity lands in the request context.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := requestContext(r)

		identity, err := s.authn.Authenticate(r.Context(),
			r.Header.Get("X-API-Key"), r.Header.Get("X-User-Id"))
		if err != nil {
			s.fail(w, rc, err, nil)
			return
		}
		rc.identity = identity
		next(w, r)
	}
}

// identity returns the authenticated identity; handlers behind
// authenticated can rely on it being present.
func identity(r *http.Request) *domain.Identity {
	return requestContext(r).identity
}

func newRequestMetrics(reg prometheus.Registerer) (*prometheus.CounterVec, *prometheus.HistogramVec) {
	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vibedb",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, path, and status.",
	}, []string{"method", "path", "status"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vibedb",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	if reg != nil {
		reg.MustRegister(requestsTotal, requestDuration)
	}
	return requestsTotal, requestDuration
}

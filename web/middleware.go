package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/josuabad/TuGranjita/metric"
)

// RequestID extracts the X-Request-ID header or generates a new one, and
// echoes it on the response for distributed tracing across the catalog and
// federation services.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		r.Header.Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// Instrument records request metrics and an access log line per request.
// The route label is the mux route template, not the raw path, to keep
// metric cardinality bounded.
func Instrument(service string, metrics *metric.Metrics, logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if template, err := current.GetPathTemplate(); err == nil {
					route = template
				}
			}

			elapsed := time.Since(start)
			if metrics != nil {
				metrics.RequestsTotal.WithLabelValues(
					service, route, r.Method, strconv.Itoa(recorder.status)).Inc()
				metrics.RequestDuration.WithLabelValues(service, route).
					Observe(elapsed.Seconds())
			}

			logger.Info("request handled",
				"method", r.Method,
				"path", r.URL.Path,
				"status", recorder.status,
				"duration_ms", elapsed.Milliseconds(),
				"request_id", r.Header.Get("X-Request-ID"),
			)
		})
	}
}

// Wrap applies the standard middleware stack around a service router:
// panic recovery, permissive CORS, request IDs, then instrumentation.
func Wrap(router *mux.Router, service string, metrics *metric.Metrics, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	router.Use(Instrument(service, metrics, logger))

	var handler http.Handler = router
	handler = RequestID(handler)
	handler = handlers.CORS(
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID"}),
	)(handler)
	handler = handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(handler)
	return handler
}

package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dtroode/househelp-server/internal/logger"
)

// HTTPObserver records request latency.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
}

// Logging logs HTTP requests and results.
type Logging struct {
	logger   *logger.Logger
	observer HTTPObserver
}

// NewLogging creates a new Logging middleware. observer may be nil.
func NewLogging(logger *logger.Logger, observer HTTPObserver) *Logging {
	return &Logging{logger: logger, observer: observer}
}

// Handle logs method, path, duration and status for each request.
func (l *Logging) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		l.logger.Debug("HTTP request started",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimw.GetReqID(r.Context()))

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)

		l.logger.Info("HTTP request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", duration.Milliseconds(),
			"request_id", chimw.GetReqID(r.Context()))

		if l.observer != nil {
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			l.observer.ObserveHTTP(r.Method, route, status, duration)
		}
	})
}

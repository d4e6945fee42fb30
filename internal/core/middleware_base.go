package core

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"cropradar/internal/types"
)

// wrap returns a writer that records the status and size of the response.
func wrap(w http.ResponseWriter, r *http.Request) middleware.WrapResponseWriter {
	return middleware.NewWrapResponseWriter(w, r.ProtoMajor)
}

// statusOf treats a handler that wrote nothing as 200, as net/http does.
func statusOf(ww middleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}

// Recoverer turns a panic into a logged stack trace and a 500 envelope. It
// sits outermost so every other middleware is covered.
func (s *Server) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}
			s.Logger.LogAttrs(r.Context(), slog.LevelError, "panic recovered",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("request_id", types.GetRequestID(r.Context())),
				slog.String("panic", fmt.Sprint(rvr)),
				slog.String("stack", string(debug.Stack())),
			)
			Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, unexpectedMessage, nil))
		}()

		next.ServeHTTP(w, r)
	})
}

// RequestLogger emits one log line per request. 5xx log at error, 4xx at
// warn. Headers listed in redactedHeaders are logged as [REDACTED].
func RequestLogger(logger *slog.Logger, redactedHeaders []string) func(http.Handler) http.Handler {
	redact := make(map[string]bool, len(redactedHeaders))
	for _, h := range redactedHeaders {
		redact[http.CanonicalHeaderKey(h)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := wrap(w, r)
			next.ServeHTTP(ww, r)

			status := statusOf(ww)
			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", routePattern(r)),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if reqID := types.GetRequestID(r.Context()); reqID != "" {
				attrs = append(attrs, slog.String("request_id", reqID))
			}
			if len(r.Header) > 0 {
				headers := make([]any, 0, len(r.Header))
				for name, values := range r.Header {
					value := strings.Join(values, ", ")
					if redact[http.CanonicalHeaderKey(name)] {
						value = "[REDACTED]"
					}
					headers = append(headers, slog.String(name, value))
				}
				attrs = append(attrs, slog.Group("headers", headers...))
			}

			logger.LogAttrs(r.Context(), levelFor(status), "request completed", attrs...)
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// MetricsMiddleware reports every request to s.Metrics under its chi route
// pattern, so /v1/outbreaks/{geohash5} is one series rather than one per
// cell. Without a collector it is a pass-through.
func (s *Server) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := wrap(w, r)
		next.ServeHTTP(ww, r)
		s.Metrics.RecordRequest(r.Method, routePattern(r), strconv.Itoa(statusOf(ww)), time.Since(start))
	})
}

// routePattern is only complete after the router has dispatched.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// SecurityHeadersMiddleware marks every response, errors included, as
// non-sniffable, non-frameable and non-cacheable. Outbreak aggregates change
// with every accepted report, so intermediaries must not keep them.
func (s *Server) SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// corsPolicy is the set of origins allowed to call the API from a browser.
type corsPolicy struct {
	any     bool
	origins map[string]bool
}

func newCORSPolicy(allowed []string) corsPolicy {
	p := corsPolicy{origins: make(map[string]bool, len(allowed))}
	for _, o := range allowed {
		if o == "*" {
			p.any = true
		}
		p.origins[o] = true
	}
	return p
}

// allow returns the Access-Control-Allow-Origin value for origin, or "".
func (p corsPolicy) allow(origin string) string {
	switch {
	case p.any:
		return "*"
	case origin != "" && p.origins[origin]:
		return origin
	}
	return ""
}

// NewCORSMiddleware sets CORS headers for allowed origins and answers every
// OPTIONS preflight with 204. "*" in allowedOrigins allows any origin.
func NewCORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newCORSPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowed := policy.allow(r.Header.Get("Origin")); allowed != "" {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", allowed)
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
				h.Set("Access-Control-Expose-Headers", "X-Request-ID")
				h.Set("Access-Control-Max-Age", "86400")
				if allowed != "*" {
					h.Set("Vary", "Origin")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

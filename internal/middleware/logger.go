package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/GregMSThompson/dashboard-backend/pkg/logger"
)

type loggerMiddleware struct {
	Log *slog.Logger
}

func NewLoggerMiddleware(log *slog.Logger) *loggerMiddleware {
	return &loggerMiddleware{Log: log}
}

// LoggerMiddleware puts a request-scoped logger in the context and logs the
// outcome of every request. Mount it right after chi's RequestID.
func (m *loggerMiddleware) LoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := m.Log.With(
			"request_id", chimiddleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
		)
		ctx := logger.ToContext(r.Context(), log)
		if !logger.IsDebugEnabled(ctx) {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		log.Debug("request complete", "status", ww.Status(), "bytes", ww.BytesWritten(), "duration", time.Since(start))
	})
}

// NamespaceLogger adds the resolved namespace to the request logger. Mount
// it after the namespace middleware.
func NamespaceLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if ns := Namespace(ctx); ns != "" {
			_, ctx = logger.With(ctx, "namespace", ns)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

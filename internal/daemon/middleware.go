package daemon

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type ctxKey int

const requestIDKey ctxKey = iota

// requestIDHeader carries the caller-supplied request id; one is minted when
// the header is absent, and the id is always echoed back in the response.
const requestIDHeader = "X-Request-ID"

// requestID returns the id assigned to the current request, or "" outside
// an instrumented handler.
func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// statusRecorder captures the status code a handler writes so the access log
// can report it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument wraps the router with the daemon's request instrumentation:
// request ids, panic recovery, and a status-aware access log. A panicking
// handler is reported as a 500 and the daemon keeps serving.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, id))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		defer func() {
			if v := recover(); v != nil {
				slog.Error("handler panic",
					"request_id", id,
					"method", r.Method,
					"path", r.URL.Path,
					"panic", v,
				)
				http.Error(rec, "Internal Server Error", http.StatusInternalServerError)
			}

			level := slog.LevelDebug
			switch {
			case rec.status >= 500:
				level = slog.LevelError
			case rec.status >= 400:
				level = slog.LevelWarn
			}
			slog.Log(r.Context(), level, "http request",
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}()

		next.ServeHTTP(rec, r)
	})
}

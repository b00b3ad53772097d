package middleware

import (
	"net/http"
	"time"
)

type requestLogger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// statusRecorder remembers the status and body size sent to the client
type statusRecorder struct {
	http.ResponseWriter
	status      int
	size        int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(p)
	r.size += n
	return n, err
}

// LoggerMiddleware logs every served request. Server errors (5xx) are logged with Error level
// Query string is not logged
func LoggerMiddleware(l requestLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log := l.Info
			if rec.status >= http.StatusInternalServerError {
				log = l.Error
			}

			log("request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"size", rec.size,
				"user_agent", r.UserAgent(),
				"duration", time.Since(start),
			)
		})
	}
}

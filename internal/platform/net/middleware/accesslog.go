package middleware

import (
	stdhttp "net/http"
	"time"

	"gridintake/internal/platform/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// AccessLogOptions configures the ops access log
type AccessLogOptions struct {
	// Slow promotes requests at or above this duration to warn, 0 disables
	Slow time.Duration
}

// AccessLog writes one line per request; healthy probes and scrapes stay at
// debug so they do not bury the job log
func AccessLog(opt AccessLogOptions) func(stdhttp.Handler) stdhttp.Handler {
	return func(next stdhttp.Handler) stdhttp.Handler {
		return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = stdhttp.StatusOK
			}
			elapsed := time.Since(start)

			log := logger.Named("ops")
			evt := log.Debug()
			switch {
			case status >= 500:
				evt = log.Error()
			case opt.Slow > 0 && elapsed >= opt.Slow:
				evt = log.Warn()
			}
			evt.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", elapsed).
				Msg("ops request")
		})
	}
}

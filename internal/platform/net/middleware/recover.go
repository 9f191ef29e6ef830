// Package middleware holds the in house middlewares of the ops server
package middleware

import (
	stdjson "encoding/json"
	stdhttp "net/http"
	"runtime/debug"

	perr "gridintake/internal/platform/errors"
	"gridintake/internal/platform/logger"
)

// Recover converts panics into a JSON 500 and logs the stack
func Recover(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		defer func() {
			if v := recover(); v != nil {
				logger.Named("ops").Error().
					Interface("panic", v).
					Str("path", r.URL.Path).
					Msgf("panic recovered\n%s", debug.Stack())

				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(stdhttp.StatusInternalServerError)
				_ = stdjson.NewEncoder(w).Encode(map[string]string{
					"status": "error",
					"error":  perr.PanicErrf("panic recovered").Error(),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

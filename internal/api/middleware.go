package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/go-chi/chi/v5/middleware"
)

// RequestLogger logs one line per request with a colored status code.
// Params: base logger.
// Returns: chi-compatible middleware.
func RequestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		log := logger.With(slog.String("component", "api"))

		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			defer func() {
				log.Info(fmt.Sprintf("%s %s - %s", r.Method, r.URL.Path, statusText(ww.Status())),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.Int("bytes", ww.BytesWritten()),
					slog.String("duration", time.Since(started).String()),
				)
			}()
			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}

func statusText(status int) string {
	if status == 0 {
		status = http.StatusOK
	}
	switch {
	case status < 300:
		return color.New(color.FgGreen).Sprintf("%03d", status)
	case status < 400:
		return color.New(color.FgCyan).Sprintf("%03d", status)
	case status < 500:
		return color.New(color.FgYellow).Sprintf("%03d", status)
	default:
		return color.New(color.FgRed).Sprintf("%03d", status)
	}
}

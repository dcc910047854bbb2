package webhook

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	logx "checkinbot/pkg/logx"
)

type AccessLogOptions struct {
	// Slow marks requests taking >= Slow as warn level; 0 disables it.
	Slow time.Duration
}

// AccessLog logs method, path, status, elapsed time and bytes written.
func AccessLog(log logx.Logger, opt AccessLogOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []logx.Field{
				logx.Int("status", status),
				logx.Duration("elapsed", elapsed),
				logx.String("method", r.Method),
				logx.String("path", r.URL.Path),
				logx.Int("bytes", ww.BytesWritten()),
			}
			if id := chimw.GetReqID(r.Context()); id != "" {
				fields = append(fields, logx.String("request_id", id))
			}
			if opt.Slow > 0 && elapsed >= opt.Slow {
				log.Warn("request done", fields...)
				return
			}
			log.Debug("request done", fields...)
		})
	}
}

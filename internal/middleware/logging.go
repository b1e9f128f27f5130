package middleware

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// LogRequest logs every request once it is served: server errors as errors,
// client errors as info, the rest only at debug level
func LogRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			begin := time.Now()
			resp := &responseWriter{w, http.StatusOK}

			next.ServeHTTP(resp, r)

			entry := log.WithFields(log.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"route":    routeName(r),
				"status":   resp.statusCode,
				"duration": time.Since(begin).String(),
				"ua":       r.Header.Get("User-Agent"),
			})
			switch {
			case resp.statusCode >= http.StatusInternalServerError:
				entry.Errorln(" ====> request failed")
			case resp.statusCode >= http.StatusBadRequest:
				entry.Infoln(" ====> request rejected")
			default:
				entry.Debugln(" ====> request")
			}
		})
	}
}

package middleware

import (
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// DrainAndCloseRequest limits the request body to maxBodyBytes (no limit when <= 0),
// and after the handler is done drains whatever it left unread and closes the body,
// so keep-alive connections can be reused
func DrainAndCloseRequest(maxBodyBytes int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && maxBodyBytes > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
			}

			next.ServeHTTP(w, r)

			if r.Body == nil {
				return
			}
			if drained, _ := io.Copy(io.Discard, r.Body); drained > 0 {
				log.Tracef("drained %d unread body bytes: %s %s", drained, r.Method, r.URL.Path)
			}
			_ = r.Body.Close()
		})
	}
}

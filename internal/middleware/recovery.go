package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/2beens/blogpanel/internal/telemetry/metrics"
	"github.com/2beens/blogpanel/pkg"

	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

// PanicRecovery turns a panicking handler into a 500, reported to sentry when it
// is set up. http.ErrAbortHandler is passed on, the server handles it.
func PanicRecovery(metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if err, ok := recovered.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(recovered)
				}

				log.WithFields(log.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
				}).Errorf("http: panic serving: %v\n%s", recovered, debug.Stack())
				sentry.CurrentHub().Clone().RecoverWithContext(r.Context(), recovered)
				if metricsManager != nil {
					metricsManager.CounterHandleRequestPanic.Inc()
				}

				if pkg.WantsJSON(r) {
					pkg.WriteJSON(w, map[string]string{"error": "internal error"}, http.StatusInternalServerError)
					return
				}
				http.Error(w, "internal error", http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

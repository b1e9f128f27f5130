package middleware

import (
	"net/http"
	"net/url"

	"github.com/2beens/blogpanel/internal/telemetry/metrics"
	"github.com/2beens/blogpanel/pkg"

	log "github.com/sirupsen/logrus"
)

// SameOrigin rejects state changing requests (anything but GET, HEAD, OPTIONS)
// sent by a page of another site. Browsers mark those with Sec-Fetch-Site or an
// Origin not matching the requested host; clients sending neither pass.
func SameOrigin(metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			if reason := crossOriginReason(r); reason != "" {
				log.WithFields(log.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
					"origin": r.Header.Get("Origin"),
				}).Warnf("cross origin request rejected: %s", reason)
				if metricsManager != nil {
					metricsManager.CounterCrossOriginRejected.Inc()
				}
				if pkg.WantsJSON(r) {
					pkg.WriteJSON(w, map[string]string{"error": "cross origin request"}, http.StatusForbidden)
					return
				}
				http.Error(w, "cross origin request", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func crossOriginReason(r *http.Request) string {
	switch site := r.Header.Get("Sec-Fetch-Site"); site {
	case "", "same-origin", "none":
	default:
		return "sec-fetch-site " + site
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return ""
	}
	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		return "unparsable origin"
	}
	if originURL.Host != r.Host {
		return "origin host " + originURL.Host
	}
	return ""
}

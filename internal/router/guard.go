//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=router_test

package router

import (
	"context"
	"net/http"
	"strings"

	"github.com/2beens/blogpanel/internal/telemetry/tracing"
	"github.com/2beens/blogpanel/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

type authChecker interface {
	IsAuthenticated(ctx context.Context) bool
}

type Guard struct {
	session              authChecker
	allowedPaths         map[string]bool
	allowedPathsPrefixes []string
}

func NewGuard(session authChecker) *Guard {
	return &Guard{
		session: session,
		allowedPaths: map[string]bool{
			ViewLogin.Path(): true,
			"/health":        true,
			// pushes the current state on connect, a logged out tab needs it too
			"/session/events": true,
		},
		allowedPathsPrefixes: []string{
			"/static/",
		},
	}
}

func (g *Guard) pathIsAlwaysAllowed(path string) bool {
	if g.allowedPaths[path] {
		return true
	}
	for _, prefix := range g.allowedPathsPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Check is evaluated on every request; the session is read from storage each
// time, so a logout in another process takes effect on the next request.
func (g *Guard) Check() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.guard")
			defer span.End()

			if g.pathIsAlwaysAllowed(r.URL.Path) {
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			if !g.session.IsAuthenticated(ctx) {
				log.Tracef("[guard] not authenticated => %s", r.URL.Path)
				span.SetStatus(codes.Error, "not-authenticated")
				if pkg.WantsJSON(r) {
					pkg.WriteJSON(w, map[string]string{
						"error":    "not authenticated",
						"redirect": ViewLogin.Path(),
					}, http.StatusUnauthorized)
					return
				}
				http.Redirect(w, r, ViewLogin.Path(), http.StatusSeeOther)
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r)
		})
	}
}

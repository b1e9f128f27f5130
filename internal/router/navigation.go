package router

import (
	"context"
	"net/http"
	"sync"

	"github.com/2beens/blogpanel/pkg"

	log "github.com/sirupsen/logrus"
)

type navigationKey struct{}

// Navigation holds where the current request should end up, if a component
// decided it must leave the requested view (e.g. the session expired mid-request)
type Navigation struct {
	mutex  sync.Mutex
	target View
}

func WithNavigation(ctx context.Context) (context.Context, *Navigation) {
	nav := &Navigation{}
	return context.WithValue(ctx, navigationKey{}, nav), nav
}

func FromContext(ctx context.Context) *Navigation {
	nav, _ := ctx.Value(navigationKey{}).(*Navigation)
	return nav
}

// Target returns the navigation target set during this request
func Target(ctx context.Context) (View, bool) {
	nav := FromContext(ctx)
	if nav == nil {
		return "", false
	}
	nav.mutex.Lock()
	defer nav.mutex.Unlock()
	return nav.target, nav.target != ""
}

func (n *Navigation) GoTo(view View) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.target = view
}

// Navigator sends the current request to the login view; used by the api client on 401
type Navigator struct{}

func NewNavigator() *Navigator {
	return &Navigator{}
}

func (n *Navigator) ToLogin(ctx context.Context) {
	nav := FromContext(ctx)
	if nav == nil {
		log.Warnln("navigator: request without navigation, cannot go to login")
		return
	}
	nav.GoTo(ViewLogin)
}

// WithRequestNavigation attaches a fresh Navigation to every request
func WithRequestNavigation() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, _ := WithNavigation(r.Context())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FollowNavigation writes the redirect to the navigation target, if one was set.
// JSON clients get a 401 with the target instead, they navigate themselves.
func FollowNavigation(w http.ResponseWriter, r *http.Request) bool {
	target, ok := Target(r.Context())
	if !ok {
		return false
	}

	if pkg.WantsJSON(r) {
		pkg.WriteJSON(w, map[string]string{
			"error":    "Authentication expired",
			"redirect": target.Path(),
		}, http.StatusUnauthorized)
		return true
	}

	http.Redirect(w, r, target.Path(), http.StatusSeeOther)
	return true
}

package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	log "github.com/sirupsen/logrus"
)

const (
	CookieName = "blogpanel_sid"

	cookieMaxAge = 30 * 24 * time.Hour
)

var ErrCookieHashKeyTooShort = errors.New("cookie hash key must have at least 32 bytes")

// Cookies ties a browser to its session: the session id lives in a signed,
// HttpOnly, SameSite=Strict cookie, so other sites can neither read it nor
// make the browser send it along
type Cookies struct {
	codec  *securecookie.SecureCookie
	secure bool
	// ability to inject session id generator (for unit testing)
	NewID func() string
}

// NewCookies signs the session cookie with hashKey; secure restricts the cookie
// to https
func NewCookies(hashKey []byte, secure bool) (*Cookies, error) {
	if len(hashKey) < 32 {
		return nil, ErrCookieHashKeyTooShort
	}
	codec := securecookie.New(hashKey, nil)
	codec.MaxAge(int(cookieMaxAge.Seconds()))
	return &Cookies{
		codec:  codec,
		secure: secure,
		NewID:  uuid.NewString,
	}, nil
}

// Middleware puts the session id of the client into the request context. A
// client without a valid cookie gets a new, empty session.
func (c *Cookies) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := c.read(r)
			if !ok {
				id = c.issue(w)
			}
			next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
		})
	}
}

// Renew gives the client a fresh session id, returned as a request bound to it.
// Called on login, so an id known before the login is worthless after it.
func (c *Cookies) Renew(w http.ResponseWriter, r *http.Request) *http.Request {
	id := c.issue(w)
	return r.WithContext(WithID(r.Context(), id))
}

func (c *Cookies) read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	var id string
	if err := c.codec.Decode(CookieName, cookie.Value, &id); err != nil {
		log.Debugf("session cookie rejected: %s", err)
		return "", false
	}
	return id, id != ""
}

func (c *Cookies) issue(w http.ResponseWriter) string {
	id := c.NewID()
	encoded, err := c.codec.Encode(CookieName, id)
	if err != nil {
		// the session still works for this request, the client just keeps no cookie
		log.Errorf("encode session cookie: %s", err)
		return id
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return id
}

package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

// Cookies issues the browser session id cookie. The id only names the
// server-side state for one browser; who is signed in lives in the
// session package.
type Cookies struct {
	sc     *securecookie.SecureCookie
	secure bool
}

type ctxKey string

const sessionIDKey ctxKey = "sid"

const (
	cookieName   = "tablebook_sid"
	cookieMaxAge = 30 * 24 * time.Hour
)

func NewCookies(hashKey, blockKey []byte, secure bool) *Cookies {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(cookieMaxAge.Seconds()))
	return &Cookies{sc: sc, secure: secure}
}

// Codec is shared with the cookie-backed slot store.
func (c *Cookies) Codec() *securecookie.SecureCookie { return c.sc }

func (c *Cookies) Secure() bool { return c.secure }

func (c *Cookies) SetSessionID(w http.ResponseWriter, sid string) error {
	encoded, err := c.sc.Encode(cookieName, sid)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   c.secure,
		MaxAge:   int(cookieMaxAge.Seconds()),
	})
	return nil
}

func (c *Cookies) SessionID(r *http.Request) (string, bool) {
	ck, err := r.Cookie(cookieName)
	if err != nil {
		return "", false
	}
	var sid string
	if err := c.sc.Decode(cookieName, ck.Value, &sid); err != nil {
		return "", false
	}
	if _, err := uuid.Parse(sid); err != nil {
		return "", false
	}
	return sid, true
}

// WithSessionID makes sure every request carries a session id, issuing a
// new one when the browser has none or sent a tampered cookie.
func (c *Cookies) WithSessionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, ok := c.SessionID(r)
		if !ok {
			sid = uuid.NewString()
			if err := c.SetSessionID(w, sid); err != nil {
				http.Error(w, "session error", http.StatusInternalServerError)
				return
			}
		}
		ctx := context.WithValue(r.Context(), sessionIDKey, sid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func SessionIDFromContext(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(sessionIDKey).(string)
	return sid, ok && sid != ""
}

// RequireAuth redirects to /login unless signedIn reports the request's
// session as authenticated.
func RequireAuth(signedIn func(*http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !signedIn(r) {
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package storage

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/securecookie"
)

const cookieMaxAge = 30 * 24 * time.Hour

// Cookie keeps slots in signed and encrypted browser cookies. Load reads
// the slots from a request; writes are buffered until Flush adds them to a
// response.
type Cookie struct {
	sc     *securecookie.SecureCookie
	prefix string
	secure bool

	mu     sync.Mutex
	values map[string]string
	dirty  map[string]bool
}

func NewCookie(sc *securecookie.SecureCookie, prefix string, secure bool) *Cookie {
	return &Cookie{
		sc:     sc,
		prefix: prefix,
		secure: secure,
		values: map[string]string{},
		dirty:  map[string]bool{},
	}
}

// Load decodes keys from r's cookies. Cookies that fail to decode are
// treated as absent.
func (c *Cookie) Load(r *http.Request, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		ck, err := r.Cookie(c.prefix + k)
		if err != nil {
			continue
		}
		var v string
		if err := c.sc.Decode(c.prefix+k, ck.Value, &v); err != nil {
			continue
		}
		c.values[k] = v
	}
}

// Flush writes every changed slot to w. It must run before the response
// header is written.
func (c *Cookie) Flush(w http.ResponseWriter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.dirty {
		name := c.prefix + k
		v, ok := c.values[k]
		if !ok {
			http.SetCookie(w, &http.Cookie{
				Name:     name,
				Value:    "",
				Path:     "/",
				HttpOnly: true,
				MaxAge:   -1,
			})
			delete(c.dirty, k)
			continue
		}
		encoded, err := c.sc.Encode(name, v)
		if err != nil {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    encoded,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   c.secure,
			MaxAge:   int(cookieMaxAge.Seconds()),
		})
		delete(c.dirty, k)
	}
	return nil
}

func (c *Cookie) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (c *Cookie) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	c.values[key] = value
	c.dirty[key] = true
	c.mu.Unlock()
	return nil
}

func (c *Cookie) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.values, key)
	c.dirty[key] = true
	c.mu.Unlock()
	return nil
}

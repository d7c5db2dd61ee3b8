package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/tablebook/internal/booking"
	"github.com/example/tablebook/internal/session"
	"github.com/example/tablebook/internal/storage"
)

// clientState is everything the server remembers about one browser.
type clientState struct {
	sess *session.Session
	// cookies is set when the browser itself carries the session slots.
	cookies *storage.Cookie
	log     zerolog.Logger

	mu          sync.Mutex
	wizard      *booking.Wizard
	manager     *booking.Manager
	restaurants []booking.Restaurant
	flash       string
}

func (c *clientState) flows() (*booking.Wizard, *booking.Manager) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wizard, c.manager
}

func (c *clientState) setFlash(msg string) {
	c.mu.Lock()
	c.flash = msg
	c.mu.Unlock()
}

func (c *clientState) takeFlash() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := c.flash
	c.flash = ""
	return msg
}

func (c *clientState) setRestaurants(rs []booking.Restaurant) {
	c.mu.Lock()
	c.restaurants = rs
	c.mu.Unlock()
}

func (c *clientState) restaurant(id string) (booking.Restaurant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.restaurants {
		if r.ID == id || r.MicrositeName == id {
			return r, true
		}
	}
	return booking.Restaurant{}, false
}

type stateEntry struct {
	st       *clientState
	lastSeen time.Time
}

// states maps browser session ids to their state. Entries idle for longer
// than ttl are dropped by expire; the slots they wrote stay in the store
// and are read back if the browser returns.
type states struct {
	ttl time.Duration
	now func() time.Time

	mu sync.Mutex
	m  map[string]*stateEntry
}

func newStates(ttl time.Duration, now func() time.Time) *states {
	return &states{ttl: ttl, now: now, m: map[string]*stateEntry{}}
}

func (s *states) load(sid string, create func() *clientState) *clientState {
	s.mu.Lock()
	if e, ok := s.m[sid]; ok {
		e.lastSeen = s.now()
		s.mu.Unlock()
		return e.st
	}
	s.mu.Unlock()

	// create may hit the slot store; build outside the lock.
	st := create()

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.m[sid]; ok {
		e.lastSeen = s.now()
		return e.st
	}
	s.m[sid] = &stateEntry{st: st, lastSeen: s.now()}
	return st
}

func (s *states) expire() int {
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for sid, e := range s.m {
		if e.lastSeen.Before(cutoff) {
			delete(s.m, sid)
			n++
		}
	}
	return n
}

func (s *states) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

type stateKey struct{}

func withState(ctx context.Context, st *clientState) context.Context {
	return context.WithValue(ctx, stateKey{}, st)
}

func stateFrom(r *http.Request) *clientState {
	st, _ := r.Context().Value(stateKey{}).(*clientState)
	return st
}

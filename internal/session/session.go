// Package session owns the signed-in user and bearer token. It is the only
// place that writes the authToken and userData slots.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/example/tablebook/internal/api"
	"github.com/example/tablebook/internal/booking"
	"github.com/example/tablebook/internal/metrics"
	"github.com/example/tablebook/internal/storage"
)

const (
	KeyToken = "authToken"
	KeyUser  = "userData"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginFailed        = errors.New("login failed")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrNotSignedIn        = errors.New("not signed in")
)

// Messages shown to the user for the errors above.
const (
	MsgInvalidCredentials = "Invalid credentials"
	MsgLoginFailed        = "Login failed"
	MsgPasswordMismatch   = "Passwords do not match"
)

// AuthAPI is the part of the booking API the session needs.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (api.LoginResult, error)
	Register(ctx context.Context, r api.Registration) error
	Logout(ctx context.Context, token string) error
	Profile(ctx context.Context, token string) (api.UserInfo, error)
}

// Session holds who is signed in. A token is present exactly when the
// session is authenticated.
type Session struct {
	store storage.Store
	api   AuthAPI
	log   zerolog.Logger

	mu    sync.RWMutex
	token string
	user  *booking.Customer
}

func New(store storage.Store, a AuthAPI, log zerolog.Logger) *Session {
	return &Session{
		store: store,
		api:   a,
		log:   log.With().Str("component", "session").Logger(),
	}
}

// Init restores the session from the store without contacting the API. A
// stored token that is clearly not a bearer token is dropped along with
// its slot.
func (s *Session) Init(ctx context.Context) {
	token, err := s.store.Get(ctx, KeyToken)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn().Err(err).Msg("read stored token")
		}
		return
	}
	if !plausibleToken(token) {
		s.log.Warn().Msg("discarding malformed stored token")
		if err := s.store.Delete(ctx, KeyToken); err != nil {
			s.log.Warn().Err(err).Msg("delete stored token")
		}
		return
	}

	var user *booking.Customer
	raw, err := s.store.Get(ctx, KeyUser)
	switch {
	case err == nil:
		var c booking.Customer
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			s.log.Warn().Err(err).Msg("discarding undecodable stored profile")
		} else {
			user = &c
		}
	case !errors.Is(err, storage.ErrNotFound):
		s.log.Warn().Err(err).Msg("read stored profile")
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()
}

// plausibleToken rejects values that are serialized objects rather than a
// scalar token.
func plausibleToken(t string) bool {
	t = strings.TrimSpace(t)
	if t == "" || t == "[object Object]" || t == "undefined" || t == "null" {
		return false
	}
	return t[0] != '{' && t[0] != '['
}

// Login signs in. On failure the session is left exactly as it was. Any
// failed call is ErrLoginFailed, rejected credentials included; only an
// accepted call that carries no token is ErrInvalidCredentials.
func (s *Session) Login(ctx context.Context, email, password string) error {
	res, err := s.api.Login(ctx, email, password)
	if err != nil {
		metrics.IncLogin("error")
		s.log.Error().Err(err).Str("email", email).Msg("login failed")
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	token := normalizeToken(res.Token)
	if token == "" {
		metrics.IncLogin("rejected")
		return ErrInvalidCredentials
	}

	user := booking.Customer{Email: email}
	if res.User != nil {
		user = mergeUser(user, res.User.Customer())
	}

	s.mu.Lock()
	s.token = token
	s.user = &user
	s.mu.Unlock()
	metrics.IncLogin("ok")

	s.persist(ctx, token, user)
	return nil
}

// normalizeToken accepts a bare string or {"access_token": "..."}.
func normalizeToken(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if !plausibleToken(str) {
			return ""
		}
		return strings.TrimSpace(str)
	}
	var obj struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && plausibleToken(obj.AccessToken) {
		return strings.TrimSpace(obj.AccessToken)
	}
	return ""
}

// mergeUser lays the server's non-empty fields over base.
func mergeUser(base, srv booking.Customer) booking.Customer {
	if srv.ID != "" {
		base.ID = srv.ID
	}
	if srv.Email != "" {
		base.Email = srv.Email
	}
	if srv.FirstName != "" {
		base.FirstName = srv.FirstName
	}
	if srv.LastName != "" {
		base.LastName = srv.LastName
	}
	if srv.Phone != "" {
		base.Phone = srv.Phone
	}
	return base
}

func (s *Session) persist(ctx context.Context, token string, user booking.Customer) {
	if err := s.store.Set(ctx, KeyToken, token); err != nil {
		s.log.Warn().Err(err).Msg("store token")
	}
	b, err := json.Marshal(user)
	if err != nil {
		s.log.Warn().Err(err).Msg("encode profile")
		return
	}
	if err := s.store.Set(ctx, KeyUser, string(b)); err != nil {
		s.log.Warn().Err(err).Msg("store profile")
	}
}

// Logout tells the API the token is done with, then clears local state no
// matter what the API said.
func (s *Session) Logout(ctx context.Context) {
	token := s.Token()
	if token != "" {
		if err := s.api.Logout(ctx, token); err != nil {
			s.log.Warn().Err(err).Msg("remote logout failed, clearing local session anyway")
		}
	}
	s.Clear(ctx)
}

// Clear drops the session locally. Used on logout and when the API
// rejects the token.
func (s *Session) Clear(ctx context.Context) {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	for _, k := range []string{KeyToken, KeyUser} {
		if err := s.store.Delete(ctx, k); err != nil {
			s.log.Warn().Err(err).Str("key", k).Msg("clear stored session")
		}
	}
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) User() (booking.Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || s.user == nil {
		return booking.Customer{}, false
	}
	return *s.user, true
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Register creates an account. It does not sign in.
func (s *Session) Register(ctx context.Context, r api.Registration) error {
	if r.Password != r.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if err := s.api.Register(ctx, r); err != nil {
		s.log.Error().Err(err).Str("email", r.Email).Msg("register failed")
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// RefreshProfile fetches the profile and merges it into the cached user.
func (s *Session) RefreshProfile(ctx context.Context) (booking.Customer, error) {
	token := s.Token()
	if token == "" {
		return booking.Customer{}, ErrNotSignedIn
	}
	info, err := s.api.Profile(ctx, token)
	if err != nil {
		return booking.Customer{}, fmt.Errorf("profile: %w", err)
	}

	s.mu.Lock()
	if s.token != token {
		s.mu.Unlock()
		return booking.Customer{}, ErrNotSignedIn
	}
	var base booking.Customer
	if s.user != nil {
		base = *s.user
	}
	user := mergeUser(base, info.Customer())
	s.user = &user
	s.mu.Unlock()

	s.persist(ctx, token, user)
	return user, nil
}

var _ booking.Identity = (*Session)(nil)

package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/example/tablebook/internal/api"
	"github.com/example/tablebook/internal/auth"
	"github.com/example/tablebook/internal/booking"
	"github.com/example/tablebook/internal/session"
	"github.com/example/tablebook/internal/storage"
)

//go:embed templates/*.html static/*
var fs embed.FS

// API is everything the web UI needs from the booking API.
type API interface {
	session.AuthAPI
	booking.BookingAPI
	booking.ManageAPI
	ListRestaurants(ctx context.Context, token string) ([]booking.Restaurant, error)
	GetRestaurant(ctx context.Context, token, id string) (booking.Restaurant, error)
}

type Server struct {
	API     API
	Cookies *auth.Cookies
	// Slots holds session slots for the redis and postgres backends. When
	// nil each browser keeps its own slots in cookies.
	Slots storage.Store

	Location           *time.Location
	SessionTTL         time.Duration
	LoginRatePerMinute int
	Log                zerolog.Logger

	once   sync.Once
	now    func() time.Time
	states *states
	logins *loginLimiter
}

const cookiePrefix = "tablebook_"

func (s *Server) init() {
	s.once.Do(func() {
		if s.now == nil {
			s.now = time.Now
		}
		if s.Location == nil {
			s.Location = time.UTC
		}
		if s.SessionTTL <= 0 {
			s.SessionTTL = 30 * time.Minute
		}
		if s.LoginRatePerMinute < 1 {
			s.LoginRatePerMinute = 10
		}
		s.states = newStates(s.SessionTTL, s.now)
		s.logins = newLoginLimiter(s.LoginRatePerMinute)
	})
}

func (s *Server) Routes() http.Handler {
	s.init()
	r := mux.NewRouter()
	r.Use(hlog.NewHandler(s.Log), hlog.AccessHandler(func(r *http.Request, status, size int, took time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("took", took).
			Msg("request")
	}))

	r.PathPrefix("/static/").Handler(http.FileServer(http.FS(fs))).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	app := r.NewRoute().Subrouter()
	app.Use(s.Cookies.WithSessionID, s.withClientState)

	app.HandleFunc("/login", s.handleLoginPage).Methods(http.MethodGet)
	app.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	app.HandleFunc("/register", s.handleRegisterPage).Methods(http.MethodGet)
	app.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	app.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	authed := app.NewRoute().Subrouter()
	authed.Use(auth.RequireAuth(s.signedIn))

	authed.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/restaurants", http.StatusFound)
	}).Methods(http.MethodGet)
	authed.HandleFunc("/restaurants", s.handleRestaurants).Methods(http.MethodGet)
	authed.HandleFunc("/restaurants/{id}/select", s.handleSelectRestaurant).Methods(http.MethodPost)

	authed.HandleFunc("/book", s.handleBook).Methods(http.MethodGet)
	authed.HandleFunc("/book/availability", s.handleAvailability).Methods(http.MethodPost)
	authed.HandleFunc("/book/slot", s.handleSlot).Methods(http.MethodPost)
	authed.HandleFunc("/book/back", s.handleBack).Methods(http.MethodPost)
	authed.HandleFunc("/book/submit", s.handleSubmit).Methods(http.MethodPost)
	authed.HandleFunc("/book/new", s.handleNewBooking).Methods(http.MethodPost)
	authed.HandleFunc("/book/success", s.handleSuccess).Methods(http.MethodGet)

	authed.HandleFunc("/bookings", s.handleBookings).Methods(http.MethodGet)
	authed.HandleFunc("/bookings/export.xlsx", s.handleExport).Methods(http.MethodGet)
	authed.HandleFunc("/bookings/cancel/confirm", s.handleConfirmCancel).Methods(http.MethodPost)
	authed.HandleFunc("/bookings/cancel/abort", s.handleAbortCancel).Methods(http.MethodPost)
	authed.HandleFunc("/bookings/{ref}/edit", s.handleEdit).Methods(http.MethodPost)
	authed.HandleFunc("/bookings/{ref}/cancel", s.handleRequestCancel).Methods(http.MethodPost)

	authed.HandleFunc("/profile", s.handleProfile).Methods(http.MethodGet)

	return r
}

// withClientState attaches the browser's state to the request, creating
// and rehydrating it on first sight.
func (s *Server) withClientState(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, ok := auth.SessionIDFromContext(r.Context())
		if !ok {
			http.Error(w, "session error", http.StatusInternalServerError)
			return
		}
		st := s.states.load(sid, func() *clientState { return s.newState(r, sid) })
		next.ServeHTTP(w, r.WithContext(withState(r.Context(), st)))
	})
}

func (s *Server) newState(r *http.Request, sid string) *clientState {
	log := s.Log.With().Str("sid", sid[:8]).Logger()
	st := &clientState{log: log}

	var store storage.Store
	if s.Slots == nil {
		st.cookies = storage.NewCookie(s.Cookies.Codec(), cookiePrefix, s.Cookies.Secure())
		st.cookies.Load(r, session.KeyToken, session.KeyUser)
		store = st.cookies
	} else {
		store = storage.NewPrefixed(s.Slots, "sid:"+sid+":")
	}
	st.sess = session.New(store, s.API, log)
	st.sess.Init(r.Context())
	st.wizard = booking.NewWizard(s.API, st.sess, log)
	st.manager = booking.NewManager(s.API, st.sess, s.Location, log)
	return st
}

// resetFlows drops any booking in progress and the cached booking list,
// used whenever the signed-in user changes.
func (s *Server) resetFlows(st *clientState) {
	st.mu.Lock()
	st.wizard = booking.NewWizard(s.API, st.sess, st.log)
	st.manager = booking.NewManager(s.API, st.sess, s.Location, st.log)
	st.restaurants = nil
	st.mu.Unlock()
}

func (s *Server) signedIn(r *http.Request) bool {
	st := stateFrom(r)
	return st != nil && st.sess.Authenticated()
}

// Expire drops browser state idle for longer than the session TTL. It is
// meant to run on the scheduler.
func (s *Server) Expire(context.Context) error {
	s.init()
	n := s.states.expire()
	m := s.logins.prune(s.now().Add(-s.SessionTTL))
	if n > 0 || m > 0 {
		s.Log.Debug().Int("states", n).Int("limiters", m).Msg("expired idle state")
	}
	return nil
}

// expired handles the API rejecting the bearer token: the session is
// cleared and the browser sent back to sign in. It reports whether err was
// such a rejection.
func (s *Server) expired(w http.ResponseWriter, r *http.Request, st *clientState, err error) bool {
	if !api.IsUnauthorized(err) {
		return false
	}
	s.Log.Info().Msg("booking API rejected token, signing out")
	st.sess.Clear(r.Context())
	s.resetFlows(st)
	s.redirect(w, r, st, "/login?expired=1")
	return true
}

// flush adds pending cookie slot writes to the response. It must run
// before the header is written.
func (s *Server) flush(w http.ResponseWriter, st *clientState) {
	if st == nil || st.cookies == nil {
		return
	}
	if err := st.cookies.Flush(w); err != nil {
		s.Log.Error().Err(err).Msg("write session cookies")
	}
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, st *clientState, to string) {
	s.flush(w, st)
	http.Redirect(w, r, to, http.StatusSeeOther)
}

type pageData struct {
	Title string
	User  *booking.Customer
	Flash string
	Error string

	// login and register
	Expired    bool
	Registered bool
	Form       map[string]string

	Restaurants []booking.Restaurant

	Wizard     booking.View
	Today      string
	PartySizes []int

	Bookings []bookingRow
	Pending  *booking.Record
	Loading  bool

	Profile booking.Customer
}

type bookingRow struct {
	booking.Record
	Editable    bool
	Cancellable bool
}

var funcs = template.FuncMap{
	"formatTime": booking.FormatTime,
}

func (s *Server) render(w http.ResponseWriter, st *clientState, status int, name string, data pageData) {
	t, err := template.New("page").Funcs(funcs).ParseFS(fs, "templates/base.html", "templates/"+name)
	if err != nil {
		s.Log.Error().Err(err).Str("template", name).Msg("parse template")
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	if st != nil {
		if u, ok := st.sess.User(); ok {
			data.User = &u
		}
		if data.Flash == "" {
			data.Flash = st.takeFlash()
		}
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		s.Log.Error().Err(err).Str("template", name).Msg("render template")
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}
	s.flush(w, st)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func Start(ctx context.Context, addr string, h http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info().Str("addr", addr).Msg("listening")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

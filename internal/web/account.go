package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/example/tablebook/internal/api"
	"github.com/example/tablebook/internal/booking"
	"github.com/example/tablebook/internal/session"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	if st.sess.Authenticated() {
		s.redirect(w, r, st, "/restaurants")
		return
	}
	s.render(w, st, http.StatusOK, "login.html", pageData{
		Title:      "Sign in",
		Expired:    r.URL.Query().Get("expired") != "",
		Registered: r.URL.Query().Get("registered") != "",
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	if !s.logins.allow(clientIP(r), s.now()) {
		s.Log.Warn().Str("ip", clientIP(r)).Msg("login rate limit exceeded")
		s.render(w, st, http.StatusTooManyRequests, "login.html", pageData{
			Title: "Sign in",
			Error: "Too many login attempts. Try again later.",
		})
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	form := map[string]string{"email": email}

	if email == "" || password == "" {
		s.render(w, st, http.StatusOK, "login.html", pageData{Title: "Sign in", Error: "Email and password are required", Form: form})
		return
	}
	if err := st.sess.Login(r.Context(), email, password); err != nil {
		msg := session.MsgLoginFailed
		if errors.Is(err, session.ErrInvalidCredentials) {
			msg = session.MsgInvalidCredentials
		}
		s.render(w, st, http.StatusOK, "login.html", pageData{Title: "Sign in", Error: msg, Form: form})
		return
	}
	s.resetFlows(st)
	s.redirect(w, r, st, "/restaurants")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	st.sess.Logout(r.Context())
	s.resetFlows(st)
	s.redirect(w, r, st, "/login")
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, stateFrom(r), http.StatusOK, "register.html", pageData{Title: "Create account"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	reg := api.Registration{
		Email:           strings.TrimSpace(r.FormValue("email")),
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirm_password"),
		FirstName:       strings.TrimSpace(r.FormValue("first_name")),
		LastName:        strings.TrimSpace(r.FormValue("last_name")),
		Phone:           strings.TrimSpace(r.FormValue("phone")),
	}
	form := map[string]string{
		"email":      reg.Email,
		"first_name": reg.FirstName,
		"last_name":  reg.LastName,
		"phone":      reg.Phone,
	}
	fail := func(msg string) {
		s.render(w, st, http.StatusOK, "register.html", pageData{Title: "Create account", Error: msg, Form: form})
	}

	switch {
	case reg.Email == "" || reg.Password == "" || reg.FirstName == "" || reg.LastName == "":
		fail("Please fill in all required fields")
		return
	case !booking.ValidEmail(reg.Email):
		fail("Please enter a valid email address")
		return
	case reg.Phone != "" && !booking.ValidPhone(reg.Phone):
		fail("Please enter a valid phone number")
		return
	}

	if err := st.sess.Register(r.Context(), reg); err != nil {
		if errors.Is(err, session.ErrPasswordMismatch) {
			fail(session.MsgPasswordMismatch)
			return
		}
		fail("Registration failed")
		return
	}
	s.redirect(w, r, st, "/login?registered=1")
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	data := pageData{Title: "Profile"}
	u, err := st.sess.RefreshProfile(r.Context())
	if err != nil {
		if s.expired(w, r, st, err) {
			return
		}
		data.Error = "Failed to load profile"
		u, _ = st.sess.User()
	}
	data.Profile = u
	s.render(w, st, http.StatusOK, "profile.html", data)
}

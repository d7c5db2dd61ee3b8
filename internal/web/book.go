package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/example/tablebook/internal/booking"
)

const msgBusy = "A request is already in progress"

func (s *Server) handleRestaurants(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	data := pageData{Title: "Choose a restaurant"}
	rs, err := s.API.ListRestaurants(r.Context(), st.sess.Token())
	if err != nil {
		if s.expired(w, r, st, err) {
			return
		}
		s.Log.Error().Err(err).Msg("list restaurants")
		data.Error = "Failed to load restaurants"
	} else {
		st.setRestaurants(rs)
		data.Restaurants = rs
	}
	s.render(w, st, http.StatusOK, "restaurants.html", data)
}

func (s *Server) handleSelectRestaurant(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	id := mux.Vars(r)["id"]
	rest, ok := st.restaurant(id)
	if !ok {
		var err error
		rest, err = s.API.GetRestaurant(r.Context(), st.sess.Token(), id)
		if err != nil {
			if s.expired(w, r, st, err) {
				return
			}
			s.Log.Error().Err(err).Str("restaurant", id).Msg("get restaurant")
			st.setFlash("Restaurant not found")
			s.redirect(w, r, st, "/restaurants")
			return
		}
	}
	wiz, _ := st.flows()
	wiz.SelectRestaurant(rest)
	s.redirect(w, r, st, "/book")
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	wiz, _ := st.flows()
	v := wiz.View()
	switch {
	case v.Restaurant == nil:
		s.redirect(w, r, st, "/restaurants")
		return
	case v.Step == booking.StepSubmitted:
		s.redirect(w, r, st, "/book/success")
		return
	}
	s.render(w, st, http.StatusOK, "book.html", pageData{
		Title:      v.Restaurant.Name,
		Wizard:     v,
		Today:      s.now().In(s.Location).Format("2006-01-02"),
		PartySizes: booking.PartySizes,
	})
}

// wizardDone sends the browser on after a wizard action. Errors the wizard
// keeps in its own state are shown by the next GET /book.
func (s *Server) wizardDone(w http.ResponseWriter, r *http.Request, st *clientState, err error) {
	switch {
	case err == nil:
	case errors.Is(err, booking.ErrNoRestaurant):
		s.redirect(w, r, st, "/restaurants")
		return
	case errors.Is(err, booking.ErrBusy):
		st.setFlash(msgBusy)
	case errors.Is(err, booking.ErrUnknownSlot):
		st.setFlash("That time is not available")
	case s.expired(w, r, st, err):
		return
	}
	s.redirect(w, r, st, "/book")
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	wiz, _ := st.flows()
	size, _ := strconv.Atoi(r.FormValue("party_size"))
	if err := wiz.SetDate(strings.TrimSpace(r.FormValue("date"))); err != nil {
		s.wizardDone(w, r, st, err)
		return
	}
	if err := wiz.SetPartySize(size); err != nil {
		s.wizardDone(w, r, st, err)
		return
	}
	s.wizardDone(w, r, st, wiz.CheckAvailability(r.Context()))
}

func (s *Server) handleSlot(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	wiz, _ := st.flows()
	if t := r.FormValue("time"); t != "" {
		if err := wiz.SelectSlot(t); err != nil {
			s.wizardDone(w, r, st, err)
			return
		}
	}
	s.wizardDone(w, r, st, wiz.Continue())
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	wiz, _ := st.flows()
	_ = wiz.Back()
	s.redirect(w, r, st, "/book")
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	wiz, _ := st.flows()
	wiz.SetDetails(booking.Details{
		FirstName:       strings.TrimSpace(r.FormValue("first_name")),
		Surname:         strings.TrimSpace(r.FormValue("surname")),
		Email:           strings.TrimSpace(r.FormValue("email")),
		Mobile:          strings.TrimSpace(r.FormValue("mobile")),
		SpecialRequests: strings.TrimSpace(r.FormValue("special_requests")),
	})
	err := wiz.Submit(r.Context())
	if err == nil {
		s.redirect(w, r, st, "/book/success")
		return
	}
	s.wizardDone(w, r, st, err)
}

func (s *Server) handleSuccess(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	wiz, _ := st.flows()
	v := wiz.View()
	if v.Record == nil {
		s.redirect(w, r, st, "/book")
		return
	}
	s.render(w, st, http.StatusOK, "success.html", pageData{Title: "Booking confirmed", Wizard: v})
}

// handleNewBooking leaves a finished booking and returns to the
// restaurant list.
func (s *Server) handleNewBooking(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	wiz, mgr := st.flows()
	_, submitted := wiz.Record()
	wiz.ClearRestaurant()
	if submitted && mgr.Loaded() {
		// the list is stale once a booking was added
		s.resetManager(st)
	}
	s.redirect(w, r, st, "/restaurants")
}

func (s *Server) resetManager(st *clientState) {
	st.mu.Lock()
	st.manager = booking.NewManager(s.API, st.sess, s.Location, st.log)
	st.mu.Unlock()
}

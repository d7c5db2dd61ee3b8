package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/example/tablebook/internal/booking"
	"github.com/example/tablebook/internal/export"
)

// handleBookings lists the customer's bookings. The list is fetched once
// and then kept up to date locally by edits and cancellations; ?refresh=1
// fetches it again.
func (s *Server) handleBookings(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	_, mgr := st.flows()
	if !mgr.Loaded() || r.URL.Query().Get("refresh") != "" {
		if err := mgr.Load(r.Context()); err != nil && s.expired(w, r, st, err) {
			return
		}
	}

	data := pageData{Title: "My bookings", Error: mgr.LastError()}
	for _, rec := range mgr.Records() {
		data.Bookings = append(data.Bookings, bookingRow{
			Record:      rec,
			Editable:    mgr.Editable(rec),
			Cancellable: mgr.Cancellable(rec),
		})
	}
	if p, ok := mgr.PendingCancel(); ok {
		data.Pending = &p
	}
	s.render(w, st, http.StatusOK, "bookings.html", data)
}

// bookingsDone sends the browser back to the list after a change. Failed
// API calls are shown through the manager's LastError.
func (s *Server) bookingsDone(w http.ResponseWriter, r *http.Request, st *clientState, err error) {
	switch {
	case err == nil:
	case errors.Is(err, booking.ErrNotFound):
		st.setFlash("Booking not found")
	case errors.Is(err, booking.ErrNotEditable):
		st.setFlash("This booking can no longer be changed")
	case errors.Is(err, booking.ErrNotCancellable):
		st.setFlash("Cancellations must be made at least 24 hours in advance")
	case errors.Is(err, booking.ErrInvalid):
		st.setFlash("Party size must be at least 1")
	case errors.Is(err, booking.ErrNoPendingCancel):
	case s.expired(w, r, st, err):
		return
	}
	s.redirect(w, r, st, "/bookings")
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_, mgr := st.flows()
	size, _ := strconv.Atoi(r.FormValue("party_size"))
	err := mgr.Edit(r.Context(), mux.Vars(r)["ref"], size, strings.TrimSpace(r.FormValue("special_requests")))
	if err == nil {
		st.setFlash("Booking updated")
	}
	s.bookingsDone(w, r, st, err)
}

func (s *Server) handleRequestCancel(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	_, mgr := st.flows()
	_, err := mgr.RequestCancel(mux.Vars(r)["ref"])
	s.bookingsDone(w, r, st, err)
}

func (s *Server) handleConfirmCancel(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	_, mgr := st.flows()
	err := mgr.ConfirmCancel(r.Context())
	if err == nil {
		st.setFlash("Booking cancelled")
	}
	s.bookingsDone(w, r, st, err)
}

func (s *Server) handleAbortCancel(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	_, mgr := st.flows()
	mgr.AbortCancel()
	s.redirect(w, r, st, "/bookings")
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	_, mgr := st.flows()
	if !mgr.Loaded() {
		if err := mgr.Load(r.Context()); err != nil {
			if s.expired(w, r, st, err) {
				return
			}
			st.setFlash(booking.MsgListFailed)
			s.redirect(w, r, st, "/bookings")
			return
		}
	}
	s.flush(w, st)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="bookings.xlsx"`)
	if err := export.Bookings(w, mgr.Records()); err != nil {
		s.Log.Error().Err(err).Msg("export bookings")
	}
}

package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/tablebook/internal/api"
	"github.com/example/tablebook/internal/booking"
)

type token string

func (t token) Token() string { return string(t) }

// fakeBookingService mimics the availability and booking endpoints.
func fakeBookingService(t *testing.T) *httptest.Server {
	t.Helper()
	r := mux.NewRouter()
	r.HandleFunc("/api/ConsumerApi/v1/Restaurant/{microsite}/AvailabilitySearch", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "2025-06-01", r.PostForm.Get("VisitDate"))
		assert.Equal(t, "2", r.PostForm.Get("PartySize"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"restaurant":"` + mux.Vars(r)["microsite"] + `","visit_date":"2025-06-01"}`))
	}).Methods(http.MethodPost)
	r.HandleFunc("/api/ConsumerApi/v1/Restaurant/{microsite}/BookingWithStripeToken", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "19:00:00", r.PostForm.Get("VisitTime"))
		assert.Equal(t, "Lovelace", r.PostForm.Get("Customer[Surname]"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"booking_reference":"TGR0042","status":"confirmed"}`))
	}).Methods(http.MethodPost)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestWizardAgainstClient(t *testing.T) {
	srv := fakeBookingService(t)
	client := api.New(srv.URL, zerolog.Nop())
	w := booking.NewWizard(client, token("tok"), zerolog.Nop())

	r := booking.NewRestaurant("1", "TheGreenRoom", "thegreenroom")
	w.SelectRestaurant(r)
	w.SetDate("2025-06-01")
	w.SetPartySize(2)
	require.NoError(t, w.CheckAvailability(context.Background()))
	require.Equal(t, booking.StepSlot, w.Step())

	require.NoError(t, w.SelectSlot("19:00:00"))
	require.NoError(t, w.Continue())
	w.SetDetails(booking.Details{
		FirstName: "Ada",
		Surname:   "Lovelace",
		Email:     "ada@example.com",
		Mobile:    "555-123-4567",
	})
	require.NoError(t, w.Submit(context.Background()))

	rec, ok := w.Record()
	require.True(t, ok)
	assert.Equal(t, booking.StatusConfirmed, rec.Status)
	assert.Equal(t, "TGR0042", rec.Reference)
	assert.Equal(t, "thegreenroom", rec.Microsite)
	assert.Equal(t, r.Name, rec.RestaurantName)
	assert.Equal(t, booking.StepSubmitted, w.Step())
}

func TestWizardAgainstClient_AvailabilityFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	w := booking.NewWizard(api.New(srv.URL, zerolog.Nop()), token("tok"), zerolog.Nop())
	w.SelectRestaurant(booking.NewRestaurant("1", "Bistro", "bistro"))
	w.SetDate("2025-06-01")

	err := w.CheckAvailability(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, api.StatusCode(err))
	assert.Equal(t, booking.MsgAvailabilityFailed, w.LastError())
	assert.Equal(t, booking.StepDateAndParty, w.Step())
}

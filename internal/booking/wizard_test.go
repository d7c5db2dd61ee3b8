package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

type fakeBookingAPI struct {
	mu sync.Mutex

	avail     Availability
	availErr  error
	conf      Confirmation
	createErr error

	// When set, SearchAvailability signals started and waits for release.
	started chan struct{}
	release chan struct{}
	// Same for CreateBooking.
	createStarted chan struct{}
	createRelease chan struct{}

	searches  int
	searched  []string
	created   []Draft
	tokens    []string
	microsite string
}

func (f *fakeBookingAPI) SearchAvailability(ctx context.Context, token, microsite, date string, partySize int) (Availability, error) {
	if f.started != nil {
		close(f.started)
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	f.searched = append(f.searched, fmt.Sprintf("%s/%d", date, partySize))
	f.tokens = append(f.tokens, token)
	f.microsite = microsite
	return f.avail, f.availErr
}

func (f *fakeBookingAPI) CreateBooking(ctx context.Context, token, microsite string, d Draft) (Confirmation, error) {
	if f.createStarted != nil {
		close(f.createStarted)
		<-f.createRelease
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, d)
	f.tokens = append(f.tokens, token)
	return f.conf, f.createErr
}

var testRestaurant = Restaurant{ID: "1", MicrositeName: "thegreenroom", Name: "The Green Room"}

func newTestWizard(api *fakeBookingAPI) *Wizard {
	w := NewWizard(api, staticToken("tok"), zerolog.Nop())
	w.SelectRestaurant(testRestaurant)
	return w
}

func details() Details {
	return Details{FirstName: "Ada", Surname: "Lovelace", Email: "ada@example.com", Mobile: "(555) 123-4567"}
}

func TestWizard_StartsAtDateAndParty(t *testing.T) {
	w := newTestWizard(&fakeBookingAPI{})
	assert.Equal(t, StepDateAndParty, w.Step())
	assert.Equal(t, 2, w.Draft().PartySize)
}

func TestWizard_CheckAvailabilityNeedsDateAndPartySize(t *testing.T) {
	api := &fakeBookingAPI{}
	w := newTestWizard(api)

	err := w.CheckAvailability(context.Background())
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, "Please select a date", w.Errors()[FieldDate])
	assert.False(t, w.Errors().Has(FieldPartySize))

	w.SetDate("2025-06-01")
	w.SetPartySize(0)
	assert.False(t, w.Errors().Has(FieldDate))

	err = w.CheckAvailability(context.Background())
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, "Please select party size", w.Errors()[FieldPartySize])
	assert.Equal(t, StepDateAndParty, w.Step())
	assert.Zero(t, api.searches)
}

func TestWizard_CheckAvailabilityWithoutRestaurant(t *testing.T) {
	api := &fakeBookingAPI{}
	w := NewWizard(api, staticToken("tok"), zerolog.Nop())
	w.SetDate("2025-06-01")

	err := w.CheckAvailability(context.Background())
	assert.ErrorIs(t, err, ErrNoRestaurant)
	assert.Zero(t, api.searches)
	assert.Empty(t, w.LastError())
}

func TestWizard_CheckAvailabilityFallsBackToCatalog(t *testing.T) {
	api := &fakeBookingAPI{}
	w := newTestWizard(api)
	w.SetDate("2025-06-01")
	w.SetPartySize(2)

	require.NoError(t, w.CheckAvailability(context.Background()))
	assert.Equal(t, StepSlot, w.Step())
	assert.Equal(t, TimeSlots, w.Slots())
	assert.Equal(t, "thegreenroom", api.microsite)
	assert.Equal(t, []string{"tok"}, api.tokens)
}

func TestWizard_CheckAvailabilityUsesListedSlots(t *testing.T) {
	api := &fakeBookingAPI{avail: Availability{Listed: true, Slots: []string{"18:00", "19:00:00", "18:00:00"}}}
	w := newTestWizard(api)
	w.SetDate("2025-06-01")

	require.NoError(t, w.CheckAvailability(context.Background()))
	assert.Equal(t, []string{"18:00:00", "19:00:00"}, w.Slots())
	assert.ErrorIs(t, w.SelectSlot("12:00:00"), ErrUnknownSlot)
}

func TestWizard_CheckAvailabilityFailureStays(t *testing.T) {
	api := &fakeBookingAPI{availErr: errors.New("boom")}
	w := newTestWizard(api)
	w.SetDate("2025-06-01")

	err := w.CheckAvailability(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRestaurant)
	assert.Equal(t, StepDateAndParty, w.Step())
	assert.Equal(t, MsgAvailabilityFailed, w.LastError())

	api.availErr = nil
	require.NoError(t, w.CheckAvailability(context.Background()))
	assert.Empty(t, w.LastError())
}

func TestWizard_ContinueNeedsSlot(t *testing.T) {
	w := newTestWizard(&fakeBookingAPI{})
	w.SetDate("2025-06-01")
	require.NoError(t, w.CheckAvailability(context.Background()))

	assert.ErrorIs(t, w.Continue(), ErrInvalid)
	assert.Equal(t, "Please select a time", w.Errors()[FieldTime])
	assert.Equal(t, StepSlot, w.Step())

	require.NoError(t, w.SelectSlot("19:00"))
	assert.False(t, w.Errors().Has(FieldTime))
	require.NoError(t, w.Continue())
	assert.Equal(t, StepDetails, w.Step())
	assert.Equal(t, "19:00:00", w.Draft().Time)
}

func TestWizard_BackKeepsDraft(t *testing.T) {
	w := newTestWizard(&fakeBookingAPI{})
	w.SetDate("2025-06-01")
	w.SetPartySize(4)
	require.NoError(t, w.CheckAvailability(context.Background()))
	require.NoError(t, w.SelectSlot("19:00:00"))
	require.NoError(t, w.Continue())
	w.SetDetails(details())

	require.NoError(t, w.Back())
	assert.Equal(t, StepSlot, w.Step())
	require.NoError(t, w.Back())
	assert.Equal(t, StepDateAndParty, w.Step())
	assert.ErrorIs(t, w.Back(), ErrWrongStep)

	d := w.Draft()
	assert.Equal(t, "2025-06-01", d.Date)
	assert.Equal(t, 4, d.PartySize)
	assert.Equal(t, "19:00:00", d.Time)
	assert.Equal(t, "Ada", d.FirstName)

	require.NoError(t, w.CheckAvailability(context.Background()))
	require.NoError(t, w.Continue())
	assert.Equal(t, StepDetails, w.Step())
}

func advanceToDetails(t *testing.T, w *Wizard) {
	t.Helper()
	w.SetDate("2025-06-01")
	w.SetPartySize(2)
	require.NoError(t, w.CheckAvailability(context.Background()))
	require.NoError(t, w.SelectSlot("19:00:00"))
	require.NoError(t, w.Continue())
}

func TestWizard_SubmitInvalidDoesNotCallAPI(t *testing.T) {
	api := &fakeBookingAPI{}
	w := newTestWizard(api)
	advanceToDetails(t, w)
	w.SetDetails(Details{FirstName: "Ada", Email: "nope", Mobile: "12345"})

	assert.ErrorIs(t, w.Submit(context.Background()), ErrInvalid)
	errs := w.Errors()
	assert.Len(t, errs, 3)
	assert.True(t, errs.Has(FieldSurname))
	assert.True(t, errs.Has(FieldEmail))
	assert.True(t, errs.Has(FieldMobile))
	assert.Empty(t, api.created)
	assert.Equal(t, StepDetails, w.Step())
}

func TestWizard_SubmitUsesServerReference(t *testing.T) {
	api := &fakeBookingAPI{conf: Confirmation{Reference: "ABC1234"}}
	w := newTestWizard(api)
	advanceToDetails(t, w)
	w.SetDetails(details())

	require.NoError(t, w.Submit(context.Background()))
	assert.Equal(t, StepSubmitted, w.Step())

	rec, ok := w.Record()
	require.True(t, ok)
	assert.Equal(t, "ABC1234", rec.Reference)
	assert.Equal(t, StatusConfirmed, rec.Status)
	assert.Equal(t, "thegreenroom", rec.Microsite)
	assert.Equal(t, "The Green Room", rec.RestaurantName)
	assert.Equal(t, "19:00:00", rec.Time)
	require.Len(t, api.created, 1)
	assert.Equal(t, "Lovelace", api.created[0].Surname)
}

func TestWizard_SubmitFallsBackToLocalReference(t *testing.T) {
	w := newTestWizard(&fakeBookingAPI{})
	w.newRef = func() string { return "LOCAL01" }
	advanceToDetails(t, w)
	w.SetDetails(details())

	require.NoError(t, w.Submit(context.Background()))
	rec, _ := w.Record()
	assert.Equal(t, "LOCAL01", rec.Reference)
}

func TestWizard_SubmitFailureStaysOnDetails(t *testing.T) {
	api := &fakeBookingAPI{createErr: errors.New("502")}
	w := newTestWizard(api)
	advanceToDetails(t, w)
	w.SetDetails(details())

	assert.Error(t, w.Submit(context.Background()))
	assert.Equal(t, StepDetails, w.Step())
	assert.Equal(t, MsgCreateFailed, w.LastError())
	_, ok := w.Record()
	assert.False(t, ok)
}

func TestWizard_OneCallInFlight(t *testing.T) {
	api := &fakeBookingAPI{started: make(chan struct{}), release: make(chan struct{})}
	w := newTestWizard(api)
	w.SetDate("2025-06-01")

	done := make(chan error, 1)
	go func() { done <- w.CheckAvailability(context.Background()) }()

	<-api.started
	assert.True(t, w.Busy())
	assert.ErrorIs(t, w.CheckAvailability(context.Background()), ErrBusy)
	assert.ErrorIs(t, w.Submit(context.Background()), ErrBusy)

	close(api.release)
	require.NoError(t, <-done)
	assert.False(t, w.Busy())
	assert.Equal(t, 1, api.searches)
}

func TestWizard_SelectRestaurantStartsOver(t *testing.T) {
	w := newTestWizard(&fakeBookingAPI{})
	advanceToDetails(t, w)

	w.SelectRestaurant(Restaurant{MicrositeName: "bistro", Name: "Bistro"})
	assert.Equal(t, StepDateAndParty, w.Step())
	assert.Empty(t, w.Draft().Date)
	r, ok := w.Restaurant()
	require.True(t, ok)
	assert.Equal(t, "bistro", r.MicrositeName)

	v := w.View()
	assert.Equal(t, StepDateAndParty, v.Step)
	require.NotNil(t, v.Restaurant)
	assert.Nil(t, v.Record)
}

func TestWizard_ListedSearchWithNothingFree(t *testing.T) {
	api := &fakeBookingAPI{avail: Availability{Listed: true}}
	w := newTestWizard(api)
	w.SetDate("2025-06-01")

	require.NoError(t, w.CheckAvailability(context.Background()))
	assert.Equal(t, StepSlot, w.Step())
	assert.Empty(t, w.Slots())
	assert.Empty(t, w.View().Groups)
	assert.ErrorIs(t, w.SelectSlot("19:00:00"), ErrUnknownSlot)
	assert.ErrorIs(t, w.Continue(), ErrInvalid)
}

func TestWizard_ChangingSearchStartsOver(t *testing.T) {
	api := &fakeBookingAPI{}
	w := newTestWizard(api)
	advanceToDetails(t, w)

	require.NoError(t, w.SetPartySize(2))
	assert.Equal(t, StepDetails, w.Step(), "unchanged value keeps the step")

	require.NoError(t, w.SetDate("2025-12-25"))
	require.NoError(t, w.SetPartySize(8))
	assert.Equal(t, StepDateAndParty, w.Step())
	assert.Empty(t, w.Slots())
	assert.Empty(t, w.Draft().Time)

	assert.ErrorIs(t, w.SelectSlot("19:00:00"), ErrWrongStep)
	assert.ErrorIs(t, w.Continue(), ErrWrongStep)
	assert.ErrorIs(t, w.Submit(context.Background()), ErrWrongStep)

	require.NoError(t, w.CheckAvailability(context.Background()))
	assert.Equal(t, []string{"2025-06-01/2", "2025-12-25/8"}, api.searched)
}

func TestWizard_SettersRejectedAfterSubmit(t *testing.T) {
	w := newTestWizard(&fakeBookingAPI{conf: Confirmation{Reference: "R1"}})
	advanceToDetails(t, w)
	w.SetDetails(details())
	require.NoError(t, w.Submit(context.Background()))

	assert.ErrorIs(t, w.SetDate("2025-07-01"), ErrWrongStep)
	assert.ErrorIs(t, w.SetPartySize(3), ErrWrongStep)
	assert.Equal(t, "2025-06-01", w.Draft().Date)
}

func TestWizard_ResetDuringSearchDropsResult(t *testing.T) {
	api := &fakeBookingAPI{started: make(chan struct{}), release: make(chan struct{})}
	w := newTestWizard(api)
	w.SetDate("2025-06-01")

	done := make(chan error, 1)
	go func() { done <- w.CheckAvailability(context.Background()) }()

	<-api.started
	w.SelectRestaurant(Restaurant{MicrositeName: "bistro", Name: "Bistro"})
	close(api.release)

	assert.ErrorIs(t, <-done, ErrStale)
	assert.Equal(t, StepDateAndParty, w.Step())
	assert.Empty(t, w.Slots())
}

func TestWizard_DateChangeDuringSearchDropsResult(t *testing.T) {
	api := &fakeBookingAPI{started: make(chan struct{}), release: make(chan struct{})}
	w := newTestWizard(api)
	w.SetDate("2025-06-01")

	done := make(chan error, 1)
	go func() { done <- w.CheckAvailability(context.Background()) }()

	<-api.started
	require.NoError(t, w.SetDate("2025-06-02"))
	close(api.release)

	assert.ErrorIs(t, <-done, ErrStale)
	assert.Equal(t, StepDateAndParty, w.Step())
}

func TestWizard_ResetDuringSubmitDropsResult(t *testing.T) {
	api := &fakeBookingAPI{
		conf:          Confirmation{Reference: "R1"},
		createStarted: make(chan struct{}),
		createRelease: make(chan struct{}),
	}
	w := newTestWizard(api)
	advanceToDetails(t, w)
	w.SetDetails(details())

	done := make(chan error, 1)
	go func() { done <- w.Submit(context.Background()) }()

	<-api.createStarted
	w.Reset()
	close(api.createRelease)

	assert.ErrorIs(t, <-done, ErrStale)
	assert.Equal(t, StepDateAndParty, w.Step())
	_, ok := w.Record()
	assert.False(t, ok)
}

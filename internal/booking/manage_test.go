package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdentity struct {
	token string
	user  *Customer
}

func (f fakeIdentity) Token() string { return f.token }

func (f fakeIdentity) User() (Customer, bool) {
	if f.user == nil {
		return Customer{}, false
	}
	return *f.user, true
}

type fakeManageAPI struct {
	list      CustomerBookings
	listErr   error
	listEmail string

	updates    []Update
	updateErr  error
	updateEcho *Record

	cancels    []string
	cancelErr  error
	cancelEcho *Record
}

func (f *fakeManageAPI) ListCustomerBookings(ctx context.Context, token, email string) (CustomerBookings, error) {
	f.listEmail = email
	return f.list, f.listErr
}

func (f *fakeManageAPI) GetBooking(ctx context.Context, token, microsite, ref string) (Record, error) {
	for _, r := range f.list.Bookings {
		if r.Reference == ref {
			return r, nil
		}
	}
	return Record{}, errors.New("404")
}

func (f *fakeManageAPI) UpdateBooking(ctx context.Context, token, microsite, ref string, u Update) (*Record, error) {
	f.updates = append(f.updates, u)
	return f.updateEcho, f.updateErr
}

func (f *fakeManageAPI) CancelBooking(ctx context.Context, token, microsite, ref string) (*Record, error) {
	f.cancels = append(f.cancels, microsite+"/"+ref)
	return f.cancelEcho, f.cancelErr
}

var june1 = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func TestEditable(t *testing.T) {
	tests := []struct {
		name   string
		date   string
		status Status
		now    time.Time
		want   bool
	}{
		{"tomorrow", "2025-06-02", StatusConfirmed, june1, true},
		{"tomorrow late evening now", "2025-06-02", StatusConfirmed, june1.Add(23*time.Hour + 59*time.Minute), true},
		{"today", "2025-06-01", StatusConfirmed, june1, false},
		{"past", "2025-05-20", StatusConfirmed, june1, false},
		{"pending", "2025-06-10", StatusPending, june1, false},
		{"cancelled", "2025-06-10", StatusCancelled, june1, false},
		{"bad date", "June 10", StatusConfirmed, june1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Record{Status: tt.status, Draft: Draft{Date: tt.date}}
			assert.Equal(t, tt.want, Editable(r, tt.now, time.UTC))
		})
	}
}

func TestCancellable(t *testing.T) {
	r := Record{Status: StatusConfirmed, Draft: Draft{Date: "2025-06-02"}}

	assert.True(t, Cancellable(r, june1, time.UTC), "exactly 24h00m ahead")
	assert.False(t, Cancellable(r, june1.Add(time.Minute), time.UTC), "23h59m ahead")
	assert.True(t, Cancellable(r, june1.Add(-48*time.Hour), time.UTC))

	r.Status = StatusCancelled
	assert.False(t, Cancellable(r, june1, time.UTC))
}

func TestCancellable_UsesLocation(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	r := Record{Status: StatusConfirmed, Draft: Draft{Date: "2025-06-02"}}
	// Midnight June 2nd EST is 05:00 UTC.
	assert.True(t, Cancellable(r, time.Date(2025, 6, 1, 5, 0, 0, 0, time.UTC), loc))
	assert.False(t, Cancellable(r, time.Date(2025, 6, 1, 5, 1, 0, 0, time.UTC), loc))
}

func newTestManager(api *fakeManageAPI) *Manager {
	id := fakeIdentity{token: "tok", user: &Customer{Email: "ada@example.com"}}
	m := NewManager(api, id, time.UTC, zerolog.Nop())
	m.now = func() time.Time { return june1 }
	return m
}

func sampleBookings() CustomerBookings {
	return CustomerBookings{
		Customer: Customer{FirstName: "Ada", LastName: "Lovelace"},
		Bookings: []Record{
			{Reference: "R1", Microsite: "thegreenroom", Status: StatusConfirmed, Draft: Draft{Date: "2025-06-05", Time: "19:00:00", PartySize: 2}},
			{Reference: "R2", Microsite: "bistro", Status: StatusConfirmed, Draft: Draft{Date: "2025-06-01", Time: "12:00:00", PartySize: 4}},
			{Reference: "R3", Microsite: "bistro", Status: StatusCancelled, Draft: Draft{Date: "2025-06-09", Time: "12:00:00", PartySize: 4}},
		},
	}
}

func TestManager_LoadRequiresUser(t *testing.T) {
	api := &fakeManageAPI{}
	m := NewManager(api, fakeIdentity{}, nil, zerolog.Nop())

	assert.ErrorIs(t, m.Load(context.Background()), ErrNotAuthenticated)
	assert.Equal(t, MsgNotAuthenticated, m.LastError())
	assert.False(t, m.Loaded())
}

func TestManager_Load(t *testing.T) {
	api := &fakeManageAPI{list: sampleBookings()}
	m := newTestManager(api)

	require.NoError(t, m.Load(context.Background()))
	assert.Equal(t, "ada@example.com", api.listEmail)
	recs := m.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, "Ada Lovelace", recs[0].CustomerName)

	assert.True(t, m.Editable(recs[0]))
	assert.True(t, m.Cancellable(recs[0]))
	assert.False(t, m.Editable(recs[1]))
	assert.False(t, m.Cancellable(recs[1]))
	assert.False(t, m.Editable(recs[2]))
}

func TestManager_LoadFailure(t *testing.T) {
	m := newTestManager(&fakeManageAPI{listErr: errors.New("down")})
	assert.Error(t, m.Load(context.Background()))
	assert.Equal(t, MsgListFailed, m.LastError())
}

func TestManager_EditAppliesAfterAck(t *testing.T) {
	api := &fakeManageAPI{list: sampleBookings()}
	m := newTestManager(api)
	require.NoError(t, m.Load(context.Background()))

	require.NoError(t, m.Edit(context.Background(), "R1", 5, "window seat"))
	require.Len(t, api.updates, 1)
	assert.Equal(t, 5, *api.updates[0].PartySize)
	assert.Equal(t, "window seat", *api.updates[0].SpecialRequests)

	r, _ := m.Find("R1")
	assert.Equal(t, 5, r.PartySize)
	assert.Equal(t, "window seat", r.SpecialRequests)
	assert.Equal(t, "19:00:00", r.Time)
}

func TestManager_EditPrefersServerEcho(t *testing.T) {
	api := &fakeManageAPI{list: sampleBookings(), updateEcho: &Record{Reference: "R1", Draft: Draft{PartySize: 6}}}
	m := newTestManager(api)
	require.NoError(t, m.Load(context.Background()))

	require.NoError(t, m.Edit(context.Background(), "R1", 5, "high chair"))
	r, _ := m.Find("R1")
	assert.Equal(t, 6, r.PartySize)
	assert.Equal(t, "high chair", r.SpecialRequests)
}

func TestManager_EditIgnoresUnknownEchoedStatus(t *testing.T) {
	api := &fakeManageAPI{list: sampleBookings(), updateEcho: &Record{Status: "success"}}
	m := newTestManager(api)
	require.NoError(t, m.Load(context.Background()))

	require.NoError(t, m.Edit(context.Background(), "R1", 3, ""))
	r, _ := m.Find("R1")
	assert.Equal(t, StatusConfirmed, r.Status)
	assert.Equal(t, 3, r.PartySize)
	assert.True(t, m.Editable(r))
	assert.True(t, m.Cancellable(r))
}

func TestManager_EditFailureKeepsRecord(t *testing.T) {
	api := &fakeManageAPI{list: sampleBookings(), updateErr: errors.New("500")}
	m := newTestManager(api)
	require.NoError(t, m.Load(context.Background()))

	assert.Error(t, m.Edit(context.Background(), "R1", 5, ""))
	assert.Equal(t, MsgUpdateFailed, m.LastError())
	r, _ := m.Find("R1")
	assert.Equal(t, 2, r.PartySize)
}

func TestManager_EditGuards(t *testing.T) {
	api := &fakeManageAPI{list: sampleBookings()}
	m := newTestManager(api)
	require.NoError(t, m.Load(context.Background()))

	assert.ErrorIs(t, m.Edit(context.Background(), "R2", 3, ""), ErrNotEditable)
	assert.ErrorIs(t, m.Edit(context.Background(), "R3", 3, ""), ErrNotEditable)
	assert.ErrorIs(t, m.Edit(context.Background(), "nope", 3, ""), ErrNotFound)
	assert.ErrorIs(t, m.Edit(context.Background(), "R1", 0, ""), ErrInvalid)
	assert.Empty(t, api.updates)
}

func TestManager_CancelNeedsConfirmation(t *testing.T) {
	api := &fakeManageAPI{list: sampleBookings()}
	m := newTestManager(api)
	require.NoError(t, m.Load(context.Background()))

	assert.ErrorIs(t, m.ConfirmCancel(context.Background()), ErrNoPendingCancel)

	rec, err := m.RequestCancel("R1")
	require.NoError(t, err)
	assert.Equal(t, "R1", rec.Reference)
	assert.Empty(t, api.cancels)

	m.AbortCancel()
	assert.ErrorIs(t, m.ConfirmCancel(context.Background()), ErrNoPendingCancel)

	_, err = m.RequestCancel("R1")
	require.NoError(t, err)
	require.NoError(t, m.ConfirmCancel(context.Background()))
	assert.Equal(t, []string{"thegreenroom/R1"}, api.cancels)

	r, _ := m.Find("R1")
	assert.Equal(t, StatusCancelled, r.Status)
	_, pending := m.PendingCancel()
	assert.False(t, pending)

	_, err = m.RequestCancel("R1")
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestManager_AcknowledgedCancelIsCancelled(t *testing.T) {
	for _, echo := range []*Record{
		{Status: "success"},
		{Status: StatusConfirmed},
		{Reference: "R1", Status: StatusPending},
	} {
		api := &fakeManageAPI{list: sampleBookings(), cancelEcho: echo}
		m := newTestManager(api)
		require.NoError(t, m.Load(context.Background()))

		_, err := m.RequestCancel("R1")
		require.NoError(t, err)
		require.NoError(t, m.ConfirmCancel(context.Background()))

		r, _ := m.Find("R1")
		assert.Equal(t, StatusCancelled, r.Status, "echoed status %q", echo.Status)
		assert.False(t, m.Cancellable(r))
	}
}

func TestStatusKnown(t *testing.T) {
	assert.True(t, StatusConfirmed.Known())
	assert.True(t, StatusPending.Known())
	assert.True(t, StatusCancelled.Known())
	assert.False(t, Status("success").Known())
	assert.False(t, Status("").Known())
}

func TestManager_CancelFailureKeepsConfirmed(t *testing.T) {
	api := &fakeManageAPI{list: sampleBookings(), cancelErr: errors.New("503")}
	m := newTestManager(api)
	require.NoError(t, m.Load(context.Background()))

	_, err := m.RequestCancel("R1")
	require.NoError(t, err)
	assert.Error(t, m.ConfirmCancel(context.Background()))
	assert.Equal(t, MsgCancelFailed, m.LastError())

	r, _ := m.Find("R1")
	assert.Equal(t, StatusConfirmed, r.Status)
	_, pending := m.PendingCancel()
	assert.True(t, pending)
}

func TestManager_RequestCancelTooLate(t *testing.T) {
	m := newTestManager(&fakeManageAPI{list: sampleBookings()})
	require.NoError(t, m.Load(context.Background()))

	_, err := m.RequestCancel("R2")
	assert.ErrorIs(t, err, ErrNotCancellable)
}

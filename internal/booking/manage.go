package booking

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/tablebook/internal/metrics"
)

// ManageAPI is the part of the booking API used after a booking exists.
// UpdateBooking and CancelBooking return nil when the API acknowledged the
// call without echoing the booking back.
type ManageAPI interface {
	ListCustomerBookings(ctx context.Context, token, email string) (CustomerBookings, error)
	GetBooking(ctx context.Context, token, microsite, ref string) (Record, error)
	UpdateBooking(ctx context.Context, token, microsite, ref string, u Update) (*Record, error)
	CancelBooking(ctx context.Context, token, microsite, ref string) (*Record, error)
}

// Identity is the signed-in user as seen by the manager.
type Identity interface {
	TokenSource
	User() (Customer, bool)
}

const dateLayout = "2006-01-02"

// Editable reports whether r can still be changed: it must be confirmed and
// its visit date at least one calendar day after today in loc.
func Editable(r Record, now time.Time, loc *time.Location) bool {
	if r.Status != StatusConfirmed {
		return false
	}
	visit, err := time.ParseInLocation(dateLayout, r.Date, loc)
	if err != nil {
		return false
	}
	n := now.In(loc)
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	return !visit.Before(today.AddDate(0, 0, 1))
}

// Cancellable reports whether r can still be cancelled: it must be
// confirmed and its visit date (midnight in loc) at least 24 hours away.
func Cancellable(r Record, now time.Time, loc *time.Location) bool {
	if r.Status != StatusConfirmed {
		return false
	}
	visit, err := time.ParseInLocation(dateLayout, r.Date, loc)
	if err != nil {
		return false
	}
	return visit.Sub(now) >= 24*time.Hour
}

// Manager lists the signed-in customer's bookings across all restaurants
// and applies edits and cancellations to them. Local records only change
// after the API acknowledged a call.
type Manager struct {
	api ManageAPI
	id  Identity
	log zerolog.Logger
	loc *time.Location
	now func() time.Time

	mu            sync.Mutex
	records       []Record
	loaded        bool
	pendingCancel string
	lastErr       string
}

func NewManager(api ManageAPI, id Identity, loc *time.Location, log zerolog.Logger) *Manager {
	if loc == nil {
		loc = time.UTC
	}
	return &Manager{
		api: api,
		id:  id,
		log: log.With().Str("component", "manager").Logger(),
		loc: loc,
		now: time.Now,
	}
}

func (m *Manager) Editable(r Record) bool    { return Editable(r, m.now(), m.loc) }
func (m *Manager) Cancellable(r Record) bool { return Cancellable(r, m.now(), m.loc) }

// Load replaces the local list with the customer's bookings from the API.
func (m *Manager) Load(ctx context.Context) error {
	user, ok := m.id.User()
	if !ok || strings.TrimSpace(user.Email) == "" {
		m.setErr(MsgNotAuthenticated)
		return ErrNotAuthenticated
	}
	m.setErr("")

	res, err := m.api.ListCustomerBookings(ctx, m.id.Token(), user.Email)
	if err != nil {
		m.setErr(MsgListFailed)
		m.log.Error().Err(err).Msg("list bookings failed")
		return fmt.Errorf("list bookings: %w", err)
	}

	name := strings.TrimSpace(res.Customer.FirstName + " " + res.Customer.LastName)
	records := make([]Record, 0, len(res.Bookings))
	for _, r := range res.Bookings {
		if r.CustomerName == "" {
			r.CustomerName = name
		}
		records = append(records, r)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records
	m.loaded = true
	m.pendingCancel = ""
	return nil
}

func (m *Manager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

func (m *Manager) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) ClearError() { m.setErr("") }

func (m *Manager) setErr(msg string) {
	m.mu.Lock()
	m.lastErr = msg
	m.mu.Unlock()
}

// Find returns the local copy of the booking with reference ref.
func (m *Manager) Find(ref string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(ref)
	if i < 0 {
		return Record{}, false
	}
	return m.records[i], true
}

func (m *Manager) indexLocked(ref string) int {
	for i, r := range m.records {
		if r.Reference == ref {
			return i
		}
	}
	return -1
}

// Get fetches a single booking straight from the API.
func (m *Manager) Get(ctx context.Context, microsite, ref string) (Record, error) {
	if microsite == "" {
		return Record{}, ErrNoRestaurant
	}
	r, err := m.api.GetBooking(ctx, m.id.Token(), microsite, ref)
	if err != nil {
		m.setErr(MsgFetchFailed)
		return Record{}, fmt.Errorf("get booking %s: %w", ref, err)
	}
	return r, nil
}

// Edit changes party size and special requests of a booking.
func (m *Manager) Edit(ctx context.Context, ref string, partySize int, specialRequests string) error {
	rec, ok := m.Find(ref)
	if !ok {
		return fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	if !m.Editable(rec) {
		return fmt.Errorf("%s: %w", ref, ErrNotEditable)
	}
	if partySize < 1 {
		return ErrInvalid
	}
	if rec.Microsite == "" {
		return ErrNoRestaurant
	}
	m.setErr("")

	u := Update{PartySize: &partySize, SpecialRequests: &specialRequests}
	echoed, err := m.api.UpdateBooking(ctx, m.id.Token(), rec.Microsite, ref, u)
	if err != nil {
		m.setErr(MsgUpdateFailed)
		m.log.Error().Err(err).Str("reference", ref).Msg("update booking failed")
		return fmt.Errorf("update booking %s: %w", ref, err)
	}
	metrics.IncBookingUpdated()

	rec.PartySize = partySize
	rec.SpecialRequests = specialRequests
	if echoed != nil {
		mergeEcho(&rec, *echoed)
	}
	m.replace(rec)
	return nil
}

// RequestCancel marks ref for cancellation. Nothing is sent until
// ConfirmCancel.
func (m *Manager) RequestCancel(ref string) (Record, error) {
	rec, ok := m.Find(ref)
	if !ok {
		return Record{}, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	if !m.Cancellable(rec) {
		return Record{}, fmt.Errorf("%s: %w", ref, ErrNotCancellable)
	}
	m.mu.Lock()
	m.pendingCancel = ref
	m.mu.Unlock()
	return rec, nil
}

// PendingCancel returns the booking awaiting cancellation confirmation.
func (m *Manager) PendingCancel() (Record, bool) {
	m.mu.Lock()
	ref := m.pendingCancel
	m.mu.Unlock()
	if ref == "" {
		return Record{}, false
	}
	return m.Find(ref)
}

func (m *Manager) AbortCancel() {
	m.mu.Lock()
	m.pendingCancel = ""
	m.mu.Unlock()
}

// ConfirmCancel cancels the booking picked by RequestCancel. Cancellation
// cannot be undone.
func (m *Manager) ConfirmCancel(ctx context.Context) error {
	rec, ok := m.PendingCancel()
	if !ok {
		return ErrNoPendingCancel
	}
	if !m.Cancellable(rec) {
		m.AbortCancel()
		return fmt.Errorf("%s: %w", rec.Reference, ErrNotCancellable)
	}
	if rec.Microsite == "" {
		return ErrNoRestaurant
	}
	m.setErr("")

	echoed, err := m.api.CancelBooking(ctx, m.id.Token(), rec.Microsite, rec.Reference)
	if err != nil {
		m.setErr(MsgCancelFailed)
		m.log.Error().Err(err).Str("reference", rec.Reference).Msg("cancel booking failed")
		return fmt.Errorf("cancel booking %s: %w", rec.Reference, err)
	}
	metrics.IncBookingCancelled()

	if echoed != nil {
		mergeEcho(&rec, *echoed)
	}
	rec.Status = StatusCancelled
	m.replace(rec)
	m.AbortCancel()
	return nil
}

func (m *Manager) replace(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(rec.Reference); i >= 0 {
		m.records[i] = rec
	}
}

// mergeEcho copies the fields the API sent back over the local record.
// Zero values and unknown statuses count as omitted.
func mergeEcho(dst *Record, src Record) {
	if src.Status.Known() {
		dst.Status = src.Status
	}
	if src.PartySize > 0 {
		dst.PartySize = src.PartySize
	}
	if src.SpecialRequests != "" {
		dst.SpecialRequests = src.SpecialRequests
	}
	if src.Date != "" {
		dst.Date = src.Date
	}
	if src.Time != "" {
		dst.Time = src.Time
	}
}

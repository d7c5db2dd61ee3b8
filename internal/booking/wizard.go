package booking

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/example/tablebook/internal/metrics"
)

// Step is a state of the booking wizard.
type Step int

const (
	StepDateAndParty Step = iota + 1
	StepSlot
	StepDetails
	StepSubmitted
)

func (s Step) String() string {
	switch s {
	case StepDateAndParty:
		return "date-and-party"
	case StepSlot:
		return "slot"
	case StepDetails:
		return "details"
	case StepSubmitted:
		return "submitted"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

func (s Step) Description() string {
	switch s {
	case StepDateAndParty:
		return "Step 1: Choose date and party size"
	case StepSlot:
		return "Step 2: Select time slot"
	case StepDetails:
		return "Step 3: Enter your details"
	case StepSubmitted:
		return "Booking confirmed"
	}
	return ""
}

// BookingAPI is the part of the booking API the wizard drives.
type BookingAPI interface {
	SearchAvailability(ctx context.Context, token, microsite, date string, partySize int) (Availability, error)
	CreateBooking(ctx context.Context, token, microsite string, d Draft) (Confirmation, error)
}

// TokenSource hands out the current bearer token, empty when signed out.
type TokenSource interface {
	Token() string
}

const defaultPartySize = 2

// Wizard walks one customer through a booking:
// date and party size, then a time slot, then contact details, then submit.
// Failed API calls keep the wizard where it is and set LastError.
// Draft fields survive moving back and forth between steps.
type Wizard struct {
	api    BookingAPI
	tokens TokenSource
	log    zerolog.Logger
	newRef func() string

	inflight atomic.Bool

	mu sync.Mutex
	// gen changes whenever the draft an API call was started for stops
	// being the current one.
	gen        uint64
	restaurant *Restaurant
	step       Step
	draft      Draft
	slots      []string
	errs       ValidationErrors
	lastErr    string
	record     *Record
}

func NewWizard(api BookingAPI, tokens TokenSource, log zerolog.Logger) *Wizard {
	return &Wizard{
		api:    api,
		tokens: tokens,
		log:    log.With().Str("component", "wizard").Logger(),
		newRef: NewReference,
		step:   StepDateAndParty,
		draft:  Draft{PartySize: defaultPartySize},
		errs:   ValidationErrors{},
	}
}

// SelectRestaurant starts a fresh booking for r.
func (w *Wizard) SelectRestaurant(r Restaurant) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.restaurant = &r
	w.resetLocked()
}

// ClearRestaurant drops the selected restaurant and the draft with it.
func (w *Wizard) ClearRestaurant() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.restaurant = nil
	w.resetLocked()
}

func (w *Wizard) Restaurant() (Restaurant, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.restaurant == nil {
		return Restaurant{}, false
	}
	return *w.restaurant, true
}

// Reset starts over at step one with an empty draft, keeping the restaurant.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
}

func (w *Wizard) resetLocked() {
	w.gen++
	w.step = StepDateAndParty
	w.draft = Draft{PartySize: defaultPartySize}
	w.slots = nil
	w.errs = ValidationErrors{}
	w.lastErr = ""
	w.record = nil
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) Draft() Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

func (w *Wizard) Errors() ValidationErrors {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(ValidationErrors, len(w.errs))
	for k, v := range w.errs {
		out[k] = v
	}
	return out
}

func (w *Wizard) LastError() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *Wizard) Slots() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.slots...)
}

// Record returns the booking made by the last successful Submit.
func (w *Wizard) Record() (Record, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.record == nil {
		return Record{}, false
	}
	return *w.record, true
}

// Busy reports whether an API call is outstanding.
func (w *Wizard) Busy() bool { return w.inflight.Load() }

// SetDate changes the date to search. A different date invalidates the
// last search, so the wizard returns to step one without a chosen slot.
func (w *Wizard) SetDate(date string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepSubmitted {
		return fmt.Errorf("set date at %s: %w", w.step, ErrWrongStep)
	}
	if date != w.draft.Date {
		w.draft.Date = date
		w.rewindLocked()
	}
	delete(w.errs, FieldDate)
	return nil
}

// SetPartySize is SetDate for the party size.
func (w *Wizard) SetPartySize(n int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepSubmitted {
		return fmt.Errorf("set party size at %s: %w", w.step, ErrWrongStep)
	}
	if n != w.draft.PartySize {
		w.draft.PartySize = n
		w.rewindLocked()
	}
	delete(w.errs, FieldPartySize)
	return nil
}

func (w *Wizard) rewindLocked() {
	w.gen++
	w.step = StepDateAndParty
	w.slots = nil
	w.draft.Time = ""
	delete(w.errs, FieldTime)
}

func (w *Wizard) SetDetails(d Details) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.FirstName = d.FirstName
	w.draft.Surname = d.Surname
	w.draft.Email = d.Email
	w.draft.Mobile = d.Mobile
	w.draft.SpecialRequests = d.SpecialRequests
	for _, f := range []string{FieldFirstName, FieldSurname, FieldEmail, FieldMobile, FieldSpecialRequests} {
		delete(w.errs, f)
	}
}

// CheckAvailability leaves step one once date and party size are set and
// the API has answered the availability search.
func (w *Wizard) CheckAvailability(ctx context.Context) error {
	if !w.inflight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer w.inflight.Store(false)

	w.mu.Lock()
	if w.restaurant == nil {
		w.mu.Unlock()
		return ErrNoRestaurant
	}
	if w.step != StepDateAndParty {
		step := w.step
		w.mu.Unlock()
		return fmt.Errorf("check availability at %s: %w", step, ErrWrongStep)
	}
	errs := ValidationErrors{}
	if w.draft.Date == "" {
		errs[FieldDate] = "Please select a date"
	}
	if w.draft.PartySize < 1 {
		errs[FieldPartySize] = "Please select party size"
	}
	if len(errs) > 0 {
		w.errs = errs
		w.mu.Unlock()
		return ErrInvalid
	}
	microsite := w.restaurant.MicrositeName
	date, size := w.draft.Date, w.draft.PartySize
	gen := w.gen
	w.lastErr = ""
	w.mu.Unlock()

	avail, err := w.api.SearchAvailability(ctx, w.tokens.Token(), microsite, date, size)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen {
		w.log.Debug().Str("microsite", microsite).Str("date", date).Msg("dropping availability for a changed draft")
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStale, err)
		}
		return ErrStale
	}
	if err != nil {
		w.lastErr = MsgAvailabilityFailed
		w.log.Error().Err(err).Str("microsite", microsite).Str("date", date).Msg("availability search failed")
		return fmt.Errorf("availability search: %w", err)
	}
	w.slots = offeredSlots(avail)
	w.step = StepSlot
	return nil
}

// offeredSlots prefers the slots the API listed and falls back to the full
// catalog only when it sent no slot list.
func offeredSlots(a Availability) []string {
	if !a.Listed {
		return append([]string(nil), TimeSlots...)
	}
	out := make([]string, 0, len(a.Slots))
	for _, s := range a.Slots {
		s = NormalizeTime(s)
		if s == "" || containsSlot(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// SelectSlot picks one of the offered time slots.
func (w *Wizard) SelectSlot(t string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepSlot {
		return fmt.Errorf("select slot at %s: %w", w.step, ErrWrongStep)
	}
	t = NormalizeTime(t)
	if !containsSlot(w.slots, t) {
		return fmt.Errorf("%q: %w", t, ErrUnknownSlot)
	}
	w.draft.Time = t
	delete(w.errs, FieldTime)
	return nil
}

// Continue moves from slot selection to the details form.
func (w *Wizard) Continue() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepSlot {
		return fmt.Errorf("continue at %s: %w", w.step, ErrWrongStep)
	}
	if w.draft.Time == "" {
		w.errs = ValidationErrors{FieldTime: "Please select a time"}
		return ErrInvalid
	}
	w.step = StepDetails
	return nil
}

// Back steps one screen back without discarding anything already entered.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.step {
	case StepSlot:
		w.step = StepDateAndParty
	case StepDetails:
		w.step = StepSlot
	default:
		return fmt.Errorf("back at %s: %w", w.step, ErrWrongStep)
	}
	w.gen++
	w.lastErr = ""
	return nil
}

// Submit validates the draft and books it. On success the wizard is at
// StepSubmitted and Record holds the booking.
func (w *Wizard) Submit(ctx context.Context) error {
	if !w.inflight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer w.inflight.Store(false)

	w.mu.Lock()
	if w.restaurant == nil {
		w.mu.Unlock()
		return ErrNoRestaurant
	}
	if w.step != StepDetails {
		step := w.step
		w.mu.Unlock()
		return fmt.Errorf("submit at %s: %w", step, ErrWrongStep)
	}
	res := Validate(w.draft)
	if !res.Valid {
		w.errs = res.Errors
		w.mu.Unlock()
		return ErrInvalid
	}
	restaurant := *w.restaurant
	draft := w.draft
	gen := w.gen
	w.lastErr = ""
	w.mu.Unlock()

	conf, err := w.api.CreateBooking(ctx, w.tokens.Token(), restaurant.MicrositeName, draft)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		metrics.IncBookingCreated("failed")
		w.log.Error().Err(err).Str("microsite", restaurant.MicrositeName).Msg("create booking failed")
		if w.gen != gen {
			return fmt.Errorf("%w: create booking: %w", ErrStale, err)
		}
		w.lastErr = MsgCreateFailed
		return fmt.Errorf("create booking: %w", err)
	}
	if w.gen != gen {
		// the booking exists remotely and shows up in the customer's list
		metrics.IncBookingCreated("confirmed")
		w.log.Warn().Str("microsite", restaurant.MicrositeName).Str("reference", conf.Reference).
			Msg("booking made for a draft that was since reset")
		return ErrStale
	}

	ref := conf.Reference
	if ref == "" {
		ref = w.newRef()
		w.log.Warn().Str("reference", ref).Msg("booking API returned no reference, using a local one")
	}
	metrics.IncBookingCreated("confirmed")
	w.record = &Record{
		Reference:      ref,
		Microsite:      restaurant.MicrositeName,
		RestaurantName: restaurant.Name,
		CustomerName:   draft.FirstName + " " + draft.Surname,
		Status:         StatusConfirmed,
		Draft:          draft,
	}
	w.step = StepSubmitted
	return nil
}

// View is a consistent copy of the wizard for rendering.
type View struct {
	Step       Step
	Restaurant *Restaurant
	Draft      Draft
	Slots      []string
	Groups     []SlotGroup
	Errors     ValidationErrors
	LastError  string
	Record     *Record
	Busy       bool
}

func (w *Wizard) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	v := View{
		Step:      w.step,
		Draft:     w.draft,
		Slots:     append([]string(nil), w.slots...),
		Groups:    GroupSlots(w.slots),
		Errors:    make(ValidationErrors, len(w.errs)),
		LastError: w.lastErr,
		Busy:      w.inflight.Load(),
	}
	for k, e := range w.errs {
		v.Errors[k] = e
	}
	if w.restaurant != nil {
		r := *w.restaurant
		v.Restaurant = &r
	}
	if w.record != nil {
		rec := *w.record
		v.Record = &rec
	}
	return v
}

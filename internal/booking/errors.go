package booking

import "errors"

var (
	// ErrNoRestaurant is returned when an operation that needs a restaurant
	// runs without one. It points at a caller bug, not a runtime failure.
	ErrNoRestaurant = errors.New("restaurant not selected")

	ErrNotAuthenticated = errors.New("user not authenticated")
	ErrInvalid          = errors.New("booking form is invalid")
	ErrBusy             = errors.New("a request is already in flight")
	ErrWrongStep        = errors.New("not allowed at this step")
	ErrStale            = errors.New("booking changed while the request was in flight")
	ErrUnknownSlot      = errors.New("time slot is not offered")
	ErrNotFound         = errors.New("booking not found")
	ErrNotEditable      = errors.New("booking can no longer be edited")
	ErrNotCancellable   = errors.New("booking can no longer be cancelled")
	ErrNoPendingCancel  = errors.New("no cancellation awaiting confirmation")
)

// Messages shown to the user when a call to the booking API fails.
const (
	MsgAvailabilityFailed = "Failed to check availability"
	MsgCreateFailed       = "Failed to create booking"
	MsgUpdateFailed       = "Failed to update booking"
	MsgCancelFailed       = "Failed to cancel booking"
	MsgFetchFailed        = "Failed to fetch booking"
	MsgListFailed         = "Failed to fetch bookings"
	MsgNotAuthenticated   = "User not authenticated"
)

package booking

import (
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^\(?([0-9]{3})\)?[-. ]?([0-9]{3})[-. ]?([0-9]{4})$`)
)

// ValidationErrors maps a form field to a human readable message. An empty
// map means the form is valid.
type ValidationErrors map[string]string

func (v ValidationErrors) Has(field string) bool {
	_, ok := v[field]
	return ok
}

type ValidationResult struct {
	Valid  bool
	Errors ValidationErrors
}

func ValidEmail(email string) bool { return emailRe.MatchString(email) }

// ValidPhone accepts North American 10 digit numbers, optionally
// punctuated: 5551234567, 555-123-4567, (555) 123-4567.
func ValidPhone(phone string) bool { return phoneRe.MatchString(phone) }

// Validate reports every missing or malformed field of d at once.
func Validate(d Draft) ValidationResult {
	errs := ValidationErrors{}

	if strings.TrimSpace(d.FirstName) == "" {
		errs[FieldFirstName] = "First name is required"
	}
	if strings.TrimSpace(d.Surname) == "" {
		errs[FieldSurname] = "Last name is required"
	}

	switch {
	case strings.TrimSpace(d.Email) == "":
		errs[FieldEmail] = "Email is required"
	case !ValidEmail(d.Email):
		errs[FieldEmail] = "Please enter a valid email"
	}

	switch {
	case strings.TrimSpace(d.Mobile) == "":
		errs[FieldMobile] = "Phone number is required"
	case !ValidPhone(d.Mobile):
		errs[FieldMobile] = "Please enter a valid phone number"
	}

	if d.Date == "" {
		errs[FieldDate] = "Date is required"
	}
	if d.Time == "" {
		errs[FieldTime] = "Time is required"
	}
	if d.PartySize < 1 {
		errs[FieldPartySize] = "Party size is required"
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

const (
	FieldDate            = "date"
	FieldTime            = "time"
	FieldPartySize       = "partySize"
	FieldFirstName       = "firstName"
	FieldSurname         = "surname"
	FieldEmail           = "email"
	FieldMobile          = "mobile"
	FieldSpecialRequests = "specialRequests"
)

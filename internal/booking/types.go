package booking

import (
	"strings"
	"unicode"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
)

// Known reports whether s is one of the booking states this client handles.
func (s Status) Known() bool {
	switch s {
	case StatusConfirmed, StatusPending, StatusCancelled:
		return true
	}
	return false
}

// Customer is the signed-in user as the booking API describes them.
type Customer struct {
	ID        string `json:"id,omitempty"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

func (c Customer) DisplayName() string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name == "" {
		return c.Email
	}
	return name
}

type Hours struct {
	Weekday string
	Weekend string
}

// Restaurant is a bookable venue. Only MicrositeName is needed to talk to
// the booking API; the rest is for display.
type Restaurant struct {
	ID            string
	MicrositeName string
	Name          string
	Address       string
	Hours         Hours
	Rating        float64
	Phone         string
	Email         string
}

var DefaultRestaurantInfo = Restaurant{
	Hours: Hours{
		Weekday: "11:00 AM - 10:00 PM",
		Weekend: "10:00 AM - 11:00 PM",
	},
	Rating:  4.5,
	Phone:   "(555) 123-FOOD",
	Email:   "info@restaurant.com",
	Address: "123 Restaurant Street, Food District",
}

// NewRestaurant fills display fields the API does not provide with the
// house defaults.
func NewRestaurant(id, name, microsite string) Restaurant {
	r := DefaultRestaurantInfo
	r.ID = id
	r.MicrositeName = microsite
	r.Name = FormatRestaurantName(name)
	if r.MicrositeName == "" {
		r.MicrositeName = id
	}
	return r
}

// FormatRestaurantName splits CamelCase API names into words:
// "TheGreenRoom" becomes "The Green Room".
func FormatRestaurantName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsUpper(r) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Draft accumulates the wizard's input. It is never sent anywhere until
// the booking is submitted.
type Draft struct {
	Date            string // YYYY-MM-DD
	Time            string // HH:MM:SS
	PartySize       int
	FirstName       string
	Surname         string
	Email           string
	Mobile          string
	SpecialRequests string
}

// Details is the contact part of a Draft entered on the last wizard step.
type Details struct {
	FirstName       string
	Surname         string
	Email           string
	Mobile          string
	SpecialRequests string
}

// Record is a reservation known to the booking API.
type Record struct {
	Reference      string
	Microsite      string
	RestaurantName string
	CustomerName   string
	Status         Status

	Draft
}

// Availability is what an availability search returned. Listed is false
// when the API did not list individual time slots; Slots then is empty.
// A listed search with no Slots means nothing is free.
type Availability struct {
	Listed bool
	Slots  []string
}

// Confirmation is the API's answer to a booking request. Reference may be
// empty.
type Confirmation struct {
	Reference string
}

// Update is a partial change to an existing booking; nil fields are left
// alone.
type Update struct {
	PartySize       *int
	SpecialRequests *string
}

// CustomerBookings is the API's list of bookings for one customer email.
type CustomerBookings struct {
	Customer Customer
	Bookings []Record
}

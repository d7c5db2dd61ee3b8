package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// flexString accepts a JSON string or number. The booking service is not
// consistent about ids.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// LoginResult is the raw answer to a login call. Token is left undecoded:
// it arrives either as a string or as an object with an access_token field.
type LoginResult struct {
	Token json.RawMessage `json:"token"`
	User  *UserInfo       `json:"user"`
}

// UserInfo is the user object the auth endpoints return.
type UserInfo struct {
	ID        flexString `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Surname   string     `json:"surname"`
	Phone     string     `json:"phone"`
}

// Registration is the sign-up form.
type Registration struct {
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
	Phone           string
}

type restaurantDTO struct {
	ID            flexString `json:"id"`
	Name          string     `json:"name"`
	MicrositeName string     `json:"microsite_name"`
	Address       string     `json:"address"`
	Phone         string     `json:"phone"`
	Email         string     `json:"email"`
	Rating        float64    `json:"rating"`
}

type restaurantsResponse struct {
	Restaurants []restaurantDTO `json:"restaurants"`
}

// slotDTO is one entry of available_slots: either "19:00:00" or
// {"time": "19:00:00", "available": true}.
type slotDTO struct {
	Time      string
	Available bool
}

func (s *slotDTO) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		s.Available = true
		return json.Unmarshal(b, &s.Time)
	}
	var obj struct {
		Time      string `json:"time"`
		Available *bool  `json:"available"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	s.Time = obj.Time
	s.Available = obj.Available == nil || *obj.Available
	return nil
}

type availabilityResponse struct {
	AvailableSlots []slotDTO `json:"available_slots"`
}

type createResponse struct {
	BookingReference      string `json:"bookingReference"`
	BookingReferenceSnake string `json:"booking_reference"`
}

func (r createResponse) reference() string {
	if ref := strings.TrimSpace(r.BookingReference); ref != "" {
		return ref
	}
	return strings.TrimSpace(r.BookingReferenceSnake)
}

type customerDTO struct {
	FirstName string `json:"first_name"`
	Surname   string `json:"surname"`
	Email     string `json:"email"`
}

type bookingDTO struct {
	BookingReference string       `json:"booking_reference"`
	VisitDate        string       `json:"visit_date"`
	VisitTime        string       `json:"visit_time"`
	PartySize        flexInt      `json:"party_size"`
	Status           string       `json:"status"`
	SpecialRequests  string       `json:"special_requests"`
	Restaurant       string       `json:"restaurant"`
	MicrositeName    string       `json:"microsite_name"`
	Customer         *customerDTO `json:"customer"`
}

type customerBookingsResponse struct {
	Customer customerDTO  `json:"customer"`
	Bookings []bookingDTO `json:"bookings"`
}

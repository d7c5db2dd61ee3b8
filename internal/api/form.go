package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/example/tablebook/internal/booking"
)

// All translation between booking types and the booking service's field
// names lives in this file.

const (
	channelOnline  = "ONLINE"
	cancelReasonID = "1"
)

func loginForm(email, password string) url.Values {
	return url.Values{
		"email":    {email},
		"password": {password},
	}
}

func registerForm(r Registration) url.Values {
	return url.Values{
		"email":           {r.Email},
		"password":        {r.Password},
		"firstName":       {r.FirstName},
		"lastName":        {r.LastName},
		"phone":           {r.Phone},
		"confirmPassword": {r.ConfirmPassword},
	}
}

func availabilityForm(date string, partySize int) url.Values {
	return url.Values{
		"VisitDate":   {date},
		"PartySize":   {strconv.Itoa(partySize)},
		"ChannelCode": {channelOnline},
	}
}

func bookingForm(d booking.Draft) url.Values {
	return url.Values{
		"VisitDate":           {d.Date},
		"VisitTime":           {d.Time},
		"PartySize":           {strconv.Itoa(d.PartySize)},
		"ChannelCode":         {channelOnline},
		"SpecialRequests":     {d.SpecialRequests},
		"Customer[FirstName]": {d.FirstName},
		"Customer[Surname]":   {d.Surname},
		"Customer[Email]":     {d.Email},
		"Customer[Mobile]":    {d.Mobile},
	}
}

func updateForm(u booking.Update) url.Values {
	v := url.Values{}
	if u.PartySize != nil {
		v.Set("PartySize", strconv.Itoa(*u.PartySize))
	}
	if u.SpecialRequests != nil {
		v.Set("SpecialRequests", *u.SpecialRequests)
	}
	return v
}

func cancelForm(microsite, ref string) url.Values {
	return url.Values{
		"micrositeName":        {microsite},
		"bookingReference":     {ref},
		"cancellationReasonId": {cancelReasonID},
	}
}

// Customer converts the user object to the booking package's type.
func (u UserInfo) Customer() booking.Customer {
	last := u.LastName
	if last == "" {
		last = u.Surname
	}
	return booking.Customer{
		ID:        string(u.ID),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  last,
		Phone:     u.Phone,
	}
}

func (d restaurantDTO) restaurant() booking.Restaurant {
	r := booking.NewRestaurant(string(d.ID), d.Name, d.MicrositeName)
	if d.Address != "" {
		r.Address = d.Address
	}
	if d.Phone != "" {
		r.Phone = d.Phone
	}
	if d.Email != "" {
		r.Email = d.Email
	}
	if d.Rating > 0 {
		r.Rating = d.Rating
	}
	return r
}

func (d bookingDTO) record() booking.Record {
	microsite := d.MicrositeName
	if microsite == "" {
		microsite = d.Restaurant
	}
	r := booking.Record{
		Reference:      d.BookingReference,
		Microsite:      microsite,
		RestaurantName: booking.FormatRestaurantName(d.Restaurant),
		Status:         booking.Status(normalizeStatus(d.Status)),
		Draft: booking.Draft{
			Date:            visitDate(d.VisitDate),
			PartySize:       int(d.PartySize),
			SpecialRequests: d.SpecialRequests,
		},
	}
	if d.VisitTime != "" {
		r.Time = booking.NormalizeTime(d.VisitTime)
	}
	if d.Customer != nil {
		r.FirstName = d.Customer.FirstName
		r.Surname = d.Customer.Surname
		r.Email = d.Customer.Email
		r.CustomerName = strings.TrimSpace(d.Customer.FirstName + " " + d.Customer.Surname)
	}
	return r
}

func normalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// visitDate strips a time part from "2025-06-01T00:00:00"-style dates.
func visitDate(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i == len("2006-01-02") {
		return s[:i]
	}
	return s
}

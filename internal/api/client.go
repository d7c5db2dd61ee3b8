package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/tablebook/internal/booking"
	"github.com/example/tablebook/internal/metrics"
)

// Client talks to the booking service. Every method makes exactly one
// request; ctx is the only deadline.
type Client struct {
	hc   *http.Client
	base string
	log  zerolog.Logger
}

func New(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		hc:   &http.Client{},
		base: strings.TrimRight(baseURL, "/"),
		log:  log.With().Str("component", "api").Logger(),
	}
}

// WithHTTPClient replaces the transport. Used by tests and by callers that
// need a proxy.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.hc = hc
	return c
}

func (c *Client) BaseURL() string { return c.base }

// --- auth ---

func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var res LoginResult
	body, err := c.do(ctx, "login", http.MethodPost, "/api/auth/login", "", loginForm(email, password))
	if err != nil {
		return res, err
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return res, fmt.Errorf("login: decode: %w", err)
	}
	return res, nil
}

func (c *Client) Register(ctx context.Context, r Registration) error {
	_, err := c.do(ctx, "register", http.MethodPost, "/api/auth/register", "", registerForm(r))
	return err
}

func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.do(ctx, "logout", http.MethodPost, "/api/auth/logout", token, nil)
	return err
}

// Profile returns the signed-in user. The service answers either with the
// user object itself or wrapped as {"user": {...}}.
func (c *Client) Profile(ctx context.Context, token string) (UserInfo, error) {
	body, err := c.do(ctx, "profile", http.MethodGet, "/api/auth/profile", token, nil)
	if err != nil {
		return UserInfo{}, err
	}
	var wrapped struct {
		User *UserInfo `json:"user"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return UserInfo{}, fmt.Errorf("profile: decode: %w", err)
	}
	if wrapped.User != nil {
		return *wrapped.User, nil
	}
	var u UserInfo
	if err := json.Unmarshal(body, &u); err != nil {
		return UserInfo{}, fmt.Errorf("profile: decode: %w", err)
	}
	return u, nil
}

// --- restaurants ---

// ListRestaurants works with or without a token.
func (c *Client) ListRestaurants(ctx context.Context, token string) ([]booking.Restaurant, error) {
	body, err := c.do(ctx, "list_restaurants", http.MethodGet, "/api/restaurants/", token, nil)
	if err != nil {
		return nil, err
	}
	var dtos []restaurantDTO
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &dtos)
	} else {
		var res restaurantsResponse
		err = json.Unmarshal(body, &res)
		dtos = res.Restaurants
	}
	if err != nil {
		return nil, fmt.Errorf("list restaurants: decode: %w", err)
	}
	out := make([]booking.Restaurant, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.restaurant())
	}
	return out, nil
}

func (c *Client) GetRestaurant(ctx context.Context, token, id string) (booking.Restaurant, error) {
	body, err := c.do(ctx, "get_restaurant", http.MethodGet, "/api/restaurants/"+url.PathEscape(id), token, nil)
	if err != nil {
		return booking.Restaurant{}, err
	}
	var wrapped struct {
		Restaurant *restaurantDTO `json:"restaurant"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return booking.Restaurant{}, fmt.Errorf("get restaurant: decode: %w", err)
	}
	if wrapped.Restaurant != nil {
		return wrapped.Restaurant.restaurant(), nil
	}
	var d restaurantDTO
	if err := json.Unmarshal(body, &d); err != nil {
		return booking.Restaurant{}, fmt.Errorf("get restaurant: decode: %w", err)
	}
	if d.ID == "" {
		d.ID = flexString(id)
	}
	return d.restaurant(), nil
}

// --- bookings ---

func restaurantPath(microsite string) string {
	return "/api/ConsumerApi/v1/Restaurant/" + url.PathEscape(microsite)
}

func bookingPath(microsite, ref string) string {
	return restaurantPath(microsite) + "/Booking/" + url.PathEscape(ref)
}

// SearchAvailability returns the free slots the service listed. Listed is
// false when the response carried no slot list at all.
func (c *Client) SearchAvailability(ctx context.Context, token, microsite, date string, partySize int) (booking.Availability, error) {
	body, err := c.do(ctx, "availability", http.MethodPost, restaurantPath(microsite)+"/AvailabilitySearch", token, availabilityForm(date, partySize))
	if err != nil {
		return booking.Availability{}, err
	}
	var res availabilityResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &res); err != nil {
			return booking.Availability{}, fmt.Errorf("availability: decode: %w", err)
		}
	}
	a := booking.Availability{Listed: res.AvailableSlots != nil}
	for _, s := range res.AvailableSlots {
		if s.Available && s.Time != "" {
			a.Slots = append(a.Slots, s.Time)
		}
	}
	return a, nil
}

// CreateBooking submits d. The returned reference is empty when the service
// did not assign one.
func (c *Client) CreateBooking(ctx context.Context, token, microsite string, d booking.Draft) (booking.Confirmation, error) {
	body, err := c.do(ctx, "create_booking", http.MethodPost, restaurantPath(microsite)+"/BookingWithStripeToken", token, bookingForm(d))
	if err != nil {
		return booking.Confirmation{}, err
	}
	var res createResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &res); err != nil {
			c.log.Warn().Err(err).Msg("create booking: undecodable response")
		}
	}
	return booking.Confirmation{Reference: res.reference()}, nil
}

func (c *Client) GetBooking(ctx context.Context, token, microsite, ref string) (booking.Record, error) {
	body, err := c.do(ctx, "get_booking", http.MethodGet, bookingPath(microsite, ref), token, nil)
	if err != nil {
		return booking.Record{}, err
	}
	var d bookingDTO
	if err := json.Unmarshal(body, &d); err != nil {
		return booking.Record{}, fmt.Errorf("get booking: decode: %w", err)
	}
	r := d.record()
	if r.Reference == "" {
		r.Reference = ref
	}
	if r.Microsite == "" {
		r.Microsite = microsite
	}
	return r, nil
}

// UpdateBooking sends a partial update. The echoed booking is nil when the
// service acknowledged without one.
func (c *Client) UpdateBooking(ctx context.Context, token, microsite, ref string, u booking.Update) (*booking.Record, error) {
	body, err := c.do(ctx, "update_booking", http.MethodPatch, bookingPath(microsite, ref), token, updateForm(u))
	if err != nil {
		return nil, err
	}
	return c.echo("update booking", body), nil
}

func (c *Client) CancelBooking(ctx context.Context, token, microsite, ref string) (*booking.Record, error) {
	body, err := c.do(ctx, "cancel_booking", http.MethodPost, bookingPath(microsite, ref)+"/Cancel", token, cancelForm(microsite, ref))
	if err != nil {
		return nil, err
	}
	return c.echo("cancel booking", body), nil
}

func (c *Client) echo(op string, body []byte) *booking.Record {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var d bookingDTO
	if err := json.Unmarshal(body, &d); err != nil {
		c.log.Debug().Err(err).Str("op", op).Msg("response is not a booking")
		return nil
	}
	if !booking.Status(normalizeStatus(d.Status)).Known() {
		d.Status = ""
	}
	if d == (bookingDTO{}) {
		return nil
	}
	r := d.record()
	return &r
}

func (c *Client) ListCustomerBookings(ctx context.Context, token, email string) (booking.CustomerBookings, error) {
	body, err := c.do(ctx, "list_bookings", http.MethodGet, "/api/ConsumerApi/v1/Restaurant/Customer/"+url.PathEscape(email)+"/Bookings", token, nil)
	if err != nil {
		return booking.CustomerBookings{}, err
	}
	var res customerBookingsResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return booking.CustomerBookings{}, fmt.Errorf("list bookings: decode: %w", err)
	}
	out := booking.CustomerBookings{
		Customer: booking.Customer{
			Email:     res.Customer.Email,
			FirstName: res.Customer.FirstName,
			LastName:  res.Customer.Surname,
		},
		Bookings: make([]booking.Record, 0, len(res.Bookings)),
	}
	for _, d := range res.Bookings {
		out.Bookings = append(out.Bookings, d.record())
	}
	return out, nil
}

// do sends one request and returns the body of a 2xx response. Form values
// are sent url-encoded; token, when set, goes out as a bearer header.
func (c *Client) do(ctx context.Context, op, method, path, token string, form url.Values) ([]byte, error) {
	var rd io.Reader
	if form != nil {
		rd = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	res, err := c.hc.Do(req)
	took := time.Since(start)
	if err != nil {
		metrics.ObserveAPICall(op, 0, took)
		c.log.Debug().Err(err).Str("op", op).Str("method", method).Str("path", path).Dur("took", took).Msg("api call failed")
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()

	metrics.ObserveAPICall(op, res.StatusCode, took)
	c.log.Debug().Str("op", op).Str("method", method).Str("path", path).Int("status", res.StatusCode).Dur("took", took).Msg("api call")

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, &StatusError{Op: op, Status: res.StatusCode}
	}
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	return b, nil
}

// IsUnauthorized reports whether err came from a 401.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

var (
	_ booking.BookingAPI = (*Client)(nil)
	_ booking.ManageAPI  = (*Client)(nil)
)

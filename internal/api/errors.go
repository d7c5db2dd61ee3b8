package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized matches any StatusError carrying a 401. The token the
// call was made with is no longer accepted.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is returned for every non-2xx response. The body is not
// inspected.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed (status=%d)", e.Op, e.Status)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

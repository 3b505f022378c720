package thetadata

import (
	"errors"
	"fmt"
)

// ErrNoData is returned when the terminal has no rows for a request.
var ErrNoData = errors.New("thetadata: no data")

// statusNoData is the terminal's HTTP status for an empty result.
const statusNoData = 472

// APIError is any other failure reported by the terminal.
type APIError struct {
	Endpoint   string
	StatusCode int
	ErrorType  string
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if len(msg) > 120 {
		msg = msg[:120] + "..."
	}
	if e.ErrorType != "" {
		return fmt.Sprintf("thetadata %s (HTTP %d, %s): %s", e.Endpoint, e.StatusCode, e.ErrorType, msg)
	}
	return fmt.Sprintf("thetadata %s (HTTP %d): %s", e.Endpoint, e.StatusCode, msg)
}

package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/headline-dev/headline/pkg/models"
)

var (
	// ErrTransport wraps timeouts and connection failures.
	ErrTransport = errors.New("upstream transport failure")
	// ErrDecode marks a response body that could not be parsed.
	ErrDecode = errors.New("upstream response malformed")
)

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned HTTP %d: %s", e.StatusCode, e.Body)
}

// APIError is returned when a 2xx response reports a non-success status.
type APIError struct {
	Status  string
	Code    string
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "unknown error"
	}
	if e.Code != "" {
		return fmt.Sprintf("news API %s (%s): %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("news API %s: %s", e.Status, msg)
}

// Classify maps a Fetch error onto the failure taxonomy.
func Classify(err error) models.FetchOutcome {
	var (
		statusErr *StatusError
		apiErr    *APIError
	)
	switch {
	case err == nil:
		return models.OutcomeSuccess
	case errors.As(err, &statusErr):
		return models.OutcomeProtocol
	case errors.As(err, &apiErr):
		return models.OutcomeApplication
	case errors.Is(err, ErrDecode):
		return models.OutcomeDecode
	default:
		return models.OutcomeTransport
	}
}

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

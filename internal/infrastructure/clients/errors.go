package clients

import (
	"errors"
	"fmt"
	"strings"

	"github.com/logistics-platform/booking-dashboard/internal/credentials"
	apperrors "github.com/logistics-platform/booking-dashboard/pkg/errors"
)

// NetworkError is a transport level failure: the request never produced a
// usable response (connection refused, timeout, open circuit, unreadable body).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError is a response the booking API produced but that signals failure,
// either a non-2xx status or an envelope with success=false.
type APIError struct {
	Op      string
	Status  int
	Message string
	// Cause is set when a 2xx body could not be decoded
	Cause error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: api error (status %d)", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: api error (status %d): %s", e.Op, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// IsNetworkError reports whether err is, or wraps, a NetworkError
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsServerFailure reports whether err should count against the circuit
// breaker: network failures and 5xx responses.
func IsServerFailure(err error) bool {
	if IsNetworkError(err) {
		return true
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status >= 500
	}
	return false
}

// UserMessage returns the text shown to the dashboard user. The server's own
// message wins; otherwise fallback is used.
func UserMessage(err error, fallback string) string {
	var ae *APIError
	if errors.As(err, &ae) && strings.TrimSpace(ae.Message) != "" {
		return ae.Message
	}
	switch {
	case errors.Is(err, credentials.ErrMissingCredential):
		return "Please sign in to view this dashboard"
	case errors.Is(err, credentials.ErrExpiredCredential):
		return "Your session has expired, please sign in again"
	}
	return fallback
}

// ToAppError maps a client error onto the portal's error codes
func ToAppError(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}

	if errors.Is(err, credentials.ErrMissingCredential) || errors.Is(err, credentials.ErrExpiredCredential) {
		return apperrors.ErrUnauthorized(UserMessage(err, "unauthorized")).Wrap(err)
	}

	var ae *APIError
	if errors.As(err, &ae) {
		return apperrors.ErrUpstream(ae.Status, UserMessage(err, "booking API request failed")).Wrap(err)
	}

	var ne *NetworkError
	if errors.As(err, &ne) {
		return apperrors.ErrServiceUnavailable("booking API").Wrap(err)
	}

	return apperrors.ErrInternal("unexpected error").Wrap(err)
}

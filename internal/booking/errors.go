package booking

import (
	"errors"
	"fmt"
)

// Expected, recoverable booking-engine failures. Handlers map these to
// actionable HTTP responses; anything else is an infrastructure failure.
var (
	// ErrExhausted: no capacity for the requested station/type/window at
	// admission time. Callers should offer another slot or type, not retry.
	ErrExhausted = errors.New("no chargers of the requested type are available for this window")

	// ErrCancellationCutoff: cancellation attempted inside the cutoff window.
	ErrCancellationCutoff = errors.New("cancellation window has passed")

	// ErrInvalidTransition: illegal state-machine move; booking unchanged.
	ErrInvalidTransition = errors.New("invalid booking status transition")

	// ErrVerificationFailed: payment proof rejected; booking stays
	// pending_payment and verification may be retried until expiry.
	ErrVerificationFailed = errors.New("payment verification failed")

	// ErrBookingExpired: verification arrived after the expiry sweep; the
	// booking stays expired and is never resurrected.
	ErrBookingExpired = errors.New("booking has expired")

	ErrBookingNotFound = errors.New("booking not found")
	ErrNotOwner        = errors.New("booking does not belong to this user")
)

// ValidationError is malformed input: bad duration, lead-time violation,
// unsupported charger type, no compatible connector. It never touches
// persisted state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// AsValidationError unwraps err into a *ValidationError when possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

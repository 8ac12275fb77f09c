package booking

// legalTransitions is the booking lifecycle:
//
//	pending_payment -> confirmed | expired | cancelled
//	confirmed       -> ongoing | cancelled
//	ongoing         -> completed
//
// completed, cancelled and expired are terminal. Anything else is rejected
// with ErrInvalidTransition and performs no side effect.
var legalTransitions = map[Status][]Status{
	StatusPendingPayment: {StatusConfirmed, StatusExpired, StatusCancelled},
	StatusConfirmed:      {StatusOngoing, StatusCancelled},
	StatusOngoing:        {StatusCompleted},
	StatusCompleted:      {},
	StatusCancelled:      {},
	StatusExpired:        {},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition when from -> to is illegal.
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	return nil
}

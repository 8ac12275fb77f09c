package booking

import (
	"time"
)

// Booking engine timing defaults. All comparisons are anchored to the server
// clock; client-supplied times are only ever window boundaries, never "now".
const (
	DefaultCancellationCutoff = 120 * time.Minute
	DefaultBookingLead        = 10 * time.Minute
	DefaultPendingExpiry      = 15 * time.Minute

	SlotGranularityMinutes = 30
	MinDurationMinutes     = 30
	MaxDurationMinutes     = 300
)

// TimeWindow is a half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open windows intersect. Back-to-back
// bookings ([10:00,11:00) and [11:00,12:00)) do not overlap.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// DurationMinutes returns the window length in whole minutes.
func (w TimeWindow) DurationMinutes() int {
	return int(w.End.Sub(w.Start) / time.Minute)
}

// IsValidDuration checks the slot rules: a multiple of 30 minutes between
// 30 minutes and 5 hours inclusive.
func IsValidDuration(minutes int) bool {
	if minutes < MinDurationMinutes || minutes > MaxDurationMinutes {
		return false
	}
	return minutes%SlotGranularityMinutes == 0
}

// WithinCancellationCutoff reports whether now is inside the cutoff window
// before start. Cancellation is disallowed when this returns true.
func WithinCancellationCutoff(now, start time.Time, cutoff time.Duration) bool {
	return start.Sub(now) < cutoff
}

// MeetsMinimumLeadTime reports whether a new booking's start is at least the
// lead duration in the future. Violations are validation errors, not conflicts.
func MeetsMinimumLeadTime(now, start time.Time, lead time.Duration) bool {
	return start.Sub(now) >= lead
}

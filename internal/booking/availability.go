package booking

import (
	"time"

	"github.com/sharath018/ev-charging-backend/internal/station"
)

// ComputeAvailability derives the remaining capacity for one charger type and
// window from the station's installed counts and the set of bookings. Only
// active (pending_payment, confirmed, ongoing) bookings of the same type whose
// interval overlaps the window reserve capacity; a type the station does not
// offer yields total=0, available=0 regardless of bookings.
func ComputeAvailability(capacity map[station.ChargerType]int, bookings []Booking, chargerType station.ChargerType, window TimeWindow) AvailabilitySnapshot {
	total := capacity[chargerType]

	reserved := 0
	for i := range bookings {
		b := &bookings[i]
		if b.ChargerType != chargerType {
			continue
		}
		if !b.Status.IsActive() {
			continue
		}
		if b.Window().Overlaps(window) {
			reserved++
		}
	}

	available := total - reserved
	if available < 0 {
		available = 0
	}

	return AvailabilitySnapshot{
		ChargerType:     chargerType,
		WindowStart:     window.Start,
		WindowEnd:       window.End,
		TotalOfType:     total,
		ReservedOfType:  reserved,
		AvailableOfType: available,
	}
}

// PointInTimeWindow is the degenerate now..now window used for the current
// availability display: a booking reserves capacity "now" iff its interval
// contains now.
func PointInTimeWindow(now time.Time) TimeWindow {
	return TimeWindow{Start: now, End: now.Add(time.Millisecond)}
}

// AggregateAvailable sums available counts across snapshots. Used only for
// coarse UI badges; admission is always per-type.
func AggregateAvailable(snapshots []AvailabilitySnapshot) int {
	total := 0
	for _, s := range snapshots {
		total += s.AvailableOfType
	}
	return total
}

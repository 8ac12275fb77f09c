package booking

import (
	"testing"
	"time"

	"github.com/sharath018/ev-charging-backend/internal/station"
)

func mkBooking(chargerType station.ChargerType, status Status, w TimeWindow) Booking {
	return Booking{
		ChargerType: chargerType,
		Status:      status,
		StartTime:   w.Start,
		EndTime:     w.End,
	}
}

func TestComputeAvailability(t *testing.T) {
	capacity := map[station.ChargerType]int{
		station.ChargerCCS2:  2,
		station.ChargerType2: 3,
	}
	query := window(t, "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z")

	bookings := []Booking{
		// Two active ccs2 bookings overlapping the window.
		mkBooking(station.ChargerCCS2, StatusConfirmed, window(t, "2026-09-01T09:30:00Z", "2026-09-01T10:30:00Z")),
		mkBooking(station.ChargerCCS2, StatusPendingPayment, window(t, "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z")),
		// Terminal statuses never reserve capacity.
		mkBooking(station.ChargerCCS2, StatusCancelled, window(t, "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z")),
		mkBooking(station.ChargerCCS2, StatusExpired, window(t, "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z")),
		// Active but back-to-back with the window, so no overlap.
		mkBooking(station.ChargerCCS2, StatusOngoing, window(t, "2026-09-01T09:00:00Z", "2026-09-01T10:00:00Z")),
		// Different charger type.
		mkBooking(station.ChargerType2, StatusConfirmed, window(t, "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z")),
	}

	snap := ComputeAvailability(capacity, bookings, station.ChargerCCS2, query)
	if snap.TotalOfType != 2 {
		t.Errorf("TotalOfType = %d, want 2", snap.TotalOfType)
	}
	if snap.ReservedOfType != 2 {
		t.Errorf("ReservedOfType = %d, want 2", snap.ReservedOfType)
	}
	if snap.AvailableOfType != 0 {
		t.Errorf("AvailableOfType = %d, want 0", snap.AvailableOfType)
	}

	snap = ComputeAvailability(capacity, bookings, station.ChargerType2, query)
	if snap.AvailableOfType != 2 {
		t.Errorf("type2 AvailableOfType = %d, want 2", snap.AvailableOfType)
	}
}

func TestComputeAvailabilityNeverNegative(t *testing.T) {
	// Capacity shrank after bookings were taken; derived count must clamp.
	capacity := map[station.ChargerType]int{station.ChargerCCS2: 1}
	query := window(t, "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z")

	bookings := []Booking{
		mkBooking(station.ChargerCCS2, StatusConfirmed, query),
		mkBooking(station.ChargerCCS2, StatusConfirmed, query),
	}

	snap := ComputeAvailability(capacity, bookings, station.ChargerCCS2, query)
	if snap.AvailableOfType != 0 {
		t.Errorf("AvailableOfType = %d, want 0", snap.AvailableOfType)
	}
	if snap.ReservedOfType != 2 {
		t.Errorf("ReservedOfType = %d, want 2", snap.ReservedOfType)
	}
}

func TestComputeAvailabilityUnofferedType(t *testing.T) {
	capacity := map[station.ChargerType]int{station.ChargerCCS2: 2}
	query := window(t, "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z")

	snap := ComputeAvailability(capacity, nil, station.ChargerCHAdeMO, query)
	if snap.TotalOfType != 0 || snap.AvailableOfType != 0 {
		t.Errorf("unoffered type should report zero capacity, got %+v", snap)
	}
}

func TestPointInTimeWindow(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)
	w := PointInTimeWindow(now)

	ongoing := window(t, "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z")
	if !w.Overlaps(ongoing) {
		t.Error("point-in-time window should overlap a session in progress")
	}

	finished := window(t, "2026-09-01T09:00:00Z", "2026-09-01T10:30:00Z")
	if w.Overlaps(finished) {
		t.Error("point-in-time window should not overlap a session that just ended")
	}
}

func TestAggregateAvailable(t *testing.T) {
	snapshots := []AvailabilitySnapshot{
		{AvailableOfType: 2},
		{AvailableOfType: 0},
		{AvailableOfType: 3},
	}
	if got := AggregateAvailable(snapshots); got != 5 {
		t.Errorf("AggregateAvailable = %d, want 5", got)
	}
}

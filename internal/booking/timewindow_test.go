package booking

import (
	"testing"
	"time"
)

func window(t *testing.T, start, end string) TimeWindow {
	t.Helper()
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		t.Fatalf("bad start %q: %v", start, err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		t.Fatalf("bad end %q: %v", end, err)
	}
	return TimeWindow{Start: s, End: e}
}

func TestOverlapsHalfOpen(t *testing.T) {
	base := window(t, "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z")

	cases := []struct {
		name  string
		other TimeWindow
		want  bool
	}{
		{"identical", window(t, "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z"), true},
		{"contained", window(t, "2026-09-01T10:15:00Z", "2026-09-01T10:45:00Z"), true},
		{"overlaps start", window(t, "2026-09-01T09:30:00Z", "2026-09-01T10:30:00Z"), true},
		{"overlaps end", window(t, "2026-09-01T10:30:00Z", "2026-09-01T11:30:00Z"), true},
		{"back to back before", window(t, "2026-09-01T09:00:00Z", "2026-09-01T10:00:00Z"), false},
		{"back to back after", window(t, "2026-09-01T11:00:00Z", "2026-09-01T12:00:00Z"), false},
		{"disjoint before", window(t, "2026-09-01T07:00:00Z", "2026-09-01T08:00:00Z"), false},
		{"disjoint after", window(t, "2026-09-01T13:00:00Z", "2026-09-01T14:00:00Z"), false},
		{"one millisecond overlap", window(t, "2026-09-01T10:59:59.999Z", "2026-09-01T11:30:00Z"), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := base.Overlaps(tc.other); got != tc.want {
				t.Errorf("Overlaps(%v, %v) = %v, want %v", base, tc.other, got, tc.want)
			}
			// overlap is symmetric
			if got := tc.other.Overlaps(base); got != tc.want {
				t.Errorf("Overlaps(%v, %v) = %v, want %v", tc.other, base, got, tc.want)
			}
		})
	}
}

func TestIsValidDuration(t *testing.T) {
	cases := []struct {
		minutes int
		want    bool
	}{
		{30, true},
		{60, true},
		{90, true},
		{300, true},
		{0, false},
		{15, false},
		{45, false},
		{29, false},
		{31, false},
		{330, false},
		{-30, false},
	}

	for _, tc := range cases {
		if got := IsValidDuration(tc.minutes); got != tc.want {
			t.Errorf("IsValidDuration(%d) = %v, want %v", tc.minutes, got, tc.want)
		}
	}
}

func TestWithinCancellationCutoff(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		start time.Time
		want  bool
	}{
		{"well before cutoff", now.Add(3 * time.Hour), false},
		{"exactly at cutoff", now.Add(2 * time.Hour), false},
		{"one second inside", now.Add(2*time.Hour - time.Second), true},
		{"one minute before start", now.Add(time.Minute), true},
		{"already started", now.Add(-time.Hour), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WithinCancellationCutoff(now, tc.start, DefaultCancellationCutoff); got != tc.want {
				t.Errorf("WithinCancellationCutoff(start=%v) = %v, want %v", tc.start, got, tc.want)
			}
		})
	}
}

func TestMeetsMinimumLeadTime(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	if !MeetsMinimumLeadTime(now, now.Add(10*time.Minute), DefaultBookingLead) {
		t.Error("start exactly at lead boundary should be allowed")
	}
	if MeetsMinimumLeadTime(now, now.Add(10*time.Minute-time.Second), DefaultBookingLead) {
		t.Error("start inside the lead window should be rejected")
	}
	if MeetsMinimumLeadTime(now, now.Add(-time.Minute), DefaultBookingLead) {
		t.Error("start in the past should be rejected")
	}
}

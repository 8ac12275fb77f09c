package booking

import (
	"time"

	"github.com/sharath018/ev-charging-backend/internal/station"
)

// Status is the booking lifecycle state. pending_payment, confirmed and
// ongoing count against capacity; the rest are terminal and never do again.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusConfirmed      Status = "confirmed"
	StatusOngoing        Status = "ongoing"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusExpired        Status = "expired"
)

// ActiveStatuses are the states that reserve capacity.
var ActiveStatuses = []Status{StatusPendingPayment, StatusConfirmed, StatusOngoing}

// IsActive reports whether the status counts against capacity.
func (s Status) IsActive() bool {
	return s == StatusPendingPayment || s == StatusConfirmed || s == StatusOngoing
}

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// Booking reserves one charger of a given type at a station for a half-open
// time window. Capacity is reserved from the moment it is admitted as
// pending_payment.
type Booking struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	BookingRef string `gorm:"size:36;uniqueIndex;not null" json:"booking_ref"`

	StationID uint `gorm:"not null;index:idx_station_type_window" json:"station_id"`
	UserID    uint `gorm:"not null;index" json:"user_id"`
	VehicleID uint `gorm:"not null" json:"vehicle_id"`

	ChargerType station.ChargerType `gorm:"size:30;not null;index:idx_station_type_window" json:"charger_type"`

	// Millisecond precision, required for exact overlap comparison.
	StartTime time.Time `gorm:"not null;index:idx_station_type_window" json:"start_time"`
	EndTime   time.Time `gorm:"not null" json:"end_time"`

	Status          Status `gorm:"size:20;not null;index" json:"status"`
	PaymentOrderRef string `gorm:"size:64;index" json:"payment_order_ref,omitempty"`
	Amount          float64 `gorm:"type:decimal(10,2)" json:"amount"`

	// Advisory charge targets, used for optimization hints only.
	CurrentCharge int `json:"current_charge"`
	TargetCharge  int `json:"target_charge"`

	CancellationReason string     `gorm:"size:255" json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	StatusChangedAt    time.Time  `json:"status_changed_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (Booking) TableName() string {
	return "bookings"
}

// Window returns the booking's half-open time window.
func (b *Booking) Window() TimeWindow {
	return TimeWindow{Start: b.StartTime, End: b.EndTime}
}

// AvailabilitySnapshot is a derived, non-persisted view of remaining capacity
// for one station/type/window.
type AvailabilitySnapshot struct {
	StationID   uint                `json:"station_id"`
	ChargerType station.ChargerType `json:"charger_type"`
	WindowStart time.Time           `json:"window_start"`
	WindowEnd   time.Time           `json:"window_end"`

	TotalOfType     int `json:"total_of_type"`
	ReservedOfType  int `json:"reserved_of_type"`
	AvailableOfType int `json:"available_of_type"`
}

// Filter narrows booking listings for dashboards.
type Filter struct {
	Status    string
	FromDate  string // YYYY-MM-DD
	ToDate    string // YYYY-MM-DD
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

// StatusCounts feeds the station dashboard cards.
type StatusCounts struct {
	Total          int64 `json:"total"`
	PendingPayment int64 `json:"pending_payment"`
	Confirmed      int64 `json:"confirmed"`
	Ongoing        int64 `json:"ongoing"`
	Completed      int64 `json:"completed"`
	Cancelled      int64 `json:"cancelled"`
	Expired        int64 `json:"expired"`
}

// DetailedBooking joins customer and vehicle info for station dashboards.
type DetailedBooking struct {
	Booking
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	VehicleMake   string `json:"vehicle_make"`
	VehicleModel  string `json:"vehicle_model"`
}

package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sharath018/ev-charging-backend/internal/auditlog"
	"github.com/sharath018/ev-charging-backend/internal/station"
	"github.com/sharath018/ev-charging-backend/internal/vehicle"
	"github.com/sharath018/ev-charging-backend/utils"
)

// PaymentGateway issues payment orders and verifies payment proofs. The
// Razorpay-backed implementation lives in internal/payment.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount float64, receipt string) (orderRef string, err error)
	VerifySignature(orderRef, paymentRef, signature string) bool
}

// CreateBookingInput is the admission request for a new booking.
type CreateBookingInput struct {
	StationID   uint
	VehicleID   uint
	ChargerType station.ChargerType
	StartTime   time.Time
	EndTime     time.Time

	// Advisory charge levels, 0-100. Optional.
	CurrentCharge int
	TargetCharge  int
}

// EditBookingInput reschedules an existing booking before its cutoff.
type EditBookingInput struct {
	ChargerType station.ChargerType
	StartTime   time.Time
	EndTime     time.Time
}

// VerifyPaymentInput carries the Razorpay payment proof.
type VerifyPaymentInput struct {
	OrderRef   string `json:"razorpay_order_id" binding:"required"`
	PaymentRef string `json:"razorpay_payment_id" binding:"required"`
	Signature  string `json:"razorpay_signature" binding:"required"`
}

type CreateBookingResult struct {
	Booking         *Booking `json:"booking"`
	PaymentOrderRef string   `json:"payment_order_ref"`
	// PayBy is when the pending booking expires if payment never arrives.
	PayBy time.Time `json:"pay_by"`
}

type Service interface {
	QueryAvailability(ctx context.Context, stationID uint, window TimeWindow) ([]AvailabilitySnapshot, error)
	RankChargerTypes(ctx context.Context, stationID, vehicleID uint, window TimeWindow) ([]station.ChargerType, error)

	CreateBooking(ctx context.Context, userID uint, in CreateBookingInput, ip string) (*CreateBookingResult, error)
	EditBooking(ctx context.Context, userID, bookingID uint, in EditBookingInput, ip string) (*Booking, error)
	CancelBooking(ctx context.Context, userID, bookingID uint, reason, ip string) (*Booking, error)
	VerifyPayment(ctx context.Context, in VerifyPaymentInput, ip string) (*Booking, error)

	GetBooking(ctx context.Context, userID, bookingID uint) (*Booking, error)
	ListMyBookings(ctx context.Context, userID uint, filter Filter) ([]Booking, int64, error)
	ListStationBookings(ctx context.Context, stationID uint, filter Filter) ([]DetailedBooking, int64, error)
	GetStationStatusCounts(ctx context.Context, stationID uint) (StatusCounts, error)

	ExpireStalePending(ctx context.Context) (int, error)
	PromoteDueBookings(ctx context.Context) error
}

type service struct {
	repo       Repository
	stationSvc station.Service
	vehicleSvc vehicle.Service
	gateway    PaymentGateway
	auditSvc   auditlog.Service

	cancellationCutoff time.Duration
	bookingLead        time.Duration
	pendingExpiry      time.Duration
}

func NewService(repo Repository, stationSvc station.Service, vehicleSvc vehicle.Service, gateway PaymentGateway, auditSvc auditlog.Service, cutoff, lead, expiry time.Duration) Service {
	if cutoff <= 0 {
		cutoff = DefaultCancellationCutoff
	}
	if lead <= 0 {
		lead = DefaultBookingLead
	}
	if expiry <= 0 {
		expiry = DefaultPendingExpiry
	}
	return &service{
		repo:               repo,
		stationSvc:         stationSvc,
		vehicleSvc:         vehicleSvc,
		gateway:            gateway,
		auditSvc:           auditSvc,
		cancellationCutoff: cutoff,
		bookingLead:        lead,
		pendingExpiry:      expiry,
	}
}

// QueryAvailability computes per-type availability snapshots for a station
// and window. A zero window means "right now"; those snapshots are served
// through the Redis read-through cache since they back the station list UI.
// Admission never reads from here.
func (s *service) QueryAvailability(ctx context.Context, stationID uint, window TimeWindow) ([]AvailabilitySnapshot, error) {
	pointInTime := window.Start.IsZero()
	if pointInTime {
		if cached, err := utils.GetCachedAvailability(ctx, stationID); err == nil && cached != nil {
			var snapshots []AvailabilitySnapshot
			if err := json.Unmarshal(cached, &snapshots); err == nil {
				return snapshots, nil
			}
		}
		window = PointInTimeWindow(time.Now().UTC())
	}

	st, err := s.stationSvc.GetStation(ctx, stationID)
	if err != nil {
		return nil, err
	}

	active, err := s.repo.ActiveOverlapping(ctx, stationID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to load active bookings: %w", err)
	}

	capacity := st.CapacityMap()
	snapshots := make([]AvailabilitySnapshot, 0, len(capacity))
	for _, t := range st.OfferedTypes() {
		snap := ComputeAvailability(capacity, active, t, window)
		snap.StationID = stationID
		snapshots = append(snapshots, snap)
	}

	if pointInTime {
		if payload, err := json.Marshal(snapshots); err == nil {
			if err := utils.CacheAvailability(ctx, stationID, payload); err != nil {
				log.Printf("⚠️ Failed to cache availability for station %d: %v", stationID, err)
			}
		}
	}
	return snapshots, nil
}

// RankChargerTypes returns the charger types at a station compatible with the
// vehicle, ranked by how many are free in the window.
func (s *service) RankChargerTypes(ctx context.Context, stationID, vehicleID uint, window TimeWindow) ([]station.ChargerType, error) {
	st, err := s.stationSvc.GetStation(ctx, stationID)
	if err != nil {
		return nil, err
	}

	snapshots, err := s.QueryAvailability(ctx, stationID, window)
	if err != nil {
		return nil, err
	}
	available := make(map[station.ChargerType]int, len(snapshots))
	for _, snap := range snapshots {
		available[snap.ChargerType] = snap.AvailableOfType
	}

	ranked, err := s.vehicleSvc.RankCompatibleTypes(ctx, vehicleID, st.OfferedTypes(), available)
	if err == vehicle.ErrNoConnectorData {
		return nil, newValidationError("vehicle_id", "vehicle has no connector data configured")
	}
	return ranked, err
}

func (s *service) CreateBooking(ctx context.Context, userID uint, in CreateBookingInput, ip string) (*CreateBookingResult, error) {
	now := time.Now().UTC()
	window := TimeWindow{Start: in.StartTime.UTC(), End: in.EndTime.UTC()}

	if err := s.validateWindow(now, window); err != nil {
		return nil, err
	}
	if err := validateChargeLevels(in.CurrentCharge, in.TargetCharge); err != nil {
		return nil, err
	}

	st, err := s.stationSvc.GetStation(ctx, in.StationID)
	if err != nil {
		return nil, err
	}
	if !st.IsActive {
		return nil, newValidationError("station_id", "station is not accepting bookings")
	}

	total := st.CapacityFor(in.ChargerType)
	if total <= 0 {
		return nil, newValidationError("charger_type", fmt.Sprintf("station does not offer charger type %s", in.ChargerType))
	}

	v, err := s.vehicleSvc.GetVehicle(ctx, in.VehicleID)
	if err != nil {
		return nil, err
	}
	if v.UserID != userID {
		return nil, ErrNotOwner
	}
	if err := s.checkCompatibility(ctx, in.VehicleID, st, in.ChargerType); err != nil {
		return nil, err
	}

	rate := st.RateFor(in.ChargerType)
	amount := rate * float64(window.DurationMinutes()) / 60.0

	b := &Booking{
		BookingRef:    uuid.New().String(),
		StationID:     in.StationID,
		UserID:        userID,
		VehicleID:     in.VehicleID,
		ChargerType:   in.ChargerType,
		StartTime:     window.Start,
		EndTime:       window.End,
		Amount:        amount,
		CurrentCharge: in.CurrentCharge,
		TargetCharge:  in.TargetCharge,
	}

	// Admission: capacity is reserved here, before any payment exists.
	if err := s.repo.TryReserve(ctx, total, b); err != nil {
		if err == ErrExhausted {
			s.audit(ctx, userID, in.StationID, "BOOKING_REJECTED", map[string]interface{}{
				"charger_type": in.ChargerType,
				"start_time":   window.Start,
			}, ip, "failure")
		}
		return nil, err
	}

	orderRef, err := s.gateway.CreateOrder(ctx, b.Amount, b.BookingRef)
	if err != nil {
		// The slot stays reserved; the expiry sweep will release it if the
		// client never retries payment.
		log.Printf("⚠️ Payment order creation failed for booking %s: %v", b.BookingRef, err)
		return nil, fmt.Errorf("failed to create payment order: %w", err)
	}
	if err := s.repo.SetPaymentOrder(ctx, b.ID, orderRef); err != nil {
		return nil, err
	}
	b.PaymentOrderRef = orderRef

	s.audit(ctx, userID, in.StationID, "BOOKING_CREATED", map[string]interface{}{
		"booking_ref":  b.BookingRef,
		"charger_type": b.ChargerType,
		"start_time":   b.StartTime,
		"amount":       b.Amount,
	}, ip, "success")
	s.publish("booking_created", b)
	utils.InvalidateAvailability(ctx, b.StationID)

	return &CreateBookingResult{
		Booking:         b,
		PaymentOrderRef: orderRef,
		PayBy:           b.CreatedAt.Add(s.pendingExpiry),
	}, nil
}

// EditBooking reschedules a pending or confirmed booking. Edits obey the same
// cutoff as cancellations and re-run admission against the new parameters,
// excluding the booking's own reservation.
func (s *service) EditBooking(ctx context.Context, userID, bookingID uint, in EditBookingInput, ip string) (*Booking, error) {
	b, err := s.ownedBooking(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusPendingPayment && b.Status != StatusConfirmed {
		return nil, ErrInvalidTransition
	}

	now := time.Now().UTC()
	if WithinCancellationCutoff(now, b.StartTime, s.cancellationCutoff) {
		return nil, ErrCancellationCutoff
	}

	newWindow := TimeWindow{Start: in.StartTime.UTC(), End: in.EndTime.UTC()}
	if err := s.validateWindow(now, newWindow); err != nil {
		return nil, err
	}

	st, err := s.stationSvc.GetStation(ctx, b.StationID)
	if err != nil {
		return nil, err
	}
	newType := in.ChargerType
	if newType == "" {
		newType = b.ChargerType
	}
	total := st.CapacityFor(newType)
	if total <= 0 {
		return nil, newValidationError("charger_type", fmt.Sprintf("station does not offer charger type %s", newType))
	}
	if newType != b.ChargerType {
		if err := s.checkCompatibility(ctx, b.VehicleID, st, newType); err != nil {
			return nil, err
		}
	}

	newAmount := st.RateFor(newType) * float64(newWindow.DurationMinutes()) / 60.0
	if err := s.repo.TryReschedule(ctx, total, bookingID, newType, newWindow, newAmount); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, userID, b.StationID, "BOOKING_RESCHEDULED", map[string]interface{}{
		"booking_ref":  b.BookingRef,
		"charger_type": newType,
		"start_time":   newWindow.Start,
	}, ip, "success")
	s.publish("booking_rescheduled", updated)
	utils.InvalidateAvailability(ctx, b.StationID)

	return updated, nil
}

// CancelBooking releases the slot if the booking is still active and the
// cutoff has not passed. The cutoff is judged against the server clock only.
func (s *service) CancelBooking(ctx context.Context, userID, bookingID uint, reason, ip string) (*Booking, error) {
	b, err := s.ownedBooking(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}
	// Charging in progress is not cancellable at all, as opposed to merely
	// being inside the cutoff.
	if b.Status == StatusOngoing || !b.Status.IsActive() {
		return nil, ErrInvalidTransition
	}

	now := time.Now().UTC()
	if WithinCancellationCutoff(now, b.StartTime, s.cancellationCutoff) {
		return nil, ErrCancellationCutoff
	}

	ok, err := s.repo.UpdateStatusCAS(ctx, bookingID, b.Status, StatusCancelled, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race with payment confirmation or the expiry sweep. Re-read
		// and retry once from the new state if it is still cancellable.
		fresh, err := s.repo.GetByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		if fresh.Status == StatusOngoing || !fresh.Status.IsActive() {
			return nil, ErrInvalidTransition
		}
		if ok, err = s.repo.UpdateStatusCAS(ctx, bookingID, fresh.Status, StatusCancelled, reason); err != nil {
			return nil, err
		} else if !ok {
			return nil, ErrInvalidTransition
		}
	}

	cancelled, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, userID, b.StationID, "BOOKING_CANCELLED", map[string]interface{}{
		"booking_ref": b.BookingRef,
		"reason":      reason,
	}, ip, "success")
	s.publish("booking_cancelled", cancelled)
	utils.InvalidateAvailability(ctx, b.StationID)

	return cancelled, nil
}

// VerifyPayment checks the Razorpay proof and promotes the booking to
// confirmed. Re-verification of an already-confirmed booking is a no-op
// success so client retries stay idempotent.
func (s *service) VerifyPayment(ctx context.Context, in VerifyPaymentInput, ip string) (*Booking, error) {
	b, err := s.repo.GetByOrderRef(ctx, in.OrderRef)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	switch b.Status {
	case StatusConfirmed, StatusOngoing, StatusCompleted:
		return b, nil
	case StatusExpired:
		return nil, ErrBookingExpired
	case StatusCancelled:
		return nil, ErrInvalidTransition
	}

	if !s.gateway.VerifySignature(in.OrderRef, in.PaymentRef, in.Signature) {
		s.audit(ctx, b.UserID, b.StationID, "PAYMENT_VERIFICATION_FAILED", map[string]interface{}{
			"booking_ref": b.BookingRef,
			"order_ref":   in.OrderRef,
		}, ip, "failure")
		return nil, ErrVerificationFailed
	}

	ok, err := s.repo.UpdateStatusCAS(ctx, b.ID, StatusPendingPayment, StatusConfirmed, "")
	if err != nil {
		return nil, err
	}
	if !ok {
		fresh, err := s.repo.GetByID(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		switch fresh.Status {
		case StatusConfirmed, StatusOngoing, StatusCompleted:
			return fresh, nil
		case StatusExpired:
			return nil, ErrBookingExpired
		default:
			return nil, ErrInvalidTransition
		}
	}

	confirmed, err := s.repo.GetByID(ctx, b.ID)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, b.UserID, b.StationID, "BOOKING_CONFIRMED", map[string]interface{}{
		"booking_ref": b.BookingRef,
		"payment_ref": in.PaymentRef,
	}, ip, "success")
	s.publish("booking_confirmed", confirmed)

	return confirmed, nil
}

func (s *service) GetBooking(ctx context.Context, userID, bookingID uint) (*Booking, error) {
	s.promoteLazily(ctx)
	return s.ownedBooking(ctx, userID, bookingID)
}

func (s *service) ListMyBookings(ctx context.Context, userID uint, filter Filter) ([]Booking, int64, error) {
	s.promoteLazily(ctx)
	return s.repo.ListByUser(ctx, userID, filter)
}

func (s *service) ListStationBookings(ctx context.Context, stationID uint, filter Filter) ([]DetailedBooking, int64, error) {
	s.promoteLazily(ctx)
	return s.repo.ListByStation(ctx, stationID, filter)
}

func (s *service) GetStationStatusCounts(ctx context.Context, stationID uint) (StatusCounts, error) {
	s.promoteLazily(ctx)
	return s.repo.CountByStatus(ctx, stationID)
}

// promoteLazily catches up time-driven status changes on read paths so listings
// stay correct even between sweeper ticks.
func (s *service) promoteLazily(ctx context.Context) {
	if err := s.repo.PromoteDue(ctx, time.Now().UTC()); err != nil {
		log.Printf("⚠️ Failed to promote due bookings: %v", err)
	}
}

// ExpireStalePending releases slots held by bookings that never paid. Uses
// CAS per row so a payment landing mid-sweep wins the race.
func (s *service) ExpireStalePending(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.pendingExpiry)
	stale, err := s.repo.ListStalePending(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		b := &stale[i]
		ok, err := s.repo.UpdateStatusCAS(ctx, b.ID, StatusPendingPayment, StatusExpired, "")
		if err != nil {
			log.Printf("⚠️ Failed to expire booking %s: %v", b.BookingRef, err)
			continue
		}
		if !ok {
			continue // paid or cancelled in the meantime
		}
		expired++
		s.publish("booking_expired", b)
		utils.InvalidateAvailability(ctx, b.StationID)
	}
	return expired, nil
}

func (s *service) PromoteDueBookings(ctx context.Context) error {
	return s.repo.PromoteDue(ctx, time.Now().UTC())
}

func (s *service) validateWindow(now time.Time, window TimeWindow) error {
	if !window.End.After(window.Start) {
		return newValidationError("end_time", "end time must be after start time")
	}
	if !IsValidDuration(window.DurationMinutes()) {
		return newValidationError("duration", fmt.Sprintf("duration must be a multiple of %d minutes between %d and %d", SlotGranularityMinutes, MinDurationMinutes, MaxDurationMinutes))
	}
	if !MeetsMinimumLeadTime(now, window.Start, s.bookingLead) {
		return newValidationError("start_time", fmt.Sprintf("bookings must start at least %d minutes from now", int(s.bookingLead/time.Minute)))
	}
	return nil
}

// validateChargeLevels checks the advisory charge percentages when supplied.
// Both zero means the client sent none.
func validateChargeLevels(current, target int) error {
	if current == 0 && target == 0 {
		return nil
	}
	if current < 0 || current > 100 {
		return newValidationError("current_charge", "charge level must be between 0 and 100")
	}
	if target <= 0 || target > 100 {
		return newValidationError("target_charge", "charge level must be between 0 and 100")
	}
	if current >= target {
		return newValidationError("target_charge", "target charge must be greater than current charge")
	}
	return nil
}

func (s *service) checkCompatibility(ctx context.Context, vehicleID uint, st *station.Station, chargerType station.ChargerType) error {
	compatible, err := s.vehicleSvc.RankCompatibleTypes(ctx, vehicleID, st.OfferedTypes(), nil)
	if err == vehicle.ErrNoConnectorData {
		return newValidationError("vehicle_id", "vehicle has no connector data configured")
	}
	if err != nil {
		return err
	}
	for _, t := range compatible {
		if t == chargerType {
			return nil
		}
	}
	return newValidationError("charger_type", fmt.Sprintf("vehicle connectors are not compatible with charger type %s", chargerType))
}

func (s *service) ownedBooking(ctx context.Context, userID, bookingID uint) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrNotOwner
	}
	return b, nil
}

func (s *service) audit(ctx context.Context, userID, stationID uint, action string, details map[string]interface{}, ip, status string) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.LogAction(ctx, &userID, &stationID, action, details, ip, status); err != nil {
		log.Printf("⚠️ Failed to write audit log for %s: %v", action, err)
	}
}

func (s *service) publish(event string, b *Booking) {
	utils.PublishBookingEvent(context.Background(), utils.BookingEvent{
		Event:       event,
		BookingID:   b.ID,
		BookingRef:  b.BookingRef,
		UserID:      b.UserID,
		StationID:   b.StationID,
		ChargerType: string(b.ChargerType),
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		OccurredAt:  time.Now().UTC(),
	})
}

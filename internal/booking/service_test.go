package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/sharath018/ev-charging-backend/internal/station"
	"github.com/sharath018/ev-charging-backend/internal/vehicle"
)

// fakeRepo is an in-memory Repository. TryReserve serializes on a single
// mutex, mirroring the per-pool advisory lock.
type fakeRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*Booking
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[uint]*Booking)}
}

func (r *fakeRepo) activeOverlapping(stationID uint, chargerType station.ChargerType, w TimeWindow, excludeID uint) int {
	count := 0
	for _, b := range r.rows {
		if b.ID == excludeID {
			continue
		}
		if b.StationID != stationID || b.ChargerType != chargerType {
			continue
		}
		if !b.Status.IsActive() {
			continue
		}
		if b.Window().Overlaps(w) {
			count++
		}
	}
	return count
}

func (r *fakeRepo) TryReserve(ctx context.Context, totalOfType int, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeOverlapping(b.StationID, b.ChargerType, b.Window(), 0) >= totalOfType {
		return ErrExhausted
	}

	r.nextID++
	b.ID = r.nextID
	b.Status = StatusPendingPayment
	b.StatusChangedAt = time.Now().UTC()
	b.CreatedAt = time.Now().UTC()
	clone := *b
	r.rows[b.ID] = &clone
	return nil
}

func (r *fakeRepo) TryReschedule(ctx context.Context, totalOfType int, bookingID uint, newType station.ChargerType, newWindow TimeWindow, newAmount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.rows[bookingID]
	if !ok {
		return errors.New("record not found")
	}
	if r.activeOverlapping(b.StationID, newType, newWindow, bookingID) >= totalOfType {
		return ErrExhausted
	}

	b.ChargerType = newType
	b.StartTime = newWindow.Start
	b.EndTime = newWindow.End
	b.Amount = newAmount
	return nil
}

func (r *fakeRepo) UpdateStatusCAS(ctx context.Context, id uint, from, to Status, reason string) (bool, error) {
	if err := ValidateTransition(from, to); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.rows[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	b.StatusChangedAt = time.Now().UTC()
	if to == StatusCancelled {
		now := time.Now().UTC()
		b.CancelledAt = &now
		b.CancellationReason = reason
	}
	return true, nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id uint) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	clone := *b
	return &clone, nil
}

func (r *fakeRepo) GetByRef(ctx context.Context, ref string) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.rows {
		if b.BookingRef == ref {
			clone := *b
			return &clone, nil
		}
	}
	return nil, errors.New("record not found")
}

func (r *fakeRepo) GetByOrderRef(ctx context.Context, orderRef string) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.rows {
		if b.PaymentOrderRef == orderRef {
			clone := *b
			return &clone, nil
		}
	}
	return nil, ErrBookingNotFound
}

func (r *fakeRepo) SetPaymentOrder(ctx context.Context, id uint, orderRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[id]
	if !ok {
		return errors.New("record not found")
	}
	b.PaymentOrderRef = orderRef
	return nil
}

func (r *fakeRepo) ActiveOverlapping(ctx context.Context, stationID uint, w TimeWindow) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Booking
	for _, b := range r.rows {
		if b.StationID == stationID && b.Status.IsActive() && b.Window().Overlaps(w) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListByUser(ctx context.Context, userID uint, filter Filter) ([]Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Booking
	for _, b := range r.rows {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeRepo) ListByStation(ctx context.Context, stationID uint, filter Filter) ([]DetailedBooking, int64, error) {
	return nil, 0, nil
}

func (r *fakeRepo) CountByStatus(ctx context.Context, stationID uint) (StatusCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var counts StatusCounts
	for _, b := range r.rows {
		if b.StationID != stationID {
			continue
		}
		counts.Total++
		switch b.Status {
		case StatusPendingPayment:
			counts.PendingPayment++
		case StatusConfirmed:
			counts.Confirmed++
		case StatusOngoing:
			counts.Ongoing++
		case StatusCompleted:
			counts.Completed++
		case StatusCancelled:
			counts.Cancelled++
		case StatusExpired:
			counts.Expired++
		}
	}
	return counts, nil
}

func (r *fakeRepo) ListStalePending(ctx context.Context, createdBefore time.Time) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Booking
	for _, b := range r.rows {
		if b.Status == StatusPendingPayment && b.CreatedAt.Before(createdBefore) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *fakeRepo) PromoteDue(ctx context.Context, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.rows {
		if b.Status == StatusConfirmed && !b.StartTime.After(now) {
			b.Status = StatusOngoing
			b.StatusChangedAt = now
		}
	}
	for _, b := range r.rows {
		if b.Status == StatusOngoing && !b.EndTime.After(now) {
			b.Status = StatusCompleted
			b.StatusChangedAt = now
		}
	}
	return nil
}

// setCreatedAt backdates a row so expiry sweeps can see it.
func (r *fakeRepo) setCreatedAt(id uint, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.rows[id]; ok {
		b.CreatedAt = at
	}
}

func (r *fakeRepo) statusOf(id uint) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id].Status
}

// fakeStationSvc serves one prepared station.
type fakeStationSvc struct {
	st *station.Station
}

func (f *fakeStationSvc) GetStation(ctx context.Context, id uint) (*station.Station, error) {
	if f.st == nil || f.st.ID != id {
		return nil, station.ErrStationNotFound
	}
	return f.st, nil
}

func (f *fakeStationSvc) GetStationCapacity(ctx context.Context, id uint) (map[station.ChargerType]int, error) {
	st, err := f.GetStation(ctx, id)
	if err != nil {
		return nil, err
	}
	return st.CapacityMap(), nil
}

func (f *fakeStationSvc) GetRate(ctx context.Context, id uint, t station.ChargerType) (float64, error) {
	st, err := f.GetStation(ctx, id)
	if err != nil {
		return 0, err
	}
	return st.RateFor(t), nil
}

func (f *fakeStationSvc) ListStations(ctx context.Context, city string, limit, offset int) ([]station.Station, int64, error) {
	return []station.Station{*f.st}, 1, nil
}

func (f *fakeStationSvc) ListOwnerStations(ctx context.Context, ownerID uint) ([]station.Station, error) {
	return []station.Station{*f.st}, nil
}

// fakeVehicleSvc owns one vehicle compatible with a configured set of types.
type fakeVehicleSvc struct {
	veh        *vehicle.Vehicle
	compatible []station.ChargerType
	noData     bool
}

func (f *fakeVehicleSvc) AddVehicle(ctx context.Context, v *vehicle.Vehicle) error { return nil }
func (f *fakeVehicleSvc) UpdateVehicle(ctx context.Context, userID uint, v *vehicle.Vehicle) error {
	return nil
}
func (f *fakeVehicleSvc) RemoveVehicle(ctx context.Context, userID, vehicleID uint) error { return nil }

func (f *fakeVehicleSvc) GetVehicle(ctx context.Context, id uint) (*vehicle.Vehicle, error) {
	if f.veh == nil || f.veh.ID != id {
		return nil, vehicle.ErrVehicleNotFound
	}
	return f.veh, nil
}

func (f *fakeVehicleSvc) GetVehicleProfile(ctx context.Context, id uint) (vehicle.ConnectorProfile, error) {
	return vehicle.ConnectorProfile{}, nil
}

func (f *fakeVehicleSvc) ListMyVehicles(ctx context.Context, userID uint) ([]vehicle.Vehicle, error) {
	return nil, nil
}

func (f *fakeVehicleSvc) RankCompatibleTypes(ctx context.Context, vehicleID uint, offered []station.ChargerType, available map[station.ChargerType]int) ([]station.ChargerType, error) {
	if f.noData {
		return nil, vehicle.ErrNoConnectorData
	}
	return f.compatible, nil
}

// fakeGateway issues sequential order refs and accepts one signature.
type fakeGateway struct {
	mu      sync.Mutex
	orders  int
	failing bool
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount float64, receipt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failing {
		return "", errors.New("gateway unavailable")
	}
	g.orders++
	return fmt.Sprintf("order_%d", g.orders), nil
}

func (g *fakeGateway) VerifySignature(orderRef, paymentRef, signature string) bool {
	return signature == "valid-signature"
}

func testStation() *station.Station {
	return &station.Station{
		ID:       1,
		Name:     "GreenCharge Koramangala",
		IsActive: true,
		ChargerCapacity: datatypes.JSONMap{
			"ccs2":  float64(2),
			"type2": float64(3),
		},
		TariffPerHour: datatypes.JSONMap{
			"default": float64(120),
			"ccs2":    float64(200),
		},
	}
}

func newTestService(repo Repository) (Service, *fakeGateway) {
	gateway := &fakeGateway{}
	stationSvc := &fakeStationSvc{st: testStation()}
	vehicleSvc := &fakeVehicleSvc{
		veh:        &vehicle.Vehicle{ID: 7, UserID: 42},
		compatible: []station.ChargerType{station.ChargerCCS2, station.ChargerType2},
	}
	svc := NewService(repo, stationSvc, vehicleSvc, gateway, nil, 0, 0, 0)
	return svc, gateway
}

func futureWindow(offset, duration time.Duration) (time.Time, time.Time) {
	start := time.Now().UTC().Add(offset).Truncate(time.Minute)
	return start, start.Add(duration)
}

func createInput(start, end time.Time) CreateBookingInput {
	return CreateBookingInput{
		StationID:   1,
		VehicleID:   7,
		ChargerType: station.ChargerCCS2,
		StartTime:   start,
		EndTime:     end,
	}
}

func TestCreateBookingHappyPath(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	start, end := futureWindow(time.Hour, time.Hour)
	result, err := svc.CreateBooking(context.Background(), 42, createInput(start, end), "10.0.0.1")
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	b := result.Booking
	if b.Status != StatusPendingPayment {
		t.Errorf("status = %s, want pending_payment", b.Status)
	}
	if b.BookingRef == "" {
		t.Error("booking ref not assigned")
	}
	if result.PaymentOrderRef != "order_1" {
		t.Errorf("order ref = %q, want order_1", result.PaymentOrderRef)
	}
	// 60 minutes at the ccs2 rate of 200/hour
	if b.Amount != 200 {
		t.Errorf("amount = %.2f, want 200.00", b.Amount)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	start, _ := futureWindow(time.Hour, time.Hour)

	cases := []struct {
		name  string
		in    CreateBookingInput
		field string
	}{
		{"end before start", createInput(start, start.Add(-time.Hour)), "end_time"},
		{"duration not on grid", createInput(start, start.Add(45*time.Minute)), "duration"},
		{"duration too short", createInput(start, start.Add(15*time.Minute)), "duration"},
		{"duration too long", createInput(start, start.Add(6*time.Hour)), "duration"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateBooking(ctx, 42, tc.in, "10.0.0.1")
			ve, ok := AsValidationError(err)
			if !ok {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if ve.Field != tc.field {
				t.Errorf("field = %q, want %q", ve.Field, tc.field)
			}
		})
	}

	// lead time: starting in 5 minutes is too soon
	soon, soonEnd := futureWindow(5*time.Minute, time.Hour)
	if _, err := svc.CreateBooking(ctx, 42, createInput(soon, soonEnd), "10.0.0.1"); err == nil {
		t.Error("booking starting inside the lead window should be rejected")
	}

	// unoffered charger type
	start2, end2 := futureWindow(time.Hour, time.Hour)
	in := createInput(start2, end2)
	in.ChargerType = station.ChargerCHAdeMO
	if _, err := svc.CreateBooking(ctx, 42, in, "10.0.0.1"); err == nil {
		t.Error("unoffered charger type should be rejected")
	}
}

func TestCreateBookingChargeLevels(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	start, end := futureWindow(time.Hour, time.Hour)

	cases := []struct {
		name    string
		current int
		target  int
		field   string // empty means the booking must be admitted
	}{
		{"no charge levels", 0, 0, ""},
		{"valid range", 20, 80, ""},
		{"inverted levels", 90, 10, "target_charge"},
		{"equal levels", 50, 50, "target_charge"},
		{"current above 100", 150, 160, "current_charge"},
		{"negative current", -5, 80, "current_charge"},
		{"target above 100", 20, 130, "target_charge"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := createInput(start, end)
			in.ChargerType = station.ChargerType2 // capacity 3, never exhausted here
			in.CurrentCharge = tc.current
			in.TargetCharge = tc.target

			_, err := svc.CreateBooking(ctx, 42, in, "10.0.0.1")
			if tc.field == "" {
				if err != nil {
					t.Fatalf("CreateBooking: %v", err)
				}
				return
			}
			ve, ok := AsValidationError(err)
			if !ok {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if ve.Field != tc.field {
				t.Errorf("field = %q, want %q", ve.Field, tc.field)
			}
		})
	}
}

func TestCreateBookingIncompatibleVehicle(t *testing.T) {
	repo := newFakeRepo()
	gateway := &fakeGateway{}
	stationSvc := &fakeStationSvc{st: testStation()}
	vehicleSvc := &fakeVehicleSvc{
		veh:        &vehicle.Vehicle{ID: 7, UserID: 42},
		compatible: []station.ChargerType{station.ChargerType2}, // no ccs2
	}
	svc := NewService(repo, stationSvc, vehicleSvc, gateway, nil, 0, 0, 0)

	start, end := futureWindow(time.Hour, time.Hour)
	_, err := svc.CreateBooking(context.Background(), 42, createInput(start, end), "10.0.0.1")
	if _, ok := AsValidationError(err); !ok {
		t.Fatalf("err = %v, want ValidationError for incompatible charger", err)
	}

	// A vehicle with no connector data must never be auto-booked.
	vehicleSvc.noData = true
	if _, err := svc.CreateBooking(context.Background(), 42, createInput(start, end), "10.0.0.1"); err == nil {
		t.Error("vehicle without connector data should be rejected")
	}
}

func TestCreateBookingSomeoneElsesVehicle(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	start, end := futureWindow(time.Hour, time.Hour)
	_, err := svc.CreateBooking(context.Background(), 99, createInput(start, end), "10.0.0.1")
	if !errors.Is(err, ErrNotOwner) {
		t.Errorf("err = %v, want ErrNotOwner", err)
	}
}

func TestAdmissionExhaustsAtCapacity(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	start, end := futureWindow(time.Hour, time.Hour)
	for i := 0; i < 2; i++ {
		if _, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1"); err != nil {
			t.Fatalf("booking %d: %v", i, err)
		}
	}

	_, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1")
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("third ccs2 booking: err = %v, want ErrExhausted", err)
	}

	// A disjoint window is fine.
	laterStart, laterEnd := futureWindow(3*time.Hour, time.Hour)
	if _, err := svc.CreateBooking(ctx, 42, createInput(laterStart, laterEnd), "10.0.0.1"); err != nil {
		t.Errorf("disjoint window should be admitted: %v", err)
	}

	// Another type still has capacity.
	in := createInput(start, end)
	in.ChargerType = station.ChargerType2
	if _, err := svc.CreateBooking(ctx, 42, in, "10.0.0.1"); err != nil {
		t.Errorf("type2 booking should be admitted: %v", err)
	}
}

func TestConcurrentAdmissionNeverOverbooks(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	start, end := futureWindow(time.Hour, time.Hour)
	const contenders = 20 // ccs2 capacity is 2

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted, exhausted := 0, 0

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateBooking(context.Background(), 42, createInput(start, end), "10.0.0.1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, ErrExhausted):
				exhausted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if admitted != 2 {
		t.Errorf("admitted = %d, want exactly 2", admitted)
	}
	if exhausted != contenders-2 {
		t.Errorf("exhausted = %d, want %d", exhausted, contenders-2)
	}
}

func TestCancelReleasesCapacity(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	start, end := futureWindow(3*time.Hour, time.Hour)
	first, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1")
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1"); err != nil {
		t.Fatalf("second booking: %v", err)
	}
	if _, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1"); !errors.Is(err, ErrExhausted) {
		t.Fatalf("pool should be full, err = %v", err)
	}

	cancelled, err := svc.CancelBooking(ctx, 42, first.Booking.ID, "change of plans", "10.0.0.1")
	if err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
	if cancelled.CancellationReason != "change of plans" {
		t.Errorf("reason = %q", cancelled.CancellationReason)
	}

	// The freed slot is immediately admittable.
	if _, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1"); err != nil {
		t.Errorf("slot freed by cancellation should be admitted: %v", err)
	}
}

func TestCancelInsideCutoffRejected(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	// Starts in 90 minutes, inside the 120-minute cutoff. Creation is fine
	// (lead time is 10 minutes), cancellation is not.
	start, end := futureWindow(90*time.Minute, time.Hour)
	result, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1")
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	_, err = svc.CancelBooking(ctx, 42, result.Booking.ID, "too late", "10.0.0.1")
	if !errors.Is(err, ErrCancellationCutoff) {
		t.Errorf("err = %v, want ErrCancellationCutoff", err)
	}
	if repo.statusOf(result.Booking.ID) != StatusPendingPayment {
		t.Error("failed cancellation must not change the booking")
	}
}

func TestCancelOngoingBookingRejected(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	start, end := futureWindow(3*time.Hour, time.Hour)
	result, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1")
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if _, err := svc.VerifyPayment(ctx, VerifyPaymentInput{
		OrderRef:   result.PaymentOrderRef,
		PaymentRef: "pay_1",
		Signature:  "valid-signature",
	}, "10.0.0.1"); err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}

	// The session has started: charging is in progress.
	repo.mu.Lock()
	b := repo.rows[result.Booking.ID]
	b.StartTime = time.Now().UTC().Add(-10 * time.Minute)
	b.EndTime = time.Now().UTC().Add(50 * time.Minute)
	repo.mu.Unlock()
	if err := svc.PromoteDueBookings(ctx); err != nil {
		t.Fatalf("PromoteDueBookings: %v", err)
	}
	if repo.statusOf(result.Booking.ID) != StatusOngoing {
		t.Fatal("booking should be ongoing")
	}

	// Not a cutoff problem, a lifecycle one.
	_, err = svc.CancelBooking(ctx, 42, result.Booking.ID, "", "10.0.0.1")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
	if repo.statusOf(result.Booking.ID) != StatusOngoing {
		t.Error("failed cancellation must not change the booking")
	}
}

func TestCancelSomeoneElsesBooking(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	start, end := futureWindow(3*time.Hour, time.Hour)
	result, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1")
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	if _, err := svc.CancelBooking(ctx, 99, result.Booking.ID, "", "10.0.0.1"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("err = %v, want ErrNotOwner", err)
	}
}

func TestVerifyPaymentConfirms(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	start, end := futureWindow(3*time.Hour, time.Hour)
	result, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1")
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	proof := VerifyPaymentInput{
		OrderRef:   result.PaymentOrderRef,
		PaymentRef: "pay_123",
		Signature:  "valid-signature",
	}
	confirmed, err := svc.VerifyPayment(ctx, proof, "10.0.0.1")
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if confirmed.Status != StatusConfirmed {
		t.Errorf("status = %s, want confirmed", confirmed.Status)
	}

	// Retrying the same proof is an idempotent success.
	again, err := svc.VerifyPayment(ctx, proof, "10.0.0.1")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if again.Status != StatusConfirmed {
		t.Errorf("retry status = %s, want confirmed", again.Status)
	}
}

func TestVerifyPaymentBadSignature(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	start, end := futureWindow(3*time.Hour, time.Hour)
	result, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1")
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	_, err = svc.VerifyPayment(ctx, VerifyPaymentInput{
		OrderRef:   result.PaymentOrderRef,
		PaymentRef: "pay_123",
		Signature:  "forged",
	}, "10.0.0.1")
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("err = %v, want ErrVerificationFailed", err)
	}

	// Booking still pending; a correct proof may follow.
	if repo.statusOf(result.Booking.ID) != StatusPendingPayment {
		t.Error("failed verification must leave the booking pending")
	}
}

func TestVerifyPaymentUnknownOrder(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	_, err := svc.VerifyPayment(context.Background(), VerifyPaymentInput{
		OrderRef:   "order_nope",
		PaymentRef: "pay_1",
		Signature:  "valid-signature",
	}, "10.0.0.1")
	if !errors.Is(err, ErrBookingNotFound) {
		t.Errorf("err = %v, want ErrBookingNotFound", err)
	}
}

func TestExpirySweepReleasesUnpaid(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	start, end := futureWindow(3*time.Hour, time.Hour)
	result, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1")
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	// Not stale yet: sweep is a no-op.
	if n, err := svc.ExpireStalePending(ctx); err != nil || n != 0 {
		t.Fatalf("fresh sweep: n=%d err=%v", n, err)
	}

	repo.setCreatedAt(result.Booking.ID, time.Now().UTC().Add(-20*time.Minute))

	n, err := svc.ExpireStalePending(ctx)
	if err != nil {
		t.Fatalf("ExpireStalePending: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}
	if repo.statusOf(result.Booking.ID) != StatusExpired {
		t.Error("stale pending booking should be expired")
	}

	// Payment arriving after expiry is rejected and never resurrects the row.
	_, err = svc.VerifyPayment(ctx, VerifyPaymentInput{
		OrderRef:   result.PaymentOrderRef,
		PaymentRef: "pay_1",
		Signature:  "valid-signature",
	}, "10.0.0.1")
	if !errors.Is(err, ErrBookingExpired) {
		t.Errorf("err = %v, want ErrBookingExpired", err)
	}
	if repo.statusOf(result.Booking.ID) != StatusExpired {
		t.Error("late payment must not resurrect an expired booking")
	}

	// And the slot is free again.
	if _, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1"); err != nil {
		t.Errorf("slot freed by expiry should be admitted: %v", err)
	}
}

func TestExpirySweepSkipsPaid(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	start, end := futureWindow(3*time.Hour, time.Hour)
	result, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1")
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if _, err := svc.VerifyPayment(ctx, VerifyPaymentInput{
		OrderRef:   result.PaymentOrderRef,
		PaymentRef: "pay_1",
		Signature:  "valid-signature",
	}, "10.0.0.1"); err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}

	repo.setCreatedAt(result.Booking.ID, time.Now().UTC().Add(-20*time.Minute))

	if n, err := svc.ExpireStalePending(ctx); err != nil || n != 0 {
		t.Errorf("sweep touched a confirmed booking: n=%d err=%v", n, err)
	}
}

func TestEditBookingReschedules(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	start, end := futureWindow(3*time.Hour, time.Hour)
	result, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1")
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	newStart, newEnd := futureWindow(5*time.Hour, 90*time.Minute)
	updated, err := svc.EditBooking(ctx, 42, result.Booking.ID, EditBookingInput{
		ChargerType: station.ChargerType2,
		StartTime:   newStart,
		EndTime:     newEnd,
	}, "10.0.0.1")
	if err != nil {
		t.Fatalf("EditBooking: %v", err)
	}
	if updated.ChargerType != station.ChargerType2 {
		t.Errorf("charger type = %s, want type2", updated.ChargerType)
	}
	if !updated.StartTime.Equal(newStart) {
		t.Errorf("start = %v, want %v", updated.StartTime, newStart)
	}
	// 90 minutes at the default rate of 120/hour
	if updated.Amount != 180 {
		t.Errorf("amount = %.2f, want 180.00", updated.Amount)
	}
}

func TestEditBookingDoesNotCompeteWithItself(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	// Fill the ccs2 pool.
	start, end := futureWindow(3*time.Hour, time.Hour)
	first, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1"); err != nil {
		t.Fatalf("second: %v", err)
	}

	// Shifting the first booking by 30 minutes still overlaps its own old
	// window; its own reservation must not count against it, but the other
	// booking does, so the pool (capacity 2) has one competitor and one
	// free-ish slot: the reschedule must succeed.
	if _, err := svc.EditBooking(ctx, 42, first.Booking.ID, EditBookingInput{
		StartTime: start.Add(30 * time.Minute),
		EndTime:   end.Add(30 * time.Minute),
	}, "10.0.0.1"); err != nil {
		t.Fatalf("reschedule overlapping own window: %v", err)
	}
}

func TestStatusPromotionSweep(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	start, end := futureWindow(3*time.Hour, time.Hour)
	result, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1")
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if _, err := svc.VerifyPayment(ctx, VerifyPaymentInput{
		OrderRef:   result.PaymentOrderRef,
		PaymentRef: "pay_1",
		Signature:  "valid-signature",
	}, "10.0.0.1"); err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}

	// Before start: promotion does nothing.
	if err := svc.PromoteDueBookings(ctx); err != nil {
		t.Fatalf("PromoteDueBookings: %v", err)
	}
	if repo.statusOf(result.Booking.ID) != StatusConfirmed {
		t.Error("booking promoted before its start time")
	}

	// Simulate the window passing.
	repo.mu.Lock()
	b := repo.rows[result.Booking.ID]
	b.StartTime = time.Now().UTC().Add(-2 * time.Hour)
	b.EndTime = time.Now().UTC().Add(-time.Hour)
	repo.mu.Unlock()

	if err := svc.PromoteDueBookings(ctx); err != nil {
		t.Fatalf("PromoteDueBookings: %v", err)
	}
	if got := repo.statusOf(result.Booking.ID); got != StatusCompleted {
		t.Errorf("status after window passed = %s, want completed", got)
	}
}

func TestQueryAvailabilityReflectsBookings(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	start, end := futureWindow(time.Hour, time.Hour)
	if _, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1"); err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	snapshots, err := svc.QueryAvailability(ctx, 1, TimeWindow{Start: start, End: end})
	if err != nil {
		t.Fatalf("QueryAvailability: %v", err)
	}

	byType := make(map[station.ChargerType]AvailabilitySnapshot)
	for _, s := range snapshots {
		byType[s.ChargerType] = s
	}
	if snap := byType[station.ChargerCCS2]; snap.AvailableOfType != 1 || snap.ReservedOfType != 1 {
		t.Errorf("ccs2 snapshot = %+v, want 1 reserved / 1 available", snap)
	}
	if snap := byType[station.ChargerType2]; snap.AvailableOfType != 3 {
		t.Errorf("type2 snapshot = %+v, want 3 available", snap)
	}
}

func TestEditConflictLeavesOriginalUntouched(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	start, end := futureWindow(3*time.Hour, time.Hour)
	first, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1")
	if err != nil {
		t.Fatalf("first: %v", err)
	}

	// Saturate type2 in a later window.
	laterStart, laterEnd := futureWindow(6*time.Hour, time.Hour)
	for i := 0; i < 3; i++ {
		in := createInput(laterStart, laterEnd)
		in.ChargerType = station.ChargerType2
		if _, err := svc.CreateBooking(ctx, 42, in, "10.0.0.1"); err != nil {
			t.Fatalf("type2 filler %d: %v", i, err)
		}
	}

	// Moving the first booking into the saturated pool must fail and leave it
	// exactly as it was.
	_, err = svc.EditBooking(ctx, 42, first.Booking.ID, EditBookingInput{
		ChargerType: station.ChargerType2,
		StartTime:   laterStart,
		EndTime:     laterEnd,
	}, "10.0.0.1")
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}

	unchanged, err := repo.GetByID(ctx, first.Booking.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if unchanged.ChargerType != station.ChargerCCS2 || !unchanged.StartTime.Equal(start) {
		t.Errorf("failed edit mutated the booking: %+v", unchanged)
	}
}

// Full lifecycle against a single-charger pool: admission, rejection while
// held, release on expiry, successful retry.
func TestSingleChargerLifecycle(t *testing.T) {
	repo := newFakeRepo()
	gateway := &fakeGateway{}
	st := testStation()
	st.ChargerCapacity = datatypes.JSONMap{"ccs2": float64(1)}
	stationSvc := &fakeStationSvc{st: st}
	vehicleSvc := &fakeVehicleSvc{
		veh:        &vehicle.Vehicle{ID: 7, UserID: 42},
		compatible: []station.ChargerType{station.ChargerCCS2},
	}
	svc := NewService(repo, stationSvc, vehicleSvc, gateway, nil, 0, 0, 0)
	ctx := context.Background()

	start, end := futureWindow(3*time.Hour, time.Hour)

	a, err := svc.CreateBooking(ctx, 42, createInput(start, end), "10.0.0.1")
	if err != nil {
		t.Fatalf("booking A: %v", err)
	}
	if a.Booking.Status != StatusPendingPayment {
		t.Fatalf("A status = %s", a.Booking.Status)
	}

	overlapping := createInput(start.Add(30*time.Minute), end.Add(30*time.Minute))
	if _, err := svc.CreateBooking(ctx, 42, overlapping, "10.0.0.1"); !errors.Is(err, ErrExhausted) {
		t.Fatalf("booking B while A holds the slot: err = %v, want ErrExhausted", err)
	}

	// A never pays; the sweep releases the charger.
	repo.setCreatedAt(a.Booking.ID, time.Now().UTC().Add(-20*time.Minute))
	if n, err := svc.ExpireStalePending(ctx); err != nil || n != 1 {
		t.Fatalf("sweep: n=%d err=%v", n, err)
	}

	b, err := svc.CreateBooking(ctx, 42, overlapping, "10.0.0.1")
	if err != nil {
		t.Fatalf("booking B retry after expiry: %v", err)
	}
	if b.Booking.Status != StatusPendingPayment {
		t.Errorf("B status = %s", b.Booking.Status)
	}
}

func TestCreateBookingGatewayFailure(t *testing.T) {
	repo := newFakeRepo()
	svc, gateway := newTestService(repo)
	gateway.failing = true

	start, end := futureWindow(3*time.Hour, time.Hour)
	_, err := svc.CreateBooking(context.Background(), 42, createInput(start, end), "10.0.0.1")
	if err == nil {
		t.Fatal("expected error when gateway is down")
	}

	// The reservation stays pending and the expiry sweep reclaims it later;
	// capacity is not silently leaked forever.
	stale, err := repo.ListStalePending(context.Background(), time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("ListStalePending: %v", err)
	}
	if len(stale) != 1 {
		t.Errorf("pending rows = %d, want 1 awaiting the sweep", len(stale))
	}
}

package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sharath018/ev-charging-backend/internal/station"
)

type Repository interface {
	// TryReserve is the admission-control boundary: inside one transaction it
	// serializes on the (station, charger type) pool, recounts active
	// overlapping bookings and inserts the pending_payment row only if
	// capacity still holds. Returns ErrExhausted when the pool is full.
	TryReserve(ctx context.Context, totalOfType int, b *Booking) error

	// TryReschedule re-runs admission for new parameters, excluding the
	// edited booking's own row from the count. The original row is untouched
	// unless the reservation succeeds.
	TryReschedule(ctx context.Context, totalOfType int, bookingID uint, newType station.ChargerType, newWindow TimeWindow, newAmount float64) error

	// UpdateStatusCAS transitions id from -> to only when the row still holds
	// the from status. Returns false when another writer got there first.
	UpdateStatusCAS(ctx context.Context, id uint, from, to Status, reason string) (bool, error)

	GetByID(ctx context.Context, id uint) (*Booking, error)
	GetByRef(ctx context.Context, ref string) (*Booking, error)
	GetByOrderRef(ctx context.Context, orderRef string) (*Booking, error)
	SetPaymentOrder(ctx context.Context, id uint, orderRef string) error

	// ActiveOverlapping returns active bookings (all types) at a station
	// overlapping the window, for availability snapshots.
	ActiveOverlapping(ctx context.Context, stationID uint, window TimeWindow) ([]Booking, error)

	ListByUser(ctx context.Context, userID uint, filter Filter) ([]Booking, int64, error)
	ListByStation(ctx context.Context, stationID uint, filter Filter) ([]DetailedBooking, int64, error)
	CountByStatus(ctx context.Context, stationID uint) (StatusCounts, error)

	// ListStalePending returns pending_payment bookings created before the
	// cutoff, for the expiry sweep.
	ListStalePending(ctx context.Context, createdBefore time.Time) ([]Booking, error)

	// PromoteDue moves confirmed bookings whose start has passed to ongoing
	// and ongoing bookings whose end has passed to completed.
	PromoteDue(ctx context.Context, now time.Time) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}

// poolKey scopes the advisory lock to one (station, charger type) pool so
// concurrent admissions for unrelated pools never contend.
func poolKey(stationID uint, chargerType station.ChargerType) string {
	return fmt.Sprintf("booking_pool:%d:%s", stationID, chargerType)
}

func (r *repository) countActiveOverlapping(tx *gorm.DB, stationID uint, chargerType station.ChargerType, window TimeWindow, excludeID uint) (int64, error) {
	var reserved int64
	q := tx.Model(&Booking{}).
		Where("station_id = ? AND charger_type = ?", stationID, chargerType).
		Where("status IN ?", []Status{StatusPendingPayment, StatusConfirmed, StatusOngoing}).
		Where("start_time < ? AND ? < end_time", window.End, window.Start)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&reserved).Error
	return reserved, err
}

func (r *repository) TryReserve(ctx context.Context, totalOfType int, b *Booking) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// pg_advisory_xact_lock releases automatically on commit/rollback.
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", poolKey(b.StationID, b.ChargerType)).Error; err != nil {
			return fmt.Errorf("failed to acquire pool lock: %w", err)
		}

		reserved, err := r.countActiveOverlapping(tx, b.StationID, b.ChargerType, b.Window(), 0)
		if err != nil {
			return fmt.Errorf("failed to recount pool: %w", err)
		}
		if int(reserved) >= totalOfType {
			return ErrExhausted
		}

		b.Status = StatusPendingPayment
		b.StatusChangedAt = time.Now().UTC()
		return tx.Create(b).Error
	})
}

func (r *repository) TryReschedule(ctx context.Context, totalOfType int, bookingID uint, newType station.ChargerType, newWindow TimeWindow, newAmount float64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b Booking
		if err := tx.First(&b, bookingID).Error; err != nil {
			return err
		}

		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", poolKey(b.StationID, newType)).Error; err != nil {
			return fmt.Errorf("failed to acquire pool lock: %w", err)
		}

		// The edited booking must not compete with itself for capacity.
		reserved, err := r.countActiveOverlapping(tx, b.StationID, newType, newWindow, bookingID)
		if err != nil {
			return fmt.Errorf("failed to recount pool: %w", err)
		}
		if int(reserved) >= totalOfType {
			return ErrExhausted
		}

		return tx.Model(&Booking{}).
			Where("id = ?", bookingID).
			Updates(map[string]interface{}{
				"charger_type": newType,
				"start_time":   newWindow.Start,
				"end_time":     newWindow.End,
				"amount":       newAmount,
			}).Error
	})
}

func (r *repository) UpdateStatusCAS(ctx context.Context, id uint, from, to Status, reason string) (bool, error) {
	if err := ValidateTransition(from, to); err != nil {
		return false, err
	}

	updates := map[string]interface{}{
		"status":            to,
		"status_changed_at": time.Now().UTC(),
	}
	if to == StatusCancelled {
		now := time.Now().UTC()
		updates["cancelled_at"] = now
		updates["cancellation_reason"] = reason
	}

	res := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) GetByID(ctx context.Context, id uint) (*Booking, error) {
	var b Booking
	err := r.db.WithContext(ctx).First(&b, id).Error
	return &b, err
}

func (r *repository) GetByRef(ctx context.Context, ref string) (*Booking, error) {
	var b Booking
	err := r.db.WithContext(ctx).Where("booking_ref = ?", ref).First(&b).Error
	return &b, err
}

func (r *repository) GetByOrderRef(ctx context.Context, orderRef string) (*Booking, error) {
	var b Booking
	err := r.db.WithContext(ctx).Where("payment_order_ref = ?", orderRef).First(&b).Error
	return &b, err
}

func (r *repository) SetPaymentOrder(ctx context.Context, id uint, orderRef string) error {
	return r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ?", id).
		Update("payment_order_ref", orderRef).Error
}

func (r *repository) ActiveOverlapping(ctx context.Context, stationID uint, window TimeWindow) ([]Booking, error) {
	var bookings []Booking
	err := r.db.WithContext(ctx).
		Where("station_id = ?", stationID).
		Where("status IN ?", []Status{StatusPendingPayment, StatusConfirmed, StatusOngoing}).
		Where("start_time < ? AND ? < end_time", window.End, window.Start).
		Find(&bookings).Error
	return bookings, err
}

func (r *repository) ListByUser(ctx context.Context, userID uint, filter Filter) ([]Booking, int64, error) {
	var bookings []Booking
	var total int64

	query := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("user_id = ?", userID)

	query = applyFilter(query, "bookings", filter)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applySort(query, "bookings", filter)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	err := query.Find(&bookings).Error
	return bookings, total, err
}

func (r *repository) ListByStation(ctx context.Context, stationID uint, filter Filter) ([]DetailedBooking, int64, error) {
	var results []DetailedBooking
	var total int64

	query := r.db.WithContext(ctx).
		Table("bookings AS b").
		Select("b.*, u.full_name AS customer_name, u.phone AS customer_phone, v.make AS vehicle_make, v.model AS vehicle_model").
		Joins("JOIN users u ON u.id = b.user_id").
		Joins("JOIN vehicles v ON v.id = b.vehicle_id").
		Where("b.station_id = ?", stationID)

	query = applyFilter(query, "b", filter)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applySort(query, "b", filter)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	err := query.Scan(&results).Error
	return results, total, err
}

func applyFilter(query *gorm.DB, table string, filter Filter) *gorm.DB {
	if filter.Status != "" {
		query = query.Where(table+".status = ?", filter.Status)
	}
	if filter.FromDate != "" && filter.ToDate != "" {
		query = query.Where(table+".start_time BETWEEN ? AND ?", filter.FromDate, filter.ToDate+" 23:59:59")
	}
	return query
}

func applySort(query *gorm.DB, table string, filter Filter) *gorm.DB {
	sortBy := table + ".start_time"
	switch filter.SortBy {
	case "created_at", "start_time", "status":
		sortBy = table + "." + filter.SortBy
	}
	sortOrder := "DESC"
	if filter.SortOrder == "asc" {
		sortOrder = "ASC"
	}
	return query.Order(sortBy + " " + sortOrder)
}

func (r *repository) CountByStatus(ctx context.Context, stationID uint) (StatusCounts, error) {
	var counts StatusCounts

	rows, err := r.db.WithContext(ctx).Raw(`
		SELECT status, COUNT(*) as count
		FROM bookings
		WHERE station_id = ?
		GROUP BY status
	`, stationID).Rows()
	if err != nil {
		return counts, err
	}
	defer rows.Close()

	statusCounts := make(map[Status]int64)
	for rows.Next() {
		var status Status
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			continue
		}
		statusCounts[status] = count
		counts.Total += count
	}

	counts.PendingPayment = statusCounts[StatusPendingPayment]
	counts.Confirmed = statusCounts[StatusConfirmed]
	counts.Ongoing = statusCounts[StatusOngoing]
	counts.Completed = statusCounts[StatusCompleted]
	counts.Cancelled = statusCounts[StatusCancelled]
	counts.Expired = statusCounts[StatusExpired]

	return counts, nil
}

func (r *repository) ListStalePending(ctx context.Context, createdBefore time.Time) ([]Booking, error) {
	var bookings []Booking
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", StatusPendingPayment, createdBefore).
		Find(&bookings).Error
	return bookings, err
}

func (r *repository) PromoteDue(ctx context.Context, now time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("status = ? AND start_time <= ?", StatusConfirmed, now).
		Updates(map[string]interface{}{
			"status":            StatusOngoing,
			"status_changed_at": now,
		}).Error
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("status = ? AND end_time <= ?", StatusOngoing, now).
		Updates(map[string]interface{}{
			"status":            StatusCompleted,
			"status_changed_at": now,
		}).Error
}

// IsNotFound normalizes gorm's sentinel for callers outside the package.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

package booking

import (
	"context"
	"log"
	"time"
)

// Sweeper periodically expires unpaid pending bookings and promotes
// confirmed/ongoing bookings whose start or end has passed. One instance runs
// for the whole process; expiry itself is CAS-guarded so overlapping sweeps
// are harmless.
type Sweeper struct {
	svc      Service
	interval time.Duration
}

func NewSweeper(svc Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{svc: svc, interval: interval}
}

// Start runs the sweep loop until ctx is cancelled.
func (sw *Sweeper) Start(ctx context.Context) {
	log.Printf("🧹 Booking sweeper started (every %s)", sw.interval)
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("🧹 Booking sweeper stopped")
			return
		case <-ticker.C:
			sw.sweep(ctx)
		}
	}
}

func (sw *Sweeper) sweep(ctx context.Context) {
	expired, err := sw.svc.ExpireStalePending(ctx)
	if err != nil {
		log.Printf("⚠️ Expiry sweep failed: %v", err)
	} else if expired > 0 {
		log.Printf("🧹 Expired %d unpaid bookings", expired)
	}

	if err := sw.svc.PromoteDueBookings(ctx); err != nil {
		log.Printf("⚠️ Status promotion sweep failed: %v", err)
	}
}

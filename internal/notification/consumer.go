package notification

import (
	"context"
	"encoding/json"
	"log"

	"github.com/sharath018/ev-charging-backend/utils"
)

// StartKafkaConsumer reads booking events and writes in-app notifications
// until ctx is cancelled. Runs as one goroutine per process; the consumer
// group handles rebalancing if more instances come up.
func StartKafkaConsumer(ctx context.Context, svc Service) {
	reader := utils.NewBookingEventReader("notification-service")
	defer reader.Close()

	log.Println("📨 Notification consumer started")
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("📨 Notification consumer stopped")
				return
			}
			log.Printf("⚠️ Failed to read booking event: %v", err)
			continue
		}

		var evt utils.BookingEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			log.Printf("⚠️ Malformed booking event at offset %d: %v", msg.Offset, err)
			continue
		}

		if err := svc.RecordBookingEvent(ctx, evt); err != nil {
			log.Printf("⚠️ Failed to record notification for %s: %v", evt.BookingRef, err)
		}
	}
}

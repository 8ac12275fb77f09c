package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

var bookingWriter *kafka.Writer

// BookingEvent is the message published on every booking lifecycle change.
// The notification consumer turns these into in-app notifications.
type BookingEvent struct {
	Event       string    `json:"event"` // booking_created, booking_confirmed, booking_cancelled, booking_expired, booking_rescheduled
	BookingID   uint      `json:"booking_id"`
	BookingRef  string    `json:"booking_ref"`
	UserID      uint      `json:"user_id"`
	StationID   uint      `json:"station_id"`
	ChargerType string    `json:"charger_type"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// InitializeKafka sets up the booking-events writer. Kafka being down must not
// take the booking API down with it, so failures here only log.
func InitializeKafka() {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		brokers = "localhost:9092"
	}
	topic := os.Getenv("KAFKA_BOOKING_TOPIC")
	if topic == "" {
		topic = "booking-events"
	}

	bookingWriter = &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}

	log.Printf("✅ Kafka writer initialized (brokers=%s topic=%s)", brokers, topic)
}

// PublishBookingEvent emits a booking lifecycle event, keyed by station so all
// events for one station stay ordered on a single partition.
func PublishBookingEvent(ctx context.Context, evt BookingEvent) {
	if bookingWriter == nil {
		return
	}
	evt.OccurredAt = time.Now().UTC()

	payload, err := json.Marshal(evt)
	if err != nil {
		log.Printf("⚠️ Failed to marshal booking event: %v", err)
		return
	}

	err = bookingWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fmt.Sprintf("station-%d", evt.StationID)),
		Value: payload,
	})
	if err != nil {
		log.Printf("⚠️ Failed to publish booking event %s for booking %d: %v", evt.Event, evt.BookingID, err)
	}
}

// NewBookingEventReader returns a reader for the booking-events topic, used by
// the notification consumer.
func NewBookingEventReader(groupID string) *kafka.Reader {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		brokers = "localhost:9092"
	}
	topic := os.Getenv("KAFKA_BOOKING_TOPIC")
	if topic == "" {
		topic = "booking-events"
	}

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  strings.Split(brokers, ","),
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  2 * time.Second,
	})
}

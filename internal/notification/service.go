package notification

import (
	"context"
	"fmt"
	"log"

	"github.com/sharath018/ev-charging-backend/internal/auth"
	"github.com/sharath018/ev-charging-backend/internal/station"
	"github.com/sharath018/ev-charging-backend/utils"
)

type Service interface {
	RecordBookingEvent(ctx context.Context, evt utils.BookingEvent) error
	List(ctx context.Context, userID uint, limit, offset int) ([]InAppNotification, int64, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, id, userID uint) error
	MarkAllRead(ctx context.Context, userID uint) error
}

type service struct {
	repo        Repository
	authRepo    auth.Repository
	stationRepo station.Repository
}

func NewService(repo Repository, authRepo auth.Repository, stationRepo station.Repository) Service {
	return &service{repo: repo, authRepo: authRepo, stationRepo: stationRepo}
}

// RecordBookingEvent turns a booking lifecycle event into an in-app
// notification for the booking's owner. Confirmations also go out by email.
func (s *service) RecordBookingEvent(ctx context.Context, evt utils.BookingEvent) error {
	title, message, category := renderEvent(evt)
	if title == "" {
		return nil // unknown event type, skip
	}

	if err := s.repo.Create(ctx, &InAppNotification{
		UserID:    evt.UserID,
		StationID: evt.StationID,
		Title:     title,
		Message:   message,
		Category:  category,
	}); err != nil {
		return err
	}

	if evt.Event == "booking_confirmed" {
		s.emailConfirmation(ctx, evt)
	}
	return nil
}

func (s *service) emailConfirmation(ctx context.Context, evt utils.BookingEvent) {
	user, err := s.authRepo.FindByID(evt.UserID)
	if err != nil {
		log.Printf("⚠️ Confirmation email skipped, user %d not found: %v", evt.UserID, err)
		return
	}

	stationName := fmt.Sprintf("station #%d", evt.StationID)
	if st, err := s.stationRepo.GetByID(ctx, evt.StationID); err == nil {
		stationName = st.Name
	}

	if err := utils.SendBookingConfirmation(user.Email, stationName, evt.ChargerType, evt.StartTime, evt.EndTime); err != nil {
		log.Printf("⚠️ Failed to send confirmation email to %s: %v", user.Email, err)
	}
}

func renderEvent(evt utils.BookingEvent) (title, message, category string) {
	slot := fmt.Sprintf("%s %s-%s", evt.StartTime.Format("Jan 2"), evt.StartTime.Format("15:04"), evt.EndTime.Format("15:04"))

	switch evt.Event {
	case "booking_created":
		return "Booking created",
			fmt.Sprintf("Your booking %s for %s (%s) is awaiting payment.", evt.BookingRef, slot, evt.ChargerType),
			"booking"
	case "booking_confirmed":
		return "Booking confirmed",
			fmt.Sprintf("Payment received. Your charger is reserved for %s.", slot),
			"payment"
	case "booking_cancelled":
		return "Booking cancelled",
			fmt.Sprintf("Booking %s for %s has been cancelled.", evt.BookingRef, slot),
			"booking"
	case "booking_expired":
		return "Booking expired",
			fmt.Sprintf("Booking %s was not paid in time and has been released.", evt.BookingRef),
			"payment"
	case "booking_rescheduled":
		return "Booking rescheduled",
			fmt.Sprintf("Booking %s has been moved to %s (%s).", evt.BookingRef, slot, evt.ChargerType),
			"booking"
	}
	return "", "", ""
}

func (s *service) List(ctx context.Context, userID uint, limit, offset int) ([]InAppNotification, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

func (s *service) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *service) MarkRead(ctx context.Context, id, userID uint) error {
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *service) MarkAllRead(ctx context.Context, userID uint) error {
	return s.repo.MarkAllRead(ctx, userID)
}

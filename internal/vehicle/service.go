package vehicle

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sharath018/ev-charging-backend/internal/station"
)

var (
	ErrVehicleNotFound = errors.New("vehicle not found")
	ErrNotOwner        = errors.New("vehicle does not belong to this user")
)

type Service interface {
	AddVehicle(ctx context.Context, v *Vehicle) error
	UpdateVehicle(ctx context.Context, userID uint, v *Vehicle) error
	RemoveVehicle(ctx context.Context, userID, vehicleID uint) error
	GetVehicle(ctx context.Context, id uint) (*Vehicle, error)
	GetVehicleProfile(ctx context.Context, id uint) (ConnectorProfile, error)
	ListMyVehicles(ctx context.Context, userID uint) ([]Vehicle, error)

	// RankCompatibleTypes auto-selects the compatible charger types most
	// likely to be immediately bookable for this vehicle at a station.
	RankCompatibleTypes(ctx context.Context, vehicleID uint, offered []station.ChargerType, available map[station.ChargerType]int) ([]station.ChargerType, error)
}

type service struct {
	repo    Repository
	matcher *Matcher
}

func NewService(repo Repository, matcher *Matcher) Service {
	if matcher == nil {
		matcher = NewMatcher(nil)
	}
	return &service{repo: repo, matcher: matcher}
}

func (s *service) AddVehicle(ctx context.Context, v *Vehicle) error {
	return s.repo.Create(ctx, v)
}

func (s *service) UpdateVehicle(ctx context.Context, userID uint, v *Vehicle) error {
	existing, err := s.GetVehicle(ctx, v.ID)
	if err != nil {
		return err
	}
	if existing.UserID != userID {
		return ErrNotOwner
	}
	v.UserID = existing.UserID
	return s.repo.Update(ctx, v)
}

func (s *service) RemoveVehicle(ctx context.Context, userID, vehicleID uint) error {
	existing, err := s.GetVehicle(ctx, vehicleID)
	if err != nil {
		return err
	}
	if existing.UserID != userID {
		return ErrNotOwner
	}
	return s.repo.Delete(ctx, vehicleID)
}

func (s *service) GetVehicle(ctx context.Context, id uint) (*Vehicle, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVehicleNotFound
		}
		return nil, err
	}
	return v, nil
}

func (s *service) GetVehicleProfile(ctx context.Context, id uint) (ConnectorProfile, error) {
	v, err := s.GetVehicle(ctx, id)
	if err != nil {
		return ConnectorProfile{}, err
	}
	return v.Profile(), nil
}

func (s *service) ListMyVehicles(ctx context.Context, userID uint) ([]Vehicle, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) RankCompatibleTypes(ctx context.Context, vehicleID uint, offered []station.ChargerType, available map[station.ChargerType]int) ([]station.ChargerType, error) {
	profile, err := s.GetVehicleProfile(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	return s.matcher.RankByAvailability(profile, offered, available)
}

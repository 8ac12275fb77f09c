package station

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrStationNotFound = errors.New("station not found")

type Service interface {
	GetStation(ctx context.Context, id uint) (*Station, error)
	GetStationCapacity(ctx context.Context, id uint) (map[ChargerType]int, error)
	GetRate(ctx context.Context, id uint, chargerType ChargerType) (float64, error)
	ListStations(ctx context.Context, city string, limit, offset int) ([]Station, int64, error)
	ListOwnerStations(ctx context.Context, ownerID uint) ([]Station, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetStation(ctx context.Context, id uint) (*Station, error) {
	st, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStationNotFound
		}
		return nil, err
	}
	return st, nil
}

// GetStationCapacity returns the per-type charger counts the booking engine
// admits against. Read-only here; capacity is mutated by station management.
func (s *service) GetStationCapacity(ctx context.Context, id uint) (map[ChargerType]int, error) {
	st, err := s.GetStation(ctx, id)
	if err != nil {
		return nil, err
	}
	return st.CapacityMap(), nil
}

func (s *service) GetRate(ctx context.Context, id uint, chargerType ChargerType) (float64, error) {
	st, err := s.GetStation(ctx, id)
	if err != nil {
		return 0, err
	}
	return st.RateFor(chargerType), nil
}

func (s *service) ListStations(ctx context.Context, city string, limit, offset int) ([]Station, int64, error) {
	return s.repo.ListActive(ctx, city, limit, offset)
}

func (s *service) ListOwnerStations(ctx context.Context, ownerID uint) ([]Station, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

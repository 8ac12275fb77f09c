package station

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	GetByID(ctx context.Context, id uint) (*Station, error)
	ListActive(ctx context.Context, city string, limit, offset int) ([]Station, int64, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]Station, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}

func (r *repository) GetByID(ctx context.Context, id uint) (*Station, error) {
	var st Station
	err := r.db.WithContext(ctx).First(&st, id).Error
	return &st, err
}

func (r *repository) ListActive(ctx context.Context, city string, limit, offset int) ([]Station, int64, error) {
	var stations []Station
	var total int64

	query := r.db.WithContext(ctx).
		Model(&Station{}).
		Where("is_active = ? AND status = ?", true, "active")

	if city != "" {
		query = query.Where("city ILIKE ?", city)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("name")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	err := query.Find(&stations).Error
	return stations, total, err
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uint) ([]Station, error) {
	var stations []Station
	err := r.db.WithContext(ctx).
		Where("franchise_owner_id = ?", ownerID).
		Order("name").
		Find(&stations).Error
	return stations, err
}

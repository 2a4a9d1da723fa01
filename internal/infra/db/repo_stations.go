package db

import (
	"context"
	"errors"
	"strings"

	"stationportal/internal/domain"

	"gorm.io/gorm"
)

// Station is the read model served on portal station routes.
type Station struct {
	ID      int64
	Acronym string
	Name    string
}

type StationRepository struct {
	db *gorm.DB
}

func NewStationRepository(db *gorm.DB) *StationRepository {
	return &StationRepository{db: db}
}

func (r *StationRepository) List(ctx context.Context) ([]Station, error) {
	if r.db == nil {
		return nil, domain.ErrStoreUnavailable
	}
	var models []StationModel
	if err := r.db.WithContext(ctx).Order("acronym").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Station, 0, len(models))
	for _, m := range models {
		out = append(out, Station{ID: m.ID, Acronym: m.Acronym, Name: m.Name})
	}
	return out, nil
}

func (r *StationRepository) GetByAcronym(ctx context.Context, acronym string) (*Station, error) {
	if r.db == nil {
		return nil, domain.ErrStoreUnavailable
	}
	var model StationModel
	err := r.db.WithContext(ctx).
		Where("LOWER(acronym) = ?", strings.ToLower(acronym)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &Station{ID: model.ID, Acronym: model.Acronym, Name: model.Name}, nil
}

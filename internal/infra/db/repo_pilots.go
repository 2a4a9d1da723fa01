package db

import (
	"context"
	"errors"
	"strings"

	"stationportal/internal/domain"
	"stationportal/internal/infra/auth/identity"

	"gorm.io/gorm"
)

type PilotRepository struct {
	db *gorm.DB
}

func NewPilotRepository(db *gorm.DB) *PilotRepository {
	return &PilotRepository{db: db}
}

func (r *PilotRepository) FindActiveByEmail(ctx context.Context, email string) (*identity.Pilot, error) {
	if r.db == nil {
		return nil, domain.ErrStoreUnavailable
	}
	var model PilotModel
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ? AND active = ?", strings.ToLower(email), true).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	pilot := &identity.Pilot{
		ID:       model.ID,
		FullName: model.FullName,
		Email:    model.Email,
	}
	if model.AuthorizedStations != nil {
		pilot.AuthorizedStations = *model.AuthorizedStations
	}
	return pilot, nil
}

package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"stationportal/internal/domain"
	"stationportal/internal/infra/auth/identity"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindActiveByEmail matches case-insensitively and only considers active
// rows. Inactive accounts are indistinguishable from missing ones.
func (r *UserRepository) FindActiveByEmail(ctx context.Context, email string) (*identity.User, error) {
	if r.db == nil {
		return nil, domain.ErrStoreUnavailable
	}
	var model UserModel
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ? AND active = ?", strings.ToLower(email), true).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	user := &identity.User{
		ID:        model.ID,
		Username:  model.Username,
		Email:     model.Email,
		Role:      model.Role,
		StationID: model.StationID,
	}
	if model.StationAcronym != nil {
		user.StationAcronym = *model.StationAcronym
	}
	return user, nil
}

// TouchExternalLogin stamps last_external_login. Last write wins; callers
// invoke it fire-and-forget.
func (r *UserRepository) TouchExternalLogin(ctx context.Context, userID int64) error {
	if r.db == nil {
		return domain.ErrStoreUnavailable
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&UserModel{}).
		Where("id = ?", userID).
		Update("last_external_login", now).Error
}

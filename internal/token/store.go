package token

import (
	"context"
	"fmt"

	"github.com/autobid/auction-api/internal/database"
	"github.com/autobid/auction-api/internal/models"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const msgTokenNotFound = "Token not found"

// Store persists issued refresh tokens. Lookups and deletes match the
// token string exactly; a missing token is a NOT_FOUND AppError.
type Store interface {
	Save(ctx context.Context, rt *models.RefreshToken) error
	Find(ctx context.Context, token string) (*models.RefreshToken, error)
	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID uint) error
}

// SQLStore keeps refresh tokens in the relational database.
type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Save(ctx context.Context, rt *models.RefreshToken) error {
	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(rt).Error
	switch {
	case err == nil:
		return nil
	case database.IsForeignKeyViolation(err):
		return apperrors.NewAppError(apperrors.CodeNotFound, "User not found", err)
	case database.IsUniqueViolation(err):
		return apperrors.NewAppError(apperrors.CodeConflict, "Token already stored", err)
	default:
		return fmt.Errorf("token: save refresh token: %w", err)
	}
}

func (s *SQLStore) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&rt).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperrors.NotFound(msgTokenNotFound)
		}
		return nil, fmt.Errorf("token: find refresh token: %w", err)
	}
	return &rt, nil
}

func (s *SQLStore) Delete(ctx context.Context, token string) error {
	res := s.db.WithContext(ctx).Where("token = ?", token).Delete(&models.RefreshToken{})
	if res.Error != nil {
		return fmt.Errorf("token: delete refresh token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound(msgTokenNotFound)
	}
	return nil
}

func (s *SQLStore) DeleteByUser(ctx context.Context, userID uint) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
		return fmt.Errorf("token: delete user tokens: %w", err)
	}
	return nil
}

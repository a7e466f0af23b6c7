package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/autobid/auction-api/internal/database"
	"github.com/autobid/auction-api/internal/models"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateFeedback stores a rating and/or comment from one user about another.
func (s *Service) CreateFeedback(ctx context.Context, req models.FeedbackRequest) (*models.Feedback, error) {
	if err := models.Validate(req); err != nil {
		return nil, err
	}
	comment := req.Comment
	if comment != nil && strings.TrimSpace(*comment) == "" {
		comment = nil
	}
	if req.Rating == nil && comment == nil {
		return nil, apperrors.Validation("rating or comment is required")
	}

	feedback := &models.Feedback{
		SellerID: req.SellerID,
		BuyerID:  req.BuyerID,
		Rating:   req.Rating,
		Comment:  comment,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, &models.User{}, req.SellerID)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NotFound(msgSellerNotFound)
		}
		if ok, err = exists(tx, &models.User{}, req.BuyerID); err != nil {
			return err
		}
		if !ok {
			return apperrors.NotFound(msgBuyerNotFound)
		}
		return tx.Omit(clause.Associations).Create(feedback).Error
	})
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, apperrors.NewAppError(apperrors.CodeNotFound, "User not found", err)
		}
		return nil, wrap(err, "ledger: create feedback")
	}
	return feedback, nil
}

func (s *Service) ListFeedback(ctx context.Context) ([]models.Feedback, error) {
	var list []models.Feedback
	if err := s.db.WithContext(ctx).Order("id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("ledger: list feedback: %w", err)
	}
	return list, nil
}

func (s *Service) GetFeedback(ctx context.Context, id uint) (*models.Feedback, error) {
	var feedback models.Feedback
	if err := s.db.WithContext(ctx).First(&feedback, id).Error; err != nil {
		return nil, notFoundOr(err, msgFeedbackNotFound, "ledger: get feedback")
	}
	return &feedback, nil
}

func (s *Service) DeleteFeedback(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Feedback{}, id)
	if res.Error != nil {
		return fmt.Errorf("ledger: delete feedback: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound(msgFeedbackNotFound)
	}
	return nil
}

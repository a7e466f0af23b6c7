// Package ledger records auctions, the bids placed on them and feedback
// exchanged between users.
package ledger

import (
	"fmt"
	"time"

	"github.com/autobid/auction-api/internal/database"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	msgAuctionNotFound  = "Auction not found"
	msgCarNotFound      = "Car not found"
	msgBuyerNotFound    = "Buyer not found"
	msgSellerNotFound   = "Seller not found"
	msgFeedbackNotFound = "Feedback not found"
)

// Service is the auction ledger.
type Service struct {
	db     *gorm.DB
	logger *logrus.Logger
	now    func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now for bid windows and the sweeper.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(db *gorm.DB, logger *logrus.Logger, opts ...Option) *Service {
	s := &Service{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func notFoundOr(err error, message, op string) error {
	if database.IsNotFound(err) {
		return apperrors.NotFound(message)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func wrap(err error, op string) error {
	if apperrors.CodeOf(err) != apperrors.CodeInternalError {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// exists reports whether a row of model with the given id is present.
func exists(tx *gorm.DB, model interface{}, id uint) (bool, error) {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

package ledger

import (
	"context"
	"fmt"

	"github.com/autobid/auction-api/internal/database"
	"github.com/autobid/auction-api/internal/metrics"
	"github.com/autobid/auction-api/internal/models"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// transitions lists the legal status changes. Completed and canceled are
// terminal.
var transitions = map[models.AuctionStatus][]models.AuctionStatus{
	models.AuctionWaiting: {models.AuctionStarted, models.AuctionCanceled},
	models.AuctionStarted: {models.AuctionCompleted, models.AuctionCanceled},
}

// CanTransition reports whether an auction may move from one status to
// another. Staying in the same status is always allowed.
func CanTransition(from, to models.AuctionStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func validateAuction(req models.AuctionRequest) error {
	if err := models.Validate(req); err != nil {
		return err
	}
	if !req.EndTime.After(req.StartTime) {
		return apperrors.Validation("end_time must be after start_time")
	}
	return nil
}

// CreateAuction opens an auction for an existing car. Status defaults to
// waiting.
func (s *Service) CreateAuction(ctx context.Context, req models.AuctionRequest) (*models.Auction, error) {
	if err := validateAuction(req); err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = models.AuctionWaiting
	}

	auction := &models.Auction{
		CarID:      req.CarID,
		StartPrice: req.StartPrice,
		MinPrice:   req.MinPrice,
		StartTime:  req.StartTime.UTC(),
		EndTime:    req.EndTime.UTC(),
		Status:     status,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, &models.Car{}, req.CarID)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NotFound(msgCarNotFound)
		}
		return tx.Omit(clause.Associations).Create(auction).Error
	})
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, apperrors.NewAppError(apperrors.CodeNotFound, msgCarNotFound, err)
		}
		return nil, wrap(err, "ledger: create auction")
	}

	s.logger.WithFields(logrus.Fields{
		"auction_id": auction.ID,
		"car_id":     auction.CarID,
		"status":     auction.Status,
	}).Info("Auction created")
	return auction, nil
}

func (s *Service) ListAuctions(ctx context.Context) ([]models.Auction, error) {
	var auctions []models.Auction
	if err := s.db.WithContext(ctx).Order("id").Find(&auctions).Error; err != nil {
		return nil, fmt.Errorf("ledger: list auctions: %w", err)
	}
	return auctions, nil
}

func (s *Service) GetAuction(ctx context.Context, id uint) (*models.Auction, error) {
	var auction models.Auction
	if err := s.db.WithContext(ctx).First(&auction, id).Error; err != nil {
		return nil, notFoundOr(err, msgAuctionNotFound, "ledger: get auction")
	}
	return &auction, nil
}

// UpdateAuction replaces the auction's terms. The bid tally is kept, and
// a status change must be a legal transition.
func (s *Service) UpdateAuction(ctx context.Context, id uint, req models.AuctionRequest) (*models.Auction, error) {
	if err := validateAuction(req); err != nil {
		return nil, err
	}

	var (
		auction  models.Auction
		from, to models.AuctionStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&auction, id).Error; err != nil {
			return notFoundOr(err, msgAuctionNotFound, "ledger: get auction")
		}
		ok, err := exists(tx, &models.Car{}, req.CarID)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NotFound(msgCarNotFound)
		}

		from = auction.Status
		to = req.Status
		if to == "" {
			to = from
		}
		if !CanTransition(from, to) {
			return apperrors.Conflict(fmt.Sprintf("illegal status transition %s -> %s", from, to))
		}

		if err := tx.Model(&models.Auction{}).Where("id = ?", id).Updates(map[string]interface{}{
			"car_id":      req.CarID,
			"start_price": req.StartPrice,
			"min_price":   req.MinPrice,
			"start_time":  req.StartTime.UTC(),
			"end_time":    req.EndTime.UTC(),
			"status":      to,
		}).Error; err != nil {
			return err
		}
		return tx.First(&auction, id).Error
	})
	if err != nil {
		return nil, wrap(err, "ledger: update auction")
	}
	if from != to {
		metrics.RecordAuctionTransition(string(from), string(to))
		s.logger.WithFields(logrus.Fields{
			"auction_id": id,
			"from":       from,
			"to":         to,
		}).Info("Auction status changed")
	}
	return &auction, nil
}

// DeleteAuction removes the auction and its bids.
func (s *Service) DeleteAuction(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, &models.Auction{}, id)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NotFound(msgAuctionNotFound)
		}
		return database.DeleteAuctions(tx, []uint{id})
	})
	if err != nil {
		return wrap(err, "ledger: delete auction")
	}
	s.logger.WithField("auction_id", id).Info("Auction deleted")
	return nil
}

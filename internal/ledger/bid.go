package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/autobid/auction-api/internal/metrics"
	"github.com/autobid/auction-api/internal/models"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	msgNotAccepting = "auction is not accepting bids"
	msgBidTooLow    = "bid amount too low"
)

// PlaceBid records a bid if it beats the current highest bid. The auction
// row is advanced with a conditional update in the same transaction that
// inserts the bid, so two bids can never both win against the same
// previous maximum.
func (s *Service) PlaceBid(ctx context.Context, req models.BidRequest) (*models.Bid, error) {
	ctx, span := otel.Tracer("auction-api/ledger").Start(ctx, "ledger.PlaceBid")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("auction.id", int64(req.AuctionID)),
		attribute.Int64("buyer.id", int64(req.BuyerID)),
		attribute.Float64("bid.amount", req.Amount),
	)

	bid, err := s.placeBid(ctx, req)
	if err != nil {
		metrics.RecordBid(bidOutcome(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RecordBid("accepted")
	s.logger.WithFields(logrus.Fields{
		"auction_id": bid.AuctionID,
		"buyer_id":   bid.BuyerID,
		"amount":     bid.Amount,
	}).Info("Bid accepted")
	return bid, nil
}

func (s *Service) placeBid(ctx context.Context, req models.BidRequest) (*models.Bid, error) {
	if err := models.Validate(req); err != nil {
		return nil, err
	}
	if req.BuyerID == 0 {
		return nil, apperrors.Validation("buyer_id is required")
	}

	var bid *models.Bid
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var auction models.Auction
		if err := tx.First(&auction, req.AuctionID).Error; err != nil {
			return notFoundOr(err, msgAuctionNotFound, "get auction")
		}
		ok, err := exists(tx, &models.User{}, req.BuyerID)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NotFound(msgBuyerNotFound)
		}

		now := s.now().UTC()
		if auction.Status != models.AuctionStarted || now.Before(auction.StartTime) || now.After(auction.EndTime) {
			return apperrors.Conflict(msgNotAccepting)
		}
		if auction.MinPrice != nil && req.Amount < *auction.MinPrice {
			return apperrors.Validation(fmt.Sprintf("amount must be at least %.2f", *auction.MinPrice))
		}
		floor := auction.StartPrice
		if auction.HighestBid != nil {
			floor = *auction.HighestBid
		}
		if req.Amount <= floor {
			return apperrors.Conflict(msgBidTooLow)
		}

		res := tx.Model(&models.Auction{}).
			Where("id = ? AND status = ?", auction.ID, models.AuctionStarted).
			Where("(highest_bid IS NULL AND start_price < ?) OR highest_bid < ?", req.Amount, req.Amount).
			Updates(map[string]interface{}{
				"highest_bid": req.Amount,
				"bid_count":   gorm.Expr("bid_count + 1"),
			})
		if res.Error != nil {
			return fmt.Errorf("advance highest bid: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.Conflict(msgBidTooLow)
		}

		bid = &models.Bid{
			AuctionID:   auction.ID,
			BuyerID:     req.BuyerID,
			Amount:      req.Amount,
			CreatedDate: now,
		}
		return tx.Omit(clause.Associations).Create(bid).Error
	})
	if err != nil {
		return nil, wrap(err, "ledger: place bid")
	}
	return bid, nil
}

// bidOutcome labels a rejected bid for the bids counter.
func bidOutcome(err error) string {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return "error"
	}
	switch {
	case appErr.Code == apperrors.CodeValidation:
		return "invalid"
	case appErr.Code == apperrors.CodeNotFound:
		return "not_found"
	case appErr.Message == msgNotAccepting:
		return "closed"
	case appErr.Message == msgBidTooLow:
		return "too_low"
	default:
		return "error"
	}
}

// ListBids returns all bids, or only those of one auction, in the order
// they were placed.
func (s *Service) ListBids(ctx context.Context, auctionID *uint) ([]models.Bid, error) {
	q := s.db.WithContext(ctx).Order("id")
	if auctionID != nil {
		q = q.Where("auction_id = ?", *auctionID)
	}
	var bids []models.Bid
	if err := q.Find(&bids).Error; err != nil {
		return nil, fmt.Errorf("ledger: list bids: %w", err)
	}
	return bids, nil
}

package routes

import (
	"strconv"

	"github.com/autobid/auction-api/internal/logging"
	"github.com/autobid/auction-api/internal/middleware"
	"github.com/autobid/auction-api/internal/models"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// AuctionHandler serves auctions, bids and feedback
type AuctionHandler struct {
	auctions AuctionService
	logger   *logrus.Logger
}

func NewAuctionHandler(auctions AuctionService, logger *logrus.Logger) *AuctionHandler {
	return &AuctionHandler{auctions: auctions, logger: logger}
}

// CreateAuction
// @Summary Create auction
// @Tags Auction
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body models.AuctionRequest true "Auction"
// @Success 201 {object} models.Auction
// @Failure 404 {object} errors.ErrorResponse "Car not found"
// @Failure 422 {object} errors.ErrorResponse "Invalid window or prices"
// @Router /auction [post]
func (h *AuctionHandler) CreateAuction(c *fiber.Ctx) error {
	var req models.AuctionRequest
	if err := parseBody(c, &req); err != nil {
		return middleware.WriteError(c, err)
	}
	auction, err := h.auctions.CreateAuction(c.UserContext(), req)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	logging.FromCtx(h.logger, c).WithFields(logrus.Fields{
		"auction_id": auction.ID,
		"car_id":     auction.CarID,
	}).Info("Auction created")
	return c.Status(fiber.StatusCreated).JSON(auction)
}

// ListAuctions
// @Summary List auctions
// @Tags Auction
// @Produce json
// @Success 200 {array} models.Auction
// @Router /auction [get]
func (h *AuctionHandler) ListAuctions(c *fiber.Ctx) error {
	auctions, err := h.auctions.ListAuctions(c.UserContext())
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(auctions)
}

// GetAuction
// @Summary Auction detail
// @Tags Auction
// @Produce json
// @Param id path int true "Auction ID"
// @Success 200 {object} models.Auction
// @Failure 404 {object} errors.ErrorResponse
// @Router /auction/{id} [get]
func (h *AuctionHandler) GetAuction(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return middleware.WriteError(c, err)
	}
	auction, err := h.auctions.GetAuction(c.UserContext(), id)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(auction)
}

// UpdateAuction replaces an auction's fields and moves its status
// @Summary Update auction
// @Tags Auction
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "Auction ID"
// @Param request body models.AuctionRequest true "Auction"
// @Success 200 {object} models.Auction
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse "Illegal status transition"
// @Router /auction/{id} [put]
func (h *AuctionHandler) UpdateAuction(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return middleware.WriteError(c, err)
	}
	var req models.AuctionRequest
	if err := parseBody(c, &req); err != nil {
		return middleware.WriteError(c, err)
	}
	auction, err := h.auctions.UpdateAuction(c.UserContext(), id, req)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(auction)
}

// DeleteAuction removes an auction and its bids
// @Summary Delete auction
// @Tags Auction
// @Produce json
// @Security Bearer
// @Param id path int true "Auction ID"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /auction/{id} [delete]
func (h *AuctionHandler) DeleteAuction(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return middleware.WriteError(c, err)
	}
	if err := h.auctions.DeleteAuction(c.UserContext(), id); err != nil {
		return middleware.WriteError(c, err)
	}
	logging.FromCtx(h.logger, c).WithField("auction_id", id).Info("Auction deleted")
	return c.JSON(deletedResponse)
}

// PlaceBid offers an amount on a running auction. buyer_id defaults to the
// caller.
// @Summary Place bid
// @Tags Bid
// @Accept json
// @Produce json
// @Security Bearer
// @Param Idempotency-Key header string false "UUID for safe retries"
// @Param request body models.BidRequest true "Bid"
// @Success 201 {object} models.Bid
// @Failure 404 {object} errors.ErrorResponse "Auction or buyer not found"
// @Failure 409 {object} errors.ErrorResponse "Not accepting bids or amount too low"
// @Failure 422 {object} errors.ErrorResponse "Below the minimum price"
// @Router /bid [post]
func (h *AuctionHandler) PlaceBid(c *fiber.Ctx) error {
	var req models.BidRequest
	if err := parseBody(c, &req); err != nil {
		return middleware.WriteError(c, err)
	}
	buyerID, err := ownerID(c, req.BuyerID, "buyer_id")
	if err != nil {
		return middleware.WriteError(c, err)
	}
	req.BuyerID = buyerID

	bid, err := h.auctions.PlaceBid(c.UserContext(), req)
	if err != nil {
		logging.FromCtx(h.logger, c).WithError(err).WithField("auction_id", req.AuctionID).Debug("Bid rejected")
		return middleware.WriteError(c, err)
	}
	logging.FromCtx(h.logger, c).WithFields(logrus.Fields{
		"auction_id": bid.AuctionID,
		"bid_id":     bid.ID,
		"amount":     bid.Amount,
	}).Info("Bid placed")
	return c.Status(fiber.StatusCreated).JSON(bid)
}

// ListBids
// @Summary List bids
// @Tags Bid
// @Produce json
// @Param auction_id query int false "Only bids of this auction"
// @Success 200 {array} models.Bid
// @Router /bid [get]
func (h *AuctionHandler) ListBids(c *fiber.Ctx) error {
	var auctionID *uint
	if raw := c.Query("auction_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return middleware.WriteError(c, apperrors.NewAppError(apperrors.CodeBadRequest, "Invalid auction_id", err))
		}
		v := uint(id)
		auctionID = &v
	}
	bids, err := h.auctions.ListBids(c.UserContext(), auctionID)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(bids)
}

// CreateFeedback
// @Summary Leave feedback
// @Tags Feedback
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body models.FeedbackRequest true "Feedback"
// @Success 201 {object} models.Feedback
// @Failure 403 {object} errors.ErrorResponse "buyer_id is not the caller"
// @Failure 404 {object} errors.ErrorResponse "Seller or buyer not found"
// @Failure 422 {object} errors.ErrorResponse "Rating out of range or empty feedback"
// @Router /feedback [post]
func (h *AuctionHandler) CreateFeedback(c *fiber.Ctx) error {
	var req models.FeedbackRequest
	if err := parseBody(c, &req); err != nil {
		return middleware.WriteError(c, err)
	}
	buyerID, err := ownerID(c, req.BuyerID, "buyer_id")
	if err != nil {
		return middleware.WriteError(c, err)
	}
	req.BuyerID = buyerID

	feedback, err := h.auctions.CreateFeedback(c.UserContext(), req)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(feedback)
}

// ListFeedback
// @Summary List feedback
// @Tags Feedback
// @Produce json
// @Success 200 {array} models.Feedback
// @Router /feedback [get]
func (h *AuctionHandler) ListFeedback(c *fiber.Ctx) error {
	list, err := h.auctions.ListFeedback(c.UserContext())
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(list)
}

// GetFeedback
// @Summary Feedback detail
// @Tags Feedback
// @Produce json
// @Param id path int true "Feedback ID"
// @Success 200 {object} models.Feedback
// @Failure 404 {object} errors.ErrorResponse
// @Router /feedback/{id} [get]
func (h *AuctionHandler) GetFeedback(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return middleware.WriteError(c, err)
	}
	feedback, err := h.auctions.GetFeedback(c.UserContext(), id)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(feedback)
}

// DeleteFeedback
// @Summary Delete feedback
// @Tags Feedback
// @Produce json
// @Security Bearer
// @Param id path int true "Feedback ID"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /feedback/{id} [delete]
func (h *AuctionHandler) DeleteFeedback(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return middleware.WriteError(c, err)
	}
	if err := h.auctions.DeleteFeedback(c.UserContext(), id); err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(deletedResponse)
}

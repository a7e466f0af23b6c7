package models

import "time"

type AuctionStatus string

const (
	AuctionWaiting   AuctionStatus = "waiting"
	AuctionStarted   AuctionStatus = "started"
	AuctionCompleted AuctionStatus = "completed"
	AuctionCanceled  AuctionStatus = "canceled"
)

// Valid reports whether s is one of the known statuses.
func (s AuctionStatus) Valid() bool {
	switch s {
	case AuctionWaiting, AuctionStarted, AuctionCompleted, AuctionCanceled:
		return true
	}
	return false
}

// Auction is a timed sale of one car. HighestBid and BidCount are
// maintained by bid placement.
type Auction struct {
	ID         uint          `json:"id" gorm:"primaryKey"`
	CarID      uint          `json:"car_id" gorm:"index;not null"`
	StartPrice float64       `json:"start_price" gorm:"not null"`
	MinPrice   *float64      `json:"min_price"`
	StartTime  time.Time     `json:"start_time" gorm:"not null"`
	EndTime    time.Time     `json:"end_time" gorm:"not null"`
	Status     AuctionStatus `json:"status" gorm:"size:16;index;not null"`
	HighestBid *float64      `json:"highest_bid"`
	BidCount   int           `json:"bid_count" gorm:"not null;default:0"`

	Car Car `json:"-" gorm:"foreignKey:CarID"`
}

// Bid is an offer by a buyer on an auction
type Bid struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	AuctionID   uint      `json:"auction_id" gorm:"index;not null"`
	BuyerID     uint      `json:"buyer_id" gorm:"index;not null"`
	Amount      float64   `json:"amount" gorm:"not null"`
	CreatedDate time.Time `json:"created_date" gorm:"not null"`

	Auction Auction `json:"-" gorm:"foreignKey:AuctionID"`
	Buyer   User    `json:"-" gorm:"foreignKey:BuyerID"`
}

// Feedback is a rating and/or comment between a seller and a buyer
type Feedback struct {
	ID       uint    `json:"id" gorm:"primaryKey"`
	SellerID uint    `json:"seller_id" gorm:"index;not null"`
	BuyerID  uint    `json:"buyer_id" gorm:"index;not null"`
	Rating   *int    `json:"rating"`
	Comment  *string `json:"comment" gorm:"type:text"`

	Seller User `json:"-" gorm:"foreignKey:SellerID"`
	Buyer  User `json:"-" gorm:"foreignKey:BuyerID"`
}

type AuctionRequest struct {
	CarID      uint          `json:"car_id" validate:"required"`
	StartPrice float64       `json:"start_price" validate:"min=0"`
	MinPrice   *float64      `json:"min_price" validate:"omitempty,min=0"`
	StartTime  time.Time     `json:"start_time" validate:"required"`
	EndTime    time.Time     `json:"end_time" validate:"required"`
	Status     AuctionStatus `json:"status" validate:"omitempty,oneof=waiting started completed canceled"`
}

type BidRequest struct {
	AuctionID uint    `json:"auction_id" validate:"required"`
	BuyerID   uint    `json:"buyer_id"`
	Amount    float64 `json:"amount" validate:"gt=0"`
}

type FeedbackRequest struct {
	SellerID uint    `json:"seller_id" validate:"required"`
	BuyerID  uint    `json:"buyer_id" validate:"required"`
	Rating   *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Comment  *string `json:"comment" validate:"omitempty,max=2000"`
}

package database

import (
	"fmt"

	"github.com/autobid/auction-api/internal/models"

	"gorm.io/gorm"
)

// The ownership graph is User -> Cars, Feedback, Bids, RefreshTokens;
// Car -> CarImages, Auctions; Auction -> Bids. Callers run these inside a
// transaction so children and parent disappear together.

// DeleteAuctions removes the auctions and their bids.
func DeleteAuctions(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("auction_id IN ?", ids).Delete(&models.Bid{}).Error; err != nil {
		return fmt.Errorf("delete bids: %w", err)
	}
	if err := tx.Where("id IN ?", ids).Delete(&models.Auction{}).Error; err != nil {
		return fmt.Errorf("delete auctions: %w", err)
	}
	return nil
}

// DeleteCars removes the cars with their images, auctions and bids.
func DeleteCars(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("car_id IN ?", ids).Delete(&models.CarImage{}).Error; err != nil {
		return fmt.Errorf("delete car images: %w", err)
	}

	var auctionIDs []uint
	if err := tx.Model(&models.Auction{}).Where("car_id IN ?", ids).Pluck("id", &auctionIDs).Error; err != nil {
		return fmt.Errorf("list auctions: %w", err)
	}
	if err := DeleteAuctions(tx, auctionIDs); err != nil {
		return err
	}

	if err := tx.Where("id IN ?", ids).Delete(&models.Car{}).Error; err != nil {
		return fmt.Errorf("delete cars: %w", err)
	}
	return nil
}

// DeleteUser removes a user and everything the user owns or took part in.
func DeleteUser(tx *gorm.DB, id uint) error {
	var carIDs []uint
	if err := tx.Model(&models.Car{}).Where("seller_id = ?", id).Pluck("id", &carIDs).Error; err != nil {
		return fmt.Errorf("list cars: %w", err)
	}
	if err := DeleteCars(tx, carIDs); err != nil {
		return err
	}

	if err := tx.Where("buyer_id = ?", id).Delete(&models.Bid{}).Error; err != nil {
		return fmt.Errorf("delete bids: %w", err)
	}
	if err := tx.Where("seller_id = ? OR buyer_id = ?", id, id).Delete(&models.Feedback{}).Error; err != nil {
		return fmt.Errorf("delete feedback: %w", err)
	}
	if err := tx.Where("user_id = ?", id).Delete(&models.RefreshToken{}).Error; err != nil {
		return fmt.Errorf("delete refresh tokens: %w", err)
	}
	if err := tx.Delete(&models.User{}, id).Error; err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

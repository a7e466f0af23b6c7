package routes

import (
	"context"
	"io"

	"github.com/autobid/auction-api/internal/models"

	"github.com/gofiber/fiber/v2"
)

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

// UserService manages accounts.
type UserService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	Get(ctx context.Context, id uint) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Delete(ctx context.Context, id uint) error
}

// TokenService issues and revokes session tokens.
type TokenService interface {
	Login(ctx context.Context, email, password string) (*models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (*models.AccessTokenResponse, error)
	RevokeAll(ctx context.Context, userID uint) error
}

// CatalogService owns brands, models, cars and their images.
type CatalogService interface {
	ListBrands(ctx context.Context) ([]models.Brand, error)
	CreateBrand(ctx context.Context, req models.BrandRequest) (*models.Brand, error)
	BrandDetail(ctx context.Context, id uint) (*models.BrandDetail, error)
	ListModels(ctx context.Context) ([]models.CarModel, error)
	CreateModel(ctx context.Context, req models.ModelRequest) (*models.CarModel, error)
	ModelDetail(ctx context.Context, id uint) (*models.ModelDetail, error)
	CreateCar(ctx context.Context, req models.CarRequest) (*models.Car, error)
	ListCars(ctx context.Context, skip, limit int) (*models.CarPage, error)
	GetCar(ctx context.Context, id uint) (*models.CarWithImages, error)
	UpdateCar(ctx context.Context, id uint, req models.CarRequest) (*models.Car, error)
	DeleteCar(ctx context.Context, id uint) error
	CreateImage(ctx context.Context, req models.CarImageRequest) (*models.CarImage, error)
	UploadImage(ctx context.Context, carID uint, filename string, content io.Reader, size int64, contentType string) (*models.CarImage, error)
	ListImages(ctx context.Context) ([]models.CarImage, error)
	DeleteImage(ctx context.Context, id uint) error
}

// AuctionService owns auctions, bids and feedback.
type AuctionService interface {
	CreateAuction(ctx context.Context, req models.AuctionRequest) (*models.Auction, error)
	ListAuctions(ctx context.Context) ([]models.Auction, error)
	GetAuction(ctx context.Context, id uint) (*models.Auction, error)
	UpdateAuction(ctx context.Context, id uint, req models.AuctionRequest) (*models.Auction, error)
	DeleteAuction(ctx context.Context, id uint) error
	PlaceBid(ctx context.Context, req models.BidRequest) (*models.Bid, error)
	ListBids(ctx context.Context, auctionID *uint) ([]models.Bid, error)
	CreateFeedback(ctx context.Context, req models.FeedbackRequest) (*models.Feedback, error)
	ListFeedback(ctx context.Context) ([]models.Feedback, error)
	GetFeedback(ctx context.Context, id uint) (*models.Feedback, error)
	DeleteFeedback(ctx context.Context, id uint) error
}

// OAuthRedirector starts a social login.
type OAuthRedirector interface {
	Redirect(c *fiber.Ctx, provider string) error
}

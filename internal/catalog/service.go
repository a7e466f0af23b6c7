// Package catalog manages brands, models, cars and car images.
package catalog

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/autobid/auction-api/internal/database"
	"github.com/autobid/auction-api/internal/models"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	msgBrandNotFound = "Brand not found"
	msgModelNotFound = "Model not found"
	msgCarNotFound   = "Car not found"
	msgImageNotFound = "Image not found"
	msgSellerMissing = "Seller not found"
	msgPairMismatch  = "Brand or model does not match"
)

// ImageStore uploads image bytes and returns a reference to them.
type ImageStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// Service is the catalog store.
type Service struct {
	db           *gorm.DB
	images       ImageStore
	logger       *logrus.Logger
	defaultLimit int
	maxLimit     int
}

type Option func(*Service)

// WithImageStore enables UploadImage.
func WithImageStore(store ImageStore) Option {
	return func(s *Service) { s.images = store }
}

// WithPageLimits sets the default and maximum page size of ListCars.
func WithPageLimits(defaultLimit, maxLimit int) Option {
	return func(s *Service) {
		s.defaultLimit = defaultLimit
		s.maxLimit = maxLimit
	}
}

func NewService(db *gorm.DB, logger *logrus.Logger, opts ...Option) *Service {
	s := &Service{
		db:           db,
		logger:       logger,
		defaultLimit: 3,
		maxLimit:     100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ListBrands(ctx context.Context) ([]models.Brand, error) {
	var brands []models.Brand
	if err := s.db.WithContext(ctx).Order("id").Find(&brands).Error; err != nil {
		return nil, fmt.Errorf("catalog: list brands: %w", err)
	}
	return brands, nil
}

func (s *Service) CreateBrand(ctx context.Context, req models.BrandRequest) (*models.Brand, error) {
	if err := models.Validate(req); err != nil {
		return nil, err
	}
	brand := &models.Brand{BrandName: req.BrandName}
	if err := s.db.WithContext(ctx).Create(brand).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.NewAppError(apperrors.CodeConflict, "Brand already exists", err)
		}
		return nil, fmt.Errorf("catalog: create brand: %w", err)
	}
	return brand, nil
}

// BrandDetail returns the brand with all of its cars.
func (s *Service) BrandDetail(ctx context.Context, id uint) (*models.BrandDetail, error) {
	db := s.db.WithContext(ctx)
	var brand models.Brand
	if err := db.First(&brand, id).Error; err != nil {
		return nil, notFoundOr(err, msgBrandNotFound, "catalog: get brand")
	}
	var cars []models.Car
	if err := db.Where("brand_id = ?", id).Order("id").Find(&cars).Error; err != nil {
		return nil, fmt.Errorf("catalog: list brand cars: %w", err)
	}
	return &models.BrandDetail{ID: brand.ID, BrandName: brand.BrandName, BrandCars: cars}, nil
}

func (s *Service) ListModels(ctx context.Context) ([]models.CarModel, error) {
	var list []models.CarModel
	if err := s.db.WithContext(ctx).Order("id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("catalog: list models: %w", err)
	}
	return list, nil
}

func (s *Service) CreateModel(ctx context.Context, req models.ModelRequest) (*models.CarModel, error) {
	if err := models.Validate(req); err != nil {
		return nil, err
	}
	model := &models.CarModel{ModelName: req.ModelName, BrandID: req.BrandID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Brand{}, req.BrandID).Error; err != nil {
			return notFoundOr(err, msgBrandNotFound, "catalog: get brand")
		}
		return tx.Omit(clause.Associations).Create(model).Error
	})
	switch {
	case err == nil:
		return model, nil
	case database.IsUniqueViolation(err):
		return nil, apperrors.NewAppError(apperrors.CodeConflict, "Model already exists", err)
	case database.IsForeignKeyViolation(err):
		return nil, apperrors.NewAppError(apperrors.CodeNotFound, msgBrandNotFound, err)
	default:
		return nil, wrap(err, "catalog: create model")
	}
}

// ModelDetail returns the model with all of its cars.
func (s *Service) ModelDetail(ctx context.Context, id uint) (*models.ModelDetail, error) {
	db := s.db.WithContext(ctx)
	var model models.CarModel
	if err := db.First(&model, id).Error; err != nil {
		return nil, notFoundOr(err, msgModelNotFound, "catalog: get model")
	}
	var cars []models.Car
	if err := db.Where("model_id = ?", id).Order("id").Find(&cars).Error; err != nil {
		return nil, fmt.Errorf("catalog: list model cars: %w", err)
	}
	return &models.ModelDetail{ID: model.ID, ModelName: model.ModelName, ModelCars: cars}, nil
}

// CreateCar lists a car. The seller must exist and the model must belong
// to the given brand.
func (s *Service) CreateCar(ctx context.Context, req models.CarRequest) (*models.Car, error) {
	if err := models.Validate(req); err != nil {
		return nil, err
	}
	car := &models.Car{}
	applyCar(car, req)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkLinkage(tx, req.SellerID, req.BrandID, req.ModelID); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(car).Error
	})
	if err != nil {
		return nil, carWriteError(err, "catalog: create car")
	}

	s.logger.WithFields(logrus.Fields{
		"car_id":    car.ID,
		"seller_id": car.SellerID,
	}).Info("Car created")
	return car, nil
}

// ListCars returns one page of cars with their image references and the
// total number of cars.
func (s *Service) ListCars(ctx context.Context, skip, limit int) (*models.CarPage, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	db := s.db.WithContext(ctx)
	var total int64
	if err := db.Model(&models.Car{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("catalog: count cars: %w", err)
	}

	var cars []models.Car
	if err := db.Order("id").Offset(skip).Limit(limit).Find(&cars).Error; err != nil {
		return nil, fmt.Errorf("catalog: list cars: %w", err)
	}

	refs, err := s.imageRefs(db, cars)
	if err != nil {
		return nil, err
	}

	page := &models.CarPage{
		Total: total,
		Skip:  skip,
		Limit: limit,
		Cars:  make([]models.CarWithImages, 0, len(cars)),
	}
	for _, car := range cars {
		page.Cars = append(page.Cars, models.CarWithImages{Car: car, ImageURL: refs[car.ID]})
	}
	return page, nil
}

func (s *Service) GetCar(ctx context.Context, id uint) (*models.CarWithImages, error) {
	db := s.db.WithContext(ctx)
	var car models.Car
	if err := db.First(&car, id).Error; err != nil {
		return nil, notFoundOr(err, msgCarNotFound, "catalog: get car")
	}
	refs, err := s.imageRefs(db, []models.Car{car})
	if err != nil {
		return nil, err
	}
	return &models.CarWithImages{Car: car, ImageURL: refs[car.ID]}, nil
}

// UpdateCar replaces every mutable field of a car. The stored row and the
// new seller/brand/model must both pass the linkage check.
func (s *Service) UpdateCar(ctx context.Context, id uint, req models.CarRequest) (*models.Car, error) {
	if err := models.Validate(req); err != nil {
		return nil, err
	}

	var car models.Car
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&car, id).Error; err != nil {
			return notFoundOr(err, msgCarNotFound, "catalog: get car")
		}
		if err := checkLinkage(tx, car.SellerID, car.BrandID, car.ModelID); err != nil {
			return err
		}
		if err := checkLinkage(tx, req.SellerID, req.BrandID, req.ModelID); err != nil {
			return err
		}
		applyCar(&car, req)
		return tx.Omit(clause.Associations).Save(&car).Error
	})
	if err != nil {
		return nil, carWriteError(err, "catalog: update car")
	}
	return &car, nil
}

// DeleteCar removes the car with its images, auctions and bids.
func (s *Service) DeleteCar(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Car{}, id).Error; err != nil {
			return notFoundOr(err, msgCarNotFound, "catalog: get car")
		}
		return database.DeleteCars(tx, []uint{id})
	})
	if err != nil {
		return wrap(err, "catalog: delete car")
	}
	s.logger.WithField("car_id", id).Info("Car deleted")
	return nil
}

func (s *Service) CreateImage(ctx context.Context, req models.CarImageRequest) (*models.CarImage, error) {
	if err := models.Validate(req); err != nil {
		return nil, err
	}
	image := &models.CarImage{CarImage: req.CarImage, CarID: req.CarID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Car{}, req.CarID).Error; err != nil {
			return notFoundOr(err, msgCarNotFound, "catalog: get car")
		}
		return tx.Omit(clause.Associations).Create(image).Error
	})
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, apperrors.NewAppError(apperrors.CodeNotFound, msgCarNotFound, err)
		}
		return nil, wrap(err, "catalog: create image")
	}
	return image, nil
}

// UploadImage stores the image bytes and records the resulting URL.
func (s *Service) UploadImage(ctx context.Context, carID uint, filename string, content io.Reader, size int64, contentType string) (*models.CarImage, error) {
	if s.images == nil {
		return nil, apperrors.NewAppError(apperrors.CodeUnavailable, "Image storage is not configured", nil)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperrors.Validation("file must be an image")
	}
	if err := s.db.WithContext(ctx).Select("id").First(&models.Car{}, carID).Error; err != nil {
		return nil, notFoundOr(err, msgCarNotFound, "catalog: get car")
	}

	key := fmt.Sprintf("cars/%d/%s%s", carID, uuid.NewString(), strings.ToLower(path.Ext(filename)))
	url, err := s.images.Put(ctx, key, content, size, contentType)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.CodeUnavailable, "Failed to store image", err)
	}
	return s.CreateImage(ctx, models.CarImageRequest{CarImage: url, CarID: carID})
}

func (s *Service) ListImages(ctx context.Context) ([]models.CarImage, error) {
	var images []models.CarImage
	if err := s.db.WithContext(ctx).Order("id").Find(&images).Error; err != nil {
		return nil, fmt.Errorf("catalog: list images: %w", err)
	}
	return images, nil
}

func (s *Service) DeleteImage(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.CarImage{}, id)
	if res.Error != nil {
		return fmt.Errorf("catalog: delete image: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound(msgImageNotFound)
	}
	return nil
}

// imageRefs groups the images of cars by car id.
func (s *Service) imageRefs(db *gorm.DB, cars []models.Car) (map[uint][]models.ImageRef, error) {
	refs := make(map[uint][]models.ImageRef, len(cars))
	if len(cars) == 0 {
		return refs, nil
	}
	ids := make([]uint, 0, len(cars))
	for _, car := range cars {
		ids = append(ids, car.ID)
	}

	var images []models.CarImage
	if err := db.Where("car_id IN ?", ids).Order("id").Find(&images).Error; err != nil {
		return nil, fmt.Errorf("catalog: list car images: %w", err)
	}
	for _, img := range images {
		refs[img.CarID] = append(refs[img.CarID], models.ImageRef{Image: img.CarImage})
	}
	return refs, nil
}

// checkLinkage verifies the seller exists and the model belongs to the brand.
func checkLinkage(tx *gorm.DB, sellerID, brandID, modelID uint) error {
	var n int64
	if err := tx.Model(&models.User{}).Where("id = ?", sellerID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound(msgSellerMissing)
	}
	if err := tx.Model(&models.CarModel{}).Where("id = ? AND brand_id = ?", modelID, brandID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound(msgPairMismatch)
	}
	return nil
}

func applyCar(car *models.Car, req models.CarRequest) {
	car.BrandID = req.BrandID
	car.ModelID = req.ModelID
	car.Description = req.Description
	car.FuelType = req.FuelType
	car.Transmission = req.Transmission
	car.Mileage = req.Mileage
	car.Price = req.Price
	car.SellerID = req.SellerID
}

func carWriteError(err error, op string) error {
	if database.IsForeignKeyViolation(err) {
		return apperrors.NewAppError(apperrors.CodeNotFound, msgPairMismatch, err)
	}
	return wrap(err, op)
}

// notFoundOr maps gorm.ErrRecordNotFound to a NOT_FOUND AppError.
func notFoundOr(err error, message, op string) error {
	if database.IsNotFound(err) {
		return apperrors.NotFound(message)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// wrap leaves AppErrors untouched and adds context to everything else.
func wrap(err error, op string) error {
	if apperrors.CodeOf(err) != apperrors.CodeInternalError {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

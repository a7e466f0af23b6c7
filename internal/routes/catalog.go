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

// CatalogHandler serves brands, models, cars and car images
type CatalogHandler struct {
	catalog CatalogService
	logger  *logrus.Logger
}

func NewCatalogHandler(catalog CatalogService, logger *logrus.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// ListBrands
// @Summary List brands
// @Tags Brand
// @Produce json
// @Success 200 {array} models.Brand
// @Router /brand [get]
func (h *CatalogHandler) ListBrands(c *fiber.Ctx) error {
	brands, err := h.catalog.ListBrands(c.UserContext())
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(brands)
}

// CreateBrand
// @Summary Create brand
// @Tags Brand
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body models.BrandRequest true "Brand"
// @Success 201 {object} models.Brand
// @Failure 409 {object} errors.ErrorResponse "Brand already exists"
// @Router /brand [post]
func (h *CatalogHandler) CreateBrand(c *fiber.Ctx) error {
	var req models.BrandRequest
	if err := parseBody(c, &req); err != nil {
		return middleware.WriteError(c, err)
	}
	brand, err := h.catalog.CreateBrand(c.UserContext(), req)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(brand)
}

// BrandDetail
// @Summary Brand with its cars
// @Tags Brand
// @Produce json
// @Param id path int true "Brand ID"
// @Success 200 {object} models.BrandDetail
// @Failure 404 {object} errors.ErrorResponse
// @Router /brand/{id} [get]
func (h *CatalogHandler) BrandDetail(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return middleware.WriteError(c, err)
	}
	detail, err := h.catalog.BrandDetail(c.UserContext(), id)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(detail)
}

// ListModels
// @Summary List models
// @Tags Model
// @Produce json
// @Success 200 {array} models.CarModel
// @Router /model [get]
func (h *CatalogHandler) ListModels(c *fiber.Ctx) error {
	list, err := h.catalog.ListModels(c.UserContext())
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(list)
}

// CreateModel
// @Summary Create model
// @Tags Model
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body models.ModelRequest true "Model"
// @Success 201 {object} models.CarModel
// @Failure 404 {object} errors.ErrorResponse "Brand not found"
// @Failure 409 {object} errors.ErrorResponse "Model already exists"
// @Router /model [post]
func (h *CatalogHandler) CreateModel(c *fiber.Ctx) error {
	var req models.ModelRequest
	if err := parseBody(c, &req); err != nil {
		return middleware.WriteError(c, err)
	}
	model, err := h.catalog.CreateModel(c.UserContext(), req)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(model)
}

// ModelDetail
// @Summary Model with its cars
// @Tags Model
// @Produce json
// @Param id path int true "Model ID"
// @Success 200 {object} models.ModelDetail
// @Failure 404 {object} errors.ErrorResponse
// @Router /model/{id} [get]
func (h *CatalogHandler) ModelDetail(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return middleware.WriteError(c, err)
	}
	detail, err := h.catalog.ModelDetail(c.UserContext(), id)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(detail)
}

// CreateCar lists a car for sale. seller_id defaults to the caller.
// @Summary Create car
// @Tags Car
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body models.CarRequest true "Car"
// @Success 201 {object} models.Car
// @Failure 403 {object} errors.ErrorResponse "seller_id is not the caller"
// @Failure 404 {object} errors.ErrorResponse "Seller not found or brand/model mismatch"
// @Router /car [post]
func (h *CatalogHandler) CreateCar(c *fiber.Ctx) error {
	var req models.CarRequest
	if err := parseBody(c, &req); err != nil {
		return middleware.WriteError(c, err)
	}
	sellerID, err := ownerID(c, req.SellerID, "seller_id")
	if err != nil {
		return middleware.WriteError(c, err)
	}
	req.SellerID = sellerID

	car, err := h.catalog.CreateCar(c.UserContext(), req)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	logging.FromCtx(h.logger, c).WithField("car_id", car.ID).Info("Car created")
	return c.Status(fiber.StatusCreated).JSON(car)
}

// ListCars
// @Summary List cars
// @Tags Car
// @Produce json
// @Param skip query int false "Offset"
// @Param limit query int false "Page size"
// @Success 200 {object} models.CarPage
// @Router /car [get]
func (h *CatalogHandler) ListCars(c *fiber.Ctx) error {
	skip := c.QueryInt("skip", 0)
	limit := c.QueryInt("limit", 0)
	page, err := h.catalog.ListCars(c.UserContext(), skip, limit)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(page)
}

// GetCar
// @Summary Car detail
// @Tags Car
// @Produce json
// @Param id path int true "Car ID"
// @Success 200 {object} models.CarWithImages
// @Failure 404 {object} errors.ErrorResponse
// @Router /car/{id} [get]
func (h *CatalogHandler) GetCar(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return middleware.WriteError(c, err)
	}
	car, err := h.catalog.GetCar(c.UserContext(), id)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(car)
}

// UpdateCar replaces every field of a car
// @Summary Update car
// @Tags Car
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "Car ID"
// @Param request body models.CarRequest true "Car"
// @Success 200 {object} models.Car
// @Failure 403 {object} errors.ErrorResponse "Not the seller"
// @Failure 404 {object} errors.ErrorResponse
// @Router /car/{id} [put]
func (h *CatalogHandler) UpdateCar(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return middleware.WriteError(c, err)
	}
	var req models.CarRequest
	if err := parseBody(c, &req); err != nil {
		return middleware.WriteError(c, err)
	}
	if err := h.requireCarOwner(c, id); err != nil {
		return middleware.WriteError(c, err)
	}
	sellerID, err := ownerID(c, req.SellerID, "seller_id")
	if err != nil {
		return middleware.WriteError(c, err)
	}
	req.SellerID = sellerID

	car, err := h.catalog.UpdateCar(c.UserContext(), id, req)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(car)
}

// DeleteCar removes a car, its images and its auctions
// @Summary Delete car
// @Tags Car
// @Produce json
// @Security Bearer
// @Param id path int true "Car ID"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} errors.ErrorResponse "Not the seller"
// @Failure 404 {object} errors.ErrorResponse
// @Router /car/{id} [delete]
func (h *CatalogHandler) DeleteCar(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return middleware.WriteError(c, err)
	}
	if err := h.requireCarOwner(c, id); err != nil {
		return middleware.WriteError(c, err)
	}
	if err := h.catalog.DeleteCar(c.UserContext(), id); err != nil {
		return middleware.WriteError(c, err)
	}
	logging.FromCtx(h.logger, c).WithField("car_id", id).Info("Car deleted")
	return c.JSON(deletedResponse)
}

// CreateImage attaches an image reference to a car
// @Summary Create car image
// @Tags CarImage
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body models.CarImageRequest true "Image"
// @Success 201 {object} models.CarImage
// @Failure 404 {object} errors.ErrorResponse "Car not found"
// @Router /car_image [post]
func (h *CatalogHandler) CreateImage(c *fiber.Ctx) error {
	var req models.CarImageRequest
	if err := parseBody(c, &req); err != nil {
		return middleware.WriteError(c, err)
	}
	image, err := h.catalog.CreateImage(c.UserContext(), req)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(image)
}

// UploadImage stores an uploaded file in the object store and attaches it
// @Summary Upload car image
// @Tags CarImage
// @Accept multipart/form-data
// @Produce json
// @Security Bearer
// @Param car_id formData int true "Car ID"
// @Param file formData file true "Image file"
// @Success 201 {object} models.CarImage
// @Failure 404 {object} errors.ErrorResponse "Car not found"
// @Failure 503 {object} errors.ErrorResponse "Object storage not configured"
// @Router /car_image/upload [post]
func (h *CatalogHandler) UploadImage(c *fiber.Ctx) error {
	carID, err := strconv.ParseUint(c.FormValue("car_id"), 10, 64)
	if err != nil || carID == 0 {
		return middleware.WriteError(c, apperrors.NewAppError(apperrors.CodeValidation, "car_id is required", err))
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return middleware.WriteError(c, apperrors.NewAppError(apperrors.CodeValidation, "file is required", err))
	}
	f, err := fh.Open()
	if err != nil {
		return middleware.WriteError(c, apperrors.NewAppError(apperrors.CodeBadRequest, "Unreadable upload", err))
	}
	defer f.Close()

	image, err := h.catalog.UploadImage(c.UserContext(), uint(carID), fh.Filename, f, fh.Size, fh.Header.Get(fiber.HeaderContentType))
	if err != nil {
		return middleware.WriteError(c, err)
	}
	logging.FromCtx(h.logger, c).WithFields(logrus.Fields{
		"car_id":   carID,
		"image_id": image.ID,
		"size":     fh.Size,
	}).Info("Car image uploaded")
	return c.Status(fiber.StatusCreated).JSON(image)
}

// ListImages
// @Summary List car images
// @Tags CarImage
// @Produce json
// @Success 200 {array} models.CarImage
// @Router /car_image [get]
func (h *CatalogHandler) ListImages(c *fiber.Ctx) error {
	images, err := h.catalog.ListImages(c.UserContext())
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(images)
}

// DeleteImage
// @Summary Delete car image
// @Tags CarImage
// @Produce json
// @Security Bearer
// @Param id path int true "Image ID"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /car_image/{id} [delete]
func (h *CatalogHandler) DeleteImage(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return middleware.WriteError(c, err)
	}
	if err := h.catalog.DeleteImage(c.UserContext(), id); err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(deletedResponse)
}

// requireCarOwner lets only the car's seller change it. Anonymous callers
// (AUTH_REQUIRED=false) are not checked.
func (h *CatalogHandler) requireCarOwner(c *fiber.Ctx, id uint) error {
	caller, ok := middleware.CallerID(c)
	if !ok {
		return nil
	}
	car, err := h.catalog.GetCar(c.UserContext(), id)
	if err != nil {
		return err
	}
	if car.SellerID != caller {
		return apperrors.Forbidden("Only the seller can change this car")
	}
	return nil
}

package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/autobid/auction-api/internal/database/dbtest"
	"github.com/autobid/auction-api/internal/models"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	svc    *Service
	seller models.User
	bmw    models.Brand
	audi   models.Brand
	x5     models.CarModel
	a4     models.CarModel
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db := dbtest.New(t)
	f := &fixture{db: db, svc: NewService(db, logger, opts...)}

	f.seller = models.User{Username: "seller", FirstName: "S", Email: "s@example.com", PasswordHash: "x", Role: models.RoleSeller}
	require.NoError(t, db.Create(&f.seller).Error)

	ctx := context.Background()
	bmw, err := f.svc.CreateBrand(ctx, models.BrandRequest{BrandName: "BMW"})
	require.NoError(t, err)
	audi, err := f.svc.CreateBrand(ctx, models.BrandRequest{BrandName: "Audi"})
	require.NoError(t, err)
	x5, err := f.svc.CreateModel(ctx, models.ModelRequest{ModelName: "X5", BrandID: bmw.ID})
	require.NoError(t, err)
	a4, err := f.svc.CreateModel(ctx, models.ModelRequest{ModelName: "A4", BrandID: audi.ID})
	require.NoError(t, err)

	f.bmw, f.audi, f.x5, f.a4 = *bmw, *audi, *x5, *a4
	return f
}

func (f *fixture) carRequest() models.CarRequest {
	return models.CarRequest{
		BrandID:      f.bmw.ID,
		ModelID:      f.x5.ID,
		Description:  "one owner",
		FuelType:     models.FuelBenzine,
		Transmission: models.TransmissionAuto,
		Mileage:      42000,
		Price:        31500,
		SellerID:     f.seller.ID,
	}
}

func assertAppError(t *testing.T, err error, code apperrors.ErrorCode, message string) {
	t.Helper()
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
	if message != "" {
		assert.Equal(t, message, appErr.Message)
	}
}

func TestBrandsAndModels(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.CreateBrand(ctx, models.BrandRequest{BrandName: "BMW"})
	assertAppError(t, err, apperrors.CodeConflict, "Brand already exists")

	_, err = f.svc.CreateModel(ctx, models.ModelRequest{ModelName: "X5", BrandID: f.bmw.ID})
	assertAppError(t, err, apperrors.CodeConflict, "Model already exists")

	_, err = f.svc.CreateModel(ctx, models.ModelRequest{ModelName: "Q7", BrandID: 999})
	assertAppError(t, err, apperrors.CodeNotFound, "Brand not found")

	brands, err := f.svc.ListBrands(ctx)
	require.NoError(t, err)
	assert.Len(t, brands, 2)

	list, err := f.svc.ListModels(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.svc.BrandDetail(ctx, 999)
	assertAppError(t, err, apperrors.CodeNotFound, "Brand not found")
	_, err = f.svc.ModelDetail(ctx, 999)
	assertAppError(t, err, apperrors.CodeNotFound, "Model not found")
}

func TestCreateCar(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := f.carRequest()
	car, err := f.svc.CreateCar(ctx, req)
	require.NoError(t, err)
	assert.NotZero(t, car.ID)
	assert.Equal(t, req.BrandID, car.BrandID)
	assert.Equal(t, req.ModelID, car.ModelID)
	assert.Equal(t, req.Description, car.Description)
	assert.Equal(t, req.FuelType, car.FuelType)
	assert.Equal(t, req.Transmission, car.Transmission)
	assert.Equal(t, req.Mileage, car.Mileage)
	assert.Equal(t, req.Price, car.Price)
	assert.Equal(t, req.SellerID, car.SellerID)

	mismatched := f.carRequest()
	mismatched.ModelID = f.a4.ID
	_, err = f.svc.CreateCar(ctx, mismatched)
	assertAppError(t, err, apperrors.CodeNotFound, "Brand or model does not match")

	noSeller := f.carRequest()
	noSeller.SellerID = 999
	_, err = f.svc.CreateCar(ctx, noSeller)
	assertAppError(t, err, apperrors.CodeNotFound, "Seller not found")

	badFuel := f.carRequest()
	badFuel.FuelType = "diesel"
	_, err = f.svc.CreateCar(ctx, badFuel)
	assertAppError(t, err, apperrors.CodeValidation, "")

	detail, err := f.svc.BrandDetail(ctx, f.bmw.ID)
	require.NoError(t, err)
	require.Len(t, detail.BrandCars, 1)
	assert.Equal(t, car.ID, detail.BrandCars[0].ID)
}

func TestListCarsPagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 5; i++ {
		req := f.carRequest()
		req.Description = fmt.Sprintf("car %d", i)
		_, err := f.svc.CreateCar(ctx, req)
		require.NoError(t, err)
	}

	page, err := f.svc.ListCars(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Len(t, page.Cars, 3)

	page, err = f.svc.ListCars(ctx, 3, 3)
	require.NoError(t, err)
	assert.Len(t, page.Cars, 2)
	assert.Equal(t, "car 3", page.Cars[0].Description)

	page, err = f.svc.ListCars(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Limit)

	page, err = f.svc.ListCars(ctx, -1, 1000)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Skip)
	assert.Equal(t, 100, page.Limit)
	assert.Len(t, page.Cars, 5)
}

func TestCarImages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	car, err := f.svc.CreateCar(ctx, f.carRequest())
	require.NoError(t, err)

	got, err := f.svc.GetCar(ctx, car.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ImageURL)

	_, err = f.svc.CreateImage(ctx, models.CarImageRequest{CarImage: "http://img/1.png", CarID: 999})
	assertAppError(t, err, apperrors.CodeNotFound, "Car not found")

	img, err := f.svc.CreateImage(ctx, models.CarImageRequest{CarImage: "http://img/1.png", CarID: car.ID})
	require.NoError(t, err)

	got, err = f.svc.GetCar(ctx, car.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.ImageRef{{Image: "http://img/1.png"}}, got.ImageURL)

	images, err := f.svc.ListImages(ctx)
	require.NoError(t, err)
	assert.Len(t, images, 1)

	require.NoError(t, f.svc.DeleteImage(ctx, img.ID))
	assertAppError(t, f.svc.DeleteImage(ctx, img.ID), apperrors.CodeNotFound, "Image not found")
}

func TestUpdateCar(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	car, err := f.svc.CreateCar(ctx, f.carRequest())
	require.NoError(t, err)

	req := f.carRequest()
	req.BrandID = f.audi.ID
	req.ModelID = f.a4.ID
	req.Price = 20000
	updated, err := f.svc.UpdateCar(ctx, car.ID, req)
	require.NoError(t, err)
	assert.Equal(t, f.audi.ID, updated.BrandID)
	assert.Equal(t, 20000.0, updated.Price)

	req.ModelID = f.x5.ID
	_, err = f.svc.UpdateCar(ctx, car.ID, req)
	assertAppError(t, err, apperrors.CodeNotFound, "Brand or model does not match")

	_, err = f.svc.UpdateCar(ctx, 999, f.carRequest())
	assertAppError(t, err, apperrors.CodeNotFound, "Car not found")
}

func TestDeleteCarCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	car, err := f.svc.CreateCar(ctx, f.carRequest())
	require.NoError(t, err)
	_, err = f.svc.CreateImage(ctx, models.CarImageRequest{CarImage: "http://img/1.png", CarID: car.ID})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteCar(ctx, car.ID))
	assertAppError(t, f.svc.DeleteCar(ctx, car.ID), apperrors.CodeNotFound, "Car not found")

	var n int64
	require.NoError(t, f.db.Model(&models.CarImage{}).Count(&n).Error)
	assert.Zero(t, n)
}

type fakeImageStore struct {
	keys [][]byte
	key  string
	err  error
}

func (s *fakeImageStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.keys = append(s.keys, body)
	s.key = key
	return "http://objects/car-images/" + key, nil
}

func TestUploadImage(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	_, err := f.svc.UploadImage(ctx, 1, "a.png", strings.NewReader("png"), 3, "image/png")
	assertAppError(t, err, apperrors.CodeUnavailable, "")

	store := &fakeImageStore{}
	f = newFixture(t, WithImageStore(store))
	car, err := f.svc.CreateCar(ctx, f.carRequest())
	require.NoError(t, err)

	_, err = f.svc.UploadImage(ctx, car.ID, "a.txt", strings.NewReader("txt"), 3, "text/plain")
	assertAppError(t, err, apperrors.CodeValidation, "")

	_, err = f.svc.UploadImage(ctx, 999, "a.png", strings.NewReader("png"), 3, "image/png")
	assertAppError(t, err, apperrors.CodeNotFound, "Car not found")

	img, err := f.svc.UploadImage(ctx, car.ID, "Photo.PNG", bytes.NewReader([]byte("png")), 3, "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(store.key, fmt.Sprintf("cars/%d/", car.ID)))
	assert.True(t, strings.HasSuffix(store.key, ".png"))
	assert.Equal(t, "http://objects/car-images/"+store.key, img.CarImage)
	assert.Equal(t, [][]byte{[]byte("png")}, store.keys)

	store.err = errors.New("bucket gone")
	_, err = f.svc.UploadImage(ctx, car.ID, "b.png", strings.NewReader("png"), 3, "image/png")
	assertAppError(t, err, apperrors.CodeUnavailable, "Failed to store image")
}

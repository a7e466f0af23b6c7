package routes

import (
	"fmt"
	"testing"
	"time"

	"github.com/autobid/auction-api/internal/catalog"
	"github.com/autobid/auction-api/internal/database/dbtest"
	"github.com/autobid/auction-api/internal/identity"
	"github.com/autobid/auction-api/internal/ledger"
	"github.com/autobid/auction-api/internal/middleware"
	"github.com/autobid/auction-api/internal/models"
	"github.com/autobid/auction-api/internal/token"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// TestMarketplaceFlow drives the real services over sqlite: a seller lists
// a car and opens an auction, a buyer outbids the start price.
func TestMarketplaceFlow(t *testing.T) {
	db := dbtest.New(t)
	cfg := testConfig()
	logger := testLogger()

	users := identity.NewService(db, logger, identity.WithBcryptCost(bcrypt.MinCost))
	issuer := token.NewIssuer(&cfg.JWT)
	tokens := token.NewService(users, token.NewSQLStore(db), issuer, logger)

	mw, err := middleware.NewManager(cfg, nil, tokens, logger)
	require.NoError(t, err)

	app := fiber.New()
	Setup(app, cfg, logger, mw, Services{
		Users:    users,
		Tokens:   tokens,
		Catalog:  catalog.NewService(db, logger),
		Auctions: ledger.NewService(db, logger),
	})
	env := &testEnv{app: app}

	register := func(name string, role models.Role) (uint, string) {
		resp := env.do(t, "POST", "/api/v1/auth/register", "", fiber.Map{
			"username":   name,
			"first_name": name,
			"email":      name + "@example.com",
			"password":   "secret1",
			"role":       role,
		})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		var user models.User
		decode(t, resp, &user)

		resp = env.do(t, "POST", "/api/v1/auth/login", "", fiber.Map{"email": name + "@example.com", "password": "secret1"})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		var pair models.TokenPair
		decode(t, resp, &pair)
		return user.ID, "Bearer " + pair.Access
	}

	sellerID, seller := register("sam", models.RoleSeller)
	_, buyer := register("bea", models.RoleBuyer)

	resp := env.do(t, "GET", "/api/v1/auth/me", buyer, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var brand models.Brand
	resp = env.do(t, "POST", "/api/v1/brand", seller, fiber.Map{"brand_name": "BMW"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	decode(t, resp, &brand)

	resp = env.do(t, "POST", "/api/v1/brand", seller, fiber.Map{"brand_name": "BMW"})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var model models.CarModel
	resp = env.do(t, "POST", "/api/v1/model", seller, fiber.Map{"model_name": "X5", "brand_id": brand.ID})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	decode(t, resp, &model)

	var car models.Car
	resp = env.do(t, "POST", "/api/v1/car", seller, fiber.Map{
		"brand_id":     brand.ID,
		"model_id":     model.ID,
		"fuel_type":    "benzine",
		"transmission": "auto",
		"mileage":      12000,
		"price":        30000,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	decode(t, resp, &car)
	assert.Equal(t, sellerID, car.SellerID)

	now := time.Now().UTC()
	var auction models.Auction
	resp = env.do(t, "POST", "/api/v1/auction", seller, fiber.Map{
		"car_id":      car.ID,
		"start_price": 1000,
		"start_time":  now.Add(-time.Hour),
		"end_time":    now.Add(time.Hour),
		"status":      "started",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	decode(t, resp, &auction)

	resp = env.do(t, "POST", "/api/v1/bid", buyer, fiber.Map{"auction_id": auction.ID, "amount": 900})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp = env.do(t, "POST", "/api/v1/bid", buyer, fiber.Map{"auction_id": auction.ID, "amount": 1500})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = env.do(t, "GET", fmt.Sprintf("/api/v1/auction/%d", auction.ID), "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &auction)
	require.NotNil(t, auction.HighestBid)
	assert.Equal(t, 1500.0, *auction.HighestBid)
	assert.Equal(t, 1, auction.BidCount)

	var bids []models.Bid
	resp = env.do(t, "GET", fmt.Sprintf("/api/v1/bid?auction_id=%d", auction.ID), "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &bids)
	assert.Len(t, bids, 1)

	var page models.CarPage
	resp = env.do(t, "GET", "/api/v1/car", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &page)
	assert.EqualValues(t, 1, page.Total)
	require.Len(t, page.Cars, 1)
	assert.Nil(t, page.Cars[0].ImageURL)

	// Another signed-in user can neither take over nor remove the car.
	_, other := register("moe", models.RoleSeller)
	resp = env.do(t, "PUT", fmt.Sprintf("/api/v1/car/%d", car.ID), other, fiber.Map{
		"brand_id":     brand.ID,
		"model_id":     model.ID,
		"fuel_type":    "benzine",
		"transmission": "auto",
		"price":        1,
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp = env.do(t, "DELETE", fmt.Sprintf("/api/v1/car/%d", car.ID), other, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	var stored models.CarWithImages
	resp = env.do(t, "GET", fmt.Sprintf("/api/v1/car/%d", car.ID), "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &stored)
	assert.Equal(t, sellerID, stored.SellerID)
	assert.Equal(t, 30000.0, stored.Price)

	resp = env.do(t, "DELETE", fmt.Sprintf("/api/v1/car/%d", car.ID), seller, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = env.do(t, "GET", fmt.Sprintf("/api/v1/auction/%d", auction.ID), "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = env.do(t, "DELETE", fmt.Sprintf("/api/v1/user/%d", sellerID), seller, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = env.do(t, "GET", fmt.Sprintf("/api/v1/user/%d", sellerID), "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

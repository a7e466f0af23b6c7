package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/autobid/auction-api/internal/config"
	"github.com/autobid/auction-api/internal/middleware"
	"github.com/autobid/auction-api/internal/models"
	"github.com/autobid/auction-api/internal/routes/mocks"
	"github.com/autobid/auction-api/internal/token"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	app      *fiber.App
	issuer   *token.Issuer
	users    *mocks.MockUserService
	tokens   *mocks.MockTokenService
	catalog  *mocks.MockCatalogService
	auctions *mocks.MockAuctionService
	oauth    *mocks.MockOAuthRedirector
}

type stubChecker struct {
	results map[string]string
	ok      bool
}

func (s stubChecker) CheckAll(context.Context) (map[string]string, bool) {
	return s.results, s.ok
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{AuthRequired: true},
		JWT: config.JWTConfig{
			Secret:     "test-secret",
			Issuer:     "auction-api",
			AccessTTL:  time.Minute,
			RefreshTTL: time.Hour,
		},
		Observability: config.ObservabilityConfig{MetricsPath: "/metrics"},
	}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestEnv(t *testing.T, checker ReadinessChecker) *testEnv {
	ctrl := gomock.NewController(t)
	cfg := testConfig()
	logger := testLogger()
	issuer := token.NewIssuer(&cfg.JWT)

	mw, err := middleware.NewManager(cfg, nil, token.NewService(nil, nil, issuer, logger), logger)
	require.NoError(t, err)

	env := &testEnv{
		app:      fiber.New(),
		issuer:   issuer,
		users:    mocks.NewMockUserService(ctrl),
		tokens:   mocks.NewMockTokenService(ctrl),
		catalog:  mocks.NewMockCatalogService(ctrl),
		auctions: mocks.NewMockAuctionService(ctrl),
		oauth:    mocks.NewMockOAuthRedirector(ctrl),
	}
	Setup(env.app, cfg, logger, mw, Services{
		Users:    env.users,
		Tokens:   env.tokens,
		Catalog:  env.catalog,
		Auctions: env.auctions,
		OAuth:    env.oauth,
		Health:   checker,
	})
	return env
}

func (e *testEnv) bearer(t *testing.T, userID uint) string {
	access, _, err := e.issuer.IssueAccess(userID, "user")
	require.NoError(t, err)
	return "Bearer " + access
}

func (e *testEnv) do(t *testing.T, method, path, auth string, body interface{}) *http.Response {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestPlaceBidDefaultsBuyerToCaller(t *testing.T) {
	env := newTestEnv(t, nil)
	env.auctions.EXPECT().
		PlaceBid(gomock.Any(), models.BidRequest{AuctionID: 1, BuyerID: 7, Amount: 150}).
		Return(&models.Bid{ID: 9, AuctionID: 1, BuyerID: 7, Amount: 150}, nil)

	resp := env.do(t, "POST", "/api/v1/bid", env.bearer(t, 7), fiber.Map{"auction_id": 1, "amount": 150})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var bid models.Bid
	decode(t, resp, &bid)
	assert.EqualValues(t, 9, bid.ID)
	assert.EqualValues(t, 7, bid.BuyerID)
}

func TestPlaceBidForSomeoneElseIsForbidden(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, "POST", "/api/v1/bid", env.bearer(t, 7), fiber.Map{"auction_id": 1, "buyer_id": 8, "amount": 150})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestCarChangesOnlyBySeller(t *testing.T) {
	env := newTestEnv(t, nil)
	owned := &models.CarWithImages{Car: models.Car{ID: 3, BrandID: 1, ModelID: 2, SellerID: 7}}
	env.catalog.EXPECT().GetCar(gomock.Any(), uint(3)).Return(owned, nil).Times(3)

	body := fiber.Map{"brand_id": 1, "model_id": 2, "fuel_type": "gas", "transmission": "auto", "price": 100}

	resp := env.do(t, "PUT", "/api/v1/car/3", env.bearer(t, 8), body)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp = env.do(t, "DELETE", "/api/v1/car/3", env.bearer(t, 8), nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	env.catalog.EXPECT().
		UpdateCar(gomock.Any(), uint(3), gomock.Any()).
		DoAndReturn(func(_ context.Context, id uint, req models.CarRequest) (*models.Car, error) {
			assert.EqualValues(t, 7, req.SellerID)
			return &models.Car{ID: id, BrandID: req.BrandID, ModelID: req.ModelID, SellerID: req.SellerID}, nil
		})
	resp = env.do(t, "PUT", "/api/v1/car/3", env.bearer(t, 7), body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCreateFeedbackBuyerIsCaller(t *testing.T) {
	env := newTestEnv(t, nil)
	rating := 4
	env.auctions.EXPECT().
		CreateFeedback(gomock.Any(), models.FeedbackRequest{SellerID: 3, BuyerID: 7, Rating: &rating}).
		Return(&models.Feedback{ID: 1, SellerID: 3, BuyerID: 7, Rating: &rating}, nil)

	resp := env.do(t, "POST", "/api/v1/feedback", env.bearer(t, 7), fiber.Map{"seller_id": 3, "rating": 4})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = env.do(t, "POST", "/api/v1/feedback", env.bearer(t, 7), fiber.Map{"seller_id": 3, "buyer_id": 9, "rating": 4})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestWriteRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, tc := range []struct{ method, path string }{
		{"POST", "/api/v1/brand"},
		{"POST", "/api/v1/car"},
		{"PUT", "/api/v1/car/1"},
		{"DELETE", "/api/v1/auction/1"},
		{"POST", "/api/v1/bid"},
		{"GET", "/api/v1/auth/me"},
	} {
		resp := env.do(t, tc.method, tc.path, "", fiber.Map{})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, "%s %s", tc.method, tc.path)
	}
}

func TestServiceErrorsRenderEnvelope(t *testing.T) {
	env := newTestEnv(t, nil)
	env.catalog.EXPECT().GetCar(gomock.Any(), uint(42)).Return(nil, apperrors.NotFound("Car not found"))

	resp := env.do(t, "GET", "/api/v1/car/42", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var body apperrors.ErrorResponse
	decode(t, resp, &body)
	assert.Equal(t, apperrors.CodeNotFound, body.Error.Code)
	assert.Equal(t, "Car not found", body.Error.Message)

	resp = env.do(t, "GET", "/api/v1/car/abc", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestDeleteUserOnlySelf(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, "DELETE", "/api/v1/user/8", env.bearer(t, 7), nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	gomock.InOrder(
		env.tokens.EXPECT().RevokeAll(gomock.Any(), uint(7)).Return(nil),
		env.users.EXPECT().Delete(gomock.Any(), uint(7)).Return(nil),
	)
	resp = env.do(t, "DELETE", "/api/v1/user/7", env.bearer(t, 7), nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body MessageResponse
	decode(t, resp, &body)
	assert.Equal(t, "Deleted", body.Message)
}

func TestListBidsFilter(t *testing.T) {
	env := newTestEnv(t, nil)
	env.auctions.EXPECT().ListBids(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, auctionID *uint) ([]models.Bid, error) {
			require.NotNil(t, auctionID)
			assert.EqualValues(t, 3, *auctionID)
			return []models.Bid{{ID: 1, AuctionID: 3}}, nil
		})
	env.auctions.EXPECT().ListBids(gomock.Any(), (*uint)(nil)).Return([]models.Bid{}, nil)

	resp := env.do(t, "GET", "/api/v1/bid?auction_id=3", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = env.do(t, "GET", "/api/v1/bid", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = env.do(t, "GET", "/api/v1/bid?auction_id=x", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestListCarsPaging(t *testing.T) {
	env := newTestEnv(t, nil)
	env.catalog.EXPECT().ListCars(gomock.Any(), 3, 5).Return(&models.CarPage{Total: 10, Skip: 3, Limit: 5}, nil)

	resp := env.do(t, "GET", "/api/v1/car?skip=3&limit=5", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var page models.CarPage
	decode(t, resp, &page)
	assert.EqualValues(t, 10, page.Total)
}

func TestLoginAcceptsQueryCredentials(t *testing.T) {
	env := newTestEnv(t, nil)
	env.tokens.EXPECT().Login(gomock.Any(), "ann@example.com", "secret1").
		Return(&models.TokenPair{Access: "a", Refresh: "r", Type: "bearer"}, nil)

	resp := env.do(t, "POST", "/api/v1/auth/login?email=ann@example.com&password=secret1", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var pair models.TokenPair
	decode(t, resp, &pair)
	assert.Equal(t, "bearer", pair.Type)

	resp = env.do(t, "POST", "/api/v1/auth/login", "", fiber.Map{"email": "not-an-email", "password": "x"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestLogoutAndRefresh(t *testing.T) {
	env := newTestEnv(t, nil)
	env.tokens.EXPECT().Logout(gomock.Any(), "r1").Return(nil)
	env.tokens.EXPECT().Refresh(gomock.Any(), "r2").Return(&models.AccessTokenResponse{AccessToken: "a", TokenType: "bearer"}, nil)
	env.tokens.EXPECT().Logout(gomock.Any(), "gone").Return(apperrors.NotFound("Token not found"))

	resp := env.do(t, "POST", "/api/v1/auth/logout", "", fiber.Map{"token": "r1"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = env.do(t, "POST", "/api/v1/auth/refresh?refresh_token=r2", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = env.do(t, "POST", "/api/v1/auth/logout?token=gone", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp = env.do(t, "POST", "/api/v1/auth/logout", "", nil)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestOAuthUnknownProvider(t *testing.T) {
	env := newTestEnv(t, nil)
	env.oauth.EXPECT().Redirect(gomock.Any(), "myspace").Return(apperrors.NotFound(`OAuth provider "myspace" is not configured`))

	resp := env.do(t, "GET", "/api/v1/oauth/myspace", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestReadiness(t *testing.T) {
	env := newTestEnv(t, stubChecker{results: map[string]string{"database": "ok", "redis": "dial tcp: refused"}, ok: false})

	resp := env.do(t, "GET", "/readyz", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "not ready", body["status"])

	resp = env.do(t, "GET", "/healthz", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

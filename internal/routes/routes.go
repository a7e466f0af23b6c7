package routes

import (
	"github.com/autobid/auction-api/internal/config"
	"github.com/autobid/auction-api/internal/metrics"
	"github.com/autobid/auction-api/internal/middleware"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/sirupsen/logrus"
)

// Services bundles what the handlers depend on.
type Services struct {
	Users    UserService
	Tokens   TokenService
	Catalog  CatalogService
	Auctions AuctionService
	OAuth    OAuthRedirector
	Health   ReadinessChecker
}

// Setup configures all API routes
func Setup(app *fiber.App, cfg *config.Config, logger *logrus.Logger, mw *middleware.Manager, svc Services) {
	authHandler := NewAuthHandler(svc.Users, svc.Tokens, logger)
	userHandler := NewUserHandler(svc.Users, svc.Tokens, logger)
	catalogHandler := NewCatalogHandler(svc.Catalog, logger)
	auctionHandler := NewAuctionHandler(svc.Auctions, logger)

	// Health check endpoints (no auth required)
	app.Get("/healthz", healthCheck)
	app.Get("/readyz", readinessCheck(svc.Health, mw.Breaker))
	app.Get("/version", versionHandler)
	app.Get(cfg.Observability.MetricsPath, metrics.PrometheusHandler())
	app.Get("/swagger/*", swagger.HandlerDefault)

	api := app.Group("/api/v1")
	api.Use(metrics.HTTPMetricsMiddleware())
	api.Use(mw.ErrorLogger.Handle())
	// Callers are identified before rate limiting so that the bucket is
	// per user when a token is sent.
	api.Use(mw.Identify())
	api.Use(mw.RateLimitHandler())
	api.Use(mw.IdempotencyHandler())

	auth := mw.RequireAuth()

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", mw.LoginLimitHandler(), authHandler.Login)
	authRoutes.Post("/logout", authHandler.Logout)
	authRoutes.Post("/refresh", authHandler.Refresh)
	authRoutes.Get("/me", mw.Auth.Authenticate(), authHandler.Me)

	api.Get("/oauth/:provider", func(c *fiber.Ctx) error {
		if svc.OAuth == nil {
			return middleware.WriteError(c, apperrors.NotFound("OAuth is not configured"))
		}
		if err := svc.OAuth.Redirect(c, c.Params("provider")); err != nil {
			return middleware.WriteError(c, err)
		}
		return nil
	})

	userRoutes := api.Group("/user")
	userRoutes.Get("/", userHandler.List)
	userRoutes.Get("/:id", userHandler.Get)
	userRoutes.Delete("/:id", mw.Auth.Authenticate(), userHandler.Delete)

	brandRoutes := api.Group("/brand")
	brandRoutes.Get("/", catalogHandler.ListBrands)
	brandRoutes.Get("/:id", catalogHandler.BrandDetail)
	brandRoutes.Post("/", auth, catalogHandler.CreateBrand)

	modelRoutes := api.Group("/model")
	modelRoutes.Get("/", catalogHandler.ListModels)
	modelRoutes.Get("/:id", catalogHandler.ModelDetail)
	modelRoutes.Post("/", auth, catalogHandler.CreateModel)

	carRoutes := api.Group("/car")
	carRoutes.Post("/", auth, catalogHandler.CreateCar)
	carRoutes.Get("/", catalogHandler.ListCars)
	carRoutes.Get("/:id", catalogHandler.GetCar)
	carRoutes.Put("/:id", auth, catalogHandler.UpdateCar)
	carRoutes.Delete("/:id", auth, catalogHandler.DeleteCar)

	imageRoutes := api.Group("/car_image")
	imageRoutes.Post("/", auth, catalogHandler.CreateImage)
	imageRoutes.Post("/upload", auth, catalogHandler.UploadImage)
	imageRoutes.Get("/", catalogHandler.ListImages)
	imageRoutes.Delete("/:id", auth, catalogHandler.DeleteImage)

	auctionRoutes := api.Group("/auction")
	auctionRoutes.Post("/", auth, auctionHandler.CreateAuction)
	auctionRoutes.Get("/", auctionHandler.ListAuctions)
	auctionRoutes.Get("/:id", auctionHandler.GetAuction)
	auctionRoutes.Put("/:id", auth, auctionHandler.UpdateAuction)
	auctionRoutes.Delete("/:id", auth, auctionHandler.DeleteAuction)

	bidRoutes := api.Group("/bid")
	bidRoutes.Post("/", auth, auctionHandler.PlaceBid)
	bidRoutes.Get("/", auctionHandler.ListBids)

	feedbackRoutes := api.Group("/feedback")
	feedbackRoutes.Post("/", auth, auctionHandler.CreateFeedback)
	feedbackRoutes.Get("/", auctionHandler.ListFeedback)
	feedbackRoutes.Get("/:id", auctionHandler.GetFeedback)
	feedbackRoutes.Delete("/:id", auth, auctionHandler.DeleteFeedback)

	app.Use(notFoundHandler)
}

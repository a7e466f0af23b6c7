package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/autobid/auction-api/docs" // Swagger docs
	"github.com/autobid/auction-api/internal/catalog"
	"github.com/autobid/auction-api/internal/config"
	"github.com/autobid/auction-api/internal/database"
	"github.com/autobid/auction-api/internal/health"
	"github.com/autobid/auction-api/internal/identity"
	"github.com/autobid/auction-api/internal/ledger"
	"github.com/autobid/auction-api/internal/logging"
	"github.com/autobid/auction-api/internal/metrics"
	"github.com/autobid/auction-api/internal/middleware"
	"github.com/autobid/auction-api/internal/oauth"
	"github.com/autobid/auction-api/internal/objectstore"
	"github.com/autobid/auction-api/internal/routes"
	"github.com/autobid/auction-api/internal/secrets"
	"github.com/autobid/auction-api/internal/token"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"gorm.io/gorm"
)

// @title Auction API
// @version 1.0
// @description Vehicle auction marketplace: catalog, auctions, bids and feedback

// @host localhost:8000
// @BasePath /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := secrets.Resolve(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Failed to resolve secrets")
	}

	if err := metrics.Init(); err != nil {
		logger.WithError(err).Fatal("Failed to initialize metrics")
	}

	tracingShutdown, err := middleware.InitTracing(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to setup tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingShutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Failed to shutdown tracing")
		}
	}()
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	db, err := database.Open(&cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			logger.WithError(err).Fatal("Failed to migrate database")
		}
	}

	tokenStore, err := newTokenStore(ctx, cfg, db, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize token store")
	}

	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled {
		redisClient, err = middleware.NewRedisClient(&cfg.Redis, logger)
		if err != nil {
			// Limiters and idempotency are skipped rather than refusing to start.
			logger.WithError(err).Warn("Redis unavailable, continuing without rate limiting and idempotency")
			redisClient = nil
		}
	}

	catalogOpts := []catalog.Option{catalog.WithPageLimits(cfg.Auction.PageLimit, cfg.Auction.MaxPageLimit)}
	if cfg.ObjectStore.Endpoint != "" {
		store, err := objectstore.NewMinioStore(ctx, &cfg.ObjectStore, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize object store")
		}
		catalogOpts = append(catalogOpts, catalog.WithImageStore(store))
	}

	users := identity.NewService(db, logger)
	tokens := token.NewService(users, tokenStore, token.NewIssuer(&cfg.JWT), logger)
	ledgerService := ledger.NewService(db, logger)

	middlewareManager, err := middleware.NewManager(cfg, redisClient, tokens, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize middleware manager")
	}
	defer func() {
		if err := middlewareManager.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close Redis client")
		}
	}()

	checker := health.NewChecker(cfg.GRPC.HealthInterval, logger)
	checker.Register("database", database.HealthCheck(db))
	if redisClient != nil {
		checker.Register("redis", middleware.RedisHealthCheck(redisClient))
	}
	go checker.Run(ctx)

	grpcServer := checker.NewGRPCServer()
	go func() {
		if err := health.Serve(grpcServer, cfg.GRPC.HealthPort, logger); err != nil {
			logger.WithError(err).Error("gRPC health server stopped")
		}
	}()

	if cfg.Auction.SweepInterval > 0 {
		go ledger.NewSweeper(ledgerService, cfg.Auction.SweepInterval).Run(ctx)
	}

	app := fiber.New(fiber.Config{
		AppName:      "Auction API",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BodyLimit:    cfg.Server.BodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				code := apperrors.CodeInternalError
				switch {
				case fe.Code == fiber.StatusNotFound:
					code = apperrors.CodeNotFound
				case fe.Code < 500:
					code = apperrors.CodeBadRequest
				}
				return c.Status(fe.Code).JSON(apperrors.NewAppError(code, fe.Message, err).ToErrorResponse(middleware.RequestID(c)))
			}
			logger.WithError(err).WithFields(logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
			}).Error("Request error")
			return middleware.WriteError(c, err)
		},
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORS.AllowOrigins,
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Requested-With,Idempotency-Key",
		MaxAge:       86400,
	}))
	app.Use(otelfiber.Middleware())
	if cfg.Server.Environment == "development" {
		app.Use(pprof.New())
	}

	var oauthRegistry routes.OAuthRedirector
	registry := oauth.NewRegistry(&cfg.OAuth, cfg.Server.Environment != "development", logger)
	if len(registry.Providers()) > 0 {
		oauthRegistry = registry
	}

	routes.Setup(app, cfg, logger, middlewareManager, routes.Services{
		Users:    users,
		Tokens:   tokens,
		Catalog:  catalog.NewService(db, logger, catalogOpts...),
		Auctions: ledgerService,
		OAuth:    oauthRegistry,
		Health:   checker,
	})

	go func() {
		<-ctx.Done()
		logger.Info("Gracefully shutting down...")
		grpcServer.GracefulStop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.WithError(err).Error("Server shutdown failed")
		}
	}()

	logger.WithField("port", cfg.Server.Port).Info("Starting Auction API server")
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}

func newTokenStore(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *logrus.Logger) (token.Store, error) {
	if cfg.TokenStore != "dynamodb" {
		return token.NewSQLStore(db), nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.DynamoDB.Region)}
	if cfg.AWS.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWS.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDB.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDB.Endpoint)
		}
	})
	logger.WithFields(logrus.Fields{
		"region":     cfg.DynamoDB.Region,
		"table_name": cfg.DynamoDB.TokensTableName,
	}).Info("DynamoDB token store initialized")
	return token.NewDynamoStore(client, cfg.DynamoDB.TokensTableName), nil
}

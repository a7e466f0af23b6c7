package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server        ServerConfig        `envconfig:"SERVER"`
	Database      DatabaseConfig      `envconfig:"DATABASE"`
	Redis         RedisConfig         `envconfig:"REDIS"`
	JWT           JWTConfig           `envconfig:"JWT"`
	TokenStore    string              `envconfig:"TOKEN_STORE" default:"sql"`
	DynamoDB      DynamoDBConfig      `envconfig:"DYNAMODB"`
	RateLimit     RateLimitConfig     `envconfig:"RATE_LIMIT"`
	LoginLimit    LoginLimitConfig    `envconfig:"LOGIN_LIMIT"`
	Observability ObservabilityConfig `envconfig:"OBSERVABILITY"`
	CORS          CORSConfig          `envconfig:"CORS"`
	Log           LogConfig           `envconfig:"LOG"`
	AWS           AWSConfig           `envconfig:"AWS"`
	OAuth         OAuthConfig         `envconfig:"OAUTH"`
	ObjectStore   ObjectStoreConfig   `envconfig:"OBJECT_STORE"`
	Auction       AuctionConfig       `envconfig:"AUCTION"`
	GRPC          GRPCConfig          `envconfig:"GRPC"`
}

type AWSConfig struct {
	Region     string `envconfig:"REGION" default:"eu-central-1"`
	Profile    string `envconfig:"PROFILE" default:""`
	SecretName string `envconfig:"SECRET_NAME" default:""`
}

type ServerConfig struct {
	Port         string        `envconfig:"PORT" default:"8000"`
	Environment  string        `envconfig:"ENVIRONMENT" default:"development"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
	AuthRequired bool          `envconfig:"AUTH_REQUIRED" default:"true"`
	BodyLimit    int           `envconfig:"BODY_LIMIT" default:"10485760"`
}

type DatabaseConfig struct {
	Driver          string        `envconfig:"DRIVER" default:"postgres"` // postgres, mysql, sqlite
	DSN             string        `envconfig:"DSN" default:"host=localhost user=postgres password=postgres dbname=auction port=5432 sslmode=disable"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"30m"`
	AutoMigrate     bool          `envconfig:"AUTO_MIGRATE" default:"true"`
	SlowThreshold   time.Duration `envconfig:"SLOW_THRESHOLD" default:"200ms"`
}

type RedisConfig struct {
	Enabled             bool          `envconfig:"ENABLED" default:"true"`
	Address             string        `envconfig:"ADDRESS" default:"localhost:6379"`
	Password            string        `envconfig:"PASSWORD" default:""`
	Database            int           `envconfig:"DATABASE" default:"0"`
	MaxRetries          int           `envconfig:"MAX_RETRIES" default:"3"`
	PoolSize            int           `envconfig:"POOL_SIZE" default:"100"`
	PoolTimeout         time.Duration `envconfig:"POOL_TIMEOUT" default:"4s"`
	TLSEnabled          bool          `envconfig:"TLS_ENABLED" default:"false"`
	PasswordFromSecrets bool          `envconfig:"PASSWORD_FROM_SECRETS" default:"false"`
	ClusterMode         bool          `envconfig:"CLUSTER_MODE" default:"false"`
}

type JWTConfig struct {
	Secret            string        `envconfig:"SECRET" default:"change-me-in-production"`
	SecretFromSecrets bool          `envconfig:"SECRET_FROM_SECRETS" default:"false"`
	SecretName        string        `envconfig:"SECRET_NAME" default:""`
	Issuer            string        `envconfig:"ISSUER" default:"auction-api"`
	AccessTTL         time.Duration `envconfig:"ACCESS_TTL" default:"15m"`
	RefreshTTL        time.Duration `envconfig:"REFRESH_TTL" default:"72h"`
	// External identity provider tokens, verified against a JWKS when set.
	JWKSEndpoint string        `envconfig:"JWKS_ENDPOINT" required:"false"`
	CacheTTL     time.Duration `envconfig:"CACHE_TTL" default:"10m"`
	Audience     string        `envconfig:"AUDIENCE" required:"false"`
}

type DynamoDBConfig struct {
	TokensTableName string `envconfig:"TOKENS_TABLE_NAME" default:"auction-refresh-tokens"`
	Region          string `envconfig:"REGION" default:"eu-central-1"`
	Endpoint        string `envconfig:"ENDPOINT" default:""`
}

type RateLimitConfig struct {
	RPS         int           `envconfig:"RPS" default:"50"`
	Burst       int           `envconfig:"BURST" default:"100"`
	WindowSize  time.Duration `envconfig:"WINDOW_SIZE" default:"1s"`
	Enabled     bool          `envconfig:"ENABLED" default:"true"`
	ExemptPaths []string      `envconfig:"EXEMPT_PATHS" default:"/healthz,/readyz,/metrics"`
}

type LoginLimitConfig struct {
	Max    int           `envconfig:"MAX" default:"3"`
	Window time.Duration `envconfig:"WINDOW" default:"5s"`
}

type ObservabilityConfig struct {
	MetricsPath    string  `envconfig:"METRICS_PATH" default:"/metrics"`
	OTLPEndpoint   string  `envconfig:"OTLP_ENDPOINT" default:"http://localhost:4318"`
	TracingEnabled bool    `envconfig:"TRACING_ENABLED" default:"false"`
	StdoutTracing  bool    `envconfig:"STDOUT_TRACING" default:"false"`
	SampleRate     float64 `envconfig:"SAMPLE_RATE" default:"0.1"`
}

type CORSConfig struct {
	AllowOrigins string `envconfig:"ALLOW_ORIGINS" default:"*"`
}

type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`
}

type OAuthConfig struct {
	RedirectBase string              `envconfig:"REDIRECT_BASE" default:"http://localhost:8000/api/v1/oauth"`
	GitHub       OAuthProviderConfig `envconfig:"GITHUB"`
	Google       OAuthProviderConfig `envconfig:"GOOGLE"`
}

type OAuthProviderConfig struct {
	ClientID     string `envconfig:"CLIENT_ID" default:""`
	ClientSecret string `envconfig:"CLIENT_SECRET" default:""`
}

type ObjectStoreConfig struct {
	Endpoint  string `envconfig:"ENDPOINT" default:""`
	AccessKey string `envconfig:"ACCESS_KEY" default:""`
	SecretKey string `envconfig:"SECRET_KEY" default:""`
	Bucket    string `envconfig:"BUCKET" default:"car-images"`
	UseSSL    bool   `envconfig:"USE_SSL" default:"false"`
	PublicURL string `envconfig:"PUBLIC_URL" default:""`
}

type AuctionConfig struct {
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"0s"`
	PageLimit     int           `envconfig:"PAGE_LIMIT" default:"3"`
	MaxPageLimit  int           `envconfig:"MAX_PAGE_LIMIT" default:"100"`
}

type GRPCConfig struct {
	HealthPort     string        `envconfig:"HEALTH_PORT" default:"9090"`
	HealthInterval time.Duration `envconfig:"HEALTH_INTERVAL" default:"10s"`
}

func Load() (*Config, error) {
	// A local .env is optional; real environments set variables directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	// Additional processing for slice fields that envconfig doesn't handle well
	if exemptPaths := os.Getenv("RATE_LIMIT_EXEMPT_PATHS"); exemptPaths != "" {
		cfg.RateLimit.ExemptPaths = strings.Split(exemptPaths, ",")
		for i := range cfg.RateLimit.ExemptPaths {
			cfg.RateLimit.ExemptPaths[i] = strings.TrimSpace(cfg.RateLimit.ExemptPaths[i])
		}
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if port, err := strconv.Atoi(cfg.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", cfg.Server.Port)
	}

	if cfg.Observability.SampleRate < 0 || cfg.Observability.SampleRate > 1 {
		return fmt.Errorf("invalid tracing sample rate: %f", cfg.Observability.SampleRate)
	}

	switch cfg.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	switch cfg.TokenStore {
	case "sql", "dynamodb":
	default:
		return fmt.Errorf("unsupported token store: %s", cfg.TokenStore)
	}

	if cfg.JWT.Secret == "" && !cfg.JWT.SecretFromSecrets {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if cfg.JWT.AccessTTL <= 0 || cfg.JWT.RefreshTTL <= cfg.JWT.AccessTTL {
		return fmt.Errorf("invalid token lifetimes: access %s, refresh %s", cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	}

	if cfg.LoginLimit.Max < 1 || cfg.LoginLimit.Window <= 0 {
		return fmt.Errorf("invalid login limit: %d per %s", cfg.LoginLimit.Max, cfg.LoginLimit.Window)
	}

	if cfg.Auction.PageLimit < 1 || cfg.Auction.MaxPageLimit < cfg.Auction.PageLimit {
		return fmt.Errorf("invalid page limits: default %d, max %d", cfg.Auction.PageLimit, cfg.Auction.MaxPageLimit)
	}

	return nil
}

package middleware

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/autobid/auction-api/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// NewRedisClient connects to a standalone node or a cluster, depending on
// REDIS_CLUSTER_MODE. Any Secrets Manager password has already been
// resolved into cfg.Password.
func NewRedisClient(cfg *config.RedisConfig, logger *logrus.Logger) (redis.UniversalClient, error) {
	var tlsConfig *tls.Config
	if cfg.TLSEnabled {
		tlsConfig = &tls.Config{ServerName: extractHostname(cfg.Address)}
		logger.WithField("address", cfg.Address).Info("Redis TLS encryption enabled")
	}

	options := &redis.UniversalOptions{
		Addrs:           []string{cfg.Address},
		Password:        cfg.Password,
		DB:              cfg.Database,
		MaxRetries:      cfg.MaxRetries,
		PoolSize:        cfg.PoolSize,
		PoolTimeout:     cfg.PoolTimeout,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		DialTimeout:     5 * time.Second,
		MinIdleConns:    10,
		ConnMaxIdleTime: 10 * time.Minute,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		TLSConfig:       tlsConfig,
	}

	var client redis.UniversalClient
	if cfg.ClusterMode {
		// A single configuration endpoint still needs the cluster client.
		client = redis.NewClusterClient(options.Cluster())
	} else {
		client = redis.NewUniversalClient(options)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	mode := "standalone"
	if cfg.ClusterMode {
		mode = "cluster"
	}
	logger.WithFields(logrus.Fields{
		"address": cfg.Address,
		"mode":    mode,
	}).Info("Connected to Redis")
	return client, nil
}

// RedisHealthCheck pings Redis for the readiness probes.
func RedisHealthCheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis unavailable: %w", err)
		}
		return nil
	}
}

func extractHostname(address string) string {
	if idx := strings.LastIndex(address, ":"); idx != -1 {
		return address[:idx]
	}
	return address
}

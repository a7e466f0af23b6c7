package health

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestCheckerReflectsDependencies(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	ctx := context.Background()

	var redisErr error
	h := NewChecker(0, logger)
	h.Register("database", func(context.Context) error { return nil })
	h.Register("redis", func(context.Context) error { return redisErr })

	results, ok := h.CheckAll(ctx)
	assert.True(t, ok)
	assert.Equal(t, map[string]string{"database": "ok", "redis": "ok"}, results)

	resp, err := h.Server().Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	redisErr = errors.New("connection refused")
	results, ok = h.CheckAll(ctx)
	assert.False(t, ok)
	assert.Equal(t, "connection refused", results["redis"])
	assert.Equal(t, results, h.Last())

	resp, err = h.Server().Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}

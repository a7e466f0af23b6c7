package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(bidsTotal.WithLabelValues("accepted"))
	RecordBid("accepted")
	RecordBid("accepted")
	assert.Equal(t, before+2, testutil.ToFloat64(bidsTotal.WithLabelValues("accepted")))

	before = testutil.ToFloat64(auctionTransitionsTotal.WithLabelValues("waiting", "started"))
	RecordAuctionTransition("waiting", "started")
	assert.Equal(t, before+1, testutil.ToFloat64(auctionTransitionsTotal.WithLabelValues("waiting", "started")))
}

func TestHTTPMetricsAndHandler(t *testing.T) {
	require.NoError(t, Init())
	require.NoError(t, Init())

	app := fiber.New()
	app.Use(HTTPMetricsMiddleware())
	app.Get("/car/:id", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/metrics", PrometheusHandler())

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/car/:id", "200"))
	resp, err := app.Test(httptest.NewRequest("GET", "/car/7", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/car/:id", "200")))

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "http_server_requests_total")
}

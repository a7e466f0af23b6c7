package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "sql", cfg.TokenStore)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 72*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, 3, cfg.LoginLimit.Max)
	assert.Equal(t, 5*time.Second, cfg.LoginLimit.Window)
	assert.Equal(t, 3, cfg.Auction.PageLimit)
	assert.Equal(t, []string{"/healthz", "/readyz", "/metrics"}, cfg.RateLimit.ExemptPaths)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file::memory:")
	t.Setenv("TOKEN_STORE", "dynamodb")
	t.Setenv("RATE_LIMIT_EXEMPT_PATHS", "/healthz, /swagger")
	t.Setenv("OAUTH_GITHUB_CLIENT_ID", "gh-client")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "dynamodb", cfg.TokenStore)
	assert.Equal(t, []string{"/healthz", "/swagger"}, cfg.RateLimit.ExemptPaths)
	assert.Equal(t, "gh-client", cfg.OAuth.GitHub.ClientID)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad port", map[string]string{"SERVER_PORT": "99999"}, "invalid server port"},
		{"bad sample rate", map[string]string{"OBSERVABILITY_SAMPLE_RATE": "1.5"}, "sample rate"},
		{"bad driver", map[string]string{"DATABASE_DRIVER": "oracle"}, "unsupported database driver"},
		{"bad token store", map[string]string{"TOKEN_STORE": "memcached"}, "unsupported token store"},
		{"empty secret", map[string]string{"JWT_SECRET": ""}, "JWT_SECRET"},
		{"refresh shorter than access", map[string]string{"JWT_REFRESH_TTL": "1m"}, "token lifetimes"},
		{"zero login limit", map[string]string{"LOGIN_LIMIT_MAX": "0"}, "login limit"},
		{"page limit above max", map[string]string{"AUCTION_PAGE_LIMIT": "500"}, "page limits"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

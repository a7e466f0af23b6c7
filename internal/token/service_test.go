package token

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/autobid/auction-api/internal/config"
	"github.com/autobid/auction-api/internal/database/dbtest"
	"github.com/autobid/auction-api/internal/identity"
	"github.com/autobid/auction-api/internal/models"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		Secret:     "test-secret",
		Issuer:     "auction-api",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 72 * time.Hour,
	}
}

type testEnv struct {
	db     *gorm.DB
	svc    *Service
	issuer *Issuer
	user   *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db := dbtest.New(t)
	users := identity.NewService(db, logger, identity.WithBcryptCost(bcrypt.MinCost))
	user, err := users.Register(context.Background(), models.RegisterRequest{
		Username:  "alice",
		FirstName: "Alice",
		Email:     "alice@example.com",
		Password:  "secret123",
		Role:      models.RoleBuyer,
	})
	require.NoError(t, err)

	issuer := NewIssuer(testJWTConfig())
	return &testEnv{
		db:     db,
		svc:    NewService(users, NewSQLStore(db), issuer, logger),
		issuer: issuer,
		user:   user,
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.svc.Login(ctx, "alice@example.com", "wrong")
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthenticated))
	_, err = env.svc.Login(ctx, "nobody@example.com", "secret123")
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthenticated))

	pair, err := env.svc.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "bearer", pair.Type)
	assert.NotEqual(t, pair.Access, pair.Refresh)

	var stored models.RefreshToken
	require.NoError(t, env.db.Where("token = ?", pair.Refresh).First(&stored).Error)
	assert.Equal(t, env.user.ID, stored.UserID)

	claims, err := env.svc.VerifyAccess(pair.Access)
	require.NoError(t, err)
	uid, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, env.user.ID, uid)
	assert.Equal(t, "alice", claims.Username)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, 5*time.Second)

	_, err = env.svc.VerifyAccess(pair.Refresh)
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthenticated), "refresh token must not pass as access token")
}

func TestLoginTwiceYieldsDistinctRefreshTokens(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	first, err := env.svc.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)
	second, err := env.svc.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)
	assert.NotEqual(t, first.Refresh, second.Refresh)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	err := env.svc.Logout(ctx, "never-issued")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
	assert.Equal(t, "Token not found", appErr.Message)

	pair, err := env.svc.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)
	require.NoError(t, env.svc.Logout(ctx, pair.Refresh))

	_, err = env.svc.Refresh(ctx, pair.Refresh)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
	assert.True(t, apperrors.Is(env.svc.Logout(ctx, pair.Refresh), apperrors.CodeNotFound))
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	pair, err := env.svc.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)

	resp, err := env.svc.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	assert.Equal(t, "bearer", resp.TokenType)

	claims, err := env.svc.VerifyAccess(resp.AccessToken)
	require.NoError(t, err)
	uid, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, env.user.ID, uid)
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.issuer.now = func() time.Time { return time.Now().Add(-100 * time.Hour) }
	expired, expiresAt, err := env.issuer.IssueRefresh(env.user.ID, env.user.Username)
	require.NoError(t, err)
	env.issuer.now = time.Now
	require.NoError(t, NewSQLStore(env.db).Save(ctx, &models.RefreshToken{Token: expired, UserID: env.user.ID, ExpiresAt: expiresAt}))

	_, err = env.svc.Refresh(ctx, expired)
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthenticated))

	// The expired row is gone.
	_, err = env.svc.Refresh(ctx, expired)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestRevokeAll(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		_, err := env.svc.Login(ctx, "alice@example.com", "secret123")
		require.NoError(t, err)
	}
	require.NoError(t, env.svc.RevokeAll(ctx, env.user.ID))

	var n int64
	require.NoError(t, env.db.Model(&models.RefreshToken{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestIssuerParse(t *testing.T) {
	issuer := NewIssuer(testJWTConfig())

	access, _, err := issuer.IssueAccess(7, "bob")
	require.NoError(t, err)

	claims, err := issuer.Parse(access, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.Subject)
	assert.NotEmpty(t, claims.ID)

	_, err = issuer.Parse(access, TypeRefresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	other := NewIssuer(&config.JWTConfig{Secret: "another", Issuer: "auction-api", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	_, err = other.Parse(access, TypeAccess)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "7", "iss": "auction-api", "exp": time.Now().Add(time.Hour).Unix(), "typ": TypeAccess})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Parse(unsigned, TypeAccess)
	assert.Error(t, err)

	bad := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "external|abc"}}
	_, err = bad.UserID()
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrWrongTokenType))
}

package identity

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/autobid/auction-api/internal/database/dbtest"
	"github.com/autobid/auction-api/internal/models"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) *Service {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewService(dbtest.New(t), logger, WithBcryptCost(bcrypt.MinCost))
}

func registerRequest(username, email string) models.RegisterRequest {
	return models.RegisterRequest{
		Username:  username,
		FirstName: "Test",
		Email:     email,
		Password:  "secret123",
		Role:      models.RoleBuyer,
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, err := svc.Register(ctx, registerRequest("alice", "alice@example.com"))
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "secret123", user.PasswordHash)
	assert.False(t, user.DateRegistered.IsZero())

	tests := []struct {
		name    string
		req     models.RegisterRequest
		code    apperrors.ErrorCode
		message string
	}{
		{"duplicate username", registerRequest("alice", "other@example.com"), apperrors.CodeConflict, "Username already exists"},
		{"duplicate email", registerRequest("bob", "alice@example.com"), apperrors.CodeConflict, "Email already in use"},
		{"invalid role", models.RegisterRequest{Username: "carol", FirstName: "C", Email: "c@example.com", Password: "secret123", Role: "admin"}, apperrors.CodeValidation, "role must be one of [seller buyer]"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.req)
			require.Error(t, err)
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tc.code, appErr.Code)
			assert.Equal(t, tc.message, appErr.Message)
		})
	}
}

func TestRegisterConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	const attempts = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(ctx, registerRequest("dup", "dup@example.com"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if apperrors.Is(err, apperrors.CodeConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicts)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	registered, err := svc.Register(ctx, registerRequest("alice", "alice@example.com"))
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	_, wrongPassword := svc.Authenticate(ctx, "alice@example.com", "nope")
	_, unknownEmail := svc.Authenticate(ctx, "ghost@example.com", "secret123")
	for _, err := range []error{wrongPassword, unknownEmail} {
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.CodeUnauthenticated))
	}
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestGetListDelete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	alice, err := svc.Register(ctx, registerRequest("alice", "alice@example.com"))
	require.NoError(t, err)
	_, err = svc.Register(ctx, registerRequest("bob", "bob@example.com"))
	require.NoError(t, err)

	got, err := svc.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	users, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	require.NoError(t, svc.Delete(ctx, alice.ID))
	_, err = svc.Get(ctx, alice.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	err = svc.Delete(ctx, alice.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

// Package token issues, refreshes and revokes JWT access and refresh tokens.
package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/autobid/auction-api/internal/metrics"
	"github.com/autobid/auction-api/internal/models"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const tokenTypeBearer = "bearer"

// Authenticator checks user credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// Service implements login, logout and refresh on top of an Issuer and a
// refresh token Store.
type Service struct {
	users  Authenticator
	store  Store
	issuer *Issuer
	logger *logrus.Logger
}

func NewService(users Authenticator, store Store, issuer *Issuer, logger *logrus.Logger) *Service {
	return &Service{
		users:  users,
		store:  store,
		issuer: issuer,
		logger: logger,
	}
}

// Login authenticates the user and returns an access/refresh pair. The
// refresh token is persisted so it can later be revoked.
func (s *Service) Login(ctx context.Context, email, password string) (*models.TokenPair, error) {
	ctx, span := otel.Tracer("auction-api/token").Start(ctx, "token.Login")
	defer span.End()

	user, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		metrics.RecordLogin("failure")
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("user.id", int64(user.ID)))

	access, _, err := s.issuer.IssueAccess(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("token: login: %w", err)
	}
	refresh, expiresAt, err := s.issuer.IssueRefresh(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("token: login: %w", err)
	}

	if err := s.store.Save(ctx, &models.RefreshToken{
		Token:     refresh,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, err
	}

	metrics.RecordLogin("success")
	s.logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("User logged in")

	return &models.TokenPair{Access: access, Refresh: refresh, Type: tokenTypeBearer}, nil
}

// Logout revokes a refresh token. Unknown tokens are NOT_FOUND.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if err := s.store.Delete(ctx, refreshToken); err != nil {
		return err
	}
	s.logger.Debug("Refresh token revoked")
	return nil
}

// Refresh issues a new access token for the user the stored refresh token
// belongs to. The refresh token itself must still verify; an expired one
// is dropped from the store.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.AccessTokenResponse, error) {
	stored, err := s.store.Find(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	claims, err := s.issuer.Parse(refreshToken, TypeRefresh)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			if delErr := s.store.Delete(ctx, refreshToken); delErr != nil && !apperrors.Is(delErr, apperrors.CodeNotFound) {
				s.logger.WithError(delErr).Warn("Failed to drop expired refresh token")
			}
			return nil, apperrors.NewAppError(apperrors.CodeUnauthenticated, "Refresh token expired", err)
		}
		return nil, apperrors.NewAppError(apperrors.CodeUnauthenticated, "Invalid refresh token", err)
	}

	access, _, err := s.issuer.IssueAccess(stored.UserID, claims.Username)
	if err != nil {
		return nil, fmt.Errorf("token: refresh: %w", err)
	}
	return &models.AccessTokenResponse{AccessToken: access, TokenType: tokenTypeBearer}, nil
}

// VerifyAccess validates an access token presented to a protected route.
func (s *Service) VerifyAccess(accessToken string) (*Claims, error) {
	claims, err := s.issuer.Parse(accessToken, TypeAccess)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.CodeUnauthenticated, "Token validation failed", err)
	}
	return claims, nil
}

// RevokeAll drops every refresh token of the user.
func (s *Service) RevokeAll(ctx context.Context, userID uint) error {
	return s.store.DeleteByUser(ctx, userID)
}

// Package identity stores users and checks their credentials.
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/autobid/auction-api/internal/database"
	"github.com/autobid/auction-api/internal/models"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	msgUsernameTaken      = "Username already exists"
	msgEmailTaken         = "Email already in use"
	msgInvalidCredentials = "Invalid email or password"
	msgUserNotFound       = "User not found"
)

// Service manages user accounts
type Service struct {
	db         *gorm.DB
	logger     *logrus.Logger
	bcryptCost int
}

type Option func(*Service)

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

func NewService(db *gorm.DB, logger *logrus.Logger, opts ...Option) *Service {
	s := &Service{
		db:         db,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user. Duplicate usernames and emails are a Conflict;
// the unique indexes decide when two registrations race.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if err := models.Validate(req); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	taken, err := s.exists(db, "username = ?", req.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperrors.Conflict(msgUsernameTaken)
	}
	taken, err = s.exists(db, "email = ?", req.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperrors.Conflict(msgEmailTaken)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}

	user := &models.User{
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PhoneNumber:  req.PhoneNumber,
		ProfileImage: req.ProfileImage,
		PasswordHash: string(hash),
		Role:         req.Role,
	}
	if err := db.Create(user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.NewAppError(apperrors.CodeConflict, conflictMessage(err), err)
		}
		return nil, fmt.Errorf("identity: create user: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     user.Role,
	}).Info("User registered")
	return user, nil
}

// Authenticate returns the user owning email when password matches.
// Unknown emails and wrong passwords are reported identically.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperrors.Unauthorized(msgInvalidCredentials)
		}
		return nil, fmt.Errorf("identity: find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.WithField("user_id", user.ID).Warn("Invalid password")
		return nil, apperrors.Unauthorized(msgInvalidCredentials)
	}
	return &user, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperrors.NotFound(msgUserNotFound)
		}
		return nil, fmt.Errorf("identity: get user: %w", err)
	}
	return &user, nil
}

func (s *Service) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("identity: list users: %w", err)
	}
	return users, nil
}

// Delete removes the user together with the cars, bids, feedback and
// refresh tokens that belong to it.
func (s *Service) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.User{}, id).Error; err != nil {
			if database.IsNotFound(err) {
				return apperrors.NotFound(msgUserNotFound)
			}
			return err
		}
		return database.DeleteUser(tx, id)
	})
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return err
		}
		return fmt.Errorf("identity: delete user: %w", err)
	}

	s.logger.WithField("user_id", id).Info("User deleted")
	return nil
}

func (s *Service) exists(db *gorm.DB, query string, args ...interface{}) (bool, error) {
	var n int64
	if err := db.Model(&models.User{}).Where(query, args...).Count(&n).Error; err != nil {
		return false, fmt.Errorf("identity: lookup user: %w", err)
	}
	return n > 0, nil
}

// conflictMessage names the violated column when the driver says which.
func conflictMessage(err error) string {
	if strings.Contains(strings.ToLower(err.Error()), "email") {
		return msgEmailTaken
	}
	return msgUsernameTaken
}

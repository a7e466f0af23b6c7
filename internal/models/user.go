package models

import "time"

// Role of a marketplace user
type Role string

const (
	RoleSeller Role = "seller"
	RoleBuyer  Role = "buyer"
)

// User represents a registered user
type User struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Username       string    `json:"username" gorm:"size:64;uniqueIndex;not null"`
	FirstName      string    `json:"first_name" gorm:"size:128;not null"`
	LastName       *string   `json:"last_name" gorm:"size:128"`
	Email          string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	PhoneNumber    *string   `json:"phone_number" gorm:"size:32"`
	ProfileImage   *string   `json:"profile_image" gorm:"size:512"`
	PasswordHash   string    `json:"-" gorm:"not null"` // bcrypt hash (never in JSON)
	Role           Role      `json:"role" gorm:"size:16;not null"`
	DateRegistered time.Time `json:"date_registered" gorm:"autoCreateTime"`
}

// RefreshToken is a refresh token issued at login and revoked at logout
type RefreshToken struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Token       string    `json:"token" gorm:"size:512;uniqueIndex;not null"`
	UserID      uint      `json:"user_id" gorm:"index;not null"`
	CreatedDate time.Time `json:"created_date" gorm:"autoCreateTime"`
	ExpiresAt   time.Time `json:"expires_at"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

// RegisterRequest represents registration request payload
type RegisterRequest struct {
	Username     string  `json:"username" validate:"required,min=3,max=64"`
	FirstName    string  `json:"first_name" validate:"required,max=128"`
	LastName     *string `json:"last_name" validate:"omitempty,max=128"`
	Email        string  `json:"email" validate:"required,email"`
	PhoneNumber  *string `json:"phone_number" validate:"omitempty,max=32"`
	ProfileImage *string `json:"profile_image" validate:"omitempty,max=512"`
	Password     string  `json:"password" validate:"required,min=6"`
	Role         Role    `json:"role" validate:"required,oneof=seller buyer"`
}

// LoginRequest represents login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenRequest carries a refresh token for logout and refresh
type TokenRequest struct {
	Token string `json:"token" query:"token" validate:"required"`
}

// TokenPair is returned by login
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	Type    string `json:"type"`
}

// AccessTokenResponse is returned by refresh
type AccessTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

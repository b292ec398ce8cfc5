package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	SchoolID string   `json:"school_id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens. SchoolID is the
// tenant every downstream call is scoped to; TeacherID is set for teacher
// accounts and identifies their teacher record.
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	SchoolID  string   `json:"school_id"`
	Role      UserRole `json:"role"`
	TeacherID string   `json:"teacher_id,omitempty"`
	Email     string   `json:"email"`
	jwt.RegisteredClaims
}

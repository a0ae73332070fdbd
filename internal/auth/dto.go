package auth

import "github.com/trendora/trendora-backend/internal/users"

// RegisterRequest captures the signup payload.
type RegisterRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8,max=128"`
	FirstName string  `json:"firstName" validate:"required,max=80"`
	LastName  string  `json:"lastName" validate:"required,max=80"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries the expired access token plus the refresh token.
type RefreshRequest struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// AuthResponse contains the token pair and user issued on register/login/refresh.
type AuthResponse struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	User         *users.UserDTO `json:"user"`
}

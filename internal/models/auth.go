package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest holds the payload for creating an account.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenPair is the result of token issuance. RefreshToken carries the raw
// refresh secret and is transported by the HTTP layer as a cookie, never in
// the JSON body.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"-"`
}

// RegisterResponse describes the created account.
type RegisterResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// AccessClaims is the JWT payload of access tokens. Subject carries the user
// id; validity is proven by signature and expiry alone.
type AccessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

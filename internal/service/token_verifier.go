package service

import (
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hsuzuki/taskbox-api/internal/models"
	appErrors "github.com/hsuzuki/taskbox-api/pkg/errors"
)

// TokenVerifier validates access tokens against the RSA public key. It holds
// no private key material, so it can be handed to any number of verifying
// components without granting the ability to mint tokens.
type TokenVerifier struct {
	publicKey *rsa.PublicKey
}

// NewTokenVerifier constructs a verifier around the given public key.
func NewTokenVerifier(publicKey *rsa.PublicKey) *TokenVerifier {
	return &TokenVerifier{publicKey: publicKey}
}

// Verify parses and validates an access token, returning its claims. Every
// failure mode (bad signature, expiry, malformed token) yields the same
// generic error.
func (v *TokenVerifier) Verify(tokenString string) (*models.AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodRS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.AccessClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}

	return claims, nil
}

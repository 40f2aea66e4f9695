package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hsuzuki/taskbox-api/internal/models"
	appErrors "github.com/hsuzuki/taskbox-api/pkg/errors"
)

type credentialStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type tokenLedger interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	ConsumeByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	DeleteByHash(ctx context.Context, tokenHash string) error
}

// AuthConfig defines the token lifetimes for authentication flows.
type AuthConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AuthService orchestrates registration, login, token refresh and logout. It
// owns the signing key and the hashing policy: bcrypt for passwords (slow,
// salted), SHA-256 for refresh tokens (deterministic, so the ledger can look
// records up by equality).
type AuthService struct {
	users      credentialStore
	tokens     tokenLedger
	signingKey *rsa.PrivateKey
	validator  *validator.Validate
	logger     *zap.Logger
	config     AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users credentialStore, tokens tokenLedger, signingKey *rsa.PrivateKey, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{users: users, tokens: tokens, signingKey: signingKey, validator: validate, logger: logger, config: config}
}

// RefreshTTL exposes the refresh-token lifetime so the HTTP layer can align
// cookie max-age with ledger expiry.
func (s *AuthService) RefreshTTL() time.Duration {
	return s.config.RefreshTTL
}

// Register creates a new user account.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid register payload")
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to check email uniqueness", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Warn("failed to hash password", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{Email: req.Email, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, user); err != nil {
		s.logger.Warn("failed to create user", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	return &models.RegisterResponse{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt}, nil
}

// Login authenticates a user and issues a token pair. Unknown email and
// wrong password return the identical error so callers cannot enumerate
// accounts.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.TokenPair, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid credentials")
		}
		s.logger.Warn("failed to fetch user by email", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid credentials")
	}

	return s.issueTokenPair(ctx, user)
}

// Refresh rotates a refresh token: the presented token is consumed
// atomically, then a fresh pair is issued to its owner. A token that never
// existed, expired, or was already rotated away yields the identical error.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken string) (*models.TokenPair, error) {
	tokenHash := hashRefreshToken(rawRefreshToken)

	stored, err := s.tokens.ConsumeByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired refresh token")
		}
		s.logger.Warn("failed to consume refresh token", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to consume refresh token")
	}

	user, err := s.users.FindByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired refresh token")
		}
		s.logger.Warn("failed to load refresh token owner", zap.String("user_id", stored.UserID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	return s.issueTokenPair(ctx, user)
}

// Logout revokes the refresh token if it exists. Logging out an unknown
// token is a no-op, so the operation is idempotent.
func (s *AuthService) Logout(ctx context.Context, rawRefreshToken string) error {
	tokenHash := hashRefreshToken(rawRefreshToken)
	if err := s.tokens.DeleteByHash(ctx, tokenHash); err != nil {
		s.logger.Warn("failed to revoke refresh token", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke refresh token")
	}
	return nil
}

// issueTokenPair signs an access token and persists a new refresh-token
// record. Issuance only succeeds once the ledger write commits; a refresh
// token is never handed out without a backing row.
func (s *AuthService) issueTokenPair(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.AccessTTL)
	claims := &models.AccessClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.signingKey)
	if err != nil {
		s.logger.Warn("failed to sign access token", zap.String("user_id", user.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign access token")
	}

	rawRefresh, err := generateRefreshSecret()
	if err != nil {
		s.logger.Warn("failed to generate refresh secret", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	record := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashRefreshToken(rawRefresh),
		ExpiresAt: issuedAt.Add(s.config.RefreshTTL),
		CreatedAt: issuedAt,
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		s.logger.Warn("failed to persist refresh token", zap.String("user_id", user.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	return &models.TokenPair{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.config.AccessTTL.Seconds()),
		RefreshToken: rawRefresh,
	}, nil
}

// generateRefreshSecret returns a fresh 256-bit random secret.
func generateRefreshSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// hashRefreshToken maps a raw refresh secret to the hex digest stored in the
// ledger. Deterministic on purpose: lookups are by equality, unlike password
// hashes.
func hashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

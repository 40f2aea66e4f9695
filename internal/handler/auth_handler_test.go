package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsuzuki/taskbox-api/internal/middleware"
	"github.com/hsuzuki/taskbox-api/internal/models"
	"github.com/hsuzuki/taskbox-api/internal/service"
	"github.com/hsuzuki/taskbox-api/pkg/response"
)

type fakeUserStore struct {
	byEmail map[string]*models.User
	byID    map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byEmail: make(map[string]*models.User), byID: make(map[string]*models.User)}
}

func (f *fakeUserStore) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", len(f.byID)+1)
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	f.byEmail[user.Email] = user
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

type fakeTokenStore struct {
	byHash map[string]*models.RefreshToken
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{byHash: make(map[string]*models.RefreshToken)}
}

func (f *fakeTokenStore) Create(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = fmt.Sprintf("rt-%d", len(f.byHash)+1)
	}
	f.byHash[token.TokenHash] = token
	return nil
}

func (f *fakeTokenStore) ConsumeByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	token, ok := f.byHash[tokenHash]
	if !ok || time.Now().UTC().After(token.ExpiresAt) {
		return nil, sql.ErrNoRows
	}
	delete(f.byHash, tokenHash)
	return token, nil
}

func (f *fakeTokenStore) DeleteByHash(ctx context.Context, tokenHash string) error {
	delete(f.byHash, tokenHash)
	return nil
}

var handlerTestKey = func() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return key
}()

func newAuthTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	authSvc := service.NewAuthService(newFakeUserStore(), newFakeTokenStore(), handlerTestKey, nil, nil, service.AuthConfig{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	verifier := service.NewTokenVerifier(&handlerTestKey.PublicKey)
	authHandler := NewAuthHandler(authSvc)

	r := gin.New()
	auth := r.Group("/api/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/me", middleware.JWT(verifier), authHandler.Me)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "refresh_token" {
			return cookie
		}
	}
	t.Fatal("refresh_token cookie not set")
	return nil
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func registerAndLogin(t *testing.T, r *gin.Engine) (*httptest.ResponseRecorder, *http.Cookie) {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/auth/register", gin.H{"email": "a@x.com", "password": "password123"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/auth/login", gin.H{"email": "a@x.com", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	return w, refreshCookie(t, w)
}

func TestAuthHandlerRegister(t *testing.T) {
	r := newAuthTestRouter()

	w := doJSON(t, r, http.MethodPost, "/api/auth/register", gin.H{"email": "a@x.com", "password": "password123"})
	require.Equal(t, http.StatusCreated, w.Code)

	envelope := decodeEnvelope(t, w)
	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, "a@x.com", data["email"])
	assert.NotEmpty(t, data["id"])
	assert.NotContains(t, w.Body.String(), "password")
}

func TestAuthHandlerRegisterDuplicate(t *testing.T) {
	r := newAuthTestRouter()

	w := doJSON(t, r, http.MethodPost, "/api/auth/register", gin.H{"email": "a@x.com", "password": "password123"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/auth/register", gin.H{"email": "a@x.com", "password": "password456"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "email already exists")
}

func TestAuthHandlerLoginSetsRefreshCookie(t *testing.T) {
	r := newAuthTestRouter()

	loginRes, cookie := registerAndLogin(t, r)

	envelope := decodeEnvelope(t, loginRes)
	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, "Bearer", data["token_type"])
	assert.Equal(t, float64(900), data["expires_in"])
	assert.NotEmpty(t, data["access_token"])

	// The raw refresh token travels only in the cookie.
	assert.NotContains(t, loginRes.Body.String(), cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), cookie.MaxAge)
}

func TestAuthHandlerLoginInvalidCredentials(t *testing.T) {
	r := newAuthTestRouter()

	w := doJSON(t, r, http.MethodPost, "/api/auth/register", gin.H{"email": "a@x.com", "password": "password123"})
	require.Equal(t, http.StatusCreated, w.Code)

	wrongPassword := doJSON(t, r, http.MethodPost, "/api/auth/login", gin.H{"email": "a@x.com", "password": "nope-nope"})
	unknownEmail := doJSON(t, r, http.MethodPost, "/api/auth/login", gin.H{"email": "ghost@x.com", "password": "password123"})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.JSONEq(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestAuthHandlerMe(t *testing.T) {
	r := newAuthTestRouter()

	loginRes, _ := registerAndLogin(t, r)
	data := decodeEnvelope(t, loginRes).Data.(map[string]interface{})
	accessToken := data["access_token"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	me := decodeEnvelope(t, w).Data.(map[string]interface{})
	assert.Equal(t, "a@x.com", me["email"])
	assert.NotEmpty(t, me["id"])
}

func TestAuthHandlerMeWithoutToken(t *testing.T) {
	r := newAuthTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerRefreshRotatesCookie(t *testing.T) {
	r := newAuthTestRouter()

	_, cookie := registerAndLogin(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/auth/refresh", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	rotated := refreshCookie(t, w)
	assert.NotEqual(t, cookie.Value, rotated.Value)
	assert.True(t, rotated.HttpOnly)

	// The old cookie was consumed during rotation.
	w = doJSON(t, r, http.MethodPost, "/api/auth/refresh", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid or expired refresh token")

	// The rotated cookie still works.
	w = doJSON(t, r, http.MethodPost, "/api/auth/refresh", nil, rotated)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthHandlerRefreshWithoutCookie(t *testing.T) {
	r := newAuthTestRouter()

	w := doJSON(t, r, http.MethodPost, "/api/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing refresh token")
}

func TestAuthHandlerLogout(t *testing.T) {
	r := newAuthTestRouter()

	_, cookie := registerAndLogin(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/auth/logout", nil, cookie)
	require.Equal(t, http.StatusNoContent, w.Code)

	cleared := refreshCookie(t, w)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)

	// Logging out again without a live token is still a 204.
	w = doJSON(t, r, http.MethodPost, "/api/auth/logout", nil, cookie)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// The revoked token can no longer be refreshed.
	w = doJSON(t, r, http.MethodPost, "/api/auth/refresh", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

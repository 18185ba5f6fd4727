package api_test

import (
	"net/http"
	"testing"

	"github.com/shilkatype/server/internal/api"
	"github.com/shilkatype/server/internal/api/testutils"
	"github.com/shilkatype/server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// Test case 1: Successful registration
	registerReq := models.RegisterRequest{
		Username: "newuser",
		Password: "Password123",
	}

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/register",
		registerReq,
		nil,
	)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp models.AuthResponse
	testutils.DecodeJSON(t, w, &resp)
	assert.Equal(t, "newuser", resp.Username)
	assert.NotZero(t, resp.UserID)

	// Test case 2: Duplicate username
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/register",
		registerReq,
		nil,
	)

	assert.Equal(t, http.StatusConflict, w.Code)

	// Test case 3: Invalid request (password too short)
	invalidReq := models.RegisterRequest{
		Username: "shorty",
		Password: "short",
	}

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/register",
		invalidReq,
		nil,
	)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var errResp models.ErrorResponse
	testutils.DecodeJSON(t, w, &errResp)
	assert.Equal(t, "INVALID_REQUEST", errResp.Code)
}

func TestLogin(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// Test case 1: Successful login
	loginReq := models.LoginRequest{
		Username: testutils.TestUsername,
		Password: testutils.TestPassword,
	}

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/login",
		loginReq,
		nil,
	)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.AuthResponse
	testutils.DecodeJSON(t, w, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "bearer", resp.TokenType)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == api.AccessTokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "login sets the access token cookie")
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, resp.Token, cookie.Value)

	// The cookie alone authenticates
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/auth/me",
		nil,
		map[string]string{"Cookie": api.AccessTokenCookie + "=" + cookie.Value},
	)
	assert.Equal(t, http.StatusOK, w.Code)

	// Test case 2: Invalid credentials
	invalidLoginReq := models.LoginRequest{
		Username: testutils.TestUsername,
		Password: "wrongpassword",
	}

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/login",
		invalidLoginReq,
		nil,
	)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Test case 3: User not found
	nonExistentUserReq := models.LoginRequest{
		Username: "nonexistent",
		Password: testutils.TestPassword,
	}

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/login",
		nonExistentUserReq,
		nil,
	)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/auth/me",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)

	require.Equal(t, http.StatusOK, w.Code)
	var user models.PublicUser
	testutils.DecodeJSON(t, w, &user)
	assert.Equal(t, models.PublicUser{ID: testCtx.TestUserID, Username: testutils.TestUsername}, user)

	// Missing token
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Malformed header
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/auth/me",
		nil,
		map[string]string{"Authorization": "Token abc"},
	)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Token signed with another key
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/auth/me",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT+"x"),
	)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token for a user that no longer exists
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/auth/me",
		nil,
		testutils.AuthHeaders(testutils.GenerateToken(t, 9999)),
	)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogout(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/auth/logout", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, api.AccessTokenCookie, cookies[0].Name)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestHealth(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(api.RequestIDHeader))
}

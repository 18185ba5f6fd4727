package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/shilkatype/server/internal/api"
	"github.com/shilkatype/server/internal/config"
	"github.com/shilkatype/server/internal/models"
	"github.com/shilkatype/server/internal/realtime"
	"github.com/shilkatype/server/internal/repository"
	"github.com/shilkatype/server/internal/service"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	TestJWTSecret = "test-secret-key"
	TestUsername  = "testuser"
	TestPassword  = "testpassword"
)

// TestContext holds all dependencies for tests
type TestContext struct {
	Router      *gin.Engine
	Repository  repository.Repository
	Service     service.Service
	Hub         *realtime.Hub
	JWTSecret   []byte
	DB          *sqlx.DB
	TestUserID  int64
	TestUserJWT string
}

// SetupTestContext creates a new test context. It runs against the in-memory
// repository unless SHILKA_TEST_POSTGRES is set, in which case the configured
// test database is used.
func SetupTestContext(t *testing.T) *TestContext {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var (
		repo repository.Repository
		db   *sqlx.DB
	)
	if os.Getenv("SHILKA_TEST_POSTGRES") != "" {
		cfg, err := config.LoadConfig("")
		require.NoError(t, err)
		cfg.Database.DBName = cfg.Database.TestDBName

		db, err = config.SetupDatabase(cfg)
		require.NoError(t, err, "Failed to set up test database")
		cleanupTestDatabase(t, db)
		repo = repository.NewPostgresRepository(db)
	} else {
		repo = repository.NewMemoryRepository()
	}

	hub := realtime.NewHub(logger)
	svc := service.NewDefaultService(repo, hub, nil, logger, service.Options{
		JWTSecret:    TestJWTSecret,
		RetryBackoff: time.Millisecond,
	})
	handler := api.NewHandler(svc, hub, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestID(), api.JWTSecret(TestJWTSecret))
	handler.SetupRoutes(router)

	testUserID, token := createTestUser(t, repo)

	return &TestContext{
		Router:      router,
		Repository:  repo,
		Service:     svc,
		Hub:         hub,
		JWTSecret:   []byte(TestJWTSecret),
		DB:          db,
		TestUserID:  testUserID,
		TestUserJWT: token,
	}
}

// CleanupTestContext cleans up test resources
func CleanupTestContext(t *TestContext) {
	if t.DB != nil {
		cleanupTestDatabase(nil, t.DB)
		t.DB.Close()
	}
}

// cleanupTestDatabase removes every row created by a test
func cleanupTestDatabase(t *testing.T, db *sqlx.DB) {
	_, err := db.Exec("TRUNCATE coin_transactions, typing_sessions, users RESTART IDENTITY CASCADE")
	if t != nil && err != nil {
		t.Logf("Warning: Failed to clean test database: %v", err)
	}
}

// Helper functions
func createTestUser(t *testing.T, repo repository.Repository) (int64, string) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Username: TestUsername,
		Password: string(hashedPassword),
	}
	require.NoError(t, repo.CreateUser(context.Background(), user), "Failed to create test user")

	return user.ID, GenerateToken(t, user.ID)
}

// GenerateToken signs a token for userID with the test secret
func GenerateToken(t *testing.T, userID int64) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(TestJWTSecret))
	require.NoError(t, err, "Failed to generate JWT token")
	return tokenString
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}

// DecodeJSON unmarshals a recorded response body
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shilkatype/server/internal/models"
)

// Context keys set by the middleware
const (
	userIDKey    = "userId"
	requestIDKey = "requestId"
	jwtSecretKey = "jwtSecret"
)

// RequestIDHeader is echoed back on every response
const RequestIDHeader = "X-Request-ID"

// JWTSecret makes the signing key available to AuthMiddleware
func JWTSecret(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		c.Set(jwtSecretKey, key)
		c.Next()
	}
}

// RequestID tags the request with the caller's id or a fresh uuid
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger writes one structured line per request
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.LogAttrs(c.Request.Context(), level, "request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("request_id", c.GetString(requestIDKey)),
		)
	}
}

// AuthMiddleware returns a Gin middleware for authentication
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			unauthorized(c, "Authentication required")
			return
		}

		// Parse the JWT token
		jwtSecret := c.MustGet(jwtSecretKey).([]byte)
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			// Validate the signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			unauthorized(c, "Invalid token")
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil {
			unauthorized(c, "Invalid token claims")
			return
		}
		userID, err := strconv.ParseInt(sub, 10, 64)
		if err != nil {
			unauthorized(c, "Invalid user ID in token")
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// bearerToken reads the token from the Authorization header, falling back to
// the access token cookie
func bearerToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", false
		}
		return parts[1], true
	}
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Status:  "error",
		Code:    "UNAUTHORIZED",
		Message: message,
	})
}

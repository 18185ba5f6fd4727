package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shilkatype/server/internal/models"
	"github.com/shilkatype/server/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Authentication methods
func (s *DefaultService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	existingUser, err := s.repo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}
	if existingUser != nil {
		return nil, ErrUserExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		Username: req.Username,
		Password: string(hashedPassword),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		// Lost a race with another registration for the same name
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	s.runHooks(ctx, s.invalidate(leaderboardPattern), s.publishLeaderboard())

	return &models.AuthResponse{
		Status:   "success",
		UserID:   user.ID,
		Username: user.Username,
	}, nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.repo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		UserID:    user.ID,
		Username:  user.Username,
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(s.opts.TokenTTL.Seconds()),
	}, nil
}

func (s *DefaultService) GetUser(ctx context.Context, userID int64) (*models.PublicUser, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	public := user.Public()
	return &public, nil
}

// Helper methods
func (s *DefaultService) generateJWT(user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(user.ID, 10),
		"exp": now.Add(s.opts.TokenTTL).Unix(),
		"iat": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

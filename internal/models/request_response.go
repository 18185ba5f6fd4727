package models

// Request models
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=8,max=256"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TypingSessionRequest is the payload of a completed run. WPM and Accuracy,
// when present, are trusted as computed by the client.
type TypingSessionRequest struct {
	Words    []string      `json:"words" binding:"required"`
	History  [][]Keystroke `json:"history" binding:"required"`
	Duration *int          `json:"duration" binding:"omitempty,min=0"`
	WPM      *float64      `json:"wpm" binding:"omitempty,min=0"`
	Accuracy *float64      `json:"accuracy" binding:"omitempty,min=0,max=100"`
	Mode     *string       `json:"mode"`
	Language *string       `json:"language"`
	TestType *string       `json:"test_type"`
}

type AddCoinsRequest struct {
	Amount int `json:"amount" binding:"required"`
}

// Response models
type AuthResponse struct {
	Status    string `json:"status"`
	UserID    int64  `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Token     string `json:"access_token,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	ExpiresIn int    `json:"expires_in,omitempty"`
}

type TypingSessionResponse struct {
	ID         int64   `json:"id"`
	WPM        float64 `json:"wpm"`
	Accuracy   float64 `json:"accuracy"`
	Duration   *int    `json:"duration"`
	TypingMode *string `json:"typing_mode"`
	Language   *string `json:"language"`
	TestType   *string `json:"test_type"`
	CreatedAt  string  `json:"created_at"`
}

// LeaderboardMessage is pushed to websocket subscribers
type LeaderboardMessage struct {
	Type    string       `json:"type"`
	Data    []PublicUser `json:"data,omitempty"`
	Message string       `json:"message,omitempty"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

package models

import (
	"time"
)

// User represents a registered typist
type User struct {
	ID          int64     `db:"id" json:"id"`
	Username    string    `db:"username" json:"username"`
	Password    string    `db:"password" json:"-"` // Password hash, not returned in JSON
	ShilkaCoins int       `db:"shilka_coins" json:"shilka_coins"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// PublicUser is the user shape exposed on the leaderboard and /me
type PublicUser struct {
	ID          int64  `db:"id" json:"id"`
	Username    string `db:"username" json:"username"`
	ShilkaCoins int    `db:"shilka_coins" json:"shilka_coins"`
}

// Public strips credentials from the user
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Username:    u.Username,
		ShilkaCoins: u.ShilkaCoins,
	}
}

// TypingSession is one completed practice run. Words and History hold the JSON
// encoded payload exactly as it was submitted.
type TypingSession struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	WPM        float64   `db:"wpm" json:"wpm"`
	Accuracy   float64   `db:"accuracy" json:"accuracy"`
	Duration   *int      `db:"duration" json:"duration"`
	Words      string    `db:"words" json:"-"`
	History    string    `db:"history" json:"-"`
	TypingMode *string   `db:"typing_mode" json:"typing_mode"`
	Language   *string   `db:"language" json:"language"`
	TestType   *string   `db:"test_type" json:"test_type"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// CoinTransaction records one application of a coin delta to a user balance.
// TypingSessionID is nil for manual adjustments and unique otherwise.
type CoinTransaction struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	TypingSessionID *int64    `db:"typing_session_id" json:"typing_session_id"`
	Amount          int       `db:"amount" json:"amount"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Keystroke is a single typed character
type Keystroke struct {
	Char    string `json:"char"`
	Correct bool   `json:"correct"`
	Time    int64  `json:"time"`
}

// IsCorrect reports whether the keystroke matched the expected character
func (k Keystroke) IsCorrect() bool {
	return k.Correct
}

// CharErrorStat is one row of the per-character error table
type CharErrorStat struct {
	Char       string  `json:"char"`
	ErrorRate  float64 `json:"error_rate"`
	TotalTyped int     `json:"total_typed"`
	Errors     int     `json:"errors"`
}

package model

import (
	"errors"
	"time"
)

// User represents a greengen account. Accounts are never hard-deleted;
// moderation toggles Enabled instead.
type User struct {
	UserID       string    `db:"user_id" json:"user_id"`
	EmailHash    string    `db:"email_hash" json:"-"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Pseudo       string    `db:"pseudo" json:"pseudo"`
	Intro        *string   `db:"intro" json:"intro"`
	Enabled      bool      `db:"enabled" json:"enabled"`
	Since        time.Time `db:"since" json:"since"`
}

// UserSummary is the lightweight projection embedded in follower lists.
type UserSummary struct {
	UserID string  `db:"user_id" json:"user_id"`
	Pseudo string  `db:"pseudo" json:"pseudo"`
	Intro  *string `db:"intro" json:"intro"`
}

// RegisterRequest carries the raw registration input. The service layer
// hashes the email and password before anything reaches storage.
type RegisterRequest struct {
	Pseudo   string  `json:"pseudo"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Intro    *string `json:"intro"`
}

var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrPseudoTaken is returned when the pseudo is already registered
	ErrPseudoTaken = errors.New("pseudo already taken")

	// ErrEmailHashTaken is returned when the email is already registered
	ErrEmailHashTaken = errors.New("email already registered")

	// ErrUserDisabled is returned when an operation targets a disabled account
	ErrUserDisabled = errors.New("user account is disabled")
)

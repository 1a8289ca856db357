package model

import (
	"errors"
	"time"
)

// Like is one user's like on one post, unique per (post_id, user_id).
type Like struct {
	PostID    string    `db:"post_id" json:"post_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Flag is a moderation report on a post, unique per (flagged_by, post_id).
type Flag struct {
	PostID    string    `db:"post_id" json:"post_id"`
	FlaggedBy string    `db:"flagged_by" json:"flagged_by"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Pin marks a post a user wants kept on top of their wall.
type Pin struct {
	PostID    string    `db:"post_id" json:"post_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// HashtagEntry associates a tag with a user who used it, for discovery.
// Re-indexing the same pair is a no-op, never an error.
type HashtagEntry struct {
	Hashtag string `db:"hashtag" json:"hashtag"`
	UserID  string `db:"user_id" json:"user_id"`
}

var (
	ErrAlreadyLiked   = errors.New("post already liked by this user")
	ErrNotLiked       = errors.New("post not liked by this user")
	ErrAlreadyFlagged = errors.New("post already flagged by this user")
	ErrAlreadyPinned  = errors.New("post already pinned by this user")
	ErrNotPinned      = errors.New("post not pinned by this user")
)

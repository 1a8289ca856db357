package model

import (
	"errors"
	"time"
)

// Follow is a directed edge: FollowerID follows UserID.
type Follow struct {
	UserID     string    `db:"user_id" json:"user_id"`
	FollowerID string    `db:"follower_id" json:"follower_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// FollowListResponse is a cursor-paginated page of users. The cursor is
// restartable: passing it back resumes the listing exactly where the
// previous page ended, regardless of edges added in between.
type FollowListResponse struct {
	Users      []UserSummary `json:"users"`
	NextCursor *string       `json:"next_cursor,omitempty"`
	HasMore    bool          `json:"has_more"`
}

var (
	ErrAlreadyFollowing = errors.New("already following this user")
	ErrNotFollowing     = errors.New("not following this user")
	ErrSelfFollow       = errors.New("cannot follow yourself")
)

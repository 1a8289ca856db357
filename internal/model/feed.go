package model

import "time"

// FeedEntry is the materialized placement of a post in a user's view.
// The same shape backs two tables with different population rules:
// wall entries hold the user's own posts, feed entries hold posts
// fanned out from followees.
type FeedEntry struct {
	UserID    string    `db:"user_id" json:"user_id"`
	PostID    string    `db:"post_id" json:"post_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// FeedPage is a cursor-paginated slice of a wall or feed, ordered by
// the referenced post's timestamp descending.
type FeedPage struct {
	Posts      []Post  `json:"posts"`
	NextCursor *string `json:"next_cursor,omitempty"`
	HasMore    bool    `json:"has_more"`
}

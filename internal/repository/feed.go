package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"greengen/internal/cache"
	"greengen/internal/model"
)

type feedRepository struct {
	db *sqlx.DB
}

func NewFeedRepository(db *sqlx.DB) FeedRepository {
	return &feedRepository{db: db}
}

// AddWallEntry places a post on its author's wall. Idempotent: a
// retried publish finds the entry already there and reports false.
func (r *feedRepository) AddWallEntry(ctx context.Context, userID, postID string) (bool, error) {
	return r.addEntry(ctx, "wall_entries", userID, postID)
}

// AddFeedEntry places a post in one follower's feed. Idempotent so
// that a retried fan-out never duplicates entries.
func (r *feedRepository) AddFeedEntry(ctx context.Context, userID, postID string) (bool, error) {
	return r.addEntry(ctx, "feed_entries", userID, postID)
}

func (r *feedRepository) addEntry(ctx context.Context, table, userID, postID string) (bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, post_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, post_id) DO NOTHING
	`, table)
	result, err := r.db.ExecContext(ctx, query, userID, postID)
	if err != nil {
		if _, ok := foreignKeyViolation(err); ok {
			return false, model.ErrPostNotFound
		}
		return false, fmt.Errorf("insert %s: %w", table, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows > 0, nil
}

// RemoveAuthorEntries drops from userID's feed every post authored by
// authorID, returning their ids so the cache can be pruned too.
func (r *feedRepository) RemoveAuthorEntries(ctx context.Context, userID, authorID string) ([]string, error) {
	query := `
		DELETE FROM feed_entries fe
		USING posts p
		WHERE fe.post_id = p.post_id
		  AND fe.user_id = $1
		  AND p.author = $2
		RETURNING fe.post_id
	`
	var removed []string
	err := r.db.SelectContext(ctx, &removed, query, userID, authorID)
	if err != nil {
		return nil, fmt.Errorf("remove author entries: %w", err)
	}
	return removed, nil
}

// GetWall pages a user's wall, ordered by the referenced post's
// timestamp descending, with the same limit+1 cursor pattern as the
// follow listings.
func (r *feedRepository) GetWall(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.Post, *time.Time, error) {
	return r.pageEntries(ctx, "wall_entries", userID, cursor, limit)
}

// GetFeed pages a user's aggregated feed, newest post first.
func (r *feedRepository) GetFeed(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.Post, *time.Time, error) {
	return r.pageEntries(ctx, "feed_entries", userID, cursor, limit)
}

func (r *feedRepository) pageEntries(ctx context.Context, table, userID string, cursor *time.Time, limit int) ([]model.Post, *time.Time, error) {
	var query string
	var args []interface{}

	if cursor == nil {
		query = fmt.Sprintf(`
			SELECT p.post_id, p.author, p.kind, p.body, p.hashtags, p.created_at
			FROM %s e
			JOIN posts p ON p.post_id = e.post_id
			WHERE e.user_id = $1
			ORDER BY p.created_at DESC
			LIMIT $2
		`, table)
		args = []interface{}{userID, limit + 1}
	} else {
		query = fmt.Sprintf(`
			SELECT p.post_id, p.author, p.kind, p.body, p.hashtags, p.created_at
			FROM %s e
			JOIN posts p ON p.post_id = e.post_id
			WHERE e.user_id = $1 AND p.created_at < $2
			ORDER BY p.created_at DESC
			LIMIT $3
		`, table)
		args = []interface{}{userID, cursor, limit + 1}
	}

	var rows []struct {
		PostID    string         `db:"post_id"`
		Author    string         `db:"author"`
		Kind      model.PostKind `db:"kind"`
		Body      *string        `db:"body"`
		Hashtags  pq.StringArray `db:"hashtags"`
		CreatedAt time.Time      `db:"created_at"`
	}
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("page %s: %w", table, err)
	}

	var nextCursor *time.Time
	if len(rows) > limit {
		rows = rows[:limit]
		nextCursor = &rows[len(rows)-1].CreatedAt
	}

	posts := make([]model.Post, len(rows))
	for i, row := range rows {
		posts[i] = model.Post{
			PostID:    row.PostID,
			Author:    row.Author,
			Kind:      row.Kind,
			Body:      row.Body,
			Hashtags:  row.Hashtags,
			CreatedAt: row.CreatedAt,
		}
	}

	return posts, nextCursor, nil
}

// GetFeedPostScores returns (post id, unix microseconds) pairs for
// cache warming, newest first. Microseconds match the column's full
// precision, so cursor bounds built from a score never skip a post.
func (r *feedRepository) GetFeedPostScores(ctx context.Context, userID string, limit int) ([]cache.PostScore, error) {
	query := `
		SELECT p.post_id, (EXTRACT(EPOCH FROM p.created_at) * 1000000)::bigint AS timestamp
		FROM feed_entries e
		JOIN posts p ON p.post_id = e.post_id
		WHERE e.user_id = $1
		ORDER BY p.created_at DESC
		LIMIT $2
	`
	type row struct {
		PostID    string `db:"post_id"`
		Timestamp int64  `db:"timestamp"`
	}
	var rows []row
	err := r.db.SelectContext(ctx, &rows, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("get feed post scores: %w", err)
	}

	scores := make([]cache.PostScore, len(rows))
	for i, r := range rows {
		scores[i] = cache.PostScore{PostID: r.PostID, Timestamp: r.Timestamp}
	}
	return scores, nil
}

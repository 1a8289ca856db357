package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"greengen/internal/model"
)

type followRepository struct {
	db *sqlx.DB
}

func NewFollowRepository(db *sqlx.DB) FollowRepository {
	return &followRepository{db: db}
}

// Create inserts the follower edge. ON CONFLICT DO NOTHING makes
// concurrent duplicate follows race-safe: exactly one insert wins and
// the loser observes inserted=false.
func (r *followRepository) Create(ctx context.Context, userID, followerID string) (bool, error) {
	query := `
		INSERT INTO follows (user_id, follower_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, follower_id) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query, userID, followerID)
	if err != nil {
		if _, ok := foreignKeyViolation(err); ok {
			return false, model.ErrUserNotFound
		}
		return false, fmt.Errorf("failed to create follow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *followRepository) Delete(ctx context.Context, userID, followerID string) error {
	query := `DELETE FROM follows WHERE user_id = $1 AND follower_id = $2`
	result, err := r.db.ExecContext(ctx, query, userID, followerID)
	if err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrNotFollowing
	}

	return nil
}

func (r *followRepository) Exists(ctx context.Context, userID, followerID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM follows WHERE user_id = $1 AND follower_id = $2)`
	var exists bool
	err := r.db.GetContext(ctx, &exists, query, userID, followerID)
	if err != nil {
		return false, fmt.Errorf("failed to check follow existence: %w", err)
	}
	return exists, nil
}

// GetFollowers retrieves users who follow the specified user with
// cursor-based pagination.
//
//   - cursor == nil: start from the newest edge (ORDER BY created_at DESC)
//   - cursor != nil: fetch edges created BEFORE the cursor timestamp
//   - always fetch limit+1 to decide whether more results exist
//
// The timestamp cursor makes the sequence restartable: a caller can
// resume from any page boundary and edges added in between do not
// shift the remaining pages.
func (r *followRepository) GetFollowers(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
	var query string
	var args []interface{}

	if cursor == nil {
		query = `
			SELECT u.user_id, u.pseudo, u.intro, f.created_at
			FROM follows f
			JOIN users u ON u.user_id = f.follower_id
			WHERE f.user_id = $1
			ORDER BY f.created_at DESC
			LIMIT $2
		`
		args = []interface{}{userID, limit + 1}
	} else {
		query = `
			SELECT u.user_id, u.pseudo, u.intro, f.created_at
			FROM follows f
			JOIN users u ON u.user_id = f.follower_id
			WHERE f.user_id = $1 AND f.created_at < $2
			ORDER BY f.created_at DESC
			LIMIT $3
		`
		args = []interface{}{userID, cursor, limit + 1}
	}

	return r.pageUsers(ctx, query, args, limit)
}

// GetFollowing retrieves users that the specified user follows. See
// GetFollowers for the cursor pagination approach.
func (r *followRepository) GetFollowing(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
	var query string
	var args []interface{}

	if cursor == nil {
		query = `
			SELECT u.user_id, u.pseudo, u.intro, f.created_at
			FROM follows f
			JOIN users u ON u.user_id = f.user_id
			WHERE f.follower_id = $1
			ORDER BY f.created_at DESC
			LIMIT $2
		`
		args = []interface{}{userID, limit + 1}
	} else {
		query = `
			SELECT u.user_id, u.pseudo, u.intro, f.created_at
			FROM follows f
			JOIN users u ON u.user_id = f.user_id
			WHERE f.follower_id = $1 AND f.created_at < $2
			ORDER BY f.created_at DESC
			LIMIT $3
		`
		args = []interface{}{userID, cursor, limit + 1}
	}

	return r.pageUsers(ctx, query, args, limit)
}

func (r *followRepository) pageUsers(ctx context.Context, query string, args []interface{}, limit int) ([]model.UserSummary, *time.Time, error) {
	type userWithTime struct {
		model.UserSummary
		CreatedAt time.Time `db:"created_at"`
	}

	var results []userWithTime
	err := r.db.SelectContext(ctx, &results, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to page follow edges: %w", err)
	}

	var users []model.UserSummary
	var nextCursor *time.Time

	if len(results) > limit {
		results = results[:limit]
		nextCursor = &results[len(results)-1].CreatedAt
	}

	for _, result := range results {
		users = append(users, result.UserSummary)
	}

	return users, nextCursor, nil
}

// GetFollowerIDs returns every current follower of userID. This is the
// snapshot fan-out works from; followers added afterwards do not
// retroactively receive the post.
func (r *followRepository) GetFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `SELECT follower_id FROM follows WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get follower ids: %w", err)
	}
	return ids, nil
}

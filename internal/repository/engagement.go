package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"greengen/internal/model"
)

type engagementRepository struct {
	db *sqlx.DB
}

func NewEngagementRepository(db *sqlx.DB) EngagementRepository {
	return &engagementRepository{db: db}
}

// refErr maps a foreign-key violation on a (post, user) pair insert to
// the missing-side sentinel.
func refErr(constraint string) error {
	if strings.Contains(constraint, "post") {
		return model.ErrPostNotFound
	}
	return model.ErrUserNotFound
}

// Like inserts a like record. The unique key is the sole duplicate
// signal; two racing likes leave one row and one ErrAlreadyLiked.
func (r *engagementRepository) Like(ctx context.Context, postID, userID string) error {
	query := `INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2)`
	_, err := r.db.ExecContext(ctx, query, postID, userID)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return model.ErrAlreadyLiked
		}
		if constraint, ok := foreignKeyViolation(err); ok {
			return refErr(constraint)
		}
		return fmt.Errorf("insert like: %w", err)
	}
	return nil
}

// Unlike deletes a like record. Returns ErrNotLiked if not found.
func (r *engagementRepository) Unlike(ctx context.Context, postID, userID string) error {
	query := `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, postID, userID)
	if err != nil {
		return fmt.Errorf("delete like: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrNotLiked
	}
	return nil
}

func (r *engagementRepository) CountLikes(ctx context.Context, postID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM post_likes WHERE post_id = $1`, postID)
	if err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return count, nil
}

// Flag records a moderation report, one per user per post.
func (r *engagementRepository) Flag(ctx context.Context, postID, flaggedBy, reason string) error {
	query := `INSERT INTO post_flags (post_id, flagged_by, reason) VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, query, postID, flaggedBy, reason)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return model.ErrAlreadyFlagged
		}
		if constraint, ok := foreignKeyViolation(err); ok {
			return refErr(constraint)
		}
		return fmt.Errorf("insert flag: %w", err)
	}
	return nil
}

func (r *engagementRepository) Pin(ctx context.Context, postID, userID string) error {
	query := `INSERT INTO post_pins (post_id, user_id) VALUES ($1, $2)`
	_, err := r.db.ExecContext(ctx, query, postID, userID)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return model.ErrAlreadyPinned
		}
		if constraint, ok := foreignKeyViolation(err); ok {
			return refErr(constraint)
		}
		return fmt.Errorf("insert pin: %w", err)
	}
	return nil
}

func (r *engagementRepository) Unpin(ctx context.Context, postID, userID string) error {
	query := `DELETE FROM post_pins WHERE post_id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, postID, userID)
	if err != nil {
		return fmt.Errorf("delete pin: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrNotPinned
	}
	return nil
}

// IndexHashtags upserts one (hashtag, user) pair per tag. ON CONFLICT
// DO NOTHING makes re-indexing a no-op rather than an error.
func (r *engagementRepository) IndexHashtags(ctx context.Context, userID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}

	query := `
		INSERT INTO hashtag_index (hashtag, user_id)
		VALUES ($1, $2)
		ON CONFLICT (hashtag, user_id) DO NOTHING
	`
	for _, tag := range tags {
		if _, err := r.db.ExecContext(ctx, query, tag, userID); err != nil {
			return fmt.Errorf("index hashtag %q: %w", tag, err)
		}
	}
	return nil
}

// GetHashtagUsers returns the users who have used a tag, for discovery.
func (r *engagementRepository) GetHashtagUsers(ctx context.Context, hashtag string) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM hashtag_index WHERE hashtag = $1`, hashtag)
	if err != nil {
		return nil, fmt.Errorf("get hashtag users: %w", err)
	}
	return ids, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"greengen/internal/model"
)

type messagingRepository struct {
	db *sqlx.DB
}

func NewMessagingRepository(db *sqlx.DB) MessagingRepository {
	return &messagingRepository{db: db}
}

func (r *messagingRepository) CreateConversation(ctx context.Context) (*model.Conversation, error) {
	conv := &model.Conversation{ConversationID: uuid.NewString()}
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO conversations (conversation_id)
		VALUES ($1)
		RETURNING created_at
	`, conv.ConversationID).Scan(&conv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return conv, nil
}

func (r *messagingRepository) ConversationExists(ctx context.Context, conversationID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM conversations WHERE conversation_id = $1)`, conversationID)
	if err != nil {
		return false, fmt.Errorf("check conversation exists: %w", err)
	}
	return exists, nil
}

func (r *messagingRepository) InsertMessage(ctx context.Context, msg *model.Message) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO messages (message_id, conversation_id, sender_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, msg.MessageID, msg.ConversationID, msg.SenderID, msg.Body).Scan(&msg.CreatedAt)
	if err != nil {
		if constraint, ok := foreignKeyViolation(err); ok {
			if strings.Contains(constraint, "conversation") {
				return model.ErrConversationNotFound
			}
			return model.ErrUserNotFound
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetMessages pages a conversation oldest-first; the cursor resumes
// after the last message of the previous page.
func (r *messagingRepository) GetMessages(ctx context.Context, conversationID string, cursor *time.Time, limit int) ([]model.Message, *time.Time, error) {
	var query string
	var args []interface{}

	if cursor == nil {
		query = `
			SELECT message_id, conversation_id, sender_id, body, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at
			LIMIT $2
		`
		args = []interface{}{conversationID, limit + 1}
	} else {
		query = `
			SELECT message_id, conversation_id, sender_id, body, created_at
			FROM messages
			WHERE conversation_id = $1 AND created_at > $2
			ORDER BY created_at
			LIMIT $3
		`
		args = []interface{}{conversationID, cursor, limit + 1}
	}

	var messages []model.Message
	err := r.db.SelectContext(ctx, &messages, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("get messages: %w", err)
	}

	var nextCursor *time.Time
	if len(messages) > limit {
		messages = messages[:limit]
		nextCursor = &messages[len(messages)-1].CreatedAt
	}

	return messages, nextCursor, nil
}

func (r *messagingRepository) FlagMessage(ctx context.Context, messageID, userID string) error {
	query := `INSERT INTO message_flags (message_id, user_id) VALUES ($1, $2)`
	_, err := r.db.ExecContext(ctx, query, messageID, userID)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return model.ErrMessageFlagged
		}
		if constraint, ok := foreignKeyViolation(err); ok {
			if strings.Contains(constraint, "message") {
				return model.ErrMessageNotFound
			}
			return model.ErrUserNotFound
		}
		return fmt.Errorf("insert message flag: %w", err)
	}
	return nil
}

// SharePost records a post shared into a conversation, once per
// (conversation, post) pair.
func (r *messagingRepository) SharePost(ctx context.Context, conversationID, postID, sharedBy string) error {
	query := `
		INSERT INTO conversation_posts (conversation_id, post_id, shared_by)
		VALUES ($1, $2, $3)
	`
	_, err := r.db.ExecContext(ctx, query, conversationID, postID, sharedBy)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return model.ErrPostAlreadyShared
		}
		if constraint, ok := foreignKeyViolation(err); ok {
			switch {
			case strings.Contains(constraint, "conversation"):
				return model.ErrConversationNotFound
			case strings.Contains(constraint, "post"):
				return model.ErrPostNotFound
			default:
				return model.ErrUserNotFound
			}
		}
		return fmt.Errorf("insert shared post: %w", err)
	}
	return nil
}

// GetOrCreatePrivate resolves (userLo, userHi) to its conversation,
// creating one when none exists. The fast path is a plain lookup; on
// miss we insert with ON CONFLICT DO NOTHING and re-read, so a
// concurrent creator and a repeat caller both land on the same row
// without anyone seeing a duplicate-key error.
func (r *messagingRepository) GetOrCreatePrivate(ctx context.Context, userLo, userHi string) (string, bool, error) {
	var conversationID string
	err := r.db.GetContext(ctx, &conversationID, `
		SELECT conversation_id FROM private_conversations
		WHERE user_lo = $1 AND user_hi = $2
	`, userLo, userHi)
	if err == nil {
		return conversationID, false, nil
	}
	if err != sql.ErrNoRows {
		return "", false, fmt.Errorf("lookup private conversation: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	newID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (conversation_id) VALUES ($1)`, newID); err != nil {
		return "", false, fmt.Errorf("insert conversation: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO private_conversations (user_lo, user_hi, conversation_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_lo, user_hi) DO NOTHING
	`, userLo, userHi, newID)
	if err != nil {
		if _, ok := foreignKeyViolation(err); ok {
			return "", false, model.ErrUserNotFound
		}
		return "", false, fmt.Errorf("insert private conversation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		// Lost the race: abandon our conversation row and adopt the winner's.
		tx.Rollback()
		err := r.db.GetContext(ctx, &conversationID, `
			SELECT conversation_id FROM private_conversations
			WHERE user_lo = $1 AND user_hi = $2
		`, userLo, userHi)
		if err != nil {
			return "", false, fmt.Errorf("re-read private conversation: %w", err)
		}
		return conversationID, false, nil
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("commit transaction: %w", err)
	}

	return newID, true, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"greengen/internal/model"
)

// userRepository implements UserRepository using sqlx
type userRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

// Create inserts a new user. The single-row insert is atomic with
// respect to both uniqueness constraints: either the row lands with
// pseudo and email reserved together, or nothing is written.
func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (user_id, email_hash, password_hash, pseudo, intro, enabled)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING enabled, since
	`

	row := r.db.QueryRowxContext(ctx, query,
		u.UserID,
		u.EmailHash,
		u.PasswordHash,
		u.Pseudo,
		u.Intro,
	)

	err := row.Scan(&u.Enabled, &u.Since)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			switch constraint {
			case "users_pseudo_key":
				return model.ErrPseudoTaken
			case "users_email_hash_key":
				return model.ErrEmailHashTaken
			}
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(ctx context.Context, userID string) (*model.User, error) {
	query := `
		SELECT user_id, email_hash, password_hash, pseudo, intro, enabled, since
		FROM users
		WHERE user_id = $1
	`

	var u model.User
	err := r.db.GetContext(ctx, &u, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return &u, nil
}

// GetByPseudo retrieves a user by their pseudo
func (r *userRepository) GetByPseudo(ctx context.Context, pseudo string) (*model.User, error) {
	query := `
		SELECT user_id, email_hash, password_hash, pseudo, intro, enabled, since
		FROM users
		WHERE pseudo = $1
	`

	var u model.User
	err := r.db.GetContext(ctx, &u, query, pseudo)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by pseudo: %w", err)
	}

	return &u, nil
}

// SetEnabled toggles the soft-disable flag. Accounts are never deleted.
func (r *userRepository) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET enabled = $1 WHERE user_id = $2`, enabled, userID)
	if err != nil {
		return fmt.Errorf("failed to set enabled: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrUserNotFound
	}

	return nil
}

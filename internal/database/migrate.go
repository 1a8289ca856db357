package database

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
)

// migration is one additive schema revision. Statements must be safe to
// re-run (IF NOT EXISTS everywhere) because a crash between the last
// statement and the version bump replays the whole revision.
type migration struct {
	version int
	name    string
	stmts   []string
}

// migrations are applied strictly in order and never dropped. The four
// revisions mirror how the schema grew: core social graph first, then
// polls and events, then materialized feeds, then messaging.
var migrations = []migration{
	{
		version: 1,
		name:    "core social graph",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS users (
				user_id       UUID PRIMARY KEY,
				email_hash    TEXT NOT NULL,
				password_hash TEXT NOT NULL,
				pseudo        TEXT NOT NULL,
				intro         TEXT,
				enabled       BOOLEAN NOT NULL DEFAULT TRUE,
				since         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT users_email_hash_key UNIQUE (email_hash),
				CONSTRAINT users_pseudo_key UNIQUE (pseudo)
			)`,
			`CREATE TABLE IF NOT EXISTS follows (
				user_id     UUID NOT NULL REFERENCES users(user_id),
				follower_id UUID NOT NULL REFERENCES users(user_id),
				created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT follows_pkey PRIMARY KEY (user_id, follower_id)
			)`,
			`CREATE TABLE IF NOT EXISTS posts (
				post_id    UUID PRIMARY KEY,
				author     UUID NOT NULL REFERENCES users(user_id),
				kind       TEXT NOT NULL,
				body       TEXT,
				hashtags   TEXT[] NOT NULL DEFAULT '{}',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX IF NOT EXISTS posts_author_idx ON posts (author)`,
			`CREATE INDEX IF NOT EXISTS posts_hashtags_idx ON posts USING GIN (hashtags)`,
			`CREATE TABLE IF NOT EXISTS post_tips (
				tip_id  UUID NOT NULL,
				post_id UUID NOT NULL REFERENCES posts(post_id),
				summary TEXT,
				CONSTRAINT post_tips_tip_id_key UNIQUE (tip_id),
				CONSTRAINT post_tips_post_id_key UNIQUE (post_id)
			)`,
			`CREATE TABLE IF NOT EXISTS post_challenges (
				challenge_id  UUID NOT NULL,
				post_id       UUID NOT NULL REFERENCES posts(post_id),
				start_at      TIMESTAMPTZ NOT NULL,
				duration_secs BIGINT NOT NULL,
				every_secs    BIGINT NOT NULL,
				end_at        TIMESTAMPTZ NOT NULL,
				max_failure   INT NOT NULL,
				max_skip      INT NOT NULL,
				max_partial   INT NOT NULL,
				CONSTRAINT post_challenges_challenge_id_key UNIQUE (challenge_id),
				CONSTRAINT post_challenges_post_id_key UNIQUE (post_id)
			)`,
			`CREATE TABLE IF NOT EXISTS challenge_participants (
				challenge_id  UUID NOT NULL REFERENCES post_challenges(challenge_id),
				challengee_id UUID NOT NULL REFERENCES users(user_id),
				status        TEXT NOT NULL,
				created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT challenge_participants_pkey PRIMARY KEY (challenge_id, challengee_id)
			)`,
			`CREATE TABLE IF NOT EXISTS challenge_report_steps (
				challenge_id  UUID NOT NULL REFERENCES post_challenges(challenge_id),
				challengee_id UUID NOT NULL REFERENCES users(user_id),
				step          INT NOT NULL,
				status        TEXT NOT NULL,
				recorded_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT challenge_report_steps_pkey PRIMARY KEY (challenge_id, challengee_id, step)
			)`,
			`CREATE TABLE IF NOT EXISTS post_likes (
				post_id    UUID NOT NULL REFERENCES posts(post_id),
				user_id    UUID NOT NULL REFERENCES users(user_id),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT post_likes_pkey PRIMARY KEY (post_id, user_id)
			)`,
			`CREATE TABLE IF NOT EXISTS post_flags (
				post_id    UUID NOT NULL REFERENCES posts(post_id),
				flagged_by UUID NOT NULL REFERENCES users(user_id),
				reason     TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT post_flags_pkey PRIMARY KEY (flagged_by, post_id)
			)`,
			`CREATE TABLE IF NOT EXISTS post_pins (
				post_id    UUID NOT NULL REFERENCES posts(post_id),
				user_id    UUID NOT NULL REFERENCES users(user_id),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT post_pins_pkey PRIMARY KEY (post_id, user_id)
			)`,
			`CREATE TABLE IF NOT EXISTS wall_entries (
				user_id    UUID NOT NULL REFERENCES users(user_id),
				post_id    UUID NOT NULL REFERENCES posts(post_id),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT wall_entries_pkey PRIMARY KEY (user_id, post_id)
			)`,
			`CREATE TABLE IF NOT EXISTS hashtag_index (
				hashtag TEXT NOT NULL,
				user_id UUID NOT NULL REFERENCES users(user_id),
				CONSTRAINT hashtag_index_pkey PRIMARY KEY (hashtag, user_id)
			)`,
		},
	},
	{
		version: 2,
		name:    "polls and events",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS post_polls (
				poll_id UUID NOT NULL,
				post_id UUID NOT NULL REFERENCES posts(post_id),
				choices TEXT[] NOT NULL,
				CONSTRAINT post_polls_poll_id_key UNIQUE (poll_id),
				CONSTRAINT post_polls_post_id_key UNIQUE (post_id)
			)`,
			`CREATE TABLE IF NOT EXISTS poll_answers (
				poll_id    UUID NOT NULL REFERENCES post_polls(poll_id),
				user_id    UUID NOT NULL REFERENCES users(user_id),
				choice     TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT poll_answers_pkey PRIMARY KEY (poll_id, user_id)
			)`,
			`CREATE TABLE IF NOT EXISTS post_events (
				event_id  UUID NOT NULL,
				post_id   UUID NOT NULL REFERENCES posts(post_id),
				starts_at TIMESTAMPTZ NOT NULL,
				venue     TEXT,
				CONSTRAINT post_events_event_id_key UNIQUE (event_id),
				CONSTRAINT post_events_post_id_key UNIQUE (post_id)
			)`,
			`CREATE TABLE IF NOT EXISTS event_status (
				event_id   UUID NOT NULL REFERENCES post_events(event_id),
				status     TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT event_status_event_id_key UNIQUE (event_id)
			)`,
			`CREATE TABLE IF NOT EXISTS event_participants (
				event_id   UUID NOT NULL REFERENCES post_events(event_id),
				user_id    UUID NOT NULL REFERENCES users(user_id),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT event_participants_pkey PRIMARY KEY (event_id, user_id)
			)`,
		},
	},
	{
		version: 3,
		name:    "materialized feeds",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS feed_entries (
				user_id    UUID NOT NULL REFERENCES users(user_id),
				post_id    UUID NOT NULL REFERENCES posts(post_id),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT feed_entries_pkey PRIMARY KEY (user_id, post_id)
			)`,
		},
	},
	{
		version: 4,
		name:    "messaging and notifications",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS conversations (
				conversation_id UUID PRIMARY KEY,
				created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE IF NOT EXISTS messages (
				message_id      UUID PRIMARY KEY,
				conversation_id UUID NOT NULL REFERENCES conversations(conversation_id),
				sender_id       UUID NOT NULL REFERENCES users(user_id),
				body            TEXT NOT NULL,
				created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, created_at)`,
			`CREATE TABLE IF NOT EXISTS message_flags (
				message_id UUID NOT NULL REFERENCES messages(message_id),
				user_id    UUID NOT NULL REFERENCES users(user_id),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT message_flags_pkey PRIMARY KEY (message_id, user_id)
			)`,
			`CREATE TABLE IF NOT EXISTS conversation_posts (
				conversation_id UUID NOT NULL REFERENCES conversations(conversation_id),
				post_id         UUID NOT NULL REFERENCES posts(post_id),
				shared_by       UUID NOT NULL REFERENCES users(user_id),
				created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT conversation_posts_pkey PRIMARY KEY (conversation_id, post_id)
			)`,
			`CREATE TABLE IF NOT EXISTS private_conversations (
				user_lo         UUID NOT NULL REFERENCES users(user_id),
				user_hi         UUID NOT NULL REFERENCES users(user_id),
				conversation_id UUID NOT NULL REFERENCES conversations(conversation_id),
				created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT private_conversations_pkey PRIMARY KEY (user_lo, user_hi),
				CONSTRAINT private_conversations_conversation_id_key UNIQUE (conversation_id)
			)`,
			`CREATE TABLE IF NOT EXISTS notification_content (
				user_id         UUID NOT NULL REFERENCES users(user_id),
				notification_id UUID NOT NULL,
				payload         JSONB NOT NULL,
				CONSTRAINT notification_content_pkey PRIMARY KEY (user_id, notification_id)
			)`,
			`CREATE TABLE IF NOT EXISTS notification_deliveries (
				user_id         UUID NOT NULL REFERENCES users(user_id),
				notification_id UUID NOT NULL,
				delivered_at    TIMESTAMPTZ NOT NULL,
				CONSTRAINT notification_deliveries_pkey PRIMARY KEY (user_id, notification_id, delivered_at)
			)`,
		},
	},
}

// Migrate applies all pending revisions. It is idempotent and safe to
// run on every startup; already-applied revisions are skipped.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	err = db.GetContext(ctx, &current, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("read current schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		log.Printf("[Migrate] Applying revision %d: %s", m.version, m.name)

		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}

		for _, stmt := range m.stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
			m.version, m.name,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}

		log.Printf("[Migrate] Revision %d applied", m.version)
	}

	return nil
}

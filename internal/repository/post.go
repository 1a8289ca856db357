package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"greengen/internal/model"
)

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts the base post row and exactly one kind-specific row in
// a single transaction. The caller (content service) has already
// validated that the payload matches the kind.
func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO posts (post_id, author, kind, body, hashtags)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err = tx.QueryRowxContext(ctx, query,
		post.PostID,
		post.Author,
		post.Kind,
		post.Body,
		pq.Array(post.Hashtags),
	).Scan(&post.CreatedAt)
	if err != nil {
		if _, ok := foreignKeyViolation(err); ok {
			return model.ErrUserNotFound
		}
		return fmt.Errorf("insert post: %w", err)
	}

	switch post.Kind {
	case model.KindFreeText:
		// No sub-record.
	case model.KindTip:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO post_tips (tip_id, post_id, summary)
			VALUES ($1, $2, $3)
		`, post.Tip.TipID, post.PostID, post.Tip.Summary)
	case model.KindPoll:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO post_polls (poll_id, post_id, choices)
			VALUES ($1, $2, $3)
		`, post.Poll.PollID, post.PostID, pq.Array(post.Poll.Choices))
	case model.KindChallenge:
		c := post.Challenge
		_, err = tx.ExecContext(ctx, `
			INSERT INTO post_challenges
				(challenge_id, post_id, start_at, duration_secs, every_secs, end_at, max_failure, max_skip, max_partial)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, c.ChallengeID, post.PostID, c.StartAt, c.DurationSecs, c.EverySecs, c.EndAt,
			c.MaxFailure, c.MaxSkip, c.MaxPartial)
	case model.KindEvent:
		e := post.Event
		_, err = tx.ExecContext(ctx, `
			INSERT INTO post_events (event_id, post_id, starts_at, venue)
			VALUES ($1, $2, $3, $4)
		`, e.EventID, post.PostID, e.StartsAt, e.Venue)
		if err == nil {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO event_status (event_id, status)
				VALUES ($1, $2)
			`, e.EventID, model.EventPlanned)
		}
	default:
		return model.ErrInvalidKindPayload
	}
	if err != nil {
		return fmt.Errorf("insert %s record: %w", post.Kind, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a post joined with its kind-specific data.
func (r *postRepository) GetByID(ctx context.Context, postID string) (*model.Post, error) {
	query := `
		SELECT post_id, author, kind, body, hashtags, created_at
		FROM posts
		WHERE post_id = $1
	`
	var row struct {
		PostID    string         `db:"post_id"`
		Author    string         `db:"author"`
		Kind      model.PostKind `db:"kind"`
		Body      *string        `db:"body"`
		Hashtags  pq.StringArray `db:"hashtags"`
		CreatedAt time.Time      `db:"created_at"`
	}
	err := r.db.GetContext(ctx, &row, query, postID)
	if err == sql.ErrNoRows {
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	post := &model.Post{
		PostID:    row.PostID,
		Author:    row.Author,
		Kind:      row.Kind,
		Body:      row.Body,
		Hashtags:  row.Hashtags,
		CreatedAt: row.CreatedAt,
	}

	if err := r.loadKind(ctx, post); err != nil {
		return nil, err
	}

	return post, nil
}

// loadKind attaches the kind-specific sub-document to the base post.
func (r *postRepository) loadKind(ctx context.Context, post *model.Post) error {
	switch post.Kind {
	case model.KindFreeText:
		return nil

	case model.KindTip:
		var tip model.Tip
		err := r.db.GetContext(ctx, &tip, `
			SELECT tip_id, post_id, summary FROM post_tips WHERE post_id = $1
		`, post.PostID)
		if err != nil {
			return fmt.Errorf("get tip: %w", err)
		}
		post.Tip = &tip

	case model.KindPoll:
		var row struct {
			PollID  string         `db:"poll_id"`
			PostID  string         `db:"post_id"`
			Choices pq.StringArray `db:"choices"`
		}
		err := r.db.GetContext(ctx, &row, `
			SELECT poll_id, post_id, choices FROM post_polls WHERE post_id = $1
		`, post.PostID)
		if err != nil {
			return fmt.Errorf("get poll: %w", err)
		}
		post.Poll = &model.Poll{PollID: row.PollID, PostID: row.PostID, Choices: row.Choices}

	case model.KindChallenge:
		var challenge model.Challenge
		err := r.db.GetContext(ctx, &challenge, `
			SELECT challenge_id, post_id, start_at, duration_secs, every_secs, end_at,
			       max_failure, max_skip, max_partial
			FROM post_challenges WHERE post_id = $1
		`, post.PostID)
		if err != nil {
			return fmt.Errorf("get challenge: %w", err)
		}

		err = r.db.SelectContext(ctx, &challenge.Participants, `
			SELECT challenge_id, challengee_id, status, created_at
			FROM challenge_participants
			WHERE challenge_id = $1
			ORDER BY created_at
		`, challenge.ChallengeID)
		if err != nil {
			return fmt.Errorf("get challenge participants: %w", err)
		}

		challenge.ReportSteps, err = r.GetChallengeSteps(ctx, challenge.ChallengeID)
		if err != nil {
			return err
		}
		post.Challenge = &challenge

	case model.KindEvent:
		var event model.Event
		err := r.db.GetContext(ctx, &event, `
			SELECT event_id, post_id, starts_at, venue FROM post_events WHERE post_id = $1
		`, post.PostID)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}

		var status model.EventStatus
		err = r.db.GetContext(ctx, &status, `
			SELECT event_id, status, updated_at FROM event_status WHERE event_id = $1
		`, event.EventID)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("get event status: %w", err)
		}
		if err == nil {
			event.Status = &status
		}

		err = r.db.SelectContext(ctx, &event.Participants, `
			SELECT event_id, user_id, created_at
			FROM event_participants
			WHERE event_id = $1
			ORDER BY created_at
		`, event.EventID)
		if err != nil {
			return fmt.Errorf("get event participants: %w", err)
		}
		post.Event = &event
	}

	return nil
}

// GetByIDs retrieves base post rows for the given ids, re-ordered to
// match the input order. Used for hydrating a feed page from the cache.
func (r *postRepository) GetByIDs(ctx context.Context, postIDs []string) ([]model.Post, error) {
	if len(postIDs) == 0 {
		return []model.Post{}, nil
	}

	query := `
		SELECT post_id, author, kind, body, hashtags, created_at
		FROM posts
		WHERE post_id = ANY($1)
	`
	var rows []struct {
		PostID    string         `db:"post_id"`
		Author    string         `db:"author"`
		Kind      model.PostKind `db:"kind"`
		Body      *string        `db:"body"`
		Hashtags  pq.StringArray `db:"hashtags"`
		CreatedAt time.Time      `db:"created_at"`
	}
	err := r.db.SelectContext(ctx, &rows, query, pq.Array(postIDs))
	if err != nil {
		return nil, fmt.Errorf("get posts by ids: %w", err)
	}

	postsMap := make(map[string]model.Post, len(rows))
	for _, row := range rows {
		postsMap[row.PostID] = model.Post{
			PostID:    row.PostID,
			Author:    row.Author,
			Kind:      row.Kind,
			Body:      row.Body,
			Hashtags:  row.Hashtags,
			CreatedAt: row.CreatedAt,
		}
	}

	ordered := make([]model.Post, 0, len(postIDs))
	for _, id := range postIDs {
		if p, ok := postsMap[id]; ok {
			ordered = append(ordered, p)
		}
	}

	return ordered, nil
}

// GetAuthorID returns the author of a post.
func (r *postRepository) GetAuthorID(ctx context.Context, postID string) (string, error) {
	var authorID string
	err := r.db.GetContext(ctx, &authorID, `SELECT author FROM posts WHERE post_id = $1`, postID)
	if err == sql.ErrNoRows {
		return "", model.ErrPostNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get author id: %w", err)
	}
	return authorID, nil
}

// Exists checks if a post exists.
func (r *postRepository) Exists(ctx context.Context, postID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM posts WHERE post_id = $1)`, postID)
	if err != nil {
		return false, fmt.Errorf("check post exists: %w", err)
	}
	return exists, nil
}

// AddChallengeParticipant invites a user to a challenge.
func (r *postRepository) AddChallengeParticipant(ctx context.Context, challengeID, challengeeID string, status model.ParticipationStatus) error {
	query := `
		INSERT INTO challenge_participants (challenge_id, challengee_id, status)
		VALUES ($1, $2, $3)
	`
	_, err := r.db.ExecContext(ctx, query, challengeID, challengeeID, status)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return model.ErrAlreadyChallenged
		}
		if constraint, ok := foreignKeyViolation(err); ok {
			if strings.Contains(constraint, "challenge") {
				return model.ErrChallengeNotFound
			}
			return model.ErrUserNotFound
		}
		return fmt.Errorf("insert challenge participant: %w", err)
	}
	return nil
}

// SetChallengeParticipantStatus moves a participation through its
// Pending/Accepted/Rejected/Completed lifecycle.
func (r *postRepository) SetChallengeParticipantStatus(ctx context.Context, challengeID, challengeeID string, status model.ParticipationStatus) error {
	query := `
		UPDATE challenge_participants SET status = $1
		WHERE challenge_id = $2 AND challengee_id = $3
	`
	result, err := r.db.ExecContext(ctx, query, status, challengeID, challengeeID)
	if err != nil {
		return fmt.Errorf("update participant status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrNotChallenged
	}
	return nil
}

// AddChallengeStep appends one step to a challengee's report. The
// (challenge_id, challengee_id, step) key makes the sequence
// append-only: a step number can never be rewritten.
func (r *postRepository) AddChallengeStep(ctx context.Context, step model.ChallengeReportStep) error {
	query := `
		INSERT INTO challenge_report_steps (challenge_id, challengee_id, step, status)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, step.ChallengeID, step.ChallengeeID, step.Step, step.Status)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return model.ErrDuplicateStep
		}
		if constraint, ok := foreignKeyViolation(err); ok {
			if strings.Contains(constraint, "challenge") {
				return model.ErrChallengeNotFound
			}
			return model.ErrUserNotFound
		}
		return fmt.Errorf("insert challenge step: %w", err)
	}
	return nil
}

// GetChallengeSteps returns all report steps for a challenge, ordered
// by ascending step then recording time.
func (r *postRepository) GetChallengeSteps(ctx context.Context, challengeID string) ([]model.ChallengeReportStep, error) {
	var steps []model.ChallengeReportStep
	err := r.db.SelectContext(ctx, &steps, `
		SELECT challenge_id, challengee_id, step, status, recorded_at
		FROM challenge_report_steps
		WHERE challenge_id = $1
		ORDER BY step, recorded_at
	`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("get challenge steps: %w", err)
	}
	return steps, nil
}

// CastPollAnswer records one vote. The (poll_id, user_id) key rejects a
// second vote; the first answer stays untouched.
func (r *postRepository) CastPollAnswer(ctx context.Context, pollID, userID, choice string) error {
	query := `
		INSERT INTO poll_answers (poll_id, user_id, choice)
		VALUES ($1, $2, $3)
	`
	_, err := r.db.ExecContext(ctx, query, pollID, userID, choice)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return model.ErrDuplicateVote
		}
		if constraint, ok := foreignKeyViolation(err); ok {
			if strings.Contains(constraint, "poll") {
				return model.ErrPollNotFound
			}
			return model.ErrUserNotFound
		}
		return fmt.Errorf("insert poll answer: %w", err)
	}
	return nil
}

// GetPollAnswers returns all votes cast on a poll.
func (r *postRepository) GetPollAnswers(ctx context.Context, pollID string) ([]model.PollAnswer, error) {
	var answers []model.PollAnswer
	err := r.db.SelectContext(ctx, &answers, `
		SELECT poll_id, user_id, choice, created_at
		FROM poll_answers
		WHERE poll_id = $1
		ORDER BY created_at
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("get poll answers: %w", err)
	}
	return answers, nil
}

// JoinEvent records one participation per user per event.
func (r *postRepository) JoinEvent(ctx context.Context, eventID, userID string) error {
	query := `
		INSERT INTO event_participants (event_id, user_id)
		VALUES ($1, $2)
	`
	_, err := r.db.ExecContext(ctx, query, eventID, userID)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return model.ErrDuplicateParticipation
		}
		if constraint, ok := foreignKeyViolation(err); ok {
			if strings.Contains(constraint, "event") {
				return model.ErrEventNotFound
			}
			return model.ErrUserNotFound
		}
		return fmt.Errorf("insert event participant: %w", err)
	}
	return nil
}

// SetEventStatus updates the 1:1 status row of an event.
func (r *postRepository) SetEventStatus(ctx context.Context, eventID, status string) error {
	query := `
		INSERT INTO event_status (event_id, status, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (event_id) DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, eventID, status)
	if err != nil {
		if _, ok := foreignKeyViolation(err); ok {
			return model.ErrEventNotFound
		}
		return fmt.Errorf("set event status: %w", err)
	}
	return nil
}

package model

import (
	"errors"
	"time"
)

// PostKind discriminates the tagged union of post sub-types. Every post
// has exactly one kind; the kind-specific payload lives in its own
// table, 1:1 with the base post row.
type PostKind string

const (
	KindFreeText  PostKind = "freetext"
	KindTip       PostKind = "tip"
	KindPoll      PostKind = "poll"
	KindChallenge PostKind = "challenge"
	KindEvent     PostKind = "event"
)

// Valid reports whether k is one of the declared kinds.
func (k PostKind) Valid() bool {
	switch k {
	case KindFreeText, KindTip, KindPoll, KindChallenge, KindEvent:
		return true
	}
	return false
}

// Post is the base record shared by every kind. Exactly one of Tip,
// Poll, Challenge, Event is non-nil, matching Kind; all four are nil
// for a free-text post.
type Post struct {
	PostID    string    `db:"post_id" json:"post_id"`
	Author    string    `db:"author" json:"author"`
	Kind      PostKind  `db:"kind" json:"kind"`
	Body      *string   `db:"body" json:"body"`
	Hashtags  []string  `db:"hashtags" json:"hashtags"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	Tip       *Tip       `json:"tip,omitempty"`
	Poll      *Poll      `json:"poll,omitempty"`
	Challenge *Challenge `json:"challenge,omitempty"`
	Event     *Event     `json:"event,omitempty"`
}

// Tip is a short piece of actionable advice attached to a tip post.
type Tip struct {
	TipID   string  `db:"tip_id" json:"tip_id"`
	PostID  string  `db:"post_id" json:"-"`
	Summary *string `db:"summary" json:"summary"`
}

// Poll holds the question choices; one answer per user is enforced by
// the (poll_id, user_id) key on poll_answers.
type Poll struct {
	PollID  string   `db:"poll_id" json:"poll_id"`
	PostID  string   `db:"post_id" json:"-"`
	Choices []string `db:"choices" json:"choices"`
}

// PollAnswer is a single user's vote on a poll.
type PollAnswer struct {
	PollID    string    `db:"poll_id" json:"poll_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Choice    string    `db:"choice" json:"choice"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChallengeSchedule describes when a challenge runs and how often it
// repeats. Durations are stored as whole seconds.
type ChallengeSchedule struct {
	StartAt      time.Time `db:"start_at" json:"start_at"`
	DurationSecs int64     `db:"duration_secs" json:"duration_secs"`
	EverySecs    int64     `db:"every_secs" json:"every_secs"`
	EndAt        time.Time `db:"end_at" json:"end_at"`
}

// SuccessMeasure holds the failure thresholds a challengee must stay
// under to complete a challenge.
type SuccessMeasure struct {
	MaxFailure int `db:"max_failure" json:"max_failure"`
	MaxSkip    int `db:"max_skip" json:"max_skip"`
	MaxPartial int `db:"max_partial" json:"max_partial"`
}

// Challenge is the kind-specific payload of a challenge post.
type Challenge struct {
	ChallengeID string `db:"challenge_id" json:"challenge_id"`
	PostID      string `db:"post_id" json:"-"`
	ChallengeSchedule
	SuccessMeasure

	// Populated on read; ordered by ascending step, then recorded_at.
	Participants []ChallengeParticipant `json:"participants,omitempty"`
	ReportSteps  []ChallengeReportStep  `json:"report_steps,omitempty"`
}

// ParticipationStatus is the state of a challenge invitation.
type ParticipationStatus string

const (
	ParticipationPending   ParticipationStatus = "Pending"
	ParticipationAccepted  ParticipationStatus = "Accepted"
	ParticipationRejected  ParticipationStatus = "Rejected"
	ParticipationCompleted ParticipationStatus = "Completed"
)

// Valid reports whether s is a known participation state.
func (s ParticipationStatus) Valid() bool {
	switch s {
	case ParticipationPending, ParticipationAccepted, ParticipationRejected, ParticipationCompleted:
		return true
	}
	return false
}

// ChallengeParticipant records one user's involvement in a challenge.
type ChallengeParticipant struct {
	ChallengeID  string              `db:"challenge_id" json:"challenge_id"`
	ChallengeeID string              `db:"challengee_id" json:"challengee_id"`
	Status       ParticipationStatus `db:"status" json:"status"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
}

// StepStatus is the outcome of a single challenge step.
type StepStatus string

const (
	StepSuccess StepStatus = "Success"
	StepFailure StepStatus = "Failure"
	StepSkipped StepStatus = "Skipped"
	StepPartial StepStatus = "Partial"
)

// Valid reports whether s is a known step outcome.
func (s StepStatus) Valid() bool {
	switch s {
	case StepSuccess, StepFailure, StepSkipped, StepPartial:
		return true
	}
	return false
}

// ChallengeReportStep is one entry in a challengee's append-only report.
type ChallengeReportStep struct {
	ChallengeID  string     `db:"challenge_id" json:"challenge_id"`
	ChallengeeID string     `db:"challengee_id" json:"challengee_id"`
	Step         int        `db:"step" json:"step"`
	Status       StepStatus `db:"status" json:"status"`
	RecordedAt   time.Time  `db:"recorded_at" json:"recorded_at"`
}

// Event is the kind-specific payload of an event post.
type Event struct {
	EventID  string    `db:"event_id" json:"event_id"`
	PostID   string    `db:"post_id" json:"-"`
	StartsAt time.Time `db:"starts_at" json:"starts_at"`
	Venue    *string   `db:"venue" json:"venue"`

	Status       *EventStatus       `json:"status,omitempty"`
	Participants []EventParticipant `json:"participants,omitempty"`
}

// EventStatus is the 1:1 lifecycle row of an event.
type EventStatus struct {
	EventID   string    `db:"event_id" json:"-"`
	Status    string    `db:"status" json:"status"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Event lifecycle states.
const (
	EventPlanned   = "Planned"
	EventOngoing   = "Ongoing"
	EventFinished  = "Finished"
	EventCancelled = "Cancelled"
)

// EventParticipant records one user joining an event.
type EventParticipant struct {
	EventID   string    `db:"event_id" json:"event_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CreatePostRequest is the input to post creation. KindPayload fields
// are read according to Kind; mismatches fail with ErrInvalidKindPayload.
type CreatePostRequest struct {
	Kind     PostKind `json:"kind"`
	Body     *string  `json:"body"`
	Hashtags []string `json:"hashtags"`

	Tip       *Tip       `json:"tip,omitempty"`
	Poll      *Poll      `json:"poll,omitempty"`
	Challenge *Challenge `json:"challenge,omitempty"`
	Event     *Event     `json:"event,omitempty"`
}

var (
	ErrPostNotFound      = errors.New("post not found")
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrPollNotFound      = errors.New("poll not found")
	ErrEventNotFound     = errors.New("event not found")

	// ErrInvalidKindPayload is returned when the request payload does not
	// match the declared post kind (missing or extra sub-document).
	ErrInvalidKindPayload = errors.New("payload does not match post kind")

	ErrDuplicateVote          = errors.New("user already voted on this poll")
	ErrDuplicateParticipation = errors.New("user already joined this event")
	ErrAlreadyChallenged      = errors.New("user already invited to this challenge")
	ErrDuplicateStep          = errors.New("step already reported for this challenge")
	ErrNotChallenged          = errors.New("user is not a participant of this challenge")
	ErrInvalidStatus          = errors.New("invalid status value")
)

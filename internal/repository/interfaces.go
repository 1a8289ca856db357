package repository

import (
	"context"
	"encoding/json"
	"time"

	"greengen/internal/cache"
	"greengen/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, userID string) (*model.User, error)
	GetByPseudo(ctx context.Context, pseudo string) (*model.User, error)
	SetEnabled(ctx context.Context, userID string, enabled bool) error
}

type FollowRepository interface {
	// Create inserts the edge; returns false when it already exists.
	Create(ctx context.Context, userID, followerID string) (bool, error)
	Delete(ctx context.Context, userID, followerID string) error
	Exists(ctx context.Context, userID, followerID string) (bool, error)
	GetFollowers(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error)
	GetFollowing(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error)
	// GetFollowerIDs returns the full follower snapshot for fan-out.
	GetFollowerIDs(ctx context.Context, userID string) ([]string, error)
}

type PostRepository interface {
	// Create writes the base post row and its kind-specific row in one
	// transaction.
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, postID string) (*model.Post, error)
	GetByIDs(ctx context.Context, postIDs []string) ([]model.Post, error)
	GetAuthorID(ctx context.Context, postID string) (string, error)
	Exists(ctx context.Context, postID string) (bool, error)

	AddChallengeParticipant(ctx context.Context, challengeID, challengeeID string, status model.ParticipationStatus) error
	SetChallengeParticipantStatus(ctx context.Context, challengeID, challengeeID string, status model.ParticipationStatus) error
	AddChallengeStep(ctx context.Context, step model.ChallengeReportStep) error
	GetChallengeSteps(ctx context.Context, challengeID string) ([]model.ChallengeReportStep, error)

	CastPollAnswer(ctx context.Context, pollID, userID, choice string) error
	GetPollAnswers(ctx context.Context, pollID string) ([]model.PollAnswer, error)

	JoinEvent(ctx context.Context, eventID, userID string) error
	SetEventStatus(ctx context.Context, eventID, status string) error
}

type EngagementRepository interface {
	Like(ctx context.Context, postID, userID string) error
	Unlike(ctx context.Context, postID, userID string) error
	CountLikes(ctx context.Context, postID string) (int, error)
	Flag(ctx context.Context, postID, flaggedBy, reason string) error
	Pin(ctx context.Context, postID, userID string) error
	Unpin(ctx context.Context, postID, userID string) error
	// IndexHashtags upserts (hashtag, user) pairs; re-indexing is a no-op.
	IndexHashtags(ctx context.Context, userID string, tags []string) error
	GetHashtagUsers(ctx context.Context, hashtag string) ([]string, error)
}

type FeedRepository interface {
	// AddWallEntry / AddFeedEntry return false when the entry already
	// exists; the insert is idempotent under retry.
	AddWallEntry(ctx context.Context, userID, postID string) (bool, error)
	AddFeedEntry(ctx context.Context, userID, postID string) (bool, error)
	// RemoveAuthorEntries deletes from userID's feed every entry whose
	// post was authored by authorID; returns the removed post ids.
	RemoveAuthorEntries(ctx context.Context, userID, authorID string) ([]string, error)
	GetWall(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.Post, *time.Time, error)
	GetFeed(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.Post, *time.Time, error)
	// GetFeedPostScores returns (post id, unix timestamp) pairs for
	// warming the feed cache, newest first.
	GetFeedPostScores(ctx context.Context, userID string, limit int) ([]cache.PostScore, error)
}

type MessagingRepository interface {
	CreateConversation(ctx context.Context) (*model.Conversation, error)
	ConversationExists(ctx context.Context, conversationID string) (bool, error)
	InsertMessage(ctx context.Context, msg *model.Message) error
	GetMessages(ctx context.Context, conversationID string, cursor *time.Time, limit int) ([]model.Message, *time.Time, error)
	FlagMessage(ctx context.Context, messageID, userID string) error
	SharePost(ctx context.Context, conversationID, postID, sharedBy string) error
	// GetOrCreatePrivate resolves the canonical (userLo, userHi) pair to
	// its conversation, creating one when none exists. Idempotent by
	// construction; concurrent callers converge on a single row.
	GetOrCreatePrivate(ctx context.Context, userLo, userHi string) (conversationID string, created bool, err error)
}

type NotificationRepository interface {
	// UpsertContent writes the payload for (userID, notificationID),
	// keeping the existing payload when one is already stored.
	UpsertContent(ctx context.Context, userID, notificationID string, payload json.RawMessage) error
	// InsertDelivery appends a delivery record; a retry with the same
	// timestamp is a no-op.
	InsertDelivery(ctx context.Context, userID, notificationID string, deliveredAt time.Time) error
	List(ctx context.Context, userID string, limit int) ([]model.Notification, error)
}

package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"greengen/internal/queue"
)

// Distributor is the slice of the distribution service the worker
// drives: fanning a post out to follower feeds and pruning a feed after
// an unfollow. Both must be idempotent, the worker retries them.
type Distributor interface {
	FanOutToFeeds(ctx context.Context, authorID, postID string, timestamp int64) error
	RemoveAuthorFromFeed(ctx context.Context, followerID, authorID string) error
}

// Notifier delivers the "you have a new follower" notification. Can be
// nil when notifications are not wired.
type Notifier interface {
	NotifyFollowed(ctx context.Context, followeeID, followerID string, at time.Time) error
}

// Handler processes fan-out events from the queue.
type Handler struct {
	distributor Distributor
	notifier    Notifier
}

// NewHandler creates a new event handler.
func NewHandler(distributor Distributor) *Handler {
	return &Handler{distributor: distributor}
}

// SetNotifier sets the notifier (optional, for follow notifications).
func (h *Handler) SetNotifier(n Notifier) {
	h.notifier = n
}

// HandleEvent routes an event to the appropriate handler based on type.
// A returned error means the message must stay pending and be retried;
// every handler below is safe to re-run.
func (h *Handler) HandleEvent(ctx context.Context, event queue.FanoutEvent) error {
	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventPostPublished:
		err = h.handlePostPublished(ctx, event)
	case queue.EventUserFollowed:
		err = h.handleUserFollowed(ctx, event)
	case queue.EventUserUnfollowed:
		err = h.handleUserUnfollowed(ctx, event)
	default:
		// An unknown type can never succeed on retry; dropping it keeps
		// the stream moving. Same rule as malformed payloads.
		log.Printf("[Worker] Dropping event with unknown type: %s", event.Type)
		return nil
	}

	if err != nil {
		log.Printf("[Worker] HandleEvent FAILED: type=%s duration=%v err=%v",
			event.Type, time.Since(startTime), err)
		return err
	}

	log.Printf("[Worker] HandleEvent OK: type=%s duration=%v", event.Type, time.Since(startTime))
	return nil
}

// handlePostPublished fans the post out to every follower in the
// current snapshot. The fan-out inserts are idempotent, so a partial
// failure is retried wholesale until every follower has the entry.
func (h *Handler) handlePostPublished(ctx context.Context, event queue.FanoutEvent) error {
	log.Printf("[Worker] PostPublished: post=%s author=%s", event.PostID, event.AuthorID)

	if err := h.distributor.FanOutToFeeds(ctx, event.AuthorID, event.PostID, event.Timestamp); err != nil {
		return fmt.Errorf("fan out post %s: %w", event.PostID, err)
	}
	return nil
}

// handleUserFollowed notifies the followee. Deliberately no feed
// backfill: a follower gains posts published after the follow, never
// retroactively.
func (h *Handler) handleUserFollowed(ctx context.Context, event queue.FanoutEvent) error {
	log.Printf("[Worker] UserFollowed: follower=%s followee=%s", event.FollowerID, event.FolloweeID)

	if h.notifier == nil {
		return nil
	}

	at := time.UnixMicro(event.Timestamp).UTC()
	if err := h.notifier.NotifyFollowed(ctx, event.FolloweeID, event.FollowerID, at); err != nil {
		return fmt.Errorf("notify followee %s: %w", event.FolloweeID, err)
	}
	return nil
}

// handleUserUnfollowed prunes the ex-followee's posts from the
// follower's feed.
func (h *Handler) handleUserUnfollowed(ctx context.Context, event queue.FanoutEvent) error {
	log.Printf("[Worker] UserUnfollowed: follower=%s followee=%s", event.FollowerID, event.FolloweeID)

	if err := h.distributor.RemoveAuthorFromFeed(ctx, event.FollowerID, event.FolloweeID); err != nil {
		return fmt.Errorf("prune feed of %s: %w", event.FollowerID, err)
	}
	return nil
}

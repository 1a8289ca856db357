package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"greengen/internal/model"
	"greengen/internal/queue"
	"greengen/internal/repository"
)

const defaultPageSize = 20

// GraphService manages the directed follower graph. Edge uniqueness is
// enforced by the storage key, so two concurrent follows of the same
// pair leave exactly one edge.
type GraphService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	publisher  queue.Publisher
}

func NewGraphService(
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	publisher queue.Publisher,
) *GraphService {
	return &GraphService{
		followRepo: followRepo,
		userRepo:   userRepo,
		publisher:  publisher,
	}
}

// Follow creates the followerID -> userID edge.
func (s *GraphService) Follow(ctx context.Context, userID, followerID string) error {
	if userID == followerID {
		return model.ErrSelfFollow
	}

	followee, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !followee.Enabled {
		return model.ErrUserDisabled
	}

	inserted, err := s.followRepo.Create(ctx, userID, followerID)
	if err != nil {
		return err
	}
	if !inserted {
		return model.ErrAlreadyFollowing
	}

	log.Printf("[GraphService] Follow OK: user=%s follower=%s", userID, followerID)

	// Publish after the edge is committed. The event only drives the
	// follow notification; feeds are not backfilled, a new follower
	// receives posts published from now on.
	if s.publisher != nil {
		event := queue.NewUserFollowedEvent(followerID, userID)
		if _, err := s.publisher.Publish(ctx, queue.StreamFanout, event); err != nil {
			log.Printf("[GraphService] Failed to publish UserFollowed: user=%s follower=%s err=%v",
				userID, followerID, err)
		}
	}

	return nil
}

// Unfollow removes the edge; model.ErrNotFollowing when absent.
func (s *GraphService) Unfollow(ctx context.Context, userID, followerID string) error {
	if err := s.followRepo.Delete(ctx, userID, followerID); err != nil {
		return err
	}

	log.Printf("[GraphService] Unfollow OK: user=%s follower=%s", userID, followerID)

	if s.publisher != nil {
		event := queue.NewUserUnfollowedEvent(followerID, userID)
		if _, err := s.publisher.Publish(ctx, queue.StreamFanout, event); err != nil {
			log.Printf("[GraphService] Failed to publish UserUnfollowed: user=%s follower=%s err=%v",
				userID, followerID, err)
		}
	}

	return nil
}

// IsFollowing reports whether the edge exists.
func (s *GraphService) IsFollowing(ctx context.Context, userID, followerID string) (bool, error) {
	return s.followRepo.Exists(ctx, userID, followerID)
}

// ListFollowers pages through the users following userID. The cursor is
// restartable: pass back NextCursor to resume where the page ended.
func (s *GraphService) ListFollowers(ctx context.Context, userID string, cursor *string, limit int) (*model.FollowListResponse, error) {
	cursorTime, err := parseCursor(cursor)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}

	users, next, err := s.followRepo.GetFollowers(ctx, userID, cursorTime, limit)
	if err != nil {
		return nil, err
	}
	return buildFollowPage(users, next), nil
}

// ListFollowing pages through the users userID follows.
func (s *GraphService) ListFollowing(ctx context.Context, userID string, cursor *string, limit int) (*model.FollowListResponse, error) {
	cursorTime, err := parseCursor(cursor)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}

	users, next, err := s.followRepo.GetFollowing(ctx, userID, cursorTime, limit)
	if err != nil {
		return nil, err
	}
	return buildFollowPage(users, next), nil
}

// FollowerSnapshot returns the ids of every current follower. Fan-out
// uses this as the fixed population for a publish.
func (s *GraphService) FollowerSnapshot(ctx context.Context, userID string) ([]string, error) {
	return s.followRepo.GetFollowerIDs(ctx, userID)
}

func buildFollowPage(users []model.UserSummary, next *time.Time) *model.FollowListResponse {
	resp := &model.FollowListResponse{Users: users}
	if next != nil {
		resp.HasMore = true
		resp.NextCursor = formatCursor(*next)
	}
	return resp
}

func parseCursor(cursor *string) (*time.Time, error) {
	if cursor == nil || *cursor == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, *cursor)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor %q: %w", *cursor, err)
	}
	return &t, nil
}

func formatCursor(t time.Time) *string {
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

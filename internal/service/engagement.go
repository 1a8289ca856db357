package service

import (
	"context"
	"log"
	"strings"

	"greengen/internal/repository"
)

// EngagementService handles likes, flags, pins and the hashtag index.
// All duplicate detection happens at the storage constraint, so racing
// callers resolve to one winner and one sentinel error.
type EngagementService struct {
	engagementRepo repository.EngagementRepository
	postRepo       repository.PostRepository
}

func NewEngagementService(
	engagementRepo repository.EngagementRepository,
	postRepo repository.PostRepository,
) *EngagementService {
	return &EngagementService{
		engagementRepo: engagementRepo,
		postRepo:       postRepo,
	}
}

// LikePost records one like; model.ErrAlreadyLiked on repeat.
func (s *EngagementService) LikePost(ctx context.Context, postID, userID string) error {
	if err := s.engagementRepo.Like(ctx, postID, userID); err != nil {
		return err
	}
	log.Printf("[EngagementService] Like OK: post=%s user=%s", postID, userID)
	return nil
}

// UnlikePost removes a like; model.ErrNotLiked when absent.
func (s *EngagementService) UnlikePost(ctx context.Context, postID, userID string) error {
	return s.engagementRepo.Unlike(ctx, postID, userID)
}

// CountLikes returns the number of likes on a post.
func (s *EngagementService) CountLikes(ctx context.Context, postID string) (int, error) {
	return s.engagementRepo.CountLikes(ctx, postID)
}

// FlagPost files a moderation report; model.ErrAlreadyFlagged on repeat
// by the same user.
func (s *EngagementService) FlagPost(ctx context.Context, postID, flaggedBy, reason string) error {
	if err := s.engagementRepo.Flag(ctx, postID, flaggedBy, reason); err != nil {
		return err
	}
	log.Printf("[EngagementService] Flag OK: post=%s by=%s", postID, flaggedBy)
	return nil
}

// PinPost pins a post for a user; model.ErrAlreadyPinned on repeat.
func (s *EngagementService) PinPost(ctx context.Context, postID, userID string) error {
	return s.engagementRepo.Pin(ctx, postID, userID)
}

// UnpinPost removes a pin; model.ErrNotPinned when absent.
func (s *EngagementService) UnpinPost(ctx context.Context, postID, userID string) error {
	return s.engagementRepo.Unpin(ctx, postID, userID)
}

// FindUsersByHashtag returns ids of users who have used the tag.
func (s *EngagementService) FindUsersByHashtag(ctx context.Context, hashtag string) ([]string, error) {
	tag := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(hashtag), "#"))
	if tag == "" {
		return nil, nil
	}
	return s.engagementRepo.GetHashtagUsers(ctx, tag)
}

package service

import (
	"context"
	"errors"
	"testing"

	"greengen/internal/model"
)

func TestEngagementService_LikePost_Duplicate(t *testing.T) {
	engagement := &mockEngagementRepository{
		likeFn: func(ctx context.Context, postID, userID string) error {
			return model.ErrAlreadyLiked
		},
	}
	svc := NewEngagementService(engagement, &mockPostRepository{})

	err := svc.LikePost(context.Background(), "p1", "alice")
	if !errors.Is(err, model.ErrAlreadyLiked) {
		t.Fatalf("expected ErrAlreadyLiked, got: %v", err)
	}
}

func TestEngagementService_UnlikePost_NotLiked(t *testing.T) {
	engagement := &mockEngagementRepository{
		unlikeFn: func(ctx context.Context, postID, userID string) error {
			return model.ErrNotLiked
		},
	}
	svc := NewEngagementService(engagement, &mockPostRepository{})

	if err := svc.UnlikePost(context.Background(), "p1", "alice"); !errors.Is(err, model.ErrNotLiked) {
		t.Fatalf("expected ErrNotLiked, got: %v", err)
	}
}

func TestEngagementService_FindUsersByHashtag_Normalizes(t *testing.T) {
	var gotTag string
	engagement := &mockEngagementRepository{
		hashtagUsersFn: func(ctx context.Context, hashtag string) ([]string, error) {
			gotTag = hashtag
			return []string{"alice"}, nil
		},
	}
	svc := NewEngagementService(engagement, &mockPostRepository{})

	users, err := svc.FindUsersByHashtag(context.Background(), " #ZeroWaste ")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if gotTag != "zerowaste" {
		t.Errorf("lookup tag = %q, want zerowaste", gotTag)
	}
	if len(users) != 1 {
		t.Errorf("users = %v, want alice", users)
	}

	// Blank input short-circuits without a lookup.
	users, err = svc.FindUsersByHashtag(context.Background(), "#")
	if err != nil || users != nil {
		t.Errorf("blank tag = (%v, %v), want (nil, nil)", users, err)
	}
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"greengen/internal/model"
	"greengen/internal/queue"
)

type mockFollowRepository struct {
	createFn         func(ctx context.Context, userID, followerID string) (bool, error)
	deleteFn         func(ctx context.Context, userID, followerID string) error
	existsFn         func(ctx context.Context, userID, followerID string) (bool, error)
	getFollowersFn   func(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error)
	getFollowingFn   func(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error)
	getFollowerIDsFn func(ctx context.Context, userID string) ([]string, error)
}

func (m *mockFollowRepository) Create(ctx context.Context, userID, followerID string) (bool, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, followerID)
	}
	return true, nil
}

func (m *mockFollowRepository) Delete(ctx context.Context, userID, followerID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, followerID)
	}
	return nil
}

func (m *mockFollowRepository) Exists(ctx context.Context, userID, followerID string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, userID, followerID)
	}
	return false, nil
}

func (m *mockFollowRepository) GetFollowers(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
	if m.getFollowersFn != nil {
		return m.getFollowersFn(ctx, userID, cursor, limit)
	}
	return nil, nil, nil
}

func (m *mockFollowRepository) GetFollowing(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
	if m.getFollowingFn != nil {
		return m.getFollowingFn(ctx, userID, cursor, limit)
	}
	return nil, nil, nil
}

func (m *mockFollowRepository) GetFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	if m.getFollowerIDsFn != nil {
		return m.getFollowerIDsFn(ctx, userID)
	}
	return nil, nil
}

// mockPublisher records published events.
type mockPublisher struct {
	publishFn func(ctx context.Context, stream string, event queue.FanoutEvent) (string, error)
	events    []queue.FanoutEvent
}

func (m *mockPublisher) Publish(ctx context.Context, stream string, event queue.FanoutEvent) (string, error) {
	m.events = append(m.events, event)
	if m.publishFn != nil {
		return m.publishFn(ctx, stream, event)
	}
	return "1-0", nil
}

// =============================================================================
// FOLLOW TESTS
// =============================================================================

func TestGraphService_Follow_Self(t *testing.T) {
	svc := NewGraphService(&mockFollowRepository{}, &mockUserRepository{}, nil)

	err := svc.Follow(context.Background(), "u1", "u1")
	if !errors.Is(err, model.ErrSelfFollow) {
		t.Fatalf("expected ErrSelfFollow, got: %v", err)
	}
}

func TestGraphService_Follow_Success(t *testing.T) {
	users := &mockUserRepository{
		getByIDFn: func(ctx context.Context, userID string) (*model.User, error) {
			return enabledUser(userID), nil
		},
	}
	pub := &mockPublisher{}
	svc := NewGraphService(&mockFollowRepository{}, users, pub)

	if err := svc.Follow(context.Background(), "alice", "bob"); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(pub.events))
	}
	ev := pub.events[0]
	if ev.Type != queue.EventUserFollowed {
		t.Errorf("event type = %q, want %q", ev.Type, queue.EventUserFollowed)
	}
	if ev.FollowerID != "bob" || ev.FolloweeID != "alice" {
		t.Errorf("event = follower %q followee %q, want bob -> alice", ev.FollowerID, ev.FolloweeID)
	}
}

func TestGraphService_Follow_AlreadyFollowing(t *testing.T) {
	users := &mockUserRepository{
		getByIDFn: func(ctx context.Context, userID string) (*model.User, error) {
			return enabledUser(userID), nil
		},
	}
	follows := &mockFollowRepository{
		createFn: func(ctx context.Context, userID, followerID string) (bool, error) {
			return false, nil // edge already present
		},
	}
	pub := &mockPublisher{}
	svc := NewGraphService(follows, users, pub)

	err := svc.Follow(context.Background(), "alice", "bob")
	if !errors.Is(err, model.ErrAlreadyFollowing) {
		t.Fatalf("expected ErrAlreadyFollowing, got: %v", err)
	}
	if len(pub.events) != 0 {
		t.Errorf("no event should be published for a duplicate follow, got %d", len(pub.events))
	}
}

func TestGraphService_Follow_DisabledFollowee(t *testing.T) {
	users := &mockUserRepository{
		getByIDFn: func(ctx context.Context, userID string) (*model.User, error) {
			u := enabledUser(userID)
			u.Enabled = false
			return u, nil
		},
	}
	svc := NewGraphService(&mockFollowRepository{}, users, nil)

	err := svc.Follow(context.Background(), "alice", "bob")
	if !errors.Is(err, model.ErrUserDisabled) {
		t.Fatalf("expected ErrUserDisabled, got: %v", err)
	}
}

func TestGraphService_Unfollow_NotFollowing(t *testing.T) {
	follows := &mockFollowRepository{
		deleteFn: func(ctx context.Context, userID, followerID string) error {
			return model.ErrNotFollowing
		},
	}
	svc := NewGraphService(follows, &mockUserRepository{}, nil)

	err := svc.Unfollow(context.Background(), "alice", "bob")
	if !errors.Is(err, model.ErrNotFollowing) {
		t.Fatalf("expected ErrNotFollowing, got: %v", err)
	}
}

// =============================================================================
// LISTING TESTS
// =============================================================================

func TestGraphService_ListFollowers_Cursor(t *testing.T) {
	pageEnd := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var gotCursor *time.Time
	follows := &mockFollowRepository{
		getFollowersFn: func(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
			gotCursor = cursor
			return []model.UserSummary{{UserID: "f1"}, {UserID: "f2"}}, &pageEnd, nil
		},
	}
	svc := NewGraphService(follows, &mockUserRepository{}, nil)

	page, err := svc.ListFollowers(context.Background(), "alice", nil, 2)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !page.HasMore || page.NextCursor == nil {
		t.Fatal("expected a next cursor on a full page")
	}

	// Passing the cursor back resumes from the recorded boundary.
	if _, err := svc.ListFollowers(context.Background(), "alice", page.NextCursor, 2); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if gotCursor == nil || !gotCursor.Equal(pageEnd) {
		t.Errorf("resumed cursor = %v, want %v", gotCursor, pageEnd)
	}
}

func TestGraphService_ListFollowers_BadCursor(t *testing.T) {
	svc := NewGraphService(&mockFollowRepository{}, &mockUserRepository{}, nil)

	bad := "not-a-timestamp"
	if _, err := svc.ListFollowers(context.Background(), "alice", &bad, 10); err == nil {
		t.Fatal("expected an error for a malformed cursor")
	}
}

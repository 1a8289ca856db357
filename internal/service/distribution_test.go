package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"greengen/internal/cache"
	"greengen/internal/model"
)

type feedEntryCall struct {
	userID string
	postID string
}

type mockFeedRepository struct {
	addWallEntryFn      func(ctx context.Context, userID, postID string) (bool, error)
	addFeedEntryFn      func(ctx context.Context, userID, postID string) (bool, error)
	removeAuthorFn      func(ctx context.Context, userID, authorID string) ([]string, error)
	getWallFn           func(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.Post, *time.Time, error)
	getFeedFn           func(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.Post, *time.Time, error)
	getFeedPostScoresFn func(ctx context.Context, userID string, limit int) ([]cache.PostScore, error)

	wallEntries []feedEntryCall
	feedEntries []feedEntryCall
}

func (m *mockFeedRepository) AddWallEntry(ctx context.Context, userID, postID string) (bool, error) {
	m.wallEntries = append(m.wallEntries, feedEntryCall{userID, postID})
	if m.addWallEntryFn != nil {
		return m.addWallEntryFn(ctx, userID, postID)
	}
	return true, nil
}

func (m *mockFeedRepository) AddFeedEntry(ctx context.Context, userID, postID string) (bool, error) {
	m.feedEntries = append(m.feedEntries, feedEntryCall{userID, postID})
	if m.addFeedEntryFn != nil {
		return m.addFeedEntryFn(ctx, userID, postID)
	}
	return true, nil
}

func (m *mockFeedRepository) RemoveAuthorEntries(ctx context.Context, userID, authorID string) ([]string, error) {
	if m.removeAuthorFn != nil {
		return m.removeAuthorFn(ctx, userID, authorID)
	}
	return nil, nil
}

func (m *mockFeedRepository) GetWall(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.Post, *time.Time, error) {
	if m.getWallFn != nil {
		return m.getWallFn(ctx, userID, cursor, limit)
	}
	return nil, nil, nil
}

func (m *mockFeedRepository) GetFeed(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.Post, *time.Time, error) {
	if m.getFeedFn != nil {
		return m.getFeedFn(ctx, userID, cursor, limit)
	}
	return nil, nil, nil
}

func (m *mockFeedRepository) GetFeedPostScores(ctx context.Context, userID string, limit int) ([]cache.PostScore, error) {
	if m.getFeedPostScoresFn != nil {
		return m.getFeedPostScoresFn(ctx, userID, limit)
	}
	return nil, nil
}

// mockFeedCache is an in-memory stand-in for the Redis feed cache.
type mockFeedCache struct {
	existsFn  func(ctx context.Context, userID string) (bool, error)
	getFeedFn func(ctx context.Context, userID string, cursorScore *float64, limit int) ([]string, []float64, error)

	added   []feedEntryCall
	removed []feedEntryCall
	warmed  map[string][]cache.PostScore
}

func (m *mockFeedCache) AddPost(ctx context.Context, userID, postID string, timestamp int64) error {
	m.added = append(m.added, feedEntryCall{userID, postID})
	return nil
}

func (m *mockFeedCache) RemovePost(ctx context.Context, userID, postID string) error {
	m.removed = append(m.removed, feedEntryCall{userID, postID})
	return nil
}

func (m *mockFeedCache) GetFeed(ctx context.Context, userID string, cursorScore *float64, limit int) ([]string, []float64, error) {
	if m.getFeedFn != nil {
		return m.getFeedFn(ctx, userID, cursorScore, limit)
	}
	return nil, nil, nil
}

func (m *mockFeedCache) WarmCache(ctx context.Context, userID string, posts []cache.PostScore) error {
	if m.warmed == nil {
		m.warmed = make(map[string][]cache.PostScore)
	}
	m.warmed[userID] = posts
	return nil
}

func (m *mockFeedCache) Exists(ctx context.Context, userID string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, userID)
	}
	return false, nil
}

// =============================================================================
// FAN-OUT TESTS
// =============================================================================

func TestDistributionService_FanOutToFeeds_AllFollowers(t *testing.T) {
	follows := &mockFollowRepository{
		getFollowerIDsFn: func(ctx context.Context, userID string) ([]string, error) {
			return []string{"f1", "f2", "f3"}, nil
		},
	}
	feeds := &mockFeedRepository{}
	fc := &mockFeedCache{}
	svc := NewDistributionService(feeds, follows, &mockPostRepository{}, fc)

	if err := svc.FanOutToFeeds(context.Background(), "alice", "p1", 1700000000); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(feeds.feedEntries) != 3 {
		t.Errorf("feed entries = %d, want 3", len(feeds.feedEntries))
	}
	if len(fc.added) != 3 {
		t.Errorf("cache adds = %d, want 3", len(fc.added))
	}
}

func TestDistributionService_FanOutToFeeds_PartialFailureRetries(t *testing.T) {
	follows := &mockFollowRepository{
		getFollowerIDsFn: func(ctx context.Context, userID string) ([]string, error) {
			return []string{"f1", "f2"}, nil
		},
	}

	// First attempt: f2's insert fails. Second attempt: f1's entry
	// already exists (inserted=false), f2 lands. The retry must end with
	// exactly one entry per follower and no duplicates.
	attempt := 0
	feeds := &mockFeedRepository{
		addFeedEntryFn: func(ctx context.Context, userID, postID string) (bool, error) {
			if attempt == 0 && userID == "f2" {
				return false, errors.New("connection reset")
			}
			if attempt == 1 && userID == "f1" {
				return false, nil // already present, no-op
			}
			return true, nil
		},
	}
	svc := NewDistributionService(feeds, follows, &mockPostRepository{}, &mockFeedCache{})

	if err := svc.FanOutToFeeds(context.Background(), "alice", "p1", 1700000000); err == nil {
		t.Fatal("expected an error for the partial fan-out")
	}

	attempt = 1
	if err := svc.FanOutToFeeds(context.Background(), "alice", "p1", 1700000000); err != nil {
		t.Fatalf("retry should succeed, got: %v", err)
	}
}

func TestDistributionService_FanOutToFeeds_NoFollowers(t *testing.T) {
	follows := &mockFollowRepository{
		getFollowerIDsFn: func(ctx context.Context, userID string) ([]string, error) {
			return nil, nil
		},
	}
	feeds := &mockFeedRepository{}
	svc := NewDistributionService(feeds, follows, &mockPostRepository{}, &mockFeedCache{})

	if err := svc.FanOutToFeeds(context.Background(), "alice", "p1", 1700000000); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(feeds.feedEntries) != 0 {
		t.Errorf("feed entries = %d, want 0", len(feeds.feedEntries))
	}
}

func TestDistributionService_RemoveAuthorFromFeed(t *testing.T) {
	feeds := &mockFeedRepository{
		removeAuthorFn: func(ctx context.Context, userID, authorID string) ([]string, error) {
			return []string{"p1", "p2"}, nil
		},
	}
	fc := &mockFeedCache{}
	svc := NewDistributionService(feeds, &mockFollowRepository{}, &mockPostRepository{}, fc)

	if err := svc.RemoveAuthorFromFeed(context.Background(), "bob", "alice"); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(fc.removed) != 2 {
		t.Errorf("cache removals = %d, want 2", len(fc.removed))
	}
}

// =============================================================================
// FEED READ TESTS
// =============================================================================

func TestDistributionService_GetFeed_WarmsOnMiss(t *testing.T) {
	scores := []cache.PostScore{
		{PostID: "p2", Timestamp: 1700000200},
		{PostID: "p1", Timestamp: 1700000100},
	}
	feeds := &mockFeedRepository{
		getFeedPostScoresFn: func(ctx context.Context, userID string, limit int) ([]cache.PostScore, error) {
			return scores, nil
		},
	}
	fc := &mockFeedCache{
		getFeedFn: func(ctx context.Context, userID string, cursorScore *float64, limit int) ([]string, []float64, error) {
			return []string{"p2", "p1"}, []float64{1700000200, 1700000100}, nil
		},
	}
	svc := NewDistributionService(feeds, &mockFollowRepository{}, &mockPostRepository{}, fc)

	page, err := svc.GetFeed(context.Background(), "bob", nil, 2)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(fc.warmed["bob"]) != 2 {
		t.Errorf("cache warm entries = %d, want 2", len(fc.warmed["bob"]))
	}
	if len(page.Posts) != 2 || page.Posts[0].PostID != "p2" {
		t.Errorf("page posts = %+v, want p2 first", page.Posts)
	}
	if !page.HasMore || page.NextCursor == nil {
		t.Error("full page should carry a next cursor")
	}
}

func TestDistributionService_GetFeed_CursorRoundTrip(t *testing.T) {
	var gotScore *float64
	fc := &mockFeedCache{
		existsFn: func(ctx context.Context, userID string) (bool, error) { return true, nil },
		getFeedFn: func(ctx context.Context, userID string, cursorScore *float64, limit int) ([]string, []float64, error) {
			gotScore = cursorScore
			return nil, nil, nil
		},
	}
	svc := NewDistributionService(&mockFeedRepository{}, &mockFollowRepository{}, &mockPostRepository{}, fc)

	cursor := formatFeedCursor(1700000100, "p1")
	if _, err := svc.GetFeed(context.Background(), "bob", &cursor, 10); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if gotScore == nil || *gotScore != 1700000100 {
		t.Errorf("cursor score = %v, want 1700000100", gotScore)
	}
}

func TestDistributionService_GetFeed_TableCursorKeepsMicros(t *testing.T) {
	// Without a cache the cursor converts to a created_at bound; the
	// bound must keep the timestamp's sub-second part or posts sharing
	// the cursor's second get skipped by the exclusive comparison.
	last := time.Date(2026, 8, 1, 12, 0, 0, 654321000, time.UTC)
	var gotCursor *time.Time
	repo := &mockFeedRepository{
		getFeedFn: func(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.Post, *time.Time, error) {
			gotCursor = cursor
			next := last
			return []model.Post{{PostID: "p2", CreatedAt: last}}, &next, nil
		},
	}
	svc := NewDistributionService(repo, &mockFollowRepository{}, &mockPostRepository{}, nil)

	at := time.Date(2026, 8, 1, 12, 0, 1, 123456000, time.UTC)
	cursor := formatFeedCursor(float64(at.UnixMicro()), "p1")
	page, err := svc.GetFeed(context.Background(), "bob", &cursor, 10)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if gotCursor == nil || !gotCursor.Equal(at) {
		t.Errorf("cursor bound = %v, want %v", gotCursor, at)
	}

	if page.NextCursor == nil {
		t.Fatal("expected a next cursor")
	}
	score, postID, err := parseFeedCursor(*page.NextCursor)
	if err != nil {
		t.Fatalf("next cursor does not parse: %v", err)
	}
	if postID != "p2" || int64(score) != last.UnixMicro() {
		t.Errorf("next cursor = (%q, %v), want (p2, %d)", postID, score, last.UnixMicro())
	}
}

func TestParseFeedCursor(t *testing.T) {
	score, postID, err := parseFeedCursor("p1:1700000100")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if postID != "p1" || score != 1700000100 {
		t.Errorf("parsed (%q, %v), want (p1, 1700000100)", postID, score)
	}

	// UUID post ids contain no colon, but guard the format anyway.
	if _, _, err := parseFeedCursor("garbage"); err == nil {
		t.Error("expected an error for a cursor without a score")
	}
}

package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"greengen/internal/cache"
	"greengen/internal/model"
	"greengen/internal/repository"
)

const (
	// FeedDefaultLimit is the default number of posts per page.
	FeedDefaultLimit = 10

	// FeedMaxLimit is the maximum number of posts per page.
	FeedMaxLimit = 50

	// CacheWarmLimit is the max entries loaded when warming a feed cache.
	CacheWarmLimit = cache.FeedCacheCap
)

// DistributionService owns the materialized wall and feed. Walls are
// written synchronously at publish; feeds are fanned out to the
// follower snapshot by the queue workers, with every insert idempotent
// so retries converge instead of duplicating.
type DistributionService struct {
	feedRepo   repository.FeedRepository
	followRepo repository.FollowRepository
	postRepo   repository.PostRepository
	feedCache  cache.FeedCache
}

func NewDistributionService(
	feedRepo repository.FeedRepository,
	followRepo repository.FollowRepository,
	postRepo repository.PostRepository,
	feedCache cache.FeedCache,
) *DistributionService {
	return &DistributionService{
		feedRepo:   feedRepo,
		followRepo: followRepo,
		postRepo:   postRepo,
		feedCache:  feedCache,
	}
}

// PublishToWall places a post on its author's wall. Re-running is a
// no-op: the entry key is (user, post).
func (s *DistributionService) PublishToWall(ctx context.Context, userID, postID string) error {
	if _, err := s.feedRepo.AddWallEntry(ctx, userID, postID); err != nil {
		return err
	}
	return nil
}

// FanOutToFeeds inserts a feed entry for every follower in the current
// snapshot. Followers gained after this call never receive the post.
// Partial failure returns an error so the caller retries; entries that
// already landed are skipped on the retry.
func (s *DistributionService) FanOutToFeeds(ctx context.Context, authorID, postID string, timestamp int64) error {
	startTime := time.Now()

	followerIDs, err := s.followRepo.GetFollowerIDs(ctx, authorID)
	if err != nil {
		return fmt.Errorf("get follower snapshot: %w", err)
	}
	if len(followerIDs) == 0 {
		log.Printf("[DistributionService] FanOut: author=%s has no followers", authorID)
		return nil
	}

	failed := 0
	for _, followerID := range followerIDs {
		if _, err := s.feedRepo.AddFeedEntry(ctx, followerID, postID); err != nil {
			log.Printf("[DistributionService] FanOut entry FAILED: follower=%s post=%s err=%v",
				followerID, postID, err)
			failed++
			continue
		}

		// Cache updates are best-effort; the table is authoritative and
		// a cold cache re-warms from it.
		if s.feedCache != nil {
			if err := s.feedCache.AddPost(ctx, followerID, postID, timestamp); err != nil {
				log.Printf("[DistributionService] FanOut cache FAILED: follower=%s post=%s err=%v",
					followerID, postID, err)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("fan out post %s: %d of %d followers failed", postID, failed, len(followerIDs))
	}

	log.Printf("[DistributionService] FanOut OK: post=%s followers=%d duration=%v",
		postID, len(followerIDs), time.Since(startTime))
	return nil
}

// RemoveAuthorFromFeed drops every post authored by authorID from
// followerID's feed, table and cache both.
func (s *DistributionService) RemoveAuthorFromFeed(ctx context.Context, followerID, authorID string) error {
	removed, err := s.feedRepo.RemoveAuthorEntries(ctx, followerID, authorID)
	if err != nil {
		return fmt.Errorf("remove feed entries: %w", err)
	}

	if s.feedCache != nil {
		for _, postID := range removed {
			if err := s.feedCache.RemovePost(ctx, followerID, postID); err != nil {
				log.Printf("[DistributionService] Cache remove FAILED: follower=%s post=%s err=%v",
					followerID, postID, err)
			}
		}
	}

	log.Printf("[DistributionService] RemoveAuthorFromFeed OK: follower=%s author=%s removed=%d",
		followerID, authorID, len(removed))
	return nil
}

// GetWall pages through a user's own posts, newest first.
func (s *DistributionService) GetWall(ctx context.Context, userID string, cursor *string, limit int) (*model.FeedPage, error) {
	cursorTime, err := parseCursor(cursor)
	if err != nil {
		return nil, err
	}
	limit = clampFeedLimit(limit)

	posts, next, err := s.feedRepo.GetWall(ctx, userID, cursorTime, limit)
	if err != nil {
		return nil, err
	}
	return buildFeedPage(posts, next), nil
}

// GetFeed pages through the posts fanned out to userID, newest first.
//
// Flow: check the cache, warm it from the feed table on a miss, read
// the page of post ids from the cache, then hydrate from the DB. If the
// cache is unavailable the table serves the page directly.
func (s *DistributionService) GetFeed(ctx context.Context, userID string, cursor *string, limit int) (*model.FeedPage, error) {
	startTime := time.Now()
	limit = clampFeedLimit(limit)

	if s.feedCache == nil {
		return s.feedFromTable(ctx, userID, cursor, limit)
	}

	exists, err := s.feedCache.Exists(ctx, userID)
	if err != nil {
		log.Printf("[DistributionService] Cache check failed for user=%s: %v", userID, err)
		return s.feedFromTable(ctx, userID, cursor, limit)
	}

	if !exists {
		log.Printf("[DistributionService] Cache miss for user=%s, warming...", userID)
		if err := s.warmCache(ctx, userID); err != nil {
			log.Printf("[DistributionService] Cache warm failed for user=%s: %v", userID, err)
			return s.feedFromTable(ctx, userID, cursor, limit)
		}
	}

	var cursorScore *float64
	if cursor != nil && *cursor != "" {
		score, _, err := parseFeedCursor(*cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
		cursorScore = &score
	}

	postIDs, scores, err := s.feedCache.GetFeed(ctx, userID, cursorScore, limit)
	if err != nil {
		log.Printf("[DistributionService] Cache read failed for user=%s: %v", userID, err)
		return s.feedFromTable(ctx, userID, cursor, limit)
	}

	if len(postIDs) == 0 {
		return &model.FeedPage{Posts: []model.Post{}}, nil
	}

	posts, err := s.postRepo.GetByIDs(ctx, postIDs)
	if err != nil {
		return nil, fmt.Errorf("hydrate posts: %w", err)
	}

	page := &model.FeedPage{Posts: posts}
	if len(posts) == limit && len(scores) > 0 {
		last := posts[len(posts)-1]
		c := formatFeedCursor(scores[len(scores)-1], last.PostID)
		page.NextCursor = &c
		page.HasMore = true
	}

	log.Printf("[DistributionService] GetFeed OK: user=%s posts=%d hasMore=%v duration=%v",
		userID, len(page.Posts), page.HasMore, time.Since(startTime))
	return page, nil
}

// feedFromTable serves the page straight from the feed table. The
// cursor is the cache-format one, converted to a timestamp bound.
func (s *DistributionService) feedFromTable(ctx context.Context, userID string, cursor *string, limit int) (*model.FeedPage, error) {
	var cursorTime *time.Time
	if cursor != nil && *cursor != "" {
		score, _, err := parseFeedCursor(*cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
		t := time.UnixMicro(int64(score)).UTC()
		cursorTime = &t
	}

	posts, next, err := s.feedRepo.GetFeed(ctx, userID, cursorTime, limit)
	if err != nil {
		return nil, err
	}

	page := &model.FeedPage{Posts: posts}
	if next != nil {
		c := formatFeedCursor(float64(next.UnixMicro()), posts[len(posts)-1].PostID)
		page.NextCursor = &c
		page.HasMore = true
	}
	return page, nil
}

// warmCache rebuilds the user's feed cache from the feed table.
func (s *DistributionService) warmCache(ctx context.Context, userID string) error {
	scores, err := s.feedRepo.GetFeedPostScores(ctx, userID, CacheWarmLimit)
	if err != nil {
		return fmt.Errorf("get feed scores: %w", err)
	}
	if len(scores) == 0 {
		return nil
	}
	if err := s.feedCache.WarmCache(ctx, userID, scores); err != nil {
		return fmt.Errorf("warm cache: %w", err)
	}
	log.Printf("[DistributionService] Cache warmed: user=%s entries=%d", userID, len(scores))
	return nil
}

func clampFeedLimit(limit int) int {
	if limit <= 0 {
		return FeedDefaultLimit
	}
	if limit > FeedMaxLimit {
		return FeedMaxLimit
	}
	return limit
}

func buildFeedPage(posts []model.Post, next *time.Time) *model.FeedPage {
	page := &model.FeedPage{Posts: posts}
	if next != nil {
		page.HasMore = true
		page.NextCursor = formatCursor(*next)
	}
	return page
}

// parseFeedCursor parses the "postID:score" cursor used by cached feed
// pages.
func parseFeedCursor(cursor string) (float64, string, error) {
	idx := strings.LastIndex(cursor, ":")
	if idx <= 0 || idx == len(cursor)-1 {
		return 0, "", fmt.Errorf("invalid cursor format, expected postID:score")
	}

	postID := cursor[:idx]
	score, err := strconv.ParseFloat(cursor[idx+1:], 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid score in cursor: %w", err)
	}
	return score, postID, nil
}

func formatFeedCursor(score float64, postID string) string {
	return fmt.Sprintf("%s:%.0f", postID, score)
}

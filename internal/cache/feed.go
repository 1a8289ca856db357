package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// FeedCachePrefix is the key prefix for user feed caches
	FeedCachePrefix = "feed:user:"

	// FeedCacheCap is the maximum number of posts to cache per user
	FeedCacheCap = 500

	// FeedCacheTTL is the TTL for feed cache (7 days)
	FeedCacheTTL = 7 * 24 * time.Hour
)

// PostScore pairs a post id with its timestamp score.
type PostScore struct {
	PostID    string
	Timestamp int64 // Unix microseconds
}

// FeedCache is the read-path accelerator over the materialized feed
// table. The table stays the source of truth; the cache only has to be
// warm enough to serve a page, and is rebuilt from the table on miss.
type FeedCache interface {
	// AddPost adds a post to a user's feed cache.
	AddPost(ctx context.Context, userID, postID string, timestamp int64) error

	// RemovePost removes a post from a user's feed cache.
	RemovePost(ctx context.Context, userID, postID string) error

	// GetFeed retrieves post ids from a user's feed cache, newest first.
	// With a cursor score, only posts strictly older are returned.
	GetFeed(ctx context.Context, userID string, cursorScore *float64, limit int) (postIDs []string, scores []float64, err error)

	// WarmCache bulk-inserts posts into a user's feed cache.
	WarmCache(ctx context.Context, userID string, posts []PostScore) error

	// Exists checks if a user has a feed cache entry. The service warms
	// the cache from the feed table when this returns false.
	Exists(ctx context.Context, userID string) (bool, error)
}

// RedisFeedCache implements FeedCache using Redis Sorted Sets.
type RedisFeedCache struct {
	client *redis.Client
}

// NewFeedCache creates a new FeedCache backed by Redis.
func NewFeedCache(client *redis.Client) FeedCache {
	return &RedisFeedCache{client: client}
}

func feedKey(userID string) string {
	return FeedCachePrefix + userID
}

// AddPost adds a post with its timestamp as score, trims the set to the
// cap and refreshes the TTL, all in one pipeline.
func (c *RedisFeedCache) AddPost(ctx context.Context, userID, postID string, timestamp int64) error {
	key := feedKey(userID)

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(timestamp), Member: postID})
	// Keep the newest FeedCacheCap scores, drop the rest.
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-FeedCacheCap-1))
	pipe.Expire(ctx, key, FeedCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[FeedCache] AddPost FAILED: user=%s post=%s err=%v", userID, postID, err)
		return fmt.Errorf("add post to feed: %w", err)
	}
	return nil
}

func (c *RedisFeedCache) RemovePost(ctx context.Context, userID, postID string) error {
	key := feedKey(userID)

	removed, err := c.client.ZRem(ctx, key, postID).Result()
	if err != nil {
		log.Printf("[FeedCache] RemovePost FAILED: user=%s post=%s err=%v", userID, postID, err)
		return fmt.Errorf("remove post from feed: %w", err)
	}

	log.Printf("[FeedCache] RemovePost OK: user=%s post=%s removed=%d", userID, postID, removed)
	return nil
}

// GetFeed retrieves post ids newest-first. Without a cursor it returns
// the top of the set; with one, posts strictly older than the cursor
// score.
func (c *RedisFeedCache) GetFeed(ctx context.Context, userID string, cursorScore *float64, limit int) ([]string, []float64, error) {
	key := feedKey(userID)

	var results []redis.Z
	var err error

	if cursorScore == nil {
		results, err = c.client.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	} else {
		results, err = c.client.ZRevRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
			Min:    "-inf",
			Max:    fmt.Sprintf("(%f", *cursorScore), // exclusive
			Offset: 0,
			Count:  int64(limit),
		}).Result()
	}

	if err != nil {
		log.Printf("[FeedCache] GetFeed FAILED: user=%s err=%v", userID, err)
		return nil, nil, fmt.Errorf("get feed: %w", err)
	}

	// Refresh TTL on access
	c.client.Expire(ctx, key, FeedCacheTTL)

	postIDs := make([]string, len(results))
	scores := make([]float64, len(results))
	for i, z := range results {
		id, ok := z.Member.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected member type %T", z.Member)
		}
		postIDs[i] = id
		scores[i] = z.Score
	}

	return postIDs, scores, nil
}

// WarmCache bulk-inserts posts using a pipeline.
func (c *RedisFeedCache) WarmCache(ctx context.Context, userID string, posts []PostScore) error {
	if len(posts) == 0 {
		return nil
	}

	key := feedKey(userID)
	startTime := time.Now()

	pipe := c.client.Pipeline()

	members := make([]redis.Z, len(posts))
	for i, p := range posts {
		members[i] = redis.Z{Score: float64(p.Timestamp), Member: p.PostID}
	}
	pipe.ZAdd(ctx, key, members...)
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-FeedCacheCap-1))
	pipe.Expire(ctx, key, FeedCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[FeedCache] WarmCache FAILED: user=%s posts=%d err=%v", userID, len(posts), err)
		return fmt.Errorf("warm cache: %w", err)
	}

	log.Printf("[FeedCache] WarmCache OK: user=%s posts=%d duration=%v",
		userID, len(posts), time.Since(startTime))
	return nil
}

// Exists checks if a user has a feed cache entry.
func (c *RedisFeedCache) Exists(ctx context.Context, userID string) (bool, error) {
	exists, err := c.client.Exists(ctx, feedKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("check cache exists: %w", err)
	}
	return exists > 0, nil
}

package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the fan-out stream
const (
	EventPostPublished  = "post_published"
	EventUserFollowed   = "user_followed"
	EventUserUnfollowed = "user_unfollowed"
)

// Stream names
const (
	StreamFanout = "stream:fanout"
)

// Consumer group name for fan-out workers
const (
	ConsumerGroupFanout = "fanout_workers"
)

// FanoutEvent is the envelope published to the fan-out stream. All
// distribution events share this structure.
type FanoutEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // Unix microseconds when event occurred

	// Post event (PostPublished)
	PostID   string `json:"post_id,omitempty"`
	AuthorID string `json:"author_id,omitempty"`

	// Follow events (UserFollowed, UserUnfollowed)
	FollowerID string `json:"follower_id,omitempty"`
	FolloweeID string `json:"followee_id,omitempty"`
}

// NewPostPublishedEvent creates the event emitted after a post commit.
// The worker fans the post out to every current follower's feed.
func NewPostPublishedEvent(postID, authorID string) FanoutEvent {
	return FanoutEvent{
		Type:      EventPostPublished,
		Timestamp: time.Now().UnixMicro(),
		PostID:    postID,
		AuthorID:  authorID,
	}
}

// NewUserFollowedEvent creates the event emitted after a follow edge
// commit. The worker notifies the followee; the new follower does NOT
// receive older posts retroactively.
func NewUserFollowedEvent(followerID, followeeID string) FanoutEvent {
	return FanoutEvent{
		Type:       EventUserFollowed,
		Timestamp:  time.Now().UnixMicro(),
		FollowerID: followerID,
		FolloweeID: followeeID,
	}
}

// NewUserUnfollowedEvent creates the event emitted after an unfollow.
// The worker prunes the ex-followee's posts from the follower's feed.
func NewUserUnfollowedEvent(followerID, followeeID string) FanoutEvent {
	return FanoutEvent{
		Type:       EventUserUnfollowed,
		Timestamp:  time.Now().UnixMicro(),
		FollowerID: followerID,
		FolloweeID: followeeID,
	}
}

// ToMap converts the event to a map for Redis XADD. Redis Streams store
// field-value pairs, so the event is serialized to JSON in a "data"
// field.
func (e FanoutEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseFanoutEvent parses a FanoutEvent from Redis stream message values.
func ParseFanoutEvent(values map[string]interface{}) (FanoutEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return FanoutEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event FanoutEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return FanoutEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}

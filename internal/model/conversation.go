package model

import (
	"errors"
	"time"
)

// Conversation is a direct or group message thread.
type Conversation struct {
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Message is one entry in a conversation, ordered by CreatedAt.
type Message struct {
	MessageID      string    `db:"message_id" json:"message_id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	SenderID       string    `db:"sender_id" json:"sender_id"`
	Body           string    `db:"body" json:"body"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// MessageFlag is a moderation report on a message, unique per
// (message_id, user_id).
type MessageFlag struct {
	MessageID string    `db:"message_id" json:"message_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SharedPost records a post shared into a conversation, unique per
// (conversation_id, post_id).
type SharedPost struct {
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	PostID         string    `db:"post_id" json:"post_id"`
	SharedBy       string    `db:"shared_by" json:"shared_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// PrivateConversation maps an unordered pair of users to their single
// direct thread. UserLo < UserHi lexicographically; callers never see
// the ordering, GetOrCreatePrivateConversation canonicalizes it.
type PrivateConversation struct {
	UserLo         string    `db:"user_lo" json:"-"`
	UserHi         string    `db:"user_hi" json:"-"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// MessagePage is a cursor-paginated slice of a conversation.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	NextCursor *string   `json:"next_cursor,omitempty"`
	HasMore    bool      `json:"has_more"`
}

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrMessageFlagged       = errors.New("message already flagged by this user")
	ErrPostAlreadyShared    = errors.New("post already shared into this conversation")
	ErrSelfConversation     = errors.New("cannot open a private conversation with yourself")
)

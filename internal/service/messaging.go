package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"greengen/internal/model"
	"greengen/internal/repository"
)

// MessagingService handles conversations, messages and notification
// records. Private conversations are idempotent by construction: the
// user pair is canonicalized before lookup, so (A,B) and (B,A) resolve
// to the same thread and repeat calls return it instead of erroring.
type MessagingService struct {
	messagingRepo    repository.MessagingRepository
	notificationRepo repository.NotificationRepository
	userRepo         repository.UserRepository
}

func NewMessagingService(
	messagingRepo repository.MessagingRepository,
	notificationRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
) *MessagingService {
	return &MessagingService{
		messagingRepo:    messagingRepo,
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
	}
}

// GetOrCreatePrivateConversation resolves the direct thread between two
// users, creating it on first use. Symmetric in its arguments.
func (s *MessagingService) GetOrCreatePrivateConversation(ctx context.Context, userA, userB string) (string, error) {
	if userA == userB {
		return "", model.ErrSelfConversation
	}

	if _, err := s.userRepo.GetByID(ctx, userA); err != nil {
		return "", err
	}
	if _, err := s.userRepo.GetByID(ctx, userB); err != nil {
		return "", err
	}

	userLo, userHi := userA, userB
	if userLo > userHi {
		userLo, userHi = userHi, userLo
	}

	conversationID, created, err := s.messagingRepo.GetOrCreatePrivate(ctx, userLo, userHi)
	if err != nil {
		return "", err
	}
	if created {
		log.Printf("[MessagingService] Private conversation created: id=%s", conversationID)
	}
	return conversationID, nil
}

// CreateConversation opens a new (group) conversation.
func (s *MessagingService) CreateConversation(ctx context.Context) (*model.Conversation, error) {
	return s.messagingRepo.CreateConversation(ctx)
}

// SendMessage appends a message to the conversation and returns it with
// its id and server-side timestamp.
func (s *MessagingService) SendMessage(ctx context.Context, conversationID, senderID, body string) (*model.Message, error) {
	if body == "" {
		return nil, fmt.Errorf("message body is required")
	}

	exists, err := s.messagingRepo.ConversationExists(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, model.ErrConversationNotFound
	}

	msg := &model.Message{
		MessageID:      uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
	}
	if err := s.messagingRepo.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}

	log.Printf("[MessagingService] SendMessage OK: conversation=%s message=%s", conversationID, msg.MessageID)
	return msg, nil
}

// GetMessages pages through a conversation oldest-first; the cursor
// resumes after the last message of the previous page.
func (s *MessagingService) GetMessages(ctx context.Context, conversationID string, cursor *string, limit int) (*model.MessagePage, error) {
	cursorTime, err := parseCursor(cursor)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}

	messages, next, err := s.messagingRepo.GetMessages(ctx, conversationID, cursorTime, limit)
	if err != nil {
		return nil, err
	}

	page := &model.MessagePage{Messages: messages}
	if next != nil {
		page.HasMore = true
		page.NextCursor = formatCursor(*next)
	}
	return page, nil
}

// FlagMessage files a moderation report on a message; a second flag by
// the same user fails with model.ErrMessageFlagged.
func (s *MessagingService) FlagMessage(ctx context.Context, messageID, userID string) error {
	return s.messagingRepo.FlagMessage(ctx, messageID, userID)
}

// SharePostToConversation shares an existing post into a conversation;
// sharing the same post again fails with model.ErrPostAlreadyShared.
func (s *MessagingService) SharePostToConversation(ctx context.Context, conversationID, postID, sharedBy string) error {
	exists, err := s.messagingRepo.ConversationExists(ctx, conversationID)
	if err != nil {
		return err
	}
	if !exists {
		return model.ErrConversationNotFound
	}

	return s.messagingRepo.SharePost(ctx, conversationID, postID, sharedBy)
}

// Notify writes (or reuses) the content record for the notification and
// appends one delivery stamped at the given time. Re-delivering the
// same notification at the same instant is a no-op, so retries never
// duplicate.
func (s *MessagingService) Notify(ctx context.Context, userID, notificationID string, payload json.RawMessage, at time.Time) error {
	if err := s.notificationRepo.UpsertContent(ctx, userID, notificationID, payload); err != nil {
		return fmt.Errorf("upsert notification content: %w", err)
	}
	if err := s.notificationRepo.InsertDelivery(ctx, userID, notificationID, at); err != nil {
		return fmt.Errorf("insert notification delivery: %w", err)
	}
	return nil
}

// followNotificationNamespace seeds the deterministic ids for
// new-follower notifications.
var followNotificationNamespace = uuid.MustParse("7f1c9c52-3c5a-4c5f-9d0a-2e8b6f4a1d3e")

// NotifyFollowed delivers a new-follower notification to the followee.
// The notification id is a name-based UUID derived from the follower,
// so a retried follow event reuses the content record instead of
// creating a second one.
func (s *MessagingService) NotifyFollowed(ctx context.Context, followeeID, followerID string, at time.Time) error {
	payload, err := json.Marshal(map[string]string{
		"type":        "new_follower",
		"follower_id": followerID,
	})
	if err != nil {
		return fmt.Errorf("marshal follow payload: %w", err)
	}

	notificationID := uuid.NewSHA1(followNotificationNamespace, []byte("follow:"+followerID)).String()
	return s.Notify(ctx, followeeID, notificationID, payload, at)
}

// ListNotifications returns the user's deliveries, newest first.
func (s *MessagingService) ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	return s.notificationRepo.List(ctx, userID, limit)
}

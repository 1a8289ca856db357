package service

import (
	"context"
	"log"
	"strings"

	"github.com/google/uuid"

	"greengen/internal/model"
	"greengen/internal/queue"
	"greengen/internal/repository"
)

// ContentService creates and reads posts of all kinds. A post and its
// kind-specific record are written in one transaction; the wall entry
// and hashtag index follow synchronously, feed fan-out runs async
// through the queue.
type ContentService struct {
	postRepo       repository.PostRepository
	engagementRepo repository.EngagementRepository
	feedRepo       repository.FeedRepository
	userRepo       repository.UserRepository
	publisher      queue.Publisher
}

func NewContentService(
	postRepo repository.PostRepository,
	engagementRepo repository.EngagementRepository,
	feedRepo repository.FeedRepository,
	userRepo repository.UserRepository,
	publisher queue.Publisher,
) *ContentService {
	return &ContentService{
		postRepo:       postRepo,
		engagementRepo: engagementRepo,
		feedRepo:       feedRepo,
		userRepo:       userRepo,
		publisher:      publisher,
	}
}

// CreatePost allocates ids, validates the kind payload, and persists
// the post. Returns the stored post with server-side timestamps.
func (s *ContentService) CreatePost(ctx context.Context, author string, req model.CreatePostRequest) (*model.Post, error) {
	user, err := s.userRepo.GetByID(ctx, author)
	if err != nil {
		return nil, err
	}
	if !user.Enabled {
		return nil, model.ErrUserDisabled
	}

	post, err := buildPost(author, req)
	if err != nil {
		return nil, err
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		log.Printf("[ContentService] CreatePost FAILED: author=%s kind=%s err=%v", author, req.Kind, err)
		return nil, err
	}

	// The author's wall is populated synchronously; only follower feeds
	// go through the async fan-out.
	if _, err := s.feedRepo.AddWallEntry(ctx, author, post.PostID); err != nil {
		return nil, err
	}

	if len(post.Hashtags) > 0 {
		if err := s.engagementRepo.IndexHashtags(ctx, author, post.Hashtags); err != nil {
			log.Printf("[ContentService] IndexHashtags FAILED: post=%s err=%v", post.PostID, err)
		}
	}

	log.Printf("[ContentService] CreatePost OK: post=%s author=%s kind=%s", post.PostID, author, post.Kind)

	if s.publisher != nil {
		event := queue.NewPostPublishedEvent(post.PostID, author)
		if _, err := s.publisher.Publish(ctx, queue.StreamFanout, event); err != nil {
			log.Printf("[ContentService] Failed to publish PostPublished: post=%s err=%v", post.PostID, err)
		}
	}

	return post, nil
}

// buildPost validates the request against its declared kind and
// assembles the full record with fresh ids. Exactly the sub-document
// for the declared kind must be present.
func buildPost(author string, req model.CreatePostRequest) (*model.Post, error) {
	if !req.Kind.Valid() {
		return nil, model.ErrInvalidKindPayload
	}

	given := 0
	for _, present := range []bool{req.Tip != nil, req.Poll != nil, req.Challenge != nil, req.Event != nil} {
		if present {
			given++
		}
	}

	post := &model.Post{
		PostID:   uuid.NewString(),
		Author:   author,
		Kind:     req.Kind,
		Body:     req.Body,
		Hashtags: normalizeTags(req.Hashtags),
	}

	switch req.Kind {
	case model.KindFreeText:
		if given != 0 {
			return nil, model.ErrInvalidKindPayload
		}

	case model.KindTip:
		if given != 1 || req.Tip == nil {
			return nil, model.ErrInvalidKindPayload
		}
		tip := *req.Tip
		tip.TipID = uuid.NewString()
		tip.PostID = post.PostID
		post.Tip = &tip

	case model.KindPoll:
		if given != 1 || req.Poll == nil || len(req.Poll.Choices) == 0 {
			return nil, model.ErrInvalidKindPayload
		}
		poll := *req.Poll
		poll.PollID = uuid.NewString()
		poll.PostID = post.PostID
		post.Poll = &poll

	case model.KindChallenge:
		if given != 1 || req.Challenge == nil {
			return nil, model.ErrInvalidKindPayload
		}
		ch := *req.Challenge
		if ch.StartAt.IsZero() || ch.EndAt.IsZero() || ch.DurationSecs <= 0 {
			return nil, model.ErrInvalidKindPayload
		}
		ch.ChallengeID = uuid.NewString()
		ch.PostID = post.PostID
		post.Challenge = &ch

	case model.KindEvent:
		if given != 1 || req.Event == nil || req.Event.StartsAt.IsZero() {
			return nil, model.ErrInvalidKindPayload
		}
		ev := *req.Event
		ev.EventID = uuid.NewString()
		ev.PostID = post.PostID
		post.Event = &ev
	}

	return post, nil
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// GetPost returns the post joined with its kind-specific data.
func (s *ContentService) GetPost(ctx context.Context, postID string) (*model.Post, error) {
	return s.postRepo.GetByID(ctx, postID)
}

// InviteToChallenge registers challengeeID as a pending participant.
func (s *ContentService) InviteToChallenge(ctx context.Context, challengeID, challengeeID string) error {
	if _, err := s.userRepo.GetByID(ctx, challengeeID); err != nil {
		return err
	}
	return s.postRepo.AddChallengeParticipant(ctx, challengeID, challengeeID, model.ParticipationPending)
}

// RespondToChallenge moves a participation out of Pending. Only
// Accepted, Rejected and Completed are reachable through here.
func (s *ContentService) RespondToChallenge(ctx context.Context, challengeID, challengeeID string, status model.ParticipationStatus) error {
	if !status.Valid() || status == model.ParticipationPending {
		return model.ErrInvalidStatus
	}
	return s.postRepo.SetChallengeParticipantStatus(ctx, challengeID, challengeeID, status)
}

// RecordChallengeStep appends one step to the challengee's report. The
// sequence is append-only; a step number can be reported once.
func (s *ContentService) RecordChallengeStep(ctx context.Context, challengeID, challengeeID string, step int, status model.StepStatus) error {
	if !status.Valid() {
		return model.ErrInvalidStatus
	}
	return s.postRepo.AddChallengeStep(ctx, model.ChallengeReportStep{
		ChallengeID:  challengeID,
		ChallengeeID: challengeeID,
		Step:         step,
		Status:       status,
	})
}

// GetChallengeReport returns all reported steps of a challenge, ordered
// by ascending step then recording time.
func (s *ContentService) GetChallengeReport(ctx context.Context, challengeID string) ([]model.ChallengeReportStep, error) {
	return s.postRepo.GetChallengeSteps(ctx, challengeID)
}

// CastPollAnswer records one vote. A second vote by the same user fails
// with model.ErrDuplicateVote and the first answer stands.
func (s *ContentService) CastPollAnswer(ctx context.Context, pollID, userID, choice string) error {
	if strings.TrimSpace(choice) == "" {
		return model.ErrInvalidStatus
	}
	return s.postRepo.CastPollAnswer(ctx, pollID, userID, choice)
}

// GetPollAnswers returns all recorded votes for a poll.
func (s *ContentService) GetPollAnswers(ctx context.Context, pollID string) ([]model.PollAnswer, error) {
	return s.postRepo.GetPollAnswers(ctx, pollID)
}

// JoinEvent registers userID as an event participant.
func (s *ContentService) JoinEvent(ctx context.Context, eventID, userID string) error {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return err
	}
	return s.postRepo.JoinEvent(ctx, eventID, userID)
}

// SetEventStatus advances the event lifecycle.
func (s *ContentService) SetEventStatus(ctx context.Context, eventID, status string) error {
	switch status {
	case model.EventPlanned, model.EventOngoing, model.EventFinished, model.EventCancelled:
	default:
		return model.ErrInvalidStatus
	}
	return s.postRepo.SetEventStatus(ctx, eventID, status)
}

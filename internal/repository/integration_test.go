package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"greengen/internal/database"
	"greengen/internal/model"
	"greengen/internal/repository"
	"greengen/internal/service"
)

// testDB connects to a local Postgres and applies the migrations,
// skipping the test when no database is reachable.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost user=postgres password=postgres dbname=greengen_test port=5432 sslmode=disable"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// createTestUser inserts a user with unique pseudo and email hash and
// returns its id.
func createTestUser(t *testing.T, db *sqlx.DB) string {
	t.Helper()

	users := repository.NewUserRepository(db)
	u := &model.User{
		UserID:       uuid.NewString(),
		EmailHash:    uuid.NewString(),
		PasswordHash: "x",
		Pseudo:       "u-" + uuid.NewString(),
	}
	if err := users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.UserID
}

func createFreeTextPost(t *testing.T, db *sqlx.DB, authorID, body string) string {
	t.Helper()

	posts := repository.NewPostRepository(db)
	post := &model.Post{
		PostID: uuid.NewString(),
		Author: authorID,
		Kind:   model.KindFreeText,
		Body:   &body,
	}
	if err := posts.Create(context.Background(), post); err != nil {
		t.Fatalf("create post: %v", err)
	}
	return post.PostID
}

func TestPostRepository_ChallengeStepsOrderedByStep(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	posts := repository.NewPostRepository(db)

	author := createTestUser(t, db)
	challengee := createTestUser(t, db)

	now := time.Now().UTC().Truncate(time.Second)
	challenge := &model.Post{
		PostID: uuid.NewString(),
		Author: author,
		Kind:   model.KindChallenge,
		Challenge: &model.Challenge{
			ChallengeID: uuid.NewString(),
			ChallengeSchedule: model.ChallengeSchedule{
				StartAt:      now,
				DurationSecs: 86400,
				EverySecs:    86400,
				EndAt:        now.Add(7 * 24 * time.Hour),
			},
			SuccessMeasure: model.SuccessMeasure{MaxFailure: 2, MaxSkip: 1, MaxPartial: 1},
		},
	}
	if err := posts.Create(ctx, challenge); err != nil {
		t.Fatalf("create challenge post: %v", err)
	}
	challengeID := challenge.Challenge.ChallengeID

	if err := posts.AddChallengeParticipant(ctx, challengeID, challengee, model.ParticipationAccepted); err != nil {
		t.Fatalf("add participant: %v", err)
	}

	// Record the steps out of order; the report must still come back
	// sorted by ascending step, not by insertion time.
	for _, n := range []int{3, 1, 2} {
		err := posts.AddChallengeStep(ctx, model.ChallengeReportStep{
			ChallengeID:  challengeID,
			ChallengeeID: challengee,
			Step:         n,
			Status:       model.StepSuccess,
		})
		if err != nil {
			t.Fatalf("add step %d: %v", n, err)
		}
	}

	steps, err := posts.GetChallengeSteps(ctx, challengeID)
	if err != nil {
		t.Fatalf("get challenge steps: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(steps))
	}
	for i, s := range steps {
		if s.Step != i+1 {
			t.Errorf("steps[%d].Step = %d, want %d", i, s.Step, i+1)
		}
	}
}

func TestDistribution_PublishReachesExistingFollowersOnly(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	follows := repository.NewFollowRepository(db)
	posts := repository.NewPostRepository(db)
	feeds := repository.NewFeedRepository(db)
	dist := service.NewDistributionService(feeds, follows, posts, nil)

	author := createTestUser(t, db)
	early := createTestUser(t, db)
	late := createTestUser(t, db)

	if _, err := follows.Create(ctx, author, early); err != nil {
		t.Fatalf("follow: %v", err)
	}

	postID := createFreeTextPost(t, db, author, "composting 101")
	if _, err := feeds.AddWallEntry(ctx, author, postID); err != nil {
		t.Fatalf("add wall entry: %v", err)
	}
	if err := dist.FanOutToFeeds(ctx, author, postID, time.Now().UnixMicro()); err != nil {
		t.Fatalf("fan out: %v", err)
	}

	wall, _, err := feeds.GetWall(ctx, author, nil, 10)
	if err != nil {
		t.Fatalf("get wall: %v", err)
	}
	if len(wall) != 1 || wall[0].PostID != postID {
		t.Fatalf("author wall = %+v, want the published post", wall)
	}

	feed, _, err := feeds.GetFeed(ctx, early, nil, 10)
	if err != nil {
		t.Fatalf("get feed: %v", err)
	}
	if len(feed) != 1 || feed[0].PostID != postID {
		t.Fatalf("existing follower feed = %+v, want the published post", feed)
	}

	// A retried fan-out must not duplicate the entry.
	if err := dist.FanOutToFeeds(ctx, author, postID, time.Now().UnixMicro()); err != nil {
		t.Fatalf("retried fan out: %v", err)
	}
	feed, _, err = feeds.GetFeed(ctx, early, nil, 10)
	if err != nil {
		t.Fatalf("get feed after retry: %v", err)
	}
	if len(feed) != 1 {
		t.Fatalf("feed has %d entries after retry, want 1", len(feed))
	}

	// Following after publication grants no retroactive delivery.
	if _, err := follows.Create(ctx, author, late); err != nil {
		t.Fatalf("late follow: %v", err)
	}
	lateFeed, _, err := feeds.GetFeed(ctx, late, nil, 10)
	if err != nil {
		t.Fatalf("get late follower feed: %v", err)
	}
	if len(lateFeed) != 0 {
		t.Fatalf("late follower feed = %+v, want empty", lateFeed)
	}
}

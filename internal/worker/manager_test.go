package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"greengen/internal/queue"
)

type fakeConsumer struct {
	readFn        func(ctx context.Context) ([]queue.Message, error)
	readPendingFn func(ctx context.Context) ([]queue.Message, error)

	acked []string
}

func (c *fakeConsumer) EnsureGroup(ctx context.Context, stream, group string) error { return nil }

func (c *fakeConsumer) Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]queue.Message, error) {
	if c.readFn != nil {
		return c.readFn(ctx)
	}
	return nil, nil
}

func (c *fakeConsumer) ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]queue.Message, error) {
	if c.readPendingFn != nil {
		return c.readPendingFn(ctx)
	}
	return nil, nil
}

func (c *fakeConsumer) Ack(ctx context.Context, stream, group string, messageIDs ...string) error {
	c.acked = append(c.acked, messageIDs...)
	return nil
}

func (c *fakeConsumer) Pending(ctx context.Context, stream, group string) (int64, error) {
	return 0, nil
}

func message(t *testing.T, id string, event queue.FanoutEvent) queue.Message {
	t.Helper()
	values, err := event.ToMap()
	if err != nil {
		t.Fatalf("build message values: %v", err)
	}
	return queue.Message{ID: id, Values: values}
}

func TestManager_HandleBatch_AcksOnlySuccesses(t *testing.T) {
	dist := &fakeDistributor{
		fanOutFn: func(ctx context.Context, authorID, postID string, timestamp int64) error {
			if postID == "bad" {
				return errors.New("fan out failed")
			}
			return nil
		},
	}
	consumer := &fakeConsumer{}
	m := NewManager(consumer, NewHandler(dist), 1, 10)

	batch := []queue.Message{
		message(t, "1-0", queue.NewPostPublishedEvent("ok", "alice")),
		message(t, "2-0", queue.NewPostPublishedEvent("bad", "alice")),
	}

	anyFailed := m.handleBatch(context.Background(), "worker-0", batch)
	if !anyFailed {
		t.Fatal("expected the batch to report a failure")
	}

	// The failed message must not be acked, so it is replayed later.
	if len(consumer.acked) != 1 || consumer.acked[0] != "1-0" {
		t.Errorf("acked = %v, want only 1-0", consumer.acked)
	}
}

func TestManager_HandleBatch_DropsMalformed(t *testing.T) {
	consumer := &fakeConsumer{}
	m := NewManager(consumer, NewHandler(&fakeDistributor{}), 1, 10)

	batch := []queue.Message{
		{ID: "1-0", Values: map[string]interface{}{"type": "post_published"}}, // no data field
	}

	anyFailed := m.handleBatch(context.Background(), "worker-0", batch)
	if anyFailed {
		t.Error("a malformed message is dropped, not treated as a failure")
	}
	if len(consumer.acked) != 1 || consumer.acked[0] != "1-0" {
		t.Errorf("acked = %v, want the malformed message dropped via ack", consumer.acked)
	}
}

func TestManager_ProcessPending_RetriesUntilSuccess(t *testing.T) {
	attempts := 0
	dist := &fakeDistributor{
		fanOutFn: func(ctx context.Context, authorID, postID string, timestamp int64) error {
			attempts++
			if attempts == 1 {
				return errors.New("transient")
			}
			return nil
		},
	}

	pending := []queue.Message{message(t, "1-0", queue.NewPostPublishedEvent("p1", "alice"))}
	consumer := &fakeConsumer{
		readPendingFn: func(ctx context.Context) ([]queue.Message, error) {
			if len(pending) == 0 {
				return nil, nil
			}
			return pending, nil
		},
	}
	m := NewManager(consumer, NewHandler(dist), 1, 10)

	// First pass fails and leaves the message pending.
	if n, failed := m.processPending(context.Background(), "worker-0"); n != 1 || !failed {
		t.Fatalf("first pass = (%d, %v), want (1, true)", n, failed)
	}
	if len(consumer.acked) != 0 {
		t.Fatalf("nothing should be acked yet, got %v", consumer.acked)
	}

	// Second pass succeeds and acks.
	if n, failed := m.processPending(context.Background(), "worker-0"); n != 1 || failed {
		t.Fatalf("second pass = (%d, %v), want (1, false)", n, failed)
	}
	if len(consumer.acked) != 1 {
		t.Fatalf("acked = %v, want the retried message", consumer.acked)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

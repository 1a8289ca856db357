package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"greengen/internal/queue"
)

// Manager runs a pool of workers consuming fan-out events from the
// queue. A message is acknowledged only after its handler succeeds;
// failed messages stay in the pending entries list and are replayed
// until they go through.
type Manager struct {
	consumer    queue.Consumer
	handler     *Handler
	stream      string
	group       string
	workerCount int
	batchSize   int64

	wg       sync.WaitGroup
	shutdown chan struct{}
}

// NewManager creates a new worker manager consuming the fan-out stream.
func NewManager(consumer queue.Consumer, handler *Handler, workerCount int, batchSize int64) *Manager {
	return &Manager{
		consumer:    consumer,
		handler:     handler,
		stream:      queue.StreamFanout,
		group:       queue.ConsumerGroupFanout,
		workerCount: workerCount,
		batchSize:   batchSize,
		shutdown:    make(chan struct{}),
	}
}

// Start creates the consumer group and launches the worker pool.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.consumer.EnsureGroup(ctx, m.stream, m.group); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	log.Printf("[Worker] Starting %d workers (batch size %d)", m.workerCount, m.batchSize)
	for i := 0; i < m.workerCount; i++ {
		m.wg.Add(1)
		go m.runWorker(ctx, fmt.Sprintf("worker-%d", i))
	}
	return nil
}

// Stop signals all workers to stop and waits for them to finish.
func (m *Manager) Stop() {
	log.Println("[Worker] Stopping workers...")
	close(m.shutdown)
	m.wg.Wait()
	log.Println("[Worker] All workers stopped")
}

func (m *Manager) runWorker(ctx context.Context, name string) {
	defer m.wg.Done()
	log.Printf("[Worker] %s started", name)

	for {
		select {
		case <-m.shutdown:
			log.Printf("[Worker] %s shutting down", name)
			return
		case <-ctx.Done():
			log.Printf("[Worker] %s context cancelled", name)
			return
		default:
		}

		// Replay unacknowledged messages before taking new work, so a
		// crashed or failed batch is finished first.
		drained, failed := m.processPending(ctx, name)
		if failed {
			// A pending message keeps failing; back off instead of
			// spinning on it.
			m.pause(time.Second)
			continue
		}
		if drained > 0 {
			continue
		}

		messages, err := m.consumer.Read(ctx, m.stream, m.group, name, m.batchSize, 2*time.Second)
		if err != nil {
			log.Printf("[Worker] %s read error: %v", name, err)
			m.pause(time.Second)
			continue
		}
		m.handleBatch(ctx, name, messages)
	}
}

// processPending re-reads this consumer's unacknowledged messages and
// re-runs them. Returns the number seen and whether any failed.
func (m *Manager) processPending(ctx context.Context, name string) (int, bool) {
	messages, err := m.consumer.ReadPending(ctx, m.stream, m.group, name, m.batchSize)
	if err != nil {
		log.Printf("[Worker] %s read pending error: %v", name, err)
		return 0, true
	}
	if len(messages) == 0 {
		return 0, false
	}

	log.Printf("[Worker] %s replaying %d pending messages", name, len(messages))
	return len(messages), m.handleBatch(ctx, name, messages)
}

// handleBatch processes messages and acks the ones that succeed.
// Returns true when any message failed and was left pending.
func (m *Manager) handleBatch(ctx context.Context, name string, messages []queue.Message) bool {
	anyFailed := false
	for _, msg := range messages {
		event, err := queue.ParseFanoutEvent(msg.Values)
		if err != nil {
			// Malformed payloads can never succeed; ack to drop them.
			log.Printf("[Worker] %s dropping malformed message %s: %v", name, msg.ID, err)
			if ackErr := m.consumer.Ack(ctx, m.stream, m.group, msg.ID); ackErr != nil {
				log.Printf("[Worker] %s ack error for %s: %v", name, msg.ID, ackErr)
			}
			continue
		}

		if err := m.handler.HandleEvent(ctx, event); err != nil {
			// No ack: the message stays pending and is retried.
			log.Printf("[Worker] %s message %s failed, will retry: %v", name, msg.ID, err)
			anyFailed = true
			continue
		}

		if err := m.consumer.Ack(ctx, m.stream, m.group, msg.ID); err != nil {
			log.Printf("[Worker] %s ack error for %s: %v", name, msg.ID, err)
			anyFailed = true
		}
	}
	return anyFailed
}

func (m *Manager) pause(d time.Duration) {
	select {
	case <-m.shutdown:
	case <-time.After(d):
	}
}

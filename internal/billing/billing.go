package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SeatSink receives per-seat quantity updates for a subscription.
type SeatSink interface {
	SetSeatQuantity(ctx context.Context, subscriptionID, priceID string, quantity int) error
}

// SeatUpdate is the queued quantity change consumed by the billing worker.
type SeatUpdate struct {
	SubscriptionID string    `json:"subscription_id"`
	PriceID        string    `json:"price_id"`
	Quantity       int       `json:"quantity"`
	RequestedAt    time.Time `json:"requested_at"`
}

// ── log sink ──

// LogSink records quantity updates in the log only.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) SetSeatQuantity(_ context.Context, subscriptionID, priceID string, quantity int) error {
	s.logger.Info("seat quantity update",
		zap.String("subscription_id", subscriptionID),
		zap.String("price_id", priceID),
		zap.Int("quantity", quantity),
	)
	return nil
}

// ── queue sink ──

// Enqueuer is the subset of the Redis client used to hand updates to the billing worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, queue string, payload []byte) error
}

// QueueSink pushes updates onto a Redis list for the billing worker.
type QueueSink struct {
	q     Enqueuer
	queue string
}

// NewQueueSink creates a QueueSink.
func NewQueueSink(q Enqueuer, queue string) *QueueSink {
	return &QueueSink{q: q, queue: queue}
}

func (s *QueueSink) SetSeatQuantity(ctx context.Context, subscriptionID, priceID string, quantity int) error {
	payload, err := json.Marshal(SeatUpdate{
		SubscriptionID: subscriptionID,
		PriceID:        priceID,
		Quantity:       quantity,
		RequestedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode seat update: %w", err)
	}
	return s.q.Enqueue(ctx, s.queue, payload)
}

// ── retry queue ──

// RetryQueue holds organization ids whose seat sync failed.
type RetryQueue interface {
	Add(ctx context.Context, orgID string) error
	Drain(ctx context.Context, max int) ([]string, error)
}

// SetStore is the subset of the Redis client backing RedisRetryQueue.
type SetStore interface {
	AddToSet(ctx context.Context, key string, members ...string) error
	PopFromSet(ctx context.Context, key string, n int) ([]string, error)
}

// RedisRetryQueue keeps pending org ids in a Redis set so duplicates collapse.
type RedisRetryQueue struct {
	store SetStore
	key   string
}

// NewRedisRetryQueue creates a RedisRetryQueue.
func NewRedisRetryQueue(store SetStore, key string) *RedisRetryQueue {
	return &RedisRetryQueue{store: store, key: key}
}

func (q *RedisRetryQueue) Add(ctx context.Context, orgID string) error {
	return q.store.AddToSet(ctx, q.key, orgID)
}

func (q *RedisRetryQueue) Drain(ctx context.Context, max int) ([]string, error) {
	return q.store.PopFromSet(ctx, q.key, max)
}

// MemoryRetryQueue is the in-process fallback when Redis is not configured.
type MemoryRetryQueue struct {
	mu      sync.Mutex
	pending map[string]struct{}
}

// NewMemoryRetryQueue creates a MemoryRetryQueue.
func NewMemoryRetryQueue() *MemoryRetryQueue {
	return &MemoryRetryQueue{pending: make(map[string]struct{})}
}

func (q *MemoryRetryQueue) Add(_ context.Context, orgID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[orgID] = struct{}{}
	return nil
}

func (q *MemoryRetryQueue) Drain(_ context.Context, max int) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, max)
	for id := range q.pending {
		if len(out) == max {
			break
		}
		out = append(out, id)
		delete(q.pending, id)
	}
	return out, nil
}

// Package index emits the post-commit reindex signal: a fire-and-forget
// "this bordereau changed" notification consumed by the external search
// indexer. Failures are counted and logged but never propagate back into the
// lifecycle core.
package index

import (
	"context"
	"log/slog"
	"sync"

	"wastetrack/internal/bordereau/metrics"
	"wastetrack/internal/platform/redis"
)

// RedisNotifier enqueues changed readable IDs onto a Redis list drained by
// the indexer.
type RedisNotifier struct {
	client  *redis.Client
	queue   string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a RedisNotifier.
type Option func(*RedisNotifier)

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(n *RedisNotifier) { n.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *RedisNotifier) { n.logger = l }
}

// NewRedis constructs a notifier pushing onto the given queue.
func NewRedis(client *redis.Client, queue string, opts ...Option) *RedisNotifier {
	n := &RedisNotifier{
		client: client,
		queue:  queue,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NotifyChanged enqueues one readable ID. At-least-once: the caller has
// already committed, so an enqueue failure is logged and dropped rather than
// surfaced.
func (n *RedisNotifier) NotifyChanged(ctx context.Context, readableID string) {
	if err := n.client.LPush(ctx, n.queue, readableID).Err(); err != nil {
		n.metrics.IncrementIndexNotification("dropped")
		n.logger.Error("enqueue reindex notification",
			"readable_id", readableID, "queue", n.queue, "error", err)
		return
	}
	n.metrics.IncrementIndexNotification("enqueued")
}

// Recorder is an in-memory notifier for tests: it records every readable ID
// it was called with; deduplication is left to assertions.
type Recorder struct {
	mu  sync.Mutex
	ids []string
}

// NewRecorder constructs an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) NotifyChanged(_ context.Context, readableID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, readableID)
}

// Notified returns a copy of every recorded readable ID, in call order.
func (r *Recorder) Notified() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

// Reset clears recorded notifications between test phases.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = nil
}

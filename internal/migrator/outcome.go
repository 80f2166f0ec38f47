package migrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/resilience"
)

// Outcome is the migration result of one legacy record.
type Outcome struct {
	LegacyRecID string    `json:"legacy_recid"`
	RecordType  string    `json:"rectype"`
	Provider    string    `json:"provider"`
	PID         string    `json:"pid,omitempty"`
	Action      string    `json:"action,omitempty"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// OutcomeSink receives the outcome of every processed record.
type OutcomeSink interface {
	Track(o Outcome)
}

// OutcomeCollector buffers outcomes and publishes them to Kafka in batches,
// when the buffer is full or on every flush interval.
type OutcomeCollector struct {
	publisher     kafka.Publisher
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	retry         resilience.RetryConfig
	logger        *slog.Logger
	done          chan struct{}
	flushing      sync.Mutex
}

// NewOutcomeCollector creates a collector publishing batches of up to
// batchSize outcomes, at least every flushInterval once started.
func NewOutcomeCollector(publisher kafka.Publisher, batchSize int, flushInterval time.Duration) *OutcomeCollector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &OutcomeCollector{
		publisher:     publisher,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		retry:         resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond},
		logger:        slog.Default().With("component", "outcome-collector"),
		done:          make(chan struct{}),
	}
}

// Start runs the flush loop until ctx is cancelled; a last flush happens
// on the way out.
func (oc *OutcomeCollector) Start(ctx context.Context) {
	go func() {
		defer close(oc.done)
		ticker := time.NewTicker(oc.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				oc.Flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				oc.Flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	oc.logger.Info("outcome collector started",
		"batch_size", oc.batchSize,
		"flush_interval", oc.flushInterval,
	)
}

// Track buffers an outcome keyed by record type. A full buffer is flushed
// in the background.
func (oc *OutcomeCollector) Track(o Outcome) {
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now().UTC()
	}
	oc.mu.Lock()
	oc.buffer = append(oc.buffer, kafka.Event{Key: o.RecordType, Value: o})
	shouldFlush := len(oc.buffer) >= oc.batchSize
	oc.mu.Unlock()

	if shouldFlush {
		go oc.Flush(context.Background())
	}
}

// Close waits for the flush loop started by Start to finish.
func (oc *OutcomeCollector) Close() {
	<-oc.done
}

// BufferLen returns the number of outcomes waiting to be published.
func (oc *OutcomeCollector) BufferLen() int {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return len(oc.buffer)
}

// Flush publishes the buffered outcomes, retrying with backoff. Outcomes
// that still fail go back into the buffer, capped at three batches.
func (oc *OutcomeCollector) Flush(ctx context.Context) {
	oc.flushing.Lock()
	defer oc.flushing.Unlock()

	oc.mu.Lock()
	if len(oc.buffer) == 0 {
		oc.mu.Unlock()
		return
	}
	batch := oc.buffer
	oc.buffer = make([]kafka.Event, 0, oc.batchSize)
	oc.mu.Unlock()

	err := resilience.Retry(ctx, "publish-outcomes", oc.retry, func() error {
		return oc.publisher.PublishBatch(ctx, batch)
	})
	if err != nil {
		oc.logger.Error("outcome flush failed",
			"batch_size", len(batch),
			"error", err,
		)
		oc.mu.Lock()
		oc.buffer = append(batch, oc.buffer...)
		if limit := oc.batchSize * 3; len(oc.buffer) > limit {
			dropped := len(oc.buffer) - limit
			oc.buffer = oc.buffer[dropped:]
			oc.logger.Warn("outcome buffer overflow, oldest outcomes dropped", "dropped", dropped)
		}
		oc.mu.Unlock()
		return
	}
	oc.logger.Debug("outcomes flushed", "count", len(batch))
}

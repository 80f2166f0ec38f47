package migrator

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/resilience"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	fail    int
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, event kafka.Event) error {
	return f.PublishBatch(ctx, []kafka.Event{event})
}

func (f *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail > 0 {
		f.fail--
		return f.err
	}
	f.batches = append(f.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) published() []kafka.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []kafka.Event
	for _, b := range f.batches {
		all = append(all, b...)
	}
	return all
}

func fastCollector(pub kafka.Publisher, batchSize int) *OutcomeCollector {
	oc := NewOutcomeCollector(pub, batchSize, time.Hour)
	oc.retry = resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	return oc
}

func TestOutcomeFlush(t *testing.T) {
	pub := &fakePublisher{}
	oc := fastCollector(pub, 10)

	oc.Track(Outcome{LegacyRecID: "1", RecordType: "document", Status: StatusMigrated})
	oc.Track(Outcome{LegacyRecID: "2", RecordType: "item", Status: StatusError, Error: "bad"})
	assert.Equal(t, 2, oc.BufferLen())

	oc.Flush(context.Background())
	assert.Equal(t, 0, oc.BufferLen())

	events := pub.published()
	require.Len(t, events, 2)
	assert.Equal(t, "document", events[0].Key)
	first := events[0].Value.(Outcome)
	assert.Equal(t, "1", first.LegacyRecID)
	assert.False(t, first.Timestamp.IsZero())
}

func TestOutcomeFlushWhenBatchFull(t *testing.T) {
	pub := &fakePublisher{}
	oc := fastCollector(pub, 2)

	oc.Track(Outcome{LegacyRecID: "1", RecordType: "document"})
	oc.Track(Outcome{LegacyRecID: "2", RecordType: "document"})

	assert.Eventually(t, func() bool { return len(pub.published()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestOutcomeFlushRetries(t *testing.T) {
	pub := &fakePublisher{fail: 1, err: errors.New("broker unavailable")}
	oc := fastCollector(pub, 10)

	oc.Track(Outcome{LegacyRecID: "1", RecordType: "document"})
	oc.Flush(context.Background())

	assert.Len(t, pub.published(), 1)
	assert.Equal(t, 0, oc.BufferLen())
}

func TestOutcomeFlushRequeuesAndCaps(t *testing.T) {
	pub := &fakePublisher{fail: 100, err: errors.New("broker unavailable")}
	oc := fastCollector(pub, 2)
	oc.batchSize = 2

	for i := 0; i < 8; i++ {
		oc.mu.Lock()
		oc.buffer = append(oc.buffer, kafka.Event{Key: "document", Value: Outcome{LegacyRecID: strconv.Itoa(i)}})
		oc.mu.Unlock()
	}
	oc.Flush(context.Background())

	assert.Empty(t, pub.published())
	require.Equal(t, 6, oc.BufferLen())

	oc.mu.Lock()
	defer oc.mu.Unlock()
	assert.Equal(t, "2", oc.buffer[0].Value.(Outcome).LegacyRecID)
	assert.Equal(t, "7", oc.buffer[5].Value.(Outcome).LegacyRecID)
}

func TestOutcomeCollectorStartFlushesOnStop(t *testing.T) {
	pub := &fakePublisher{}
	oc := fastCollector(pub, 100)

	ctx, cancel := context.WithCancel(context.Background())
	oc.Start(ctx)
	oc.Track(Outcome{LegacyRecID: "1", RecordType: "document"})
	cancel()
	oc.Close()

	assert.Len(t, pub.published(), 1)
}

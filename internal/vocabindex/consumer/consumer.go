// Package consumer keeps the local vocabulary index in step with the
// vocabulary update feed published on Kafka.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/kafka"
)

// VocabularyEvent announces a new or changed vocabulary entry.
type VocabularyEvent struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
	Key  string `json:"key"`
	Text string `json:"text,omitempty"`
}

func (ev VocabularyEvent) Entry() vocabulary.Entry {
	return vocabulary.Entry{ID: ev.ID, Type: ev.Type, Key: ev.Key, Text: ev.Text}
}

// EventFor builds the feed event of an entry, keyed by vocabulary type so
// that updates of one vocabulary stay ordered.
func EventFor(entry vocabulary.Entry) kafka.Event {
	return kafka.Event{
		Key: entry.Type,
		Value: VocabularyEvent{
			ID:   entry.ID,
			Type: entry.Type,
			Key:  entry.Key,
			Text: entry.Text,
		},
	}
}

// Indexer is the part of the vocabulary index the feed writes to.
type Indexer interface {
	Index(entry vocabulary.Entry) error
}

// IndexConsumer applies vocabulary events to an Indexer.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New wraps kafkaConsumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "vocab-feed-consumer"),
	}
}

// Start consumes the feed until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("vocabulary feed consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a handler indexing every vocabulary event. Events
// that cannot be decoded are logged and skipped so they do not block the
// partition.
func HandleMessage(idx Indexer) kafka.MessageHandler {
	logger := slog.Default().With("component", "vocab-feed-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[VocabularyEvent](value)
		if err != nil {
			logger.Error("failed to decode vocabulary event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if err := idx.Index(event.Entry()); err != nil {
			return fmt.Errorf("indexing vocabulary entry %s/%s: %w", event.Type, event.Key, err)
		}
		logger.Debug("vocabulary entry indexed",
			"type", event.Type,
			"key", event.Key,
		)
		return nil
	}
}

package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/resilience"
)

type outcome struct {
	LegacyID string `json:"legacy_id"`
	Status   string `json:"status"`
}

func TestEncode(t *testing.T) {
	messages, err := encode([]Event{
		{Key: "document", Value: outcome{LegacyID: "1", Status: "MIGRATED"}},
		{Key: "item", Value: map[string]int{"n": 2}},
	})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "document", string(messages[0].Key))
	assert.JSONEq(t, `{"legacy_id":"1","status":"MIGRATED"}`, string(messages[0].Value))

	_, err = encode([]Event{{Key: "bad", Value: make(chan int)}})
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[outcome]([]byte(`{"legacy_id":"7","status":"ERROR"}`))
	require.NoError(t, err)
	assert.Equal(t, outcome{LegacyID: "7", Status: "ERROR"}, got)

	_, err = DecodeJSON[outcome]([]byte(`nope`))
	assert.ErrorContains(t, err, "decoding kafka message")
}

func TestPublishBatchEncodeFailureIsPermanent(t *testing.T) {
	p := &Producer{}
	err := p.PublishBatch(context.Background(), []Event{{Key: "bad", Value: make(chan int)}})
	require.Error(t, err)
	assert.True(t, resilience.IsPermanent(err))
}

func TestPing(t *testing.T) {
	assert.ErrorContains(t, Ping(context.Background(), nil), "no kafka brokers")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.ErrorContains(t, Ping(ctx, []string{"127.0.0.1:1"}), "dialing kafka broker 127.0.0.1:1")
}

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outbreak-platform/internal/models"
)

func TestSerializeScore(t *testing.T) {
	computedAt := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	score := &models.RiskScore{
		LocationID: "loc_berlin",
		Score:      72.5,
		Confidence: 0.85,
		Trend:      models.TrendRising,
		ComputedAt: computedAt,
	}

	msg, err := serializeScore(score)
	require.NoError(t, err)

	assert.Equal(t, "loc_berlin", string(msg.Key), "messages are keyed by location")

	var event ScoreEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, EventTypeScorePublished, event.EventType)
	assert.Equal(t, "loc_berlin", event.LocationID)
	assert.Equal(t, 72.5, event.RiskScore)
	assert.Equal(t, "rising", event.Trend)
	assert.Equal(t, 0.85, event.Confidence)
	assert.True(t, event.ComputedAt.Equal(computedAt))
	assert.NotEmpty(t, event.EventID)

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, EventTypeScorePublished, string(msg.Headers[0].Value))
}

func TestPublisher_NilIsNoOp(t *testing.T) {
	var p *Publisher
	ctx := context.Background()

	assert.NoError(t, p.PublishScores(ctx, []*models.RiskScore{{LocationID: "loc_a"}}))
	assert.NoError(t, p.PublishEpochCompleted(ctx, 3, 1, time.Second))
	assert.NoError(t, p.Close())
}

func TestPublishScores_EmptyBatchIsNoOp(t *testing.T) {
	// A publisher with no writer would panic if an empty batch reached
	// WriteMessages.
	p := &Publisher{}
	assert.NoError(t, p.PublishScores(context.Background(), nil))
}

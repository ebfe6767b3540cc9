package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"outbreak-platform/internal/models"
	"outbreak-platform/pkg/logging"
)

const (
	EventTypeScorePublished = "risk_score_published"
	EventTypeEpochCompleted = "scoring_epoch_completed"
)

// ScoreEvent is the wire payload for one published risk score.
type ScoreEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	LocationID string    `json:"location_id"`
	RiskScore  float64   `json:"risk_score"`
	Trend      string    `json:"trend"`
	Confidence float64   `json:"confidence"`
	ComputedAt time.Time `json:"computed_at"`
}

// EpochEvent is the wire payload marking one completed scoring epoch.
type EpochEvent struct {
	EventID         string    `json:"event_id"`
	EventType       string    `json:"event_type"`
	LocationsScored int       `json:"locations_scored"`
	LocationsFailed int       `json:"locations_failed"`
	DurationMS      int64     `json:"duration_ms"`
	CompletedAt     time.Time `json:"completed_at"`
}

// Publisher produces risk events to a Kafka topic. A nil *Publisher is
// valid and publishes nothing, so callers need no enabled/disabled
// branching.
type Publisher struct {
	writer *kafkago.Writer
	logger *logging.StructuredLogger
}

// NewPublisher creates a Kafka producer for the risk events topic.
func NewPublisher(brokers []string, topic string, logger *logging.StructuredLogger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishScores serializes and publishes one epoch's scores in a single
// WriteMessages call. Messages are keyed by location so per-location
// ordering survives partitioning.
func (p *Publisher) PublishScores(ctx context.Context, scores []*models.RiskScore) error {
	if p == nil || len(scores) == 0 {
		return nil
	}

	msgs := make([]kafkago.Message, len(scores))
	for i, score := range scores {
		msg, err := serializeScore(score)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish score events: %w", err)
	}

	p.logger.Debug(ctx, "[EVENTS_PUBLISHED] Score events published", logging.Fields{
		"count": len(scores),
	})

	return nil
}

// PublishEpochCompleted publishes the marker event downstream consumers
// use to detect a fresh, fully-published epoch.
func (p *Publisher) PublishEpochCompleted(ctx context.Context, scored, failed int, duration time.Duration) error {
	if p == nil {
		return nil
	}

	event := EpochEvent{
		EventID:         uuid.NewString(),
		EventType:       EventTypeEpochCompleted,
		LocationsScored: scored,
		LocationsFailed: failed,
		DurationMS:      duration.Milliseconds(),
		CompletedAt:     time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serialize epoch event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.EventID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "completed_at", Value: []byte(event.CompletedAt.Format(time.RFC3339))},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish epoch event: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}

// serializeScore marshals a risk score into a Kafka message.
func serializeScore(score *models.RiskScore) (kafkago.Message, error) {
	event := ScoreEvent{
		EventID:    uuid.NewString(),
		EventType:  EventTypeScorePublished,
		LocationID: score.LocationID,
		RiskScore:  score.Score,
		Trend:      string(score.Trend),
		Confidence: score.Confidence,
		ComputedAt: score.ComputedAt,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize score event: %w", err)
	}

	return kafkago.Message{
		Key:   []byte(event.LocationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "computed_at", Value: []byte(event.ComputedAt.Format(time.RFC3339))},
		},
	}, nil
}

// Package kafka publishes recommended hazard events to a staging topic for
// downstream product formatters. The engine itself never transmits; callers
// decide whether a run's output is published.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/river-flood-recommender/internal/config"
	"github.com/couchcryptid/river-flood-recommender/internal/domain"
)

// Writer produces hazard events to the configured Kafka topic.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the hazard staging topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishHazards serializes and publishes a run's recommended hazards in a
// single WriteMessages call. An empty run publishes nothing.
func (w *Writer) PublishHazards(ctx context.Context, hazards []domain.HazardEvent) error {
	if len(hazards) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(hazards))
	for i := range hazards {
		msg, err := serializeToMessage(hazards[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish hazards: %w", err)
	}
	w.logger.Info("published recommended hazards", "count", len(hazards))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a HazardEvent into a Kafka message keyed by the
// forecast point so per-point ordering is preserved.
func serializeToMessage(hazard domain.HazardEvent) (kafkago.Message, error) {
	data, err := json.Marshal(hazard)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize hazard event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(hazard.Attributes.PointID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "phenomenon", Value: []byte(hazard.Phenomenon)},
			{Key: "significance", Value: []byte(hazard.Significance)},
			{Key: "created_at", Value: []byte(hazard.CreationTime.UTC().Format(time.RFC3339))},
		},
	}, nil
}

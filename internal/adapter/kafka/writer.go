package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/city-data-etl/internal/domain"
	"github.com/couchcryptid/city-data-etl/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

const sinkName = "kafka"

// messageWriter is the subset of *kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes city rows to a Kafka topic, one message per city.
type Writer struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWriter creates a Kafka producer for the given brokers and topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger, metrics: metrics}
}

func (w *Writer) Name() string { return sinkName }

// Emit serializes and publishes all cities in a single WriteMessages call.
func (w *Writer) Emit(ctx context.Context, cities []domain.CityRecord) error {
	if len(cities) == 0 {
		return nil
	}
	runID := domain.RunIDFrom(ctx)
	emittedAt := domain.Now()
	msgs := make([]kafkago.Message, len(cities))
	for i := range cities {
		msg, err := serializeToMessage(cities[i], runID, emittedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		w.metrics.SinkRows.WithLabelValues(sinkName, "failed").Add(float64(len(msgs)))
		return fmt.Errorf("publish city records: %w", err)
	}
	w.metrics.SinkRows.WithLabelValues(sinkName, "written").Add(float64(len(msgs)))
	w.logger.Info("city records published", "count", len(msgs), "run_id", runID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a city into a Kafka message keyed by city name.
func serializeToMessage(rec domain.CityRecord, runID string, emittedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(domain.ToRow(rec))
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize city record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Name),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "emitted_at", Value: []byte(emittedAt.Format(time.RFC3339))},
		},
	}, nil
}

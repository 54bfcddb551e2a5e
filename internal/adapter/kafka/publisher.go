package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/air-quality-etl/internal/config"
	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// Record types carried in the record_type header.
const (
	RecordReading = "aqi_reading"
	RecordHotspot = "fire_hotspot"
	RecordWeather = "weather_snapshot"
)

// Publisher produces committed canonical records to a Kafka topic.
// It implements pipeline.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishReadings publishes readings keyed by station, so one station's readings stay ordered.
func (p *Publisher) PublishReadings(ctx context.Context, runID string, readings []domain.Reading) error {
	msgs, err := buildMessages(runID, RecordReading, readings, func(r domain.Reading) (string, string) {
		return r.StationExternalID, r.Source
	})
	if err != nil {
		return err
	}
	return p.write(ctx, msgs)
}

// PublishHotspots publishes fire points keyed by detection time and position.
func (p *Publisher) PublishHotspots(ctx context.Context, runID string, points []domain.FirePoint) error {
	msgs, err := buildMessages(runID, RecordHotspot, points, func(f domain.FirePoint) (string, string) {
		return hotspotKey(f), domain.SourceFIRMS
	})
	if err != nil {
		return err
	}
	return p.write(ctx, msgs)
}

// PublishWeather publishes weather snapshots keyed by observation time.
func (p *Publisher) PublishWeather(ctx context.Context, runID string, snapshots []domain.WeatherSnapshot) error {
	msgs, err := buildMessages(runID, RecordWeather, snapshots, func(w domain.WeatherSnapshot) (string, string) {
		return w.ObservedAt.UTC().Format(time.RFC3339), w.Source
	})
	if err != nil {
		return err
	}
	return p.write(ctx, msgs)
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) write(ctx context.Context, msgs []kafkago.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish to %s: %w", p.writer.Topic, err)
	}
	p.logger.Debug("published records", "topic", p.writer.Topic, "count", len(msgs))
	return nil
}

// buildMessages marshals each record into a message with key, record type, source and run id.
func buildMessages[T any](runID, recordType string, records []T, describe func(T) (key, source string)) ([]kafkago.Message, error) {
	msgs := make([]kafkago.Message, 0, len(records))
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("serialize %s: %w", recordType, err)
		}
		key, source := describe(rec)
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(key),
			Value: data,
			Headers: []kafkago.Header{
				{Key: "record_type", Value: []byte(recordType)},
				{Key: "source", Value: []byte(source)},
				{Key: "run_id", Value: []byte(runID)},
			},
		})
	}
	return msgs, nil
}

func hotspotKey(f domain.FirePoint) string {
	return f.DetectedAt.UTC().Format(time.RFC3339) + ":" +
		strconv.FormatFloat(f.Latitude, 'f', -1, 64) + ":" +
		strconv.FormatFloat(f.Longitude, 'f', -1, 64)
}

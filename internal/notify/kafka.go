// Package notify publishes newly recorded findings to the message bus.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/helioscope/solar-anomaly/internal/metrics"
	"github.com/helioscope/solar-anomaly/internal/models"
)

// EventFindingDetected is the event name carried by every published envelope.
const EventFindingDetected = "finding.detected"

// SchemaVersion versions the envelope layout.
const SchemaVersion = "v1"

// Envelope is the JSON value written for each finding.
type Envelope struct {
	Event         string         `json:"event"`
	SchemaVersion string         `json:"schemaVersion"`
	PublishedAt   time.Time      `json:"publishedAt"`
	Finding       models.Finding `json:"finding"`
}

// Config holds the Kafka writer settings.
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes findings keyed by unit ID so a unit's events stay
// ordered within one partition.
type KafkaPublisher struct {
	logger  *slog.Logger
	writer  messageWriter
	timeout time.Duration
	now     func() time.Time
}

// NewKafkaPublisher builds a publisher backed by a kafka-go Writer.
func NewKafkaPublisher(logger *slog.Logger, cfg Config) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("notify: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("notify: topic is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
	}
	return newPublisher(logger, w, cfg.WriteTimeout), nil
}

func newPublisher(logger *slog.Logger, w messageWriter, timeout time.Duration) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KafkaPublisher{
		logger:  logger.With("component", "notify"),
		writer:  w,
		timeout: timeout,
		now:     time.Now,
	}
}

// Publish writes one finding envelope.
func (p *KafkaPublisher) Publish(ctx context.Context, finding models.Finding) error {
	value, err := json.Marshal(Envelope{
		Event:         EventFindingDetected,
		SchemaVersion: SchemaVersion,
		PublishedAt:   p.now().UTC(),
		Finding:       finding,
	})
	if err != nil {
		metrics.IncFindingPublished(metrics.OutcomeError)
		return fmt.Errorf("encode finding %s: %w", finding.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	msg := kafka.Message{
		Key:   []byte(finding.UnitID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(EventFindingDetected)},
			{Key: "finding_type", Value: []byte(finding.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.IncFindingPublished(metrics.OutcomeError)
		return fmt.Errorf("publish finding %s: %w", finding.ID, err)
	}
	metrics.IncFindingPublished(metrics.OutcomeSuccess)
	p.logger.Debug("finding published", slog.String("finding_id", finding.ID), slog.String("unit_id", finding.UnitID))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

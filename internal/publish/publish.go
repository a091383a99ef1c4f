// Package publish hands completed evaluation runs to downstream consumers.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agentoven/console/internal/config"
	"github.com/agentoven/console/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const writeTimeout = 10 * time.Second

// RunPublisher receives every completed evaluation run.
type RunPublisher interface {
	PublishRun(ctx context.Context, run models.EvaluationRun) error
	Close() error
}

// Nop discards runs.
type Nop struct{}

func (Nop) PublishRun(context.Context, models.EvaluationRun) error { return nil }
func (Nop) Close() error                                          { return nil }

// Fanout sends every run to each publisher in turn and joins their errors.
type Fanout []RunPublisher

func (f Fanout) PublishRun(ctx context.Context, run models.EvaluationRun) error {
	var errs []error
	for _, p := range f {
		errs = append(errs, p.PublishRun(ctx, run))
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes runs as JSON to a Kafka topic, keyed by agent id so
// one agent's runs stay ordered within a partition.
type KafkaPublisher struct {
	w     messageWriter
	topic string
}

// New returns a KafkaPublisher when brokers are configured and Nop
// otherwise.
func New(cfg config.KafkaConfig) RunPublisher {
	if len(cfg.Brokers) == 0 {
		log.Info().Msg("🔕 Run publishing disabled")
		return Nop{}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("📨 Publishing evaluation runs to Kafka")
	return &KafkaPublisher{w: w, topic: cfg.Topic}
}

// PublishRun writes one run.
func (p *KafkaPublisher) PublishRun(ctx context.Context, run models.EvaluationRun) error {
	value, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(run.AgentID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "suite_id", Value: []byte(run.SuiteID)},
			{Key: "run_id", Value: []byte(run.ID)},
		},
		Time: run.Timestamp,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish run %s to %s: %w", run.ID, p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// GenerationEvent is a lifecycle event for a soundscape generation.
type GenerationEvent struct {
	GenerationID uuid.UUID `json:"generation_id"`
	Event        string    `json:"event"` // generation_started, generation_completed, generation_failed
	Provider     string    `json:"provider,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Producer wraps a Kafka producer
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		Async:                  false,
	}

	log.Info().
		Strs("brokers", brokers).
		Str("topic", topic).
		Msg("Kafka producer initialized")

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishGenerationEvent publishes a generation lifecycle event.
func (p *Producer) PublishGenerationEvent(ctx context.Context, ev GenerationEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal generation event: %w", err)
	}

	kafkaMsg := kafka.Message{
		Key:   []byte(ev.GenerationID.String()),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, kafkaMsg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	log.Debug().
		Str("generation_id", ev.GenerationID.String()).
		Str("event", ev.Event).
		Str("topic", p.topic).
		Msg("Generation event published to Kafka")

	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	log.Info().Msg("Closing Kafka producer")
	return p.writer.Close()
}

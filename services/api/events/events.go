// Package events announces accepted documents to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Accepted is published once per stored document.
type Accepted struct {
	ID         string    `json:"id"`
	Root       string    `json:"root"`
	Sensors    int       `json:"sensors"`
	Readings   int       `json:"readings"`
	Bytes      int       `json:"bytes"`
	AcceptedAt time.Time `json:"acceptedAt"`
}

// Publisher sends acceptance events.
type Publisher interface {
	PublishAccepted(ctx context.Context, ev Accepted) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishAccepted(context.Context, Accepted) error { return nil }
func (NopPublisher) Close() error                                   { return nil }

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON keyed by document id.
type KafkaPublisher struct {
	w messageWriter
}

// NewKafkaPublisher creates a writer for topic on the given brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher: no brokers")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka publisher: topic is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{w: w}, nil
}

// PublishAccepted writes one message.
func (p *KafkaPublisher) PublishAccepted(ctx context.Context, ev Accepted) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{Key: []byte(ev.ID), Value: b, Time: ev.AcceptedAt}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish accepted %s: %w", ev.ID, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

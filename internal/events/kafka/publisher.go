package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	interfaces "github.com/sheikh-saqib/peer-transfer-ledger/internal/interfaces"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
	topic  string
}

type Option func(*Publisher)

// WithTopic sends every event to topic instead of the one the caller names.
func WithTopic(topic string) Option {
	return func(p *Publisher) { p.topic = topic }
}

// NewPublisher writes to brokers. The topic is chosen per message unless
// WithTopic is given.
func NewPublisher(brokers []string, opts ...Option) *Publisher {
	return newPublisherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}, opts...)
}

func newPublisherWithWriter(w messageWriter, opts ...Option) *Publisher {
	p := &Publisher{writer: w}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish JSON-encodes event and writes it to topic, keyed so that every
// event for the same key lands on the same partition.
func (p *Publisher) Publish(ctx context.Context, topic string, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if p.topic != "" {
		topic = p.topic
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now().UTC(),
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ interfaces.EventPublisher = (*Publisher)(nil)

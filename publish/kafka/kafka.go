// Package kafka publishes committed cartflow events to a Kafka topic
// using github.com/segmentio/kafka-go.
//
// Messages are keyed by stream ID so every event of one cart lands on the
// same partition in revision order.
package kafka

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/eventdriven/cartflow"
)

// Header keys set on every published message.
const (
	HeaderEventID       = "event-id"
	HeaderEventType     = "event-type"
	HeaderRevision      = "revision"
	HeaderCorrelationID = "correlation-id"
	HeaderCausationID   = "causation-id"
)

// Writer is the subset of *kafkago.Writer used by the publisher.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes committed events to a single Kafka topic.
type Publisher struct {
	brokers      []string
	topic        string
	balancer     kafkago.Balancer
	batchTimeout time.Duration

	once   sync.Once
	writer Writer
}

var _ cartflow.Publisher = (*Publisher)(nil)

// Option configures a Kafka Publisher.
type Option func(*Publisher)

// WithBrokers sets the Kafka broker addresses.
func WithBrokers(brokers ...string) Option {
	return func(p *Publisher) {
		p.brokers = brokers
	}
}

// WithTopic sets the destination topic.
func WithTopic(topic string) Option {
	return func(p *Publisher) {
		p.topic = topic
	}
}

// WithBalancer sets the message balancer (partitioner).
func WithBalancer(balancer kafkago.Balancer) Option {
	return func(p *Publisher) {
		p.balancer = balancer
	}
}

// WithBatchTimeout sets the batch timeout for the writer.
func WithBatchTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		p.batchTimeout = d
	}
}

// WithWriter replaces the kafka-go writer, mostly for tests.
func WithWriter(w Writer) Option {
	return func(p *Publisher) {
		p.writer = w
	}
}

// New creates a new Kafka Publisher. The writer is created lazily on the
// first publish.
func New(opts ...Option) *Publisher {
	p := &Publisher{
		brokers:      []string{"localhost:9092"},
		topic:        "shopping-carts",
		balancer:     &kafkago.Hash{},
		batchTimeout: 10 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Topic returns the destination topic.
func (p *Publisher) Topic() string {
	return p.topic
}

// Publish writes messages to the topic in one batch.
func (p *Publisher) Publish(ctx context.Context, messages []cartflow.Message) error {
	if len(messages) == 0 {
		return nil
	}
	if p.topic == "" {
		return fmt.Errorf("kafka: topic not configured")
	}

	batch := make([]kafkago.Message, len(messages))
	for i, msg := range messages {
		batch[i] = toKafkaMessage(msg)
	}

	if err := p.getWriter().WriteMessages(ctx, batch...); err != nil {
		return fmt.Errorf("kafka: failed to write to topic %s: %w", p.topic, err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func (p *Publisher) getWriter() Writer {
	p.once.Do(func() {
		if p.writer != nil {
			return
		}
		p.writer = &kafkago.Writer{
			Addr:                   kafkago.TCP(p.brokers...),
			Topic:                  p.topic,
			Balancer:               p.balancer,
			BatchTimeout:           p.batchTimeout,
			RequiredAcks:           kafkago.RequireAll,
			AllowAutoTopicCreation: true,
		}
	})
	return p.writer
}

func toKafkaMessage(msg cartflow.Message) kafkago.Message {
	headers := []kafkago.Header{
		{Key: HeaderEventID, Value: []byte(msg.EventID)},
		{Key: HeaderEventType, Value: []byte(msg.EventType)},
		{Key: HeaderRevision, Value: []byte(strconv.FormatInt(msg.Revision, 10))},
	}
	if msg.Metadata.CorrelationID != "" {
		headers = append(headers, kafkago.Header{Key: HeaderCorrelationID, Value: []byte(msg.Metadata.CorrelationID)})
	}
	if msg.Metadata.CausationID != "" {
		headers = append(headers, kafkago.Header{Key: HeaderCausationID, Value: []byte(msg.Metadata.CausationID)})
	}

	return kafkago.Message{
		Key:     []byte(msg.StreamID),
		Value:   msg.Payload,
		Headers: headers,
		Time:    msg.Timestamp,
	}
}

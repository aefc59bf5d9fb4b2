// Package sns publishes committed cartflow events to an AWS SNS topic.
package sns

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/eventdriven/cartflow"
)

// Client defines the subset of the SNS API used by the publisher.
type Client interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher sends each committed event as one SNS message.
// For FIFO topics the stream ID is the message group, which keeps a
// cart's events ordered, and the event ID is the deduplication ID.
type Publisher struct {
	client   Client
	topicARN string
	fifo     bool
}

var _ cartflow.Publisher = (*Publisher)(nil)

// Option configures an SNS Publisher.
type Option func(*Publisher)

// WithClient sets the SNS client.
func WithClient(client Client) Option {
	return func(p *Publisher) {
		p.client = client
	}
}

// WithTopicARN sets the destination topic.
func WithTopicARN(arn string) Option {
	return func(p *Publisher) {
		p.topicARN = arn
	}
}

// WithFIFO sets message group and deduplication IDs on every message.
func WithFIFO() Option {
	return func(p *Publisher) {
		p.fifo = true
	}
}

// New creates a new SNS Publisher.
func New(opts ...Option) *Publisher {
	p := &Publisher{}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Publish sends messages in order. Every message is attempted; failures
// are joined.
func (p *Publisher) Publish(ctx context.Context, messages []cartflow.Message) error {
	if p.client == nil {
		return fmt.Errorf("sns: client not configured")
	}
	if p.topicARN == "" {
		return fmt.Errorf("sns: topic ARN not configured")
	}

	var errs []error
	for _, msg := range messages {
		if _, err := p.client.Publish(ctx, p.input(msg)); err != nil {
			errs = append(errs, fmt.Errorf("sns: failed to publish event %s to %s: %w", msg.EventID, p.topicARN, err))
		}
	}

	return errors.Join(errs...)
}

func (p *Publisher) input(msg cartflow.Message) *sns.PublishInput {
	input := &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(msg.Payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event-type": stringAttribute(msg.EventType),
			"stream-id":  stringAttribute(msg.StreamID),
			"revision": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.FormatInt(msg.Revision, 10)),
			},
		},
	}

	if msg.Metadata.CorrelationID != "" {
		input.MessageAttributes["correlation-id"] = stringAttribute(msg.Metadata.CorrelationID)
	}

	if p.fifo {
		input.MessageGroupId = aws.String(msg.StreamID)
		input.MessageDeduplicationId = aws.String(msg.EventID)
	}

	return input
}

func stringAttribute(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(v),
	}
}

package sns

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventdriven/cartflow"
)

const topic = "arn:aws:sns:us-east-1:123456789:carts"

// mockClient implements Client for testing.
type mockClient struct {
	calls []*sns.PublishInput
	err   error
}

func (m *mockClient) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.calls = append(m.calls, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-123")}, nil
}

func TestPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	mock := &mockClient{}
	p := New(WithClient(mock), WithTopicARN(topic))

	err := p.Publish(ctx, []cartflow.Message{
		{
			EventID: "e-1", StreamID: "shopping_cart-1", EventType: "ShoppingCartOpened",
			Revision: 0, Payload: []byte(`{"clientId":"c"}`),
			Metadata: cartflow.Metadata{CorrelationID: "corr-1"},
		},
		{EventID: "e-2", StreamID: "shopping_cart-1", EventType: "ShoppingCartConfirmed", Revision: 1, Payload: []byte(`{}`)},
	})
	require.NoError(t, err)
	require.Len(t, mock.calls, 2)

	call := mock.calls[0]
	assert.Equal(t, topic, aws.ToString(call.TopicArn))
	assert.Equal(t, `{"clientId":"c"}`, aws.ToString(call.Message))
	assert.Equal(t, "ShoppingCartOpened", aws.ToString(call.MessageAttributes["event-type"].StringValue))
	assert.Equal(t, "corr-1", aws.ToString(call.MessageAttributes["correlation-id"].StringValue))
	assert.Equal(t, "Number", aws.ToString(call.MessageAttributes["revision"].DataType))
	assert.Nil(t, call.MessageGroupId)

	assert.Equal(t, "1", aws.ToString(mock.calls[1].MessageAttributes["revision"].StringValue))
	assert.NotContains(t, mock.calls[1].MessageAttributes, "correlation-id")
}

func TestPublisher_Publish_FIFO(t *testing.T) {
	mock := &mockClient{}
	p := New(WithClient(mock), WithTopicARN(topic+".fifo"), WithFIFO())

	err := p.Publish(context.Background(), []cartflow.Message{{EventID: "e-1", StreamID: "shopping_cart-1"}})
	require.NoError(t, err)
	assert.Equal(t, "shopping_cart-1", aws.ToString(mock.calls[0].MessageGroupId))
	assert.Equal(t, "e-1", aws.ToString(mock.calls[0].MessageDeduplicationId))
}

func TestPublisher_Publish_Misconfigured(t *testing.T) {
	ctx := context.Background()
	msgs := []cartflow.Message{{EventID: "e-1"}}

	err := New(WithTopicARN(topic)).Publish(ctx, msgs)
	assert.ErrorContains(t, err, "client not configured")

	err = New(WithClient(&mockClient{})).Publish(ctx, msgs)
	assert.ErrorContains(t, err, "topic ARN not configured")
}

func TestPublisher_Publish_AttemptsEveryMessage(t *testing.T) {
	throttled := errors.New("throttled")
	mock := &mockClient{err: throttled}
	p := New(WithClient(mock), WithTopicARN(topic))

	err := p.Publish(context.Background(), []cartflow.Message{{EventID: "e-1"}, {EventID: "e-2"}})

	assert.ErrorIs(t, err, throttled)
	assert.Contains(t, err.Error(), "event e-2")
	assert.Len(t, mock.calls, 2)
}

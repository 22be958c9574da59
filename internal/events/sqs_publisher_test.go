package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (s *stubSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	s.input = params
	if s.err != nil {
		return nil, s.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSQSPublisherSendsEnvelope(t *testing.T) {
	client := &stubSQS{}
	pub := newSQSPublisher(client, "https://sqs.local/queue")

	entry := OutboxEntry{
		ID:          uuid.New(),
		Type:        TypeAppointmentCancelled,
		AggregateID: "42",
		Payload:     json.RawMessage(`{"appointment_id":42,"status":"cancelled"}`),
		CreatedAt:   time.Date(2024, time.March, 10, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, pub.Handle(context.Background(), entry))

	require.NotNil(t, client.input)
	assert.Equal(t, "https://sqs.local/queue", aws.ToString(client.input.QueueUrl))
	assert.Equal(t, TypeAppointmentCancelled, aws.ToString(client.input.MessageAttributes["event_type"].StringValue))

	var decoded OutboxEntry
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(client.input.MessageBody)), &decoded))
	assert.Equal(t, entry.ID, decoded.ID)
	assert.Equal(t, "42", decoded.AggregateID)
	assert.JSONEq(t, string(entry.Payload), string(decoded.Payload))
}

func TestSQSPublisherWrapsErrors(t *testing.T) {
	boom := errors.New("throttled")
	pub := newSQSPublisher(&stubSQS{err: boom}, "https://sqs.local/queue")
	err := pub.Handle(context.Background(), OutboxEntry{ID: uuid.New(), Type: TypeAppointmentScheduled})
	assert.ErrorIs(t, err, boom)
}

func TestNewSQSPublisherRequiresQueue(t *testing.T) {
	assert.Panics(t, func() { newSQSPublisher(&stubSQS{}, "") })
}

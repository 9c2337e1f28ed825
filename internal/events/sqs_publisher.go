package events

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type sqsSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher delivers outbox entries to an SQS queue. The event type and id
// travel as message attributes so consumers can route without decoding.
type SQSPublisher struct {
	client   sqsSender
	queueURL string
}

// NewSQSPublisher wraps the SQS client for the booking events queue.
func NewSQSPublisher(client *sqs.Client, queueURL string) *SQSPublisher {
	if client == nil {
		panic("events: SQS client cannot be nil")
	}
	return newSQSPublisher(client, queueURL)
}

func newSQSPublisher(client sqsSender, queueURL string) *SQSPublisher {
	if queueURL == "" {
		panic("events: SQS queueURL cannot be empty")
	}
	return &SQSPublisher{client: client, queueURL: queueURL}
}

func (p *SQSPublisher) Handle(ctx context.Context, entry OutboxEntry) error {
	_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(entry.Payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(entry.Type)},
			"event_id":   {DataType: aws.String("String"), StringValue: aws.String(entry.ID.String())},
			"aggregate":  {DataType: aws.String("String"), StringValue: aws.String(entry.AggregateID)},
		},
	})
	if err != nil {
		return fmt.Errorf("events: failed to send SQS message: %w", err)
	}
	return nil
}

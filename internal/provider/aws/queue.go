package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/yairfalse/ferry/internal/retry"
)

// EnsureQueue creates the queue if needed and returns its URL.
// CreateQueue is idempotent for an existing queue with the same attributes.
func (p *Provider) EnsureQueue(ctx context.Context, name string) (string, error) {
	output, err := retry.Do(ctx, p.retry, "create queue", func(ctx context.Context) (*sqs.CreateQueueOutput, error) {
		return p.sqsClient.CreateQueue(ctx, &sqs.CreateQueueInput{QueueName: aws.String(name)})
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(output.QueueUrl), nil
}

// LookupQueue returns the URL of an existing queue.
func (p *Provider) LookupQueue(ctx context.Context, name string) (string, error) {
	output, err := retry.Do(ctx, p.retry, "get queue url", func(ctx context.Context) (*sqs.GetQueueUrlOutput, error) {
		return p.sqsClient.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(output.QueueUrl), nil
}

// SendMessage sends a plain text message and returns its message ID.
func (p *Provider) SendMessage(ctx context.Context, queueURL, body string) (string, error) {
	output, err := retry.Do(ctx, p.retry, "send message", func(ctx context.Context) (*sqs.SendMessageOutput, error) {
		return p.sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(queueURL),
			MessageBody: aws.String(body),
		})
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(output.MessageId), nil
}

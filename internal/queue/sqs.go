package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSAPI is the subset of the SQS client the queue uses; a seam for tests.
type SQSAPI interface {
	SendMessage(ctx context.Context, input *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, input *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, input *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue is a Queue over an SQS queue, for deployments running the
// embedding worker out of process.
type SQSQueue struct {
	client   SQSAPI
	queueURL string
}

// NewSQSQueue builds the SQS client from the default AWS config chain.
func NewSQSQueue(ctx context.Context, queueURL string) (*SQSQueue, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SQSQueue{client: sqs.NewFromConfig(cfg), queueURL: queueURL}, nil
}

// NewSQSQueueWithAPI injects a custom SQSAPI. Test seam.
func NewSQSQueueWithAPI(api SQSAPI, queueURL string) *SQSQueue {
	return &SQSQueue{client: api, queueURL: queueURL}
}

func (q *SQSQueue) Enqueue(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Dequeue long-polls for one message and deletes it on receipt. A job that
// fails downstream is not redelivered; the memory row's FAILED status is
// the durable record.
func (q *SQSQueue) Dequeue(ctx context.Context) (Job, bool, error) {
	for {
		resp, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(q.queueURL),
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, false, ctx.Err()
			}
			return Job{}, false, fmt.Errorf("failed to receive job: %w", err)
		}
		if len(resp.Messages) == 0 {
			if ctx.Err() != nil {
				return Job{}, false, ctx.Err()
			}
			continue
		}

		msg := resp.Messages[0]
		var job Job
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &job); err != nil {
			return Job{}, false, fmt.Errorf("failed to unmarshal job: %w", err)
		}
		if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(q.queueURL),
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			return Job{}, false, fmt.Errorf("failed to delete job message: %w", err)
		}
		return job, true, nil
	}
}

func (q *SQSQueue) Close() error { return nil }

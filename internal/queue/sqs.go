package queue

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// sqsMaxDelay is the hard ceiling SQS places on a single message's
// DelaySeconds attribute.
const sqsMaxDelay = 900 * time.Second

// SQSAPI is the subset of *sqs.Client the queue adapter needs, so tests can
// substitute a fake without standing up a real queue.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// sqsQueue is the production Queue implementation, one SQS standard queue
// per Name.
type sqsQueue struct {
	client    SQSAPI
	queueURLs map[Name]string
}

func newSQSQueue(client SQSAPI, queueURLs map[Name]string) *sqsQueue {
	return &sqsQueue{client: client, queueURLs: queueURLs}
}

func (q *sqsQueue) Enqueue(ctx context.Context, queue Name, job Job) error {
	return q.EnqueueAfter(ctx, queue, job, 0)
}

// EnqueueAfter sends job with SQS's DelaySeconds. A delay above SQS's 900s
// ceiling is capped at 900s, so such a job becomes deliverable after 900s;
// no remaining delay is carried over to a later send.
func (q *sqsQueue) EnqueueAfter(ctx context.Context, queue Name, job Job, delay time.Duration) error {
	url := q.queueURLs[queue]
	delaySeconds := int32(delay / time.Second)
	if delay > sqsMaxDelay {
		delaySeconds = int32(sqsMaxDelay / time.Second)
	}
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:     &url,
		MessageBody:  &job.PayloadJSON,
		DelaySeconds: delaySeconds,
	})
	return err
}

func (q *sqsQueue) Dequeue(ctx context.Context, queue Name) (Job, bool, error) {
	url := q.queueURLs[queue]
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &url,
		MaxNumberOfMessages:  1,
		WaitTimeSeconds:      0,
		MessageAttributeNames: []string{string(types.QueueAttributeNameAll)},
	})
	if err != nil {
		return Job{}, false, err
	}
	if len(out.Messages) == 0 {
		return Job{}, false, nil
	}
	msg := out.Messages[0]
	if msg.ReceiptHandle != nil {
		_, _ = q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      &url,
			ReceiptHandle: msg.ReceiptHandle,
		})
	}
	body := ""
	if msg.Body != nil {
		body = *msg.Body
	}
	return Job{PayloadJSON: body}, true, nil
}

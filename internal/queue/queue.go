// Package queue is the shared queue adapter (spec.md §2 "Shared
// infrastructure"). It backs the deploy/verify/repair/sdlc job queues and
// the Coordinator's re-enqueue-with-delay wait pattern (spec.md §9).
package queue

import (
	"context"
	"time"
)

// Name identifies one of the four queues spec.md §2's data-flow names.
type Name string

const (
	Deploy Name = "deploy"
	Verify Name = "verify"
	Repair Name = "repair"
	SDLC   Name = "sdlc"
)

// Job is one opaque unit of work on a queue. PayloadJSON matches the job
// descriptions in spec.md §4 for the queue's Name.
type Job struct {
	PayloadJSON string
}

// Queue is the minimal interface every worker/coordinator depends on.
// Implementations: sqsQueue (production) and memoryQueue (local/dev, tests).
type Queue interface {
	// Enqueue places job on the named queue for immediate delivery.
	Enqueue(ctx context.Context, queue Name, job Job) error
	// EnqueueAfter places job on the named queue, deliverable no earlier
	// than delay from now. This is the mechanism behind spec.md §9's
	// "re-enqueue-with-delay" preference for modeling long-running waits
	// without a process that must survive the wait.
	EnqueueAfter(ctx context.Context, queue Name, job Job, delay time.Duration) error
	// Dequeue pops at most one ready job from the named queue. ok is false
	// if the queue has no ready job right now (not an error).
	Dequeue(ctx context.Context, queue Name) (job Job, ok bool, err error)
}

// New builds the Queue implementation named by backend ("sqs" or "memory"),
// matching the QUEUE_BACKEND configuration in SPEC_FULL.md §6.
func New(backend string, sqsClient SQSAPI, queueURLs map[Name]string) Queue {
	if backend == "sqs" {
		return newSQSQueue(sqsClient, queueURLs)
	}
	return newMemoryQueue()
}

package queue

import (
	"context"
	"sync"
	"time"
)

// memoryQueue is the local/dev and test-time Queue implementation: no
// external broker, just a per-queue slice of delayed jobs. Production traffic
// uses sqsQueue; this exists so the control plane runs out of the box
// without an AWS account, matching QUEUE_BACKEND's documented default.
type memoryQueue struct {
	mu    sync.Mutex
	items map[Name][]memoryItem
}

type memoryItem struct {
	job         Job
	availableAt time.Time
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{items: make(map[Name][]memoryItem)}
}

func (q *memoryQueue) Enqueue(_ context.Context, queue Name, job Job) error {
	return q.EnqueueAfter(context.Background(), queue, job, 0)
}

func (q *memoryQueue) EnqueueAfter(_ context.Context, queue Name, job Job, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[queue] = append(q.items[queue], memoryItem{job: job, availableAt: time.Now().Add(delay)})
	return nil
}

func (q *memoryQueue) Dequeue(_ context.Context, queue Name) (Job, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items[queue]
	now := time.Now()
	for i, item := range items {
		if item.availableAt.After(now) {
			continue
		}
		q.items[queue] = append(items[:i:i], items[i+1:]...)
		return item.job, true, nil
	}
	return Job{}, false, nil
}

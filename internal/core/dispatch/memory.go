package dispatch

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"reconctl/internal/domain"
)

// InMemoryBroker is a single-process Broker used by tests and by
// cmd/reconserver and cmd/reconworker when no Redis address is configured.
type InMemoryBroker struct {
	mu       sync.Mutex
	queues   map[string]*taskHeap
	progress map[string]progressEntry
}

type progressEntry struct {
	p     domain.Progress
	state domain.TaskState
}

// NewInMemoryBroker returns a ready-to-use broker.
func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{
		queues:   make(map[string]*taskHeap),
		progress: make(map[string]progressEntry),
	}
}

func (b *InMemoryBroker) Enqueue(_ context.Context, t Task) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[t.Queue]
	if !ok {
		q = &taskHeap{}
		heap.Init(q)
		b.queues[t.Queue] = q
	}
	heap.Push(q, heapItem{task: t, availableAt: time.Now()})
	return nil
}

// Reserve polls its queues every pollInterval for a ready task. A condvar
// would avoid the poll, but it cannot be combined cleanly with ctx
// cancellation without risking a double-unlock; polling at this interval is
// cheap enough for the task volumes this broker (tests, single-process
// service runs without Redis) handles.
const pollInterval = 25 * time.Millisecond

func (b *InMemoryBroker) Reserve(ctx context.Context, queues []string) (Task, error) {
	for {
		select {
		case <-ctx.Done():
			return Task{}, ctx.Err()
		default:
		}

		if task, ok := b.tryReserve(queues); ok {
			return task, nil
		}

		select {
		case <-ctx.Done():
			return Task{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (b *InMemoryBroker) tryReserve(queues []string) (Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	for _, qname := range queues {
		q, ok := b.queues[qname]
		if !ok || q.Len() == 0 {
			continue
		}
		if (*q)[0].availableAt.After(now) {
			continue
		}
		item := heap.Pop(q).(heapItem)
		return item.task, true
	}
	return Task{}, false
}

func (b *InMemoryBroker) Ack(_ context.Context, _ Task) error {
	return nil
}

func (b *InMemoryBroker) Requeue(_ context.Context, t Task, delay time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[t.Queue]
	if !ok {
		q = &taskHeap{}
		heap.Init(q)
		b.queues[t.Queue] = q
	}
	heap.Push(q, heapItem{task: t, availableAt: time.Now().Add(delay)})
	return nil
}

func (b *InMemoryBroker) PublishProgress(_ context.Context, taskID string, p domain.Progress, state domain.TaskState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.progress[taskID] = progressEntry{p: p, state: state}
	return nil
}

func (b *InMemoryBroker) Progress(_ context.Context, taskID string) (domain.Progress, domain.TaskState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.progress[taskID]
	return e.p, e.state, ok
}

func (b *InMemoryBroker) Revoke(_ context.Context, taskID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, q := range b.queues {
		for i, item := range *q {
			if item.task.ID == taskID {
				heap.Remove(q, i)
				break
			}
		}
	}
	b.progress[taskID] = progressEntry{state: domain.TaskStateRevoked}
	return nil
}

type heapItem struct {
	task        Task
	availableAt time.Time
}

// taskHeap orders by priority (descending) then availableAt (ascending),
// so higher-priority, earliest-ready tasks are reserved first.
type taskHeap []heapItem

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].availableAt.Before(h[j].availableAt)
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(heapItem)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"reconctl/internal/domain"
)

func TestInMemoryBrokerReservesHighestPriorityFirst(t *testing.T) {
	b := NewInMemoryBroker()
	ctx := context.Background()

	low := Task{ID: "low", Queue: QueueReconFull, Priority: 1}
	high := Task{ID: "high", Queue: QueueReconFull, Priority: 9}
	if err := b.Enqueue(ctx, low); err != nil {
		t.Fatalf("Enqueue(low) error: %v", err)
	}
	if err := b.Enqueue(ctx, high); err != nil {
		t.Fatalf("Enqueue(high) error: %v", err)
	}

	got, err := b.Reserve(ctx, []string{QueueReconFull})
	if err != nil {
		t.Fatalf("Reserve() error: %v", err)
	}
	if got.ID != "high" {
		t.Errorf("Reserve() = %q, want the higher-priority task %q", got.ID, "high")
	}
}

func TestInMemoryBrokerRequeueDelaysAvailability(t *testing.T) {
	b := NewInMemoryBroker()
	ctx := context.Background()

	t1 := Task{ID: "t1", Queue: QueueLeakCheck, Priority: DefaultPriority}
	if err := b.Requeue(ctx, t1, 50*time.Millisecond); err != nil {
		t.Fatalf("Requeue() error: %v", err)
	}

	if _, ok := b.tryReserve([]string{QueueLeakCheck}); ok {
		t.Fatal("task should not be reservable before its delay elapses")
	}

	time.Sleep(60 * time.Millisecond)
	if _, ok := b.tryReserve([]string{QueueLeakCheck}); !ok {
		t.Fatal("task should be reservable once its delay has elapsed")
	}
}

func TestInMemoryBrokerReserveRespectsContextCancellation(t *testing.T) {
	b := NewInMemoryBroker()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := b.Reserve(ctx, []string{QueueReconFull})
	if err == nil {
		t.Fatal("expected Reserve() to return an error once the context is done")
	}
}

func TestInMemoryBrokerRevokeRemovesPendingTask(t *testing.T) {
	b := NewInMemoryBroker()
	ctx := context.Background()

	t1 := Task{ID: "t1", Queue: QueueReconFull, Priority: DefaultPriority}
	if err := b.Enqueue(ctx, t1); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if err := b.Revoke(ctx, "t1"); err != nil {
		t.Fatalf("Revoke() error: %v", err)
	}

	if _, ok := b.tryReserve([]string{QueueReconFull}); ok {
		t.Fatal("revoked task should not be reservable")
	}
	_, state, ok := b.Progress(ctx, "t1")
	if !ok || state != domain.TaskStateRevoked {
		t.Errorf("Progress() state = %v, want %v", state, domain.TaskStateRevoked)
	}
}

func TestInMemoryBrokerProgressRoundTrip(t *testing.T) {
	b := NewInMemoryBroker()
	ctx := context.Background()

	if _, _, ok := b.Progress(ctx, "unknown"); ok {
		t.Fatal("Progress() for an unpublished task should report ok=false")
	}

	want := domain.Progress{Current: 40, Total: 100, Status: "probing"}
	if err := b.PublishProgress(ctx, "task-1", want, domain.TaskStateProgress); err != nil {
		t.Fatalf("PublishProgress() error: %v", err)
	}
	got, state, ok := b.Progress(ctx, "task-1")
	if !ok || state != domain.TaskStateProgress || !cmp.Equal(got, want) {
		t.Errorf("Progress() = (%+v, %v, %v), want (%+v, %v, true)", got, state, ok, want, domain.TaskStateProgress)
	}
}

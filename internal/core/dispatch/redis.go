package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"reconctl/internal/domain"
)

// RedisBroker is the durable, networked Broker backing the service. Each
// queue is a sorted set keyed by "dispatch:queue:{name}" scored so that
// plain ascending ZRANGE order falls out to priority first, ready time
// second, plus serialized payloads (each carrying its own AvailableAt) and
// a per-task progress entry.
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker wraps an already-configured *redis.Client.
func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func queueKey(name string) string  { return "dispatch:queue:" + name }
func payloadKey(id string) string  { return "dispatch:payload:" + id }
func progressKey(id string) string { return "dispatch:progress:" + id }

type wireTask struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Queue       string          `json:"queue"`
	Priority    int             `json:"priority"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	AvailableAt time.Time       `json:"available_at"`
}

func score(priority int, availableAt time.Time) float64 {
	// Higher priority must sort first; within a priority, earlier
	// availableAt sorts first. ZRANGEBYSCORE with a descending priority
	// term is awkward in Redis, so we invert: lower score = dequeued
	// first, via (10-priority) as the dominant term. availableAt is
	// seconds (not nanoseconds) so it never swamps the priority term:
	// float64 has ~15-17 significant digits, and 1e13 leaves priority
	// (0..10) comfortably dominant over any Unix-seconds value.
	return float64(10-priority)*1e13 + float64(availableAt.Unix())
}

func (b *RedisBroker) Enqueue(ctx context.Context, t Task) error {
	return b.push(ctx, t, time.Now())
}

func (b *RedisBroker) push(ctx context.Context, t Task, availableAt time.Time) error {
	wt := wireTask{
		ID: t.ID, Kind: t.Kind, Queue: t.Queue, Priority: t.Priority, Payload: t.Payload,
		Attempt: t.Attempt, MaxAttempts: t.MaxAttempts, AvailableAt: availableAt,
	}
	data, err := json.Marshal(wt)
	if err != nil {
		return err
	}
	pipe := b.client.TxPipeline()
	pipe.Set(ctx, payloadKey(t.ID), data, 0)
	pipe.ZAdd(ctx, queueKey(t.Queue), redis.Z{Score: score(t.Priority, availableAt), Member: t.ID})
	_, err = pipe.Exec(ctx)
	return err
}

// Reserve polls the given queues in order every pollInterval, looking only
// at each queue's lowest-scoring (highest-priority, earliest-ready) member
// and popping it if its AvailableAt has arrived. A head member whose ready
// time is still in the future is left in the ZSET (not removed) and that
// queue is passed over for this poll; a later poll — by this worker or
// another — can still pick it up once it's due.
func (b *RedisBroker) Reserve(ctx context.Context, queues []string) (Task, error) {
	for {
		select {
		case <-ctx.Done():
			return Task{}, ctx.Err()
		default:
		}

		for _, q := range queues {
			members, err := b.client.ZRangeWithScores(ctx, queueKey(q), 0, 0).Result()
			if err != nil || len(members) == 0 {
				continue
			}
			id, _ := members[0].Member.(string)

			data, err := b.client.Get(ctx, payloadKey(id)).Bytes()
			if err != nil {
				// Payload missing (acked/revoked concurrently): drop the
				// stale ZSET entry and move on.
				b.client.ZRem(ctx, queueKey(q), id)
				continue
			}
			var wt wireTask
			if err := json.Unmarshal(data, &wt); err != nil {
				b.client.ZRem(ctx, queueKey(q), id)
				continue
			}
			if wt.AvailableAt.After(time.Now()) {
				continue // not ready yet; leave it queued
			}

			removed, err := b.client.ZRem(ctx, queueKey(q), id).Result()
			if err != nil || removed == 0 {
				continue // lost the race to another worker
			}
			return Task{
				ID: wt.ID, Kind: wt.Kind, Queue: wt.Queue, Priority: wt.Priority,
				Payload: wt.Payload, Attempt: wt.Attempt, MaxAttempts: wt.MaxAttempts,
			}, nil
		}

		select {
		case <-ctx.Done():
			return Task{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (b *RedisBroker) Ack(ctx context.Context, t Task) error {
	return b.client.Del(ctx, payloadKey(t.ID)).Err()
}

func (b *RedisBroker) Requeue(ctx context.Context, t Task, delay time.Duration) error {
	return b.push(ctx, t, time.Now().Add(delay))
}

type wireProgress struct {
	Progress domain.Progress  `json:"progress"`
	State    domain.TaskState `json:"state"`
}

func (b *RedisBroker) PublishProgress(ctx context.Context, taskID string, p domain.Progress, state domain.TaskState) error {
	data, err := json.Marshal(wireProgress{Progress: p, State: state})
	if err != nil {
		return err
	}
	return b.client.Set(ctx, progressKey(taskID), data, 24*time.Hour).Err()
}

func (b *RedisBroker) Progress(ctx context.Context, taskID string) (domain.Progress, domain.TaskState, bool) {
	data, err := b.client.Get(ctx, progressKey(taskID)).Bytes()
	if err != nil {
		return domain.Progress{}, "", false
	}
	var wp wireProgress
	if err := json.Unmarshal(data, &wp); err != nil {
		return domain.Progress{}, "", false
	}
	return wp.Progress, wp.State, true
}

// allQueues is every recognized queue name, searched when a task's own
// queue is not known to the caller (Revoke takes only a task id).
var allQueues = []string{
	QueueReconFull, QueueReconEnum, QueueReconCheck, QueueReconScreenshot,
	QueueWafCheck, QueueLeakCheck, QueueMaintenance,
}

func (b *RedisBroker) Revoke(ctx context.Context, taskID string) error {
	for _, q := range allQueues {
		b.client.ZRem(ctx, queueKey(q), taskID)
	}
	b.client.Del(ctx, payloadKey(taskID))
	return b.PublishProgress(ctx, taskID, domain.Progress{}, domain.TaskStateRevoked)
}

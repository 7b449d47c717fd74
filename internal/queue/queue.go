package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Transport names. Low-priority jobs are drained only when the default
// transport has nothing due.
const (
	TransportDefault = "default"
	TransportLow     = "low"
)

// Job is one unit of deferred work. Payload is handler-specific JSON.
type Job struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Queue enqueues jobs for later execution with at-least-once delivery.
type Queue interface {
	Enqueue(ctx context.Context, job Job, delay time.Duration, transport string) error
}

// NewJob builds a job with a marshaled payload.
func NewJob(jobType string, payload any) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, err
	}
	return Job{ID: uuid.NewString(), Type: jobType, Payload: raw}, nil
}

// RedisQueue stores delayed jobs in per-transport sorted sets scored by their
// ready-at time.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue builds the Redis-backed queue.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// Enqueue schedules the job to become due after the delay.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job, delay time.Duration, transport string) error {
	if transport == "" {
		transport = TransportDefault
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	readyAt := float64(time.Now().Add(delay).UnixMilli())
	return q.client.ZAdd(ctx, transportKey(transport), redis.Z{Score: readyAt, Member: raw}).Err()
}

// PopDue atomically claims up to limit due jobs from the transport.
func (q *RedisQueue) PopDue(ctx context.Context, transport string, limit int) ([]Job, error) {
	now := float64(time.Now().UnixMilli())
	members, err := q.client.ZRangeByScore(ctx, transportKey(transport), &redis.ZRangeBy{
		Min: "0", Max: formatScore(now), Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	jobs := make([]Job, 0, len(members))
	for _, member := range members {
		removed, err := q.client.ZRem(ctx, transportKey(transport), member).Result()
		if err != nil {
			return jobs, err
		}
		if removed == 0 {
			// claimed by a concurrent worker
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func transportKey(transport string) string {
	return "jobs:" + transport
}

func formatScore(score float64) string {
	return json.Number(jsonFloat(score)).String()
}

func jsonFloat(f float64) string {
	raw, _ := json.Marshal(f)
	return string(raw)
}

// MemoryQueue collects enqueued jobs in memory; used in tests to assert on
// retry scheduling without a Redis instance.
type MemoryQueue struct {
	mu      sync.Mutex
	Entries []MemoryEntry
}

// MemoryEntry records one enqueued job with its scheduling attributes.
type MemoryEntry struct {
	Job       Job
	Delay     time.Duration
	Transport string
}

// NewMemoryQueue builds an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job Job, delay time.Duration, transport string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Entries = append(q.Entries, MemoryEntry{Job: job, Delay: delay, Transport: transport})
	return nil
}

// ByType returns the recorded entries matching a job type.
func (q *MemoryQueue) ByType(jobType string) []MemoryEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	var result []MemoryEntry
	for _, entry := range q.Entries {
		if entry.Job.Type == jobType {
			result = append(result, entry)
		}
	}
	return result
}

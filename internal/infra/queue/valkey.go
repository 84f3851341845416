package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"
)

const defaultQueueKey = "callnotes:jobs"

type jobEnvelope struct {
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload"`
}

// ValkeyQueue keeps jobs in a Valkey list and delivers them to a handler from one worker loop.
type ValkeyQueue struct {
	client      valkey.Client
	queueKey    string
	pollTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	handler Handler
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewValkeyQueue constructs a Valkey-backed queue.
func NewValkeyQueue(client valkey.Client, queueKey string, logger *slog.Logger) *ValkeyQueue {
	if queueKey == "" {
		queueKey = defaultQueueKey
	}
	return &ValkeyQueue{
		client:      client,
		queueKey:    queueKey,
		pollTimeout: 5 * time.Second,
		logger:      logger.With("component", "queue.valkey"),
	}
}

// SetHandler starts the worker loop on first call.
func (q *ValkeyQueue) SetHandler(handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = handler
	if handler == nil || q.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.done = make(chan struct{})
	go q.consume(ctx)
}

// Enqueue pushes a job onto the list.
func (q *ValkeyQueue) Enqueue(ctx context.Context, name string, payload any) error {
	encoded, err := json.Marshal(jobEnvelope{Name: name, Payload: asPayload(payload)})
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	cmd := q.client.B().Lpush().Key(q.queueKey).Element(string(encoded)).Build()
	if err := q.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("enqueue %s: %w", name, err)
	}
	return nil
}

// Close stops the worker loop after the current job.
func (q *ValkeyQueue) Close() error {
	q.mu.Lock()
	cancel, done := q.cancel, q.done
	q.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (q *ValkeyQueue) consume(ctx context.Context) {
	defer close(q.done)
	for ctx.Err() == nil {
		cmd := q.client.B().Brpop().Key(q.queueKey).Timeout(q.pollTimeout.Seconds()).Build()
		values, err := q.client.Do(ctx, cmd).ToArray()
		if err != nil {
			if !valkey.IsValkeyNil(err) && ctx.Err() == nil {
				q.logger.Warn("job pop failed", "error", err)
				time.Sleep(time.Second)
			}
			continue
		}
		if len(values) < 2 {
			continue
		}
		raw, err := values[1].ToString()
		if err != nil {
			q.logger.Warn("job payload decode failed", "error", err)
			continue
		}
		job, err := decodeJob(raw)
		if err != nil {
			q.logger.Warn("job unmarshal failed", "error", err)
			continue
		}
		q.mu.Lock()
		handler := q.handler
		q.mu.Unlock()
		if handler != nil {
			handler(context.WithoutCancel(ctx), job.Name, job.Payload)
		}
	}
}

func decodeJob(raw string) (jobEnvelope, error) {
	var job jobEnvelope
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return jobEnvelope{}, err
	}
	if job.Payload == nil {
		job.Payload = map[string]any{}
	}
	return job, nil
}

var _ HandlerQueue = (*ValkeyQueue)(nil)

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/infra"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/metrics"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueSessionEvents = "jobs:session_events"

	JobSessionEvent = "session_event"

	// MaxAttempts before a job is moved to the dead letter queue.
	MaxAttempts = 3

	maxBackoff = 30 * time.Second
)

// Job is the envelope stored in the Redis list.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// HandlerFunc processes one job payload.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Dispatcher enqueues session events into a Redis list. Pushes go through a
// circuit breaker so a Redis outage fails fast instead of stalling requests.
type Dispatcher struct {
	rdb *redis.Client
	cb  *infra.CircuitBreaker
}

func NewDispatcher(rdb *redis.Client, cb *infra.CircuitBreaker) *Dispatcher {
	return &Dispatcher{rdb: rdb, cb: cb}
}

// Publish enqueues ev. It satisfies service.EventPublisher.
func (d *Dispatcher) Publish(ctx context.Context, ev model.SessionEvent) error {
	err := d.cb.Execute(func() error {
		return d.enqueue(ctx, QueueSessionEvents, JobSessionEvent, ev)
	})
	metrics.EventsPublished.WithLabelValues(metrics.Result(err)).Inc()
	return err
}

// BreakerState is reported by the health endpoint.
func (d *Dispatcher) BreakerState() infra.CBState { return d.cb.State() }

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Pool consumes jobs with a fixed number of goroutines blocked on BRPOP.
type Pool struct {
	rdb      *redis.Client
	handlers map[string]HandlerFunc
	wait     time.Duration
	// backoff is the first pause after a Redis error; it doubles up to
	// maxBackoff while errors persist.
	backoff time.Duration
}

func NewPool(rdb *redis.Client) *Pool {
	return &Pool{rdb: rdb, handlers: make(map[string]HandlerFunc), wait: 5 * time.Second, backoff: time.Second}
}

// Handle registers fn for jobs of jobType. Not safe to call after Start.
func (p *Pool) Handle(jobType string, fn HandlerFunc) { p.handlers[jobType] = fn }

// Start launches numWorkers goroutines; they stop when ctx is cancelled.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go p.run(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) run(ctx context.Context, id int) {
	delay := p.backoff
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			result, err := p.rdb.BRPop(ctx, p.wait, QueueSessionEvents).Result()
			if errors.Is(err, redis.Nil) {
				continue // timeout
			}
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				log.Warn().Err(err).Int("worker", id).Dur("retry_in", delay).Msg("queue unavailable")
				pause(ctx, delay)
				delay = min(delay*2, maxBackoff)
				continue
			}
			delay = p.backoff
			if len(result) < 2 {
				continue
			}
			p.Process(ctx, result[0], result[1])
		}
	}
}

// pause sleeps for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Process runs one raw job. Failures are re-queued until MaxAttempts, then
// dead-lettered.
func (p *Pool) Process(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		SendToDLQ(ctx, p.rdb, queue, "unknown", json.RawMessage(fmt.Sprintf("%q", raw)), "malformed job: "+err.Error(), 0)
		return
	}
	job.Attempts++

	fn, ok := p.handlers[job.Type]
	if !ok {
		SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, "no handler registered", job.Attempts)
		return
	}
	if err := fn(ctx, job.Payload); err != nil {
		if job.Attempts >= MaxAttempts {
			SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, err.Error(), job.Attempts)
			return
		}
		log.Warn().Err(err).Str("type", job.Type).Int("attempt", job.Attempts).Msg("job failed, requeueing")
		encoded, mErr := json.Marshal(job)
		if mErr == nil {
			mErr = p.rdb.LPush(ctx, queue, encoded).Err()
		}
		if mErr != nil {
			SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, "requeue failed: "+mErr.Error(), job.Attempts)
		}
		return
	}
	log.Debug().Str("type", job.Type).Str("queue", queue).Msg("job processed")
}

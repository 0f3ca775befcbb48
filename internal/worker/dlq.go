package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DLQPrefix names the dead letter list of a queue: dlq:{queue}.
const DLQPrefix = "dlq:"

// DLQEntry is a job that ran out of attempts, kept with the last failure.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      time.Time       `json:"failed_at"`
	Attempts      int             `json:"attempts"`
}

// SendToDLQ parks a failed job. Errors are logged and swallowed; there is
// nowhere further to send the job.
func SendToDLQ(ctx context.Context, rdb *redis.Client, queue, jobType string, payload json.RawMessage, reason string, attempts int) {
	data, err := json.Marshal(DLQEntry{
		OriginalQueue: queue,
		JobType:       jobType,
		Payload:       payload,
		Reason:        reason,
		FailedAt:      time.Now().UTC(),
		Attempts:      attempts,
	})
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: marshal entry")
		return
	}
	key := DLQPrefix + queue
	if err := rdb.LPush(ctx, key, data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", key).Msg("dlq: push failed, job lost")
		return
	}
	metrics.EventsDeadLettered.Inc()
	log.Warn().
		Str("queue", queue).
		Str("job_type", jobType).
		Str("reason", reason).
		Int("attempts", attempts).
		Msg("dlq: job dead-lettered")
}

// DLQLength returns the number of dead-lettered jobs of queue.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}

// PeekDLQ returns up to n of the oldest dead-lettered jobs without removing
// them. Entries that no longer decode are skipped.
func PeekDLQ(ctx context.Context, rdb *redis.Client, queue string, n int64) ([]DLQEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	raws, err := rdb.LRange(ctx, DLQPrefix+queue, -n, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]DLQEntry, 0, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		var e DLQEntry
		if err := json.Unmarshal([]byte(raws[i]), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Redrive moves dead-lettered jobs back to their queue, oldest first, with a
// fresh attempt budget. It stops after max jobs (all when max <= 0) and
// returns how many were moved. The daily projection is additive, so only
// redrive after fixing whatever made the handler fail.
func Redrive(ctx context.Context, rdb *redis.Client, queue string, max int) (int, error) {
	key := DLQPrefix + queue
	moved := 0
	for max <= 0 || moved < max {
		raw, err := rdb.RPop(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return moved, err
		}
		var e DLQEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil || e.JobType == "" {
			// Put it back so it is not lost.
			if pErr := rdb.LPush(ctx, key, raw).Err(); pErr != nil {
				return moved, pErr
			}
			return moved, fmt.Errorf("dlq entry cannot be redriven: %q", raw)
		}
		job, err := json.Marshal(Job{Type: e.JobType, Payload: e.Payload})
		if err != nil {
			return moved, err
		}
		if err := rdb.LPush(ctx, queue, job).Err(); err != nil {
			_ = rdb.RPush(ctx, key, raw).Err()
			return moved, err
		}
		moved++
	}
	if moved > 0 {
		log.Info().Str("queue", queue).Int("jobs", moved).Msg("dlq: redriven")
	}
	return moved, nil
}

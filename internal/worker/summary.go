package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/dto"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"

	"github.com/redis/go-redis/v9"
)

// Daily summaries live in one hash per UTC day, amounts in cents.
const summaryKeyPrefix = "report:daily:"

const (
	fieldOpened       = "sessions_opened"
	fieldClosed       = "sessions_closed"
	fieldReopened     = "sessions_reopened"
	fieldTransactions = "transactions"
	fieldReversals    = "reversals"
)

// SummaryKey returns the hash key for day (YYYY-MM-DD).
func SummaryKey(day string) string { return summaryKeyPrefix + day }

// DailySummaryHandler folds session events into the per-day hash. Category
// fields follow session totals: expenses accumulate positively and reversals
// subtract from the reversed category. Every counter only grows; a reopen is
// counted on its own day and leaves that day's closes alone.
func DailySummaryHandler(rdb *redis.Client) HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) error {
		var ev model.SessionEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decode session event: %w", err)
		}
		key := SummaryKey(ev.OccurredAt.UTC().Format(time.DateOnly))

		pipe := rdb.TxPipeline()
		switch ev.Type {
		case model.EventSessionOpened:
			pipe.HIncrBy(ctx, key, fieldOpened, 1)
		case model.EventSessionClosed:
			pipe.HIncrBy(ctx, key, fieldClosed, 1)
		case model.EventSessionReopened:
			pipe.HIncrBy(ctx, key, fieldReopened, 1)
		case model.EventTransactionRecorded, model.EventTransactionReversed:
			category, ok := ev.TxType.Category()
			if !ok {
				return fmt.Errorf("unknown transaction type %q", ev.TxType)
			}
			delta := int64(ev.Amount)
			if category == model.CategoryOutgoingExpense {
				delta = -delta
			}
			pipe.HIncrBy(ctx, key, string(category), delta)
			if ev.Type == model.EventTransactionReversed {
				pipe.HIncrBy(ctx, key, fieldReversals, 1)
			} else {
				pipe.HIncrBy(ctx, key, fieldTransactions, 1)
			}
		default:
			return fmt.Errorf("unknown event type %q", ev.Type)
		}
		pipe.Expire(ctx, key, 90*24*time.Hour)
		_, err := pipe.Exec(ctx)
		return err
	}
}

// ReadDailySummary loads the projection for day. A day without events returns
// a zero summary.
func ReadDailySummary(ctx context.Context, rdb *redis.Client, day string) (*dto.DailySummary, error) {
	values, err := rdb.HGetAll(ctx, SummaryKey(day)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	num := func(field string) int64 {
		n, _ := strconv.ParseInt(values[field], 10, 64)
		return n
	}
	money := func(c model.TotalsCategory) model.Money { return model.Money(num(string(c))) }
	return &dto.DailySummary{
		Date:             day,
		SessionsOpened:   num(fieldOpened),
		SessionsClosed:   num(fieldClosed),
		SessionsReopened: num(fieldReopened),
		Transactions:     num(fieldTransactions),
		Reversals:        num(fieldReversals),
		VehicleEntry:     money(model.CategoryVehicleEntry).Decimal(),
		ProductSale:      money(model.CategoryProductSale).Decimal(),
		OutgoingExpense:  money(model.CategoryOutgoingExpense).Decimal(),
	}, nil
}

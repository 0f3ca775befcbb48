//go:build integration

package worker

import (
	"context"
	"testing"
	"time"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/infra"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// TestPoolAgainstRedis runs the dispatcher and the worker pool against a real
// Redis so BRPOP and the MULTI pipeline are exercised end to end.
func TestPoolAgainstRedis(t *testing.T) {
	ctx := context.Background()

	rdC, err := tcRedis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	url, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	d := NewDispatcher(rdb, infra.NewCircuitBreaker(infra.DefaultCBConfig("events")))
	require.NoError(t, d.Publish(ctx, event(model.EventSessionOpened, "", 0)))
	require.NoError(t, d.Publish(ctx, event(model.EventTransactionRecorded, model.TxProductSale, 1250)))
	require.NoError(t, d.Publish(ctx, event(model.EventTransactionRecorded, model.TxOutgoingExpense, -300)))

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p := NewPool(rdb)
	p.wait = 200 * time.Millisecond
	p.Handle(JobSessionEvent, DailySummaryHandler(rdb))
	p.Start(workCtx, 2)

	require.Eventually(t, func() bool {
		n, err := rdb.LLen(ctx, QueueSessionEvents).Result()
		if err != nil || n != 0 {
			return false
		}
		s, err := ReadDailySummary(ctx, rdb, day.Format(time.DateOnly))
		return err == nil && s.Transactions == 2
	}, 10*time.Second, 100*time.Millisecond)

	s, err := ReadDailySummary(ctx, rdb, day.Format(time.DateOnly))
	require.NoError(t, err)
	assert.EqualValues(t, 1, s.SessionsOpened)
	assert.Equal(t, "12.5", s.ProductSale.String())
	assert.Equal(t, "3", s.OutgoingExpense.String())

	ttl, err := rdb.TTL(ctx, SummaryKey(day.Format(time.DateOnly))).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/apierror"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/clock"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/repository/memory"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/service"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/worker"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Flag values survive between Execute calls on the shared command tree.
	feeCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestFeeCommand(t *testing.T) {
	out, err := runCmd(t, "fee", "--price", "5", "--base", "60", "--tolerance", "15",
		"--entry", "2024-05-10T08:00:00Z", "--exit", "2024-05-10T10:15:00Z", "--discount", "2.5")
	require.NoError(t, err)
	assert.Contains(t, out, "elapsed:   135 min")
	assert.Contains(t, out, "units:     2 x 5.00")
	assert.Contains(t, out, "fee:       10.00")
	assert.Contains(t, out, "charged:   7.50")
}

func TestFeeCommandRejectsBadInput(t *testing.T) {
	_, err := runCmd(t, "fee", "--price", "5.001", "--minutes", "30")
	assert.ErrorIs(t, err, apierror.ErrInvalidAmount)

	_, err = runCmd(t, "fee", "--price", "184467440737095517.16", "--minutes", "30")
	assert.ErrorIs(t, err, apierror.ErrInvalidAmount)

	_, err = runCmd(t, "fee", "--price", "5", "--entry", "2024-05-10T10:00:00Z", "--exit", "2024-05-10T09:00:00Z")
	assert.ErrorIs(t, err, apierror.ErrInvalidInterval)

	_, err = runCmd(t, "fee", "--price", "5", "--minutes", "30", "--entry", "2024-05-10T10:00:00Z")
	assert.Error(t, err, "--minutes and --entry are exclusive")
}

func TestSeedRuleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := service.NewBillingService(memory.New(), clock.Real{})
	seedBase, seedTolerance = 60, 15

	rule, err := seedRule(ctx, svc, model.VehicleCar, "5.00")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.True(t, rule.IsActive)
	assert.Equal(t, model.Money(500), rule.BasePrice)

	again, err := seedRule(ctx, svc, model.VehicleCar, "9.00")
	require.NoError(t, err)
	assert.Nil(t, again)

	active, err := svc.ActiveRule(ctx, model.VehicleCar)
	require.NoError(t, err)
	assert.Equal(t, rule.ID, active.ID)
}

func TestPrintDLQ(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	worker.SendToDLQ(ctx, rdb, worker.QueueSessionEvents, worker.JobSessionEvent, []byte(`{}`), "boom", worker.MaxAttempts)

	var out bytes.Buffer
	eventsDLQCmd.SetOut(&out)
	dlqLimit = 5
	require.NoError(t, printDLQ(ctx, eventsDLQCmd, rdb))
	assert.Contains(t, out.String(), "1 dead-lettered job(s) in jobs:session_events")
	assert.Contains(t, out.String(), "attempts=3  boom")
}

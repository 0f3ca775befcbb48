//go:build integration

package router_test

// End-to-end tests over real Postgres and Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/clock"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/config"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/infra"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/middleware"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/repository"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/router"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

type e2eEnv struct {
	server *httptest.Server
	cfg    *config.Config
	deps   router.Deps
	tokens map[string]string
}

func setupE2E(t *testing.T) *e2eEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("parkpos_test"),
		tcPostgres.WithUsername("parkpos"),
		tcPostgres.WithPassword("parkpos"),
		testcontainers.WithWaitStrategy(
			tcPostgres.BasicWaitStrategies()...,
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })
	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })
	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Env:                "test",
		StorageDriver:      "postgres",
		DatabaseURL:        pgURL,
		RedisURL:           rdURL,
		EventsEnabled:      true,
		WorkerPoolSize:     1,
		JWTSecret:          secret,
		CapacityCar:        2,
		CapacityMotorcycle: 1,
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(ctx, cfg.RedisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	workCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	pool := worker.NewPool(rdb)
	pool.Handle(worker.JobSessionEvent, worker.DailySummaryHandler(rdb))
	pool.Start(workCtx, cfg.WorkerPoolSize)

	deps := router.Deps{
		DB:     db,
		Store:  repository.NewStore(db),
		Redis:  rdb,
		Events: worker.NewDispatcher(rdb, infra.NewCircuitBreaker(infra.DefaultCBConfig("events"))),
		Clock:  clock.Real{},
	}
	svc := router.NewServices(cfg, deps)
	require.NoError(t, svc.Parking.SyncCapacity(ctx))
	srv := httptest.NewServer(router.New(cfg, deps, svc))
	t.Cleanup(srv.Close)

	tokens := make(map[string]string)
	for _, role := range model.AllRoles {
		tok, err := middleware.SignToken(secret, role+"-e2e", role, role, time.Hour)
		require.NoError(t, err)
		tokens[role] = tok
	}
	return &e2eEnv{server: srv, cfg: cfg, deps: deps, tokens: tokens}
}

func (e *e2eEnv) call(t *testing.T, role, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.tokens[role])
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp.StatusCode, out
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestE2E_FullParkingDay(t *testing.T) {
	env := setupE2E(t)

	code, _ := env.call(t, "admin", http.MethodPost, "/v1/billing-rules", map[string]any{
		"vehicle_category": "CAR", "base_price": "5", "base_time_minutes": 60, "tolerance_minutes": 15, "activate": true,
	})
	require.Equal(t, http.StatusCreated, code)

	code, body := env.call(t, "operator", http.MethodPost, "/v1/sessions", map[string]any{"initial_value": "50"})
	require.Equal(t, http.StatusCreated, code)
	sessionID := body["id"].(string)

	code, body = env.call(t, "operator", http.MethodPost, "/v1/vehicles", map[string]any{
		"plate": "XYZ9A87", "category": "CAR", "prepaid": "5", "payment_method": "cash",
	})
	require.Equal(t, http.StatusCreated, code)
	entryID := body["id"].(string)

	code, _ = env.call(t, "operator", http.MethodPost, "/v1/sessions/"+sessionID+"/transactions",
		map[string]any{"type": "PRODUCT_SALE", "amount": "7.25", "payment_method": "pix"})
	require.Equal(t, http.StatusCreated, code)

	// Leaving right away falls within the tolerance; the prepaid amount stays.
	code, body = env.call(t, "operator", http.MethodPost, "/v1/vehicles/"+entryID+"/exit", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0", body["charged"])
	assert.Nil(t, body["transaction_id"])

	code, body = env.call(t, "operator", http.MethodPost, "/v1/sessions/"+sessionID+"/close", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "62.25", body["final_value"])

	code, _ = env.call(t, "supervisor", http.MethodPost, "/v1/sessions/"+sessionID+"/reopen", nil)
	require.Equal(t, http.StatusOK, code)

	code, body = env.call(t, "admin", http.MethodGet, "/v1/sessions/"+sessionID+"/audit", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"], 5) // open, record x2, close, reopen

	today := time.Now().UTC().Format(time.DateOnly)
	require.Eventually(t, func() bool {
		code, body := env.call(t, "supervisor", http.MethodGet, "/v1/reports/daily/"+today, nil)
		return code == http.StatusOK && body["transactions"] == float64(2)
	}, 10*time.Second, 200*time.Millisecond)
}

func TestE2E_ConcurrentOpensOverHTTP(t *testing.T) {
	env := setupE2E(t)

	const n = 16
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i], _ = env.call(t, "operator", http.MethodPost, "/v1/sessions", map[string]any{"initial_value": "10"})
		}(i)
	}
	wg.Wait()

	created := 0
	for _, c := range codes {
		if c == http.StatusCreated {
			created++
		} else {
			assert.Equal(t, http.StatusConflict, c)
		}
	}
	assert.Equal(t, 1, created)
}

func TestE2E_OccupancySurvivesRestart(t *testing.T) {
	env := setupE2E(t)

	code, _ := env.call(t, "operator", http.MethodPost, "/v1/sessions", map[string]any{"initial_value": "0"})
	require.Equal(t, http.StatusCreated, code)
	code, _ = env.call(t, "operator", http.MethodPost, "/v1/vehicles", map[string]any{"plate": "MOT0R12", "category": "MOTORCYCLE"})
	require.Equal(t, http.StatusCreated, code)

	restarted := router.NewServices(env.cfg, env.deps)
	require.NoError(t, restarted.Parking.SyncCapacity(context.Background()))
	snap := restarted.Parking.GetCapacity(model.VehicleMotorcycle)
	assert.Equal(t, 1, snap.Occupied)
	assert.Equal(t, 0, snap.Free)
}

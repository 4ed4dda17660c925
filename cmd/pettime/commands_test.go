package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pettime/companion/internal/app"
	"github.com/pettime/companion/internal/config"
	"github.com/pettime/companion/internal/domain"
	"github.com/pettime/companion/pkg/logger"
)

func newTestCommands(t *testing.T) (*commands, *bytes.Buffer) {
	t.Helper()

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/api/v1/pet-types", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]domain.PetType{{ID: "dog", Name: "Dog"}})
	})
	r.Get("/api/v1/pets", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]domain.Pet{{ID: "p1", Name: "Rex", Mood: "grumpy"}})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Environment:       "development",
		APIURL:            srv.URL,
		APITimeout:        5 * time.Second,
		APIRateLimitRPS:   100,
		APIRateLimitBurst: 100,
		CBMaxRequests:     1,
		CBInterval:        time.Minute,
		CBTimeout:         time.Second,
		CBFailureRatio:    0.5,
		CBMinRequests:     5,
		CacheBackend:      config.CacheMemory,
	}
	a, err := app.New(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	var out bytes.Buffer
	return &commands{app: a, out: &out}, &out
}

func TestCommands_PetsNormalizesMood(t *testing.T) {
	cmd, out := newTestCommands(t)

	require.NoError(t, cmd.dispatch(context.Background(), "pets", nil))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Rex", rows[0]["name"])
	assert.Equal(t, "content", rows[0]["mood"])
	assert.NotEmpty(t, rows[0]["mood_emoji"])
}

func TestCommands_PetTypes(t *testing.T) {
	cmd, out := newTestCommands(t)

	require.NoError(t, cmd.dispatch(context.Background(), "pet-types", nil))
	assert.Contains(t, out.String(), `"Dog"`)
}

func TestCommands_WhoamiSignedOut(t *testing.T) {
	cmd, out := newTestCommands(t)

	require.NoError(t, cmd.dispatch(context.Background(), "whoami", nil))

	var s map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &s))
	assert.Equal(t, false, s["is_authenticated"])
}

func TestCommands_Doctor(t *testing.T) {
	cmd, out := newTestCommands(t)

	require.NoError(t, cmd.dispatch(context.Background(), "doctor", nil))

	var report struct {
		Status  string             `json:"status"`
		Breaker string             `json:"breaker"`
		Metrics map[string]float64 `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, "up", report.Status)
	assert.Equal(t, "closed", report.Breaker)
	assert.Equal(t, 1.0, report.Metrics["pettime_api_requests_total{operation=ping,outcome=success}"])
	assert.Equal(t, 1.0, report.Metrics["pettime_api_request_duration_seconds_count{operation=ping}"])
	assert.Equal(t, 0.0, report.Metrics["pettime_circuit_breaker_state{name=pettime-api}"])
	assert.Contains(t, report.Metrics, "pettime_circuit_breaker_state{name=pettime-api}")
}

func TestCommands_Usage(t *testing.T) {
	cmd, _ := newTestCommands(t)
	ctx := context.Background()

	assert.ErrorIs(t, cmd.dispatch(ctx, "feed", nil), errUsage)
	assert.ErrorIs(t, cmd.dispatch(ctx, "pet", nil), errUsage)
	assert.ErrorIs(t, cmd.dispatch(ctx, "pet", []string{"show"}), errUsage)
	assert.ErrorIs(t, cmd.dispatch(ctx, "activity", []string{"finish"}), errUsage)
}

func TestCommands_RejectsInvalidGameData(t *testing.T) {
	cmd, _ := newTestCommands(t)

	err := cmd.dispatch(context.Background(), "activity", []string{"finish", "-data", "{nope", "a1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "game data must be valid JSON")
}

func TestOptional(t *testing.T) {
	assert.Nil(t, optional(""))
	require.NotNil(t, optional("x"))
	assert.Equal(t, "x", *optional("x"))
}

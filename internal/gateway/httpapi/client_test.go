package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pettime/companion/internal/domain"
	"github.com/pettime/companion/internal/gateway"
	apperrors "github.com/pettime/companion/pkg/errors"
	"github.com/pettime/companion/pkg/httpclient"
	"github.com/pettime/companion/pkg/logger"
)

// fakeAPI is a minimal in-process stand-in for the pettime API.
type fakeAPI struct {
	mu       sync.Mutex
	headers  []http.Header
	queries  []string
	bodies   []map[string]any
	failNext int
}

func (f *fakeAPI) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headers = append(f.headers, r.Header.Clone())
	f.queries = append(f.queries, r.URL.RawQuery)
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.bodies = append(f.bodies, body)
}

func (f *fakeAPI) last() (http.Header, string, map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.headers) - 1
	return f.headers[n], f.queries[n], f.bodies[n]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": http.StatusText(status), "message": msg})
}

func (f *fakeAPI) router() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			f.record(req)
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", func(w http.ResponseWriter, req *http.Request) {
			_, _, body := f.last()
			if body["password"] != "hunter22" {
				writeError(w, http.StatusUnauthorized, "Invalid email or password")
				return
			}
			writeJSON(w, http.StatusOK, domain.AuthResponse{
				User:   domain.User{ID: "u1", Email: "ada@example.com", Name: "Ada"},
				Tokens: domain.AuthTokens{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 900},
			})
		})
		r.Post("/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, domain.AuthTokens{AccessToken: "at2", RefreshToken: "rt2", ExpiresIn: 900})
		})
		r.Post("/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r.Get("/pet-types", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, []domain.PetType{{ID: "dog", Name: "Dog", Config: json.RawMessage(`{"sounds":["woof"]}`)}})
		})
		r.Get("/pets", func(w http.ResponseWriter, _ *http.Request) {
			f.mu.Lock()
			fail := f.failNext > 0
			if fail {
				f.failNext--
			}
			f.mu.Unlock()
			if fail {
				writeError(w, http.StatusBadGateway, "upstream database unavailable")
				return
			}
			writeJSON(w, http.StatusOK, []domain.Pet{{ID: "p1", Name: "Rex", Mood: domain.MoodHappy}})
		})
		r.Put("/pets/{id}", func(w http.ResponseWriter, req *http.Request) {
			if chi.URLParam(req, "id") != "p1" {
				writeError(w, http.StatusNotFound, "Pet not found")
				return
			}
			writeJSON(w, http.StatusOK, domain.Pet{ID: "p1", Name: "Max"})
		})
		r.Delete("/pets/{id}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r.Get("/pets/{id}/stats", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"pet":   domain.Pet{ID: chi.URLParam(req, "id"), TotalXP: 250, Level: 2},
				"stats": domain.PetStats{TotalActivities: 4, CurrentStreak: 2, LevelProgress: 0.5},
			})
		})
		r.Get("/activities", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, nil)
		})
	})
	return r
}

func newTestClient(t *testing.T, doer httpclient.Doer, srvURL string, opts ...Option) *Client {
	t.Helper()
	if doer == nil {
		doer = httpclient.New(httpclient.DefaultConfig())
	}
	return New(srvURL, doer, logger.Discard(), opts...)
}

func startFake(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{}
	srv := httptest.NewServer(f.router())
	t.Cleanup(srv.Close)
	return f, srv
}

func TestClient_Login_Success(t *testing.T) {
	f, srv := startFake(t)
	c := newTestClient(t, nil, srv.URL)

	resp, err := c.Login(context.Background(), domain.LoginRequest{Email: "ada@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "u1", resp.User.ID)
	assert.Equal(t, "at", resp.Tokens.AccessToken)
	assert.Equal(t, int64(900), resp.Tokens.ExpiresIn)

	headers, _, body := f.last()
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.NotEmpty(t, headers.Get("X-Request-ID"))
	assert.Empty(t, headers.Get("Authorization"), "login is anonymous")
	assert.Equal(t, "ada@example.com", body["email"])
}

func TestClient_Login_ErrorKeepsServerMessage(t *testing.T) {
	_, srv := startFake(t)
	c := newTestClient(t, nil, srv.URL)

	_, err := c.Login(context.Background(), domain.LoginRequest{Email: "ada@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	assert.Equal(t, http.StatusUnauthorized, apperrors.HTTPStatus(err))
	assert.Equal(t, "Invalid email or password", apperrors.UserMessage(err, "Login failed"))
}

func TestClient_AuthenticatedCallsSendBearer(t *testing.T) {
	f, srv := startFake(t)
	ts := gateway.TokenSourceFunc(func(context.Context) (string, error) { return "secret", nil })
	c := newTestClient(t, nil, srv.URL, WithTokenSource(ts))

	pets, err := c.ListPets(context.Background())
	require.NoError(t, err)
	require.Len(t, pets, 1)
	assert.Equal(t, "Rex", pets[0].Name)

	headers, _, _ := f.last()
	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))
}

func TestClient_PublicCallsSkipBearer(t *testing.T) {
	f, srv := startFake(t)
	ts := gateway.TokenSourceFunc(func(context.Context) (string, error) { return "secret", nil })
	c := newTestClient(t, nil, srv.URL, WithTokenSource(ts))

	types, err := c.ListPetTypes(context.Background())
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.JSONEq(t, `{"sounds":["woof"]}`, string(types[0].Config))

	headers, _, _ := f.last()
	assert.Empty(t, headers.Get("Authorization"))
}

func TestClient_TokenSourceFailureAbortsCall(t *testing.T) {
	f, srv := startFake(t)
	ts := gateway.TokenSourceFunc(func(context.Context) (string, error) { return "", errors.New("cache offline") })
	c := newTestClient(t, nil, srv.URL, WithTokenSource(ts))

	_, err := c.ListPets(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache offline")
	f.mu.Lock()
	assert.Empty(t, f.headers, "request must not be sent")
	f.mu.Unlock()
}

func TestClient_RequestIDFromContext(t *testing.T) {
	f, srv := startFake(t)
	c := newTestClient(t, nil, srv.URL)

	ctx := logger.WithRequestID(context.Background(), "req-42")
	_, err := c.ListPetTypes(ctx)
	require.NoError(t, err)

	headers, _, _ := f.last()
	assert.Equal(t, "req-42", headers.Get("X-Request-ID"))
}

func TestClient_UpdatePet_NotFound(t *testing.T) {
	_, srv := startFake(t)
	c := newTestClient(t, nil, srv.URL)

	name := "Max"
	_, err := c.UpdatePet(context.Background(), "ghost", domain.UpdatePetRequest{Name: &name})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, "Pet not found", apperrors.UserMessage(err, "Failed to update pet"))
}

func TestClient_UpdatePet_SendsOnlySetFields(t *testing.T) {
	f, srv := startFake(t)
	c := newTestClient(t, nil, srv.URL)

	name := "Max"
	pet, err := c.UpdatePet(context.Background(), "p1", domain.UpdatePetRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Max", pet.Name)

	_, _, body := f.last()
	assert.Equal(t, map[string]any{"name": "Max"}, body)
}

func TestClient_DeleteAndLogout_NoContent(t *testing.T) {
	_, srv := startFake(t)
	c := newTestClient(t, nil, srv.URL)

	require.NoError(t, c.DeletePet(context.Background(), "p1"))
	require.NoError(t, c.Logout(context.Background(), "rt"))
}

func TestClient_Refresh(t *testing.T) {
	f, srv := startFake(t)
	c := newTestClient(t, nil, srv.URL)

	tokens, err := c.Refresh(context.Background(), "rt")
	require.NoError(t, err)
	assert.Equal(t, "at2", tokens.AccessToken)

	_, _, body := f.last()
	assert.Equal(t, "rt", body["refresh_token"])
}

func TestClient_PetStats_DecodesEnvelope(t *testing.T) {
	_, srv := startFake(t)
	c := newTestClient(t, nil, srv.URL)

	resp, err := c.PetStats(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, resp.Pet)
	assert.Equal(t, "p1", resp.Pet.ID)
	assert.Equal(t, 4, resp.Stats.TotalActivities)
	assert.InDelta(t, 0.5, resp.Stats.LevelProgress, 1e-9)
}

func TestClient_ListActivities_QueryAndNullBody(t *testing.T) {
	f, srv := startFake(t)
	c := newTestClient(t, nil, srv.URL)

	acts, err := c.ListActivities(context.Background(), gateway.ActivityFilter{PetID: "p1", Limit: 20})
	require.NoError(t, err)
	assert.NotNil(t, acts)
	assert.Empty(t, acts)

	_, query, _ := f.last()
	assert.Equal(t, "limit=20&pet_id=p1", query)
}

func TestClient_TransportFailure(t *testing.T) {
	_, srv := startFake(t)
	url := srv.URL
	srv.Close()

	c := newTestClient(t, nil, url)
	_, err := c.ListPetTypes(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTransport))
	assert.Equal(t, 0, apperrors.HTTPStatus(err))
	assert.Equal(t, "Failed to fetch pet types", apperrors.UserMessage(err, "Failed to fetch pet types"))
}

func TestClient_CircuitBreaker5xxKeepsMessage(t *testing.T) {
	f, srv := startFake(t)
	f.failNext = 1

	cfg := httpclient.DefaultCircuitBreakerConfig("api-test-5xx")
	doer := httpclient.NewCircuitBreakerClient(httpclient.New(httpclient.DefaultConfig()), cfg, nil, logger.Discard())
	c := newTestClient(t, doer, srv.URL)

	_, err := c.ListPets(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, apperrors.HTTPStatus(err))
	assert.Equal(t, "upstream database unavailable", apperrors.UserMessage(err, "Failed to fetch pets"))

	pets, err := c.ListPets(context.Background())
	require.NoError(t, err)
	assert.Len(t, pets, 1)
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	_, srv := startFake(t)
	c := newTestClient(t, nil, srv.URL, WithRateLimit(0.01, 1))

	_, err := c.ListPetTypes(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.ListPetTypes(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTransport))
}

func TestClient_Metrics(t *testing.T) {
	_, srv := startFake(t)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c := newTestClient(t, nil, srv.URL, WithMetrics(m))

	_, err := c.Login(context.Background(), domain.LoginRequest{Email: "ada@example.com", Password: "hunter22"})
	require.NoError(t, err)
	_, err = c.Login(context.Background(), domain.LoginRequest{Email: "ada@example.com", Password: "nope"})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("login", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("login", "client_error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestClient_Ping(t *testing.T) {
	_, srv := startFake(t)
	c := newTestClient(t, nil, srv.URL+"/")
	require.NoError(t, c.Ping(context.Background()))

	srv.Close()
	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTransport))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", outcome(nil))
	assert.Equal(t, "transport_error", outcome(apperrors.Transport(errors.New("dial"))))
	assert.Equal(t, "server_error", outcome(apperrors.FromStatus(http.StatusServiceUnavailable, "")))
	assert.Equal(t, "client_error", outcome(apperrors.FromStatus(http.StatusConflict, "")))
}

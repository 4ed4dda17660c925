// Package httpapi implements gateway.API over the pettime REST API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/pettime/companion/internal/domain"
	"github.com/pettime/companion/internal/gateway"
	apperrors "github.com/pettime/companion/pkg/errors"
	"github.com/pettime/companion/pkg/httpclient"
	"github.com/pettime/companion/pkg/logger"
	"github.com/pettime/companion/pkg/pagination"
	"github.com/pettime/companion/pkg/tracing"
)

const apiPrefix = "/api/v1"

var _ gateway.API = (*Client)(nil)

// Client talks to the remote API through an httpclient.Doer, normally a
// circuit-breaker-wrapped httpclient.Client.
type Client struct {
	rootURL string
	baseURL string
	doer    httpclient.Doer
	tokens  gateway.TokenSource
	limiter *rate.Limiter
	metrics *Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts gateway.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithRateLimit throttles outbound calls to rps with the given burst. A
// non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMetrics enables per-operation request metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates an API client rooted at baseURL (without the /api/v1 prefix).
func New(baseURL string, doer httpclient.Doer, logger *slog.Logger, opts ...Option) *Client {
	root := strings.TrimRight(baseURL, "/")
	c := &Client{
		rootURL: root,
		baseURL: root + apiPrefix,
		doer:    doer,
		tracer:  tracing.Tracer("github.com/pettime/companion/internal/gateway/httpapi"),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call describes a single API round trip.
type call struct {
	op     string
	method string
	path   string
	query  url.Values
	auth   bool
	in     any
	out    any
}

func (c *Client) do(ctx context.Context, cl call) (err error) {
	ctx, span := c.tracer.Start(ctx, "api."+cl.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", cl.method),
			attribute.String("api.operation", cl.op),
		),
	)
	start := time.Now()
	defer func() {
		c.metrics.observe(cl.op, time.Since(start).Seconds(), err)
		tracing.EndSpan(span, err)
	}()

	if c.limiter != nil {
		if werr := c.limiter.Wait(ctx); werr != nil {
			return apperrors.Transport(fmt.Errorf("rate limit wait: %w", werr))
		}
	}

	var body io.Reader = http.NoBody
	if cl.in != nil {
		payload, merr := json.Marshal(cl.in)
		if merr != nil {
			return fmt.Errorf("marshal %s request: %w", cl.op, merr)
		}
		body = bytes.NewReader(payload)
	}

	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, target, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", cl.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	requestID := logger.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = logger.WithRequestID(ctx, requestID)
	}
	req.Header.Set("X-Request-ID", requestID)

	if cl.auth && c.tokens != nil {
		token, terr := c.tokens.AccessToken(ctx)
		if terr != nil {
			return fmt.Errorf("read access token: %w", terr)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	tracing.InjectHeaders(ctx, propagation.HeaderCarrier(req.Header))

	log := logger.WithContext(ctx, c.logger)

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			log.Warn("api call failed", slog.String("operation", cl.op), slog.Int("status", appErr.Status))
			return err
		}
		log.Warn("api call transport failure", slog.String("operation", cl.op), slog.String("error", err.Error()))
		return apperrors.Transport(err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Debug("api call rejected", slog.String("operation", cl.op), slog.Int("status", resp.StatusCode))
		return httpclient.ParseResponseError(resp)
	}

	if cl.out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(cl.out); err != nil {
		return fmt.Errorf("decode %s response: %w", cl.op, err)
	}

	log.Debug("api call succeeded",
		slog.String("operation", cl.op),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Ping checks that the API answers its health endpoint.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.observe("ping", time.Since(start).Seconds(), err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.rootURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return apperrors.Transport(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return httpclient.ParseResponseError(resp)
	}
	return nil
}

// --- auth ---

// Register creates an account.
func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error) {
	var out domain.AuthResponse
	if err := c.do(ctx, call{op: "register", method: http.MethodPost, path: "/auth/register", in: req, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResponse, error) {
	var out domain.AuthResponse
	if err := c.do(ctx, call{op: "login", method: http.MethodPost, path: "/auth/login", in: req, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

type refreshTokenBody struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.AuthTokens, error) {
	var out domain.AuthTokens
	in := refreshTokenBody{RefreshToken: refreshToken}
	if err := c.do(ctx, call{op: "refresh", method: http.MethodPost, path: "/auth/refresh", in: in, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the refresh token server-side.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	in := refreshTokenBody{RefreshToken: refreshToken}
	return c.do(ctx, call{op: "logout", method: http.MethodPost, path: "/auth/logout", in: in})
}

// --- pets ---

// ListPets returns the signed-in user's pets.
func (c *Client) ListPets(ctx context.Context) ([]domain.Pet, error) {
	var out []domain.Pet
	if err := c.do(ctx, call{op: "list_pets", method: http.MethodGet, path: "/pets", auth: true, out: &out}); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Pet{}
	}
	return out, nil
}

// GetPet fetches a single pet.
func (c *Client) GetPet(ctx context.Context, id string) (*domain.Pet, error) {
	var out domain.Pet
	if err := c.do(ctx, call{op: "get_pet", method: http.MethodGet, path: "/pets/" + url.PathEscape(id), auth: true, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePet creates a pet.
func (c *Client) CreatePet(ctx context.Context, req domain.CreatePetRequest) (*domain.Pet, error) {
	var out domain.Pet
	if err := c.do(ctx, call{op: "create_pet", method: http.MethodPost, path: "/pets", auth: true, in: req, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePet applies a partial update.
func (c *Client) UpdatePet(ctx context.Context, id string, req domain.UpdatePetRequest) (*domain.Pet, error) {
	var out domain.Pet
	if err := c.do(ctx, call{op: "update_pet", method: http.MethodPut, path: "/pets/" + url.PathEscape(id), auth: true, in: req, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePet deletes a pet.
func (c *Client) DeletePet(ctx context.Context, id string) error {
	return c.do(ctx, call{op: "delete_pet", method: http.MethodDelete, path: "/pets/" + url.PathEscape(id), auth: true})
}

// PetStats fetches the pet's derived statistics.
func (c *Client) PetStats(ctx context.Context, id string) (*domain.PetStatsResponse, error) {
	var out domain.PetStatsResponse
	if err := c.do(ctx, call{op: "pet_stats", method: http.MethodGet, path: "/pets/" + url.PathEscape(id) + "/stats", auth: true, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPetTypes returns the pet type catalog. The endpoint is public.
func (c *Client) ListPetTypes(ctx context.Context) ([]domain.PetType, error) {
	var out []domain.PetType
	if err := c.do(ctx, call{op: "list_pet_types", method: http.MethodGet, path: "/pet-types", out: &out}); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.PetType{}
	}
	return out, nil
}

// --- activities ---

// ListGameTypes returns the game catalog. The endpoint is public.
func (c *Client) ListGameTypes(ctx context.Context) ([]domain.GameType, error) {
	var out []domain.GameType
	if err := c.do(ctx, call{op: "list_game_types", method: http.MethodGet, path: "/game-types", out: &out}); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.GameType{}
	}
	return out, nil
}

// ListActivities returns activities matching filter.
func (c *Client) ListActivities(ctx context.Context, filter gateway.ActivityFilter) ([]domain.Activity, error) {
	q := url.Values{}
	if filter.PetID != "" {
		q.Set("pet_id", filter.PetID)
	}
	if filter.GameTypeID != "" {
		q.Set("game_type_id", filter.GameTypeID)
	}
	pagination.Params{Limit: filter.Limit, Offset: filter.Offset}.Apply(q)

	var out []domain.Activity
	if err := c.do(ctx, call{op: "list_activities", method: http.MethodGet, path: "/activities", query: q, auth: true, out: &out}); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Activity{}
	}
	return out, nil
}

// CreateActivity starts or uploads an activity.
func (c *Client) CreateActivity(ctx context.Context, req domain.CreateActivityRequest) (*domain.Activity, error) {
	var out domain.Activity
	if err := c.do(ctx, call{op: "create_activity", method: http.MethodPost, path: "/activities", auth: true, in: req, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateActivity finishes an activity or attaches game data.
func (c *Client) UpdateActivity(ctx context.Context, id string, req domain.UpdateActivityRequest) (*domain.Activity, error) {
	var out domain.Activity
	if err := c.do(ctx, call{op: "update_activity", method: http.MethodPut, path: "/activities/" + url.PathEscape(id), auth: true, in: req, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// SyncActivities uploads a batch of activities recorded offline.
func (c *Client) SyncActivities(ctx context.Context, req domain.SyncActivitiesRequest) ([]domain.Activity, error) {
	var out []domain.Activity
	if err := c.do(ctx, call{op: "sync_activities", method: http.MethodPost, path: "/activities/sync", auth: true, in: req, out: &out}); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Activity{}
	}
	return out, nil
}

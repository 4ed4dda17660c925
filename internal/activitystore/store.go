// Package activitystore tracks play sessions and the game catalog.
package activitystore

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/pettime/companion/internal/domain"
	"github.com/pettime/companion/internal/gateway"
	"github.com/pettime/companion/internal/state"
	apperrors "github.com/pettime/companion/pkg/errors"
	"github.com/pettime/companion/pkg/validator"
)

// Fallback messages used when a failure carries no displayable text.
const (
	MsgFetchGameTypesFailed  = "Failed to fetch game types"
	MsgFetchActivitiesFailed = "Failed to fetch activities"
	MsgStartFailed           = "Failed to start activity"
	MsgFinishFailed          = "Failed to finish activity"
	MsgSyncFailed            = "Failed to sync activities"
)

// State is the observable store snapshot. Activities are newest first.
type State struct {
	GameTypes  []domain.GameType `json:"game_types"`
	Activities []domain.Activity `json:"activities"`
	IsLoading  bool              `json:"is_loading"`
	Error      string            `json:"error,omitempty"`

	inFlight int
	listGen  uint64
}

// GamesFor returns the enabled games playable with the given pet type.
func (s State) GamesFor(petTypeID string) []domain.GameType {
	var out []domain.GameType
	for _, g := range s.GameTypes {
		if g.Enabled && g.Supports(petTypeID) {
			out = append(out, g)
		}
	}
	return out
}

// Store is the activity state manager. It is safe for concurrent use.
type Store struct {
	api    gateway.ActivityAPI
	state  *state.Container[State]
	logger *slog.Logger
	now    func() time.Time
}

// New creates an empty store.
func New(api gateway.ActivityAPI, logger *slog.Logger) *Store {
	return &Store{
		api:    api,
		state:  state.New(State{GameTypes: []domain.GameType{}, Activities: []domain.Activity{}}),
		logger: logger.With(slog.String("store", "activities")),
		now:    time.Now,
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	return s.state.Snapshot()
}

// Version returns the number of committed transitions.
func (s *Store) Version() uint64 {
	return s.state.Version()
}

// Subscribe registers fn for every committed transition.
func (s *Store) Subscribe(fn state.Listener[State]) (unsubscribe func()) {
	return s.state.Subscribe(fn)
}

// FetchGameTypes loads the game catalog without touching IsLoading.
func (s *Store) FetchGameTypes(ctx context.Context) error {
	types, err := s.api.ListGameTypes(ctx)
	if err != nil {
		msg := apperrors.UserMessage(err, MsgFetchGameTypesFailed)
		s.state.Update(func(st State) State {
			st.Error = msg
			return st
		})
		s.logger.WarnContext(ctx, "fetch game types failed", slog.String("error", err.Error()))
		return err
	}

	s.state.Update(func(st State) State {
		st.GameTypes = slices.Clone(types)
		return st
	})
	return nil
}

// FetchActivities replaces the list with the server's, optionally scoped to
// one pet (empty petID lists all).
func (s *Store) FetchActivities(ctx context.Context, petID string) error {
	issued := s.begin()

	acts, err := s.api.ListActivities(ctx, gateway.ActivityFilter{PetID: petID})
	if err != nil {
		return s.fail(ctx, "fetch activities", err, MsgFetchActivitiesFailed)
	}

	s.state.Update(func(st State) State {
		st = finish(st)
		if st.listGen != issued.listGen {
			s.logger.DebugContext(ctx, "discarding stale activity list")
			return st
		}
		st.Activities = slices.Clone(acts)
		return st
	})
	return nil
}

// Start records a new activity. A client id is assigned when the request
// has none so that a retried upload deduplicates server-side.
func (s *Store) Start(ctx context.Context, req domain.CreateActivityRequest) (*domain.Activity, error) {
	req = s.prepare(req)
	if err := validator.Check(req); err != nil {
		return nil, s.reject(ctx, "start activity", err, MsgStartFailed)
	}
	s.begin()

	act, err := s.api.CreateActivity(ctx, req)
	if err != nil {
		return nil, s.fail(ctx, "start activity", err, MsgStartFailed)
	}

	s.state.Update(func(st State) State {
		st = finish(st)
		st.Activities = merge(st.Activities, []domain.Activity{*act})
		st.listGen++
		return st
	})
	s.logger.InfoContext(ctx, "activity started",
		slog.String("activity_id", act.ID),
		slog.String("pet_id", act.PetID),
	)
	return act, nil
}

// Finish ends the activity with the given id. gameData may be nil.
func (s *Store) Finish(ctx context.Context, id string, endedAt time.Time, gameData json.RawMessage) (*domain.Activity, error) {
	if id == "" {
		return nil, s.reject(ctx, "finish activity", apperrors.InvalidInput("activity id is required"), MsgFinishFailed)
	}
	if endedAt.IsZero() {
		endedAt = s.now()
	}
	s.begin()

	act, err := s.api.UpdateActivity(ctx, id, domain.UpdateActivityRequest{EndedAt: &endedAt, GameData: gameData})
	if err != nil {
		return nil, s.fail(ctx, "finish activity", err, MsgFinishFailed)
	}

	s.state.Update(func(st State) State {
		st = finish(st)
		if i := slices.IndexFunc(st.Activities, func(a domain.Activity) bool { return a.ID == id }); i >= 0 {
			st.Activities = slices.Clone(st.Activities)
			st.Activities[i] = *act
		}
		st.listGen++
		return st
	})
	return act, nil
}

// Sync uploads activities recorded offline and merges the server's copies.
func (s *Store) Sync(ctx context.Context, reqs []domain.CreateActivityRequest) ([]domain.Activity, error) {
	batch := domain.SyncActivitiesRequest{Activities: make([]domain.CreateActivityRequest, len(reqs))}
	for i, r := range reqs {
		batch.Activities[i] = s.prepare(r)
	}
	if err := validator.Check(batch); err != nil {
		return nil, s.reject(ctx, "sync activities", err, MsgSyncFailed)
	}
	s.begin()

	acts, err := s.api.SyncActivities(ctx, batch)
	if err != nil {
		return nil, s.fail(ctx, "sync activities", err, MsgSyncFailed)
	}

	s.state.Update(func(st State) State {
		st = finish(st)
		st.Activities = merge(st.Activities, acts)
		st.listGen++
		return st
	})
	s.logger.InfoContext(ctx, "activities synced", slog.Int("count", len(acts)))
	return acts, nil
}

// ClearError drops the last recorded error.
func (s *Store) ClearError() {
	s.state.Update(func(st State) State {
		st.Error = ""
		return st
	})
}

func (s *Store) prepare(req domain.CreateActivityRequest) domain.CreateActivityRequest {
	if req.ClientID == nil || *req.ClientID == "" {
		id := uuid.NewString()
		req.ClientID = &id
	}
	if req.StartedAt.IsZero() {
		req.StartedAt = s.now()
	}
	return req
}

func (s *Store) begin() State {
	return s.state.Update(func(st State) State {
		st.inFlight++
		st.IsLoading = true
		st.Error = ""
		return st
	})
}

func finish(st State) State {
	if st.inFlight > 0 {
		st.inFlight--
	}
	st.IsLoading = st.inFlight > 0
	return st
}

func (s *Store) fail(ctx context.Context, op string, err error, fallback string) error {
	msg := apperrors.UserMessage(err, fallback)
	s.state.Update(func(st State) State {
		st = finish(st)
		st.Error = msg
		return st
	})
	s.logger.WarnContext(ctx, op+" failed", slog.String("error", err.Error()))
	return err
}

func (s *Store) reject(ctx context.Context, op string, err error, fallback string) error {
	msg := apperrors.UserMessage(err, fallback)
	s.state.Update(func(st State) State {
		st.Error = msg
		return st
	})
	s.logger.DebugContext(ctx, op+" rejected", slog.String("error", err.Error()))
	return err
}

// merge replaces existing activities matched by id or client id and puts the
// rest in front, newest first.
func merge(existing, incoming []domain.Activity) []domain.Activity {
	out := slices.Clone(existing)
	var fresh []domain.Activity
	for _, a := range incoming {
		i := slices.IndexFunc(out, func(e domain.Activity) bool { return sameActivity(e, a) })
		if i >= 0 {
			out[i] = a
			continue
		}
		fresh = append(fresh, a)
	}
	slices.SortStableFunc(fresh, func(a, b domain.Activity) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return append(fresh, out...)
}

func sameActivity(a, b domain.Activity) bool {
	if a.ID != "" && a.ID == b.ID {
		return true
	}
	return a.ClientID != nil && b.ClientID != nil && *a.ClientID == *b.ClientID
}

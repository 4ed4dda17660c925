// Package petstore keeps the signed-in user's pets, the current selection,
// its statistics and the pet type catalog in sync with the remote API.
package petstore

import (
	"context"
	"log/slog"
	"slices"

	"github.com/pettime/companion/internal/domain"
	"github.com/pettime/companion/internal/gateway"
	"github.com/pettime/companion/internal/state"
	apperrors "github.com/pettime/companion/pkg/errors"
	"github.com/pettime/companion/pkg/validator"
)

// Fallback messages used when a failure carries no displayable text.
const (
	MsgFetchPetsFailed     = "Failed to fetch pets"
	MsgFetchPetFailed      = "Failed to fetch pet"
	MsgFetchPetTypesFailed = "Failed to fetch pet types"
	MsgFetchStatsFailed    = "Failed to fetch stats"
	MsgCreateFailed        = "Failed to create pet"
	MsgUpdateFailed        = "Failed to update pet"
	MsgDeleteFailed        = "Failed to delete pet"
)

// State is the observable store snapshot. Slices are never mutated after a
// commit; treat them as read-only.
type State struct {
	Pets      []domain.Pet     `json:"pets"`
	Selected  *domain.Pet      `json:"selected"`
	PetTypes  []domain.PetType `json:"pet_types"`
	Stats     *domain.PetStats `json:"stats"`
	IsLoading bool             `json:"is_loading"`
	Error     string           `json:"error,omitempty"`

	inFlight int
	// selectionGen changes whenever Selected changes identity.
	selectionGen uint64
	// listGen changes whenever a local mutation rewrites Pets.
	listGen uint64
}

// Store is the pet state manager. It is safe for concurrent use.
type Store struct {
	api    gateway.PetAPI
	state  *state.Container[State]
	logger *slog.Logger
}

// New creates an empty store.
func New(api gateway.PetAPI, logger *slog.Logger) *Store {
	return &Store{
		api:    api,
		state:  state.New(State{Pets: []domain.Pet{}, PetTypes: []domain.PetType{}}),
		logger: logger.With(slog.String("store", "pets")),
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

// FetchPets replaces the collection with the server's. A response is not
// committed when a local create, update or delete landed while it was in
// flight; the caller still gets the error, if any.
func (s *Store) FetchPets(ctx context.Context) error {
	issued := s.begin()

	pets, err := s.api.ListPets(ctx)
	if err != nil {
		return s.fail(ctx, "fetch pets", err, MsgFetchPetsFailed)
	}

	s.state.Update(func(st State) State {
		st = finish(st)
		if st.listGen != issued.listGen {
			s.logger.DebugContext(ctx, "discarding stale pet list")
			return st
		}
		st.Pets = slices.Clone(pets)
		if st.Selected != nil {
			if i := indexOf(st.Pets, st.Selected.ID); i >= 0 {
				st.Selected = ptr(st.Pets[i])
			}
		}
		return st
	})
	return nil
}

// FetchPet loads one pet and merges it into the collection by id.
func (s *Store) FetchPet(ctx context.Context, id string) (*domain.Pet, error) {
	if id == "" {
		return nil, s.reject(ctx, "fetch pet", apperrors.InvalidInput("pet id is required"), MsgFetchPetFailed)
	}
	s.begin()

	pet, err := s.api.GetPet(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "fetch pet", err, MsgFetchPetFailed)
	}

	s.state.Update(func(st State) State {
		st = finish(st)
		st.Pets = upsert(st.Pets, *pet)
		if st.Selected != nil && st.Selected.ID == pet.ID {
			st.Selected = ptr(*pet)
		}
		st.listGen++
		return st
	})
	return pet, nil
}

// FetchPetTypes loads the type catalog. It never touches IsLoading.
func (s *Store) FetchPetTypes(ctx context.Context) error {
	types, err := s.api.ListPetTypes(ctx)
	if err != nil {
		msg := apperrors.UserMessage(err, MsgFetchPetTypesFailed)
		s.state.Update(func(st State) State {
			st.Error = msg
			return st
		})
		s.logger.WarnContext(ctx, "fetch pet types failed", slog.String("error", err.Error()))
		return err
	}

	s.state.Update(func(st State) State {
		st.PetTypes = slices.Clone(types)
		return st
	})
	return nil
}

// FetchStats loads statistics for petID. They are committed only if petID is
// still the selected pet and the selection has not changed since the call
// was issued; the response is returned either way.
func (s *Store) FetchStats(ctx context.Context, petID string) (*domain.PetStats, error) {
	if petID == "" {
		return nil, s.reject(ctx, "fetch stats", apperrors.InvalidInput("pet id is required"), MsgFetchStatsFailed)
	}
	issued := s.begin()

	resp, err := s.api.PetStats(ctx, petID)
	if err != nil {
		return nil, s.fail(ctx, "fetch stats", err, MsgFetchStatsFailed)
	}

	stats := resp.Stats
	s.state.Update(func(st State) State {
		st = finish(st)
		if st.selectionGen != issued.selectionGen || st.Selected == nil || st.Selected.ID != petID {
			s.logger.DebugContext(ctx, "discarding stale stats", slog.String("pet_id", petID))
			return st
		}
		st.Stats = ptr(stats)
		if resp.Pet != nil && resp.Pet.ID == petID {
			st.Selected = ptr(*resp.Pet)
			if i := indexOf(st.Pets, petID); i >= 0 {
				st.Pets = replaceAt(st.Pets, i, *resp.Pet)
			}
		}
		return st
	})
	return &stats, nil
}

// Select makes pet the current selection (nil clears it) and drops any
// statistics fetched for the previous one.
func (s *Store) Select(pet *domain.Pet) {
	s.state.Update(func(st State) State {
		if pet == nil {
			st.Selected = nil
		} else {
			st.Selected = ptr(*pet)
		}
		st.Stats = nil
		st.selectionGen++
		return st
	})
}

// Create creates a pet, appends it and selects it in one transition.
func (s *Store) Create(ctx context.Context, req domain.CreatePetRequest) (*domain.Pet, error) {
	if err := validator.Check(req); err != nil {
		return nil, s.reject(ctx, "create pet", err, MsgCreateFailed)
	}
	s.begin()

	pet, err := s.api.CreatePet(ctx, req)
	if err != nil {
		return nil, s.fail(ctx, "create pet", err, MsgCreateFailed)
	}

	s.state.Update(func(st State) State {
		st = finish(st)
		st.Pets = upsert(st.Pets, *pet)
		st.Selected = ptr(*pet)
		st.Stats = nil
		st.selectionGen++
		st.listGen++
		return st
	})
	s.logger.InfoContext(ctx, "pet created", slog.String("pet_id", pet.ID))
	return pet, nil
}

// Update applies a partial update to the pet with the given id. Ids unknown
// locally are still sent to the server.
func (s *Store) Update(ctx context.Context, id string, req domain.UpdatePetRequest) (*domain.Pet, error) {
	if id == "" {
		return nil, s.reject(ctx, "update pet", apperrors.InvalidInput("pet id is required"), MsgUpdateFailed)
	}
	if req.IsEmpty() {
		return nil, s.reject(ctx, "update pet", apperrors.InvalidInput("nothing to update"), MsgUpdateFailed)
	}
	if err := validator.Check(req); err != nil {
		return nil, s.reject(ctx, "update pet", err, MsgUpdateFailed)
	}
	s.begin()

	pet, err := s.api.UpdatePet(ctx, id, req)
	if err != nil {
		return nil, s.fail(ctx, "update pet", err, MsgUpdateFailed)
	}

	s.state.Update(func(st State) State {
		st = finish(st)
		if i := indexOf(st.Pets, id); i >= 0 {
			st.Pets = replaceAt(st.Pets, i, *pet)
		}
		if st.Selected != nil && st.Selected.ID == id {
			st.Selected = ptr(*pet)
		}
		st.listGen++
		return st
	})
	return pet, nil
}

// Delete removes the pet with the given id, deselecting it if selected.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return s.reject(ctx, "delete pet", apperrors.InvalidInput("pet id is required"), MsgDeleteFailed)
	}
	s.begin()

	if err := s.api.DeletePet(ctx, id); err != nil {
		return s.fail(ctx, "delete pet", err, MsgDeleteFailed)
	}

	s.state.Update(func(st State) State {
		st = finish(st)
		st.Pets = slices.DeleteFunc(slices.Clone(st.Pets), func(p domain.Pet) bool { return p.ID == id })
		if st.Selected != nil && st.Selected.ID == id {
			st.Selected = nil
			st.Stats = nil
			st.selectionGen++
		}
		st.listGen++
		return st
	})
	s.logger.InfoContext(ctx, "pet deleted", slog.String("pet_id", id))
	return nil
}

// ClearError drops the last recorded error.
func (s *Store) ClearError() {
	s.state.Update(func(st State) State {
		st.Error = ""
		return st
	})
}

// begin marks one more operation in flight and returns the snapshot the
// operation was issued under.
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

// fail ends an in-flight operation with an error.
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

// reject records an error for an operation that never started.
func (s *Store) reject(ctx context.Context, op string, err error, fallback string) error {
	msg := apperrors.UserMessage(err, fallback)
	s.state.Update(func(st State) State {
		st.Error = msg
		return st
	})
	s.logger.DebugContext(ctx, op+" rejected", slog.String("error", err.Error()))
	return err
}

func indexOf(pets []domain.Pet, id string) int {
	return slices.IndexFunc(pets, func(p domain.Pet) bool { return p.ID == id })
}

func replaceAt(pets []domain.Pet, i int, pet domain.Pet) []domain.Pet {
	out := slices.Clone(pets)
	out[i] = pet
	return out
}

func upsert(pets []domain.Pet, pet domain.Pet) []domain.Pet {
	if i := indexOf(pets, pet.ID); i >= 0 {
		return replaceAt(pets, i, pet)
	}
	out := make([]domain.Pet, 0, len(pets)+1)
	out = append(out, pets...)
	return append(out, pet)
}

func ptr[T any](v T) *T {
	return &v
}

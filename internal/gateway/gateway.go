// Package gateway defines the remote API the client stores talk to. Every
// operation either returns its typed payload or a classified *apperrors.AppError
// (possibly wrapped); transport failures carry apperrors.ErrTransport.
package gateway

import (
	"context"

	"github.com/pettime/companion/internal/domain"
)

// AuthAPI covers account and token operations.
type AuthAPI interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error)
	Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.AuthTokens, error)
	Logout(ctx context.Context, refreshToken string) error
}

// PetAPI covers pets, their statistics and the pet type catalog.
type PetAPI interface {
	ListPets(ctx context.Context) ([]domain.Pet, error)
	GetPet(ctx context.Context, id string) (*domain.Pet, error)
	CreatePet(ctx context.Context, req domain.CreatePetRequest) (*domain.Pet, error)
	UpdatePet(ctx context.Context, id string, req domain.UpdatePetRequest) (*domain.Pet, error)
	DeletePet(ctx context.Context, id string) error
	PetStats(ctx context.Context, id string) (*domain.PetStatsResponse, error)
	ListPetTypes(ctx context.Context) ([]domain.PetType, error)
}

// ActivityAPI covers play sessions and the game catalog.
type ActivityAPI interface {
	ListGameTypes(ctx context.Context) ([]domain.GameType, error)
	ListActivities(ctx context.Context, filter ActivityFilter) ([]domain.Activity, error)
	CreateActivity(ctx context.Context, req domain.CreateActivityRequest) (*domain.Activity, error)
	UpdateActivity(ctx context.Context, id string, req domain.UpdateActivityRequest) (*domain.Activity, error)
	SyncActivities(ctx context.Context, req domain.SyncActivitiesRequest) ([]domain.Activity, error)
}

// API is the full remote surface.
type API interface {
	AuthAPI
	PetAPI
	ActivityAPI
}

// ActivityFilter narrows an activity listing. Zero values are omitted.
type ActivityFilter struct {
	PetID      string
	GameTypeID string
	Limit      int
	Offset     int
}

// TokenSource supplies the bearer token attached to authenticated requests.
// An empty token means the request is sent anonymously.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

// AccessToken calls f.
func (f TokenSourceFunc) AccessToken(ctx context.Context) (string, error) {
	return f(ctx)
}

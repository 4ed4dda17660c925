package domain

import (
	"encoding/json"
	"time"
)

// GameType is an entry of the game catalog. XPConfig is opaque.
type GameType struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Description       *string         `json:"description,omitempty"`
	Icon              *string         `json:"icon,omitempty"`
	XPConfig          json.RawMessage `json:"xp_config,omitempty"`
	SupportedPetTypes []string        `json:"supported_pet_types"`
	Enabled           bool            `json:"enabled"`
}

// Supports reports whether the game can be played with the given pet type.
func (g GameType) Supports(petTypeID string) bool {
	for _, id := range g.SupportedPetTypes {
		if id == petTypeID {
			return true
		}
	}
	return false
}

// Activity is one play session of a pet.
type Activity struct {
	ID              string          `json:"id"`
	PetID           string          `json:"pet_id"`
	GameTypeID      string          `json:"game_type_id"`
	GameType        *GameType       `json:"game_type,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`
	DurationSeconds *int            `json:"duration_seconds,omitempty"`
	XPEarned        int             `json:"xp_earned"`
	GameData        json.RawMessage `json:"game_data,omitempty"`
	ClientID        *string         `json:"client_id,omitempty"`
	SyncedAt        *time.Time      `json:"synced_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// CreateActivityRequest starts (or uploads) an activity. ClientID lets the
// server deduplicate uploads of the same session.
type CreateActivityRequest struct {
	PetID      string          `json:"pet_id" validate:"required,notblank"`
	GameTypeID string          `json:"game_type_id" validate:"required,notblank"`
	StartedAt  time.Time       `json:"started_at" validate:"required"`
	EndedAt    *time.Time      `json:"ended_at,omitempty"`
	GameData   json.RawMessage `json:"game_data,omitempty"`
	ClientID   *string         `json:"client_id,omitempty" validate:"omitempty,uuid"`
}

// UpdateActivityRequest finishes an activity or attaches game data.
type UpdateActivityRequest struct {
	EndedAt  *time.Time      `json:"ended_at,omitempty"`
	GameData json.RawMessage `json:"game_data,omitempty"`
}

// SyncActivitiesRequest is the batch upload payload.
type SyncActivitiesRequest struct {
	Activities []CreateActivityRequest `json:"activities" validate:"required,min=1,dive"`
}

// WalkGameData is the game_data shape of walk activities.
type WalkGameData struct {
	DistanceMeters     float64     `json:"distance_meters"`
	Route              [][]float64 `json:"route,omitempty"`
	AvgSpeedKmh        float64     `json:"avg_speed_kmh,omitempty"`
	NewZonesDiscovered []string    `json:"new_zones_discovered,omitempty"`
	Weather            string      `json:"weather,omitempty"`
}

// FetchGameData is the game_data shape of fetch activities.
type FetchGameData struct {
	Throws      int     `json:"throws"`
	Returns     int     `json:"returns"`
	SuccessRate float64 `json:"success_rate"`
	MaxCombo    int     `json:"max_combo"`
}

package domain

import (
	"encoding/json"
	"time"
)

// Mood is the pet's current emotional state. The set is closed, but values
// the client does not know about still decode; see Display.
type Mood string

const (
	MoodHappy   Mood = "happy"
	MoodContent Mood = "content"
	MoodTired   Mood = "tired"
	MoodSad     Mood = "sad"
	MoodBored   Mood = "bored"
)

// DefaultMood is what unknown moods render as.
const DefaultMood = MoodContent

// Valid reports whether m is one of the known moods.
func (m Mood) Valid() bool {
	switch m {
	case MoodHappy, MoodContent, MoodTired, MoodSad, MoodBored:
		return true
	}
	return false
}

// Display returns the mood to render, degrading unknown values to DefaultMood.
func (m Mood) Display() Mood {
	if m.Valid() {
		return m
	}
	return DefaultMood
}

// Emoji is a compact rendering used by the CLI.
func (m Mood) Emoji() string {
	switch m.Display() {
	case MoodHappy:
		return "😄"
	case MoodTired:
		return "😴"
	case MoodSad:
		return "😢"
	case MoodBored:
		return "😐"
	default:
		return "🙂"
	}
}

// PetType is an entry of the pet type catalog. Config is an opaque document
// whose shape depends on the type; decode it with DecodeOpaque.
type PetType struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Icon   *string         `json:"icon,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Pet is one user-owned tracked subject.
type Pet struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	PetTypeID      string     `json:"pet_type_id"`
	PetType        *PetType   `json:"pet_type,omitempty"`
	Name           string     `json:"name"`
	Breed          *string    `json:"breed,omitempty"`
	AvatarURL      *string    `json:"avatar_url,omitempty"`
	BirthDate      *time.Time `json:"birth_date,omitempty"`
	TotalXP        int        `json:"total_xp"`
	Level          int        `json:"level"`
	Mood           Mood       `json:"mood"`
	StreakDays     int        `json:"streak_days"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PetStats is the server-computed aggregate for one pet.
type PetStats struct {
	TotalActivities      int     `json:"total_activities"`
	TotalDurationSeconds int     `json:"total_duration_seconds"`
	TotalDistanceMeters  float64 `json:"total_distance_meters"`
	CurrentStreak        int     `json:"current_streak"`
	LongestStreak        int     `json:"longest_streak"`
	XPToNextLevel        int     `json:"xp_to_next_level"`
	LevelProgress        float64 `json:"level_progress"`
}

// PetStatsResponse is the payload of the stats endpoint.
type PetStatsResponse struct {
	Pet   *Pet     `json:"pet,omitempty"`
	Stats PetStats `json:"stats"`
}

// CreatePetRequest holds the parameters for creating a pet.
type CreatePetRequest struct {
	PetTypeID string     `json:"pet_type_id" validate:"required,notblank"`
	Name      string     `json:"name" validate:"required,notblank,max=100"`
	Breed     *string    `json:"breed,omitempty"`
	AvatarURL *string    `json:"avatar_url,omitempty" validate:"omitempty,url"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
}

// UpdatePetRequest is a partial update; nil fields are left unchanged.
type UpdatePetRequest struct {
	Name      *string    `json:"name,omitempty" validate:"omitempty,notblank,max=100"`
	Breed     *string    `json:"breed,omitempty"`
	AvatarURL *string    `json:"avatar_url,omitempty" validate:"omitempty,url"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
}

// IsEmpty reports whether the update carries no fields.
func (r UpdatePetRequest) IsEmpty() bool {
	return r.Name == nil && r.Breed == nil && r.AvatarURL == nil && r.BirthDate == nil
}

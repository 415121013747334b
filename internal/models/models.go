package models

import (
	"time"

	"github.com/google/uuid"
)

// GenerationRequest describes one soundscape generation. Immutable once
// constructed; the orchestrator works on a clamped copy, never in place.
type GenerationRequest struct {
	ID          uuid.UUID `json:"id"`
	Description string    `json:"description"`
	StyleHint   string    `json:"style_hint,omitempty"`
	DurationSec int       `json:"duration_sec"`
	Loop        bool      `json:"loop"`
	ForceLocal  bool      `json:"force_local"`
}

// AudioArtifact is the final output of a generation: a local WAV file in the
// canonical encoding (16 kHz, mono, 16-bit PCM). The orchestrator hands
// ownership to the caller and keeps no reference.
type AudioArtifact struct {
	Path        string  `json:"path"`
	Provider    string  `json:"provider"`
	DurationSec float64 `json:"duration_sec"`
	SampleRate  int     `json:"sample_rate"`
	SizeBytes   int64   `json:"size_bytes"`
}

// Generation is the stored record of a request and its outcome.
type Generation struct {
	ID           uuid.UUID  `json:"id"`
	Description  string     `json:"description"`
	StyleHint    *string    `json:"style_hint,omitempty"`
	DurationSec  int        `json:"duration_sec"`
	Loop         bool       `json:"loop"`
	ForceLocal   bool       `json:"force_local"`
	Status       string     `json:"status"` // queued, running, succeeded, failed
	Provider     *string    `json:"provider,omitempty"`
	ArtifactPath *string    `json:"artifact_path,omitempty"`
	ArtifactURL  *string    `json:"artifact_url,omitempty"`
	Trivia       *Trivia    `json:"trivia,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Trivia is a single multiple-choice question about a landmark.
type Trivia struct {
	Question string   `json:"question"`
	Choices  []string `json:"choices"`
	Answer   int      `json:"answer"` // index into Choices
}

// Landmark is one catalog entry loaded from the dataset XML.
type Landmark struct {
	Name        string   `json:"name"`
	Locality    string   `json:"locality,omitempty"`
	Description string   `json:"description,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	WikiURL     string   `json:"wiki_url,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
}

// CreateSoundscapeRequest is the body of POST /v1/soundscapes. Either
// Description or Landmark must be set; Landmark is resolved through the
// catalog. ID is optional and lets a client subscribe to progress events
// before submitting.
type CreateSoundscapeRequest struct {
	ID          *uuid.UUID `json:"id,omitempty"`
	Description string     `json:"description,omitempty"`
	Landmark    string     `json:"landmark,omitempty"`
	Style       string     `json:"style,omitempty"`
	DurationSec int        `json:"duration_sec"`
	Loop        bool       `json:"loop"`
	ForceLocal  bool       `json:"force_local"`
}

// SoundscapeResponse is returned by POST /v1/soundscapes and GET /v1/soundscapes/{id}.
type SoundscapeResponse struct {
	Generation *Generation `json:"generation"`
	Prompt     string      `json:"prompt,omitempty"`
}

// CallbackPayload is the body the async provider posts to /suno_callback.
type CallbackPayload struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID       string          `json:"task_id"`
		CallbackType string          `json:"callbackType"`
		Data         []CallbackTrack `json:"data"`
	} `json:"data"`
}

// CallbackTrack describes one generated track inside a callback notification.
type CallbackTrack struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Tags     string  `json:"tags"`
	AudioURL string  `json:"audio_url"`
	ImageURL string  `json:"image_url"`
}

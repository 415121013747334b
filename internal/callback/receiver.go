// Package callback implements the inbound completion endpoint for the async
// remote provider. It is the producer side of the staging-area handoff the
// remote adapter polls.
package callback

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/geotone-app/geotone/internal/models"
	"github.com/geotone-app/geotone/internal/staging"
)

// TokenHeader carries the shared secret on callback requests.
const TokenHeader = "X-Callback-Token"

// successCode is the provider's status code for a completed generation.
const successCode = 200

// Receiver handles provider completion notifications.
type Receiver struct {
	area       *staging.Area
	token      string // shared secret; empty disables the check
	httpClient *http.Client
}

// NewReceiver creates a Receiver writing into the given staging area.
func NewReceiver(area *staging.Area, token string, httpTimeout time.Duration) *Receiver {
	if httpTimeout <= 0 {
		httpTimeout = 120 * time.Second
	}
	return &Receiver{
		area:       area,
		token:      token,
		httpClient: &http.Client{Timeout: httpTimeout},
	}
}

// Handle processes POST /suno_callback. Apart from an auth mismatch, the
// provider always gets a success acknowledgement — a 5xx here would only
// trigger provider-side retries and amplify load. Processing failures are
// logged and absorbed; the polling adapter times out and falls back.
func (r *Receiver) Handle(w http.ResponseWriter, req *http.Request) {
	if r.token != "" {
		got := req.Header.Get(TokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(r.token)) != 1 {
			log.Warn().Str("remote_addr", req.RemoteAddr).Msg("Callback rejected: bad or missing token")
			writeJSON(w, http.StatusForbidden, map[string]string{"status": "rejected", "reason": "invalid token"})
			return
		}
	}

	var payload models.CallbackPayload
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		log.Warn().Err(err).Msg("Callback body malformed, acknowledging anyway")
		writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
		return
	}

	r.process(&payload)
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// process stages every track of a successful notification. Failures persist
// nothing.
func (r *Receiver) process(payload *models.CallbackPayload) {
	taskID := payload.Data.TaskID

	if payload.Code != successCode {
		log.Warn().
			Str("task_id", taskID).
			Int("code", payload.Code).
			Str("msg", payload.Msg).
			Msg("Callback reported generation failure, nothing staged")
		return
	}

	if len(payload.Data.Data) == 0 {
		log.Warn().Str("task_id", taskID).Msg("Callback carried no tracks")
		return
	}

	for i, track := range payload.Data.Data {
		if track.AudioURL == "" {
			log.Warn().Str("task_id", taskID).Int("track", i).Msg("Track has no audio_url, skipping")
			continue
		}
		if err := r.stageTrack(taskID, track); err != nil {
			log.Error().
				Err(err).
				Str("task_id", taskID).
				Int("track", i).
				Str("audio_url", track.AudioURL).
				Msg("Failed to stage callback track")
			continue
		}
		log.Info().
			Str("task_id", taskID).
			Str("title", track.Title).
			Float64("duration", track.Duration).
			Msg("Callback track staged")
	}
}

// stageTrack downloads one referenced asset into the staging area.
func (r *Receiver) stageTrack(taskID string, track models.CallbackTrack) error {
	resp, err := r.httpClient.Get(track.AudioURL)
	if err != nil {
		return fmt.Errorf("download track: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("track download returned status %d", resp.StatusCode)
	}

	if _, err := r.area.Put(taskID, resp.Body); err != nil {
		return fmt.Errorf("stage track: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/geotone-app/geotone/internal/audio"
	"github.com/geotone-app/geotone/internal/models"
	"github.com/geotone-app/geotone/internal/staging"
)

// RemoteConfig configures the async remote provider.
type RemoteConfig struct {
	Endpoint    string
	APIKey      string
	CallbackURL string
	PromptLimit int
	WaitWindow  time.Duration
	PollEvery   time.Duration
	HTTPTimeout time.Duration
	OutDir      string
}

// Remote submits generation jobs to a Suno-style HTTP service. A submission
// can resolve three ways: audio bytes inline in the response, a JSON reference
// to downloadable audio, or nothing — in which case completion only arrives
// through the callback receiver and Remote polls the staging area for it.
// It fails after the wait window; falling further back is the orchestrator's job.
type Remote struct {
	cfg        RemoteConfig
	httpClient *http.Client
	area       *staging.Area
}

// submitRequest is the outbound job payload.
type submitRequest struct {
	Prompt      string `json:"prompt"`
	Duration    int    `json:"duration"`
	Format      string `json:"format"`
	Loop        bool   `json:"loop"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// submitResponse covers the JSON shapes the service answers with. task_id and
// audio_url appear either at the top level or nested under data.
type submitResponse struct {
	AudioURL string `json:"audio_url"`
	TaskID   string `json:"task_id"`
	Data     struct {
		AudioURL string `json:"audio_url"`
		TaskID   string `json:"task_id"`
	} `json:"data"`
}

// NewRemote creates the remote provider.
func NewRemote(cfg RemoteConfig, area *staging.Area) *Remote {
	if cfg.PromptLimit <= 0 {
		cfg.PromptLimit = 2500
	}
	if cfg.WaitWindow <= 0 {
		cfg.WaitWindow = 120 * time.Second
	}
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	return &Remote{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		area:       area,
	}
}

func (r *Remote) Name() string { return "remote" }

// Generate submits the job and resolves whichever response shape comes back.
func (r *Remote) Generate(ctx context.Context, req *models.GenerationRequest, prompt string) (string, error) {
	start := time.Now()

	payload := submitRequest{
		Prompt:      truncatePrompt(prompt, r.cfg.PromptLimit),
		Duration:    req.DurationSec,
		Format:      "wav",
		Loop:        req.Loop,
		CallbackURL: r.cfg.CallbackURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal submit payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("submit returned status %d: %s", resp.StatusCode, snippet)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read submit response: %w", err)
	}

	// Shape (a): binary audio inline.
	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "audio/") {
		log.Debug().Str("request_id", req.ID.String()).Str("content_type", contentType).Msg("Remote returned inline audio")
		return r.finish(req, respBody, contentType)
	}

	var parsed submitResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse submit response: %w", err)
	}

	// Shape (b): JSON reference to downloadable audio.
	audioURL := parsed.AudioURL
	if audioURL == "" {
		audioURL = parsed.Data.AudioURL
	}
	if audioURL != "" {
		log.Debug().Str("request_id", req.ID.String()).Str("audio_url", audioURL).Msg("Remote returned audio reference")
		data, ct, err := r.download(ctx, audioURL)
		if err != nil {
			return "", fmt.Errorf("download referenced audio: %w", err)
		}
		return r.finish(req, data, ct)
	}

	// Shape (c): deferred; completion arrives via the callback receiver.
	taskID := parsed.TaskID
	if taskID == "" {
		taskID = parsed.Data.TaskID
	}
	log.Info().
		Str("request_id", req.ID.String()).
		Str("task_id", taskID).
		Dur("wait_window", r.cfg.WaitWindow).
		Msg("Remote job is asynchronous, waiting for callback artifact")

	stagedPath, err := r.area.Wait(ctx, taskID, start, r.cfg.WaitWindow, r.cfg.PollEvery)
	if err != nil {
		return "", fmt.Errorf("wait for callback artifact: %w", err)
	}

	staged, err := os.ReadFile(stagedPath)
	if err != nil {
		return "", fmt.Errorf("read staged artifact: %w", err)
	}
	return r.finish(req, staged, "")
}

// finish normalizes raw audio to the canonical encoding and writes the artifact.
func (r *Remote) finish(req *models.GenerationRequest, data []byte, contentType string) (string, error) {
	wav, err := audio.NormalizeBytes(data, contentType)
	if err != nil {
		return "", fmt.Errorf("normalize remote audio: %w", err)
	}
	return writeArtifact(r.cfg.OutDir, req.ID, wav)
}

// download fetches a referenced audio asset.
func (r *Remote) download(ctx context.Context, url string) ([]byte, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// truncatePrompt caps the prompt to the provider's field limit at a word
// boundary when possible.
func truncatePrompt(prompt string, limit int) string {
	if len(prompt) <= limit {
		return prompt
	}
	cut := prompt[:limit]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	} else {
		for len(cut) > 0 && !utf8.ValidString(cut) {
			cut = cut[:len(cut)-1]
		}
	}
	return cut
}

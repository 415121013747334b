package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/geotone-app/geotone/internal/audio"
	"github.com/geotone-app/geotone/internal/models"
)

// Bridge forwards generation to a relay service that answers with raw audio
// bytes synchronously. All-or-nothing: no async shapes, no partial handling.
type Bridge struct {
	url        string
	httpClient *http.Client
	outDir     string
}

// bridgeRequest is the relay's wire payload.
type bridgeRequest struct {
	Text     string `json:"text"`
	Prompt   string `json:"prompt"`
	Duration int    `json:"duration"`
	Loop     bool   `json:"loop"`
}

// NewBridge creates the bridge provider.
func NewBridge(url string, timeout time.Duration, outDir string) *Bridge {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Bridge{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		outDir:     outDir,
	}
}

func (b *Bridge) Name() string { return "bridge" }

// Generate posts the description and prompt and expects audio in the response body.
func (b *Bridge) Generate(ctx context.Context, req *models.GenerationRequest, prompt string) (string, error) {
	body, err := json.Marshal(bridgeRequest{
		Text:     req.Description,
		Prompt:   prompt,
		Duration: req.DurationSec,
		Loop:     req.Loop,
	})
	if err != nil {
		return "", fmt.Errorf("marshal bridge payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create bridge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("bridge call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("bridge returned status %d: %s", resp.StatusCode, snippet)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read bridge response: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("bridge returned empty body")
	}

	wav, err := audio.NormalizeBytes(data, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("normalize bridge audio: %w", err)
	}

	path, err := writeArtifact(b.outDir, req.ID, wav)
	if err != nil {
		return "", err
	}

	log.Info().Str("request_id", req.ID.String()).Str("path", path).Msg("Bridge generation complete")
	return path, nil
}

// Package orchestrator implements the provider fallback chain. Providers are
// held as an ordered slice of the common interface, so adding or reordering a
// tier is a wiring change in main, not a code change here.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/geotone-app/geotone/internal/audio"
	"github.com/geotone-app/geotone/internal/models"
	"github.com/geotone-app/geotone/internal/provider"
)

// ErrAllProvidersFailed is the single terminal error: every configured tier,
// including the mandatory local fallback, failed.
var ErrAllProvidersFailed = errors.New("audio generation failed after exhausting all configured backends")

// Orchestrator tries providers in a fixed priority order and owns the final
// artifact contract: the caller gets a canonical local WAV or a terminal error.
type Orchestrator struct {
	chain   []provider.Provider // priority order; local must be last
	local   provider.Provider   // force_local bypass target
	ceiling int                 // duration ceiling in seconds
}

// New creates an Orchestrator. chain is the priority-ordered provider list and
// must end with local, the always-available tier.
func New(chain []provider.Provider, local provider.Provider, ceilingSec int) *Orchestrator {
	if ceilingSec <= 0 {
		ceilingSec = 15
	}
	return &Orchestrator{chain: chain, local: local, ceiling: ceilingSec}
}

// Generate runs the fallback chain for one request. The request itself is
// never mutated; clamping happens on a copy.
func (o *Orchestrator) Generate(ctx context.Context, req *models.GenerationRequest, prompt string) (*models.AudioArtifact, error) {
	clamped := *req
	if clamped.DurationSec > o.ceiling {
		log.Debug().
			Int("requested", clamped.DurationSec).
			Int("ceiling", o.ceiling).
			Msg("Duration clamped to system ceiling")
		clamped.DurationSec = o.ceiling
	}
	if clamped.DurationSec <= 0 {
		clamped.DurationSec = o.ceiling
	}

	if clamped.ForceLocal {
		log.Info().Str("request_id", clamped.ID.String()).Msg("force_local set, bypassing remote providers")
		path, err := o.local.Generate(ctx, &clamped, prompt)
		if err != nil {
			// Still a terminal failure: force_local narrows the chain to one tier.
			return nil, fmt.Errorf("local generation: %w: %w", err, ErrAllProvidersFailed)
		}
		return o.artifact(path, o.local.Name())
	}

	var lastErr error
	for _, p := range o.chain {
		path, err := p.Generate(ctx, &clamped, prompt)
		if err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Str("request_id", clamped.ID.String()).
				Str("provider", p.Name()).
				Msg("Provider failed, trying next")
			continue
		}

		log.Info().
			Str("request_id", clamped.ID.String()).
			Str("provider", p.Name()).
			Str("path", path).
			Msg("Generation succeeded")
		return o.artifact(path, p.Name())
	}

	log.Error().
		Err(lastErr).
		Str("request_id", clamped.ID.String()).
		Int("providers", len(o.chain)).
		Msg("All providers exhausted")
	return nil, ErrAllProvidersFailed
}

// artifact stats the written file and fills in the artifact metadata.
func (o *Orchestrator) artifact(path, providerName string) (*models.AudioArtifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	// Duration from the PCM payload; header is 44 bytes for our canonical files.
	dataBytes := info.Size() - 44
	if dataBytes < 0 {
		dataBytes = 0
	}
	duration := float64(dataBytes) / float64(audio.SampleRate*audio.Channels*audio.BitsPerSample/8)

	return &models.AudioArtifact{
		Path:        path,
		Provider:    providerName,
		DurationSec: duration,
		SampleRate:  audio.SampleRate,
		SizeBytes:   info.Size(),
	}, nil
}

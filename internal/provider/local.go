package provider

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/geotone-app/geotone/internal/audio"
	"github.com/geotone-app/geotone/internal/models"
	"github.com/geotone-app/geotone/internal/synth"
)

// Local generates audio with the in-process synth engine. It is the final,
// always-available tier of the fallback chain and guarantees exact-duration
// output: chunks are concatenated, tiled when looping is requested, and
// truncated (or silence-padded) to the precise target sample count.
type Local struct {
	engine   *synth.Engine
	chunkSec int
	outDir   string
}

// NewLocal creates the local provider.
func NewLocal(engine *synth.Engine, chunkSec int, outDir string) *Local {
	if chunkSec <= 0 {
		chunkSec = 5
	}
	return &Local{engine: engine, chunkSec: chunkSec, outDir: outDir}
}

func (l *Local) Name() string { return "local" }

// Generate renders the prompt in fixed-size windows and assembles the result.
func (l *Local) Generate(ctx context.Context, req *models.GenerationRequest, prompt string) (string, error) {
	tokens := l.engine.EncodeTokens(prompt)
	if len(tokens) == 0 {
		log.Warn().Str("request_id", req.ID.String()).Msg("Prompt encoded to zero tokens, substituting fallback phrase")
		tokens = l.engine.EncodeTokens(synth.FallbackPhrase)
	}
	if len(tokens) == 0 {
		return "", fmt.Errorf("text encoding produced zero tokens even with fallback phrase")
	}

	target := req.DurationSec * audio.SampleRate
	numChunks := (req.DurationSec + l.chunkSec - 1) / l.chunkSec

	var samples []int16
	for chunk := 0; chunk < numChunks; chunk++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		part, err := l.engine.SynthesizeChunk(tokens, chunk, l.chunkSec)
		if err != nil {
			return "", fmt.Errorf("synthesize chunk %d: %w", chunk, err)
		}
		samples = append(samples, part...)
	}

	switch {
	case len(samples) > target:
		samples = samples[:target]
	case len(samples) < target && req.Loop:
		samples = audio.TileToLength(samples, target)
	case len(samples) < target:
		// Not looping: pad with silence so the duration contract still holds.
		pad := make([]int16, target-len(samples))
		samples = append(samples, pad...)
	}

	path, err := writeArtifact(l.outDir, req.ID, audio.EncodeWAV(samples, audio.SampleRate))
	if err != nil {
		return "", err
	}

	log.Info().
		Str("request_id", req.ID.String()).
		Int("duration_sec", req.DurationSec).
		Int("chunks", numChunks).
		Str("path", path).
		Msg("Local generation complete")

	return path, nil
}

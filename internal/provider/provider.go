// Package provider holds the audio generation backends. Each adapter turns an
// enriched prompt into a canonical WAV artifact on disk; the orchestrator
// iterates them in priority order and treats any error as "try the next one".
package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/geotone-app/geotone/internal/models"
)

// Provider is the common adapter contract. Generate blocks until it has a
// playable local artifact or a definite failure; adapters never fall back
// among themselves.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *models.GenerationRequest, prompt string) (string, error)
}

// writeArtifact persists canonical WAV bytes under the output directory,
// named by the request id.
func writeArtifact(outDir string, id uuid.UUID, wav []byte) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outDir, fmt.Sprintf("soundscape_%s.wav", id))
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

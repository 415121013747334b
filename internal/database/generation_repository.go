package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/geotone-app/geotone/internal/models"
)

// GenerationRepository handles generation history operations
type GenerationRepository struct {
	db *DB
}

// NewGenerationRepository creates a new GenerationRepository
func NewGenerationRepository(db *DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

// Create inserts a new generation record
func (r *GenerationRepository) Create(ctx context.Context, gen *models.Generation) error {
	query := `
		INSERT INTO generations (
			id, description, style_hint, duration_sec, loop_audio, force_local,
			status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		gen.ID, gen.Description, gen.StyleHint, gen.DurationSec,
		gen.Loop, gen.ForceLocal, gen.Status, gen.CreatedAt,
	)

	return err
}

// UpdateResult records the outcome of a finished generation
func (r *GenerationRepository) UpdateResult(ctx context.Context, gen *models.Generation) error {
	var triviaJSON []byte
	if gen.Trivia != nil {
		var err error
		triviaJSON, err = json.Marshal(gen.Trivia)
		if err != nil {
			return fmt.Errorf("failed to marshal trivia: %w", err)
		}
	}

	query := `
		UPDATE generations
		SET status = $1, provider = $2, artifact_path = $3, artifact_url = $4,
		    trivia = $5, error_message = $6, finished_at = $7
		WHERE id = $8
	`

	_, err := r.db.ExecContext(ctx, query,
		gen.Status, gen.Provider, gen.ArtifactPath, gen.ArtifactURL,
		triviaJSON, gen.ErrorMessage, gen.FinishedAt, gen.ID,
	)

	return err
}

// GetByID retrieves a generation by ID
func (r *GenerationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Generation, error) {
	query := `
		SELECT id, description, style_hint, duration_sec, loop_audio, force_local,
		       status, provider, artifact_path, artifact_url, trivia, error_message,
		       created_at, finished_at
		FROM generations
		WHERE id = $1
	`

	gen, err := scanGeneration(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return gen, nil
}

// ListRecent retrieves the most recent generations
func (r *GenerationRepository) ListRecent(ctx context.Context, limit int) ([]*models.Generation, error) {
	query := `
		SELECT id, description, style_hint, duration_sec, loop_audio, force_local,
		       status, provider, artifact_path, artifact_url, trivia, error_message,
		       created_at, finished_at
		FROM generations
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var generations []*models.Generation
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		generations = append(generations, gen)
	}

	return generations, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGeneration(row rowScanner) (*models.Generation, error) {
	var gen models.Generation
	var triviaJSON []byte

	err := row.Scan(
		&gen.ID, &gen.Description, &gen.StyleHint, &gen.DurationSec,
		&gen.Loop, &gen.ForceLocal, &gen.Status, &gen.Provider,
		&gen.ArtifactPath, &gen.ArtifactURL, &triviaJSON, &gen.ErrorMessage,
		&gen.CreatedAt, &gen.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(triviaJSON) > 0 {
		var trivia models.Trivia
		if err := json.Unmarshal(triviaJSON, &trivia); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trivia: %w", err)
		}
		gen.Trivia = &trivia
	}

	return &gen, nil
}

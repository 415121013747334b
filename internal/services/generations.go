package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/geotone-app/geotone/internal/catalog"
	"github.com/geotone-app/geotone/internal/database"
	"github.com/geotone-app/geotone/internal/kafka"
	"github.com/geotone-app/geotone/internal/models"
	"github.com/geotone-app/geotone/internal/orchestrator"
	"github.com/geotone-app/geotone/internal/progress"
	"github.com/geotone-app/geotone/internal/prompt"
	"github.com/geotone-app/geotone/internal/storage"
)

// TriviaGenerator produces one question about a landmark. Implementations
// must always return a usable question when err is nil.
type TriviaGenerator interface {
	Trivia(ctx context.Context, name, description string) (*models.Trivia, error)
}

// GenerationService handles soundscape generation business logic. Records
// live in an in-memory store for the lifetime of the process; when a
// database is configured they are also written through to it.
type GenerationService struct {
	enricher *prompt.Enricher
	orch     *orchestrator.Orchestrator
	trivia   TriviaGenerator
	catalog  *catalog.Catalog
	repo     *database.GenerationRepository
	s3       *storage.Client
	producer *kafka.Producer
	broker   *progress.Broker
	ceiling  int

	mu    sync.RWMutex
	store map[uuid.UUID]*models.Generation
}

// NewGenerationService creates a new GenerationService. catalog, repo, s3
// and producer may be nil; the service degrades gracefully without them.
func NewGenerationService(
	enricher *prompt.Enricher,
	orch *orchestrator.Orchestrator,
	trivia TriviaGenerator,
	cat *catalog.Catalog,
	repo *database.GenerationRepository,
	s3 *storage.Client,
	producer *kafka.Producer,
	broker *progress.Broker,
	ceilingSec int,
) *GenerationService {
	return &GenerationService{
		enricher: enricher,
		orch:     orch,
		trivia:   trivia,
		catalog:  cat,
		repo:     repo,
		s3:       s3,
		producer: producer,
		broker:   broker,
		ceiling:  ceilingSec,
		store:    make(map[uuid.UUID]*models.Generation),
	}
}

// Create runs one soundscape generation end to end and returns the stored
// record. The call is synchronous; progress events are published along the
// way for websocket subscribers.
func (s *GenerationService) Create(ctx context.Context, req *models.CreateSoundscapeRequest) (*models.SoundscapeResponse, error) {
	description := strings.TrimSpace(req.Description)
	var landmarkName string

	if req.Landmark != "" {
		if s.catalog == nil || s.catalog.Len() == 0 {
			return nil, fmt.Errorf("landmark lookup requested but no catalog is loaded")
		}
		lm, exact := s.catalog.MatchByName(req.Landmark)
		if !exact {
			log.Info().Str("query", req.Landmark).Str("matched", lm.Name).Msg("No exact landmark match, using random entry")
		}
		landmarkName = lm.Name
		if description == "" {
			description = catalog.ShortDescription(catalog.CleanText(lm.Description))
			if description == "" {
				description = lm.Name
			}
		}
	}

	if description == "" {
		return nil, fmt.Errorf("description or landmark is required")
	}

	duration := req.DurationSec
	if duration <= 0 || duration > s.ceiling {
		duration = s.ceiling
	}

	id := uuid.New()
	if req.ID != nil && *req.ID != uuid.Nil {
		id = *req.ID
	}

	gen := &models.Generation{
		ID:          id,
		Description: description,
		DurationSec: duration,
		Loop:        req.Loop,
		ForceLocal:  req.ForceLocal,
		Status:      "running",
		CreatedAt:   time.Now(),
	}
	if req.Style != "" {
		style := req.Style
		gen.StyleHint = &style
	}

	s.mu.Lock()
	if _, exists := s.store[id]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("generation %s already exists", id)
	}
	s.store[id] = gen
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Create(ctx, gen); err != nil {
			log.Error().Err(err).Str("generation_id", id.String()).Msg("Failed to persist generation record")
		}
	}
	s.publishKafka(ctx, id, "generation_started", "", "")

	s.broker.Publish(progress.Event{GenerationID: id, Stage: "enriching"})
	enriched := s.enricher.Enrich(ctx, description, req.Style)

	genReq := &models.GenerationRequest{
		ID:          id,
		Description: description,
		StyleHint:   req.Style,
		DurationSec: duration,
		Loop:        req.Loop,
		ForceLocal:  req.ForceLocal,
	}

	s.broker.Publish(progress.Event{GenerationID: id, Stage: "generating"})
	artifact, err := s.orch.Generate(ctx, genReq, enriched)
	if err != nil {
		s.finishFailed(ctx, gen, err)
		return nil, err
	}

	gen.Provider = &artifact.Provider
	gen.ArtifactPath = &artifact.Path

	if s.trivia != nil {
		name := landmarkName
		if name == "" {
			name = description
		}
		if t, terr := s.trivia.Trivia(ctx, name, description); terr == nil {
			gen.Trivia = t
		}
	}

	if s.s3 != nil {
		if url, aerr := s.archive(ctx, id, artifact.Path); aerr != nil {
			log.Warn().Err(aerr).Str("generation_id", id.String()).Msg("Artifact archive upload failed")
		} else {
			gen.ArtifactURL = &url
		}
	}

	now := time.Now()
	gen.Status = "succeeded"
	gen.FinishedAt = &now

	if s.repo != nil {
		if err := s.repo.UpdateResult(ctx, gen); err != nil {
			log.Error().Err(err).Str("generation_id", id.String()).Msg("Failed to update generation record")
		}
	}
	s.publishKafka(ctx, id, "generation_completed", artifact.Provider, "")
	s.broker.Publish(progress.Event{GenerationID: id, Stage: "succeeded", Provider: artifact.Provider})

	log.Info().
		Str("generation_id", id.String()).
		Str("provider", artifact.Provider).
		Float64("duration_sec", artifact.DurationSec).
		Msg("Soundscape generated")

	return &models.SoundscapeResponse{Generation: gen, Prompt: enriched}, nil
}

// Get retrieves a generation by ID, preferring the in-memory store and
// falling back to the database for records from earlier runs.
func (s *GenerationService) Get(ctx context.Context, id uuid.UUID) (*models.Generation, error) {
	s.mu.RLock()
	gen, ok := s.store[id]
	s.mu.RUnlock()
	if ok {
		return gen, nil
	}

	if s.repo != nil {
		return s.repo.GetByID(ctx, id)
	}
	return nil, nil
}

// List returns the most recent generations, newest first. The database is
// authoritative when configured because it also holds records from earlier
// runs; otherwise the in-memory store is listed.
func (s *GenerationService) List(ctx context.Context, limit int) ([]*models.Generation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	if s.repo != nil {
		return s.repo.ListRecent(ctx, limit)
	}

	s.mu.RLock()
	gens := make([]*models.Generation, 0, len(s.store))
	for _, gen := range s.store {
		gens = append(gens, gen)
	}
	s.mu.RUnlock()

	sort.Slice(gens, func(i, j int) bool { return gens[i].CreatedAt.After(gens[j].CreatedAt) })
	if len(gens) > limit {
		gens = gens[:limit]
	}
	return gens, nil
}

// ArtifactPath returns the local artifact path for a finished generation.
func (s *GenerationService) ArtifactPath(ctx context.Context, id uuid.UUID) (string, error) {
	gen, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if gen == nil {
		return "", fmt.Errorf("generation %s not found", id)
	}
	if gen.Status != "succeeded" || gen.ArtifactPath == nil {
		return "", fmt.Errorf("generation %s has no artifact (status: %s)", id, gen.Status)
	}
	return *gen.ArtifactPath, nil
}

func (s *GenerationService) finishFailed(ctx context.Context, gen *models.Generation, cause error) {
	now := time.Now()
	msg := cause.Error()
	gen.Status = "failed"
	gen.ErrorMessage = &msg
	gen.FinishedAt = &now

	if s.repo != nil {
		if err := s.repo.UpdateResult(ctx, gen); err != nil {
			log.Error().Err(err).Str("generation_id", gen.ID.String()).Msg("Failed to update generation record")
		}
	}
	s.publishKafka(ctx, gen.ID, "generation_failed", "", msg)
	s.broker.Publish(progress.Event{GenerationID: gen.ID, Stage: "failed", Detail: msg})
}

func (s *GenerationService) archive(ctx context.Context, id uuid.UUID, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("soundscapes/%s/%s", id.String(), filepath.Base(path))
	if err := s.s3.Upload(ctx, key, f, "audio/wav", info.Size()); err != nil {
		return "", err
	}

	// Private buckets get a presigned link instead of a public URL.
	if url := s.s3.PublicURL(key); url != "" {
		return url, nil
	}
	return s.s3.GeneratePresignedURL(key, 24*time.Hour)
}

func (s *GenerationService) publishKafka(ctx context.Context, id uuid.UUID, event, provider, errMsg string) {
	if s.producer == nil {
		return
	}
	ev := kafka.GenerationEvent{GenerationID: id, Event: event, Provider: provider, Error: errMsg}
	if err := s.producer.PublishGenerationEvent(ctx, ev); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("Failed to publish generation event")
	}
}

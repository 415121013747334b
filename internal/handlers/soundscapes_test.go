package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/geotone-app/geotone/internal/models"
	"github.com/geotone-app/geotone/internal/orchestrator"
	"github.com/geotone-app/geotone/internal/progress"
)

// fakeGenerationService is a minimal GenerationService for tests.
type fakeGenerationService struct {
	create       func(context.Context, *models.CreateSoundscapeRequest) (*models.SoundscapeResponse, error)
	get          func(context.Context, uuid.UUID) (*models.Generation, error)
	list         func(context.Context, int) ([]*models.Generation, error)
	artifactPath func(context.Context, uuid.UUID) (string, error)
}

func (f *fakeGenerationService) Create(ctx context.Context, req *models.CreateSoundscapeRequest) (*models.SoundscapeResponse, error) {
	if f.create != nil {
		return f.create(ctx, req)
	}
	gen := &models.Generation{ID: uuid.New(), Status: "succeeded", CreatedAt: time.Now()}
	return &models.SoundscapeResponse{Generation: gen}, nil
}

func (f *fakeGenerationService) Get(ctx context.Context, id uuid.UUID) (*models.Generation, error) {
	if f.get != nil {
		return f.get(ctx, id)
	}
	return nil, nil
}

func (f *fakeGenerationService) List(ctx context.Context, limit int) ([]*models.Generation, error) {
	if f.list != nil {
		return f.list(ctx, limit)
	}
	return nil, nil
}

func (f *fakeGenerationService) ArtifactPath(ctx context.Context, id uuid.UUID) (string, error) {
	if f.artifactPath != nil {
		return f.artifactPath(ctx, id)
	}
	return "", fmt.Errorf("no artifact")
}

func newTestRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/v1/soundscapes", h.CreateSoundscape).Methods("POST")
	r.HandleFunc("/v1/soundscapes", h.ListSoundscapes).Methods("GET")
	r.HandleFunc("/v1/soundscapes/{id}", h.GetSoundscape).Methods("GET")
	r.HandleFunc("/v1/soundscapes/{id}/audio", h.GetSoundscapeAudio).Methods("GET")
	r.HandleFunc("/v1/landmarks", h.ListLandmarks).Methods("GET")
	return r
}

func TestCreateSoundscape(t *testing.T) {
	id := uuid.New()
	h := NewHandler(&fakeGenerationService{
		create: func(_ context.Context, req *models.CreateSoundscapeRequest) (*models.SoundscapeResponse, error) {
			if req.Description != "old fortress" {
				t.Errorf("unexpected description %q", req.Description)
			}
			gen := &models.Generation{ID: id, Description: req.Description, Status: "succeeded"}
			return &models.SoundscapeResponse{Generation: gen, Prompt: "Music inspired by: old fortress"}, nil
		},
	}, nil, progress.NewBroker())

	body := bytes.NewBufferString(`{"description":"old fortress","duration_sec":15,"loop":true}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/soundscapes", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.SoundscapeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.Generation.ID != id || resp.Prompt == "" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCreateSoundscapeInvalidBody(t *testing.T) {
	h := NewHandler(&fakeGenerationService{}, nil, progress.NewBroker())

	req := httptest.NewRequest(http.MethodPost, "/v1/soundscapes", bytes.NewBufferString(`{broken`))
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCreateSoundscapeServiceError(t *testing.T) {
	h := NewHandler(&fakeGenerationService{
		create: func(context.Context, *models.CreateSoundscapeRequest) (*models.SoundscapeResponse, error) {
			return nil, fmt.Errorf("description or landmark is required")
		},
	}, nil, progress.NewBroker())

	req := httptest.NewRequest(http.MethodPost, "/v1/soundscapes", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCreateSoundscapeChainExhausted(t *testing.T) {
	h := NewHandler(&fakeGenerationService{
		create: func(context.Context, *models.CreateSoundscapeRequest) (*models.SoundscapeResponse, error) {
			return nil, orchestrator.ErrAllProvidersFailed
		},
	}, nil, progress.NewBroker())

	req := httptest.NewRequest(http.MethodPost, "/v1/soundscapes", bytes.NewBufferString(`{"description":"x"}`))
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}

func TestCreateSoundscapeForcedLocalFailure(t *testing.T) {
	wrapped := fmt.Errorf("local generation: %w: %w", errors.New("encoder broke"), orchestrator.ErrAllProvidersFailed)
	h := NewHandler(&fakeGenerationService{
		create: func(context.Context, *models.CreateSoundscapeRequest) (*models.SoundscapeResponse, error) {
			return nil, wrapped
		},
	}, nil, progress.NewBroker())

	req := httptest.NewRequest(http.MethodPost, "/v1/soundscapes", bytes.NewBufferString(`{"description":"x","force_local":true}`))
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502 for terminal generation failure, got %d", rec.Code)
	}
}

func TestListSoundscapes(t *testing.T) {
	h := NewHandler(&fakeGenerationService{
		list: func(_ context.Context, limit int) ([]*models.Generation, error) {
			if limit != 5 {
				t.Errorf("expected limit 5, got %d", limit)
			}
			return []*models.Generation{
				{ID: uuid.New(), Status: "succeeded", CreatedAt: time.Now()},
				{ID: uuid.New(), Status: "failed", CreatedAt: time.Now().Add(-time.Minute)},
			}, nil
		},
	}, nil, progress.NewBroker())

	req := httptest.NewRequest(http.MethodGet, "/v1/soundscapes?limit=5", nil)
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Soundscapes []*models.Generation `json:"soundscapes"`
		Total       int                  `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 2 || len(resp.Soundscapes) != 2 {
		t.Errorf("expected 2 soundscapes, got total=%d len=%d", resp.Total, len(resp.Soundscapes))
	}
}

func TestListSoundscapesEmpty(t *testing.T) {
	h := NewHandler(&fakeGenerationService{}, nil, progress.NewBroker())

	req := httptest.NewRequest(http.MethodGet, "/v1/soundscapes", nil)
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `"soundscapes":[]`) {
		t.Errorf("expected empty list, got %s", body)
	}
}

func TestListSoundscapesBadLimit(t *testing.T) {
	h := NewHandler(&fakeGenerationService{}, nil, progress.NewBroker())

	req := httptest.NewRequest(http.MethodGet, "/v1/soundscapes?limit=zero", nil)
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetSoundscape(t *testing.T) {
	id := uuid.New()
	h := NewHandler(&fakeGenerationService{
		get: func(_ context.Context, got uuid.UUID) (*models.Generation, error) {
			if got != id {
				t.Errorf("expected id %s, got %s", id, got)
			}
			return &models.Generation{ID: id, Status: "succeeded"}, nil
		},
	}, nil, progress.NewBroker())

	req := httptest.NewRequest(http.MethodGet, "/v1/soundscapes/"+id.String(), nil)
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetSoundscapeNotFound(t *testing.T) {
	h := NewHandler(&fakeGenerationService{}, nil, progress.NewBroker())

	req := httptest.NewRequest(http.MethodGet, "/v1/soundscapes/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetSoundscapeBadID(t *testing.T) {
	h := NewHandler(&fakeGenerationService{}, nil, progress.NewBroker())

	req := httptest.NewRequest(http.MethodGet, "/v1/soundscapes/not-a-uuid", nil)
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetSoundscapeAudio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.wav")
	if err := os.WriteFile(path, []byte("RIFFfake"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	h := NewHandler(&fakeGenerationService{
		artifactPath: func(context.Context, uuid.UUID) (string, error) {
			return path, nil
		},
	}, nil, progress.NewBroker())

	req := httptest.NewRequest(http.MethodGet, "/v1/soundscapes/"+uuid.NewString()+"/audio", nil)
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("expected audio/wav, got %q", ct)
	}
	if rec.Body.String() != "RIFFfake" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestGetSoundscapeAudioMissing(t *testing.T) {
	h := NewHandler(&fakeGenerationService{}, nil, progress.NewBroker())

	req := httptest.NewRequest(http.MethodGet, "/v1/soundscapes/"+uuid.NewString()+"/audio", nil)
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestListLandmarksWithoutCatalog(t *testing.T) {
	h := NewHandler(&fakeGenerationService{}, nil, progress.NewBroker())

	req := httptest.NewRequest(http.MethodGet, "/v1/landmarks", nil)
	rec := httptest.NewRecorder()

	newTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Landmarks []models.Landmark `json:"landmarks"`
		Total     int               `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.Total != 0 || resp.Landmarks == nil {
		t.Errorf("expected empty list, got %+v", resp)
	}
}

package callback

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/geotone-app/geotone/internal/staging"
)

func newTestArea(t *testing.T) *staging.Area {
	t.Helper()
	area, err := staging.NewArea(t.TempDir())
	if err != nil {
		t.Fatalf("NewArea: %v", err)
	}
	return area
}

func stagedFiles(t *testing.T, area *staging.Area) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(area.Dir())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	return entries
}

func successPayload(taskID, audioURL string) string {
	return fmt.Sprintf(`{
		"code": 200,
		"msg": "All generated successfully.",
		"data": {
			"task_id": %q,
			"callbackType": "complete",
			"data": [{"title": "Track", "duration": 14.2, "tags": "ambient", "audio_url": %q, "image_url": ""}]
		}
	}`, taskID, audioURL)
}

func TestHandleRejectsBadToken(t *testing.T) {
	area := newTestArea(t)
	r := NewReceiver(area, "secret", time.Second)

	req := httptest.NewRequest(http.MethodPost, "/suno_callback", strings.NewReader(successPayload("t1", "http://example.invalid/a.wav")))
	req.Header.Set(TokenHeader, "wrong")
	rec := httptest.NewRecorder()

	r.Handle(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if got := stagedFiles(t, area); len(got) != 0 {
		t.Errorf("expected nothing staged, found %d files", len(got))
	}
}

func TestHandleMissingTokenRejected(t *testing.T) {
	r := NewReceiver(newTestArea(t), "secret", time.Second)

	req := httptest.NewRequest(http.MethodPost, "/suno_callback", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	r.Handle(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestHandleStagesTrack(t *testing.T) {
	asset := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("audio-bytes"))
	}))
	defer asset.Close()

	area := newTestArea(t)
	r := NewReceiver(area, "secret", time.Second)

	req := httptest.NewRequest(http.MethodPost, "/suno_callback", strings.NewReader(successPayload("task-9", asset.URL)))
	req.Header.Set(TokenHeader, "secret")
	rec := httptest.NewRecorder()

	r.Handle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var ack map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("parse ack: %v", err)
	}
	if ack["status"] != "received" {
		t.Errorf("expected received ack, got %v", ack)
	}

	files := stagedFiles(t, area)
	if len(files) != 1 {
		t.Fatalf("expected 1 staged file, got %d", len(files))
	}
	if !strings.HasPrefix(files[0].Name(), "cb_task-9_") {
		t.Errorf("unexpected staged name %s", files[0].Name())
	}
}

func TestHandleDuplicateCallbacksBothStaged(t *testing.T) {
	asset := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer asset.Close()

	area := newTestArea(t)
	r := NewReceiver(area, "", time.Second)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/suno_callback", strings.NewReader(successPayload("dup", asset.URL)))
		rec := httptest.NewRecorder()
		r.Handle(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("callback %d: expected 200, got %d", i, rec.Code)
		}
	}

	if files := stagedFiles(t, area); len(files) != 2 {
		t.Errorf("expected 2 staged files, got %d", len(files))
	}
}

func TestHandleFailureCodeStagesNothing(t *testing.T) {
	area := newTestArea(t)
	r := NewReceiver(area, "", time.Second)

	body := `{"code": 500, "msg": "generation failed", "data": {"task_id": "t2", "data": []}}`
	req := httptest.NewRequest(http.MethodPost, "/suno_callback", strings.NewReader(body))
	rec := httptest.NewRecorder()

	r.Handle(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("failure notifications still get acked, got %d", rec.Code)
	}
	if files := stagedFiles(t, area); len(files) != 0 {
		t.Errorf("expected nothing staged, got %d files", len(files))
	}
}

func TestHandleMalformedBodyStillAcked(t *testing.T) {
	r := NewReceiver(newTestArea(t), "", time.Second)

	req := httptest.NewRequest(http.MethodPost, "/suno_callback", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	r.Handle(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for malformed body, got %d", rec.Code)
	}
}

func TestHandleUnreachableAssetStillAcked(t *testing.T) {
	area := newTestArea(t)
	r := NewReceiver(area, "", time.Second)

	req := httptest.NewRequest(http.MethodPost, "/suno_callback",
		strings.NewReader(successPayload("t3", "http://127.0.0.1:1/nope.wav")))
	rec := httptest.NewRecorder()

	r.Handle(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 even when download fails, got %d", rec.Code)
	}
	if files := stagedFiles(t, area); len(files) != 0 {
		t.Errorf("expected nothing staged, got %d files", len(files))
	}
}

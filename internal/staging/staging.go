package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// filePrefix namespaces staged callback artifacts. Filenames are
// cb_<taskID>_<unix-nanos>.wav so a correlation id can be matched by prefix
// and two callbacks for the same id never collide.
const filePrefix = "cb_"

// Area is the shared staging directory the callback receiver writes into and
// the remote adapter polls. Deposits are write-to-temp plus atomic rename so a
// poller never observes a partial file; files are never overwritten. An
// in-memory waiter table removes polling latency for same-process consumers,
// with the directory scan as the durability backstop.
type Area struct {
	dir string

	mu      sync.Mutex
	waiters map[string][]chan string // taskID -> notification channels
}

// NewArea creates the staging directory if needed.
func NewArea(dir string) (*Area, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Area{dir: dir, waiters: make(map[string][]chan string)}, nil
}

// Dir returns the staging directory path.
func (a *Area) Dir() string { return a.dir }

// Put deposits one artifact for the given correlation id and returns its path.
// The timestamp suffix makes every deposit unique, so a duplicate callback for
// the same id lands beside the first instead of replacing it (first write wins
// for consumers, which take the oldest match).
func (a *Area) Put(taskID string, r io.Reader) (string, error) {
	tmp, err := os.CreateTemp(a.dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write staged artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close staged artifact: %w", err)
	}

	final := filepath.Join(a.dir, fmt.Sprintf("%s%s_%d.wav", filePrefix, sanitize(taskID), time.Now().UnixNano()))
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("publish staged artifact: %w", err)
	}

	log.Info().Str("task_id", taskID).Str("path", final).Msg("Callback artifact staged")
	a.notify(taskID, final)
	return final, nil
}

// Wait blocks until an artifact for taskID appears, or until the window
// elapses. With an empty taskID it falls back to "newest file created after
// since" matching; that mode is ambiguous when two id-less requests race,
// which is a documented limitation of the callback protocol.
func (a *Area) Wait(ctx context.Context, taskID string, since time.Time, window, pollEvery time.Duration) (string, error) {
	deadline := time.Now().Add(window)

	var notifyCh chan string
	if taskID != "" {
		// Check existing deposits first; the callback may have beaten us here.
		if path, ok := a.find(taskID, time.Time{}); ok {
			return path, nil
		}
		notifyCh = a.subscribe(taskID)
		defer a.unsubscribe(taskID, notifyCh)
	}

	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()
	timeout := time.NewTimer(time.Until(deadline))
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case path := <-notifyCh:
			return path, nil
		case <-timeout.C:
			return "", fmt.Errorf("no callback artifact for %q within %s", taskID, window)
		case <-ticker.C:
			if path, ok := a.find(taskID, since); ok {
				return path, nil
			}
		}
	}
}

// find scans the directory. With a taskID it returns the oldest file matching
// the id prefix; without one, the newest file modified after since.
func (a *Area) find(taskID string, since time.Time) (string, bool) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", a.dir).Msg("Failed to scan staging dir")
		return "", false
	}

	var (
		best     string
		bestTime time.Time
	)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".tmp-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}

		if taskID != "" {
			if !strings.HasPrefix(name, filePrefix+sanitize(taskID)+"_") {
				continue
			}
			// Oldest deposit wins for a given id.
			if best == "" || info.ModTime().Before(bestTime) {
				best, bestTime = name, info.ModTime()
			}
			continue
		}

		if !info.ModTime().After(since) {
			continue
		}
		if best == "" || info.ModTime().After(bestTime) {
			best, bestTime = name, info.ModTime()
		}
	}

	if best == "" {
		return "", false
	}
	return filepath.Join(a.dir, best), true
}

func (a *Area) subscribe(taskID string) chan string {
	ch := make(chan string, 1)
	a.mu.Lock()
	a.waiters[taskID] = append(a.waiters[taskID], ch)
	a.mu.Unlock()
	return ch
}

func (a *Area) unsubscribe(taskID string, ch chan string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	chans := a.waiters[taskID]
	for i, c := range chans {
		if c == ch {
			a.waiters[taskID] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(a.waiters[taskID]) == 0 {
		delete(a.waiters, taskID)
	}
}

func (a *Area) notify(taskID, path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ch := range a.waiters[taskID] {
		select {
		case ch <- path:
		default:
		}
	}
}

// sanitize keeps correlation ids filesystem-safe.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, id)
}

// Package bundle owns the on-disk capture format: an append-only working
// directory while a session records, sealed by an atomically written
// manifest on finalize. A directory has exactly one writer at a time and
// is read-only once a manifest exists.
package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/josancamon19/web-environments/internal/entity"
)

const (
	manifestFile  = "manifest.json"
	stepsFile     = "steps.jsonl"
	requestsFile  = "requests.jsonl"
	responsesFile = "responses.jsonl"
	storageFile   = "storage_state.json"
	screenshotDir = "screenshots"
	domDir        = "doms"
)

var (
	// ErrNotRecording is returned for any write after finalize has begun.
	ErrNotRecording = errors.New("bundle: session is not recording")
	// ErrFinalized is returned when Finalize is called twice.
	ErrFinalized = errors.New("bundle: already finalized")
)

// Writer accumulates one CaptureSession's artifacts. All Append methods are
// safe for concurrent use; every write is gated on the session state so
// nothing lands after finalize.
type Writer struct {
	mu       sync.Mutex
	dir      string
	status   entity.SessionStatus
	manifest entity.Manifest

	steps     *os.File
	requests  *os.File
	responses *os.File

	stepCount     int
	exchangeCount int

	log *zap.SugaredLogger
}

// NewWriter creates the bundle working directory and opens its logs.
func NewWriter(dir, sessionID string, taskID int64, browser entity.BrowserConfig, log *zap.SugaredLogger) (*Writer, error) {
	for _, d := range []string{dir, filepath.Join(dir, screenshotDir), filepath.Join(dir, domDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create bundle dir: %w", err)
		}
	}

	w := &Writer{
		dir:    dir,
		status: entity.StatusRecording,
		log:    log,
		manifest: entity.Manifest{
			SchemaVersion: entity.SchemaVersion,
			SessionID:     sessionID,
			TaskID:        taskID,
			Status:        entity.StatusRecording,
			StartedAt:     time.Now().UTC(),
			Browser:       browser,
			Artifacts: entity.ArtifactIndex{
				Steps:         stepsFile,
				Requests:      requestsFile,
				Responses:     responsesFile,
				StorageState:  storageFile,
				ScreenshotDir: screenshotDir,
				DOMDir:        domDir,
			},
		},
	}

	var err error
	if w.steps, err = openAppend(dir, stepsFile); err != nil {
		return nil, err
	}
	if w.requests, err = openAppend(dir, requestsFile); err != nil {
		return nil, err
	}
	if w.responses, err = openAppend(dir, responsesFile); err != nil {
		return nil, err
	}
	return w, nil
}

func openAppend(dir, name string) (*os.File, error) {
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

// Dir returns the bundle working directory.
func (w *Writer) Dir() string { return w.dir }

// AppendStep writes one step record. Steps may arrive out of file order
// (artifact jobs complete asynchronously); readers order by the stored
// sequence field.
func (w *Writer) AppendStep(s entity.Step) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status != entity.StatusRecording {
		return ErrNotRecording
	}
	if err := appendJSON(w.steps, s); err != nil {
		return err
	}
	w.stepCount++
	return nil
}

// AppendRequest writes the request half of an exchange.
func (w *Writer) AppendRequest(r entity.RequestRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status != entity.StatusRecording {
		return ErrNotRecording
	}
	if err := appendJSON(w.requests, r); err != nil {
		return err
	}
	w.exchangeCount++
	return nil
}

// AppendResponse writes the response half of an exchange.
func (w *Writer) AppendResponse(r entity.ResponseRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status != entity.StatusRecording {
		return ErrNotRecording
	}
	return appendJSON(w.responses, r)
}

// WriteStorageState serializes one storage snapshot. Later calls overwrite
// earlier ones; replay always starts from the most recent snapshot.
func (w *Writer) WriteStorageState(st entity.StorageState) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status != entity.StatusRecording {
		return ErrNotRecording
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal storage state: %w", err)
	}
	return os.WriteFile(filepath.Join(w.dir, storageFile), data, 0o644)
}

// ScreenshotPath returns the bundle-relative path for a step screenshot.
func (w *Writer) ScreenshotPath(seq int64, kind entity.StepKind) string {
	return filepath.Join(screenshotDir, fmt.Sprintf("%06d_%s.png", seq, kind))
}

// DOMPath returns the bundle-relative path for a step DOM snapshot.
func (w *Writer) DOMPath(seq int64) string {
	return filepath.Join(domDir, fmt.Sprintf("%06d.yaml", seq))
}

// Abs resolves a bundle-relative artifact path.
func (w *Writer) Abs(rel string) string { return filepath.Join(w.dir, rel) }

// Finalize flushes everything already buffered and seals the bundle with a
// manifest carrying the given terminal status. The manifest is written to a
// temp file and renamed so a reader can never observe a half-written one.
// A disk failure here leaves the bundle without a manifest, which readers
// treat as non-replayable.
func (w *Writer) Finalize(status entity.SessionStatus) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.status {
	case entity.StatusComplete, entity.StatusIncomplete:
		return ErrFinalized
	}
	if status != entity.StatusComplete && status != entity.StatusIncomplete {
		return fmt.Errorf("bundle: invalid terminal status %q", status)
	}
	w.status = entity.StatusFinalizing

	for _, f := range []*os.File{w.steps, w.requests, w.responses} {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("sync bundle log: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close bundle log: %w", err)
		}
	}

	w.manifest.Status = status
	w.manifest.FinishedAt = time.Now().UTC()
	w.manifest.StepCount = w.stepCount
	w.manifest.ExchangeCount = w.exchangeCount

	data, err := json.MarshalIndent(w.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	tmp := filepath.Join(w.dir, manifestFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(w.dir, manifestFile)); err != nil {
		return fmt.Errorf("finalize manifest: %w", err)
	}

	w.status = status
	w.log.Infow("bundle finalized", "dir", w.dir, "status", status,
		"steps", w.stepCount, "exchanges", w.exchangeCount)
	return nil
}

// Status returns the current session state.
func (w *Writer) Status() entity.SessionStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func appendJSON(f *os.File, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

package bundle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/josancamon19/web-environments/internal/entity"
	"github.com/josancamon19/web-environments/internal/logging"
)

func newTestWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "bundle")
	w, err := NewWriter(dir, "sess-1", 42, entity.BrowserConfig{
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Channel:        "chromium",
	}, logging.Nop())
	require.NoError(t, err)
	return w, dir
}

func TestBundle_RoundTrip(t *testing.T) {
	w, dir := newTestWriter(t)
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, w.AppendStep(entity.Step{Sequence: 1, Timestamp: at, Kind: entity.StepNavigate, URL: "https://example.com"}))
	require.NoError(t, w.AppendRequest(entity.RequestRecord{ExchangeID: "x1", Method: "GET", URL: "https://example.com", Timestamp: at}))
	require.NoError(t, w.AppendResponse(entity.ResponseRecord{ExchangeID: "x1", Status: 200, Body: []byte("<html>"), Timestamp: at.Add(time.Second)}))
	require.NoError(t, w.WriteStorageState(entity.StorageState{
		Cookies:    []entity.Cookie{{Name: "sid", Value: "abc", Domain: "example.com"}},
		CapturedAt: at,
	}))
	require.NoError(t, w.Finalize(entity.StatusComplete))

	b, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, entity.StatusComplete, b.Manifest.Status)
	require.Equal(t, int64(42), b.Manifest.TaskID)
	require.Equal(t, 1920, b.Manifest.Browser.ViewportWidth)

	require.Len(t, b.Steps, 1)
	require.Equal(t, "https://example.com", b.Steps[0].URL)

	require.Len(t, b.Exchanges, 1)
	require.True(t, b.Exchanges[0].Complete())
	require.Equal(t, 200, b.Exchanges[0].Response.Status)
	require.Equal(t, []byte("<html>"), b.Exchanges[0].Response.Body)

	require.NotNil(t, b.Storage)
	require.Equal(t, "sid", b.Storage.Cookies[0].Name)
}

func TestBundle_RoundTripBytes(t *testing.T) {
	// Write then load must reproduce the manifest and artifact bodies
	// byte for byte, not just as equivalent structs.
	w, dir := newTestWriter(t)

	shot := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	rel := w.ScreenshotPath(1, entity.StepClick)
	require.NoError(t, os.WriteFile(w.Abs(rel), shot, 0o644))
	require.NoError(t, w.AppendStep(entity.Step{Sequence: 1, Kind: entity.StepClick, Screenshot: rel}))
	require.NoError(t, w.Finalize(entity.StatusComplete))

	written, err := os.ReadFile(filepath.Join(dir, manifestFile))
	require.NoError(t, err)

	b, err := Load(dir)
	require.NoError(t, err)

	reencoded, err := json.MarshalIndent(b.Manifest, "", "  ")
	require.NoError(t, err)
	require.Equal(t, string(written), string(reencoded))

	body, err := os.ReadFile(filepath.Join(dir, b.Steps[0].Screenshot))
	require.NoError(t, err)
	require.Equal(t, shot, body)
}

func TestBundle_ReaderSortsStepsBySequence(t *testing.T) {
	// Artifact capture completes out of order; file order is not step order.
	w, dir := newTestWriter(t)
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, w.AppendStep(entity.Step{Sequence: 3, Timestamp: at.Add(2 * time.Second), Kind: entity.StepClick}))
	require.NoError(t, w.AppendStep(entity.Step{Sequence: 1, Timestamp: at, Kind: entity.StepNavigate, URL: "https://example.com"}))
	require.NoError(t, w.AppendStep(entity.Step{Sequence: 2, Timestamp: at.Add(time.Second), Kind: entity.StepClick}))
	require.NoError(t, w.Finalize(entity.StatusComplete))

	b, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, b.Steps, 3)
	for i, s := range b.Steps {
		require.Equal(t, int64(i+1), s.Sequence)
	}
}

func TestBundle_WriteAfterFinalizeRejected(t *testing.T) {
	w, _ := newTestWriter(t)
	require.NoError(t, w.Finalize(entity.StatusComplete))

	require.ErrorIs(t, w.AppendStep(entity.Step{Sequence: 1}), ErrNotRecording)
	require.ErrorIs(t, w.AppendRequest(entity.RequestRecord{ExchangeID: "x"}), ErrNotRecording)
	require.ErrorIs(t, w.AppendResponse(entity.ResponseRecord{ExchangeID: "x"}), ErrNotRecording)
	require.ErrorIs(t, w.WriteStorageState(entity.StorageState{}), ErrNotRecording)
	require.ErrorIs(t, w.Finalize(entity.StatusComplete), ErrFinalized)
}

func TestBundle_IncompleteIsInspectableButNotReplayable(t *testing.T) {
	// Interrupted session: whatever was written stays readable, but replay
	// refuses to start from it.
	w, dir := newTestWriter(t)
	require.NoError(t, w.AppendStep(entity.Step{Sequence: 1, Kind: entity.StepNavigate, URL: "https://example.com"}))
	require.NoError(t, w.Finalize(entity.StatusIncomplete))

	_, err := Load(dir)
	require.ErrorIs(t, err, ErrNotReplayable)

	b, err := Open(dir)
	require.NoError(t, err)
	require.Equal(t, entity.StatusIncomplete, b.Manifest.Status)
	require.Len(t, b.Steps, 1)
}

func TestBundle_MissingManifest(t *testing.T) {
	_, err := Open(t.TempDir())
	require.ErrorIs(t, err, ErrNoManifest)
}

func TestBundle_InvalidTerminalStatus(t *testing.T) {
	w, _ := newTestWriter(t)
	require.Error(t, w.Finalize(entity.StatusRecording))
	// The writer is still recording after a rejected finalize.
	require.NoError(t, w.AppendStep(entity.Step{Sequence: 1, Kind: entity.StepClick}))
}

func TestBundle_ManifestCounts(t *testing.T) {
	w, dir := newTestWriter(t)
	require.NoError(t, w.AppendStep(entity.Step{Sequence: 1, Kind: entity.StepClick}))
	require.NoError(t, w.AppendStep(entity.Step{Sequence: 2, Kind: entity.StepClick}))
	require.NoError(t, w.AppendRequest(entity.RequestRecord{ExchangeID: "x1", Method: "GET", URL: "https://example.com"}))
	require.NoError(t, w.Finalize(entity.StatusComplete))

	b, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 2, b.Manifest.StepCount)
	require.Equal(t, 1, b.Manifest.ExchangeCount)
}

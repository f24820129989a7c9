package entity

import "time"

// SessionStatus is the lifecycle state of a CaptureSession. A crash before
// finalize leaves the session incomplete permanently; nothing upgrades it.
type SessionStatus string

const (
	StatusRecording  SessionStatus = "recording"
	StatusFinalizing SessionStatus = "finalizing"
	StatusComplete   SessionStatus = "complete"
	StatusIncomplete SessionStatus = "incomplete"
)

// BrowserConfig is the browser shape a session was captured under,
// persisted so replay can reproduce it.
type BrowserConfig struct {
	ViewportWidth  int    `json:"viewport_width"`
	ViewportHeight int    `json:"viewport_height"`
	UserAgent      string `json:"user_agent,omitempty"`
	Channel        string `json:"channel,omitempty"`
	Headless       bool   `json:"headless"`
}

// ArtifactIndex enumerates every artifact a bundle carries, with paths
// relative to the bundle directory.
type ArtifactIndex struct {
	Steps         string `json:"steps"`
	Requests      string `json:"requests"`
	Responses     string `json:"responses"`
	StorageState  string `json:"storage_state,omitempty"`
	ScreenshotDir string `json:"screenshot_dir,omitempty"`
	DOMDir        string `json:"dom_dir,omitempty"`
	VideoDir      string `json:"video_dir,omitempty"`
}

// SchemaVersion is bumped whenever the on-disk bundle layout changes in a
// way old readers cannot handle.
const SchemaVersion = 1

// Manifest is the bundle's authoritative index, written last during
// finalize. A reader that finds no manifest, or one whose status is not
// complete, must treat the bundle as non-replayable.
type Manifest struct {
	SchemaVersion int           `json:"schema_version"`
	SessionID     string        `json:"session_id"`
	TaskID        int64         `json:"task_id,omitempty"`
	Status        SessionStatus `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at,omitempty"`
	Browser       BrowserConfig `json:"browser"`
	StepCount     int           `json:"step_count"`
	ExchangeCount int           `json:"exchange_count"`
	Artifacts     ArtifactIndex `json:"artifacts"`
}

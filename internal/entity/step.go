package entity

import "time"

// StepKind is the UI-level event class a Step records.
type StepKind string

const (
	StepNavigate    StepKind = "navigate"
	StepClick       StepKind = "click"
	StepKeydown     StepKind = "keydown"
	StepInput       StepKind = "input"
	StepScroll      StepKind = "scroll"
	StepContextMenu StepKind = "contextmenu"
)

// TargetRef describes the element a Step acted on. Selector is the primary
// handle; the rest are the minimal attributes needed to rebuild one.
type TargetRef struct {
	Selector string `json:"selector,omitempty"`
	Tag      string `json:"tag,omitempty"`
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Class    string `json:"class,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Step is one recorded UI-level event. Immutable once written to a bundle.
// Sequence is strictly increasing within a session and Timestamp is
// non-decreasing in sequence order.
type Step struct {
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Kind      StepKind  `json:"kind"`
	Target    TargetRef `json:"target,omitempty"`

	// URL for navigate steps, key name for keydown, field value for input.
	URL   string `json:"url,omitempty"`
	Value string `json:"value,omitempty"`
	Key   string `json:"key,omitempty"`

	// Scroll/click coordinates.
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`

	// Relative artifact paths inside the bundle; empty when the capture
	// was skipped by policy or downgraded after a capture failure.
	Screenshot  string `json:"screenshot,omitempty"`
	DOMSnapshot string `json:"dom_snapshot,omitempty"`

	// Set when an artifact capture failed and the step was kept without it.
	ArtifactError string `json:"artifact_error,omitempty"`
}

// RawEvent is what the browser event hooks emit before the recorder has
// assigned a sequence number. One producer per event source feeds these
// through a bounded channel.
type RawEvent struct {
	Kind      StepKind
	Timestamp time.Time
	Target    TargetRef
	URL       string
	Value     string
	Key       string
	X         float64
	Y         float64
}

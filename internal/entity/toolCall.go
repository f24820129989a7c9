package entity

import "time"

// ToolCallType is the semantic action class consumed by agent training.
type ToolCallType string

const (
	ToolGoTo   ToolCallType = "go_to"
	ToolClick  ToolCallType = "click"
	ToolType   ToolCallType = "type"
	ToolScroll ToolCallType = "scroll"
)

// ToolCall is one semantic action derived from one or more raw Steps.
type ToolCall struct {
	Type      ToolCallType `json:"type"`
	Selector  string       `json:"selector,omitempty"`
	URL       string       `json:"url,omitempty"`
	Value     string       `json:"value,omitempty"`
	X         float64      `json:"x,omitempty"`
	Y         float64      `json:"y,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	StepIDs   []int64      `json:"step_ids,omitempty"`
}

// Trajectory is the compiled, ordered tool-call sequence for one task.
// It is a pure function of a finalized bundle: recomputable, never
// hand-edited.
type Trajectory struct {
	TaskID          int64      `json:"task_id"`
	TaskDescription string     `json:"task_description"`
	ToolCalls       []ToolCall `json:"tool_calls"`
}

// Checkpoint is an externally produced milestone index into a Trajectory,
// used for partial-credit scoring.
type Checkpoint struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
}

package entity

// StepResult records the outcome of replaying one Step as synthetic input.
// The player absorbs per-step failures, so a run always yields one result
// per attempted step.
type StepResult struct {
	Sequence int64  `json:"sequence"`
	Kind     string `json:"kind"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

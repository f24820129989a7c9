package entity

import "time"

// OriginStorage holds the web storage surface of one origin.
type OriginStorage struct {
	Origin  string            `json:"origin"`
	Local   map[string]string `json:"local_storage,omitempty"`
	Session map[string]string `json:"session_storage,omitempty"`
}

// StorageState is one full snapshot of cookies plus per-origin storage,
// captured at session start (and optionally at later checkpoints). It only
// seeds replay state and is never mutated after capture.
type StorageState struct {
	Cookies    []Cookie        `json:"cookies,omitempty"`
	Origins    []OriginStorage `json:"origins,omitempty"`
	CapturedAt time.Time       `json:"captured_at"`
}

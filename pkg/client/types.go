package client

import "time"

// BackendStatus mirrors the supervisor snapshot served by /status.
type BackendStatus struct {
	State     string    `json:"state"`
	Ready     bool      `json:"ready"`
	RunID     string    `json:"run_id,omitempty"`
	Command   string    `json:"command"`
	PID       int       `json:"pid"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at,omitempty"`
	ReadyAt   time.Time `json:"ready_at,omitempty"`
	StoppedAt time.Time `json:"stopped_at,omitempty"`
	ExitCode  int       `json:"exit_code"`
	LastError string    `json:"last_error,omitempty"`
}

// Resources is the latest CPU/memory sample of the backend.
type Resources struct {
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb"`
	NumThreads int32     `json:"num_threads"`
	Timestamp  time.Time `json:"timestamp"`
}

// Status is the /status response.
type Status struct {
	Version   string        `json:"version,omitempty"`
	Backend   BackendStatus `json:"backend"`
	Resources *Resources    `json:"resources,omitempty"`
}

// Health is the /healthz response.
type Health struct {
	OK    bool   `json:"ok"`
	Ready bool   `json:"ready"`
	State string `json:"state"`
}

// Line is one line of backend output.
type Line struct {
	Seq    int64     `json:"seq"`
	Time   time.Time `json:"time"`
	Stream string    `json:"stream"`
	Text   string    `json:"text"`
}

// Logs is the /logs response; Next is the sequence to pass as Since to continue.
type Logs struct {
	Lines []Line `json:"lines"`
	Next  int64  `json:"next"`
}

// LogsQuery selects output lines: the last N, or those after Since.
type LogsQuery struct {
	N     int
	Since int64
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

package model

import "time"

// RunStatus represents the current state of a triangulation run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunInput summarizes what a run was given, for listing and audit.
type RunInput struct {
	Source     string `json:"source"` // input file path or "api"
	Facilities int    `json:"facilities"`
	Excerpts   int    `json:"excerpts"`
	TypeA      string `json:"type_a,omitempty"`
	TypeB      string `json:"type_b,omitempty"`
	TopK       int    `json:"top_k,omitempty"`
}

// Run is a persisted triangulation run and, once complete, its report.
type Run struct {
	ID        string    `json:"id"`
	Input     RunInput  `json:"input"`
	Status    RunStatus `json:"status"`
	Report    *Report   `json:"report,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

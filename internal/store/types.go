package store

import (
	"encoding/json"
	"time"

	"github.com/rendis/cog-hubspot/pkg/schema"
)

// Run is one recorded step execution.
type Run struct {
	ID         string          `json:"id"`
	StepID     string          `json:"step_id"`
	Outcome    schema.Outcome  `json:"outcome"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data,omitempty"`
	Response   json.RawMessage `json:"response,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
	DurationMs int64           `json:"duration_ms"`
	CreatedAt  time.Time       `json:"created_at"`
}

// RunFilter narrows ListRuns. Zero fields are ignored.
type RunFilter struct {
	StepID  string
	Outcome schema.Outcome
	Since   *time.Time
	Limit   int
	Offset  int
}

package steps

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/cog-hubspot/internal/crm"
	"github.com/rendis/cog-hubspot/internal/logging"
	"github.com/rendis/cog-hubspot/internal/store"
	"github.com/rendis/cog-hubspot/internal/validation"
	"github.com/rendis/cog-hubspot/pkg/schema"
)

// RunResult is a step response together with its run bookkeeping.
type RunResult struct {
	RunID      string                  `json:"run_id"`
	StepID     string                  `json:"step_id"`
	Response   *schema.RunStepResponse `json:"response"`
	Message    string                  `json:"message"`
	DurationMs int64                   `json:"duration_ms"`
}

// Runner looks steps up, validates their data, executes them and records the run.
type Runner struct {
	registry  *Registry
	validator validation.Validator
	store     store.Store
	logger    *slog.Logger
	now       func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStore records every run in s.
func WithStore(s store.Store) RunnerOption {
	return func(r *Runner) { r.store = s }
}

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the clock used for run timestamps and durations.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner creates a Runner over reg.
func NewRunner(reg *Registry, v validation.Validator, opts ...RunnerOption) *Runner {
	r := &Runner{
		registry:  reg,
		validator: v,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes one step. Domain failures come back as an ERROR or FAILED
// response; the returned error is reserved for unknown steps and a missing client.
func (r *Runner) Run(ctx context.Context, stepID string, data map[string]any, client crm.Client) (*RunResult, error) {
	step, err := r.registry.Get(stepID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, schema.NewError(schema.ErrCodeUnauthorized, "no HubSpot client available").WithStep(stepID)
	}
	if data == nil {
		data = map[string]any{}
	}

	runID := uuid.New().String()
	ctx = logging.WithIDs(ctx, runID, stepID)
	start := r.now()

	def := step.Definition()
	var resp *schema.RunStepResponse
	if err := r.validator.ValidateStepData(&def, data); err != nil {
		resp = errored("Invalid step data: %s", []any{errorText(err)})
	} else {
		resp, err = step.Execute(ctx, client, data)
		if err != nil {
			resp = errored("%s", []any{errorText(err)})
		}
	}

	result := &RunResult{
		RunID:      runID,
		StepID:     stepID,
		Response:   resp,
		Message:    resp.Message(),
		DurationMs: r.now().Sub(start).Milliseconds(),
	}

	level := slog.LevelInfo
	if resp.Outcome == schema.OutcomeError {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, "step run finished",
		"outcome", resp.Outcome,
		"message", result.Message,
		"duration_ms", result.DurationMs,
	)

	r.record(ctx, data, result, start)
	return result, nil
}

func (r *Runner) record(ctx context.Context, data map[string]any, result *RunResult, start time.Time) {
	if r.store == nil {
		return
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		dataJSON = nil
	}
	respJSON, err := json.Marshal(result.Response)
	if err != nil {
		respJSON = nil
	}

	run := &store.Run{
		ID:         result.RunID,
		StepID:     result.StepID,
		Outcome:    result.Response.Outcome,
		Message:    result.Message,
		Data:       dataJSON,
		Response:   respJSON,
		RequestID:  logging.RequestID(ctx),
		DurationMs: result.DurationMs,
		CreatedAt:  start,
	}
	if err := r.store.AppendRun(ctx, run); err != nil {
		r.logger.WarnContext(ctx, "failed to record step run", "error", err)
	}
}

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/cog-hubspot/internal/crm"
	"github.com/rendis/cog-hubspot/internal/logging"
	"github.com/rendis/cog-hubspot/internal/steps"
	"github.com/rendis/cog-hubspot/internal/store"
	"github.com/rendis/cog-hubspot/pkg/schema"
)

const defaultRunsLimit = 50

// handleManifest returns the cog manifest.
func (s *CogServer) handleManifest(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(steps.Manifest(s.registry, s.version))
}

// handleRunStep runs a single step with the session's, the call's, or the configured client.
func (s *CogServer) handleRunStep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stepID, err := req.RequireString("step_id")
	if err != nil {
		return mcp.NewToolResultError("step_id is required"), nil
	}
	data := mcp.ParseStringMap(req, "data", nil)

	ctx = logging.WithRequestID(ctx, uuid.New().String())

	client, clientErr := s.resolveClient(ctx, mcp.ParseStringMap(req, "auth", nil))
	if clientErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("authentication failed: %v", clientErr)), nil
	}

	result, runErr := s.runner.Run(ctx, stepID, data, client)
	if runErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("step run failed: %v", runErr)), nil
	}

	return marshalResult(result)
}

// handleRuns returns one recorded run, or lists runs matching a filter.
func (s *CogServer) handleRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("run log is not configured"), nil
	}

	if runID := req.GetString("run_id", ""); runID != "" {
		run, err := s.store.GetRun(ctx, runID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run lookup failed: %v", err)), nil
		}
		return marshalResult(run)
	}

	filter, err := runFilter(mcp.ParseStringMap(req, "filter", nil))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	runs, err := s.store.ListRuns(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	return marshalResult(map[string]any{"runs": runs})
}

// --- Helpers ---

// resolveClient picks the CRM client for a call. Credentials on the call build a
// fresh client, which then serves the rest of the session.
func (s *CogServer) resolveClient(ctx context.Context, auth map[string]any) (crm.Client, error) {
	sessionID := ""
	if session := server.ClientSessionFromContext(ctx); session != nil {
		sessionID = session.SessionID()
	}

	if len(auth) > 0 {
		client, err := s.newClient(ctx, crm.AuthFromMap(auth))
		if err != nil {
			return nil, err
		}
		if sessionID != "" {
			s.sessions.Set(sessionID, client)
		}
		return client, nil
	}

	if sessionID != "" {
		if client, ok := s.sessions.ClientFor(sessionID); ok {
			return client, nil
		}
	}
	return s.client, nil
}

// runFilter converts a tool filter object into a store filter.
func runFilter(filter map[string]any) (store.RunFilter, error) {
	f := store.RunFilter{
		StepID: stringFrom(filter, "step_id"),
		Limit:  extractInt(filter, "limit", defaultRunsLimit),
		Offset: extractInt(filter, "offset", 0),
	}

	if outcome := stringFrom(filter, "outcome"); outcome != "" {
		switch o := schema.Outcome(outcome); o {
		case schema.OutcomePassed, schema.OutcomeFailed, schema.OutcomeError:
			f.Outcome = o
		default:
			return f, fmt.Errorf("outcome must be PASSED, FAILED, or ERROR")
		}
	}

	if since := stringFrom(filter, "since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return f, fmt.Errorf("since must be an RFC 3339 timestamp: %v", err)
		}
		f.Since = &t
	}
	return f, nil
}

func stringFrom(filter map[string]any, key string) string {
	if v, ok := filter[key].(string); ok {
		return v
	}
	return ""
}

// extractInt safely extracts an integer from a filter map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/cog-hubspot/internal/crm"
	"github.com/rendis/cog-hubspot/internal/steps"
	"github.com/rendis/cog-hubspot/internal/store"
	"github.com/rendis/cog-hubspot/internal/validation"
	"github.com/rendis/cog-hubspot/pkg/schema"
)

// --- Fakes ---

// fakeClient answers contact lookups and deletions. Other calls hit the nil embedded interface.
type fakeClient struct {
	crm.Client
	name  string
	calls int
}

func (f *fakeClient) GetContactByEmail(_ context.Context, email string) (*crm.Contact, error) {
	f.calls++
	return &crm.Contact{VID: 42, Properties: map[string]any{"email": email, "lastname": f.name}}, nil
}

func (f *fakeClient) DeleteContactByEmail(ctx context.Context, email string) (*crm.DeleteResult, error) {
	c, _ := f.GetContactByEmail(ctx, email)
	return &crm.DeleteResult{Contact: c, Deleted: true}, nil
}

type fakeSession struct {
	id string
	ch chan mcp.JSONRPCNotification
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{id: id, ch: make(chan mcp.JSONRPCNotification, 1)}
}

func (f *fakeSession) SessionID() string                                   { return f.id }
func (f *fakeSession) NotificationChannel() chan<- mcp.JSONRPCNotification { return f.ch }
func (f *fakeSession) Initialize()                                         {}
func (f *fakeSession) Initialized() bool                                   { return true }

// mockStore keeps runs in memory.
type mockStore struct {
	store.Store // embed for unimplemented methods

	mu      sync.Mutex
	runs    []*store.Run
	filters []store.RunFilter
	listErr error
}

func (m *mockStore) AppendRun(_ context.Context, run *store.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockStore) GetRun(_ context.Context, id string) (*store.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, schema.NewError(schema.ErrCodeNotFound, "run not found")
}

func (m *mockStore) ListRuns(_ context.Context, filter store.RunFilter) ([]*store.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append(m.filters, filter)
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*store.Run
	for _, r := range m.runs {
		if filter.StepID != "" && r.StepID != filter.StepID {
			continue
		}
		if filter.Outcome != "" && r.Outcome != filter.Outcome {
			continue
		}
		result = append(result, r)
	}
	return result, nil
}

// --- Helpers ---

func newTestServer(t *testing.T, deps CogServerDeps) (*CogServer, *mockStore) {
	t.Helper()
	reg := steps.NewRegistry()
	require.NoError(t, steps.RegisterBuiltins(reg, nil, nil))
	v, err := validation.NewJSONSchemaValidator()
	require.NoError(t, err)

	ms := &mockStore{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps.Registry = reg
	deps.Store = ms
	deps.Logger = logger
	deps.Runner = steps.NewRunner(reg, v, steps.WithStore(ms), steps.WithLogger(logger))
	return NewCogServer(deps), ms
}

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func decodeResult(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.False(t, result.IsError, extractText(t, result))
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(extractText(t, result)), &out))
	return out
}

// --- Tests ---

func TestManifestTool(t *testing.T) {
	s, _ := newTestServer(t, CogServerDeps{Version: "1.4.0"})

	result, err := s.handleManifest(context.Background(), buildRequest("cog.manifest", nil))
	require.NoError(t, err)

	out := decodeResult(t, result)
	assert.Equal(t, steps.CogName, out["name"])
	assert.Equal(t, "1.4.0", out["version"])
	assert.Len(t, out["step_definitions"], 5)
	assert.Len(t, out["auth_fields"], 5)
}

func TestRunStepTool(t *testing.T) {
	client := &fakeClient{name: "doe"}
	s, ms := newTestServer(t, CogServerDeps{Client: client})

	req := buildRequest("cog.run_step", map[string]any{
		"step_id": "ContactFieldEquals",
		"data": map[string]any{
			"email":       "hubspot@test.com",
			"field":       "lastname",
			"operator":    "be",
			"expectation": "doe",
		},
	})
	result, err := s.handleRunStep(context.Background(), req)
	require.NoError(t, err)

	out := decodeResult(t, result)
	assert.Equal(t, "ContactFieldEquals", out["step_id"])
	assert.NotEmpty(t, out["run_id"])
	assert.Equal(t, "The lastname field was doe, as expected.", out["message"])
	resp := out["response"].(map[string]any)
	assert.Equal(t, string(schema.OutcomePassed), resp["outcome"])

	require.Len(t, ms.runs, 1)
	assert.Equal(t, schema.OutcomePassed, ms.runs[0].Outcome)
	assert.NotEmpty(t, ms.runs[0].RequestID)
	assert.Equal(t, 1, client.calls)
}

func TestRunStepTool_InvalidDataIsErrorOutcome(t *testing.T) {
	s, ms := newTestServer(t, CogServerDeps{Client: &fakeClient{}})

	req := buildRequest("cog.run_step", map[string]any{
		"step_id": "DeleteContactStep",
		"data":    map[string]any{"email": "not-an-email"},
	})
	result, err := s.handleRunStep(context.Background(), req)
	require.NoError(t, err)

	out := decodeResult(t, result)
	resp := out["response"].(map[string]any)
	assert.Equal(t, string(schema.OutcomeError), resp["outcome"])
	assert.Contains(t, out["message"], "Invalid step data")
	require.Len(t, ms.runs, 1)
}

func TestRunStepTool_Errors(t *testing.T) {
	tests := []struct {
		name    string
		deps    CogServerDeps
		args    map[string]any
		wantMsg string
	}{
		{
			name:    "missing step id",
			deps:    CogServerDeps{Client: &fakeClient{}},
			args:    map[string]any{},
			wantMsg: "step_id is required",
		},
		{
			name:    "unknown step",
			deps:    CogServerDeps{Client: &fakeClient{}},
			args:    map[string]any{"step_id": "NoSuchStep"},
			wantMsg: string(schema.ErrCodeStepUnavailable),
		},
		{
			name:    "no client",
			deps:    CogServerDeps{},
			args:    map[string]any{"step_id": "DeleteContactStep", "data": map[string]any{"email": "a@b.com"}},
			wantMsg: string(schema.ErrCodeUnauthorized),
		},
		{
			name: "factory failure",
			deps: CogServerDeps{NewClient: func(context.Context, crm.Auth) (crm.Client, error) {
				return nil, errors.New("refresh token revoked")
			}},
			args: map[string]any{
				"step_id": "DeleteContactStep",
				"data":    map[string]any{"email": "a@b.com"},
				"auth":    map[string]any{"clientId": "id"},
			},
			wantMsg: "authentication failed: refresh token revoked",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, ms := newTestServer(t, tc.deps)
			result, err := s.handleRunStep(context.Background(), buildRequest("cog.run_step", tc.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, extractText(t, result), tc.wantMsg)
			assert.Empty(t, ms.runs)
		})
	}
}

func TestRunStepTool_PerCallAuthBindsSession(t *testing.T) {
	configured := &fakeClient{name: "configured"}
	session := &fakeClient{name: "session"}
	var gotAuth []crm.Auth

	s, _ := newTestServer(t, CogServerDeps{
		Client: configured,
		NewClient: func(_ context.Context, auth crm.Auth) (crm.Client, error) {
			gotAuth = append(gotAuth, auth)
			return session, nil
		},
	})

	ctx := s.mcpServer.WithContext(context.Background(), newFakeSession("sess-1"))
	data := map[string]any{"email": "a@b.com", "field": "lastname", "expectation": "session"}

	result, err := s.handleRunStep(ctx, buildRequest("cog.run_step", map[string]any{
		"step_id": "ContactFieldEquals",
		"data":    data,
		"auth":    map[string]any{"apiKey": "secret"},
	}))
	require.NoError(t, err)
	decodeResult(t, result)

	require.Len(t, gotAuth, 1)
	assert.Equal(t, "secret", gotAuth[0].APIKey)
	assert.Equal(t, 1, session.calls)

	// Later calls in the same session reuse the session client.
	result, err = s.handleRunStep(ctx, buildRequest("cog.run_step", map[string]any{
		"step_id": "ContactFieldEquals",
		"data":    data,
	}))
	require.NoError(t, err)
	decodeResult(t, result)
	assert.Equal(t, 2, session.calls)
	assert.Len(t, gotAuth, 1)

	// Other sessions fall back to the configured client.
	other := s.mcpServer.WithContext(context.Background(), newFakeSession("sess-2"))
	result, err = s.handleRunStep(other, buildRequest("cog.run_step", map[string]any{
		"step_id": "ContactFieldEquals",
		"data":    data,
	}))
	require.NoError(t, err)
	out := decodeResult(t, result)
	assert.Equal(t, string(schema.OutcomeFailed), out["response"].(map[string]any)["outcome"])
	assert.Equal(t, 1, configured.calls)
}

func TestRunsTool(t *testing.T) {
	s, ms := newTestServer(t, CogServerDeps{})
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	ms.runs = []*store.Run{
		{ID: "r1", StepID: "DeleteContactStep", Outcome: schema.OutcomePassed, CreatedAt: now},
		{ID: "r2", StepID: "ContactFieldEquals", Outcome: schema.OutcomeFailed, CreatedAt: now},
		{ID: "r3", StepID: "ContactFieldEquals", Outcome: schema.OutcomePassed, CreatedAt: now},
	}

	result, err := s.handleRuns(context.Background(), buildRequest("cog.runs", map[string]any{
		"filter": map[string]any{
			"step_id": "ContactFieldEquals",
			"outcome": "PASSED",
			"since":   "2026-10-01T00:00:00Z",
			"limit":   float64(10),
			"offset":  "2",
		},
	}))
	require.NoError(t, err)

	out := decodeResult(t, result)
	runs := out["runs"].([]any)
	require.Len(t, runs, 1)
	assert.Equal(t, "r3", runs[0].(map[string]any)["id"])

	require.Len(t, ms.filters, 1)
	f := ms.filters[0]
	assert.Equal(t, 10, f.Limit)
	assert.Equal(t, 2, f.Offset)
	require.NotNil(t, f.Since)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), *f.Since)
}

func TestRunsTool_DefaultsAndEmpty(t *testing.T) {
	s, ms := newTestServer(t, CogServerDeps{})

	result, err := s.handleRuns(context.Background(), buildRequest("cog.runs", nil))
	require.NoError(t, err)

	out := decodeResult(t, result)
	assert.Equal(t, []any{}, out["runs"])
	require.Len(t, ms.filters, 1)
	assert.Equal(t, defaultRunsLimit, ms.filters[0].Limit)
}

func TestRunsTool_ByID(t *testing.T) {
	s, ms := newTestServer(t, CogServerDeps{})
	ms.runs = []*store.Run{{ID: "r1", StepID: "DeleteContactStep", Outcome: schema.OutcomePassed}}

	result, err := s.handleRuns(context.Background(), buildRequest("cog.runs", map[string]any{"run_id": "r1"}))
	require.NoError(t, err)
	assert.Equal(t, "DeleteContactStep", decodeResult(t, result)["step_id"])

	result, err = s.handleRuns(context.Background(), buildRequest("cog.runs", map[string]any{"run_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), "NOT_FOUND")
}

func TestRunsTool_Errors(t *testing.T) {
	tests := []struct {
		name    string
		filter  map[string]any
		listErr error
		wantMsg string
	}{
		{"bad outcome", map[string]any{"outcome": "MAYBE"}, nil, "outcome must be"},
		{"bad since", map[string]any{"since": "yesterday"}, nil, "since must be"},
		{"store failure", nil, errors.New("database is locked"), "query failed: database is locked"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, ms := newTestServer(t, CogServerDeps{})
			ms.listErr = tc.listErr
			result, err := s.handleRuns(context.Background(), buildRequest("cog.runs", map[string]any{"filter": tc.filter}))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, extractText(t, result), tc.wantMsg)
		})
	}
}

func TestRunsTool_NoStore(t *testing.T) {
	s := NewCogServer(CogServerDeps{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	result, err := s.handleRuns(context.Background(), buildRequest("cog.runs", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestExtractInt(t *testing.T) {
	filter := map[string]any{"a": float64(3), "b": 4, "c": "5", "d": "x", "e": true}
	assert.Equal(t, 3, extractInt(filter, "a", 0))
	assert.Equal(t, 4, extractInt(filter, "b", 0))
	assert.Equal(t, 5, extractInt(filter, "c", 0))
	assert.Equal(t, 9, extractInt(filter, "d", 9))
	assert.Equal(t, 9, extractInt(filter, "e", 9))
	assert.Equal(t, 9, extractInt(nil, "a", 9))
}

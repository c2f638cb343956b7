// Package crm is the HubSpot adapter the steps talk to.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rendis/cog-hubspot/internal/expressions"
	"github.com/rendis/cog-hubspot/pkg/schema"
)

const (
	DefaultBaseURL         = "https://api.hubapi.com"
	defaultTimeout         = 30 * time.Second
	defaultMaxResponseBody = 10 * 1024 * 1024 // 10MB

	// tokenRefreshSkew is how long before expiry an access token is renewed.
	tokenRefreshSkew = 5 * time.Minute
)

// ContactReader loads contacts.
type ContactReader interface {
	GetContactByEmail(ctx context.Context, email string) (*Contact, error)
}

// ContactWriter mutates contacts.
type ContactWriter interface {
	CreateOrUpdateContact(ctx context.Context, email string, properties map[string]any) (*UpsertResult, error)
	DeleteContactByEmail(ctx context.Context, email string) (*DeleteResult, error)
}

// WorkflowService lists workflows and manages contact enrollments.
type WorkflowService interface {
	ListWorkflows(ctx context.Context) ([]Workflow, error)
	FindWorkflowsByName(ctx context.Context, name string) ([]Workflow, error)
	EnrollContactInWorkflow(ctx context.Context, workflowID, email string) error
	CurrentContactWorkflows(ctx context.Context, vid string) ([]Workflow, error)
}

// Client is everything a step may ask of the CRM.
type Client interface {
	ContactReader
	ContactWriter
	WorkflowService
}

// HubSpot is a Client backed by the HubSpot REST API.
// A *HubSpot returned by New is ready: OAuth credentials have already been exchanged.
type HubSpot struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	maxBody    int64
	jq         *expressions.GoJQEngine
	now        func() time.Time

	refreshMu   sync.Mutex
	mu          sync.RWMutex
	auth        Auth
	accessToken string
	expiresAt   time.Time
}

// Option configures a HubSpot client.
type Option func(*HubSpot)

// WithBaseURL points the client at a different API host.
func WithBaseURL(u string) Option {
	return func(h *HubSpot) { h.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HubSpot) {
		if c != nil {
			h.httpClient = c
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(h *HubSpot) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithClock overrides the clock used for token expiry bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(h *HubSpot) {
		if now != nil {
			h.now = now
		}
	}
}

// New builds a ready HubSpot client. With OAuth credentials the refresh token is
// exchanged before New returns; a failed exchange is returned and no client is handed out.
func New(ctx context.Context, auth Auth, opts ...Option) (*HubSpot, error) {
	if err := auth.Validate(); err != nil {
		return nil, err
	}

	h := &HubSpot{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
		maxBody:    defaultMaxResponseBody,
		jq:         expressions.NewGoJQEngine(),
		now:        time.Now,
		auth:       auth,
	}
	for _, o := range opts {
		o(h)
	}

	if auth.OAuth() {
		if err := h.RefreshToken(ctx); err != nil {
			return nil, err
		}
	}
	return h, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RefreshToken exchanges the OAuth refresh token for a new access token.
// It is a no-op for API-key clients.
func (h *HubSpot) RefreshToken(ctx context.Context) error {
	h.mu.RLock()
	auth := h.auth
	h.mu.RUnlock()
	if !auth.OAuth() {
		return nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", auth.ClientID)
	form.Set("client_secret", auth.ClientSecret)
	form.Set("refresh_token", auth.RefreshToken)
	if auth.RedirectURI != "" {
		form.Set("redirect_uri", auth.RedirectURI)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/oauth/v1/token", strings.NewReader(form.Encode()))
	if err != nil {
		return schema.NewError(schema.ErrCodeExecution, "hubspot: failed to create token request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok tokenResponse
	if err := h.send(req, &tok); err != nil {
		var cogErr *schema.CogError
		if errors.As(err, &cogErr) && cogErr.Code != schema.ErrCodeExecution {
			cogErr.Code = schema.ErrCodeUnauthorized
		}
		return err
	}
	if tok.AccessToken == "" {
		return schema.NewError(schema.ErrCodeUnauthorized, "hubspot: token response carried no access token")
	}

	h.mu.Lock()
	h.accessToken = tok.AccessToken
	h.expiresAt = h.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	if tok.RefreshToken != "" {
		h.auth.RefreshToken = tok.RefreshToken
	}
	h.mu.Unlock()

	h.logger.DebugContext(ctx, "hubspot access token refreshed", "expires_in", tok.ExpiresIn)
	return nil
}

// TokenExpiry returns when the current access token expires, or the zero time for API-key clients.
func (h *HubSpot) TokenExpiry() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.expiresAt
}

// ensureToken renews an OAuth access token that has expired or is about to.
func (h *HubSpot) ensureToken(ctx context.Context) error {
	if !h.tokenStale() {
		return nil
	}
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()
	if !h.tokenStale() {
		return nil
	}
	h.logger.DebugContext(ctx, "hubspot access token near expiry, refreshing")
	return h.RefreshToken(ctx)
}

func (h *HubSpot) tokenStale() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.auth.OAuth() {
		return false
	}
	return !h.now().Before(h.expiresAt.Add(-tokenRefreshSkew))
}

// do issues an authenticated JSON request. A nil out discards the response body.
func (h *HubSpot) do(ctx context.Context, method, path string, body, out any) error {
	if err := h.ensureToken(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return schema.NewError(schema.ErrCodeExecution, "hubspot: failed to marshal body as JSON").WithCause(err)
		}
		reader = bytes.NewReader(b)
	}

	u, err := url.Parse(h.baseURL + path)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeExecution, "hubspot: invalid url %q", h.baseURL+path).WithCause(err)
	}

	h.mu.RLock()
	apiKey, token := h.auth.APIKey, h.accessToken
	h.mu.RUnlock()
	if token == "" && apiKey != "" {
		q := u.Query()
		q.Set("hapikey", apiKey)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return schema.NewError(schema.ErrCodeExecution, "hubspot: failed to create request").WithCause(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return h.send(req, out)
}

func (h *HubSpot) send(req *http.Request, out any) error {
	start := time.Now()
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeExecution, "hubspot: request failed: %v", err).WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBody))
	if err != nil {
		return schema.NewError(schema.ErrCodeExecution, "hubspot: failed to read response body").WithCause(err)
	}

	h.logger.DebugContext(req.Context(), "hubspot request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= 400 {
		return apiError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return schema.NewError(schema.ErrCodeUpstream, "hubspot: malformed response body").WithCause(err)
	}
	return nil
}

// apiError maps a HubSpot error response to a CogError carrying the status code.
func apiError(status int, body []byte) *schema.CogError {
	var payload struct {
		Message string `json:"message"`
	}
	msg := http.StatusText(status)
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		msg = payload.Message
	}

	code := schema.ErrCodeUpstream
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = schema.ErrCodeUnauthorized
	case http.StatusNotFound:
		code = schema.ErrCodeNotFound
	case http.StatusConflict:
		code = schema.ErrCodeConflict
	}
	return schema.NewErrorf(code, "hubspot: %s", msg).
		WithDetails(map[string]any{"status": status})
}

// StatusCode returns the HTTP status carried by an API error, or 0.
func StatusCode(err error) int {
	var cogErr *schema.CogError
	if !errors.As(err, &cogErr) || cogErr.Details == nil {
		return 0
	}
	status, _ := cogErr.Details["status"].(int)
	return status
}

func escape(s string) string {
	return url.PathEscape(strings.TrimSpace(s))
}

func pathf(format string, args ...string) string {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = escape(a)
	}
	return fmt.Sprintf(format, escaped...)
}

var _ Client = (*HubSpot)(nil)

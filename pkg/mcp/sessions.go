package mcp

import (
	"sync"

	"github.com/rendis/cog-hubspot/internal/crm"
)

// SessionClients maps MCP session IDs to the CRM client built from the
// credentials that session supplied. Populated when cog.run_step carries auth.
type SessionClients struct {
	mu      sync.RWMutex
	clients map[string]crm.Client // sessionID → client
}

// NewSessionClients creates a new empty SessionClients.
func NewSessionClients() *SessionClients {
	return &SessionClients{clients: make(map[string]crm.Client)}
}

// Set associates a client with a session, replacing any previous one.
func (r *SessionClients) Set(sessionID string, c crm.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[sessionID] = c
}

// ClientFor returns the client bound to the session, if any.
func (r *SessionClients) ClientFor(sessionID string) (crm.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[sessionID]
	return c, ok
}

// Remove drops the session's client. Called when a session disconnects.
func (r *SessionClients) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, sessionID)
}

// Len returns the number of sessions holding a client.
func (r *SessionClients) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Package fixture provides an in-process stub of the sync-state backend for
// tests and the simulator binary.
package fixture

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
)

// StateServer serves POST /v1/sync-state with a configurable JSON state
// payload. It can be told to reject the next N requests with 401 to exercise
// the credential-invalidation retry path.
type StateServer struct {
	*httptest.Server

	mu          sync.Mutex
	state       any
	reject401   int
	requests    int
	validTokens map[string]bool
}

func NewStateServer(state any) *StateServer {
	s := &StateServer{state: state, validTokens: map[string]bool{}}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/v1/sync-state", s.handleSyncState)
	s.Server = httptest.NewServer(r)
	return s
}

// SetState replaces the payload returned to subsequent requests.
func (s *StateServer) SetState(state any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// RejectNext makes the next n requests fail with 401 regardless of token.
func (s *StateServer) RejectNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject401 = n
}

// AllowToken registers a bearer token as valid. When no token was ever
// registered, any non-empty token is accepted.
func (s *StateServer) AllowToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validTokens[token] = true
}

// Requests returns how many sync-state calls the server has seen.
func (s *StateServer) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func (s *StateServer) handleSyncState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests++
	reject := s.reject401 > 0
	if reject {
		s.reject401--
	}
	state := s.state
	tokenOK := s.tokenValidLocked(r.Header.Get("Authorization"))
	s.mu.Unlock()

	if reject || !tokenOK {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(state)
}

func (s *StateServer) tokenValidLocked(header string) bool {
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		return false
	}
	if len(s.validTokens) == 0 {
		return true
	}
	return s.validTokens[token]
}

// StaticCredentials is a CredentialProvider returning tokens from a fixed
// sequence, advancing on Invalidate. The last token repeats.
type StaticCredentials struct {
	mu     sync.Mutex
	tokens []string
	pos    int

	Invalidations int
}

func NewStaticCredentials(tokens ...string) *StaticCredentials {
	return &StaticCredentials{tokens: tokens}
}

func (c *StaticCredentials) Token(_ context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tokens) == 0 {
		return "", nil
	}
	return c.tokens[c.pos], nil
}

func (c *StaticCredentials) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Invalidations++
	if c.pos < len(c.tokens)-1 {
		c.pos++
	}
}

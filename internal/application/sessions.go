package application

import (
	"sync"
	"time"

	"github.com/logistics-platform/booking-dashboard/internal/credentials"
)

// Session is one portal user's set of screens. Screens are never shared
// across sessions.
type Session struct {
	ID         string
	Admin      *AdminDashboard
	Customer   *CustomerDashboard
	Dispatcher *DispatcherDashboard
	Reports    *ReportScreen
	Users      *UserScreen

	lastSeen time.Time
}

// Close discards in-flight refreshes on every screen
func (s *Session) Close() {
	s.Admin.Close()
	s.Customer.Close()
	s.Dispatcher.Close()
	s.Reports.Close()
	s.Users.Close()
}

// Sessions is the registry of live sessions, created lazily on first use
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
	fetcher  Fetcher
	config   ScreenConfig
	deps     Dependencies
}

// NewSessions creates an empty registry
func NewSessions(fetcher Fetcher, config ScreenConfig, deps Dependencies) *Sessions {
	return &Sessions{
		sessions: make(map[string]*Session),
		fetcher:  fetcher,
		config:   config,
		deps:     deps.withDefaults(),
	}
}

// Open returns the caller's session named id, creating it on first use. The
// credential must be valid. Sessions belong to the token that opened them:
// the same id presented with another token names a different session.
func (r *Sessions) Open(id string, cred credentials.Credential) (*Session, error) {
	if err := cred.Validate(r.deps.Clock()); err != nil {
		return nil, err
	}
	return r.get(sessionKey(id, cred)), nil
}

// Release closes the caller's session named id. It reports whether the
// session existed.
func (r *Sessions) Release(id string, cred credentials.Credential) (bool, error) {
	if err := cred.Validate(r.deps.Clock()); err != nil {
		return false, err
	}
	return r.drop(sessionKey(id, cred)), nil
}

func sessionKey(id string, cred credentials.Credential) string {
	return cred.Fingerprint() + "/" + id
}

// get returns the session stored under key, creating it on first use
func (r *Sessions) get(key string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.deps.Clock()
	if s, ok := r.sessions[key]; ok {
		s.lastSeen = now
		return s
	}

	s := &Session{
		ID:         key,
		Admin:      NewAdminDashboard(r.fetcher, r.config.AdminRecentLimit, r.deps),
		Customer:   NewCustomerDashboard(r.fetcher, r.config.CustomerRecentLimit, r.deps),
		Dispatcher: NewDispatcherDashboard(r.config.DispatchFixture, r.config.DispatchRefreshLatency, r.deps),
		Reports:    NewReportScreen(r.fetcher, r.deps),
		Users:      NewUserScreen(r.fetcher, r.config.BookingCountConcurrency, r.deps),
		lastSeen:   now,
	}
	r.sessions[key] = s
	r.deps.Metrics.SetActiveSessions(len(r.sessions))
	return s
}

// drop unmounts and forgets a session. It reports whether the session existed.
func (r *Sessions) drop(key string) bool {
	r.mu.Lock()
	s, ok := r.sessions[key]
	if ok {
		delete(r.sessions, key)
		r.deps.Metrics.SetActiveSessions(len(r.sessions))
	}
	r.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

// EvictIdle closes sessions unused for longer than maxIdle and returns how many
func (r *Sessions) EvictIdle(maxIdle time.Duration) int {
	cutoff := r.deps.Clock().Add(-maxIdle)

	r.mu.Lock()
	var idle []*Session
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			idle = append(idle, s)
			delete(r.sessions, id)
		}
	}
	if len(idle) > 0 {
		r.deps.Metrics.SetActiveSessions(len(r.sessions))
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	return len(idle)
}

// CloseAll closes every session
func (r *Sessions) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.deps.Metrics.SetActiveSessions(0)
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}

// Len returns the number of live sessions
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

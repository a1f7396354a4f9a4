package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// AssertEventually asserts that a condition becomes true within a timeout
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}
		<-ticker.C
		if time.Now().After(deadline) {
			t.Fatalf("Condition not met within timeout: %s", message)
			return
		}
	}
}

// Route is a canned upstream answer
type Route struct {
	Status int
	Body   string
	Delay  time.Duration
}

// FakeUpstream is an in-process stand-in for the booking API. Routes are
// matched on the URL path only; query strings are recorded for assertions.
type FakeUpstream struct {
	Server *httptest.Server

	mu      sync.Mutex
	routes  map[string]Route
	hits    map[string]int
	queries map[string][]string
	auth    []string
}

// NewFakeUpstream starts a fake upstream that is closed when the test ends
func NewFakeUpstream(t *testing.T) *FakeUpstream {
	t.Helper()
	f := &FakeUpstream{
		routes:  make(map[string]Route),
		hits:    make(map[string]int),
		queries: make(map[string][]string),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeUpstream) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	route, ok := f.routes[r.URL.Path]
	f.hits[r.URL.Path]++
	f.queries[r.URL.Path] = append(f.queries[r.URL.Path], r.URL.RawQuery)
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	f.mu.Unlock()

	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"message":"not found"}`))
		return
	}

	if route.Delay > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(route.Delay):
		}
	}

	status := route.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(route.Body))
}

// BaseURL returns the API base URL, including the /api prefix
func (f *FakeUpstream) BaseURL() string {
	return f.Server.URL + "/api"
}

// Handle sets the answer for a path such as "/api/bookings/stats"
func (f *FakeUpstream) Handle(path string, route Route) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[path] = route
}

// HandleJSON answers path with 200 and v marshaled as JSON
func (f *FakeUpstream) HandleJSON(t *testing.T, path string, v any) {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	f.Handle(path, Route{Status: http.StatusOK, Body: string(body)})
}

// Hits returns how many requests reached path
func (f *FakeUpstream) Hits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

// Queries returns the raw query strings sent to path, in arrival order
func (f *FakeUpstream) Queries(path string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries[path]...)
}

// AuthorizationHeaders returns every Authorization header received
func (f *FakeUpstream) AuthorizationHeaders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.auth...)
}

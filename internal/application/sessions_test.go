package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logistics-platform/booking-dashboard/internal/credentials"
	"github.com/logistics-platform/booking-dashboard/internal/domain"
)

func openSession(t *testing.T, r *Sessions, id string, cred credentials.Credential) *Session {
	t.Helper()
	s, err := r.Open(id, cred)
	require.NoError(t, err)
	return s
}

func TestSessions_OpenCreatesOnce(t *testing.T) {
	metrics := &recordingMetrics{}
	deps := testDeps()
	deps.Metrics = metrics
	r := NewSessions(&fakeFetcher{}, DefaultScreenConfig(), deps)
	cred := credentials.New("token-a")

	a := openSession(t, r, "s-1", cred)
	assert.Same(t, a, openSession(t, r, "s-1", cred))
	assert.NotSame(t, a, openSession(t, r, "s-2", cred))
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 2, metrics.sessions)

	assert.Equal(t, domain.PhaseIdle, a.Admin.Phase())
	assert.Equal(t, domain.PhaseReady, a.Dispatcher.Phase())
}

func TestSessions_BoundToCredential(t *testing.T) {
	r := NewSessions(&fakeFetcher{}, DefaultScreenConfig(), testDeps())
	owner := openSession(t, r, "shared", credentials.New("token-a"))

	intruder := openSession(t, r, "shared", credentials.New("token-b"))
	assert.NotSame(t, owner, intruder)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(morning.Add(-time.Minute)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		cred    credentials.Credential
		wantErr error
	}{
		{name: "missing", cred: credentials.New(""), wantErr: credentials.ErrMissingCredential},
		{name: "expired", cred: credentials.New(expired), wantErr: credentials.ErrExpiredCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := r.Open("shared", tt.cred)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, s)

			ok, err := r.Release("shared", tt.cred)
			require.ErrorIs(t, err, tt.wantErr)
			assert.False(t, ok)
		})
	}

	ok, err := r.Release("shared", credentials.New("token-b"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, owner, openSession(t, r, "shared", credentials.New("token-a")))
	assert.Equal(t, 1, r.Len())
}

func TestSessions_ScreensAreIsolated(t *testing.T) {
	r := NewSessions(&fakeFetcher{}, DefaultScreenConfig(), testDeps())
	cred := credentials.New("token-a")

	require.NoError(t, openSession(t, r, "s-1", cred).Dispatcher.UpdateStatus("DEL001", domain.DeliveryStatusDelivered))

	other, err := openSession(t, r, "s-2", cred).Dispatcher.Snapshot("delivered")
	require.NoError(t, err)
	assert.Empty(t, other.Deliveries)
}

func TestSessions_Release(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fetcher := &fakeFetcher{
		customerStats: func(context.Context) (domain.CustomerStats, error) {
			close(started)
			<-release
			return domain.CustomerStats{TotalBookings: 3}, nil
		},
	}
	r := NewSessions(fetcher, DefaultScreenConfig(), testDeps())
	cred := credentials.New("opaque")
	s := openSession(t, r, "s-1", cred)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Customer.Refresh(context.Background(), cred)
	}()
	<-started

	ok, err := r.Release("s-1", cred)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.Release("s-1", cred)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())

	close(release)
	wg.Wait()
	assert.Equal(t, domain.PhaseIdle, s.Customer.Phase())
	assert.Equal(t, int64(0), s.Customer.Snapshot().Stats.TotalBookings)
}

func TestSessions_EvictIdle(t *testing.T) {
	var mu sync.Mutex
	now := morning
	deps := testDeps()
	deps.Clock = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}

	r := NewSessions(&fakeFetcher{}, DefaultScreenConfig(), deps)
	cred := credentials.New("opaque")
	openSession(t, r, "old", cred)
	advance(20 * time.Minute)
	openSession(t, r, "fresh", cred)
	advance(15 * time.Minute)

	assert.Equal(t, 1, r.EvictIdle(30*time.Minute))
	assert.Equal(t, 1, r.Len())

	r.CloseAll()
	assert.Equal(t, 0, r.Len())
}

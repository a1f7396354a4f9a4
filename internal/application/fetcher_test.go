package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/logistics-platform/booking-dashboard/internal/credentials"
	"github.com/logistics-platform/booking-dashboard/internal/domain"
	"github.com/logistics-platform/booking-dashboard/internal/infrastructure/clients"
)

var morning = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func testDeps() Dependencies {
	return Dependencies{Clock: func() time.Time { return morning }}
}

// fakeFetcher answers every screen fetch from optional function fields.
// Unset fields return zero values.
type fakeFetcher struct {
	bookingsReport func(ctx context.Context) (domain.BookingsReport, error)
	usersReport    func(ctx context.Context) (domain.UsersReport, error)
	performance    func(ctx context.Context) (domain.PerformanceStats, error)
	customerStats  func(ctx context.Context) (domain.CustomerStats, error)
	recent         func(ctx context.Context, limit int) ([]domain.BookingRecord, error)
	report         func(ctx context.Context, sel domain.ReportSelection) (*domain.Report, error)
	listUsers      func(ctx context.Context) ([]domain.UserRecord, error)
	countBookings  func(ctx context.Context, customerID string) (int, error)

	mu         sync.Mutex
	selections []domain.ReportSelection
}

func (f *fakeFetcher) GetBookingsReport(ctx context.Context, _ credentials.Credential) (domain.BookingsReport, error) {
	if f.bookingsReport == nil {
		return domain.BookingsReport{}, nil
	}
	return f.bookingsReport(ctx)
}

func (f *fakeFetcher) GetUsersReport(ctx context.Context, _ credentials.Credential) (domain.UsersReport, error) {
	if f.usersReport == nil {
		return domain.UsersReport{}, nil
	}
	return f.usersReport(ctx)
}

func (f *fakeFetcher) GetPerformanceReport(ctx context.Context, _ credentials.Credential) (domain.PerformanceStats, error) {
	if f.performance == nil {
		return domain.PerformanceStats{}, nil
	}
	return f.performance(ctx)
}

func (f *fakeFetcher) GetCustomerStats(ctx context.Context, _ credentials.Credential) (domain.CustomerStats, error) {
	if f.customerStats == nil {
		return domain.CustomerStats{}, nil
	}
	return f.customerStats(ctx)
}

func (f *fakeFetcher) GetRecentBookings(ctx context.Context, _ credentials.Credential, limit int) ([]domain.BookingRecord, error) {
	if f.recent == nil {
		return nil, nil
	}
	return f.recent(ctx, limit)
}

func (f *fakeFetcher) GetReport(ctx context.Context, _ credentials.Credential, sel domain.ReportSelection) (*domain.Report, error) {
	f.mu.Lock()
	f.selections = append(f.selections, sel)
	f.mu.Unlock()
	if f.report == nil {
		return &domain.Report{}, nil
	}
	return f.report(ctx, sel)
}

func (f *fakeFetcher) ListUsers(ctx context.Context, _ credentials.Credential) ([]domain.UserRecord, error) {
	if f.listUsers == nil {
		return nil, nil
	}
	return f.listUsers(ctx)
}

func (f *fakeFetcher) CountCustomerBookings(ctx context.Context, _ credentials.Credential, customerID string) (int, error) {
	if f.countBookings == nil {
		return 0, nil
	}
	return f.countBookings(ctx, customerID)
}

func (f *fakeFetcher) reportSelections() []domain.ReportSelection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ReportSelection{}, f.selections...)
}

var _ Fetcher = (*fakeFetcher)(nil)

func namedCredential(t *testing.T, name string) credentials.Credential {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, credentials.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "cust-1",
			ExpiresAt: jwt.NewNumericDate(morning.Add(time.Hour)),
		},
		Name: name,
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return credentials.New(token)
}

func serverDown(op string) error {
	return &clients.APIError{Op: op, Status: 500, Message: "Server down"}
}

func networkDown(op string) error {
	return &clients.NetworkError{Op: op, Err: context.DeadlineExceeded}
}

type recordingMetrics struct {
	mu       sync.Mutex
	refresh  []string
	edits    []string
	sessions int
}

func (m *recordingMetrics) RecordRefresh(screen, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh = append(m.refresh, screen+":"+outcome)
}

func (m *recordingMetrics) RecordStatusEdit(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, result)
}

func (m *recordingMetrics) SetActiveSessions(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = n
}

func (m *recordingMetrics) refreshes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.refresh...)
}

// holdFirst parks the first fetch until release is closed, so a second
// refresh can overtake it. started is closed once the first fetch waits.
type holdFirst struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func newHoldFirst() *holdFirst {
	return &holdFirst{started: make(chan struct{}), release: make(chan struct{})}
}

// wait blocks the first caller and reports whether it was the first
func (h *holdFirst) wait() bool {
	h.mu.Lock()
	h.calls++
	first := h.calls == 1
	h.mu.Unlock()

	if first {
		close(h.started)
		<-h.release
	}
	return first
}

// cancelMidway returns a context and a switch. Once armed, the next fetch
// that calls trip cancels the context and fails the way the client does.
type cancelMidway struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	armed bool
}

func newCancelMidway() *cancelMidway {
	ctx, cancel := context.WithCancel(context.Background())
	return &cancelMidway{ctx: ctx, cancel: cancel}
}

func (c *cancelMidway) arm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = true
}

// trip cancels the context when armed and returns the resulting fetch error
func (c *cancelMidway) trip(op string) error {
	c.mu.Lock()
	armed := c.armed
	c.mu.Unlock()
	if !armed {
		return nil
	}
	c.cancel()
	return &clients.NetworkError{Op: op, Err: c.ctx.Err()}
}

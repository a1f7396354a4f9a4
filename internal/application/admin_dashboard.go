package application

import (
	"context"
	"sync"
	"time"

	"github.com/logistics-platform/booking-dashboard/internal/credentials"
	"github.com/logistics-platform/booking-dashboard/internal/domain"
	"github.com/logistics-platform/booking-dashboard/internal/infrastructure/clients"
)

// Degraded field groups on the admin dashboard
const (
	DegradedUsers       = "users"
	DegradedPerformance = "performance"
)

const (
	adminFetchFailed = "Failed to fetch stats"
	adminName        = "Administrator"
)

// AdminDashboard is the admin overview screen. The bookings report is
// required; the users and performance reports only enrich it.
type AdminDashboard struct {
	mu          sync.Mutex
	state       viewState
	fetcher     AdminFetcher
	deps        Dependencies
	recentLimit int

	stats       domain.AdminStats
	performance domain.PerformanceStats
	recent      []domain.BookingRecord
}

// NewAdminDashboard creates an admin dashboard in the Idle phase
func NewAdminDashboard(fetcher AdminFetcher, recentLimit int, deps Dependencies) *AdminDashboard {
	if recentLimit <= 0 {
		recentLimit = DefaultScreenConfig().AdminRecentLimit
	}
	return &AdminDashboard{
		state:       newViewState(),
		fetcher:     fetcher,
		deps:        deps.withDefaults(),
		recentLimit: recentLimit,
	}
}

// Refresh fetches the three admin reports concurrently and recomputes the
// dashboard. The returned error is the required report's failure, if any; a
// refresh overtaken by a newer one returns nil and changes nothing. When ctx
// ends first the refresh is discarded and ctx.Err() is returned.
func (d *AdminDashboard) Refresh(ctx context.Context, cred credentials.Credential) error {
	start := time.Now()
	logger := d.deps.Logger.WithScreen(ScreenAdmin).WithContext(ctx)

	d.mu.Lock()
	gen := d.state.begin()
	d.mu.Unlock()

	var (
		wg          sync.WaitGroup
		bookings    domain.BookingsReport
		users       domain.UsersReport
		performance domain.PerformanceStats
		bookingsErr error
		usersErr    error
		perfErr     error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		bookings, bookingsErr = d.fetcher.GetBookingsReport(ctx, cred)
	}()
	go func() {
		defer wg.Done()
		users, usersErr = d.fetcher.GetUsersReport(ctx, cred)
	}()
	go func() {
		defer wg.Done()
		performance, perfErr = d.fetcher.GetPerformanceReport(ctx, cred)
	}()
	wg.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.state.isCurrent(gen) {
		d.deps.recordRefresh(ctx, ScreenAdmin, gen, outcomeStale, start, nil)
		return nil
	}
	if ctx.Err() != nil {
		return d.deps.abandon(ctx, &d.state, ScreenAdmin, gen, start)
	}

	if bookingsErr != nil {
		d.state.fail(clients.UserMessage(bookingsErr, adminFetchFailed))
		d.deps.recordRefresh(ctx, ScreenAdmin, gen, outcomeFailed, start, nil)
		return bookingsErr
	}

	var degraded []string
	if usersErr != nil {
		logger.WithError(usersErr).Warn("Users report unavailable, showing 0 users")
		users = domain.UsersReport{}
		degraded = append(degraded, DegradedUsers)
	}
	if perfErr != nil {
		logger.WithError(perfErr).Warn("Performance report unavailable, showing zeros")
		performance = domain.PerformanceStats{}
		degraded = append(degraded, DegradedPerformance)
	}

	stats := domain.AggregateAdminStats(bookings.Bookings, users.TotalUsers)
	d.stats = domain.ApplyReportedTotals(stats, bookings)
	d.performance = performance
	d.recent = domain.RecentBookings(bookings.Bookings, d.recentLimit)
	d.state.succeed(d.deps.Clock(), degraded)

	d.deps.recordRefresh(ctx, ScreenAdmin, gen, outcomeReady, start, degraded)
	return nil
}

// Phase returns the current phase
func (d *AdminDashboard) Phase() domain.Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.phase
}

// Close discards any in-flight refresh
func (d *AdminDashboard) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.invalidate()
}

// Snapshot returns the render-ready dashboard
func (d *AdminDashboard) Snapshot() domain.AdminSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	return domain.AdminSnapshot{
		ScreenStatus:   d.state.status(domain.AddressedGreeting(d.deps.Clock(), adminName)),
		Stats:          d.stats,
		Performance:    d.performance,
		RecentBookings: append([]domain.BookingRecord{}, d.recent...),
		TransportChart: domain.TransportChart(d.stats),
	}
}

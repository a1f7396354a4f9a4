package application

import (
	"context"
	"sync"
	"time"

	"github.com/logistics-platform/booking-dashboard/internal/credentials"
	"github.com/logistics-platform/booking-dashboard/internal/domain"
	"github.com/logistics-platform/booking-dashboard/internal/infrastructure/clients"
)

// DegradedRecentBookings marks a customer dashboard shown without its recent list
const DegradedRecentBookings = "recentBookings"

const (
	customerFetchFailed = "Failed to load dashboard data"
	defaultCustomerName = "Valued Customer"
)

// CustomerDashboard is the signed-in customer's overview screen
type CustomerDashboard struct {
	mu          sync.Mutex
	state       viewState
	fetcher     CustomerFetcher
	deps        Dependencies
	recentLimit int

	name   string
	stats  domain.CustomerStats
	recent []domain.BookingRecord
}

// NewCustomerDashboard creates a customer dashboard in the Idle phase
func NewCustomerDashboard(fetcher CustomerFetcher, recentLimit int, deps Dependencies) *CustomerDashboard {
	if recentLimit <= 0 {
		recentLimit = DefaultScreenConfig().CustomerRecentLimit
	}
	return &CustomerDashboard{
		state:       newViewState(),
		fetcher:     fetcher,
		deps:        deps.withDefaults(),
		recentLimit: recentLimit,
		name:        defaultCustomerName,
	}
}

// Refresh fetches the stats and the recent bookings concurrently. Stats are
// required; a failed recent list shows as empty.
func (d *CustomerDashboard) Refresh(ctx context.Context, cred credentials.Credential) error {
	start := time.Now()

	d.mu.Lock()
	gen := d.state.begin()
	d.mu.Unlock()

	var (
		wg        sync.WaitGroup
		stats     domain.CustomerStats
		recent    []domain.BookingRecord
		statsErr  error
		recentErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		stats, statsErr = d.fetcher.GetCustomerStats(ctx, cred)
	}()
	go func() {
		defer wg.Done()
		recent, recentErr = d.fetcher.GetRecentBookings(ctx, cred, d.recentLimit)
	}()
	wg.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.state.isCurrent(gen) {
		d.deps.recordRefresh(ctx, ScreenCustomer, gen, outcomeStale, start, nil)
		return nil
	}
	if ctx.Err() != nil {
		return d.deps.abandon(ctx, &d.state, ScreenCustomer, gen, start)
	}

	if statsErr != nil {
		d.state.fail(clients.UserMessage(statsErr, customerFetchFailed))
		d.deps.recordRefresh(ctx, ScreenCustomer, gen, outcomeFailed, start, nil)
		return statsErr
	}

	var degraded []string
	if recentErr != nil {
		d.deps.Logger.WithScreen(ScreenCustomer).WithContext(ctx).WithError(recentErr).
			Warn("Recent bookings unavailable, showing none")
		recent = nil
		degraded = append(degraded, DegradedRecentBookings)
	}

	d.name = cred.DisplayName(defaultCustomerName)
	d.stats = stats
	d.recent = domain.RecentBookings(recent, d.recentLimit)
	d.state.succeed(d.deps.Clock(), degraded)

	d.deps.recordRefresh(ctx, ScreenCustomer, gen, outcomeReady, start, degraded)
	return nil
}

// Phase returns the current phase
func (d *CustomerDashboard) Phase() domain.Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.phase
}

// Close discards any in-flight refresh
func (d *CustomerDashboard) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.invalidate()
}

// Snapshot returns the render-ready dashboard
func (d *CustomerDashboard) Snapshot() domain.CustomerSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	return domain.CustomerSnapshot{
		ScreenStatus:   d.state.status(domain.AddressedGreeting(d.deps.Clock(), d.name)),
		Stats:          d.stats,
		RecentBookings: append([]domain.BookingRecord{}, d.recent...),
		TotalSpent:     domain.FormatCurrency(d.stats.TotalSpent),
	}
}

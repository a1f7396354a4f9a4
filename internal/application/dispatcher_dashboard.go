package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/logistics-platform/booking-dashboard/internal/domain"
)

var (
	// ErrDeliveryNotFound is returned when a status edit names an unknown delivery
	ErrDeliveryNotFound = errors.New("delivery not found")
	// ErrEditSuperseded is returned when a refresh completed after the edit began
	ErrEditSuperseded = errors.New("edit superseded by a newer refresh")
	// ErrInvalidStatus is returned for an unknown delivery status or filter
	ErrInvalidStatus = errors.New("invalid delivery status")
)

// Status edit results, used as metric labels
const (
	EditApplied    = "applied"
	EditSuperseded = "superseded"
	EditNotFound   = "not_found"
)

// EditToken marks the board revision a status edit was started against
type EditToken uint64

// DispatcherDashboard is the dispatcher's delivery board. It has no upstream
// feed: deliveries come from a fixture and refresh only re-stamps the board.
type DispatcherDashboard struct {
	mu        sync.Mutex
	state     viewState
	deps      Dependencies
	latency   time.Duration
	board     *domain.DeliveryBoard
	completed uint64 // refreshes completed so far
}

// NewDispatcherDashboard creates a board seeded from fixture, Ready at once
func NewDispatcherDashboard(fixture *domain.DispatchFixture, latency time.Duration, deps Dependencies) *DispatcherDashboard {
	if fixture == nil {
		fixture = domain.DefaultDispatchFixture()
	}
	if latency < 0 {
		latency = 0
	}
	deps = deps.withDefaults()

	d := &DispatcherDashboard{
		state:   newViewState(),
		deps:    deps,
		latency: latency,
		board:   domain.NewDeliveryBoard(fixture.Deliveries, fixture.Stats),
	}
	d.state.succeed(deps.Clock(), nil)
	return d
}

// Refresh waits out the simulated feed latency and stamps the board. It
// returns ctx.Err() if the wait is cancelled.
func (d *DispatcherDashboard) Refresh(ctx context.Context) error {
	start := time.Now()

	d.mu.Lock()
	gen := d.state.begin()
	d.mu.Unlock()

	timer := time.NewTimer(d.latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		d.mu.Lock()
		defer d.mu.Unlock()
		if !d.state.isCurrent(gen) {
			d.deps.recordRefresh(ctx, ScreenDispatcher, gen, outcomeStale, start, nil)
			return ctx.Err()
		}
		return d.deps.abandon(ctx, &d.state, ScreenDispatcher, gen, start)
	case <-timer.C:
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.state.isCurrent(gen) {
		d.deps.recordRefresh(ctx, ScreenDispatcher, gen, outcomeStale, start, nil)
		return nil
	}

	d.completed++
	d.state.succeed(d.deps.Clock(), nil)
	d.deps.recordRefresh(ctx, ScreenDispatcher, gen, outcomeReady, start, nil)
	return nil
}

// BeginEdit returns a token for a status edit started now
func (d *DispatcherDashboard) BeginEdit() EditToken {
	d.mu.Lock()
	defer d.mu.Unlock()
	return EditToken(d.completed)
}

// ApplyStatus applies a status edit started with token. It fails with
// ErrEditSuperseded if a refresh completed after the token was issued.
func (d *DispatcherDashboard) ApplyStatus(token EditToken, id string, status domain.DeliveryStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if uint64(token) != d.completed {
		d.deps.Metrics.RecordStatusEdit(EditSuperseded)
		return ErrEditSuperseded
	}
	if !d.board.UpdateStatus(id, status) {
		d.deps.Metrics.RecordStatusEdit(EditNotFound)
		return fmt.Errorf("%w: %s", ErrDeliveryNotFound, id)
	}

	d.deps.Metrics.RecordStatusEdit(EditApplied)
	d.deps.Logger.WithScreen(ScreenDispatcher).Info("Delivery status updated",
		"deliveryId", id,
		"status", string(status),
	)
	return nil
}

// UpdateStatus applies a status edit immediately
func (d *DispatcherDashboard) UpdateStatus(id string, status domain.DeliveryStatus) error {
	return d.ApplyStatus(d.BeginEdit(), id, status)
}

// Phase returns the current phase
func (d *DispatcherDashboard) Phase() domain.Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.phase
}

// Close discards any in-flight refresh
func (d *DispatcherDashboard) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.invalidate()
}

// ValidFilter reports whether filter is "all" or a delivery status
func ValidFilter(filter string) bool {
	return filter == domain.FilterAll || domain.DeliveryStatus(filter).IsValid()
}

// Snapshot returns the board filtered by status ("all" or empty for every delivery)
func (d *DispatcherDashboard) Snapshot(filter string) (domain.DispatcherSnapshot, error) {
	if filter == "" {
		filter = domain.FilterAll
	}
	if !ValidFilter(filter) {
		return domain.DispatcherSnapshot{}, fmt.Errorf("%w: %q", ErrInvalidStatus, filter)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return domain.DispatcherSnapshot{
		ScreenStatus: d.state.status(domain.AddressedGreeting(d.deps.Clock(), "Dispatcher")),
		Stats:        d.board.Stats(),
		Filter:       filter,
		Deliveries:   d.board.FilteredBy(filter),
		EditToken:    d.completed,
	}, nil
}

package application

import (
	"context"
	"time"

	"github.com/logistics-platform/booking-dashboard/internal/domain"
)

// Screen names, used as metric and log labels
const (
	ScreenAdmin      = "admin"
	ScreenCustomer   = "customer"
	ScreenDispatcher = "dispatcher"
	ScreenReports    = "reports"
	ScreenUsers      = "users"
)

// Refresh outcomes
const (
	outcomeReady  = "ready"
	outcomeFailed = "failed"
	outcomeStale  = "stale"
)

// viewState is the Idle -> Loading -> Ready|Failed machine shared by the
// screens. Every refresh takes a new generation and only the result of the
// current generation may be applied. Callers hold the owning screen's lock.
type viewState struct {
	phase       domain.Phase
	settled     domain.Phase
	err         string
	lastUpdated time.Time
	degraded    []string
	generation  uint64
}

func newViewState() viewState {
	return viewState{phase: domain.PhaseIdle, settled: domain.PhaseIdle}
}

// begin starts a refresh and returns its generation
func (v *viewState) begin() uint64 {
	v.generation++
	v.phase = domain.PhaseLoading
	return v.generation
}

func (v *viewState) isCurrent(gen uint64) bool {
	return gen == v.generation
}

// succeed settles the current generation as Ready
func (v *viewState) succeed(now time.Time, degraded []string) {
	v.phase = domain.PhaseReady
	v.settled = domain.PhaseReady
	v.err = ""
	v.lastUpdated = now
	v.degraded = degraded
}

// fail settles the current generation as Failed. Screen data from the last
// good refresh is left in place.
func (v *viewState) fail(msg string) {
	v.phase = domain.PhaseFailed
	v.settled = domain.PhaseFailed
	v.err = msg
}

// invalidate drops any in-flight refresh
func (v *viewState) invalidate() {
	v.generation++
	if v.phase == domain.PhaseLoading {
		v.phase = v.settled
	}
}

func (v *viewState) status(greeting string) domain.ScreenStatus {
	var degraded []string
	if len(v.degraded) > 0 {
		degraded = append(degraded, v.degraded...)
	}
	return domain.ScreenStatus{
		Phase:       v.phase,
		Error:       v.err,
		LastUpdated: v.lastUpdated,
		Degraded:    degraded,
		Greeting:    greeting,
	}
}

// abandon drops a refresh whose caller went away before it settled. The
// phase reverts and nothing fetched by gen is applied. Callers hold the
// owning screen's lock and have checked that gen is current.
func (d Dependencies) abandon(ctx context.Context, v *viewState, screen string, gen uint64, start time.Time) error {
	v.invalidate()
	d.recordRefresh(ctx, screen, gen, outcomeStale, start, nil)
	return ctx.Err()
}

// recordRefresh logs and counts a refresh outcome
func (d Dependencies) recordRefresh(ctx context.Context, screen string, gen uint64, outcome string, start time.Time, degraded []string) {
	elapsed := time.Since(start)
	d.Metrics.RecordRefresh(screen, outcome, elapsed)
	d.Logger.Refresh(ctx, screen, gen, outcome, elapsed, degraded)
}

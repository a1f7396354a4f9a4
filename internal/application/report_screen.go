package application

import (
	"context"
	"sync"
	"time"

	"github.com/logistics-platform/booking-dashboard/internal/credentials"
	"github.com/logistics-platform/booking-dashboard/internal/domain"
	"github.com/logistics-platform/booking-dashboard/internal/infrastructure/clients"
)

const reportFetchFailed = "Failed to fetch report"

// SelectionUpdate is a partial change to the report selection. Nil fields are
// left as they are.
type SelectionUpdate struct {
	ReportType      *domain.ReportType
	StatusFilter    *string
	TransportFilter *string
	DateFrom        *time.Time
	DateTo          *time.Time
	ClearDates      bool
}

// ReportScreen is the admin reports screen. Only a report type change
// triggers a fetch; the other filters apply on the next Generate.
type ReportScreen struct {
	mu      sync.Mutex
	state   viewState
	fetcher ReportFetcher
	deps    Dependencies
	filter  *domain.ReportFilter
	report  *domain.Report
}

// NewReportScreen creates a reports screen with the default selection
func NewReportScreen(fetcher ReportFetcher, deps Dependencies) *ReportScreen {
	return &ReportScreen{
		state:   newViewState(),
		fetcher: fetcher,
		deps:    deps.withDefaults(),
		filter:  domain.NewReportFilter(),
	}
}

// SetSelection applies a selection change. When the report type changes the
// previous report is dropped and a new one is fetched before returning.
func (s *ReportScreen) SetSelection(ctx context.Context, cred credentials.Credential, update SelectionUpdate) error {
	s.mu.Lock()
	typeChanged := false
	if update.ReportType != nil {
		changed, err := s.filter.SetReportType(*update.ReportType)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		typeChanged = changed
	}
	if update.StatusFilter != nil {
		s.filter.SetStatusFilter(*update.StatusFilter)
	}
	if update.TransportFilter != nil {
		s.filter.SetTransportFilter(*update.TransportFilter)
	}
	if update.ClearDates || update.DateFrom != nil || update.DateTo != nil {
		from, to := update.DateFrom, update.DateTo
		if !update.ClearDates {
			current := s.filter.Selection()
			if from == nil {
				from = current.DateFrom
			}
			if to == nil {
				to = current.DateTo
			}
		}
		if err := s.filter.SetDateRange(from, to); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	if typeChanged {
		s.report = nil
	}
	s.mu.Unlock()

	if typeChanged {
		return s.Generate(ctx, cred)
	}
	return nil
}

// Generate fetches the report for the current selection
func (s *ReportScreen) Generate(ctx context.Context, cred credentials.Credential) error {
	start := time.Now()

	s.mu.Lock()
	gen := s.state.begin()
	sel := s.filter.Selection()
	s.mu.Unlock()

	report, err := s.fetcher.GetReport(ctx, cred, sel)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.isCurrent(gen) {
		s.deps.recordRefresh(ctx, ScreenReports, gen, outcomeStale, start, nil)
		return nil
	}
	if ctx.Err() != nil {
		return s.deps.abandon(ctx, &s.state, ScreenReports, gen, start)
	}
	if err != nil {
		s.state.fail(clients.UserMessage(err, reportFetchFailed))
		s.deps.recordRefresh(ctx, ScreenReports, gen, outcomeFailed, start, nil)
		return err
	}
	if report == nil {
		report = &domain.Report{}
	}
	report.Type = sel.ReportType

	s.report = report
	s.state.succeed(s.deps.Clock(), nil)
	s.deps.recordRefresh(ctx, ScreenReports, gen, outcomeReady, start, nil)
	return nil
}

// Phase returns the current phase
func (s *ReportScreen) Phase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.phase
}

// Close discards any in-flight fetch
func (s *ReportScreen) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.invalidate()
}

// Snapshot returns the render-ready reports screen
func (s *ReportScreen) Snapshot() domain.ReportSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.ReportSnapshot{
		ScreenStatus: s.state.status(domain.Greeting(s.deps.Clock())),
		Selection:    s.filter.Selection(),
		Summary:      domain.BuildSummaryCards(s.report),
		Report:       s.report,
	}
}

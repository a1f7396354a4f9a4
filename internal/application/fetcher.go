package application

import (
	"context"
	"time"

	"github.com/logistics-platform/booking-dashboard/internal/credentials"
	"github.com/logistics-platform/booking-dashboard/internal/domain"
	"github.com/logistics-platform/booking-dashboard/pkg/logging"
)

// AdminFetcher loads the admin dashboard reports
type AdminFetcher interface {
	GetBookingsReport(ctx context.Context, cred credentials.Credential) (domain.BookingsReport, error)
	GetUsersReport(ctx context.Context, cred credentials.Credential) (domain.UsersReport, error)
	GetPerformanceReport(ctx context.Context, cred credentials.Credential) (domain.PerformanceStats, error)
}

// CustomerFetcher loads the customer dashboard
type CustomerFetcher interface {
	GetCustomerStats(ctx context.Context, cred credentials.Credential) (domain.CustomerStats, error)
	GetRecentBookings(ctx context.Context, cred credentials.Credential, limit int) ([]domain.BookingRecord, error)
}

// ReportFetcher loads a report for a selection
type ReportFetcher interface {
	GetReport(ctx context.Context, cred credentials.Credential, sel domain.ReportSelection) (*domain.Report, error)
}

// UserFetcher loads the user directory and per-user booking counts
type UserFetcher interface {
	ListUsers(ctx context.Context, cred credentials.Credential) ([]domain.UserRecord, error)
	CountCustomerBookings(ctx context.Context, cred credentials.Credential, customerID string) (int, error)
}

// Fetcher is everything the screens read from the booking API.
// *clients.BookingAPIClient implements it.
type Fetcher interface {
	AdminFetcher
	CustomerFetcher
	ReportFetcher
	UserFetcher
}

// ScreenMetrics records screen activity. *metrics.Metrics implements it.
type ScreenMetrics interface {
	RecordRefresh(screen, outcome string, duration time.Duration)
	RecordStatusEdit(result string)
	SetActiveSessions(n int)
}

type noopMetrics struct{}

func (noopMetrics) RecordRefresh(string, string, time.Duration) {}
func (noopMetrics) RecordStatusEdit(string) {}
func (noopMetrics) SetActiveSessions(int) {}

// Dependencies are shared by every screen
type Dependencies struct {
	Logger  *logging.Logger
	Metrics ScreenMetrics
	Clock   func() time.Time
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.Metrics == nil {
		d.Metrics = noopMetrics{}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

// ScreenConfig tunes screen behaviour
type ScreenConfig struct {
	AdminRecentLimit        int
	CustomerRecentLimit     int
	BookingCountConcurrency int
	DispatchRefreshLatency  time.Duration
	DispatchFixture         *domain.DispatchFixture
}

// DefaultScreenConfig returns the stock screen settings
func DefaultScreenConfig() ScreenConfig {
	return ScreenConfig{
		AdminRecentLimit:        5,
		CustomerRecentLimit:     3,
		BookingCountConcurrency: 8,
		DispatchRefreshLatency:  time.Second,
		DispatchFixture:         domain.DefaultDispatchFixture(),
	}
}

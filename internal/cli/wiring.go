package cli

import (
	"github.com/sony/gobreaker"

	"github.com/logistics-platform/booking-dashboard/internal/application"
	"github.com/logistics-platform/booking-dashboard/internal/config"
	"github.com/logistics-platform/booking-dashboard/internal/domain"
	"github.com/logistics-platform/booking-dashboard/internal/infrastructure/clients"
	"github.com/logistics-platform/booking-dashboard/pkg/logging"
	"github.com/logistics-platform/booking-dashboard/pkg/metrics"
	"github.com/logistics-platform/booking-dashboard/pkg/resilience"
)

// components are the long-lived objects shared by the commands
type components struct {
	client   *clients.BookingAPIClient
	breaker  *resilience.CircuitBreaker
	sessions *application.Sessions
}

// buildComponents wires the booking API client and the session registry.
// m may be nil when metrics are not exported.
func buildComponents(cfg *config.Config, logger *logging.Logger, m *metrics.Metrics) (*components, error) {
	screens := application.DefaultScreenConfig()
	screens.AdminRecentLimit = cfg.AdminRecentLimit
	screens.CustomerRecentLimit = cfg.CustomerRecentLimit
	screens.BookingCountConcurrency = cfg.BookingCountConcurrency
	screens.DispatchRefreshLatency = cfg.DispatchRefreshLatency
	if cfg.DispatchFixture != "" {
		fixture, err := domain.LoadDispatchFixture(cfg.DispatchFixture)
		if err != nil {
			return nil, err
		}
		screens.DispatchFixture = fixture
	}

	opts := []clients.Option{
		clients.WithTimeout(cfg.RequestTimeout),
		clients.WithRetry(cfg.RetryMaxAttempts),
	}

	var breaker *resilience.CircuitBreaker
	if cfg.CircuitBreakerEnabled {
		var onStateChange func(name string, from, to int)
		if m != nil {
			onStateChange = func(name string, _, to int) {
				m.SetCircuitBreakerState(name, to)
				if to == int(gobreaker.StateOpen) {
					m.RecordCircuitBreakerTrip(name)
				}
			}
		}
		breaker = clients.NewCircuitBreakerFor(clients.BookingAPIService, logger, onStateChange)
		opts = append(opts, clients.WithCircuitBreaker(breaker))
	}

	var downstream clients.DownstreamMetrics
	deps := application.Dependencies{Logger: logger}
	if m != nil {
		downstream = m
		deps.Metrics = m
	}

	client := clients.NewBookingAPIClient(cfg.APIBaseURL, logger, downstream, opts...)
	return &components{
		client:   client,
		breaker:  breaker,
		sessions: application.NewSessions(client, screens, deps),
	}, nil
}

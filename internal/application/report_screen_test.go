package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logistics-platform/booking-dashboard/internal/credentials"
	"github.com/logistics-platform/booking-dashboard/internal/domain"
)

func ptrTo[T any](v T) *T {
	return &v
}

func sampleReport() *domain.Report {
	return &domain.Report{
		Summary: domain.ReportSummary{
			TotalBookings:     4,
			TotalRevenue:      800,
			AverageOrderValue: ptrTo(200.0),
			CompletionRate:    ptrTo(75.0),
		},
		StatusBreakdown: []domain.StatusBreakdownEntry{
			{Share: &domain.StatusShare{Status: "Delivered", Count: 3, Percentage: 75}},
		},
	}
}

func TestReportScreen_Generate(t *testing.T) {
	fetcher := &fakeFetcher{
		report: func(context.Context, domain.ReportSelection) (*domain.Report, error) { return sampleReport(), nil },
	}
	s := NewReportScreen(fetcher, testDeps())
	assert.Equal(t, domain.PhaseIdle, s.Phase())

	require.NoError(t, s.Generate(context.Background(), credentials.New("opaque")))

	snap := s.Snapshot()
	assert.Equal(t, domain.PhaseReady, snap.Phase)
	require.NotNil(t, snap.Report)
	assert.Equal(t, domain.ReportTypeBookings, snap.Report.Type)
	assert.Equal(t, int64(4), snap.Summary.TotalBookings)
	assert.Equal(t, "$800.00", snap.Summary.TotalRevenue)
	assert.Equal(t, domain.DefaultReportSelection(), snap.Selection)
}

func TestReportScreen_TypeChangeFetchesAndClears(t *testing.T) {
	var fail bool
	fetcher := &fakeFetcher{
		report: func(_ context.Context, sel domain.ReportSelection) (*domain.Report, error) {
			if fail {
				return nil, networkDown("report")
			}
			return sampleReport(), nil
		},
	}
	s := NewReportScreen(fetcher, testDeps())
	cred := credentials.New("opaque")
	require.NoError(t, s.Generate(context.Background(), cred))

	fail = true
	err := s.SetSelection(context.Background(), cred, SelectionUpdate{ReportType: ptrTo(domain.ReportTypeRevenue)})
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Equal(t, domain.PhaseFailed, snap.Phase)
	assert.Equal(t, "Failed to fetch report", snap.Error)
	assert.Nil(t, snap.Report, "a report of the previous type must not be shown")
	assert.Equal(t, domain.ReportTypeRevenue, snap.Selection.ReportType)

	selections := fetcher.reportSelections()
	require.Len(t, selections, 2)
	assert.Equal(t, domain.ReportTypeRevenue, selections[1].ReportType)
}

func TestReportScreen_SameTypeDoesNotFetch(t *testing.T) {
	fetcher := &fakeFetcher{}
	s := NewReportScreen(fetcher, testDeps())

	err := s.SetSelection(context.Background(), credentials.New("opaque"), SelectionUpdate{ReportType: ptrTo(domain.ReportTypeBookings)})
	require.NoError(t, err)
	assert.Empty(t, fetcher.reportSelections())
	assert.Equal(t, domain.PhaseIdle, s.Phase())
}

func TestReportScreen_FiltersApplyOnGenerate(t *testing.T) {
	fetcher := &fakeFetcher{}
	s := NewReportScreen(fetcher, testDeps())
	cred := credentials.New("opaque")

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	err := s.SetSelection(context.Background(), cred, SelectionUpdate{
		StatusFilter:    ptrTo("Delivered"),
		TransportFilter: ptrTo("truck"),
		DateFrom:        &from,
		DateTo:          &to,
	})
	require.NoError(t, err)
	assert.Empty(t, fetcher.reportSelections(), "filters alone must not fetch")

	require.NoError(t, s.Generate(context.Background(), cred))

	selections := fetcher.reportSelections()
	require.Len(t, selections, 1)
	assert.Equal(t, "Delivered", selections[0].StatusFilter)
	assert.Equal(t, "truck", selections[0].TransportFilter)
	require.NotNil(t, selections[0].DateFrom)
	assert.Equal(t, from, *selections[0].DateFrom)
	assert.Equal(t, to, *selections[0].DateTo)

	// Only one bound changes, the other is kept
	later := to.AddDate(0, 1, 0)
	require.NoError(t, s.SetSelection(context.Background(), cred, SelectionUpdate{DateTo: &later}))
	sel := s.Snapshot().Selection
	assert.Equal(t, from, *sel.DateFrom)
	assert.Equal(t, later, *sel.DateTo)

	require.NoError(t, s.SetSelection(context.Background(), cred, SelectionUpdate{ClearDates: true}))
	sel = s.Snapshot().Selection
	assert.Nil(t, sel.DateFrom)
	assert.Nil(t, sel.DateTo)
}

func TestReportScreen_InvalidSelection(t *testing.T) {
	s := NewReportScreen(&fakeFetcher{}, testDeps())
	cred := credentials.New("opaque")

	err := s.SetSelection(context.Background(), cred, SelectionUpdate{ReportType: ptrTo(domain.ReportTypeUsers)})
	assert.Error(t, err)

	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -1)
	err = s.SetSelection(context.Background(), cred, SelectionUpdate{DateFrom: &from, DateTo: &to})
	assert.Error(t, err)

	assert.Equal(t, domain.DefaultReportSelection(), s.Snapshot().Selection)
}

func TestReportScreen_LatestGenerateWins(t *testing.T) {
	hold := newHoldFirst()
	fetcher := &fakeFetcher{
		report: func(context.Context, domain.ReportSelection) (*domain.Report, error) {
			if hold.wait() {
				return &domain.Report{Summary: domain.ReportSummary{TotalBookings: 1, TotalRevenue: 5}}, nil
			}
			return sampleReport(), nil
		},
	}
	s := NewReportScreen(fetcher, testDeps())

	firstDone := make(chan error, 1)
	go func() { firstDone <- s.Generate(context.Background(), credentials.New("opaque")) }()
	<-hold.started

	require.NoError(t, s.Generate(context.Background(), credentials.New("opaque")))
	close(hold.release)
	require.NoError(t, <-firstDone)

	snap := s.Snapshot()
	assert.Equal(t, domain.PhaseReady, snap.Phase)
	assert.Equal(t, int64(4), snap.Summary.TotalBookings)
	assert.Equal(t, "$800.00", snap.Summary.TotalRevenue)
}

func TestReportScreen_CancelledGenerateIsDiscarded(t *testing.T) {
	midway := newCancelMidway()
	fetcher := &fakeFetcher{
		report: func(context.Context, domain.ReportSelection) (*domain.Report, error) {
			if err := midway.trip("report"); err != nil {
				return nil, err
			}
			return sampleReport(), nil
		},
	}
	s := NewReportScreen(fetcher, testDeps())
	require.NoError(t, s.Generate(midway.ctx, credentials.New("opaque")))

	midway.arm()
	require.ErrorIs(t, s.Generate(midway.ctx, credentials.New("opaque")), context.Canceled)

	snap := s.Snapshot()
	assert.Equal(t, domain.PhaseReady, snap.Phase)
	assert.Empty(t, snap.Error)
	require.NotNil(t, snap.Report)
	assert.Equal(t, int64(4), snap.Summary.TotalBookings)
}

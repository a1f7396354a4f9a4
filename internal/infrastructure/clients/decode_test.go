package clients

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logistics-platform/booking-dashboard/internal/domain"
)

func mustJSON(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestDecodeBookings(t *testing.T) {
	raw := mustJSON(t, `[
		{"_id":"b1","customer":"Acme","from":"Paris","to":"Lyon","status":"Delivered","modeOfTransport":"truck","amount":"150.5","date":"2024-05-01T10:00:00Z","progress":140},
		{"id":"b2","status":"In Transit","mode":"train","amount":{"$numberDecimal":"12"},"createdAt":"garbage"},
		{"id":"b3","_id":"ignored","amount":-20,"progress":-5},
		"not an object",
		null
	]`)

	bookings := decodeBookings(raw)
	require.Len(t, bookings, 3)

	first := bookings[0]
	assert.Equal(t, "b1", first.ID)
	assert.Equal(t, "Paris", first.Origin)
	assert.Equal(t, "Lyon", first.Destination)
	assert.Equal(t, domain.BookingStatusDelivered, first.Status)
	assert.Equal(t, domain.TransportModeTruck, first.ModeOfTransport)
	assert.InDelta(t, 150.5, first.Amount, 1e-9)
	assert.Equal(t, 100, first.Progress)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), first.CreatedAt.UTC())

	second := bookings[1]
	assert.Equal(t, domain.TransportModeTrain, second.ModeOfTransport)
	assert.Zero(t, second.Amount)
	assert.True(t, second.CreatedAt.IsZero())

	third := bookings[2]
	assert.Equal(t, "b3", third.ID)
	assert.Zero(t, third.Amount)
	assert.Zero(t, third.Progress)
}

func TestDecodeUsers(t *testing.T) {
	raw := mustJSON(t, `[
		{"_id":"u1","name":"Ann","email":"ann@example.com","role":"admin"},
		{"id":"u2","name":"A","email":null,"role":"admin"},
		{"id":7,"name":"Num","email":"n@example.com","role":"Customer"}
	]`)

	users := decodeUsers(raw)
	require.Len(t, users, 3)
	assert.Equal(t, "u1", users[0].ID)
	assert.Empty(t, users[1].Email)
	assert.Equal(t, "7", users[2].ID)

	dir := domain.NewUserDirectory(users)
	safe := dir.SafeUsers()
	require.Len(t, safe, 2)
	assert.Equal(t, "u1", safe[0].ID)
	assert.Equal(t, "7", safe[1].ID)
}

func TestDecodeBookingsReport(t *testing.T) {
	t.Run("reported totals", func(t *testing.T) {
		data := mustJSON(t, `{"totalBookings":12,"totalRevenue":999.5,"statusCounts":{"In Transit":4,"Delivered":"3"},"bookings":[{"id":"b1","amount":10}]}`)
		report := decodeBookingsReport(data.(map[string]any))

		require.NotNil(t, report.TotalBookings)
		assert.Equal(t, int64(12), *report.TotalBookings)
		require.NotNil(t, report.TotalRevenue)
		assert.InDelta(t, 999.5, *report.TotalRevenue, 1e-9)
		assert.Equal(t, int64(4), report.StatusCounts["In Transit"])
		assert.Equal(t, int64(3), report.StatusCounts["Delivered"])
		assert.Len(t, report.Bookings, 1)
	})

	t.Run("absent totals stay nil", func(t *testing.T) {
		report := decodeBookingsReport(map[string]any{"totalBookings": "twelve"})
		assert.Nil(t, report.TotalBookings)
		assert.Nil(t, report.TotalRevenue)
		assert.Nil(t, report.StatusCounts)
		assert.Empty(t, report.Bookings)
	})
}

func TestDecodeReport(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantSummary domain.ReportSummary
		wantAOV     *float64
		wantRate    *float64
	}{
		{
			name:        "summary object wins over top level",
			body:        `{"summary":{"totalBookings":10,"totalRevenue":500,"averageOrderValue":50,"completionRate":80},"totalBookings":99}`,
			wantSummary: domain.ReportSummary{TotalBookings: 10, TotalRevenue: 500},
			wantAOV:     ptr(50.0),
			wantRate:    ptr(80.0),
		},
		{
			name:        "top level fallback",
			body:        `{"totalBookings":4,"totalRevenue":"200","averageOrderValue":"50"}`,
			wantSummary: domain.ReportSummary{TotalBookings: 4, TotalRevenue: 200},
		},
		{
			name:        "null summary fields fall through",
			body:        `{"summary":{"totalBookings":null},"totalBookings":6}`,
			wantSummary: domain.ReportSummary{TotalBookings: 6},
		},
		{
			name: "empty report",
			body: `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := mustJSON(t, tt.body).(map[string]any)
			report := decodeReport(domain.ReportTypeBookings, data)

			assert.Equal(t, domain.ReportTypeBookings, report.Type)
			assert.Equal(t, tt.wantSummary.TotalBookings, report.Summary.TotalBookings)
			assert.InDelta(t, tt.wantSummary.TotalRevenue, report.Summary.TotalRevenue, 1e-9)
			assert.Equal(t, tt.wantAOV, report.Summary.AverageOrderValue)
			assert.Equal(t, tt.wantRate, report.Summary.CompletionRate)
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}

func TestDecodeBreakdowns(t *testing.T) {
	data := mustJSON(t, `{
		"statusBreakdown":[
			{"status":"Delivered","count":3,"percentage":60},
			{"status":"Pending","count":{"n":1},"percentage":"20"},
			{"_id":"u1","name":"Ann","email":"ann@example.com"},
			42
		],
		"transportBreakdown":[
			{"mode":"truck","revenue":300,"count":2,"percentage":75},
			{"name":"stray record"}
		]
	}`).(map[string]any)

	report := decodeReport(domain.ReportTypeRevenue, data)

	require.Len(t, report.StatusBreakdown, 3)
	require.NotNil(t, report.StatusBreakdown[0].Share)
	assert.Equal(t, domain.StatusShare{Status: "Delivered", Count: 3, Percentage: 60}, *report.StatusBreakdown[0].Share)

	require.NotNil(t, report.StatusBreakdown[1].Share)
	assert.Equal(t, int64(0), report.StatusBreakdown[1].Share.Count)
	assert.InDelta(t, 20.0, report.StatusBreakdown[1].Share.Percentage, 1e-9)

	assert.Nil(t, report.StatusBreakdown[2].Share)
	require.NotNil(t, report.StatusBreakdown[2].Unrecognized)
	assert.Equal(t, "Ann", report.StatusBreakdown[2].Unrecognized.Raw["name"])

	require.Len(t, report.TransportBreakdown, 2)
	require.NotNil(t, report.TransportBreakdown[0].Share)
	assert.Equal(t, "truck", report.TransportBreakdown[0].Share.Mode)
	assert.InDelta(t, 300.0, report.TransportBreakdown[0].Share.Revenue, 1e-9)
	require.NotNil(t, report.TransportBreakdown[1].Unrecognized)
}

func TestUnwrapOptionalEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    any
		wantErr bool
	}{
		{name: "bare object", body: `{"totalBookings":1}`, want: map[string]any{"totalBookings": 1.0}},
		{name: "envelope", body: `{"success":true,"data":{"totalBookings":2}}`, want: map[string]any{"totalBookings": 2.0}},
		{name: "failed envelope", body: `{"success":false,"message":"nope"}`, wantErr: true},
		{name: "bare array", body: `[]`, want: []any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unwrapOptionalEnvelope("GET /bookings/stats", mustJSON(t, tt.body))
			if tt.wantErr {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "nope", apiErr.Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{in: 12.5, want: 12.5},
		{in: "7", want: 7},
		{in: " 3.25 ", want: 3.25},
		{in: "abc", want: 0},
		{in: "NaN", want: 0},
		{in: "Inf", want: 0},
		{in: map[string]any{}, want: 0},
		{in: nil, want: 0},
		{in: true, want: 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, toFloat(tt.in), 1e-9, "input %v", tt.in)
	}
}

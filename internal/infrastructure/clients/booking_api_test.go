package clients

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logistics-platform/booking-dashboard/api"
	"github.com/logistics-platform/booking-dashboard/internal/credentials"
	"github.com/logistics-platform/booking-dashboard/internal/domain"
	"github.com/logistics-platform/booking-dashboard/pkg/contracts/openapi"
	"github.com/logistics-platform/booking-dashboard/pkg/logging"
	"github.com/logistics-platform/booking-dashboard/pkg/resilience"
)

type fakeUpstream struct {
	server *httptest.Server
	hits   atomic.Int32
}

func (f *fakeUpstream) baseURL() string {
	return f.server.URL + "/api"
}

// newContractServer serves canned bodies by path and fails the test when a
// request, or the canned answer to it, does not match the booking API
// contract.
func newContractServer(t *testing.T, bodies map[string]string) *fakeUpstream {
	t.Helper()

	validator, err := openapi.NewValidatorFromBytes(api.BookingAPISpec)
	require.NoError(t, err)

	f := &fakeUpstream{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if err := validator.ValidateRequest(r); err != nil {
			t.Errorf("contract violation for %s: %v", r.URL.String(), err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body, ok := bodies[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		header := http.Header{"Content-Type": []string{"application/json"}}
		if err := validator.ValidateResponse(r, http.StatusOK, header, []byte(body)); err != nil {
			t.Errorf("canned body for %s breaks the contract: %v", r.URL.Path, err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.server.Close)
	return f
}

func newStatusServer(t *testing.T, status int, body string) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.server.Close)
	return f
}

func signedToken(t *testing.T, name string, expires time.Time) string {
	t.Helper()
	claims := credentials.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Name: name,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func testClient(baseURL string, opts ...Option) *BookingAPIClient {
	return NewBookingAPIClient(baseURL, logging.Discard(), nil, opts...)
}

var validCred = credentials.New("opaque-token")

func TestBookingAPIClient_RequestsMatchContract(t *testing.T) {
	upstream := newContractServer(t, map[string]string{
		"/api/admin/reports":   `{"success":true,"reportData":{"totalBookings":3,"totalUsers":7,"completedToday":2,"bookings":[]}}`,
		"/api/admin/users":     `{"success":true,"users":[]}`,
		"/api/admin/bookings":  `{"success":true,"pagination":{"totalBookings":4}}`,
		"/api/bookings/stats":  `{"totalBookings":1}`,
		"/api/bookings/recent": `[]`,
	})
	client := testClient(upstream.baseURL())
	ctx := context.Background()

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	sel := domain.ReportSelection{
		ReportType:      domain.ReportTypeRevenue,
		StatusFilter:    string(domain.BookingStatusInTransit),
		TransportFilter: string(domain.TransportModeTrain),
		DateFrom:        &from,
		DateTo:          &to,
	}

	_, err := client.GetBookingsReport(ctx, validCred)
	require.NoError(t, err)
	_, err = client.GetUsersReport(ctx, validCred)
	require.NoError(t, err)
	_, err = client.GetPerformanceReport(ctx, validCred)
	require.NoError(t, err)
	_, err = client.GetReport(ctx, validCred, sel)
	require.NoError(t, err)
	_, err = client.GetReport(ctx, validCred, domain.DefaultReportSelection())
	require.NoError(t, err)
	_, err = client.ListUsers(ctx, validCred)
	require.NoError(t, err)
	count, err := client.CountCustomerBookings(ctx, validCred, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	_, err = client.GetCustomerStats(ctx, validCred)
	require.NoError(t, err)
	_, err = client.GetRecentBookings(ctx, validCred, 3)
	require.NoError(t, err)

	assert.Equal(t, int32(9), upstream.hits.Load())
}

func TestBookingAPIClient_CredentialCheckedBeforeIO(t *testing.T) {
	upstream := newStatusServer(t, http.StatusOK, `{"success":true}`)
	client := testClient(upstream.baseURL())

	tests := []struct {
		name    string
		cred    credentials.Credential
		wantErr error
	}{
		{name: "empty token", cred: credentials.New(""), wantErr: credentials.ErrMissingCredential},
		{name: "whitespace token", cred: credentials.New("   "), wantErr: credentials.ErrMissingCredential},
		{name: "expired jwt", cred: credentials.New(signedToken(t, "Ann", time.Now().Add(-time.Hour))), wantErr: credentials.ErrExpiredCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.GetCustomerStats(context.Background(), tt.cred)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, int32(0), upstream.hits.Load())
}

func TestBookingAPIClient_SendsBearerToken(t *testing.T) {
	token := signedToken(t, "Ann", time.Now().Add(time.Hour))

	gotAuth := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"totalBookings":2}`))
	}))
	defer server.Close()

	stats, err := testClient(server.URL+"/api").GetCustomerStats(context.Background(), credentials.New(token))
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+token, <-gotAuth)
	assert.Equal(t, int64(2), stats.TotalBookings)
}

func TestBookingAPIClient_Failures(t *testing.T) {
	t.Run("success false carries server message", func(t *testing.T) {
		upstream := newStatusServer(t, http.StatusOK, `{"success":false,"message":"Report unavailable"}`)
		_, err := testClient(upstream.baseURL()).GetBookingsReport(context.Background(), validCred)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "Report unavailable", apiErr.Message)
		assert.Equal(t, "Report unavailable", UserMessage(err, "Failed to fetch stats"))
	})

	t.Run("missing success flag is a failure", func(t *testing.T) {
		upstream := newStatusServer(t, http.StatusOK, `{"users":[]}`)
		_, err := testClient(upstream.baseURL()).ListUsers(context.Background(), validCred)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "Failed to fetch users", UserMessage(err, "Failed to fetch users"))
	})

	t.Run("server error is not retried", func(t *testing.T) {
		upstream := newStatusServer(t, http.StatusInternalServerError, `{"message":"boom"}`)
		_, err := testClient(upstream.baseURL()).GetCustomerStats(context.Background(), validCred)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
		assert.Equal(t, "boom", apiErr.Message)
		assert.Equal(t, int32(1), upstream.hits.Load())
		assert.False(t, IsNetworkError(err))
	})

	t.Run("malformed body", func(t *testing.T) {
		upstream := newStatusServer(t, http.StatusOK, `not json`)
		_, err := testClient(upstream.baseURL()).GetCustomerStats(context.Background(), validCred)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "fallback", UserMessage(err, "fallback"))
	})

	t.Run("recent bookings must be a list", func(t *testing.T) {
		upstream := newStatusServer(t, http.StatusOK, `{"bookings":"nope"}`)
		_, err := testClient(upstream.baseURL()).GetRecentBookings(context.Background(), validCred, 3)
		require.ErrorIs(t, err, errUnexpectedShape)
	})
}

func TestBookingAPIClient_NetworkErrorsAreRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		hj, ok := w.(http.Hijacker)
		if !ok {
			return
		}
		if conn, _, err := hj.Hijack(); err == nil {
			_ = conn.Close()
		}
	}))
	defer server.Close()

	_, err := testClient(server.URL+"/api", WithRetry(3)).GetCustomerStats(context.Background(), validCred)

	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.Equal(t, int32(3), hits.Load())
}

func TestBookingAPIClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := testClient(server.URL+"/api", WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := client.GetCustomerStats(context.Background(), validCred)

	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBookingAPIClient_CircuitBreaker(t *testing.T) {
	t.Run("opens after repeated server failures", func(t *testing.T) {
		upstream := newStatusServer(t, http.StatusServiceUnavailable, `{"message":"down"}`)
		breaker := NewCircuitBreakerFor("booking-api-test", logging.Discard(), nil)
		client := testClient(upstream.baseURL(), WithRetry(1), WithCircuitBreaker(breaker))

		for i := 0; i < int(resilience.DefaultFailureThreshold); i++ {
			_, err := client.GetCustomerStats(context.Background(), validCred)
			require.Error(t, err)
		}

		_, err := client.GetCustomerStats(context.Background(), validCred)
		require.Error(t, err)
		assert.True(t, IsNetworkError(err))
		assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
		assert.Equal(t, int32(resilience.DefaultFailureThreshold), upstream.hits.Load())
	})

	t.Run("client errors keep it closed", func(t *testing.T) {
		upstream := newStatusServer(t, http.StatusNotFound, `{"message":"nope"}`)
		breaker := NewCircuitBreakerFor("booking-api-4xx", logging.Discard(), nil)
		client := testClient(upstream.baseURL(), WithRetry(1), WithCircuitBreaker(breaker))

		for i := 0; i < 2*int(resilience.DefaultFailureThreshold); i++ {
			_, err := client.GetCustomerStats(context.Background(), validCred)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
		}
		assert.Equal(t, int32(2*resilience.DefaultFailureThreshold), upstream.hits.Load())
	})
}

func TestReportQuery(t *testing.T) {
	t.Run("defaults only send the report type", func(t *testing.T) {
		q := ReportQuery(domain.DefaultReportSelection())
		assert.Equal(t, "reportType=bookings", q.Encode())
	})

	t.Run("non default filters are sent", func(t *testing.T) {
		from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		sel := domain.ReportSelection{
			ReportType:      domain.ReportTypeRevenue,
			StatusFilter:    "Delivered",
			TransportFilter: domain.FilterAll,
			DateFrom:        &from,
		}
		q := ReportQuery(sel)
		assert.Equal(t, "revenue", q.Get("reportType"))
		assert.Equal(t, "Delivered", q.Get("status"))
		assert.Equal(t, "2024-03-01", q.Get("dateFrom"))
		assert.False(t, q.Has("transport"))
		assert.False(t, q.Has("dateTo"))
	})
}

package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/logistics-platform/booking-dashboard/internal/credentials"
	"github.com/logistics-platform/booking-dashboard/internal/domain"
	"github.com/logistics-platform/booking-dashboard/pkg/logging"
)

// BookingAPIService is the downstream name used in metrics, logs and spans
const BookingAPIService = "booking-api"

// Booking API paths, relative to the configured base URL (which ends in /api)
const (
	PathAdminReports  = "/admin/reports"
	PathAdminUsers    = "/admin/users"
	PathAdminBookings = "/admin/bookings"
	PathBookingStats  = "/bookings/stats"
	PathRecentBooking = "/bookings/recent"
)

// BookingAPIClient is the dashboards' fetcher. Every call takes the caller's
// credential explicitly; nothing is read from ambient state.
type BookingAPIClient struct {
	client *ServiceClient
}

// NewBookingAPIClient creates an instrumented booking API client
func NewBookingAPIClient(baseURL string, logger *logging.Logger, metrics DownstreamMetrics, opts ...Option) *BookingAPIClient {
	return &BookingAPIClient{
		client: NewServiceClient(baseURL, logger, metrics, BookingAPIService, opts...),
	}
}

func (c *BookingAPIClient) adminReport(ctx context.Context, cred credentials.Credential, query url.Values) (map[string]any, error) {
	payload, err := c.client.getJSON(ctx, cred, PathAdminReports, query)
	if err != nil {
		return nil, err
	}
	obj, err := requireSuccess(http.MethodGet+" "+PathAdminReports, payload)
	if err != nil {
		return nil, err
	}
	return reportPayload(obj), nil
}

func reportTypeQuery(t domain.ReportType) url.Values {
	return url.Values{"reportType": []string{string(t)}}
}

// GetBookingsReport retrieves the bookings report backing the admin headline stats
func (c *BookingAPIClient) GetBookingsReport(ctx context.Context, cred credentials.Credential) (domain.BookingsReport, error) {
	data, err := c.adminReport(ctx, cred, reportTypeQuery(domain.ReportTypeBookings))
	if err != nil {
		return domain.BookingsReport{}, err
	}
	return decodeBookingsReport(data), nil
}

// GetUsersReport retrieves the users report (total user count)
func (c *BookingAPIClient) GetUsersReport(ctx context.Context, cred credentials.Credential) (domain.UsersReport, error) {
	data, err := c.adminReport(ctx, cred, reportTypeQuery(domain.ReportTypeUsers))
	if err != nil {
		return domain.UsersReport{}, err
	}
	var report domain.UsersReport
	if err := decodeLenient(data, &report); err != nil {
		return domain.UsersReport{}, err
	}
	return report, nil
}

// GetPerformanceReport retrieves today's operational highlights
func (c *BookingAPIClient) GetPerformanceReport(ctx context.Context, cred credentials.Credential) (domain.PerformanceStats, error) {
	data, err := c.adminReport(ctx, cred, reportTypeQuery(domain.ReportTypePerformance))
	if err != nil {
		return domain.PerformanceStats{}, err
	}
	var stats domain.PerformanceStats
	if err := decodeLenient(data, &stats); err != nil {
		return domain.PerformanceStats{}, err
	}
	return stats, nil
}

// ReportQuery builds the reports query for a selection. Filters left at
// their defaults are not sent.
func ReportQuery(sel domain.ReportSelection) url.Values {
	query := reportTypeQuery(sel.ReportType)
	if sel.StatusFilter != "" && sel.StatusFilter != domain.FilterAll {
		query.Set("status", sel.StatusFilter)
	}
	if sel.TransportFilter != "" && sel.TransportFilter != domain.FilterAll {
		query.Set("transport", sel.TransportFilter)
	}
	if sel.DateFrom != nil {
		query.Set("dateFrom", sel.DateFrom.Format("2006-01-02"))
	}
	if sel.DateTo != nil {
		query.Set("dateTo", sel.DateTo.Format("2006-01-02"))
	}
	return query
}

// GetReport retrieves the report for the reports screen selection
func (c *BookingAPIClient) GetReport(ctx context.Context, cred credentials.Credential, sel domain.ReportSelection) (*domain.Report, error) {
	data, err := c.adminReport(ctx, cred, ReportQuery(sel))
	if err != nil {
		return nil, err
	}
	return decodeReport(sel.ReportType, data), nil
}

// ListUsers retrieves every user account
func (c *BookingAPIClient) ListUsers(ctx context.Context, cred credentials.Credential) ([]domain.UserRecord, error) {
	payload, err := c.client.getJSON(ctx, cred, PathAdminUsers, nil)
	if err != nil {
		return nil, err
	}
	obj, err := requireSuccess(http.MethodGet+" "+PathAdminUsers, payload)
	if err != nil {
		return nil, err
	}
	return decodeUsers(obj["users"]), nil
}

// CountCustomerBookings returns the total number of bookings of one customer
func (c *BookingAPIClient) CountCustomerBookings(ctx context.Context, cred credentials.Credential, customerID string) (int, error) {
	query := url.Values{"customerId": []string{customerID}}
	payload, err := c.client.getJSON(ctx, cred, PathAdminBookings, query)
	if err != nil {
		return 0, err
	}
	obj, err := requireSuccess(http.MethodGet+" "+PathAdminBookings, payload)
	if err != nil {
		return 0, err
	}
	pagination, _ := obj["pagination"].(map[string]any)
	count := int(toFloat(pagination["totalBookings"]))
	if count < 0 {
		count = 0
	}
	return count, nil
}

// GetCustomerStats retrieves the signed-in customer's headline numbers. The
// endpoint answers with a bare object; an enveloped answer is accepted too.
func (c *BookingAPIClient) GetCustomerStats(ctx context.Context, cred credentials.Credential) (domain.CustomerStats, error) {
	payload, err := c.client.getJSON(ctx, cred, PathBookingStats, nil)
	if err != nil {
		return domain.CustomerStats{}, err
	}
	op := http.MethodGet + " " + PathBookingStats
	data, err := unwrapOptionalEnvelope(op, payload)
	if err != nil {
		return domain.CustomerStats{}, err
	}
	if _, ok := data.(map[string]any); !ok {
		return domain.CustomerStats{}, &APIError{Op: op, Status: http.StatusOK, Cause: errUnexpectedShape}
	}

	var stats domain.CustomerStats
	if err := decodeLenient(data, &stats); err != nil {
		return domain.CustomerStats{}, &APIError{Op: op, Status: http.StatusOK, Cause: err}
	}
	return stats, nil
}

// GetRecentBookings retrieves the signed-in customer's latest bookings
func (c *BookingAPIClient) GetRecentBookings(ctx context.Context, cred credentials.Credential, limit int) ([]domain.BookingRecord, error) {
	var query url.Values
	if limit > 0 {
		query = url.Values{"limit": []string{strconv.Itoa(limit)}}
	}
	payload, err := c.client.getJSON(ctx, cred, PathRecentBooking, query)
	if err != nil {
		return nil, err
	}
	op := http.MethodGet + " " + PathRecentBooking
	data, err := unwrapOptionalEnvelope(op, payload)
	if err != nil {
		return nil, err
	}
	if _, ok := data.([]any); !ok {
		return nil, &APIError{Op: op, Status: http.StatusOK, Cause: errUnexpectedShape}
	}
	return decodeBookings(data), nil
}

package domain

import (
	"fmt"
	"math"
	"sort"
)

// CountByMode partitions records by transport mode. Records with a missing or
// unknown mode are counted in neither bucket.
func CountByMode(records []BookingRecord) ModeCounts {
	var counts ModeCounts
	for _, r := range records {
		switch r.ModeOfTransport {
		case TransportModeTruck:
			counts.Truck++
		case TransportModeTrain:
			counts.Train++
		}
	}
	return counts
}

// CountByStatus counts records whose status exactly equals target (case-sensitive)
func CountByStatus(records []BookingRecord, target BookingStatus) int64 {
	var n int64
	for _, r := range records {
		if r.Status == target {
			n++
		}
	}
	return n
}

// SumRevenue adds up booking amounts. Non-finite amounts count as zero.
func SumRevenue(records []BookingRecord) float64 {
	amounts := make([]float64, 0, len(records))
	for _, r := range records {
		if math.IsNaN(r.Amount) || math.IsInf(r.Amount, 0) {
			continue
		}
		amounts = append(amounts, r.Amount)
	}
	// Summing in sorted order makes the float result independent of input order.
	sort.Float64s(amounts)

	var total float64
	for _, a := range amounts {
		total += a
	}
	return total
}

// CompletionRate returns the percentage of delivered records, 0 for no records
func CompletionRate(records []BookingRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	delivered := CountByStatus(records, BookingStatusDelivered)
	return float64(delivered) / float64(len(records)) * 100
}

// AverageOrderValue returns revenue per booking, 0 when there are no bookings.
// The result is not rounded; use FormatCurrency for display.
func AverageOrderValue(summary ReportSummary) float64 {
	if summary.TotalBookings == 0 {
		return 0
	}
	return summary.TotalRevenue / float64(summary.TotalBookings)
}

// AggregateAdminStats reduces booking records and a user count into admin stats
func AggregateAdminStats(records []BookingRecord, totalUsers int64) AdminStats {
	modes := CountByMode(records)
	return AdminStats{
		TotalBookings:    int64(len(records)),
		ActiveDeliveries: CountByStatus(records, BookingStatusInTransit),
		TotalUsers:       totalUsers,
		TotalRevenue:     SumRevenue(records),
		TruckCount:       modes.Truck,
		TrainCount:       modes.Train,
	}
}

// ApplyReportedTotals overrides record-derived totals with the totals the
// bookings report states explicitly. The report's booking list may be a page
// of a larger set, so its own totals win when present.
func ApplyReportedTotals(stats AdminStats, report BookingsReport) AdminStats {
	if report.TotalBookings != nil {
		stats.TotalBookings = *report.TotalBookings
	}
	if report.TotalRevenue != nil {
		stats.TotalRevenue = *report.TotalRevenue
	}
	if report.StatusCounts != nil {
		stats.ActiveDeliveries = report.StatusCounts[string(BookingStatusInTransit)]
	}
	return stats
}

// RecentBookings returns at most n records from the head of the list
func RecentBookings(records []BookingRecord, n int) []BookingRecord {
	if n <= 0 {
		return []BookingRecord{}
	}
	if len(records) < n {
		n = len(records)
	}
	out := make([]BookingRecord, n)
	copy(out, records[:n])
	return out
}

// FormatCurrency renders an amount with two decimals
func FormatCurrency(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// FormatPercent renders a rate with at most two decimals
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

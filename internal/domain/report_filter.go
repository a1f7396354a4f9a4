package domain

import (
	"fmt"
	"time"
)

// FilterAll is the filter value meaning "no exclusion"
const FilterAll = "all"

// ReportSelection is the current reports screen selection
type ReportSelection struct {
	ReportType      ReportType `json:"reportType"`
	StatusFilter    string     `json:"statusFilter"`
	TransportFilter string     `json:"transportFilter"`
	DateFrom        *time.Time `json:"dateFrom,omitempty"`
	DateTo          *time.Time `json:"dateTo,omitempty"`
}

// DefaultReportSelection returns the selection a freshly opened reports screen starts with
func DefaultReportSelection() ReportSelection {
	return ReportSelection{
		ReportType:      ReportTypeBookings,
		StatusFilter:    FilterAll,
		TransportFilter: FilterAll,
	}
}

// ReportFilter holds the reports screen selection. It is a plain state
// container; the caller decides what to do when the report type changes.
type ReportFilter struct {
	selection ReportSelection
}

// NewReportFilter creates a filter with default selection
func NewReportFilter() *ReportFilter {
	return &ReportFilter{selection: DefaultReportSelection()}
}

// Selection returns a copy of the current selection
func (f *ReportFilter) Selection() ReportSelection {
	sel := f.selection
	if sel.DateFrom != nil {
		from := *sel.DateFrom
		sel.DateFrom = &from
	}
	if sel.DateTo != nil {
		to := *sel.DateTo
		sel.DateTo = &to
	}
	return sel
}

// SetReportType changes the report type and reports whether it changed.
// A change invalidates any previously fetched report.
func (f *ReportFilter) SetReportType(t ReportType) (bool, error) {
	if !t.IsSelectable() {
		return false, fmt.Errorf("invalid report type %q", t)
	}
	if f.selection.ReportType == t {
		return false, nil
	}
	f.selection.ReportType = t
	return true, nil
}

// SetStatusFilter sets the status filter; empty resets to "all"
func (f *ReportFilter) SetStatusFilter(status string) {
	if status == "" {
		status = FilterAll
	}
	f.selection.StatusFilter = status
}

// SetTransportFilter sets the transport filter; empty resets to "all"
func (f *ReportFilter) SetTransportFilter(mode string) {
	if mode == "" {
		mode = FilterAll
	}
	f.selection.TransportFilter = mode
}

// SetDateRange sets the optional date range; nil bounds mean open-ended
func (f *ReportFilter) SetDateRange(from, to *time.Time) error {
	if from != nil && to != nil && to.Before(*from) {
		return fmt.Errorf("invalid date range: %s is before %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}
	f.selection.DateFrom = from
	f.selection.DateTo = to
	return nil
}

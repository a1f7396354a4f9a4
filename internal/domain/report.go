package domain

// ReportType selects which admin report is requested
type ReportType string

const (
	ReportTypeBookings    ReportType = "bookings"
	ReportTypeRevenue     ReportType = "revenue"
	ReportTypeUsers       ReportType = "users"
	ReportTypePerformance ReportType = "performance"
)

// SelectableReportTypes are the report types offered on the reports screen
var SelectableReportTypes = []ReportType{ReportTypeBookings, ReportTypeRevenue}

// IsSelectable reports whether the type can be chosen on the reports screen
func (t ReportType) IsSelectable() bool {
	for _, s := range SelectableReportTypes {
		if s == t {
			return true
		}
	}
	return false
}

// ReportSummary holds the report headline numbers. Pointer fields are nil when
// the API did not send them.
type ReportSummary struct {
	TotalBookings     int64    `json:"totalBookings"`
	TotalRevenue      float64  `json:"totalRevenue"`
	AverageOrderValue *float64 `json:"averageOrderValue,omitempty"`
	CompletionRate    *float64 `json:"completionRate,omitempty"`
}

// Unrecognized carries a breakdown entry that did not have the expected shape
type Unrecognized struct {
	Raw map[string]any `json:"raw"`
}

// StatusShare is one row of the status distribution
type StatusShare struct {
	Status     string  `json:"status" mapstructure:"status"`
	Count      int64   `json:"count" mapstructure:"count"`
	Percentage float64 `json:"percentage" mapstructure:"percentage"`
}

// TransportShare is one row of the transport revenue breakdown
type TransportShare struct {
	Mode       string  `json:"mode" mapstructure:"mode"`
	Revenue    float64 `json:"revenue" mapstructure:"revenue"`
	Count      int64   `json:"count" mapstructure:"count"`
	Percentage float64 `json:"percentage" mapstructure:"percentage"`
}

// StatusBreakdownEntry is either a StatusShare or an Unrecognized entry
type StatusBreakdownEntry struct {
	Share        *StatusShare  `json:"share,omitempty"`
	Unrecognized *Unrecognized `json:"unrecognized,omitempty"`
}

// TransportBreakdownEntry is either a TransportShare or an Unrecognized entry
type TransportBreakdownEntry struct {
	Share        *TransportShare `json:"share,omitempty"`
	Unrecognized *Unrecognized   `json:"unrecognized,omitempty"`
}

// Report is a parsed admin report
type Report struct {
	Type               ReportType                `json:"type"`
	Summary            ReportSummary             `json:"summary"`
	StatusBreakdown    []StatusBreakdownEntry    `json:"statusBreakdown"`
	TransportBreakdown []TransportBreakdownEntry `json:"transportBreakdown"`
	Bookings           []BookingRecord           `json:"bookings,omitempty"`
}

// SummaryCards are the four display-ready report headline cards
type SummaryCards struct {
	TotalBookings     int64  `json:"totalBookings"`
	TotalRevenue      string `json:"totalRevenue"`
	AverageOrderValue string `json:"averageOrderValue"`
	CompletionRate    string `json:"completionRate"`
}

// BuildSummaryCards projects a report summary into display strings. Values the
// API omitted are derived from the report's bookings.
func BuildSummaryCards(r *Report) SummaryCards {
	if r == nil {
		return SummaryCards{
			TotalRevenue:      FormatCurrency(0),
			AverageOrderValue: FormatCurrency(0),
			CompletionRate:    FormatPercent(0),
		}
	}

	aov := AverageOrderValue(r.Summary)
	if r.Summary.AverageOrderValue != nil {
		aov = *r.Summary.AverageOrderValue
	}
	rate := CompletionRate(r.Bookings)
	if r.Summary.CompletionRate != nil {
		rate = *r.Summary.CompletionRate
	}

	return SummaryCards{
		TotalBookings:     r.Summary.TotalBookings,
		TotalRevenue:      FormatCurrency(r.Summary.TotalRevenue),
		AverageOrderValue: FormatCurrency(aov),
		CompletionRate:    FormatPercent(rate),
	}
}

// ReportSnapshot is the render-ready reports screen
type ReportSnapshot struct {
	ScreenStatus
	Selection ReportSelection `json:"selection"`
	Summary   SummaryCards    `json:"summary"`
	Report    *Report         `json:"report,omitempty"`
}

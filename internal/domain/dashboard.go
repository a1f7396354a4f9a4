package domain

import "time"

// AdminStats represents the admin dashboard headline numbers
type AdminStats struct {
	TotalBookings    int64   `json:"totalBookings"`
	ActiveDeliveries int64   `json:"activeDeliveries"`
	TotalUsers       int64   `json:"totalUsers"`
	TotalRevenue     float64 `json:"totalRevenue"`
	TruckCount       int64   `json:"truckCount"`
	TrainCount       int64   `json:"trainCount"`
}

// CustomerStats represents the customer dashboard headline numbers
type CustomerStats struct {
	TotalBookings       int64   `json:"totalBookings" mapstructure:"totalBookings"`
	ActiveDeliveries    int64   `json:"activeDeliveries" mapstructure:"activeDeliveries"`
	CompletedDeliveries int64   `json:"completedDeliveries" mapstructure:"completedDeliveries"`
	TotalSpent          float64 `json:"totalSpent" mapstructure:"totalSpent"`
}

// PerformanceStats represents today's operational highlights on the admin dashboard
type PerformanceStats struct {
	CompletedToday     int64   `json:"completedToday" mapstructure:"completedToday"`
	PendingAssignments int64   `json:"pendingAssignments" mapstructure:"pendingAssignments"`
	SuccessRate        float64 `json:"successRate" mapstructure:"successRate"`
}

// ModeCounts partitions bookings by transport mode
type ModeCounts struct {
	Truck int64 `json:"truck"`
	Train int64 `json:"train"`
}

// ChartSlice is a label/value pair handed to the chart renderer
type ChartSlice struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// TransportChart builds the truck/train pie chart input
func TransportChart(stats AdminStats) []ChartSlice {
	return []ChartSlice{
		{Label: "Truck", Value: float64(stats.TruckCount)},
		{Label: "Train", Value: float64(stats.TrainCount)},
	}
}

// BookingsReport is the payload of the bookings report. Totals are pointers so
// the caller can tell a reported zero from an absent field.
type BookingsReport struct {
	TotalBookings *int64           `json:"totalBookings,omitempty"`
	TotalRevenue  *float64         `json:"totalRevenue,omitempty"`
	StatusCounts  map[string]int64 `json:"statusCounts,omitempty"`
	Bookings      []BookingRecord  `json:"bookings"`
}

// UsersReport is the payload of the users report
type UsersReport struct {
	TotalUsers int64 `json:"totalUsers" mapstructure:"totalUsers"`
}

// Phase represents where a dashboard screen is in its fetch cycle
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseFailed  Phase = "failed"
)

// ScreenStatus is the part of every snapshot describing the fetch cycle
type ScreenStatus struct {
	Phase       Phase     `json:"phase"`
	Error       string    `json:"error,omitempty"`
	LastUpdated time.Time `json:"lastUpdated,omitempty"`
	Degraded    []string  `json:"degraded,omitempty"`
	Greeting    string    `json:"greeting"`
}

// AdminSnapshot is the render-ready admin dashboard
type AdminSnapshot struct {
	ScreenStatus
	Stats          AdminStats       `json:"stats"`
	Performance    PerformanceStats `json:"performance"`
	RecentBookings []BookingRecord  `json:"recentBookings"`
	TransportChart []ChartSlice     `json:"transportChart"`
}

// CustomerSnapshot is the render-ready customer dashboard
type CustomerSnapshot struct {
	ScreenStatus
	Stats          CustomerStats   `json:"stats"`
	RecentBookings []BookingRecord `json:"recentBookings"`
	TotalSpent     string          `json:"totalSpentDisplay"`
}

// DispatcherSnapshot is the render-ready dispatcher board
type DispatcherSnapshot struct {
	ScreenStatus
	Stats      DispatchStats    `json:"stats"`
	Filter     string           `json:"filter"`
	Deliveries []DeliveryRecord `json:"deliveries"`
	// EditToken is handed back with a status edit; the edit is rejected if a
	// refresh completed since the token was issued.
	EditToken uint64 `json:"editToken"`
}

// UserRow joins a directory entry with its booking count
type UserRow struct {
	UserRecord
	BookingCount int `json:"bookingCount"`
}

// UserDirectorySnapshot is the render-ready user management screen
type UserDirectorySnapshot struct {
	ScreenStatus
	TotalUsers int          `json:"totalUsers"`
	RoleCounts map[Role]int `json:"roleCounts"`
	Search     string       `json:"search"`
	RoleFilter string       `json:"roleFilter"`
	Users      []UserRow    `json:"users"`
}

package domain

// DeliveryStatus represents the dispatcher-side status of a delivery
type DeliveryStatus string

const (
	DeliveryStatusAssigned  DeliveryStatus = "assigned"
	DeliveryStatusInTransit DeliveryStatus = "in_transit"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusDelayed   DeliveryStatus = "delayed"
	DeliveryStatusPending   DeliveryStatus = "pending"
)

// IsValid checks if the status is a known delivery status
func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusAssigned, DeliveryStatusInTransit, DeliveryStatusDelivered,
		DeliveryStatusDelayed, DeliveryStatusPending:
		return true
	}
	return false
}

// Priority represents delivery urgency
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// DeliveryRecord is a delivery shown on the dispatcher board
type DeliveryRecord struct {
	ID            string         `json:"id" yaml:"id"`
	OrderID       string         `json:"orderId" yaml:"orderId"`
	Customer      string         `json:"customer" yaml:"customer"`
	Origin        string         `json:"origin" yaml:"origin"`
	Destination   string         `json:"destination" yaml:"destination"`
	Status        DeliveryStatus `json:"status" yaml:"status"`
	Driver        string         `json:"driver" yaml:"driver"`
	Vehicle       string         `json:"vehicle" yaml:"vehicle"`
	Priority      Priority       `json:"priority" yaml:"priority"`
	EstimatedTime string         `json:"estimatedTime" yaml:"estimatedTime"`
	Progress      int            `json:"progress" yaml:"progress"` // 0-100
	Value         float64        `json:"value" yaml:"value"`
	Distance      float64        `json:"distance" yaml:"distance"`
	AssignedTime  string         `json:"assignedTime" yaml:"assignedTime"`
}

// DispatchStats are the board statistics sourced from a reporting feed.
// They are never derived from the delivery list.
type DispatchStats struct {
	ActiveDeliveries  int64   `json:"activeDeliveries" yaml:"activeDeliveries"`
	CompletedToday    int64   `json:"completedToday" yaml:"completedToday"`
	AvailableDrivers  int64   `json:"availableDrivers" yaml:"availableDrivers"`
	DelayedDeliveries int64   `json:"delayedDeliveries" yaml:"delayedDeliveries"`
	AvgDeliveryTime   float64 `json:"avgDeliveryTime" yaml:"avgDeliveryTime"` // hours
	OnTimeRate        float64 `json:"onTimeRate" yaml:"onTimeRate"`           // percentage
}

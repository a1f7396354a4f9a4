package domain

import "time"

// BookingStatus represents the lifecycle status of a booking as reported by the booking API
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "Pending"
	BookingStatusInTransit BookingStatus = "In Transit"
	BookingStatusDelivered BookingStatus = "Delivered"
	BookingStatusDelayed   BookingStatus = "Delayed"
	BookingStatusAssigned  BookingStatus = "Assigned"
)

// TransportMode represents how a booking is moved
type TransportMode string

const (
	TransportModeTruck TransportMode = "truck"
	TransportModeTrain TransportMode = "train"
)

// IsValid reports whether the mode is one the dashboards count
func (m TransportMode) IsValid() bool {
	return m == TransportModeTruck || m == TransportModeTrain
}

// BookingRecord is a booking as fetched from the booking API. Records are
// immutable once fetched; the API remains the source of truth.
type BookingRecord struct {
	ID              string        `json:"id" mapstructure:"id"`
	Customer        string        `json:"customer" mapstructure:"customer"`
	Origin          string        `json:"origin" mapstructure:"origin"`
	Destination     string        `json:"destination" mapstructure:"destination"`
	Status          BookingStatus `json:"status" mapstructure:"status"`
	ModeOfTransport TransportMode `json:"modeOfTransport" mapstructure:"modeOfTransport"`
	Amount          float64       `json:"amount" mapstructure:"amount"`
	Progress        int           `json:"progress" mapstructure:"progress"`
	CreatedAt       time.Time     `json:"createdAt" mapstructure:"createdAt"`
}

package domain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DeliveryBoard holds the dispatcher's deliveries and the externally supplied
// board statistics. The two are populated independently.
type DeliveryBoard struct {
	deliveries []DeliveryRecord
	stats      DispatchStats
}

// NewDeliveryBoard creates a board over a copy of the given deliveries
func NewDeliveryBoard(deliveries []DeliveryRecord, stats DispatchStats) *DeliveryBoard {
	cp := make([]DeliveryRecord, len(deliveries))
	copy(cp, deliveries)
	return &DeliveryBoard{deliveries: cp, stats: stats}
}

// Deliveries returns a copy of all deliveries
func (b *DeliveryBoard) Deliveries() []DeliveryRecord {
	return b.FilteredBy(FilterAll)
}

// Stats returns the board statistics
func (b *DeliveryBoard) Stats() DispatchStats {
	return b.stats
}

// SetStats replaces the board statistics
func (b *DeliveryBoard) SetStats(stats DispatchStats) {
	b.stats = stats
}

// FilteredBy returns deliveries with the given status, or all for "all"
func (b *DeliveryBoard) FilteredBy(status string) []DeliveryRecord {
	out := make([]DeliveryRecord, 0, len(b.deliveries))
	for _, d := range b.deliveries {
		if status == FilterAll || string(d.Status) == status {
			out = append(out, d)
		}
	}
	return out
}

// UpdateStatus sets the status of the delivery with the given id. Other fields
// are untouched. Returns false when no delivery has that id.
func (b *DeliveryBoard) UpdateStatus(id string, status DeliveryStatus) bool {
	for i := range b.deliveries {
		if b.deliveries[i].ID == id {
			b.deliveries[i].Status = status
			return true
		}
	}
	return false
}

// DispatchFixture is the seed content of a dispatcher board
type DispatchFixture struct {
	Stats      DispatchStats    `yaml:"stats"`
	Deliveries []DeliveryRecord `yaml:"deliveries"`
}

// LoadDispatchFixture reads a board fixture from a YAML file
func LoadDispatchFixture(path string) (*DispatchFixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dispatch fixture: %w", err)
	}
	return ParseDispatchFixture(data)
}

// ParseDispatchFixture parses a YAML board fixture and validates statuses
func ParseDispatchFixture(data []byte) (*DispatchFixture, error) {
	var fixture DispatchFixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("failed to parse dispatch fixture: %w", err)
	}
	for _, d := range fixture.Deliveries {
		if !d.Status.IsValid() {
			return nil, fmt.Errorf("delivery %s has invalid status %q", d.ID, d.Status)
		}
	}
	return &fixture, nil
}

// DefaultDispatchFixture is the board shown when no fixture file is configured
func DefaultDispatchFixture() *DispatchFixture {
	return &DispatchFixture{
		Stats: DispatchStats{
			ActiveDeliveries:  24,
			CompletedToday:    18,
			AvailableDrivers:  7,
			DelayedDeliveries: 2,
			AvgDeliveryTime:   2.4,
			OnTimeRate:        94.2,
		},
		Deliveries: []DeliveryRecord{
			{
				ID:            "DEL001",
				OrderID:       "ORD-2024-001",
				Customer:      "TechCorp Ltd.",
				Origin:        "New York, NY",
				Destination:   "Boston, MA",
				Status:        DeliveryStatusInTransit,
				Driver:        "John Smith",
				Vehicle:       "TRK-001",
				Priority:      PriorityHigh,
				EstimatedTime: "2h 15m",
				Progress:      68,
				Value:         1200.00,
				Distance:      215,
				AssignedTime:  "08:30",
			},
			{
				ID:            "DEL002",
				OrderID:       "ORD-2024-002",
				Customer:      "RetailMax Inc.",
				Origin:        "Chicago, IL",
				Destination:   "Detroit, MI",
				Status:        DeliveryStatusDelayed,
				Driver:        "Sarah Wilson",
				Vehicle:       "TRK-002",
				Priority:      PriorityUrgent,
				EstimatedTime: "1h 45m",
				Progress:      45,
				Value:         850.00,
				Distance:      280,
				AssignedTime:  "09:15",
			},
			{
				ID:            "DEL003",
				OrderID:       "ORD-2024-003",
				Customer:      "Global Supplies",
				Origin:        "Los Angeles, CA",
				Destination:   "San Diego, CA",
				Status:        DeliveryStatusAssigned,
				Driver:        "Mike Johnson",
				Vehicle:       "TRK-003",
				Priority:      PriorityMedium,
				EstimatedTime: "3h 20m",
				Progress:      0,
				Value:         650.00,
				Distance:      120,
				AssignedTime:  "10:00",
			},
		},
	}
}

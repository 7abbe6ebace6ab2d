package enums

import "fmt"

// DeliveryStatus tracks the delivery axis of an approved order.
type DeliveryStatus string

const (
	DeliveryStatusPending        DeliveryStatus = "pending"
	DeliveryStatusReadyToPickup  DeliveryStatus = "ready_to_pickup"
	DeliveryStatusOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryStatusDelivered      DeliveryStatus = "delivered"
)

var deliverySequence = []DeliveryStatus{
	DeliveryStatusPending,
	DeliveryStatusReadyToPickup,
	DeliveryStatusOutForDelivery,
	DeliveryStatusDelivered,
}

// String implements fmt.Stringer.
func (s DeliveryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DeliveryStatus.
func (s DeliveryStatus) IsValid() bool {
	return s.rank() >= 0
}

// rank returns the position in the delivery sequence, -1 when unknown.
func (s DeliveryStatus) rank() int {
	for i, candidate := range deliverySequence {
		if candidate == s {
			return i
		}
	}
	return -1
}

// Precedes reports whether s comes strictly before other in the delivery sequence.
func (s DeliveryStatus) Precedes(other DeliveryStatus) bool {
	a, b := s.rank(), other.rank()
	return a >= 0 && b >= 0 && a < b
}

// Next returns the stage after s, or s itself when already delivered.
func (s DeliveryStatus) Next() DeliveryStatus {
	r := s.rank()
	if r < 0 || r == len(deliverySequence)-1 {
		return s
	}
	return deliverySequence[r+1]
}

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, candidate := range deliverySequence {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}

package autoconfirm

import (
	"time"

	"github.com/anihan/coop-market-backend/pkg/clock"
	"github.com/anihan/coop-market-backend/pkg/db/models"
)

// DefaultGrace is how long a delivered order waits for the customer before
// the system confirms it on their behalf.
const DefaultGrace = 3 * 24 * time.Hour

// Rule decides when a delivered order is confirmed without customer action.
// It is pure: callers apply the confirmation themselves, guarded by the
// customer_received flag.
type Rule struct {
	grace time.Duration
	clock clock.Clock
}

// NewRule builds a rule with the given grace window. Non-positive grace
// falls back to the default; a nil clock uses system time.
func NewRule(grace time.Duration, clk clock.Clock) Rule {
	if grace <= 0 {
		grace = DefaultGrace
	}
	if clk == nil {
		clk = clock.System()
	}
	return Rule{grace: grace, clock: clk}
}

// Eligible reports whether the order should be auto-confirmed now.
func (r Rule) Eligible(order *models.Order) bool {
	if order == nil || order.DeliveredAt == nil || order.CustomerReceived {
		return false
	}
	return !r.clock.Now().Before(order.DeliveredAt.Add(r.grace))
}

// Deadline returns the instant at which a delivery becomes auto-confirmable.
func (r Rule) Deadline(deliveredAt time.Time) time.Time {
	return deliveredAt.Add(r.grace)
}

package orders

import "github.com/anihan/coop-market-backend/pkg/enums"

// statusTransitions is the allowed approval-axis graph. Anything absent is
// an illegal transition, rejected rather than coerced.
var statusTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:  {enums.OrderStatusApproved, enums.OrderStatusRejected},
	enums.OrderStatusApproved: {enums.OrderStatusDelayed},
	enums.OrderStatusDelayed:  {enums.OrderStatusApproved, enums.OrderStatusCancelled},
}

func canTransition(from, to enums.OrderStatus) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/anihan/coop-market-backend/pkg/clock"
	"github.com/anihan/coop-market-backend/pkg/db/models"
	"github.com/anihan/coop-market-backend/pkg/enums"
	"github.com/anihan/coop-market-backend/pkg/logger"
)

// Notifier turns committed order transitions into notification rows. It is
// fire-and-forget: failures are logged, never surfaced to the operation that
// triggered them.
type Notifier struct {
	repo  Repository
	logg  *logger.Logger
	clock clock.Clock
}

// NewNotifier wires a notifier over the notifications repository.
func NewNotifier(repo Repository, logg *logger.Logger, clk clock.Clock) (*Notifier, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Notifier{repo: repo, logg: logg, clock: clk}, nil
}

// Notify fans the event out to every recipient.
func (n *Notifier) Notify(ctx context.Context, event enums.NotificationEvent, order *models.Order, recipients []uuid.UUID) {
	if order == nil || len(recipients) == 0 {
		return
	}

	message := messageFor(event, order)
	now := n.clock.Now().UTC()
	orderID := order.ID

	rows := make([]models.Notification, 0, len(recipients))
	for _, recipient := range recipients {
		if recipient == uuid.Nil {
			continue
		}
		rows = append(rows, models.Notification{
			RecipientID: recipient,
			OrderID:     &orderID,
			Event:       event,
			Message:     message,
			CreatedAt:   now,
		})
	}

	if err := n.repo.CreateBatch(ctx, rows); err != nil {
		ctx = n.logg.WithOrderID(ctx, order.ID.String())
		n.logg.Error(ctx, fmt.Sprintf("dispatch %s notifications", event), err)
	}
}

func messageFor(event enums.NotificationEvent, order *models.Order) string {
	short := shortID(order.ID)
	switch event {
	case enums.NotificationOrderApproved:
		return fmt.Sprintf("Order %s has been approved. Total due: %s.", short, order.TotalAmount.StringFixed(2))
	case enums.NotificationOrderRejected:
		reason := ""
		if order.RejectReason != nil {
			reason = " Reason: " + *order.RejectReason
		}
		return fmt.Sprintf("Order %s was rejected.%s", short, reason)
	case enums.NotificationOrderDelayed:
		return fmt.Sprintf("Order %s has been delayed. You may cancel while it remains delayed.", short)
	case enums.NotificationOrderCancelled:
		return fmt.Sprintf("Order %s was cancelled and its stock returned.", short)
	case enums.NotificationDeliveryAdvanced:
		return fmt.Sprintf("Order %s is now %s.", short, order.DeliveryStatus)
	case enums.NotificationOrderReceived:
		return fmt.Sprintf("Order %s was confirmed received by the customer.", short)
	case enums.NotificationAutoConfirmed:
		return fmt.Sprintf("Order %s was automatically confirmed after the grace period.", short)
	case enums.NotificationDelayedReminder:
		return fmt.Sprintf("Order %s is still delayed. Cancel it or contact the cooperative.", short)
	default:
		return fmt.Sprintf("Order %s was updated.", short)
	}
}

func shortID(id uuid.UUID) string {
	s := id.String()
	if len(s) >= 8 {
		return s[:8]
	}
	return s
}

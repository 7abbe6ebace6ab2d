package enums

// NotificationEvent labels the transition a notification reports.
type NotificationEvent string

const (
	NotificationOrderApproved    NotificationEvent = "order_approved"
	NotificationOrderRejected    NotificationEvent = "order_rejected"
	NotificationOrderDelayed     NotificationEvent = "order_delayed"
	NotificationOrderCancelled   NotificationEvent = "order_cancelled"
	NotificationDeliveryAdvanced NotificationEvent = "delivery_advanced"
	NotificationOrderReceived    NotificationEvent = "order_received"
	NotificationAutoConfirmed    NotificationEvent = "order_auto_confirmed"
	NotificationDelayedReminder  NotificationEvent = "order_delayed_reminder"
)

func (e NotificationEvent) String() string {
	return string(e)
}

// IsValid reports whether the value is a known NotificationEvent.
func (e NotificationEvent) IsValid() bool {
	switch e {
	case NotificationOrderApproved,
		NotificationOrderRejected,
		NotificationOrderDelayed,
		NotificationOrderCancelled,
		NotificationDeliveryAdvanced,
		NotificationOrderReceived,
		NotificationAutoConfirmed,
		NotificationDelayedReminder:
		return true
	}
	return false
}

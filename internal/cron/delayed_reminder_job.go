package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/anihan/coop-market-backend/pkg/clock"
	"github.com/anihan/coop-market-backend/pkg/db/models"
	"github.com/anihan/coop-market-backend/pkg/enums"
	"github.com/anihan/coop-market-backend/pkg/logger"
)

const defaultReminderAfterDays = 2

// DelayedReminderJobParams configure the stale-delay reminder sweep.
type DelayedReminderJobParams struct {
	Logger        *logger.Logger
	Orders        delayedOrderSource
	Notifier      reminderNotifier
	ReminderAfter int
	Clock         clock.Clock
}

type delayedOrderSource interface {
	FindDelayedSince(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type reminderNotifier interface {
	Notify(ctx context.Context, event enums.NotificationEvent, order *models.Order, recipients []uuid.UUID)
}

// NewDelayedReminderJob nudges customers whose orders sit delayed beyond the
// reminder window so they cancel or follow up.
func NewDelayedReminderJob(params DelayedReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders source required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	after := params.ReminderAfter
	if after <= 0 {
		after = defaultReminderAfterDays
	}
	clk := params.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &delayedReminderJob{
		logg:     params.Logger,
		orders:   params.Orders,
		notifier: params.Notifier,
		after:    after,
		clock:    clk,
	}, nil
}

type delayedReminderJob struct {
	logg     *logger.Logger
	orders   delayedOrderSource
	notifier reminderNotifier
	after    int
	clock    clock.Clock
}

func (j *delayedReminderJob) Name() string { return "delayed-order-reminder" }

func (j *delayedReminderJob) Run(ctx context.Context) error {
	cutoff := j.clock.Now().UTC().Add(-time.Duration(j.after) * 24 * time.Hour)
	stale, err := j.orders.FindDelayedSince(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find delayed orders: %w", err)
	}

	for i := range stale {
		order := &stale[i]
		j.notifier.Notify(ctx, enums.NotificationDelayedReminder, order, []uuid.UUID{order.CustomerID})
	}

	if len(stale) > 0 {
		j.logg.Info(j.logg.WithField(ctx, "reminded", len(stale)), "delayed-order reminders sent")
	}
	return nil
}

package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/anihan/coop-market-backend/internal/autoconfirm"
	"github.com/anihan/coop-market-backend/pkg/clock"
	"github.com/anihan/coop-market-backend/pkg/db/models"
	"github.com/anihan/coop-market-backend/pkg/logger"
)

// AutoConfirmJobParams configure the delivered-order sweep.
type AutoConfirmJobParams struct {
	Logger *logger.Logger
	Orders deliveredOrderSource
	Grace  time.Duration
	Clock  clock.Clock
}

type deliveredOrderSource interface {
	FindDeliveredUnconfirmedBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	ConfirmIfEligible(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// NewAutoConfirmJob sweeps delivered orders past the grace window and
// confirms them one at a time, never holding a lock across orders.
func NewAutoConfirmJob(params AutoConfirmJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders source required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = autoconfirm.DefaultGrace
	}
	clk := params.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &autoConfirmJob{
		logg:   params.Logger,
		orders: params.Orders,
		grace:  grace,
		clock:  clk,
	}, nil
}

type autoConfirmJob struct {
	logg   *logger.Logger
	orders deliveredOrderSource
	grace  time.Duration
	clock  clock.Clock
}

func (j *autoConfirmJob) Name() string { return "order-auto-confirm" }

func (j *autoConfirmJob) Run(ctx context.Context) error {
	cutoff := j.clock.Now().UTC().Add(-j.grace)
	candidates, err := j.orders.FindDeliveredUnconfirmedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find auto-confirm candidates: %w", err)
	}

	confirmed := 0
	var errs []error
	for _, order := range candidates {
		ok, err := j.orders.ConfirmIfEligible(ctx, order.ID)
		if err != nil {
			orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
			j.logg.Error(orderCtx, "auto-confirm failed", err)
			errs = append(errs, fmt.Errorf("confirm order %s: %w", order.ID, err))
			continue
		}
		if ok {
			confirmed++
		}
	}

	if confirmed > 0 {
		j.logg.Info(j.logg.WithField(ctx, "confirmed", confirmed), "auto-confirm sweep complete")
	}
	return multierr.Combine(errs...)
}

package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/anihan/coop-market-backend/pkg/clock"
	"github.com/anihan/coop-market-backend/pkg/db/models"
	"github.com/anihan/coop-market-backend/pkg/enums"
	"github.com/anihan/coop-market-backend/pkg/logger"
)

type stubDelayedOrders struct {
	orders []models.Order
	cutoff time.Time
}

func (s *stubDelayedOrders) FindDelayedSince(_ context.Context, cutoff time.Time) ([]models.Order, error) {
	s.cutoff = cutoff
	return s.orders, nil
}

type capturingNotifier struct {
	events     []enums.NotificationEvent
	recipients [][]uuid.UUID
}

func (n *capturingNotifier) Notify(_ context.Context, event enums.NotificationEvent, _ *models.Order, recipients []uuid.UUID) {
	n.events = append(n.events, event)
	n.recipients = append(n.recipients, recipients)
}

func TestDelayedReminderJobNotifiesCustomers(t *testing.T) {
	now := time.Date(2026, 8, 10, 6, 0, 0, 0, time.UTC)
	customerA := uuid.New()
	customerB := uuid.New()
	source := &stubDelayedOrders{orders: []models.Order{
		{ID: uuid.New(), CustomerID: customerA},
		{ID: uuid.New(), CustomerID: customerB},
	}}
	notifier := &capturingNotifier{}

	job, err := NewDelayedReminderJob(DelayedReminderJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "cron-test"}),
		Orders:        source,
		Notifier:      notifier,
		ReminderAfter: 2,
		Clock:         clock.Fixed(now),
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	wantCutoff := now.Add(-2 * 24 * time.Hour)
	if !source.cutoff.Equal(wantCutoff) {
		t.Fatalf("cutoff = %v, want %v", source.cutoff, wantCutoff)
	}
	if len(notifier.events) != 2 {
		t.Fatalf("expected 2 reminders, got %d", len(notifier.events))
	}
	for i, event := range notifier.events {
		if event != enums.NotificationDelayedReminder {
			t.Fatalf("unexpected event %s", event)
		}
		if len(notifier.recipients[i]) != 1 {
			t.Fatalf("expected single recipient, got %v", notifier.recipients[i])
		}
	}
}

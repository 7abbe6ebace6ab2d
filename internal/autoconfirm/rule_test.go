package autoconfirm

import (
	"testing"
	"time"

	"github.com/anihan/coop-market-backend/pkg/clock"
	"github.com/anihan/coop-market-backend/pkg/db/models"
)

func TestEligible(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	rule := NewRule(DefaultGrace, clock.Fixed(now))

	fourDaysAgo := now.Add(-4 * 24 * time.Hour)
	twoDaysAgo := now.Add(-2 * 24 * time.Hour)
	exactlyAtGrace := now.Add(-DefaultGrace)

	cases := []struct {
		name  string
		order *models.Order
		want  bool
	}{
		{name: "nil order", order: nil, want: false},
		{name: "not delivered", order: &models.Order{}, want: false},
		{name: "past grace", order: &models.Order{DeliveredAt: &fourDaysAgo}, want: true},
		{name: "within grace", order: &models.Order{DeliveredAt: &twoDaysAgo}, want: false},
		{name: "at grace boundary", order: &models.Order{DeliveredAt: &exactlyAtGrace}, want: true},
		{name: "already confirmed", order: &models.Order{DeliveredAt: &fourDaysAgo, CustomerReceived: true}, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := rule.Eligible(tc.order); got != tc.want {
				t.Fatalf("Eligible() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNewRuleDefaults(t *testing.T) {
	t.Parallel()

	rule := NewRule(0, nil)
	delivered := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if got := rule.Deadline(delivered); !got.Equal(delivered.Add(DefaultGrace)) {
		t.Fatalf("Deadline() = %v", got)
	}
}

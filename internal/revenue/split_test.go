package revenue

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculate(t *testing.T) {
	cases := []struct {
		name     string
		subtotal string
		coop     string
		member   string
		total    string
	}{
		{name: "round hundred", subtotal: "100.00", coop: "10.00", member: "100.00", total: "110.00"},
		{name: "zero", subtotal: "0.00", coop: "0.00", member: "0.00", total: "0.00"},
		{name: "rounds half up", subtotal: "10.05", coop: "1.01", member: "10.05", total: "11.06"},
		{name: "sub-peso subtotal", subtotal: "0.04", coop: "0.00", member: "0.04", total: "0.04"},
		{name: "large order", subtotal: "98765.43", coop: "9876.54", member: "98765.43", total: "108641.97"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Calculate(decimal.RequireFromString(tc.subtotal))
			if !got.CoopShare.Equal(decimal.RequireFromString(tc.coop)) {
				t.Fatalf("coop share = %s, want %s", got.CoopShare, tc.coop)
			}
			if !got.MemberShare.Equal(decimal.RequireFromString(tc.member)) {
				t.Fatalf("member share = %s, want %s", got.MemberShare, tc.member)
			}
			if !got.TotalAmount.Equal(decimal.RequireFromString(tc.total)) {
				t.Fatalf("total = %s, want %s", got.TotalAmount, tc.total)
			}
		})
	}
}

func TestCalculateIdentity(t *testing.T) {
	subtotals := []string{"0.01", "1", "33.33", "250.75", "1234.56", "100000"}
	for _, s := range subtotals {
		split := Calculate(decimal.RequireFromString(s))
		if !split.TotalAmount.Equal(split.Subtotal.Add(split.CoopShare)) {
			t.Fatalf("subtotal %s: total %s != subtotal + coop %s", s, split.TotalAmount, split.Subtotal.Add(split.CoopShare))
		}
		want := split.Subtotal.Mul(decimal.RequireFromString("0.10")).Round(2)
		if !split.CoopShare.Equal(want) {
			t.Fatalf("subtotal %s: coop %s != %s", s, split.CoopShare, want)
		}
	}
}

package enums

import "fmt"

// StockAction labels a stock trail entry with the mutation that produced it.
type StockAction string

const (
	StockActionSupplied StockAction = "supplied"
	StockActionReserved StockAction = "reserved"
	StockActionReleased StockAction = "released"
	StockActionAdjusted StockAction = "adjusted"
)

var validStockActions = []StockAction{
	StockActionSupplied,
	StockActionReserved,
	StockActionReleased,
	StockActionAdjusted,
}

func (a StockAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known StockAction.
func (a StockAction) IsValid() bool {
	for _, candidate := range validStockActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseStockAction converts raw input into a StockAction.
func ParseStockAction(value string) (StockAction, error) {
	for _, candidate := range validStockActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock action %q", value)
}

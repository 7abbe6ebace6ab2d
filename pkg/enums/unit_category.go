package enums

import "fmt"

// UnitCategory is the unit a stock entry is sold in.
type UnitCategory string

const (
	UnitCategoryKilo UnitCategory = "kilo"
	UnitCategoryPc   UnitCategory = "pc"
	UnitCategoryTali UnitCategory = "tali"
)

var validUnitCategories = []UnitCategory{
	UnitCategoryKilo,
	UnitCategoryPc,
	UnitCategoryTali,
}

func (c UnitCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known UnitCategory.
func (c UnitCategory) IsValid() bool {
	for _, candidate := range validUnitCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseUnitCategory converts raw input into a UnitCategory.
func ParseUnitCategory(value string) (UnitCategory, error) {
	for _, candidate := range validUnitCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid unit category %q", value)
}

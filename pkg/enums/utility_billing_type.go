package enums

import "fmt"

// UtilityBillingType describes how a unit utility is metered and charged.
type UtilityBillingType string

const (
	UtilityBillingTypeMeter UtilityBillingType = "meter"
	UtilityBillingTypeCard  UtilityBillingType = "card"
	UtilityBillingTypeFixed UtilityBillingType = "fixed"
)

var validUtilityBillingTypes = []UtilityBillingType{
	UtilityBillingTypeMeter,
	UtilityBillingTypeCard,
	UtilityBillingTypeFixed,
}

// String implements fmt.Stringer.
func (u UtilityBillingType) String() string {
	return string(u)
}

// IsValid reports whether the value is known.
func (u UtilityBillingType) IsValid() bool {
	for _, candidate := range validUtilityBillingTypes {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseUtilityBillingType converts raw input into a UtilityBillingType.
func ParseUtilityBillingType(value string) (UtilityBillingType, error) {
	for _, candidate := range validUtilityBillingTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid utility billing type %q", value)
}

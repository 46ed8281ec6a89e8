package enums

import "fmt"

// PaymentType categorizes what a payment settles.
type PaymentType string

const (
	PaymentTypeRent    PaymentType = "rent"
	PaymentTypeUtility PaymentType = "utility"
	PaymentTypeService PaymentType = "service"
	PaymentTypeAdvance PaymentType = "advance"
)

var validPaymentTypes = []PaymentType{
	PaymentTypeRent,
	PaymentTypeUtility,
	PaymentTypeService,
	PaymentTypeAdvance,
}

// String implements fmt.Stringer.
func (p PaymentType) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p PaymentType) IsValid() bool {
	for _, candidate := range validPaymentTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentType converts raw input into a PaymentType.
func ParsePaymentType(value string) (PaymentType, error) {
	for _, candidate := range validPaymentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment type %q", value)
}

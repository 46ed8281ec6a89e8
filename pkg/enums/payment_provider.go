package enums

import "fmt"

// PaymentProvider identifies the channel a payment arrived through.
type PaymentProvider string

const (
	PaymentProviderStripe       PaymentProvider = "stripe"
	PaymentProviderCash         PaymentProvider = "cash"
	PaymentProviderBankTransfer PaymentProvider = "bank_transfer"
	PaymentProviderMobileMoney  PaymentProvider = "mobile_money"
)

var validPaymentProviders = []PaymentProvider{
	PaymentProviderStripe,
	PaymentProviderCash,
	PaymentProviderBankTransfer,
	PaymentProviderMobileMoney,
}

// String implements fmt.Stringer.
func (p PaymentProvider) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p PaymentProvider) IsValid() bool {
	for _, candidate := range validPaymentProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsManual reports whether the provider settles outside a webhook flow.
func (p PaymentProvider) IsManual() bool {
	return p == PaymentProviderCash || p == PaymentProviderBankTransfer
}

// ParsePaymentProvider converts raw input into a PaymentProvider.
func ParsePaymentProvider(value string) (PaymentProvider, error) {
	for _, candidate := range validPaymentProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment provider %q", value)
}

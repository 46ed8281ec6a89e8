package enums

import "testing"

func TestPaymentStatusTransitions(t *testing.T) {
	allowed := []struct {
		from, to PaymentStatus
	}{
		{PaymentStatusPending, PaymentStatusProcessing},
		{PaymentStatusPending, PaymentStatusSucceeded},
		{PaymentStatusPending, PaymentStatusFailed},
		{PaymentStatusProcessing, PaymentStatusSucceeded},
		{PaymentStatusProcessing, PaymentStatusFailed},
		{PaymentStatusSucceeded, PaymentStatusRefunded},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct {
		from, to PaymentStatus
	}{
		{PaymentStatusFailed, PaymentStatusSucceeded},
		{PaymentStatusRefunded, PaymentStatusSucceeded},
		{PaymentStatusSucceeded, PaymentStatusFailed},
		{PaymentStatusProcessing, PaymentStatusPending},
		{PaymentStatusPending, PaymentStatusRefunded},
	}
	for _, tc := range denied {
		if tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("%s -> %s should be denied", tc.from, tc.to)
		}
	}
}

func TestParsePaymentStatus(t *testing.T) {
	status, err := ParsePaymentStatus("succeeded")
	if err != nil || status != PaymentStatusSucceeded {
		t.Fatalf("parse succeeded: %v %v", status, err)
	}
	if _, err := ParsePaymentStatus("settled"); err == nil {
		t.Fatal("unknown status should error")
	}
}

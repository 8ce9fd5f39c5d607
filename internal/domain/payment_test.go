package domain_test

import (
	"testing"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

func TestPaymentMethodNormalize(t *testing.T) {
	tests := []struct {
		in   domain.PaymentMethod
		want domain.PaymentMethod
	}{
		{in: "", want: domain.PaymentMethodCard},
		{in: "   ", want: domain.PaymentMethodCard},
		{in: "PAYPAL", want: "PAYPAL"},
		{in: " SBP ", want: "SBP"},
	}

	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

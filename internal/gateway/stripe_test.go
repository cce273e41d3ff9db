package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v82"

	"github.com/mmeshcher/masjid-donations/internal/model"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		name string
		pi   *stripe.PaymentIntent
		want model.PaymentStatus
	}{
		{
			name: "succeeded",
			pi:   &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusSucceeded},
			want: model.PaymentStatusSucceeded,
		},
		{
			name: "processing",
			pi:   &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusProcessing},
			want: model.PaymentStatusProcessing,
		},
		{
			name: "requires action",
			pi:   &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusRequiresAction},
			want: model.PaymentStatusProcessing,
		},
		{
			name: "awaiting first payment method",
			pi:   &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusRequiresPaymentMethod},
			want: model.PaymentStatusProcessing,
		},
		{
			name: "declined attempt",
			pi: &stripe.PaymentIntent{
				Status:           stripe.PaymentIntentStatusRequiresPaymentMethod,
				LastPaymentError: &stripe.Error{Msg: "Your card was declined."},
			},
			want: model.PaymentStatusFailed,
		},
		{
			name: "canceled",
			pi:   &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusCanceled},
			want: model.PaymentStatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapStatus(tt.pi))
		})
	}
}

func TestStatusResult(t *testing.T) {
	pi := &stripe.PaymentIntent{
		ID:             "pi_123",
		Status:         stripe.PaymentIntentStatusSucceeded,
		AmountReceived: 10330,
		Currency:       stripe.CurrencyUSD,
		Metadata:       map[string]string{"donation_type": "Zakat"},
		PaymentMethod: &stripe.PaymentMethod{
			Card: &stripe.PaymentMethodCard{
				Brand: stripe.PaymentMethodCardBrandVisa,
				Last4: "4242",
			},
		},
	}

	res := statusResult(pi)

	assert.Equal(t, "pi_123", res.Reference)
	assert.Equal(t, model.PaymentStatusSucceeded, res.Status)
	assert.Equal(t, int64(10330), res.AmountReceived)
	assert.Equal(t, "usd", res.Currency)
	assert.Equal(t, &model.PaymentMethod{Brand: "visa", Last4: "4242"}, res.PaymentMethod)
	assert.Equal(t, "Zakat", res.Metadata["donation_type"])
	assert.True(t, res.Final)
}

func TestStatusResult_Final(t *testing.T) {
	tests := []struct {
		name string
		pi   *stripe.PaymentIntent
		want bool
	}{
		{
			name: "declined attempt can be retried",
			pi: &stripe.PaymentIntent{
				Status:           stripe.PaymentIntentStatusRequiresPaymentMethod,
				LastPaymentError: &stripe.Error{Msg: "Your card was declined."},
			},
			want: false,
		},
		{
			name: "canceled",
			pi:   &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusCanceled},
			want: true,
		},
		{
			name: "processing",
			pi:   &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusProcessing},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusResult(tt.pi).Final)
		})
	}
}

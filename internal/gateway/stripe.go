// Package gateway предоставляет адаптер платёжного шлюза Stripe.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"

	"github.com/mmeshcher/masjid-donations/internal/model"
)

// IntentParams описывает платёжное намерение, которое нужно создать в шлюзе.
type IntentParams struct {
	Amount         int64
	Currency       string
	ReceiptEmail   string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

// Intent содержит идентификатор намерения и секрет для встроенного виджета оплаты.
type Intent struct {
	Reference    string
	ClientSecret string
}

// Stripe реализует работу с платёжными намерениями через API Stripe.
type Stripe struct {
	client        *stripe.Client
	webhookSecret string
}

// NewStripe создаёт адаптер с секретным ключом API и секретом подписи вебхуков.
func NewStripe(secretKey, webhookSecret string) *Stripe {
	return &Stripe{
		client:        stripe.NewClient(secretKey),
		webhookSecret: webhookSecret,
	}
}

// CreateIntent создаёт платёжное намерение на указанную сумму в центах.
func (s *Stripe) CreateIntent(ctx context.Context, p IntentParams) (*Intent, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(p.Amount),
		Currency: stripe.String(p.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if p.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(p.ReceiptEmail)
	}
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	pi, err := s.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", describe(err))
	}

	return &Intent{
		Reference:    pi.ID,
		ClientSecret: pi.ClientSecret,
	}, nil
}

// CancelIntent отменяет платёжное намерение, для которого не удалось сохранить запись.
func (s *Stripe) CancelIntent(ctx context.Context, reference string) error {
	_, err := s.client.V1PaymentIntents.Cancel(ctx, reference, &stripe.PaymentIntentCancelParams{})
	if err != nil {
		return fmt.Errorf("cancel payment intent %s: %w", reference, describe(err))
	}
	return nil
}

// GetPaymentStatus запрашивает текущее состояние платёжного намерения.
func (s *Stripe) GetPaymentStatus(ctx context.Context, reference string) (*model.PaymentStatusResult, error) {
	params := &stripe.PaymentIntentRetrieveParams{}
	params.AddExpand("payment_method")

	pi, err := s.client.V1PaymentIntents.Retrieve(ctx, reference, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve payment intent %s: %w", reference, describe(err))
	}

	return statusResult(pi), nil
}

func statusResult(pi *stripe.PaymentIntent) *model.PaymentStatusResult {
	res := &model.PaymentStatusResult{
		Reference:      pi.ID,
		Status:         MapStatus(pi),
		AmountReceived: pi.AmountReceived,
		Currency:       string(pi.Currency),
		Metadata:       pi.Metadata,
		Final:          pi.Status == stripe.PaymentIntentStatusSucceeded || pi.Status == stripe.PaymentIntentStatusCanceled,
	}

	if pi.PaymentMethod != nil && pi.PaymentMethod.Card != nil {
		res.PaymentMethod = &model.PaymentMethod{
			Brand: string(pi.PaymentMethod.Card.Brand),
			Last4: pi.PaymentMethod.Card.Last4,
		}
	}

	return res
}

// MapStatus сводит статусы Stripe к succeeded, processing или failed.
func MapStatus(pi *stripe.PaymentIntent) model.PaymentStatus {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return model.PaymentStatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return model.PaymentStatusFailed
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		// Намерение возвращается в requires_payment_method после отклонённой попытки.
		// Для клиента это failed, но намерение остаётся открытым для повторной оплаты.
		if pi.LastPaymentError != nil {
			return model.PaymentStatusFailed
		}
		return model.PaymentStatusProcessing
	case stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresCapture,
		stripe.PaymentIntentStatusRequiresConfirmation:
		return model.PaymentStatusProcessing
	default:
		return model.PaymentStatusProcessing
	}
}

func describe(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return fmt.Errorf("%s (%s): %w", stripeErr.Msg, stripeErr.Code, err)
	}
	return err
}

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/mmeshcher/masjid-donations/internal/model"
)

// ErrInvalidSignature возвращается, если подпись вебхука не прошла проверку.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ParseEvent проверяет подпись уведомления Stripe и приводит его к событию сервиса.
// Для событий, которые сервис не обрабатывает, возвращает nil без ошибки.
func (s *Stripe) ParseEvent(payload []byte, signature string) (*model.GatewayEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if event.Data == nil {
		return nil, nil
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}

		var kind model.GatewayEventKind
		switch event.Type {
		case "payment_intent.succeeded":
			kind = model.GatewayEventSucceeded
		case "payment_intent.payment_failed":
			kind = model.GatewayEventDeclined
		default:
			kind = model.GatewayEventFailed
		}

		return &model.GatewayEvent{
			ID:        event.ID,
			Kind:      kind,
			Reference: pi.ID,
		}, nil

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("decode charge: %w", err)
		}
		// Частичный возврат не меняет статус пожертвования.
		if !ch.Refunded || ch.PaymentIntent == nil {
			return nil, nil
		}

		return &model.GatewayEvent{
			ID:        event.ID,
			Kind:      model.GatewayEventRefunded,
			Reference: ch.PaymentIntent.ID,
		}, nil
	}

	return nil, nil
}

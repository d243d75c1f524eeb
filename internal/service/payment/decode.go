// Package payment переводит сигналы платёжных провайдеров в переходы заказа.
package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// Ключи metadata PaymentIntent, по которым находится заказ.
const (
	MetadataOrderID     = "order_id"
	MetadataOrderNumber = "order_number"
)

const (
	stripeIntentSucceeded     stripe.EventType = "payment_intent.succeeded"
	stripeIntentCanceled      stripe.EventType = "payment_intent.canceled"
	stripeIntentPaymentFailed stripe.EventType = "payment_intent.payment_failed"
)

// ErrUnsupportedEvent — событие провайдера не относится к оплате заказа.
var ErrUnsupportedEvent = errors.New("unsupported payment event")

// nativeEvent - собственный формат события оплаты.
type nativeEvent struct {
	EventID          string `json:"event_id"`
	OrderID          string `json:"order_id"`
	OrderNumber      string `json:"order_number"`
	PaymentReference string `json:"payment_reference"`
	Paid             bool   `json:"paid"`
	Closed           bool   `json:"closed"`
}

// Decode разбирает событие: собственный JSON-конверт или webhook-событие Stripe
// (объект "event" с типом payment_intent.*).
func Decode(raw []byte) (domain.PaymentEvent, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return domain.PaymentEvent{}, fmt.Errorf("decode payment event: empty payload")
	}

	var probe struct {
		Object string `json:"object"`
		Type   string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("decode payment event: %w", err)
	}

	if probe.Object == "event" {
		var event stripe.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			return domain.PaymentEvent{}, fmt.Errorf("decode stripe event: %w", err)
		}
		return FromStripe(event)
	}

	var native nativeEvent
	if err := json.Unmarshal(raw, &native); err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("decode payment event: %w", err)
	}
	event := domain.PaymentEvent{
		EventID:          strings.TrimSpace(native.EventID),
		OrderID:          strings.TrimSpace(native.OrderID),
		OrderNumber:      strings.TrimSpace(native.OrderNumber),
		PaymentReference: native.PaymentReference,
		Paid:             native.Paid,
		Closed:           native.Closed,
		Source:           domain.PaymentSourceNative,
	}
	return event, event.Validate()
}

// DecodeStripeWebhook проверяет подпись Stripe-Signature и разбирает событие.
func DecodeStripeWebhook(payload []byte, signature, secret string) (domain.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("verify stripe webhook: %w", err)
	}
	return FromStripe(event)
}

// FromStripe переводит событие payment_intent.* в событие оплаты заказа.
func FromStripe(event stripe.Event) (domain.PaymentEvent, error) {
	var paid, closed bool
	switch event.Type {
	case stripeIntentSucceeded:
		paid = true
	case stripeIntentCanceled, stripeIntentPaymentFailed:
		closed = true
	default:
		return domain.PaymentEvent{}, fmt.Errorf("%w: %s", ErrUnsupportedEvent, event.Type)
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return domain.PaymentEvent{}, fmt.Errorf("stripe event %s has no data", event.ID)
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("decode payment intent: %w", err)
	}

	out := domain.PaymentEvent{
		EventID:          event.ID,
		OrderID:          strings.TrimSpace(intent.Metadata[MetadataOrderID]),
		OrderNumber:      strings.TrimSpace(intent.Metadata[MetadataOrderNumber]),
		PaymentReference: intent.ID,
		Paid:             paid,
		Closed:           closed,
		Source:           domain.PaymentSourceStripe,
	}
	return out, out.Validate()
}

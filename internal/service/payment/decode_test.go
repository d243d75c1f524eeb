package payment_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/service/payment"
)

const stripeSucceeded = `{
  "id": "evt_1",
  "object": "event",
  "type": "payment_intent.succeeded",
  "data": {
    "object": {
      "id": "pi_42",
      "object": "payment_intent",
      "metadata": {"order_id": "order-1", "order_number": "WS20260401001"}
    }
  }
}`

func TestDecode_Native(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    domain.PaymentEvent
		wantErr error
	}{
		{
			name: "paid by id",
			raw:  `{"event_id":"e1","order_id":" order-1 ","payment_reference":"ref","paid":true}`,
			want: domain.PaymentEvent{EventID: "e1", OrderID: "order-1", PaymentReference: "ref", Paid: true, Source: domain.PaymentSourceNative},
		},
		{
			name: "closed by number",
			raw:  `{"order_number":"WS20260401001","closed":true}`,
			want: domain.PaymentEvent{OrderNumber: "WS20260401001", Closed: true, Source: domain.PaymentSourceNative},
		},
		{
			name:    "no order reference",
			raw:     `{"event_id":"e1","paid":true}`,
			wantErr: domain.ErrOrderIDRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := payment.Decode([]byte(tt.raw))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, raw := range []string{"", "   ", "{", "[1,2]"} {
		if _, err := payment.Decode([]byte(raw)); err == nil {
			t.Fatalf("Decode(%q) expected error", raw)
		}
	}
}

func TestDecode_StripeEvent(t *testing.T) {
	got, err := payment.Decode([]byte(stripeSucceeded))
	require.NoError(t, err)

	assert.Equal(t, "evt_1", got.EventID)
	assert.Equal(t, "order-1", got.OrderID)
	assert.Equal(t, "WS20260401001", got.OrderNumber)
	assert.Equal(t, "pi_42", got.PaymentReference)
	assert.True(t, got.Paid)
	assert.False(t, got.Closed)
	assert.Equal(t, domain.PaymentSourceStripe, got.Source)
	assert.Equal(t, "stripe:evt_1", got.DedupKey())
}

func TestDecode_StripeCanceled(t *testing.T) {
	raw := `{"id":"evt_2","object":"event","type":"payment_intent.canceled",
	  "data":{"object":{"id":"pi_7","object":"payment_intent","metadata":{"order_number":"WS20260401002"}}}}`

	got, err := payment.Decode([]byte(raw))
	require.NoError(t, err)
	assert.True(t, got.Closed)
	assert.False(t, got.Paid)
	assert.Equal(t, "WS20260401002", got.OrderNumber)
}

func TestDecode_StripeUnsupported(t *testing.T) {
	raw := `{"id":"evt_3","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`

	_, err := payment.Decode([]byte(raw))
	if !errors.Is(err, payment.ErrUnsupportedEvent) {
		t.Fatalf("Decode() error = %v, want ErrUnsupportedEvent", err)
	}
}

func TestDecodeStripeWebhook(t *testing.T) {
	const secret = "whsec_test"
	payload := []byte(stripeSucceeded)

	sign := func(secret string, ts time.Time) string {
		mac := hmac.New(sha256.New, []byte(secret))
		fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
		return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
	}

	got, err := payment.DecodeStripeWebhook(payload, sign(secret, time.Now()), secret)
	require.NoError(t, err)
	assert.Equal(t, "order-1", got.OrderID)
	assert.True(t, got.Paid)

	_, err = payment.DecodeStripeWebhook(payload, sign("whsec_other", time.Now()), secret)
	assert.Error(t, err)

	_, err = payment.DecodeStripeWebhook(payload, sign(secret, time.Now().Add(-time.Hour)), secret)
	assert.Error(t, err, "stale signatures are rejected")
}

package domain

import "strings"

// PaymentSource — откуда пришло событие об оплате.
type PaymentSource string

const (
	PaymentSourceNative PaymentSource = "native"
	PaymentSourceStripe PaymentSource = "stripe"
)

// PaymentEvent — сигнал платёжного провайдера по заказу. Движок читает только
// флаги paid/closed.
type PaymentEvent struct {
	EventID          string
	OrderID          string
	OrderNumber      string
	PaymentReference string
	Paid             bool
	Closed           bool
	Source           PaymentSource
}

// Validate проверяет, что событие ссылается на заказ.
func (e PaymentEvent) Validate() error {
	if strings.TrimSpace(e.OrderID) == "" && strings.TrimSpace(e.OrderNumber) == "" {
		return ErrOrderIDRequired
	}
	return nil
}

// DedupKey — ключ идемпотентности обработки события.
func (e PaymentEvent) DedupKey() string {
	if e.EventID == "" {
		return ""
	}
	return string(e.Source) + ":" + e.EventID
}

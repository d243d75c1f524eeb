package domain

// NotificationKind — тип уведомления о смене состояния заказа.
type NotificationKind string

const (
	NotificationOrderPaid     NotificationKind = "order_paid"
	NotificationOrderFailed   NotificationKind = "order_failed"
	NotificationOrderRejected NotificationKind = "order_rejected"
	NotificationOrderShipped  NotificationKind = "order_shipped"
)

// NotificationKindFor возвращает тип уведомления для состояния; ok=false, если
// состояние не уведомляется.
func NotificationKindFor(state OrderState) (NotificationKind, bool) {
	switch state {
	case OrderStatePaid:
		return NotificationOrderPaid, true
	case OrderStateFailed:
		return NotificationOrderFailed, true
	case OrderStateRejected:
		return NotificationOrderRejected, true
	case OrderStateShipped:
		return NotificationOrderShipped, true
	default:
		return "", false
	}
}

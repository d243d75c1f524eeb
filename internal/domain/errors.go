package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего номера заказа.
	ErrOrderNumberRequired = errors.New("order number is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Неизвестное состояние заказа.
	ErrUnknownState = errors.New("unknown order state")
	// Ошибка отсутствующего идентификатора заказа в событиях оплаты.
	ErrOrderIDRequired = errors.New("order_id is required")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	ErrCartNotFound         = errors.New("cart not found")
	ErrCartVersionConflict  = errors.New("cart version conflict")
	ErrCartItemNotFound     = errors.New("cart item not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrVariationNotFound    = errors.New("variation not found")
	ErrCustomerNotFound     = errors.New("customer not found")
	ErrDiscountNotFound     = errors.New("discount not found")
	ErrStateChangeNotFound  = errors.New("state change not found")

	// ErrVariationRequired - у товара есть вариации, а вариация не выбрана.
	ErrVariationRequired = errors.New("variation is required for this product")
	// ErrVariationMismatch - вариация принадлежит другому товару.
	ErrVariationMismatch = errors.New("variation does not belong to product")
	// ErrUnitInactive - товар или вариация сняты с продажи.
	ErrUnitInactive = errors.New("unit is not available for sale")
	// ErrQuantityInvalid - количество в корзине должно быть положительным.
	ErrQuantityInvalid = errors.New("quantity must be greater than zero")
	// ErrInsufficientStock - условное списание в хранилище не прошло.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrDiscountUseLimitReached - гарантированный инкремент used упёрся в лимит.
	ErrDiscountUseLimitReached = errors.New("discount use limit reached")
	// ErrNoteRequired - повторная установка того же состояния без комментария.
	ErrNoteRequired = errors.New("note is required to re-assign the same state")
	// ErrOrderNumberTaken - хранилище уже содержит заказ с таким номером.
	ErrOrderNumberTaken = errors.New("order number already taken")
	// ErrInvoiceNumberTaken - номер счёта уже выдан другому заказу.
	ErrInvoiceNumberTaken = errors.New("invoice number already taken")

	// ErrOutboxPublish - ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrEventKeyRequired - у входящего события нет ключа идемпотентности.
	ErrEventKeyRequired = errors.New("event key is required")

	// Сентинелы для errors.Is по типизированным ошибкам ниже.
	ErrStockUnavailable            = errors.New("stock unavailable")
	ErrAlreadyConfirmed            = errors.New("order already confirmed")
	ErrInvalidCoupon               = errors.New("invalid coupon")
	ErrNoEligibleShippingMethod    = errors.New("no eligible shipping method")
	ErrPreconditionFailed          = errors.New("precondition failed")
	ErrConcurrentNumberingConflict = errors.New("concurrent numbering conflict")
	ErrInvalidTransition           = errors.New("invalid order state transition")
	ErrDiscountExhausted           = errors.New("discount exhausted")
)

// StockUnavailableError — запрошено больше, чем есть на складе.
type StockUnavailableError struct {
	Unit      UnitRef
	Requested int
	Available int
}

func (e *StockUnavailableError) Error() string {
	return fmt.Sprintf("stock unavailable for %s: requested %d, available %d", e.Unit, e.Requested, e.Available)
}

func (e *StockUnavailableError) Is(target error) bool { return target == ErrStockUnavailable }

// AlreadyConfirmedError — повторное подтверждение заказа. Это ошибка вызывающего
// кода, а не пользователя.
type AlreadyConfirmedError struct {
	OrderID       string
	InvoiceNumber int64
}

func (e *AlreadyConfirmedError) Error() string {
	return fmt.Sprintf("order %s already confirmed with invoice %d", e.OrderID, e.InvoiceNumber)
}

func (e *AlreadyConfirmedError) Is(target error) bool { return target == ErrAlreadyConfirmed }

// InvalidCouponError — купон не найден, истёк или исчерпан.
type InvalidCouponError struct {
	Code string
}

func (e *InvalidCouponError) Error() string {
	return fmt.Sprintf("invalid coupon %q", e.Code)
}

func (e *InvalidCouponError) Is(target error) bool { return target == ErrInvalidCoupon }

// NoEligibleShippingMethodError — в каталоге нет доставки для направления.
type NoEligibleShippingMethodError struct {
	Destination string
}

func (e *NoEligibleShippingMethodError) Error() string {
	return fmt.Sprintf("no eligible shipping method for destination %q", e.Destination)
}

func (e *NoEligibleShippingMethodError) Is(target error) bool {
	return target == ErrNoEligibleShippingMethod
}

// PreconditionFailedError — корзина не готова к оформлению.
type PreconditionFailedError struct {
	Reason string
}

func (e *PreconditionFailedError) Error() string {
	return "precondition failed: " + e.Reason
}

func (e *PreconditionFailedError) Is(target error) bool { return target == ErrPreconditionFailed }

// ConcurrentNumberingConflictError — номер уже занят параллельной записью,
// операцию можно повторить целиком.
type ConcurrentNumberingConflictError struct {
	Sequence string
	Number   string
	Err      error
}

func (e *ConcurrentNumberingConflictError) Error() string {
	return fmt.Sprintf("numbering conflict on %s (%s)", e.Sequence, e.Number)
}

func (e *ConcurrentNumberingConflictError) Is(target error) bool {
	return target == ErrConcurrentNumberingConflict
}

func (e *ConcurrentNumberingConflictError) Unwrap() error { return e.Err }

// InvalidTransitionError — переход не разрешён таблицей состояний.
type InvalidTransitionError struct {
	OrderID string
	From    OrderState
	To      OrderState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s: transition %s -> %s is not allowed", e.OrderID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// DiscountExhaustedError — между update и confirm лимит скидки выбран другими
// заказами. Заказ нужно пересчитать.
type DiscountExhaustedError struct {
	DiscountIDs []string
}

func (e *DiscountExhaustedError) Error() string {
	return "discount use limit reached: " + strings.Join(e.DiscountIDs, ",")
}

func (e *DiscountExhaustedError) Is(target error) bool { return target == ErrDiscountExhausted }

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict) || errors.Is(err, ErrCartVersionConflict)
}

// IsNotFound объединяет все "не найдено" сущностей.
func IsNotFound(err error) bool {
	switch {
	case errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrCartNotFound),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrVariationNotFound),
		errors.Is(err, ErrCustomerNotFound),
		errors.Is(err, ErrDiscountNotFound):
		return true
	default:
		return false
	}
}

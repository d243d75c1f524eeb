package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// FromCart строит новый заказ из корзины, не сохраняя его. Позиции - снимки
// каталога на момент оформления, цена берётся из корзины.
func (s *Service) FromCart(ctx context.Context, cartID string) (order domain.Order, err error) {
	_, span := s.startSpan(ctx, "order.FromCart", "")
	defer func() { endSpan(span, err) }()

	cart, err := s.carts.Get(cartID)
	if err != nil {
		return domain.Order{}, err
	}
	if cart.CustomerID == "" {
		return domain.Order{}, &domain.PreconditionFailedError{Reason: "cart has no customer"}
	}
	if len(cart.Items) == 0 {
		return domain.Order{}, &domain.PreconditionFailedError{Reason: "cart is empty"}
	}

	customer, err := s.customers.Get(cart.CustomerID)
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			return domain.Order{}, &domain.PreconditionFailedError{Reason: "customer not found"}
		}
		return domain.Order{}, err
	}
	address, ok := customer.DefaultAddress()
	if !ok {
		return domain.Order{}, &domain.PreconditionFailedError{Reason: "customer has no usable address"}
	}

	items := make([]domain.OrderItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		snapshot, err := s.snapshot(item)
		if err != nil {
			return domain.Order{}, err
		}
		items = append(items, snapshot)
	}

	now := s.clock.Now()
	number, err := s.numbers.NextOrderNumber(now)
	if err != nil {
		return domain.Order{}, err
	}

	order = domain.Order{
		ID:              uuid.NewString(),
		CartID:          cart.ID,
		CustomerID:      customer.ID,
		ShippingAddress: address,
		OrderNumber:     number,
		CouponCode:      cart.CouponCode,
		Discount:        decimal.Zero,
		ShippingCost:    decimal.Zero,
		State:           domain.OrderStateNew,
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	s.logger.WithFields(log.Fields{
		"cart_id":      cart.ID,
		"order_number": number,
		"items":        len(items),
	}).Debug("order built from cart")
	return order, nil
}

func (s *Service) snapshot(item domain.CartItem) (domain.OrderItem, error) {
	product, err := s.catalog.GetProduct(item.ProductID)
	if err != nil {
		return domain.OrderItem{}, fmt.Errorf("snapshot %s: %w", item.Ref(), err)
	}

	out := domain.OrderItem{
		ID:                 uuid.NewString(),
		ProductID:          product.ID,
		VariationID:        item.VariationID,
		ProductSlug:        product.Slug,
		ProductName:        product.Name,
		ProductDescription: product.Description,
		ArticleNumber:      product.ArticleNumber(s.articleWidth),
		CategoryIDs:        append([]string(nil), product.CategoryIDs...),
		Quantity:           item.Quantity,
		PiecePrice:         item.PiecePrice,
	}
	if item.VariationID != "" {
		variation, err := s.catalog.GetVariation(item.VariationID)
		if err != nil {
			return domain.OrderItem{}, fmt.Errorf("snapshot %s: %w", item.Ref(), err)
		}
		out.VariationName = variation.Name
	}
	return out, nil
}

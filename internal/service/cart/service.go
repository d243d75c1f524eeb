// Package cart управляет корзинами покупателей до оформления заказа.
package cart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/service/discount"
	"github.com/vladislavdragonenkov/shopcore/internal/service/pricing"
	"github.com/vladislavdragonenkov/shopcore/internal/service/stock"
)

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock подменяет источник времени.
func WithClock(clock domain.Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// Service — операции над корзиной. Каждое изменение сохраняется с проверкой версии.
type Service struct {
	carts     domain.CartRepository
	catalog   domain.CatalogRepository
	customers domain.CustomerRepository
	ledger    *stock.Ledger
	discounts *discount.Resolver
	pricing   *pricing.Calculator
	clock     domain.Clock
	logger    *log.Entry
}

// NewService создаёт сервис корзин.
func NewService(
	carts domain.CartRepository,
	catalog domain.CatalogRepository,
	customers domain.CustomerRepository,
	ledger *stock.Ledger,
	discounts *discount.Resolver,
	calc *pricing.Calculator,
	opts ...Option,
) *Service {
	s := &Service{
		carts:     carts,
		catalog:   catalog,
		customers: customers,
		ledger:    ledger,
		discounts: discounts,
		pricing:   calc,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = domain.SystemClock{}
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "cart-service")
	}
	return s
}

// Create создаёт пустую корзину; customerID может быть пустым.
func (s *Service) Create(customerID string) (domain.Cart, error) {
	if customerID != "" {
		if _, err := s.customers.Get(customerID); err != nil {
			return domain.Cart{}, err
		}
	}

	now := s.clock.Now()
	cart := domain.Cart{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.carts.Create(cart); err != nil {
		return domain.Cart{}, fmt.Errorf("create cart: %w", err)
	}
	s.logger.WithField("cart_id", cart.ID).Debug("cart created")
	return cart, nil
}

func (s *Service) Get(cartID string) (domain.Cart, error) {
	return s.carts.Get(cartID)
}

// AddItem добавляет qty штук. Наличие проверяется с учётом того, что уже лежит
// в корзине. Цена фиксируется при первом добавлении строки.
func (s *Service) AddItem(cartID, productID, variationID string, qty int) (domain.Cart, error) {
	if qty <= 0 {
		return domain.Cart{}, domain.ErrQuantityInvalid
	}
	unit, err := s.ledger.Resolve(productID, variationID)
	if err != nil {
		return domain.Cart{}, err
	}

	return s.mutate(cartID, func(cart *domain.Cart) error {
		if err := s.ledger.CheckAvailable(unit, cart.QuantityOf(unit.Ref())+qty); err != nil {
			return err
		}
		if idx := cart.Find(productID, variationID); idx >= 0 {
			cart.Items[idx].Quantity += qty
			return nil
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ID:          uuid.NewString(),
			ProductID:   productID,
			VariationID: variationID,
			Quantity:    qty,
			PiecePrice:  domain.RoundMoney(unit.UnitPrice()),
			AddedAt:     s.clock.Now(),
		})
		return nil
	})
}

// SetQuantity заменяет количество в строке.
func (s *Service) SetQuantity(cartID, productID, variationID string, qty int) (domain.Cart, error) {
	if qty <= 0 {
		return domain.Cart{}, domain.ErrQuantityInvalid
	}
	unit, err := s.ledger.Resolve(productID, variationID)
	if err != nil {
		return domain.Cart{}, err
	}

	return s.mutate(cartID, func(cart *domain.Cart) error {
		idx := cart.Find(productID, variationID)
		if idx < 0 {
			return domain.ErrCartItemNotFound
		}
		others := cart.QuantityOf(unit.Ref()) - cart.Items[idx].Quantity
		if err := s.ledger.CheckAvailable(unit, others+qty); err != nil {
			return err
		}
		cart.Items[idx].Quantity = qty
		return nil
	})
}

// RemoveItem удаляет строку; false, если такой строки не было.
func (s *Service) RemoveItem(cartID, productID, variationID string) (bool, error) {
	_, err := s.mutate(cartID, func(cart *domain.Cart) error {
		idx := cart.Find(productID, variationID)
		if idx < 0 {
			return errNothingChanged
		}
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		return nil
	})
	if errors.Is(err, errNothingChanged) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ApplyCoupon сохраняет код купона, если он даёт скидку для текущего состава корзины.
func (s *Service) ApplyCoupon(cartID, code string) (domain.Cart, error) {
	code = strings.TrimSpace(code)
	return s.mutate(cartID, func(cart *domain.Cart) error {
		basket, err := s.basket(*cart)
		if err != nil {
			return err
		}
		if err := s.discounts.ValidateCoupon(basket, code); err != nil {
			s.logger.WithFields(log.Fields{"cart_id": cartID, "coupon": code}).Info("coupon rejected")
			return err
		}
		cart.CouponCode = code
		return nil
	})
}

func (s *Service) ClearCoupon(cartID string) (domain.Cart, error) {
	return s.mutate(cartID, func(cart *domain.Cart) error {
		cart.CouponCode = ""
		return nil
	})
}

// AssignCustomer привязывает корзину к существующему клиенту.
func (s *Service) AssignCustomer(cartID, customerID string) (domain.Cart, error) {
	if strings.TrimSpace(customerID) == "" {
		return domain.Cart{}, domain.ErrCustomerRequired
	}
	if _, err := s.customers.Get(customerID); err != nil {
		return domain.Cart{}, err
	}
	return s.mutate(cartID, func(cart *domain.Cart) error {
		cart.CustomerID = customerID
		return nil
	})
}

func (s *Service) TotalItems(cartID string) (int, error) {
	cart, err := s.carts.Get(cartID)
	if err != nil {
		return 0, err
	}
	return cart.TotalItems(), nil
}

// Preview считает цену корзины. Пустая страна - без доставки.
func (s *Service) Preview(cartID, country string) (pricing.Quote, error) {
	cart, err := s.carts.Get(cartID)
	if err != nil {
		return pricing.Quote{}, err
	}
	basket, err := s.basket(cart)
	if err != nil {
		return pricing.Quote{}, err
	}
	basket.Country = country
	return s.pricing.Quote(basket, country)
}

func (s *Service) Delete(cartID string) error {
	return s.carts.Delete(cartID)
}

var errNothingChanged = errors.New("cart: nothing changed")

func (s *Service) mutate(cartID string, fn func(cart *domain.Cart) error) (domain.Cart, error) {
	cart, err := s.carts.Get(cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	if err := fn(&cart); err != nil {
		return domain.Cart{}, err
	}
	cart.UpdatedAt = s.clock.Now()
	if err := s.carts.Save(cart); err != nil {
		return domain.Cart{}, fmt.Errorf("save cart: %w", err)
	}
	cart.Version++
	return cart, nil
}

// basket переводит корзину в строки расчёта, подтягивая категории из каталога.
func (s *Service) basket(cart domain.Cart) (domain.Basket, error) {
	lines := make([]domain.LineItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		product, err := s.catalog.GetProduct(item.ProductID)
		if err != nil {
			return domain.Basket{}, err
		}
		lines = append(lines, domain.LineItem{
			ProductID:   item.ProductID,
			VariationID: item.VariationID,
			CategoryIDs: product.CategoryIDs,
			Quantity:    item.Quantity,
			PiecePrice:  item.PiecePrice,
		})
	}
	return domain.Basket{Lines: lines, CouponCode: cart.CouponCode}, nil
}

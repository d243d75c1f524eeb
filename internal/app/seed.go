package app

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/service/discount"
)

// Seed — начальный каталог магазина в YAML.
type Seed struct {
	Categories      []seedCategory       `yaml:"categories"`
	Products        []seedProduct        `yaml:"products"`
	Customers       []seedCustomer       `yaml:"customers"`
	ShippingMethods []seedShippingMethod `yaml:"shipping_methods"`
	Discounts       []seedDiscount       `yaml:"discounts"`
}

type seedCategory struct {
	ID   string `yaml:"id"`
	Slug string `yaml:"slug"`
	Name string `yaml:"name"`
}

type seedProduct struct {
	ID          string          `yaml:"id"`
	Slug        string          `yaml:"slug"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Number      int             `yaml:"number"`
	Price       string          `yaml:"price"`
	Stock       *int            `yaml:"stock"`
	Active      *bool           `yaml:"active"`
	Categories  []string        `yaml:"categories"`
	Variations  []seedVariation `yaml:"variations"`
}

type seedVariation struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Price  string `yaml:"price"`
	Stock  *int   `yaml:"stock"`
	Active *bool  `yaml:"active"`
}

type seedCustomer struct {
	ID             string        `yaml:"id"`
	Email          string        `yaml:"email"`
	FullName       string        `yaml:"full_name"`
	Language       string        `yaml:"language"`
	DefaultAddress string        `yaml:"default_address"`
	Addresses      []seedAddress `yaml:"addresses"`
}

type seedAddress struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Street     string `yaml:"street"`
	PostalCode string `yaml:"postal_code"`
	City       string `yaml:"city"`
	Country    string `yaml:"country"`
}

type seedShippingMethod struct {
	ID                 string   `yaml:"id"`
	Name               string   `yaml:"name"`
	Cost               string   `yaml:"cost"`
	Countries          []string `yaml:"countries"`
	MinimumOrderAmount string   `yaml:"minimum_order_amount"`
	Position           int      `yaml:"position"`
}

type seedDiscount struct {
	ID              string     `yaml:"id"`
	Name            string     `yaml:"name"`
	OrderAmount     string     `yaml:"order_amount"`
	OrderPercentage string     `yaml:"order_percentage"`
	ItemAmount      string     `yaml:"item_amount"`
	ItemPercentage  string     `yaml:"item_percentage"`
	Scope           string     `yaml:"scope"`
	Products        []string   `yaml:"products"`
	Categories      []string   `yaml:"categories"`
	UseCoupon       bool       `yaml:"use_coupon"`
	CouponCode      string     `yaml:"coupon_code"`
	UseLimit        *int       `yaml:"use_limit"`
	ValidFrom       *time.Time `yaml:"valid_from"`
	ValidUntil      *time.Time `yaml:"valid_until"`
}

// LoadSeed читает seed-файл.
func LoadSeed(path string) (Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(raw)
}

// ParseSeed разбирает YAML; неизвестные поля считаются ошибкой.
func ParseSeed(raw []byte) (Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	return seed, nil
}

// Apply записывает seed в хранилища. Повторный запуск перезаписывает каталог;
// скидки и способы доставки добавляются только при первом запуске.
func (s Seed) Apply(repos Repositories, resolver *discount.Resolver) error {
	for _, c := range s.Categories {
		if err := repos.Catalog.UpsertCategory(domain.Category{ID: c.ID, Slug: c.Slug, Name: c.Name}); err != nil {
			return fmt.Errorf("seed category %s: %w", c.ID, err)
		}
	}

	for _, p := range s.Products {
		product, variations, err := p.toDomain()
		if err != nil {
			return err
		}
		if err := repos.Catalog.UpsertProduct(product); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
		for _, v := range variations {
			if err := repos.Catalog.UpsertVariation(v); err != nil {
				return fmt.Errorf("seed variation %s: %w", v.ID, err)
			}
		}
	}

	for _, c := range s.Customers {
		if err := repos.Customers.Upsert(c.toDomain()); err != nil {
			return fmt.Errorf("seed customer %s: %w", c.ID, err)
		}
	}

	existingMethods, err := repos.Shipping.List()
	if err != nil {
		return fmt.Errorf("list shipping methods: %w", err)
	}
	if len(existingMethods) == 0 {
		for _, m := range s.ShippingMethods {
			method, err := m.toDomain()
			if err != nil {
				return err
			}
			if err := repos.Shipping.Create(method); err != nil {
				return fmt.Errorf("seed shipping method %s: %w", m.ID, err)
			}
		}
	}

	for _, d := range s.Discounts {
		if _, err := repos.Discounts.Get(d.ID); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrDiscountNotFound) {
			return fmt.Errorf("get discount %s: %w", d.ID, err)
		}
		rule, err := d.toDomain()
		if err != nil {
			return err
		}
		if resolver != nil {
			rule = resolver.Prepare(rule)
		}
		if err := repos.Discounts.Create(rule); err != nil {
			return fmt.Errorf("seed discount %s: %w", d.ID, err)
		}
	}
	return nil
}

func (p seedProduct) toDomain() (domain.Product, []domain.Variation, error) {
	price, err := parseMoney(p.Price)
	if err != nil {
		return domain.Product{}, nil, fmt.Errorf("product %s price: %w", p.ID, err)
	}
	product := domain.Product{
		ID:          p.ID,
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		Number:      p.Number,
		Price:       price,
		Stock:       p.Stock,
		Active:      boolOr(p.Active, true),
		CategoryIDs: p.Categories,
	}

	variations := make([]domain.Variation, 0, len(p.Variations))
	for _, v := range p.Variations {
		variation := domain.Variation{
			ID:        v.ID,
			ProductID: p.ID,
			Name:      v.Name,
			Stock:     v.Stock,
			Active:    boolOr(v.Active, true),
		}
		if variation.Price, err = parseOptionalMoney(v.Price); err != nil {
			return domain.Product{}, nil, fmt.Errorf("variation %s price: %w", v.ID, err)
		}
		variations = append(variations, variation)
	}
	return product, variations, nil
}

func (c seedCustomer) toDomain() domain.Customer {
	customer := domain.Customer{
		ID:               c.ID,
		Email:            c.Email,
		FullName:         c.FullName,
		Language:         c.Language,
		DefaultAddressID: c.DefaultAddress,
	}
	for _, a := range c.Addresses {
		customer.Addresses = append(customer.Addresses, domain.Address(a))
	}
	return customer
}

func (m seedShippingMethod) toDomain() (domain.ShippingMethod, error) {
	cost, err := parseMoney(m.Cost)
	if err != nil {
		return domain.ShippingMethod{}, fmt.Errorf("shipping method %s cost: %w", m.ID, err)
	}
	minimum, err := parseOptionalMoney(m.MinimumOrderAmount)
	if err != nil {
		return domain.ShippingMethod{}, fmt.Errorf("shipping method %s minimum: %w", m.ID, err)
	}
	return domain.ShippingMethod{
		ID:                 m.ID,
		Name:               m.Name,
		OrderCost:          cost,
		Countries:          m.Countries,
		MinimumOrderAmount: minimum,
		Position:           m.Position,
	}, nil
}

func (d seedDiscount) toDomain() (domain.Discount, error) {
	rule := domain.Discount{
		ID:          d.ID,
		Name:        d.Name,
		Scope:       domain.DiscountScope(d.Scope),
		ProductIDs:  d.Products,
		CategoryIDs: d.Categories,
		UseCoupon:   d.UseCoupon,
		CouponCode:  d.CouponCode,
		UseLimit:    d.UseLimit,
		ValidFrom:   d.ValidFrom,
		ValidUntil:  d.ValidUntil,
	}
	fields := []struct {
		name string
		raw  string
		dst  **decimal.Decimal
	}{
		{"order_amount", d.OrderAmount, &rule.OrderAmount},
		{"order_percentage", d.OrderPercentage, &rule.OrderPercentage},
		{"item_amount", d.ItemAmount, &rule.ItemAmount},
		{"item_percentage", d.ItemPercentage, &rule.ItemPercentage},
	}
	for _, f := range fields {
		v, err := parseOptionalMoney(f.raw)
		if err != nil {
			return domain.Discount{}, fmt.Errorf("discount %s %s: %w", d.ID, f.name, err)
		}
		*f.dst = v
	}
	return rule, nil
}

func parseMoney(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func parseOptionalMoney(raw string) (*decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v, err := parseMoney(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

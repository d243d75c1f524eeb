package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// UnitRef однозначно адресует продаваемую единицу: товар или его вариацию.
type UnitRef struct {
	ProductID   string
	VariationID string
}

// Key возвращает строковый ключ единицы для map и логов.
func (u UnitRef) Key() string {
	if u.VariationID == "" {
		return u.ProductID
	}
	return u.ProductID + "/" + u.VariationID
}

func (u UnitRef) String() string {
	return u.Key()
}

// Stockable — всё, у чего есть складской остаток.
type Stockable interface {
	Ref() UnitRef
	// StockLevel возвращает остаток; nil означает неограниченный запас.
	StockLevel() *int
	IsActive() bool
}

// Priced — всё, что имеет цену за штуку.
type Priced interface {
	UnitPrice() decimal.Decimal
}

// Product описывает товар каталога.
type Product struct {
	ID          string
	Slug        string
	Name        string
	Description string
	// Number - артикул, форматируется с заданной шириной поля.
	Number      int
	Price       decimal.Decimal
	Stock       *int
	Active      bool
	CategoryIDs []string
}

func (p Product) Ref() UnitRef { return UnitRef{ProductID: p.ID} }
func (p Product) StockLevel() *int { return p.Stock }
func (p Product) IsActive() bool { return p.Active }
func (p Product) UnitPrice() decimal.Decimal { return p.Price }

// ArticleNumber форматирует артикул с ведущими нулями.
func (p Product) ArticleNumber(width int) string {
	if width <= 0 {
		return fmt.Sprintf("%d", p.Number)
	}
	return fmt.Sprintf("%0*d", width, p.Number)
}

// InCategory проверяет принадлежность товара хотя бы одной категории из набора.
func (p Product) InCategory(categoryIDs []string) bool {
	return intersects(p.CategoryIDs, categoryIDs)
}

// Variation — вариант товара (размер, цвет). Перекрывает остаток и цену товара.
type Variation struct {
	ID        string
	ProductID string
	Name      string
	// Price - nil означает цену родительского товара.
	Price  *decimal.Decimal
	Stock  *int
	Active bool
}

func (v Variation) Ref() UnitRef { return UnitRef{ProductID: v.ProductID, VariationID: v.ID} }
func (v Variation) StockLevel() *int { return v.Stock }
func (v Variation) IsActive() bool { return v.Active }

// PriceFor возвращает цену вариации с учётом цены товара.
func (v Variation) PriceFor(product Product) decimal.Decimal {
	if v.Price != nil {
		return *v.Price
	}
	return product.Price
}

// Category — категория каталога.
type Category struct {
	ID   string
	Slug string
	Name string
}

// SellableUnit связывает товар с опциональной вариацией.
type SellableUnit struct {
	Product   Product
	Variation *Variation
}

func (u SellableUnit) Ref() UnitRef {
	if u.Variation != nil {
		return u.Variation.Ref()
	}
	return u.Product.Ref()
}

// StockLevel: при наличии вариации складской остаток товара игнорируется.
func (u SellableUnit) StockLevel() *int {
	if u.Variation != nil {
		return u.Variation.Stock
	}
	return u.Product.Stock
}

func (u SellableUnit) IsActive() bool {
	if u.Variation != nil {
		return u.Product.Active && u.Variation.Active
	}
	return u.Product.Active
}

func (u SellableUnit) UnitPrice() decimal.Decimal {
	if u.Variation != nil {
		return u.Variation.PriceFor(u.Product)
	}
	return u.Product.Price
}

var (
	_ Stockable = Product{}
	_ Stockable = Variation{}
	_ Stockable = SellableUnit{}
	_ Priced    = SellableUnit{}
)

// IntPtr упрощает литералы остатков.
func IntPtr(v int) *int {
	return &v
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}
	for _, id := range a {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

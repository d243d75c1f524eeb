package cart_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/service/cart"
	"github.com/vladislavdragonenkov/shopcore/internal/service/discount"
	"github.com/vladislavdragonenkov/shopcore/internal/service/pricing"
	"github.com/vladislavdragonenkov/shopcore/internal/service/shipping"
	"github.com/vladislavdragonenkov/shopcore/internal/service/stock"
	"github.com/vladislavdragonenkov/shopcore/internal/storage/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	svc       *cart.Service
	catalog   *memory.CatalogRepository
	discounts domain.DiscountRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	catalog := memory.NewCatalogRepository()
	require.NoError(t, catalog.UpsertProduct(domain.Product{ID: "mug", Price: dec("10.00"), Stock: domain.IntPtr(5), Active: true, CategoryIDs: []string{"kitchen"}}))
	require.NoError(t, catalog.UpsertProduct(domain.Product{ID: "shirt", Price: dec("20.00"), Active: true}))
	require.NoError(t, catalog.UpsertVariation(domain.Variation{ID: "shirt-s", ProductID: "shirt", Stock: domain.IntPtr(2), Active: true}))
	price := dec("25.00")
	require.NoError(t, catalog.UpsertVariation(domain.Variation{ID: "shirt-xl", ProductID: "shirt", Price: &price, Active: true}))

	customers := memory.NewCustomerRepository()
	require.NoError(t, customers.Upsert(domain.Customer{ID: "alice", Email: "alice@example.com"}))

	discounts := memory.NewDiscountRepository()
	shippingRepo := memory.NewShippingMethodRepository()
	require.NoError(t, shippingRepo.Create(domain.ShippingMethod{ID: "post", OrderCost: dec("3.50")}))

	resolver := discount.NewResolver(discounts)
	calc := pricing.NewCalculator(resolver, shipping.NewSelector(shippingRepo, nil), domain.NewVAT(dec("19")))
	ledger := stock.NewLedger(catalog, catalog)

	svc := cart.NewService(memory.NewCartRepository(), catalog, customers, ledger, resolver, calc)
	return fixture{svc: svc, catalog: catalog, discounts: discounts}
}

func TestService_AddItem(t *testing.T) {
	f := newFixture(t)

	c, err := f.svc.Create("")
	require.NoError(t, err)

	c, err = f.svc.AddItem(c.ID, "mug", "", 2)
	require.NoError(t, err)
	c, err = f.svc.AddItem(c.ID, "mug", "", 3)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.True(t, c.Items[0].PiecePrice.Equal(dec("10.00")))

	// В корзине уже 5 из 5.
	_, err = f.svc.AddItem(c.ID, "mug", "", 1)
	var unavailable *domain.StockUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, 6, unavailable.Requested)
	assert.Equal(t, 5, unavailable.Available)

	_, err = f.svc.AddItem(c.ID, "shirt", "", 1)
	assert.True(t, errors.Is(err, domain.ErrVariationRequired))

	_, err = f.svc.AddItem(c.ID, "mug", "", 0)
	assert.True(t, errors.Is(err, domain.ErrQuantityInvalid))

	total, err := f.svc.TotalItems(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

func TestService_PriceCapturedOnFirstAdd(t *testing.T) {
	f := newFixture(t)
	c, err := f.svc.Create("")
	require.NoError(t, err)

	c, err = f.svc.AddItem(c.ID, "shirt", "shirt-xl", 1)
	require.NoError(t, err)
	assert.True(t, c.Items[0].PiecePrice.Equal(dec("25.00")), "variation price overrides product price")

	require.NoError(t, f.catalog.UpsertProduct(domain.Product{ID: "mug", Price: dec("10.00"), Stock: domain.IntPtr(5), Active: true}))
	c, err = f.svc.AddItem(c.ID, "mug", "", 1)
	require.NoError(t, err)
	require.NoError(t, f.catalog.UpsertProduct(domain.Product{ID: "mug", Price: dec("99.00"), Stock: domain.IntPtr(5), Active: true}))
	c, err = f.svc.AddItem(c.ID, "mug", "", 1)
	require.NoError(t, err)

	idx := c.Find("mug", "")
	require.GreaterOrEqual(t, idx, 0)
	assert.True(t, c.Items[idx].PiecePrice.Equal(dec("10.00")))
}

func TestService_SetQuantityAndRemove(t *testing.T) {
	f := newFixture(t)
	c, err := f.svc.Create("")
	require.NoError(t, err)
	c, err = f.svc.AddItem(c.ID, "shirt", "shirt-s", 1)
	require.NoError(t, err)

	c, err = f.svc.SetQuantity(c.ID, "shirt", "shirt-s", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Items[0].Quantity)

	_, err = f.svc.SetQuantity(c.ID, "shirt", "shirt-s", 3)
	assert.True(t, errors.Is(err, domain.ErrStockUnavailable))

	_, err = f.svc.SetQuantity(c.ID, "mug", "", 1)
	assert.True(t, errors.Is(err, domain.ErrCartItemNotFound))

	removed, err := f.svc.RemoveItem(c.ID, "mug", "")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = f.svc.RemoveItem(c.ID, "shirt", "shirt-s")
	require.NoError(t, err)
	assert.True(t, removed)

	c, err = f.svc.Get(c.ID)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestService_Coupon(t *testing.T) {
	f := newFixture(t)
	amount := dec("2.00")
	require.NoError(t, f.discounts.Create(domain.Discount{ID: "spring", OrderAmount: &amount, UseCoupon: true, CouponCode: "SPRING"}))

	c, err := f.svc.Create("")
	require.NoError(t, err)
	c, err = f.svc.AddItem(c.ID, "mug", "", 1)
	require.NoError(t, err)

	_, err = f.svc.ApplyCoupon(c.ID, "WINTER")
	assert.True(t, errors.Is(err, domain.ErrInvalidCoupon))

	c, err = f.svc.ApplyCoupon(c.ID, " SPRING ")
	require.NoError(t, err)
	assert.Equal(t, "SPRING", c.CouponCode)

	q, err := f.svc.Preview(c.ID, "")
	require.NoError(t, err)
	assert.True(t, q.Total.Equal(dec("8.00")))
	assert.Nil(t, q.ShippingMethod)

	q, err = f.svc.Preview(c.ID, "NL")
	require.NoError(t, err)
	assert.True(t, q.Total.Equal(dec("11.50")))

	c, err = f.svc.ClearCoupon(c.ID)
	require.NoError(t, err)
	assert.Empty(t, c.CouponCode)
}

func TestService_AssignCustomerAndDelete(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create("bob")
	assert.True(t, errors.Is(err, domain.ErrCustomerNotFound))

	c, err := f.svc.Create("")
	require.NoError(t, err)

	_, err = f.svc.AssignCustomer(c.ID, "bob")
	assert.True(t, errors.Is(err, domain.ErrCustomerNotFound))

	c, err = f.svc.AssignCustomer(c.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", c.CustomerID)

	require.NoError(t, f.svc.Delete(c.ID))
	_, err = f.svc.Get(c.ID)
	assert.True(t, errors.Is(err, domain.ErrCartNotFound))
}

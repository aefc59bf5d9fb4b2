package shoppingcart

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/eventdriven/cartflow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceCalculator prices a product item at the moment it is added.
type PriceCalculator interface {
	Calculate(ctx context.Context, item ProductItem) (PricedProductItem, error)
}

// PriceCalculatorFunc adapts a function to PriceCalculator.
type PriceCalculatorFunc func(ctx context.Context, item ProductItem) (PricedProductItem, error)

// Calculate calls f.
func (f PriceCalculatorFunc) Calculate(ctx context.Context, item ProductItem) (PricedProductItem, error) {
	return f(ctx, item)
}

// FixedPriceCalculator prices every product the same.
type FixedPriceCalculator struct {
	price decimal.Decimal
}

// NewFixedPriceCalculator returns a calculator that always uses price.
func NewFixedPriceCalculator(price decimal.Decimal) *FixedPriceCalculator {
	return &FixedPriceCalculator{price: price}
}

// Calculate implements PriceCalculator.
func (c *FixedPriceCalculator) Calculate(_ context.Context, item ProductItem) (PricedProductItem, error) {
	return priced(item, c.price), nil
}

// RandomPriceCalculator draws a price between 0.01 and 100.00 the first time
// it sees a product and keeps it for later calls.
type RandomPriceCalculator struct {
	mu     sync.Mutex
	rnd    *rand.Rand
	prices map[uuid.UUID]decimal.Decimal
}

// NewRandomPriceCalculator returns a calculator seeded with seed.
func NewRandomPriceCalculator(seed int64) *RandomPriceCalculator {
	return &RandomPriceCalculator{
		rnd:    rand.New(rand.NewSource(seed)),
		prices: make(map[uuid.UUID]decimal.Decimal),
	}
}

// Calculate implements PriceCalculator.
func (c *RandomPriceCalculator) Calculate(_ context.Context, item ProductItem) (PricedProductItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	price, ok := c.prices[item.ProductID]
	if !ok {
		price = decimal.New(c.rnd.Int63n(10000)+1, -2)
		c.prices[item.ProductID] = price
	}
	return priced(item, price), nil
}

// CatalogPriceCalculator prices products from a fixed list.
type CatalogPriceCalculator struct {
	prices map[uuid.UUID]decimal.Decimal
}

// NewCatalogPriceCalculator returns a calculator over prices.
func NewCatalogPriceCalculator(prices map[uuid.UUID]decimal.Decimal) *CatalogPriceCalculator {
	copied := make(map[uuid.UUID]decimal.Decimal, len(prices))
	for id, p := range prices {
		copied[id] = p
	}
	return &CatalogPriceCalculator{prices: copied}
}

// ParseCatalog builds a CatalogPriceCalculator from product ID and price
// strings, as found in configuration files.
func ParseCatalog(entries map[string]string) (*CatalogPriceCalculator, error) {
	prices := make(map[uuid.UUID]decimal.Decimal, len(entries))
	for rawID, rawPrice := range entries {
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("shoppingcart: catalog product %q: %w", rawID, err)
		}
		price, err := decimal.NewFromString(rawPrice)
		if err != nil {
			return nil, fmt.Errorf("shoppingcart: catalog price for %s: %w", rawID, err)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("shoppingcart: catalog price for %s is negative", rawID)
		}
		prices[id] = price
	}
	return &CatalogPriceCalculator{prices: prices}, nil
}

// Calculate implements PriceCalculator. Products missing from the catalog
// fail validation.
func (c *CatalogPriceCalculator) Calculate(_ context.Context, item ProductItem) (PricedProductItem, error) {
	price, ok := c.prices[item.ProductID]
	if !ok {
		return PricedProductItem{}, cartflow.NewValidationError("AddProductItem", "productId", "is not in the catalog")
	}
	return priced(item, price), nil
}

func priced(item ProductItem, price decimal.Decimal) PricedProductItem {
	return PricedProductItem{
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		UnitPrice: price,
	}
}

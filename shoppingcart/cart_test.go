package shoppingcart

import (
	"context"
	"testing"
	"time"

	"github.com/eventdriven/cartflow"
	"github.com/eventdriven/cartflow/testing/bdd"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cartID   = uuid.MustParse("6f1d3f50-4c5a-4a8e-9c1e-3b0a0c6e7d11")
	clientID = uuid.MustParse("0b6e2c4a-7f2a-4b55-8f2d-1f4e9a6c3b22")
	shoesID  = uuid.MustParse("11111111-1111-4111-8111-111111111111")
	tshirtID = uuid.MustParse("22222222-2222-4222-8222-222222222222")
	openedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later    = openedAt.Add(time.Hour)
)

func opened() ShoppingCartOpened {
	return Open(cartID, clientID, openedAt)
}

func added(productID uuid.UUID, quantity int, price int64) ProductItemAddedToShoppingCart {
	return ProductItemAddedToShoppingCart{
		ShoppingCartID: cartID,
		ProductItem:    PricedProductItem{ProductID: productID, Quantity: quantity, UnitPrice: decimal.NewFromInt(price)},
	}
}

func removed(productID uuid.UUID, quantity int, price int64) ProductItemRemovedFromShoppingCart {
	return ProductItemRemovedFromShoppingCart{
		ShoppingCartID: cartID,
		ProductItem:    PricedProductItem{ProductID: productID, Quantity: quantity, UnitPrice: decimal.NewFromInt(price)},
	}
}

func fixed(price int64) PriceCalculator {
	return NewFixedPriceCalculator(decimal.NewFromInt(price))
}

func addItem(calc PriceCalculator, item ProductItem) cartflow.Decide[ShoppingCart] {
	return func(cart ShoppingCart) ([]interface{}, error) {
		return decideOne(AddProductItem(context.Background(), calc, item, cart))
	}
}

func removeItem(item ProductItem) cartflow.Decide[ShoppingCart] {
	return func(cart ShoppingCart) ([]interface{}, error) {
		return decideOne(RemoveProductItem(item, cart))
	}
}

func confirm(cart ShoppingCart) ([]interface{}, error) {
	return decideOne(Confirm(cart, later))
}

func cancel(cart ShoppingCart) ([]interface{}, error) {
	return decideOne(Cancel(cart, later))
}

func TestAddProductItem(t *testing.T) {
	t.Run("prices the item", func(t *testing.T) {
		bdd.Given(t, Initial, Evolve, opened()).
			When(addItem(fixed(100), ProductItem{ProductID: shoesID, Quantity: 2})).
			Then(added(shoesID, 2, 100))
	})

	t.Run("accumulates quantity and takes the latest price", func(t *testing.T) {
		bdd.Given(t, Initial, Evolve, opened(), added(shoesID, 2, 100)).
			When(addItem(fixed(120), ProductItem{ProductID: shoesID, Quantity: 3})).
			ThenState(func(t bdd.TB, cart ShoppingCart) {
				line := cart.ProductItems[shoesID]
				assert.Equal(t, 5, line.Quantity)
				assert.True(t, decimal.NewFromInt(120).Equal(line.UnitPrice))
			})
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		bdd.Given(t, Initial, Evolve, opened()).
			When(addItem(fixed(1), ProductItem{ProductID: shoesID})).
			ThenError(cartflow.ErrValidationFailed)
	})

	t.Run("surfaces pricing failures", func(t *testing.T) {
		bdd.Given(t, Initial, Evolve, opened()).
			When(addItem(NewCatalogPriceCalculator(nil), ProductItem{ProductID: shoesID, Quantity: 1})).
			ThenErrorContains("is not in the catalog")
	})
}

func TestRemoveProductItem(t *testing.T) {
	t.Run("removes at the held price", func(t *testing.T) {
		bdd.Given(t, Initial, Evolve, opened(), added(shoesID, 2, 100)).
			When(removeItem(ProductItem{ProductID: shoesID, Quantity: 1})).
			Then(removed(shoesID, 1, 100))
	})

	t.Run("removing everything drops the line", func(t *testing.T) {
		bdd.Given(t, Initial, Evolve, opened(), added(shoesID, 2, 100)).
			When(removeItem(ProductItem{ProductID: shoesID, Quantity: 2})).
			ThenState(func(t bdd.TB, cart ShoppingCart) {
				assert.Empty(t, cart.ProductItems)
			})
	})

	t.Run("more than held", func(t *testing.T) {
		bdd.Given(t, Initial, Evolve, opened(), added(shoesID, 2, 100)).
			When(removeItem(ProductItem{ProductID: shoesID, Quantity: 3})).
			ThenError(cartflow.ErrInsufficientQuantity)
	})

	t.Run("product never added", func(t *testing.T) {
		bdd.Given(t, Initial, Evolve, opened()).
			When(removeItem(ProductItem{ProductID: tshirtID, Quantity: 1})).
			ThenError(cartflow.ErrInsufficientQuantity)
	})
}

func TestTerminalCartsRejectEveryCommand(t *testing.T) {
	closers := map[string]interface{}{
		"confirmed": ShoppingCartConfirmed{ShoppingCartID: cartID, ConfirmedAt: later},
		"canceled":  ShoppingCartCanceled{ShoppingCartID: cartID, CanceledAt: later},
	}
	commands := map[string]cartflow.Decide[ShoppingCart]{
		"add":     addItem(fixed(10), ProductItem{ProductID: tshirtID, Quantity: 1}),
		"remove":  removeItem(ProductItem{ProductID: shoesID, Quantity: 1}),
		"confirm": confirm,
		"cancel":  cancel,
	}

	for closedBy, closer := range closers {
		for name, decide := range commands {
			t.Run(closedBy+"/"+name, func(t *testing.T) {
				bdd.Given(t, Initial, Evolve, opened(), added(shoesID, 2, 100), closer).
					When(decide).
					ThenError(cartflow.ErrInvalidOperation)
			})
		}
	}
}

func TestConfirmAndCancel(t *testing.T) {
	bdd.Given(t, Initial, Evolve, opened()).
		When(confirm).
		Then(ShoppingCartConfirmed{ShoppingCartID: cartID, ConfirmedAt: later}).
		ThenState(func(t bdd.TB, cart ShoppingCart) {
			assert.Equal(t, Confirmed, cart.Status)
			require.NotNil(t, cart.ConfirmedAt)
			assert.True(t, later.Equal(*cart.ConfirmedAt))
			assert.Nil(t, cart.CanceledAt)
		})

	bdd.Given(t, Initial, Evolve, opened()).
		When(cancel).
		ThenState(func(t bdd.TB, cart ShoppingCart) {
			assert.Equal(t, Canceled, cart.Status)
			assert.True(t, cart.IsClosed())
			require.NotNil(t, cart.CanceledAt)
		})
}

func TestEvolve(t *testing.T) {
	t.Run("opened starts a pending empty cart", func(t *testing.T) {
		cart := Evolve(Initial(), opened())

		assert.Equal(t, cartID, cart.ID)
		assert.Equal(t, clientID, cart.ClientID)
		assert.Equal(t, Pending, cart.Status)
		assert.Empty(t, cart.ProductItems)
		assert.False(t, cart.IsClosed())
	})

	t.Run("does not modify its input", func(t *testing.T) {
		before := Evolve(Initial(), opened())
		before = Evolve(before, added(shoesID, 1, 10))

		after := Evolve(before, added(shoesID, 4, 10))
		after = Evolve(after, removed(shoesID, 5, 10))
		_ = Evolve(before, ShoppingCartConfirmed{ConfirmedAt: later})

		assert.Equal(t, 1, before.Quantity(shoesID))
		assert.Equal(t, Pending, before.Status)
		assert.Equal(t, 0, after.Quantity(shoesID))
	})

	t.Run("removal of an absent line is ignored", func(t *testing.T) {
		cart := cartflow.FoldPayloads(Initial(), Evolve, opened(), removed(tshirtID, 1, 5))
		assert.Empty(t, cart.ProductItems)
	})

	t.Run("unknown event panics", func(t *testing.T) {
		assert.Panics(t, func() { Evolve(Initial(), "ShoppingCartArchived") })
	})
}

func TestFold_QuantityConservation(t *testing.T) {
	events := []interface{}{
		opened(),
		added(shoesID, 3, 100),
		added(tshirtID, 2, 50),
		removed(shoesID, 1, 100),
		added(shoesID, 4, 90),
		removed(tshirtID, 2, 50),
		removed(shoesID, 2, 90),
	}

	cart := cartflow.FoldPayloads(Initial(), Evolve, events...)

	assert.Equal(t, 3+4-1-2, cart.Quantity(shoesID))
	assert.Equal(t, 0, cart.Quantity(tshirtID))
	_, held := cart.ProductItems[tshirtID]
	assert.False(t, held)
	assert.True(t, decimal.NewFromInt(360).Equal(cart.TotalAmount()))

	again := cartflow.FoldPayloads(Initial(), Evolve, events...)
	assert.Equal(t, cart.ProductItemsList(), again.ProductItemsList())
}

func TestShoppingCart_ProductItemsList(t *testing.T) {
	cart := cartflow.FoldPayloads(Initial(), Evolve, opened(), added(tshirtID, 1, 50), added(shoesID, 2, 100))

	items := cart.ProductItemsList()
	require.Len(t, items, 2)
	assert.Equal(t, shoesID, items[0].ProductID)
	assert.Equal(t, tshirtID, items[1].ProductID)
	assert.True(t, decimal.NewFromInt(250).Equal(cart.TotalAmount()))
	assert.True(t, items[0].Equal(PricedProductItem{ProductID: shoesID, Quantity: 2, UnitPrice: decimal.RequireFromString("100.00")}))
	assert.Equal(t, "Pending", cart.Status.String())
	assert.Equal(t, "Unknown", Initial().Status.String())
}

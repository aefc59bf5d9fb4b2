// Package shoppingcart implements the shopping cart aggregate: its events,
// its state as a fold over those events, and the decisions that produce new
// events from commands.
package shoppingcart

import (
	"context"
	"sort"
	"time"

	"github.com/eventdriven/cartflow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle stage of a cart.
type Status int

const (
	// Pending carts accept items.
	Pending Status = iota + 1
	// Confirmed is terminal.
	Confirmed
	// Canceled is terminal.
	Canceled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Confirmed:
		return "Confirmed"
	case Canceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// ShoppingCart is the state rebuilt from a cart's events. It is a value:
// Evolve never modifies the cart it is given.
type ShoppingCart struct {
	ID           uuid.UUID
	ClientID     uuid.UUID
	Status       Status
	ProductItems map[uuid.UUID]PricedProductItem
	OpenedAt     time.Time
	ConfirmedAt  *time.Time
	CanceledAt   *time.Time
}

// Initial returns the state of a cart before any event.
func Initial() ShoppingCart {
	return ShoppingCart{}
}

// IsClosed reports whether the cart is Confirmed or Canceled.
func (c ShoppingCart) IsClosed() bool {
	return c.Status == Confirmed || c.Status == Canceled
}

// Quantity returns the quantity held for productID.
func (c ShoppingCart) Quantity(productID uuid.UUID) int {
	return c.ProductItems[productID].Quantity
}

// TotalAmount sums every line's total.
func (c ShoppingCart) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.ProductItems {
		total = total.Add(item.TotalAmount())
	}
	return total
}

// ProductItemsList returns the lines ordered by product ID.
func (c ShoppingCart) ProductItemsList() []PricedProductItem {
	items := make([]PricedProductItem, 0, len(c.ProductItems))
	for _, item := range c.ProductItems {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ProductID.String() < items[j].ProductID.String()
	})
	return items
}

func (c ShoppingCart) withItems() ShoppingCart {
	items := make(map[uuid.UUID]PricedProductItem, len(c.ProductItems)+1)
	for id, item := range c.ProductItems {
		items[id] = item
	}
	c.ProductItems = items
	return c
}

// Evolve applies one event to a cart. Removals for a line the cart does not
// hold are ignored, since history is never re-validated.
func Evolve(cart ShoppingCart, event interface{}) ShoppingCart {
	switch e := event.(type) {
	case ShoppingCartOpened:
		return ShoppingCart{
			ID:           e.ShoppingCartID,
			ClientID:     e.ClientID,
			Status:       Pending,
			ProductItems: map[uuid.UUID]PricedProductItem{},
			OpenedAt:     e.OpenedAt,
		}

	case ProductItemAddedToShoppingCart:
		next := cart.withItems()
		added := e.ProductItem
		if current, ok := next.ProductItems[added.ProductID]; ok {
			added.Quantity += current.Quantity
		}
		next.ProductItems[added.ProductID] = added
		return next

	case ProductItemRemovedFromShoppingCart:
		current, ok := cart.ProductItems[e.ProductItem.ProductID]
		if !ok {
			return cart
		}
		next := cart.withItems()
		current.Quantity -= e.ProductItem.Quantity
		if current.Quantity <= 0 {
			delete(next.ProductItems, current.ProductID)
		} else {
			next.ProductItems[current.ProductID] = current
		}
		return next

	case ShoppingCartConfirmed:
		at := e.ConfirmedAt
		cart.Status = Confirmed
		cart.ConfirmedAt = &at
		return cart

	case ShoppingCartCanceled:
		at := e.CanceledAt
		cart.Status = Canceled
		cart.CanceledAt = &at
		return cart

	default:
		panic(&cartflow.UnknownEventError{Aggregate: StreamKind, Event: event})
	}
}

// Open decides the event that starts a cart.
func Open(id, clientID uuid.UUID, now time.Time) ShoppingCartOpened {
	return ShoppingCartOpened{
		ShoppingCartID: id,
		ClientID:       clientID,
		OpenedAt:       now,
	}
}

// AddProductItem prices item with calc and decides its addition.
func AddProductItem(ctx context.Context, calc PriceCalculator, item ProductItem, cart ShoppingCart) (ProductItemAddedToShoppingCart, error) {
	if cart.IsClosed() {
		return ProductItemAddedToShoppingCart{}, closedError("add product item", cart)
	}
	if item.Quantity <= 0 {
		return ProductItemAddedToShoppingCart{}, cartflow.NewValidationError("AddProductItem", "quantity", "must be positive")
	}

	priced, err := calc.Calculate(ctx, item)
	if err != nil {
		return ProductItemAddedToShoppingCart{}, err
	}

	return ProductItemAddedToShoppingCart{
		ShoppingCartID: cart.ID,
		ProductItem:    priced,
	}, nil
}

// RemoveProductItem decides the removal of item. The removed line carries
// the unit price the cart holds it at.
func RemoveProductItem(item ProductItem, cart ShoppingCart) (ProductItemRemovedFromShoppingCart, error) {
	if cart.IsClosed() {
		return ProductItemRemovedFromShoppingCart{}, closedError("remove product item", cart)
	}
	if item.Quantity <= 0 {
		return ProductItemRemovedFromShoppingCart{}, cartflow.NewValidationError("RemoveProductItem", "quantity", "must be positive")
	}

	held := cart.ProductItems[item.ProductID]
	if held.Quantity < item.Quantity {
		return ProductItemRemovedFromShoppingCart{}, cartflow.NewInsufficientQuantityError(item.ProductID.String(), item.Quantity, held.Quantity)
	}

	return ProductItemRemovedFromShoppingCart{
		ShoppingCartID: cart.ID,
		ProductItem: PricedProductItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: held.UnitPrice,
		},
	}, nil
}

// Confirm decides the confirmation of a pending cart.
func Confirm(cart ShoppingCart, now time.Time) (ShoppingCartConfirmed, error) {
	if cart.IsClosed() {
		return ShoppingCartConfirmed{}, closedError("confirm cart", cart)
	}
	return ShoppingCartConfirmed{ShoppingCartID: cart.ID, ConfirmedAt: now}, nil
}

// Cancel decides the cancellation of a pending cart.
func Cancel(cart ShoppingCart, now time.Time) (ShoppingCartCanceled, error) {
	if cart.IsClosed() {
		return ShoppingCartCanceled{}, closedError("cancel cart", cart)
	}
	return ShoppingCartCanceled{ShoppingCartID: cart.ID, CanceledAt: now}, nil
}

func closedError(operation string, cart ShoppingCart) error {
	return cartflow.NewInvalidOperationError(operation, "cart is "+cart.Status.String())
}

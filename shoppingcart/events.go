package shoppingcart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event is implemented by every shopping cart event. The set is closed:
// Evolve handles each of them and nothing else.
type Event interface {
	shoppingCartEvent()
}

// ShoppingCartOpened starts a cart's stream.
type ShoppingCartOpened struct {
	ShoppingCartID uuid.UUID `json:"shoppingCartId" msgpack:"shoppingCartId"`
	ClientID       uuid.UUID `json:"clientId" msgpack:"clientId"`
	OpenedAt       time.Time `json:"openedAt" msgpack:"openedAt"`
}

// ProductItemAddedToShoppingCart records a priced line added to a cart.
type ProductItemAddedToShoppingCart struct {
	ShoppingCartID uuid.UUID         `json:"shoppingCartId" msgpack:"shoppingCartId"`
	ProductItem    PricedProductItem `json:"productItem" msgpack:"productItem"`
}

// ProductItemRemovedFromShoppingCart records a quantity taken off a line.
type ProductItemRemovedFromShoppingCart struct {
	ShoppingCartID uuid.UUID         `json:"shoppingCartId" msgpack:"shoppingCartId"`
	ProductItem    PricedProductItem `json:"productItem" msgpack:"productItem"`
}

// ShoppingCartConfirmed closes a cart for checkout.
type ShoppingCartConfirmed struct {
	ShoppingCartID uuid.UUID `json:"shoppingCartId" msgpack:"shoppingCartId"`
	ConfirmedAt    time.Time `json:"confirmedAt" msgpack:"confirmedAt"`
}

// ShoppingCartCanceled closes a cart without checkout.
type ShoppingCartCanceled struct {
	ShoppingCartID uuid.UUID `json:"shoppingCartId" msgpack:"shoppingCartId"`
	CanceledAt     time.Time `json:"canceledAt" msgpack:"canceledAt"`
}

func (ShoppingCartOpened) shoppingCartEvent()                 {}
func (ProductItemAddedToShoppingCart) shoppingCartEvent()     {}
func (ProductItemRemovedFromShoppingCart) shoppingCartEvent() {}
func (ShoppingCartConfirmed) shoppingCartEvent()              {}
func (ShoppingCartCanceled) shoppingCartEvent()               {}

func (ShoppingCartOpened) EventType() string                 { return "ShoppingCartOpened" }
func (ProductItemAddedToShoppingCart) EventType() string     { return "ProductItemAddedToShoppingCart" }
func (ProductItemRemovedFromShoppingCart) EventType() string { return "ProductItemRemovedFromShoppingCart" }
func (ShoppingCartConfirmed) EventType() string              { return "ShoppingCartConfirmed" }
func (ShoppingCartCanceled) EventType() string               { return "ShoppingCartCanceled" }

// Events returns one zero value of every shopping cart event, for
// registering with a serializer.
func Events() []interface{} {
	return []interface{}{
		ShoppingCartOpened{},
		ProductItemAddedToShoppingCart{},
		ProductItemRemovedFromShoppingCart{},
		ShoppingCartConfirmed{},
		ShoppingCartCanceled{},
	}
}

// ProductItem is what a client asks to add or remove.
type ProductItem struct {
	ProductID uuid.UUID `json:"productId" msgpack:"productId"`
	Quantity  int       `json:"quantity" msgpack:"quantity"`
}

// PricedProductItem is a ProductItem with the unit price it was added at.
type PricedProductItem struct {
	ProductID uuid.UUID       `json:"productId" msgpack:"productId"`
	Quantity  int             `json:"quantity" msgpack:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice" msgpack:"unitPrice"`
}

// TotalAmount returns Quantity × UnitPrice.
func (p PricedProductItem) TotalAmount() decimal.Decimal {
	return p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// Equal reports whether p and other describe the same line.
func (p PricedProductItem) Equal(other PricedProductItem) bool {
	return p.ProductID == other.ProductID &&
		p.Quantity == other.Quantity &&
		p.UnitPrice.Equal(other.UnitPrice)
}

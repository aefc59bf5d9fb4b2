package shoppingcart

import (
	"github.com/eventdriven/cartflow"
)

// StreamKind prefixes every cart stream: "shopping_cart-<id>".
const StreamKind = "shopping_cart"

// Store reads and updates carts.
type Store = cartflow.Repository[ShoppingCart]

// NewStore binds the cart aggregate to es and registers its events with
// the store's serializer.
func NewStore(es *cartflow.EventStore, opts ...cartflow.RepositoryOption) *Store {
	es.RegisterEvents(Events()...)
	return cartflow.NewRepository(es, StreamKind, Initial, Evolve, opts...)
}

func decideOne[E Event](event E, err error) ([]interface{}, error) {
	if err != nil {
		return nil, err
	}
	return []interface{}{event}, nil
}

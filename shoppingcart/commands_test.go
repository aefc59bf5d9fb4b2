package shoppingcart

import (
	"context"
	"testing"

	"github.com/eventdriven/cartflow"
	"github.com/eventdriven/cartflow/adapters/memory"
	"github.com/eventdriven/cartflow/testing/bdd"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCartBus(t *testing.T) (*cartflow.CommandBus, *cartflow.EventStore) {
	t.Helper()
	svc, es := newService(memory.NewAdapter(), NewFixedPriceCalculator(decimal.NewFromInt(20)), cartID)

	bus := cartflow.NewCommandBus(cartflow.WithMiddleware(
		cartflow.CorrelationIDMiddleware(),
		cartflow.ValidationMiddleware(),
	))
	bus.Register(svc.Handlers()...)
	return bus, es
}

func TestCommands_Validate(t *testing.T) {
	tests := []struct {
		name string
		cmd  cartflow.Command
		want string
	}{
		{"open without client", OpenShoppingCart{}, "clientId: is required"},
		{"add without cart", AddProductItemToShoppingCart{ProductItem: ProductItem{ProductID: shoesID, Quantity: 1}}, "shoppingCartId: is required"},
		{"add zero quantity", AddProductItemToShoppingCart{ShoppingCartID: cartID, ProductItem: ProductItem{ProductID: shoesID}}, "quantity: must be positive"},
		{"remove without product", RemoveProductItemFromShoppingCart{ShoppingCartID: cartID, ProductItem: ProductItem{Quantity: 1}}, "productId: is required"},
		{"confirm bad token", ConfirmShoppingCart{ShoppingCartID: cartID, IfMatch: "W/x"}, "ifMatch: is not a valid token"},
		{"cancel without cart", CancelShoppingCart{}, "shoppingCartId: is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			assert.ErrorIs(t, err, cartflow.ErrValidationFailed)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, ConfirmShoppingCart{ShoppingCartID: cartID, IfMatch: `W/"3"`}.Validate())
	assert.NoError(t, OpenShoppingCart{ClientID: clientID}.Validate())
}

func TestCommands_Dispatch(t *testing.T) {
	stream := cartflow.BuildStreamName(StreamKind, cartID.String())

	t.Run("open", func(t *testing.T) {
		bus, store := newCartBus(t)

		bdd.GivenCommand(t, bus, store).
			When(OpenShoppingCart{ClientID: clientID}).
			ThenSucceeds().
			ThenReturnsAggregateID(cartID.String()).
			ThenReturnsToken(`W/"0"`)
	})

	t.Run("open with explicit id", func(t *testing.T) {
		bus, store := newCartBus(t)
		other := uuid.New()

		bdd.GivenCommand(t, bus, store).
			When(OpenShoppingCart{ShoppingCartID: other, ClientID: clientID}).
			ThenSucceeds().
			ThenReturnsAggregateID(other.String())
	})

	t.Run("add to open cart", func(t *testing.T) {
		bus, store := newCartBus(t)

		bdd.GivenCommand(t, bus, store).
			WithExistingEvents(stream, opened()).
			When(AddProductItemToShoppingCart{ShoppingCartID: cartID, ProductItem: ProductItem{ProductID: shoesID, Quantity: 2}, IfMatch: `W/"0"`}).
			ThenSucceeds().
			ThenReturnsRevision(1)
	})

	t.Run("remove, confirm", func(t *testing.T) {
		bus, store := newCartBus(t)

		bdd.GivenCommand(t, bus, store).
			WithExistingEvents(stream, opened(), added(shoesID, 2, 20)).
			When(RemoveProductItemFromShoppingCart{ShoppingCartID: cartID, ProductItem: ProductItem{ProductID: shoesID, Quantity: 2}}).
			ThenSucceeds().
			ThenReturnsRevision(2)

		bdd.GivenCommand(t, bus, store).
			When(ConfirmShoppingCart{ShoppingCartID: cartID, IfMatch: `W/"2"`}).
			ThenSucceeds().
			ThenReturnsToken(`W/"3"`)
	})

	t.Run("cancel closed cart", func(t *testing.T) {
		bus, store := newCartBus(t)

		bdd.GivenCommand(t, bus, store).
			WithExistingEvents(stream, opened(), ShoppingCartConfirmed{ShoppingCartID: cartID, ConfirmedAt: later}).
			When(CancelShoppingCart{ShoppingCartID: cartID}).
			ThenFails(cartflow.ErrInvalidOperation)
	})

	t.Run("stale token", func(t *testing.T) {
		bus, store := newCartBus(t)

		bdd.GivenCommand(t, bus, store).
			WithExistingEvents(stream, opened(), added(shoesID, 1, 20)).
			When(CancelShoppingCart{ShoppingCartID: cartID, IfMatch: `W/"0"`}).
			ThenFails(cartflow.ErrPreconditionFailed)
	})

	t.Run("events carry command metadata", func(t *testing.T) {
		bus, store := newCartBus(t)
		cmd := OpenShoppingCart{ClientID: clientID}
		cmd.CommandID = "cmd-1"
		cmd.CorrelationID = "corr-1"

		_, err := bus.Dispatch(context.Background(), cmd)
		require.NoError(t, err)

		result, err := store.Read(context.Background(), stream)
		require.NoError(t, err)
		require.Len(t, result.Events, 1)
		assert.Equal(t, "corr-1", result.Events[0].Metadata.CorrelationID)
		assert.Equal(t, "cmd-1", result.Events[0].Metadata.CausationID)
	})
}

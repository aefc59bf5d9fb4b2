package shoppingcart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eventdriven/cartflow"
	"github.com/eventdriven/cartflow/adapters"
	"github.com/eventdriven/cartflow/adapters/memory"
	"github.com/eventdriven/cartflow/testing/assertions"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type catalog map[uuid.UUID]int64

func (c catalog) calculator() PriceCalculator {
	prices := make(map[uuid.UUID]decimal.Decimal, len(c))
	for id, p := range c {
		prices[id] = decimal.NewFromInt(p)
	}
	return NewCatalogPriceCalculator(prices)
}

func newService(adapter adapters.EventStoreAdapter, pricing PriceCalculator, id uuid.UUID) (*Service, *cartflow.EventStore) {
	es := cartflow.New(adapter)
	svc := NewService(NewStore(es), pricing,
		WithClock(func() time.Time { return later }),
		WithIDGenerator(func() uuid.UUID { return id }),
	)
	return svc, es
}

// barrierAdapter holds every Load until all expected readers have been
// served, so they observe the same revision before any of them appends.
type barrierAdapter struct {
	adapters.EventStoreAdapter
	wg *sync.WaitGroup
}

func (b *barrierAdapter) Load(ctx context.Context, streamID string, from int64) ([]adapters.StoredEvent, error) {
	events, err := b.EventStoreAdapter.Load(ctx, streamID, from)
	b.wg.Done()
	b.wg.Wait()
	return events, err
}

func TestService_CheckoutScenario(t *testing.T) {
	ctx := context.Background()
	svc, es := newService(memory.NewAdapter(), catalog{shoesID: 100, tshirtID: 50}.calculator(), cartID)

	id, token, err := svc.Open(ctx, clientID)
	require.NoError(t, err)
	assert.Equal(t, cartID, id)
	assert.Equal(t, `W/"0"`, token)

	token, err = svc.AddProductItem(ctx, id, ProductItem{ProductID: shoesID, Quantity: 2}, token)
	require.NoError(t, err)
	token, err = svc.AddProductItem(ctx, id, ProductItem{ProductID: tshirtID, Quantity: 1}, token)
	require.NoError(t, err)
	token, err = svc.RemoveProductItem(ctx, id, ProductItem{ProductID: shoesID, Quantity: 1}, token)
	require.NoError(t, err)
	token, err = svc.Confirm(ctx, id, token)
	require.NoError(t, err)
	assert.Equal(t, `W/"4"`, token)

	cart, current, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, token, current)
	assert.Equal(t, Confirmed, cart.Status)
	require.NotNil(t, cart.ConfirmedAt)
	assert.True(t, later.Equal(*cart.ConfirmedAt))
	require.Len(t, cart.ProductItems, 2)
	assert.True(t, cart.ProductItems[shoesID].Equal(PricedProductItem{ProductID: shoesID, Quantity: 1, UnitPrice: decimal.NewFromInt(100)}))
	assert.True(t, cart.ProductItems[tshirtID].Equal(PricedProductItem{ProductID: tshirtID, Quantity: 1, UnitPrice: decimal.NewFromInt(50)}))

	stream := cartflow.BuildStreamName(StreamKind, id.String())
	result, err := es.Read(ctx, stream)
	require.NoError(t, err)
	assertions.AssertEventTypes(t, result.Events,
		"ShoppingCartOpened",
		"ProductItemAddedToShoppingCart",
		"ProductItemAddedToShoppingCart",
		"ProductItemRemovedFromShoppingCart",
		"ShoppingCartConfirmed",
	)
	assertions.AssertContiguous(t, result.Events, stream)
}

func TestService_ConfirmedCartRejectsItems(t *testing.T) {
	ctx := context.Background()
	adapter := memory.NewAdapter()
	svc, es := newService(adapter, NewFixedPriceCalculator(decimal.NewFromInt(10)), cartID)

	id, _, err := svc.Open(ctx, clientID)
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, id, "")
	require.NoError(t, err)

	_, err = svc.AddProductItem(ctx, id, ProductItem{ProductID: uuid.New(), Quantity: 1}, "")

	assert.ErrorIs(t, err, cartflow.ErrInvalidOperation)
	assert.Equal(t, 409, cartflow.StatusCode(err))
	result, err := es.Read(ctx, "shopping_cart-"+id.String())
	require.NoError(t, err)
	assert.Len(t, result.Events, 2)
	assert.Equal(t, int64(1), result.Revision)
}

func TestService_ConcurrentUpdateOneWins(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewAdapter()
	setup, es := newService(inner, NewFixedPriceCalculator(decimal.NewFromInt(5)), cartID)
	id, _, err := setup.Open(ctx, clientID)
	require.NoError(t, err)

	var readers sync.WaitGroup
	readers.Add(2)
	barrier := &barrierAdapter{EventStoreAdapter: inner, wg: &readers}
	first, _ := newService(barrier, NewFixedPriceCalculator(decimal.NewFromInt(5)), cartID)
	second, _ := newService(barrier, NewFixedPriceCalculator(decimal.NewFromInt(5)), cartID)

	errs := make([]error, 2)
	var done sync.WaitGroup
	for i, svc := range []*Service{first, second} {
		done.Add(1)
		go func() {
			defer done.Done()
			_, errs[i] = svc.AddProductItem(ctx, id, ProductItem{ProductID: shoesID, Quantity: 1}, "")
		}()
	}
	done.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, cartflow.ErrConcurrencyConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)

	result, err := es.Read(ctx, "shopping_cart-"+id.String())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Revision)
}

func TestService_StaleToken(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(memory.NewAdapter(), NewFixedPriceCalculator(decimal.NewFromInt(5)), cartID)
	id, opened, err := svc.Open(ctx, clientID)
	require.NoError(t, err)
	_, err = svc.AddProductItem(ctx, id, ProductItem{ProductID: shoesID, Quantity: 1}, opened)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, id, opened)

	assert.ErrorIs(t, err, cartflow.ErrPreconditionFailed)
	assert.Equal(t, 412, cartflow.StatusCode(err))
	cart, _, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, Pending, cart.Status)
}

func TestService_Errors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(memory.NewAdapter(), NewFixedPriceCalculator(decimal.NewFromInt(5)), cartID)

	_, _, err := svc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, cartflow.ErrNotFound)

	_, err = svc.Confirm(ctx, uuid.New(), "")
	assert.ErrorIs(t, err, cartflow.ErrNotFound)

	_, _, err = svc.Open(ctx, clientID)
	require.NoError(t, err)
	_, _, err = svc.Open(ctx, clientID)
	assert.ErrorIs(t, err, cartflow.ErrAlreadyExists)

	_, err = svc.RemoveProductItem(ctx, cartID, ProductItem{ProductID: shoesID, Quantity: 1}, "")
	assert.ErrorIs(t, err, cartflow.ErrInsufficientQuantity)
	assert.Equal(t, 409, cartflow.StatusCode(err))

	_, err = svc.Confirm(ctx, cartID, "not-a-token")
	assert.ErrorIs(t, err, cartflow.ErrInvalidToken)
}

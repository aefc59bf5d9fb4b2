package shoppingcart

import (
	"context"
	"time"

	"github.com/eventdriven/cartflow"
	"github.com/google/uuid"
)

// Service runs cart operations against a Store. Mutating operations take
// the caller's last seen token in ifMatch (empty for none) and return the
// token of the cart after the change.
type Service struct {
	carts   *Store
	pricing PriceCalculator
	now     func() time.Time
	newID   func() uuid.UUID
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock sets the time source for Opened, Confirmed and Canceled events.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator sets how new cart IDs are chosen.
func WithIDGenerator(newID func() uuid.UUID) ServiceOption {
	return func(s *Service) {
		s.newID = newID
	}
}

// NewService creates a Service.
func NewService(carts *Store, pricing PriceCalculator, opts ...ServiceOption) *Service {
	s := &Service{
		carts:   carts,
		pricing: pricing,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open starts a cart for clientID under a fresh ID.
func (s *Service) Open(ctx context.Context, clientID uuid.UUID) (uuid.UUID, string, error) {
	id := s.newID()
	rev, err := s.open(ctx, id, clientID, contextMetadata(ctx))
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, cartflow.ToToken(rev), nil
}

// AddProductItem prices item and adds it to the cart.
func (s *Service) AddProductItem(ctx context.Context, id uuid.UUID, item ProductItem, ifMatch string) (string, error) {
	return tokenOf(s.addProductItem(ctx, id, item, ifMatch, contextMetadata(ctx)))
}

// RemoveProductItem takes item's quantity off the cart.
func (s *Service) RemoveProductItem(ctx context.Context, id uuid.UUID, item ProductItem, ifMatch string) (string, error) {
	return tokenOf(s.removeProductItem(ctx, id, item, ifMatch, contextMetadata(ctx)))
}

// Confirm closes the cart for checkout.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, ifMatch string) (string, error) {
	return tokenOf(s.confirm(ctx, id, ifMatch, contextMetadata(ctx)))
}

// Cancel closes the cart without checkout.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, ifMatch string) (string, error) {
	return tokenOf(s.cancel(ctx, id, ifMatch, contextMetadata(ctx)))
}

// Get returns the cart and its current token.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (ShoppingCart, string, error) {
	cart, rev, err := s.carts.Get(ctx, id.String())
	if err != nil {
		return ShoppingCart{}, "", err
	}
	return cart, cartflow.ToToken(rev), nil
}

func (s *Service) open(ctx context.Context, id, clientID uuid.UUID, meta cartflow.Metadata) (int64, error) {
	event := Open(id, clientID, s.now())
	return s.carts.Add(ctx, id.String(), []interface{}{event}, cartflow.WithAppendMetadata(meta))
}

func (s *Service) addProductItem(ctx context.Context, id uuid.UUID, item ProductItem, ifMatch string, meta cartflow.Metadata) (int64, error) {
	return s.update(ctx, id, ifMatch, meta, func(cart ShoppingCart) ([]interface{}, error) {
		return decideOne(AddProductItem(ctx, s.pricing, item, cart))
	})
}

func (s *Service) removeProductItem(ctx context.Context, id uuid.UUID, item ProductItem, ifMatch string, meta cartflow.Metadata) (int64, error) {
	return s.update(ctx, id, ifMatch, meta, func(cart ShoppingCart) ([]interface{}, error) {
		return decideOne(RemoveProductItem(item, cart))
	})
}

func (s *Service) confirm(ctx context.Context, id uuid.UUID, ifMatch string, meta cartflow.Metadata) (int64, error) {
	return s.update(ctx, id, ifMatch, meta, func(cart ShoppingCart) ([]interface{}, error) {
		return decideOne(Confirm(cart, s.now()))
	})
}

func (s *Service) cancel(ctx context.Context, id uuid.UUID, ifMatch string, meta cartflow.Metadata) (int64, error) {
	return s.update(ctx, id, ifMatch, meta, func(cart ShoppingCart) ([]interface{}, error) {
		return decideOne(Cancel(cart, s.now()))
	})
}

func (s *Service) update(ctx context.Context, id uuid.UUID, ifMatch string, meta cartflow.Metadata, decide cartflow.Decide[ShoppingCart]) (int64, error) {
	expected, err := cartflow.ParseExpectation(ifMatch)
	if err != nil {
		return cartflow.NoStream, err
	}
	return s.carts.GetAndUpdate(ctx, id.String(), expected, decide, cartflow.WithAppendMetadata(meta))
}

func contextMetadata(ctx context.Context) cartflow.Metadata {
	return cartflow.Metadata{CorrelationID: cartflow.CorrelationIDFromContext(ctx)}
}

func tokenOf(rev int64, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return cartflow.ToToken(rev), nil
}

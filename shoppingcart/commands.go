package shoppingcart

import (
	"context"

	"github.com/eventdriven/cartflow"
	"github.com/google/uuid"
)

// OpenShoppingCart opens a cart. A nil ShoppingCartID lets the service pick one.
type OpenShoppingCart struct {
	cartflow.CommandBase
	ShoppingCartID uuid.UUID
	ClientID       uuid.UUID
}

// CommandType returns the command type name.
func (OpenShoppingCart) CommandType() string { return "OpenShoppingCart" }

// Validate checks the command's input.
func (c OpenShoppingCart) Validate() error {
	v := cartflow.NewMultiValidationError(c.CommandType())
	if c.ClientID == uuid.Nil {
		v.AddField("clientId", "is required")
	}
	return v.Err()
}

// AddProductItemToShoppingCart adds a product to a cart.
type AddProductItemToShoppingCart struct {
	cartflow.CommandBase
	ShoppingCartID uuid.UUID
	ProductItem    ProductItem
	IfMatch        string
}

// CommandType returns the command type name.
func (AddProductItemToShoppingCart) CommandType() string { return "AddProductItemToShoppingCart" }

// Validate checks the command's input.
func (c AddProductItemToShoppingCart) Validate() error {
	v := cartflow.NewMultiValidationError(c.CommandType())
	validateCart(v, c.ShoppingCartID, c.IfMatch)
	validateItem(v, c.ProductItem)
	return v.Err()
}

// AggregateID returns the cart ID.
func (c AddProductItemToShoppingCart) AggregateID() string { return c.ShoppingCartID.String() }

// RemoveProductItemFromShoppingCart removes a quantity of a product from a cart.
type RemoveProductItemFromShoppingCart struct {
	cartflow.CommandBase
	ShoppingCartID uuid.UUID
	ProductItem    ProductItem
	IfMatch        string
}

// CommandType returns the command type name.
func (RemoveProductItemFromShoppingCart) CommandType() string {
	return "RemoveProductItemFromShoppingCart"
}

// Validate checks the command's input.
func (c RemoveProductItemFromShoppingCart) Validate() error {
	v := cartflow.NewMultiValidationError(c.CommandType())
	validateCart(v, c.ShoppingCartID, c.IfMatch)
	validateItem(v, c.ProductItem)
	return v.Err()
}

// AggregateID returns the cart ID.
func (c RemoveProductItemFromShoppingCart) AggregateID() string { return c.ShoppingCartID.String() }

// ConfirmShoppingCart confirms a cart.
type ConfirmShoppingCart struct {
	cartflow.CommandBase
	ShoppingCartID uuid.UUID
	IfMatch        string
}

// CommandType returns the command type name.
func (ConfirmShoppingCart) CommandType() string { return "ConfirmShoppingCart" }

// Validate checks the command's input.
func (c ConfirmShoppingCart) Validate() error {
	v := cartflow.NewMultiValidationError(c.CommandType())
	validateCart(v, c.ShoppingCartID, c.IfMatch)
	return v.Err()
}

// AggregateID returns the cart ID.
func (c ConfirmShoppingCart) AggregateID() string { return c.ShoppingCartID.String() }

// CancelShoppingCart cancels a cart.
type CancelShoppingCart struct {
	cartflow.CommandBase
	ShoppingCartID uuid.UUID
	IfMatch        string
}

// CommandType returns the command type name.
func (CancelShoppingCart) CommandType() string { return "CancelShoppingCart" }

// Validate checks the command's input.
func (c CancelShoppingCart) Validate() error {
	v := cartflow.NewMultiValidationError(c.CommandType())
	validateCart(v, c.ShoppingCartID, c.IfMatch)
	return v.Err()
}

// AggregateID returns the cart ID.
func (c CancelShoppingCart) AggregateID() string { return c.ShoppingCartID.String() }

func validateCart(v *cartflow.MultiValidationError, id uuid.UUID, ifMatch string) {
	if id == uuid.Nil {
		v.AddField("shoppingCartId", "is required")
	}
	if ifMatch != "" {
		if _, err := cartflow.FromToken(ifMatch); err != nil {
			v.AddField("ifMatch", "is not a valid token")
		}
	}
}

func validateItem(v *cartflow.MultiValidationError, item ProductItem) {
	if item.ProductID == uuid.Nil {
		v.AddField("productId", "is required")
	}
	if item.Quantity <= 0 {
		v.AddField("quantity", "must be positive")
	}
}

// Handlers returns the command handlers for every cart command, backed by s.
func (s *Service) Handlers() []cartflow.CommandHandler {
	return []cartflow.CommandHandler{
		cartflow.NewGenericHandler(func(ctx context.Context, cmd OpenShoppingCart) (cartflow.CommandResult, error) {
			id := cmd.ShoppingCartID
			if id == uuid.Nil {
				id = s.newID()
			}
			rev, err := s.open(ctx, id, cmd.ClientID, cartflow.MetadataFromContext(ctx, cmd))
			return result(id, rev, err)
		}),
		cartflow.NewGenericHandler(func(ctx context.Context, cmd AddProductItemToShoppingCart) (cartflow.CommandResult, error) {
			rev, err := s.addProductItem(ctx, cmd.ShoppingCartID, cmd.ProductItem, cmd.IfMatch, cartflow.MetadataFromContext(ctx, cmd))
			return result(cmd.ShoppingCartID, rev, err)
		}),
		cartflow.NewGenericHandler(func(ctx context.Context, cmd RemoveProductItemFromShoppingCart) (cartflow.CommandResult, error) {
			rev, err := s.removeProductItem(ctx, cmd.ShoppingCartID, cmd.ProductItem, cmd.IfMatch, cartflow.MetadataFromContext(ctx, cmd))
			return result(cmd.ShoppingCartID, rev, err)
		}),
		cartflow.NewGenericHandler(func(ctx context.Context, cmd ConfirmShoppingCart) (cartflow.CommandResult, error) {
			rev, err := s.confirm(ctx, cmd.ShoppingCartID, cmd.IfMatch, cartflow.MetadataFromContext(ctx, cmd))
			return result(cmd.ShoppingCartID, rev, err)
		}),
		cartflow.NewGenericHandler(func(ctx context.Context, cmd CancelShoppingCart) (cartflow.CommandResult, error) {
			rev, err := s.cancel(ctx, cmd.ShoppingCartID, cmd.IfMatch, cartflow.MetadataFromContext(ctx, cmd))
			return result(cmd.ShoppingCartID, rev, err)
		}),
	}
}

func result(id uuid.UUID, rev int64, err error) (cartflow.CommandResult, error) {
	if err != nil {
		return cartflow.CommandResult{}, err
	}
	return cartflow.NewCommandResult(id.String(), rev), nil
}

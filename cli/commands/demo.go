package commands

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/eventdriven/cartflow"
	"github.com/eventdriven/cartflow/cli/config"
	"github.com/eventdriven/cartflow/cli/styles"
	"github.com/eventdriven/cartflow/shoppingcart"
)

var (
	demoShoes  = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	demoTShirt = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")
)

func newDemoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted checkout against the configured store",
		Long: `Open a cart, add and remove products, confirm it, then show that a
stale ETag and a change to a confirmed cart are both rejected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			shoes, tshirt := demoProducts(rt.Config)
			const total = 7

			step := func(n int, msg string, c cartflow.Command) (cartflow.CommandResult, error) {
				result, err := rt.Dispatch(ctx, c)
				if err != nil {
					fmt.Fprintln(out, styles.FormatStep(n, total, msg+" "+styles.IconArrow+" "+styles.ErrorStyle.Render(describe(err))))
					return result, err
				}
				fmt.Fprintln(out, styles.FormatStep(n, total, msg+" "+styles.IconArrow+" "+styles.Highlight.Render(result.Token())))
				return result, nil
			}

			opened, err := step(1, "Open cart", shoppingcart.OpenShoppingCart{ClientID: uuid.New()})
			if err != nil {
				return err
			}
			cartID := uuid.MustParse(opened.AggregateID)

			added, err := step(2, "Add 2 x shoes", shoppingcart.AddProductItemToShoppingCart{
				ShoppingCartID: cartID,
				ProductItem:    shoppingcart.ProductItem{ProductID: shoes, Quantity: 2},
				IfMatch:        opened.Token(),
			})
			if err != nil {
				return err
			}

			current, err := step(3, "Add 1 x t-shirt", shoppingcart.AddProductItemToShoppingCart{
				ShoppingCartID: cartID,
				ProductItem:    shoppingcart.ProductItem{ProductID: tshirt, Quantity: 1},
				IfMatch:        added.Token(),
			})
			if err != nil {
				return err
			}

			// added.Token() is one revision behind by now.
			_, err = step(4, "Remove 1 x shoes with a stale ETag", shoppingcart.RemoveProductItemFromShoppingCart{
				ShoppingCartID: cartID,
				ProductItem:    shoppingcart.ProductItem{ProductID: shoes, Quantity: 1},
				IfMatch:        added.Token(),
			})
			if !errors.Is(err, cartflow.ErrPreconditionFailed) {
				return fmt.Errorf("expected a failed precondition, got %v", err)
			}

			current, err = step(5, "Remove 1 x shoes", shoppingcart.RemoveProductItemFromShoppingCart{
				ShoppingCartID: cartID,
				ProductItem:    shoppingcart.ProductItem{ProductID: shoes, Quantity: 1},
				IfMatch:        current.Token(),
			})
			if err != nil {
				return err
			}

			current, err = step(6, "Confirm", shoppingcart.ConfirmShoppingCart{ShoppingCartID: cartID, IfMatch: current.Token()})
			if err != nil {
				return err
			}

			_, err = step(7, "Add to the confirmed cart", shoppingcart.AddProductItemToShoppingCart{
				ShoppingCartID: cartID,
				ProductItem:    shoppingcart.ProductItem{ProductID: tshirt, Quantity: 1},
				IfMatch:        current.Token(),
			})
			if !errors.Is(err, cartflow.ErrInvalidOperation) {
				return fmt.Errorf("expected an invalid operation, got %v", err)
			}

			cart, token, err := rt.Service.Get(ctx, cartID)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			printCart(out, cart, token)
			return nil
		},
	}
}

// demoProducts picks products the configured price calculator can price.
func demoProducts(cfg *config.Config) (uuid.UUID, uuid.UUID) {
	if cfg.Pricing.Mode != config.PricingCatalog {
		return demoShoes, demoTShirt
	}

	var ids []uuid.UUID
	for raw := range cfg.Pricing.Catalog {
		if id, err := uuid.Parse(raw); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	switch len(ids) {
	case 0:
		return demoShoes, demoTShirt
	case 1:
		return ids[0], ids[0]
	default:
		return ids[0], ids[1]
	}
}

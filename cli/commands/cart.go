package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/eventdriven/cartflow"
	"github.com/eventdriven/cartflow/cli/styles"
	"github.com/eventdriven/cartflow/shoppingcart"
)

func newCartCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Open, change and inspect shopping carts",
		Long: `Run shopping cart commands against the configured event store.

Every command that changes a cart prints the cart's new ETag. Pass it back
with --if-match to make the next change conditional on nobody else having
changed the cart in between.

Examples:
  cartflow cart open --client 6f1c...
  cartflow cart add CART --product 0b6e... --quantity 2 --if-match 'W/"0"'
  cartflow cart show CART`,
	}

	cmd.AddCommand(newCartOpenCommand(a))
	cmd.AddCommand(newCartItemCommand(a, "add", "Add a product to a cart"))
	cmd.AddCommand(newCartItemCommand(a, "remove", "Remove a quantity of a product from a cart"))
	cmd.AddCommand(newCartCloseCommand(a, "confirm", "Confirm a cart"))
	cmd.AddCommand(newCartCloseCommand(a, "cancel", "Cancel a cart"))
	cmd.AddCommand(newCartShowCommand(a))

	return cmd
}

func newCartOpenCommand(a *app) *cobra.Command {
	var clientID, commandID string

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a new cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := uuid.New()
			if clientID != "" {
				parsed, err := parseID("client", clientID)
				if err != nil {
					return err
				}
				client = parsed
			}

			return a.dispatch(cmd, shoppingcart.OpenShoppingCart{CommandBase: commandBase(commandID), ClientID: client}, "Opened cart")
		},
	}

	cmd.Flags().StringVar(&clientID, "client", "", "Client ID (default: random)")
	addCommandIDFlag(cmd, &commandID)
	return cmd
}

func newCartItemCommand(a *app, verb, short string) *cobra.Command {
	var (
		productID string
		quantity  int
		ifMatch   string
		commandID string
	)

	cmd := &cobra.Command{
		Use:   verb + " CART_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cartID, err := parseID("cart", args[0])
			if err != nil {
				return err
			}
			product, err := parseID("product", productID)
			if err != nil {
				return err
			}
			item := shoppingcart.ProductItem{ProductID: product, Quantity: quantity}

			if verb == "add" {
				return a.dispatch(cmd, shoppingcart.AddProductItemToShoppingCart{
					CommandBase:    commandBase(commandID),
					ShoppingCartID: cartID, ProductItem: item, IfMatch: ifMatch,
				}, "Added "+strconv.Itoa(quantity)+" x "+productID)
			}
			return a.dispatch(cmd, shoppingcart.RemoveProductItemFromShoppingCart{
				CommandBase:    commandBase(commandID),
				ShoppingCartID: cartID, ProductItem: item, IfMatch: ifMatch,
			}, "Removed "+strconv.Itoa(quantity)+" x "+productID)
		},
	}

	cmd.Flags().StringVarP(&productID, "product", "p", "", "Product ID")
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "Quantity")
	cmd.Flags().StringVar(&ifMatch, "if-match", "", "Only apply if the cart is still at this ETag")
	addCommandIDFlag(cmd, &commandID)
	_ = cmd.MarkFlagRequired("product")
	return cmd
}

func newCartCloseCommand(a *app, verb, short string) *cobra.Command {
	var ifMatch, commandID string

	cmd := &cobra.Command{
		Use:   verb + " CART_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cartID, err := parseID("cart", args[0])
			if err != nil {
				return err
			}

			if verb == "confirm" {
				return a.dispatch(cmd, shoppingcart.ConfirmShoppingCart{CommandBase: commandBase(commandID), ShoppingCartID: cartID, IfMatch: ifMatch}, "Confirmed cart")
			}
			return a.dispatch(cmd, shoppingcart.CancelShoppingCart{CommandBase: commandBase(commandID), ShoppingCartID: cartID, IfMatch: ifMatch}, "Canceled cart")
		},
	}

	cmd.Flags().StringVar(&ifMatch, "if-match", "", "Only apply if the cart is still at this ETag")
	addCommandIDFlag(cmd, &commandID)
	return cmd
}

// addCommandIDFlag registers --command-id. Repeating a command with the same
// ID within one process replays its first result instead of applying it again.
func addCommandIDFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "command-id", "", "Client-chosen ID that makes retries of this command safe")
}

func commandBase(commandID string) cartflow.CommandBase {
	return cartflow.CommandBase{CommandID: commandID}
}

func newCartShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show CART_ID",
		Short: "Show a cart's current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cartID, err := parseID("cart", args[0])
			if err != nil {
				return err
			}

			rt, cleanup, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			cart, token, err := rt.Service.Get(cmd.Context(), cartID)
			if err != nil {
				return err
			}

			printCart(cmd.OutOrStdout(), cart, token)
			return nil
		},
	}
}

// dispatch sends cmd through the runtime's command bus and prints the
// resulting cart ID and ETag.
func (a *app) dispatch(cmd *cobra.Command, command cartflow.Command, done string) error {
	rt, cleanup, err := a.runtime(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := rt.Dispatch(cmd.Context(), command)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, styles.FormatSuccess(done))
	fmt.Fprintln(out, styles.FormatKeyValue("Cart", result.AggregateID))
	fmt.Fprintln(out, styles.FormatToken(result.Token()))
	return nil
}

func printCart(out io.Writer, cart shoppingcart.ShoppingCart, token string) {
	fmt.Fprintln(out, styles.Title.Render(styles.IconCart+" Cart "+cart.ID.String()))
	fmt.Fprintln(out, styles.FormatKeyValue("Client", cart.ClientID.String()))
	fmt.Fprintln(out, styles.FormatKeyValue("Status", "")+styles.StatusBadge(cart.Status.String()))
	fmt.Fprintln(out, styles.FormatKeyValue("Opened", cart.OpenedAt.Format("2006-01-02 15:04:05")))
	if cart.ConfirmedAt != nil {
		fmt.Fprintln(out, styles.FormatKeyValue("Confirmed", cart.ConfirmedAt.Format("2006-01-02 15:04:05")))
	}
	if cart.CanceledAt != nil {
		fmt.Fprintln(out, styles.FormatKeyValue("Canceled", cart.CanceledAt.Format("2006-01-02 15:04:05")))
	}
	fmt.Fprintln(out, styles.FormatToken(token))
	fmt.Fprintln(out)

	items := cart.ProductItemsList()
	if len(items) == 0 {
		fmt.Fprintln(out, styles.Muted.Render("  (no products)"))
		return
	}

	rows := make([][]string, 0, len(items)+1)
	for _, item := range items {
		rows = append(rows, []string{
			item.ProductID.String(),
			strconv.Itoa(item.Quantity),
			item.UnitPrice.StringFixed(2),
			item.TotalAmount().StringFixed(2),
		})
	}
	rows = append(rows, []string{"", "", "Total", cart.TotalAmount().StringFixed(2)})
	fmt.Fprintln(out, styles.Table([]string{"Product", "Qty", "Unit price", "Amount"}, rows))
}

func parseID(what, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, cartflow.NewValidationError("cli", what, "is not a valid UUID")
	}
	return id, nil
}


package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/eventdriven/cartflow"
	"github.com/eventdriven/cartflow/cli/styles"
)

func newStreamCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Inspect the event stream behind a cart",
		Long: `Inspect the raw events stored for a cart.

STREAM is either a cart ID or a full stream ID such as shopping_cart-<uuid>.

Examples:
  cartflow stream show 0b6e...            # Events with payloads
  cartflow stream info 0b6e...            # Revision and timestamps
  cartflow stream export 0b6e... -o x.json`,
	}

	cmd.AddCommand(newStreamShowCommand(a))
	cmd.AddCommand(newStreamInfoCommand(a))
	cmd.AddCommand(newStreamExportCommand(a))

	return cmd
}

// streamID maps a cart ID to its stream and passes anything else through.
func streamID(rt *Runtime, arg string) string {
	if id, err := uuid.Parse(arg); err == nil {
		return rt.Carts.StreamName(id.String())
	}
	return arg
}

func newStreamShowCommand(a *app) *cobra.Command {
	var from int64

	cmd := &cobra.Command{
		Use:     "show STREAM",
		Short:   "Show events in a stream",
		Aliases: []string{"events"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			id := streamID(rt, args[0])
			events, err := rt.Store.ReadFrom(cmd.Context(), id, from)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintln(out, styles.FormatInfo(fmt.Sprintf("No events in stream '%s'", id)))
				return nil
			}

			fmt.Fprintln(out, styles.Title.Render(fmt.Sprintf("%s Stream: %s", styles.IconStream, id)))
			for _, e := range events {
				printEvent(out, e)
			}
			return nil
		},
	}

	cmd.Flags().Int64VarP(&from, "from", "f", 0, "Start from revision")
	return cmd
}

func printEvent(out io.Writer, e cartflow.Event) {
	fmt.Fprintln(out, styles.Subtitle.Render(fmt.Sprintf("#%d %s", e.Revision, e.Type)))
	fmt.Fprintln(out, styles.Muted.Render("  ID:   "+e.ID))
	fmt.Fprintln(out, styles.Muted.Render("  Time: "+e.Timestamp.Format(time.RFC3339)))
	if e.Metadata.CorrelationID != "" {
		fmt.Fprintln(out, styles.Muted.Render("  Correlation: "+e.Metadata.CorrelationID))
	}

	payload, err := json.MarshalIndent(e.Data, "  ", "  ")
	if err != nil {
		payload = []byte(fmt.Sprintf("%+v", e.Data))
	}
	fmt.Fprintln(out, "  "+string(payload))
	fmt.Fprintln(out)
}

func newStreamInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info STREAM",
		Short: "Show stream revision and timestamps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			id := streamID(rt, args[0])
			info, err := rt.Store.StreamInfo(cmd.Context(), id)
			if errors.Is(err, cartflow.ErrStreamNotFound) {
				return cartflow.NewNotFoundError(id)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, styles.FormatKeyValue("Stream", info.StreamID))
			fmt.Fprintln(out, styles.FormatKeyValue("Category", info.Category))
			fmt.Fprintln(out, styles.FormatKeyValue("Events", fmt.Sprintf("%d", info.EventCount)))
			fmt.Fprintln(out, styles.FormatKeyValue("Revision", fmt.Sprintf("%d", info.Revision)))
			fmt.Fprintln(out, styles.FormatToken(cartflow.ToToken(info.Revision)))
			fmt.Fprintln(out, styles.FormatKeyValue("Created", info.CreatedAt.Format(time.RFC3339)))
			fmt.Fprintln(out, styles.FormatKeyValue("Updated", info.UpdatedAt.Format(time.RFC3339)))
			return nil
		},
	}
}

type exportedEvent struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Revision  int64             `json:"revision"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  cartflow.Metadata `json:"metadata"`
	Data      interface{}       `json:"data"`
}

func newStreamExportCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export STREAM",
		Short: "Export stream events to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			id := streamID(rt, args[0])
			result, err := rt.Store.Read(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !result.Exists {
				return cartflow.NewNotFoundError(id)
			}

			exported := make([]exportedEvent, len(result.Events))
			for i, e := range result.Events {
				exported[i] = exportedEvent{
					ID: e.ID, Type: e.Type, Revision: e.Revision,
					Timestamp: e.Timestamp, Metadata: e.Metadata, Data: e.Data,
				}
			}

			data, err := json.MarshalIndent(exported, "", "  ")
			if err != nil {
				return err
			}

			if output == "" {
				output = id + ".json"
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), styles.FormatSuccess(fmt.Sprintf("Exported %d events to %s", len(exported), output)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: <stream>.json)")
	return cmd
}

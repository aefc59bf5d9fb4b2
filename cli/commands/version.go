package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/eventdriven/cartflow"
	"github.com/eventdriven/cartflow/cli/styles"
)

// NewVersionCommand creates the version command
func NewVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, styles.Banner())
			fmt.Fprintln(out)
			fmt.Fprintln(out, styles.Table([]string{"", ""}, [][]string{
				{"Version", version},
				{"Library", cartflow.Version()},
				{"Commit", commit},
				{"Built", date},
				{"Go", runtime.Version()},
				{"OS/Arch", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)},
			}))
			return nil
		},
	}
}

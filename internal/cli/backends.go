package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/bucketoffset/backend"
)

// NewBackendsCommand creates the backends command, which lists registered
// backends without opening a device.
func NewBackendsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "backends",
		Short:         "List registered backends",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			for _, name := range backend.Available() {
				status := "available"
				if a := backend.Get(name); a == nil {
					status = "not built"
				}
				marker := " "
				if name == rootOpts.Config.Backend {
					marker = "*"
				}
				fmt.Fprintf(w, "%s %-10s %s\n", marker, name, status)
			}
			return nil
		},
	}
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <name>...",
		Short: "Cancel every queued job with the given names",
		Long: "Cancel pending and running jobs by name. Names do not have to be in the\n" +
			"manifest; every queue record carrying the name is cancelled.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				n, err := a.env.CancelByName(cmd.Context(), name)
				if err != nil {
					return fmt.Errorf("cancel %s: %w", name, err)
				}
				if n == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: not in the queue\n", name)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: cancelled %d job(s)\n", name, n)
			}
			return nil
		},
	}
}

package cli

import (
	"fmt"
	"time"

	"github.com/me/slurmjm/pkg/model"
	"github.com/spf13/cobra"
)

func newPartitionCmd(a *app) *cobra.Command {
	var buffer float64

	cmd := &cobra.Command{
		Use:   "partition <duration>",
		Short: "Show the time limit and partition for an expected runtime",
		Example: "  slurmjm partition 4h\n" +
			"  slurmjm partition 90m --buffer 0.5",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.ParseDuration(args[0])
			if err != nil {
				return model.NewValidationError("partition", "invalid duration %q", args[0])
			}
			if !cmd.Flags().Changed("buffer") {
				buffer = a.cfg.Buffer
			}

			directives, err := a.env.SlurmTimeAndPartition(d, buffer)
			if err != nil {
				return err
			}
			for _, k := range directives.Keys() {
				v, _ := directives.Get(k)
				fmt.Fprintf(cmd.OutOrStdout(), "--%s=%s\n", k, v)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&buffer, "buffer", 0, "Safety margin as a fraction of the runtime (default from config)")
	return cmd
}

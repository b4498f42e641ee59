package cli

import (
	"github.com/me/slurmjm/internal/batch"
	"github.com/spf13/cobra"
)

func newScriptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "script <job>",
		Short: "Print the batch script a job would be submitted with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := a.selectJobs(args)
			if err != nil {
				return err
			}
			d, err := a.env.Descriptor(jobs[0])
			if err != nil {
				return err
			}
			data, err := batch.Render(d)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

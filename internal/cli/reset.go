package cli

import (
	"fmt"

	"github.com/me/slurmjm/pkg/model"
	"github.com/spf13/cobra"
)

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <job>...",
		Short: "Remove a job's outputs, logs and script",
		Long:  "Remove what a job's runs left behind. Jobs still in the queue are refused; cancel them first.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := a.selectJobs(args)
			if err != nil {
				return err
			}
			if err := a.env.Refresh(cmd.Context()); err != nil {
				return err
			}
			for _, j := range jobs {
				if j.InProgress() {
					return &model.Error{Kind: model.ErrConflict, Op: "reset " + j.Name(), Message: "job is still in the queue"}
				}
				if err := j.Reset(); err != nil {
					return err
				}
				a.logger.Info("job reset", "job", j.Name())
				fmt.Fprintf(cmd.OutOrStdout(), "%s: reset\n", j.Name())
			}
			return nil
		},
	}
}

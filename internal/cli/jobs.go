package cli

import (
	"fmt"

	"github.com/me/slurmjm/pkg/model"
	"github.com/spf13/cobra"
)

func newJobsCmd(a *app) *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List the user's jobs as reported by squeue",
		Long: "List every queue record of the configured user, manifest or not.\n" +
			"With --state, print only the names of jobs in that state.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if state != "" {
				if err := a.env.Refresh(cmd.Context()); err != nil {
					return err
				}
				var names []string
				var err error
				switch model.QueueState(state) {
				case model.QueueStatePending:
					names, err = a.env.PendingJobs(cmd.Context())
				case model.QueueStateRunning:
					names, err = a.env.RunningJobs(cmd.Context())
				case model.QueueStateOther:
					names, err = a.env.UnknownJobs(cmd.Context())
				default:
					return model.NewValidationError("jobs", "unknown state %q (want pending, running or other)", state)
				}
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(out, n)
				}
				return nil
			}

			records, err := a.env.JobsInfo(cmd.Context())
			if err != nil {
				return err
			}
			const row = "%-10s  %-24s  %-12s  %-10s  %-10s  %-12s  %s\n"
			fmt.Fprintf(out, row, "JOBID", "NAME", "STATE", "PARTITION", "ELAPSED", "LIMIT", "REASON")
			for _, r := range records {
				fmt.Fprintf(out, row,
					r.JobID, r.Name, dash(r.RawState), dash(r.Partition), dash(r.Elapsed), dash(r.TimeLimit), dash(r.Reason))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Print names of jobs in this state (pending, running, other)")
	return cmd
}

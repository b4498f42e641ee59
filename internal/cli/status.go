package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status [job...]",
		Short: "Show the status of manifest jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := a.selectJobs(args)
			if err != nil {
				return err
			}
			if err := a.env.Refresh(cmd.Context()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			const row = "%-24s  %-12s  %-10s  %-10s  %-10s  %s\n"
			fmt.Fprintf(out, row, "NAME", "STATUS", "JOBID", "PARTITION", "ELAPSED", "REASON")
			for _, j := range jobs {
				status, err := a.env.Status(cmd.Context(), j)
				if err != nil {
					return err
				}
				rec, _ := a.env.Record(j.Name())
				fmt.Fprintf(out, row,
					j.Name(), status, dash(rec.JobID), dash(rec.Partition), dash(rec.Elapsed), dash(rec.Reason))
			}
			return nil
		},
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

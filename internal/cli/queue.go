package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/me/slurmjm/internal/environment"
	"github.com/me/slurmjm/internal/scriptjob"
	"github.com/me/slurmjm/pkg/model"
	"github.com/spf13/cobra"
)

func newQueueCmd(a *app) *cobra.Command {
	var force, allReady bool

	cmd := &cobra.Command{
		Use:   "queue [job...]",
		Short: "Submit jobs that are not yet queued or complete",
		Long: "Submit the named jobs, or with --all-ready every job whose dependencies are\n" +
			"complete. A job already pending or running is never submitted twice.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !allReady {
				return model.NewValidationError("queue", "name at least one job or pass --all-ready")
			}
			if len(args) > 0 && allReady {
				return model.NewValidationError("queue", "--all-ready cannot be combined with job names")
			}

			var opts []environment.QueueOption
			if force {
				opts = append(opts, environment.WithForce())
			}

			if allReady {
				m, err := a.loadManifest()
				if err != nil {
					return err
				}
				_, err = queueReady(cmd.Context(), a.env, m, cmd.OutOrStdout(), force)
				return err
			}

			jobs, err := a.selectJobs(args)
			if err != nil {
				return err
			}
			var errs []error
			for _, j := range jobs {
				if err := queueOne(cmd.Context(), a.env, j, cmd.OutOrStdout(), opts...); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Cancel, reset and resubmit jobs that are queued, complete or failed")
	cmd.Flags().BoolVar(&allReady, "all-ready", false, "Queue every job whose dependencies are complete")
	return cmd
}

func queueOne(ctx context.Context, env *environment.Environment, j *scriptjob.ScriptJob, out io.Writer, opts ...environment.QueueOption) error {
	res, err := env.Queue(ctx, j, opts...)
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", j.Name(), err)
		return err
	}
	switch res.Outcome {
	case environment.OutcomeSubmitted:
		fmt.Fprintf(out, "%s: submitted as job %s\n", j.Name(), res.JobID)
	case environment.OutcomeAlreadyQueued:
		fmt.Fprintf(out, "%s: already queued as job %s\n", j.Name(), res.JobID)
	case environment.OutcomeAlreadyComplete:
		fmt.Fprintf(out, "%s: already complete\n", j.Name())
	}
	return nil
}

// queueReady submits every manifest job that is ready and has nothing to
// show yet: not complete, not in progress and not failed. With force,
// failed jobs are included and reset. It returns the number submitted.
func queueReady(ctx context.Context, env *environment.Environment, m *scriptjob.Manifest, out io.Writer, force bool) (int, error) {
	if err := env.Refresh(ctx); err != nil {
		return 0, err
	}
	var opts []environment.QueueOption
	if force {
		opts = append(opts, environment.WithForce())
	}

	submitted := 0
	var errs []error
	for _, j := range m.Jobs() {
		if j.Complete() || j.InProgress() || !j.Ready() {
			continue
		}
		if j.Failed() && !force {
			fmt.Fprintf(out, "%s: %s, skipped (use --force to requeue)\n", j.Name(), model.JobStatusFailed)
			continue
		}
		if err := queueOne(ctx, env, j, out, opts...); err != nil {
			errs = append(errs, err)
			continue
		}
		submitted++
	}
	return submitted, errors.Join(errs...)
}

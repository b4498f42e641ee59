package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/me/slurmjm/internal/environment"
	"github.com/me/slurmjm/internal/scriptjob"
	"github.com/me/slurmjm/pkg/model"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	var schedule string
	var force, once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Periodically submit jobs as their dependencies complete",
		Long: "Refresh the queue on a cron schedule and submit every job that became\n" +
			"ready. Runs until interrupted or until all jobs are complete.",
		Example: "  slurmjm watch --schedule '@every 5m'\n" +
			"  slurmjm watch --schedule '*/10 * * * *' --force",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadManifest()
			if err != nil {
				return err
			}
			w := &watcher{env: a.env, manifest: m, out: cmd.OutOrStdout(), force: force, logger: a.logger.With("component", "watch")}

			if once {
				_, err := w.reconcile(cmd.Context())
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return w.run(ctx, schedule)
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "@every 5m", "Cron schedule (standard five fields or @every <duration>)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Also requeue failed jobs")
	cmd.Flags().BoolVar(&once, "once", false, "Run one reconcile cycle and exit")
	return cmd
}

// watcher runs reconcile cycles. Cycles never overlap: cron skips a tick
// while the previous one is still running.
type watcher struct {
	env      *environment.Environment
	manifest *scriptjob.Manifest
	out      io.Writer
	force    bool
	logger   *slog.Logger
}

func (w *watcher) run(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	_, err := c.AddFunc(schedule, func() {
		done, err := w.reconcile(ctx)
		if err != nil {
			w.logger.Error("reconcile failed", "error", err)
			return
		}
		if done {
			w.logger.Info("all jobs complete")
			cancel()
		}
	})
	if err != nil {
		return model.NewValidationError("watch", "invalid schedule %q: %v", schedule, err)
	}

	w.logger.Info("watching", "schedule", schedule, "jobs", len(w.manifest.Jobs()))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// reconcile refreshes the queue and submits ready jobs. It reports whether
// every manifest job is complete.
func (w *watcher) reconcile(ctx context.Context) (bool, error) {
	cycle := uuid.New().String()[:8]
	log := w.logger.With("cycle", cycle)
	start := time.Now()

	n, err := queueReady(ctx, w.env, w.manifest, w.out, w.force)
	if err != nil {
		return false, err
	}

	complete := 0
	for _, j := range w.manifest.Jobs() {
		if j.Complete() {
			complete++
		}
	}
	log.Info("reconciled",
		"submitted", n,
		"complete", complete,
		"total", len(w.manifest.Jobs()),
		"duration", time.Since(start).String(),
	)
	return complete == len(w.manifest.Jobs()), nil
}

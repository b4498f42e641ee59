// Package cli implements the slurmjm command line.
package cli

import (
	"log/slog"
	"os"

	"github.com/me/slurmjm/internal/config"
	"github.com/me/slurmjm/internal/environment"
	"github.com/me/slurmjm/internal/logging"
	"github.com/me/slurmjm/internal/metrics"
	"github.com/me/slurmjm/internal/scriptjob"
	"github.com/me/slurmjm/internal/slurm"
	"github.com/me/slurmjm/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// SchedulerFactory builds the scheduler backend from the configured binaries.
type SchedulerFactory func(bins slurm.Binaries, logger *slog.Logger) environment.Scheduler

func slurmScheduler(bins slurm.Binaries, logger *slog.Logger) environment.Scheduler {
	return slurm.NewClient(bins, logger)
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	flagConfig    string
	flagManifest  string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	newScheduler SchedulerFactory

	logger   *slog.Logger
	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *metrics.Collector
	env      *environment.Environment
	manifest *scriptjob.Manifest
}

// defaultConfigPath returns SLURMJM_CONFIG, or slurmjm.yaml when that file exists.
func defaultConfigPath() string {
	if p := os.Getenv("SLURMJM_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("slurmjm.yaml"); err == nil {
		return "slurmjm.yaml"
	}
	return ""
}

// NewRootCmd creates the root cobra command for the slurmjm CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(slurmScheduler)
}

func newRootCmd(factory SchedulerFactory) *cobra.Command {
	a := &app{newScheduler: factory}

	root := &cobra.Command{
		Use:   "slurmjm",
		Short: "slurmjm - Slurm batch job lifecycle manager",
		Long: "slurmjm submits the jobs of a manifest to Slurm exactly once, reports their\n" +
			"status from completion evidence and the queue, and cancels or resets them.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&a.flagConfig, "config", "c", defaultConfigPath(), "Config file (or SLURMJM_CONFIG env)")
	root.PersistentFlags().StringVarP(&a.flagManifest, "manifest", "m", "", "Job manifest (overrides the config file)")
	root.PersistentFlags().BoolVar(&a.flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&a.flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.flagLogFormat, "log-format", "", "Log format (text, json)")

	root.AddCommand(
		newQueueCmd(a),
		newStatusCmd(a),
		newJobsCmd(a),
		newCancelCmd(a),
		newPartitionCmd(a),
		newScriptCmd(a),
		newResetCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
	)
	return root
}

// setup loads the configuration and builds the logger and the Environment.
// Flags win over the config file and the environment.
func (a *app) setup() error {
	cfg, err := config.Load(a.flagConfig)
	if err != nil {
		return err
	}
	if a.flagLogLevel != "" {
		cfg.LogLevel = a.flagLogLevel
	}
	if a.flagDebug {
		cfg.LogLevel = "debug"
	}
	if a.flagLogFormat != "" {
		cfg.LogFormat = a.flagLogFormat
	}
	if a.flagManifest != "" {
		cfg.Manifest = a.flagManifest
	}

	envCfg, err := cfg.EnvironmentConfig()
	if err != nil {
		return err
	}
	a.logger, err = logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.NewCollector(a.registry)
	sched := a.newScheduler(cfg.Binaries, a.logger)
	a.env = environment.New(envCfg, sched, a.logger, environment.WithMetrics(a.metrics))
	return nil
}

// loadManifest reads the job manifest on first use.
func (a *app) loadManifest() (*scriptjob.Manifest, error) {
	if a.manifest != nil {
		return a.manifest, nil
	}
	m, err := scriptjob.Load(a.cfg.Manifest, a.env)
	if err != nil {
		return nil, err
	}
	a.manifest = m
	a.logger.Debug("manifest loaded", "path", m.Path, "jobs", len(m.Jobs()))
	return m, nil
}

// selectJobs resolves names against the manifest; no names selects all jobs.
func (a *app) selectJobs(names []string) ([]*scriptjob.ScriptJob, error) {
	m, err := a.loadManifest()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return m.Jobs(), nil
	}
	jobs := make([]*scriptjob.ScriptJob, 0, len(names))
	for _, n := range names {
		j, ok := m.Get(n)
		if !ok {
			return nil, model.NewValidationError("select jobs", "job %q is not in %s", n, m.Path)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

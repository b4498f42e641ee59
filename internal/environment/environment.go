// Package environment mediates between job objects and the Slurm scheduler.
//
// An Environment owns the acting user, the queue snapshot and the partition
// table. It does no locking of its own: callers that share one instance
// between goroutines must serialise their calls.
package environment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/slurmjm/internal/batch"
	"github.com/me/slurmjm/internal/job"
	"github.com/me/slurmjm/internal/metrics"
	"github.com/me/slurmjm/internal/queue"
	"github.com/me/slurmjm/pkg/model"
)

// Scheduler is the external workload manager. *slurm.Client implements it.
type Scheduler interface {
	Submit(ctx context.Context, scriptPath string) (jobID string, err error)
	Query(ctx context.Context, user string) ([]model.QueueRecord, error)
	Cancel(ctx context.Context, jobID string) error
}

// Config holds the per-environment settings.
type Config struct {
	User       string
	Partitions []Partition
	// Buffer is the fractional safety margin added to a job's runtime
	// when deriving its time directive.
	Buffer float64
	// Defaults are directives applied to every job unless it sets them itself.
	Defaults batch.Directives
}

// Environment is the single mediator between jobs and the scheduler.
type Environment struct {
	cfg     Config
	sched   Scheduler
	cache   *queue.Cache
	metrics *metrics.Collector
	logger  *slog.Logger
}

// Option configures optional Environment dependencies.
type Option func(*Environment)

// WithMetrics records queue, cancel and refresh metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Environment) {
		e.metrics = c
	}
}

// New creates an Environment. An empty partition table falls back to
// DefaultPartitions.
func New(cfg Config, sched Scheduler, logger *slog.Logger, opts ...Option) *Environment {
	if len(cfg.Partitions) == 0 {
		cfg.Partitions = DefaultPartitions()
	}
	e := &Environment{
		cfg:    cfg,
		sched:  sched,
		cache:  queue.NewCache(sched, logger),
		logger: logger.With("component", "environment", "user", cfg.User),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// User returns the username all queue queries are scoped to.
func (e *Environment) User() string {
	return e.cfg.User
}

// Partitions returns the configured partition table.
func (e *Environment) Partitions() []Partition {
	out := make([]Partition, len(e.cfg.Partitions))
	copy(out, e.cfg.Partitions)
	return out
}

// Refresh re-reads the queue from squeue. On failure the previous snapshot stays.
func (e *Environment) Refresh(ctx context.Context) error {
	start := time.Now()
	err := e.cache.Refresh(ctx, e.cfg.User)
	e.metrics.RecordRefresh(err == nil, time.Since(start).Seconds())
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	for _, r := range e.cache.Records() {
		counts[r.State.String()]++
	}
	e.metrics.SetQueueRecords(counts)
	return nil
}

// Invalidate drops the queue snapshot; the next query refreshes it.
func (e *Environment) Invalidate() {
	e.cache.Invalidate()
}

// RefreshedAt returns when the snapshot was last refreshed, zero if empty.
func (e *Environment) RefreshedAt() time.Time {
	return e.cache.RefreshedAt()
}

func (e *Environment) ensureFresh(ctx context.Context) error {
	if e.cache.Populated() {
		return nil
	}
	return e.Refresh(ctx)
}

// InQueue reports whether a pending or running record carries name.
// It reads the current snapshot only and never calls squeue.
func (e *Environment) InQueue(name string) bool {
	for _, r := range e.cache.LookupAll(name) {
		if r.InProgress() {
			return true
		}
	}
	return false
}

// QueueOutcome tells the caller what Queue did.
type QueueOutcome int

const (
	OutcomeSubmitted QueueOutcome = iota
	OutcomeAlreadyQueued
	OutcomeAlreadyComplete
)

func (o QueueOutcome) String() string {
	switch o {
	case OutcomeSubmitted:
		return metrics.OutcomeSubmitted
	case OutcomeAlreadyQueued:
		return metrics.OutcomeAlreadyQueued
	case OutcomeAlreadyComplete:
		return metrics.OutcomeAlreadyComplete
	}
	return fmt.Sprintf("QueueOutcome(%d)", int(o))
}

// QueueResult is returned by Queue.
type QueueResult struct {
	Outcome QueueOutcome
	JobID   string // scheduler id of the submitted or already queued job
}

type queueOptions struct {
	force bool
}

// QueueOption configures a single Queue call.
type QueueOption func(*queueOptions)

// WithForce requeues a job that is in progress, complete or failed:
// in-progress records are cancelled and the job is reset first.
func WithForce() QueueOption {
	return func(o *queueOptions) {
		o.force = true
	}
}

// Queue submits j unless it is already queued or complete.
//
// A job whose name is already pending or running is not submitted again.
// Blocked, not-ready and failed jobs are refused with a CONFLICT error.
// Errors from the job's own Setup or Reset are returned unmodified.
func (e *Environment) Queue(ctx context.Context, j job.Job, opts ...QueueOption) (QueueResult, error) {
	var o queueOptions
	for _, opt := range opts {
		opt(&o)
	}

	res, err := e.queue(ctx, j, o)
	if err != nil {
		e.metrics.RecordQueue(metrics.OutcomeError)
		return res, err
	}
	e.metrics.RecordQueue(res.Outcome.String())
	return res, nil
}

func (e *Environment) queue(ctx context.Context, j job.Job, o queueOptions) (QueueResult, error) {
	name := j.Name()
	log := e.logger.With("job", name)

	if err := e.ensureFresh(ctx); err != nil {
		return QueueResult{}, err
	}

	reset := false
	if j.InProgress() {
		if !o.force {
			rec, _ := e.record(name)
			log.Info("job already queued", "job_id", rec.JobID)
			return QueueResult{Outcome: OutcomeAlreadyQueued, JobID: rec.JobID}, nil
		}
		if _, err := e.CancelByName(ctx, name); err != nil {
			return QueueResult{}, err
		}
		reset = true
	} else if j.Complete() {
		if !o.force {
			log.Info("job already complete")
			return QueueResult{Outcome: OutcomeAlreadyComplete}, nil
		}
		reset = true
	} else if j.Failed() && o.force {
		reset = true
	}
	if reset {
		log.Info("resetting job before requeue")
		if err := j.Reset(); err != nil {
			return QueueResult{}, err
		}
	}

	if j.Blocked() {
		return QueueResult{}, fmt.Errorf("queue %s: %w", name, model.ErrJobBlocked)
	}
	if !j.Ready() {
		return QueueResult{}, fmt.Errorf("queue %s: %w", name, model.ErrJobNotReady)
	}
	if j.Failed() {
		return QueueResult{}, fmt.Errorf("queue %s: %w", name, model.ErrJobFailed)
	}

	if err := j.Setup(); err != nil {
		return QueueResult{}, err
	}

	d, err := e.Descriptor(j)
	if err != nil {
		return QueueResult{}, err
	}
	if err := batch.Write(d); err != nil {
		return QueueResult{}, err
	}

	id, err := e.sched.Submit(ctx, d.ScriptPath)
	if err != nil {
		log.Error("submission failed", "script", d.ScriptPath, "error", err)
		return QueueResult{}, err
	}

	e.cache.Insert(model.QueueRecord{
		JobID:    id,
		Name:     name,
		State:    model.QueueStatePending,
		RawState: "PENDING",
	})
	log.Info("job queued", "job_id", id, "script", d.ScriptPath)
	return QueueResult{Outcome: OutcomeSubmitted, JobID: id}, nil
}

// Descriptor builds the submission descriptor for j without writing it.
// Configured defaults come first, then time and partition derived from a
// Timed job's runtime, then the job's own directives, which always win.
func (e *Environment) Descriptor(j job.Job) (*batch.Descriptor, error) {
	defaults := e.cfg.Defaults.Clone()
	if t, ok := j.(job.Timed); ok && t.Runtime() > 0 {
		tp, err := e.SlurmTimeAndPartition(t.Runtime(), e.cfg.Buffer)
		if err != nil {
			return nil, err
		}
		defaults.Merge(tp)
	}
	return batch.Build(defaults, j.SlurmArgs(), j.SlurmOpts(), j.SlurmScriptPath(), j.SlurmCommand())
}

// CancelJob cancels j if it is in progress. It returns the number of
// scheduler jobs cancelled; zero means there was nothing to cancel.
func (e *Environment) CancelJob(ctx context.Context, j job.Job) (int, error) {
	if err := e.ensureFresh(ctx); err != nil {
		return 0, err
	}
	if !j.InProgress() {
		e.logger.Debug("nothing to cancel", "job", j.Name())
		return 0, nil
	}
	return e.CancelByName(ctx, j.Name())
}

// CancelByName cancels every pending or running queue record named name.
// Several records share a name only if they were queued outside this
// Environment; all of them are cancelled. Finished records still listed by
// squeue are left alone. No match is not an error.
func (e *Environment) CancelByName(ctx context.Context, name string) (int, error) {
	if err := e.ensureFresh(ctx); err != nil {
		return 0, err
	}

	var records []model.QueueRecord
	for _, r := range e.cache.LookupAll(name) {
		if r.InProgress() {
			records = append(records, r)
		}
	}
	if len(records) == 0 {
		e.logger.Debug("nothing to cancel", "job", name)
		return 0, nil
	}

	n := 0
	defer func() {
		e.metrics.RecordCancel(n)
		if n > 0 {
			e.cache.Invalidate()
		}
	}()
	for _, r := range records {
		if err := e.sched.Cancel(ctx, r.JobID); err != nil {
			return n, err
		}
		n++
		e.logger.Info("job cancelled", "job", name, "job_id", r.JobID)
	}
	return n, nil
}

// InProgressJobs refreshes the snapshot and returns the pending and
// running records in the order squeue reported them.
func (e *Environment) InProgressJobs(ctx context.Context) ([]model.QueueRecord, error) {
	if err := e.Refresh(ctx); err != nil {
		return nil, err
	}
	var out []model.QueueRecord
	for _, r := range e.cache.Records() {
		if r.InProgress() {
			out = append(out, r)
		}
	}
	return out, nil
}

// JobsInfo refreshes the snapshot and returns every record, including
// those in states other than pending or running.
func (e *Environment) JobsInfo(ctx context.Context) ([]model.QueueRecord, error) {
	if err := e.Refresh(ctx); err != nil {
		return nil, err
	}
	return e.cache.Records(), nil
}

// PendingJobs returns the names of pending jobs from the current snapshot.
func (e *Environment) PendingJobs(ctx context.Context) ([]string, error) {
	return e.namesIn(ctx, model.QueueStatePending)
}

// RunningJobs returns the names of running jobs from the current snapshot.
func (e *Environment) RunningJobs(ctx context.Context) ([]string, error) {
	return e.namesIn(ctx, model.QueueStateRunning)
}

// UnknownJobs returns the names of jobs in any other state.
func (e *Environment) UnknownJobs(ctx context.Context) ([]string, error) {
	return e.namesIn(ctx, model.QueueStateOther)
}

func (e *Environment) namesIn(ctx context.Context, state model.QueueState) ([]string, error) {
	if err := e.ensureFresh(ctx); err != nil {
		return nil, err
	}
	var names []string
	for _, r := range e.cache.Records() {
		if r.State == state {
			names = append(names, r.Name)
		}
	}
	return names, nil
}

// Status derives the current status of j.
func (e *Environment) Status(ctx context.Context, j job.Job) (model.JobStatus, error) {
	if err := e.ensureFresh(ctx); err != nil {
		return "", err
	}
	rec, ok := e.record(j.Name())
	return job.Status(j, rec, ok), nil
}

// Record returns the snapshot record for name, preferring one in progress.
func (e *Environment) Record(name string) (model.QueueRecord, bool) {
	return e.record(name)
}

func (e *Environment) record(name string) (model.QueueRecord, bool) {
	records := e.cache.LookupAll(name)
	for _, r := range records {
		if r.InProgress() {
			return r, true
		}
	}
	if len(records) > 0 {
		return records[0], true
	}
	return model.QueueRecord{}, false
}

// SlurmTimeAndPartition inflates duration by buffer and picks the smallest
// configured partition whose limit accommodates it.
func (e *Environment) SlurmTimeAndPartition(duration time.Duration, buffer float64) (batch.Directives, error) {
	return TimeAndPartition(e.cfg.Partitions, duration, buffer)
}

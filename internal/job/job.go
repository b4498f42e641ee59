// Package job defines what any batch job must declare about itself.
//
// The core never inspects concrete job types. Dependencies are not modelled
// as a graph either: each job answers Blocked() by consulting whatever
// upstream jobs it was constructed with.
package job

import (
	"time"

	"github.com/me/slurmjm/internal/batch"
	"github.com/me/slurmjm/pkg/model"
)

// Job is the contract every job kind implements.
type Job interface {
	// Name is unique within an Environment and is what squeue reports.
	// Slurm truncates long names in some output formats; keep names short.
	Name() string

	// Complete reports whether all completion evidence is present.
	// It must be cheap and side-effect free; it is re-evaluated on every query.
	Complete() bool

	// Ready reports whether the job may be submitted now.
	// Most implementations return DefaultReady(j).
	Ready() bool

	// Blocked reports whether unmet prerequisites prevent submission.
	Blocked() bool

	// Failed reports whether the job ran but did not complete and is no
	// longer in the queue. A queued or running job is never failed.
	Failed() bool

	// InProgress reports whether the job's name is in its Tracker's queue snapshot.
	InProgress() bool

	// Setup materialises local state needed by the job. It is idempotent.
	Setup() error

	// Reset removes everything Setup and the job's run created. It is
	// idempotent and succeeds when there is nothing to remove.
	Reset() error

	SlurmArgs() batch.Directives
	SlurmOpts() []string
	SlurmScriptPath() string
	SlurmCommand() string
}

// Tracker is the view of live scheduler state a job consults for InProgress.
type Tracker interface {
	InQueue(name string) bool
}

// Timed is implemented by jobs that know how long they need. The
// Environment derives default time and partition directives from it.
type Timed interface {
	Runtime() time.Duration
}

// DefaultReady is the default readiness rule: a job is ready when not blocked.
func DefaultReady(j Job) bool {
	return !j.Blocked()
}

// Status derives a job's status from its predicates and its queue record,
// if any. Completion evidence wins over everything else, so a complete job
// is never reported as failed.
func Status(j Job, rec model.QueueRecord, queued bool) model.JobStatus {
	switch {
	case j.Complete():
		return model.JobStatusComplete
	case queued && rec.State == model.QueueStateRunning:
		return model.JobStatusRunning
	case queued && rec.State == model.QueueStatePending:
		return model.JobStatusPending
	case queued:
		return model.JobStatusQueued
	case j.Failed():
		return model.JobStatusFailed
	case j.Blocked():
		return model.JobStatusBlocked
	case j.Ready():
		return model.JobStatusReady
	}
	return model.JobStatusWaiting
}

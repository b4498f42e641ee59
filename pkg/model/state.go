package model

// QueueState is the normalised state of a record reported by squeue.
type QueueState string

const (
	QueueStatePending QueueState = "pending"
	QueueStateRunning QueueState = "running"
	QueueStateOther   QueueState = "other"
)

// String returns the string representation of the queue state.
func (s QueueState) String() string {
	return string(s)
}

// InProgress returns true for states that still occupy the queue.
func (s QueueState) InProgress() bool {
	return s == QueueStatePending || s == QueueStateRunning
}

// slurmStates maps squeue's long state names (%T) onto QueueState.
// Anything absent from the table is QueueStateOther.
var slurmStates = map[string]QueueState{
	"PENDING":      QueueStatePending,
	"CONFIGURING":  QueueStatePending,
	"REQUEUED":     QueueStatePending,
	"REQUEUE_HOLD": QueueStatePending,
	"REQUEUE_FED":  QueueStatePending,
	"RESIZING":     QueueStatePending,

	"RUNNING":    QueueStateRunning,
	"COMPLETING": QueueStateRunning,
	"SIGNALING":  QueueStateRunning,
	"STAGE_OUT":  QueueStateRunning,

	// Compact (%t) codes, accepted for scripts that still emit them.
	"PD": QueueStatePending,
	"CF": QueueStatePending,
	"R":  QueueStateRunning,
	"CG": QueueStateRunning,
}

// ParseQueueState normalises a raw Slurm state.
func ParseQueueState(raw string) QueueState {
	if s, ok := slurmStates[raw]; ok {
		return s
	}
	return QueueStateOther
}

// JobStatus is the status of a job derived on demand from its completion
// evidence, failure evidence and queue membership. It is never stored.
type JobStatus string

const (
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusFailed   JobStatus = "FAILED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusPending  JobStatus = "PENDING"
	JobStatusQueued   JobStatus = "QUEUED" // in the queue in a state other than pending/running
	JobStatusBlocked  JobStatus = "BLOCKED"
	JobStatusReady    JobStatus = "READY"
	JobStatusWaiting  JobStatus = "WAITING" // not blocked, but not ready either
)

// String returns the string representation of the job status.
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the job reached complete or failed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed
}

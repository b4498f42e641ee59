package model

// QueueRecord is one line of squeue output for the configured user.
type QueueRecord struct {
	JobID     string     `json:"job_id"`
	Name      string     `json:"name"`
	State     QueueState `json:"state"`
	RawState  string     `json:"raw_state,omitempty"`
	Partition string     `json:"partition,omitempty"`
	Elapsed   string     `json:"elapsed,omitempty"`
	TimeLimit string     `json:"time_limit,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// InProgress returns true if the record is pending or running.
func (r QueueRecord) InProgress() bool {
	return r.State.InProgress()
}

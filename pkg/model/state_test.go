package model

import "testing"

func TestParseQueueState(t *testing.T) {
	tests := []struct {
		raw  string
		want QueueState
	}{
		{"PENDING", QueueStatePending},
		{"CONFIGURING", QueueStatePending},
		{"REQUEUED", QueueStatePending},
		{"PD", QueueStatePending},
		{"RUNNING", QueueStateRunning},
		{"COMPLETING", QueueStateRunning},
		{"R", QueueStateRunning},
		{"CG", QueueStateRunning},
		{"SUSPENDED", QueueStateOther},
		{"COMPLETED", QueueStateOther},
		{"running", QueueStateOther},
		{"", QueueStateOther},
	}
	for _, tt := range tests {
		if got := ParseQueueState(tt.raw); got != tt.want {
			t.Errorf("ParseQueueState(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestQueueRecord_InProgress(t *testing.T) {
	for state, want := range map[QueueState]bool{
		QueueStatePending: true,
		QueueStateRunning: true,
		QueueStateOther:   false,
	} {
		if got := (QueueRecord{State: state}).InProgress(); got != want {
			t.Errorf("InProgress(%s) = %v, want %v", state, got, want)
		}
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   JobStatus
		terminal bool
	}{
		{JobStatusComplete, true},
		{JobStatusFailed, true},
		{JobStatusRunning, false},
		{JobStatusPending, false},
		{JobStatusQueued, false},
		{JobStatusBlocked, false},
		{JobStatusReady, false},
		{JobStatusWaiting, false},
	}
	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

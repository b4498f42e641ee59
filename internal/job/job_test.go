package job

import (
	"testing"

	"github.com/me/slurmjm/internal/batch"
	"github.com/me/slurmjm/pkg/model"
)

type stubJob struct {
	name     string
	complete bool
	failed   bool
	deps     []*stubJob
}

func (s *stubJob) Name() string     { return s.name }
func (s *stubJob) Complete() bool   { return s.complete }
func (s *stubJob) Ready() bool      { return DefaultReady(s) }
func (s *stubJob) Failed() bool     { return s.failed && !s.complete }
func (s *stubJob) InProgress() bool { return false }
func (s *stubJob) Setup() error     { return nil }
func (s *stubJob) Reset() error     { return nil }
func (s *stubJob) Blocked() bool {
	for _, d := range s.deps {
		if !d.Complete() {
			return true
		}
	}
	return false
}
func (s *stubJob) SlurmArgs() batch.Directives { return batch.Directives{} }
func (s *stubJob) SlurmOpts() []string         { return nil }
func (s *stubJob) SlurmScriptPath() string     { return "/tmp/" + s.name + ".sh" }
func (s *stubJob) SlurmCommand() string        { return "true" }

func TestDefaultReady(t *testing.T) {
	upstream := &stubJob{name: "up"}
	down := &stubJob{name: "down", deps: []*stubJob{upstream}}
	solo := &stubJob{name: "solo"}

	if !solo.Ready() || solo.Blocked() {
		t.Error("job without dependencies must be ready and unblocked")
	}
	if down.Ready() || !down.Blocked() {
		t.Error("job with incomplete upstream must be blocked")
	}

	upstream.complete = true
	if !down.Ready() {
		t.Error("job must become ready once upstream completes")
	}
	if down.Ready() != !down.Blocked() {
		t.Error("Ready() != !Blocked()")
	}
}

func TestStatus(t *testing.T) {
	running := model.QueueRecord{JobID: "1", State: model.QueueStateRunning}
	pending := model.QueueRecord{JobID: "1", State: model.QueueStatePending}
	other := model.QueueRecord{JobID: "1", State: model.QueueStateOther}

	tests := []struct {
		name   string
		job    *stubJob
		rec    model.QueueRecord
		queued bool
		want   model.JobStatus
	}{
		{"ready", &stubJob{name: "a"}, model.QueueRecord{}, false, model.JobStatusReady},
		{"blocked", &stubJob{name: "a", deps: []*stubJob{{name: "b"}}}, model.QueueRecord{}, false, model.JobStatusBlocked},
		{"running", &stubJob{name: "a"}, running, true, model.JobStatusRunning},
		{"pending", &stubJob{name: "a"}, pending, true, model.JobStatusPending},
		{"queued other", &stubJob{name: "a"}, other, true, model.JobStatusQueued},
		{"failed", &stubJob{name: "a", failed: true}, model.QueueRecord{}, false, model.JobStatusFailed},
		{"complete beats failed", &stubJob{name: "a", complete: true, failed: true}, model.QueueRecord{}, false, model.JobStatusComplete},
		{"complete while still queued", &stubJob{name: "a", complete: true}, running, true, model.JobStatusComplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Status(tt.job, tt.rec, tt.queued); got != tt.want {
				t.Errorf("Status() = %s, want %s", got, tt.want)
			}
		})
	}
}

package scriptjob

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/me/slurmjm/internal/batch"
	"github.com/me/slurmjm/internal/job"
	"github.com/me/slurmjm/pkg/model"
)

// logDirName holds the scheduler's stdout/stderr files inside a workdir.
const logDirName = "logs"

// ScriptJob runs one shell command in its own working directory.
type ScriptJob struct {
	spec    Spec
	name    string
	workdir string
	outputs []string
	runtime time.Duration
	args    batch.Directives
	deps    []*ScriptJob
	tracker job.Tracker
}

var (
	_ job.Job   = (*ScriptJob)(nil)
	_ job.Timed = (*ScriptJob)(nil)
)

func (j *ScriptJob) Name() string { return j.name }

// Workdir is the directory the command runs in.
func (j *ScriptJob) Workdir() string { return j.workdir }

// Outputs are the absolute paths whose presence marks the job complete.
func (j *ScriptJob) Outputs() []string { return append([]string(nil), j.outputs...) }

// DependsOn returns the names of upstream jobs.
func (j *ScriptJob) DependsOn() []string {
	names := make([]string, len(j.deps))
	for i, d := range j.deps {
		names[i] = d.name
	}
	return names
}

func (j *ScriptJob) Runtime() time.Duration { return j.runtime }

func (j *ScriptJob) LogDir() string { return filepath.Join(j.workdir, logDirName) }

// Complete reports whether every declared output exists.
func (j *ScriptJob) Complete() bool {
	for _, p := range j.outputs {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// Blocked reports whether any upstream job is not complete.
func (j *ScriptJob) Blocked() bool {
	for _, d := range j.deps {
		if !d.Complete() {
			return true
		}
	}
	return false
}

func (j *ScriptJob) Ready() bool { return job.DefaultReady(j) }

func (j *ScriptJob) InProgress() bool {
	if j.tracker == nil {
		return false
	}
	return j.tracker.InQueue(j.name)
}

// Failed reports whether a scheduler log exists although the outputs are
// missing and the job has left the queue.
func (j *ScriptJob) Failed() bool {
	if j.Complete() || j.InProgress() {
		return false
	}
	logs, err := j.logFiles()
	return err == nil && len(logs) > 0
}

// Setup creates the working and log directories.
func (j *ScriptJob) Setup() error {
	if err := os.MkdirAll(j.LogDir(), 0o755); err != nil {
		return model.NewFilesystemError("setup "+j.name, j.LogDir(), err)
	}
	return nil
}

// Reset removes outputs, scheduler logs and the rendered script, then the
// log and working directories if nothing else is left in them. Files that
// do not exist are skipped.
func (j *ScriptJob) Reset() error {
	op := "reset " + j.name
	logs, err := j.logFiles()
	if err != nil {
		return model.NewFilesystemError(op, j.LogDir(), err)
	}

	paths := append(append([]string(nil), j.outputs...), logs...)
	paths = append(paths, j.SlurmScriptPath())
	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return model.NewFilesystemError(op, p, err)
		}
	}
	for _, dir := range []string{j.LogDir(), j.workdir} {
		if err := removeIfEmpty(dir); err != nil {
			return model.NewFilesystemError(op, dir, err)
		}
	}
	return nil
}

func removeIfEmpty(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil || len(entries) > 0 {
		return err
	}
	return os.Remove(dir)
}

// SlurmArgs returns the declared resources plus the job name, the
// working directory and the log file pattern.
func (j *ScriptJob) SlurmArgs() batch.Directives {
	args := j.args.Clone()
	args.Set("job-name", batch.String(j.name))
	args.Set("chdir", batch.Path(j.workdir))
	args.Set("output", batch.Path(filepath.Join(j.LogDir(), j.name+"-%j.out")))
	return args
}

func (j *ScriptJob) SlurmOpts() []string { return append([]string(nil), j.spec.Options...) }

func (j *ScriptJob) SlurmScriptPath() string {
	return filepath.Join(j.workdir, j.name+".sh")
}

func (j *ScriptJob) SlurmCommand() string { return j.spec.Command }

// logFiles lists the logs written by previous runs, named <name>-<jobid>.out.
// A missing log directory yields no files.
func (j *ScriptJob) logFiles() ([]string, error) {
	entries, err := os.ReadDir(j.LogDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	prefix := j.name + "-"
	var out []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasPrefix(n, prefix) || !strings.HasSuffix(n, ".out") {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(n, prefix), ".out")
		if id == "" || strings.Trim(id, "0123456789") != "" {
			continue
		}
		out = append(out, filepath.Join(j.LogDir(), n))
	}
	return out, nil
}

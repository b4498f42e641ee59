// Package slurm wraps the sbatch, squeue and scancel command line tools.
package slurm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/me/slurmjm/pkg/model"
)

// QueueFormat is the squeue output format: job id, name, long state,
// partition, elapsed time, time limit and reason/nodelist.
const QueueFormat = "%i|%j|%T|%P|%M|%l|%R"

// queueFields is the number of fields QueueFormat yields per line.
const queueFields = 7

// Binaries names the scheduler executables. Empty fields fall back to the
// plain command names resolved through PATH.
type Binaries struct {
	Sbatch  string `yaml:"sbatch"`
	Squeue  string `yaml:"squeue"`
	Scancel string `yaml:"scancel"`
}

func (b Binaries) withDefaults() Binaries {
	if b.Sbatch == "" {
		b.Sbatch = "sbatch"
	}
	if b.Squeue == "" {
		b.Squeue = "squeue"
	}
	if b.Scancel == "" {
		b.Scancel = "scancel"
	}
	return b
}

// Client invokes the scheduler commands. Every call blocks until the
// process exits; ctx is the only way to bound it.
type Client struct {
	bins   Binaries
	runner CommandRunner
	logger *slog.Logger
}

// NewClient creates a Client that runs the real binaries.
func NewClient(bins Binaries, logger *slog.Logger) *Client {
	return NewClientWithRunner(bins, OSCommandRunner{}, logger)
}

// NewClientWithRunner creates a Client with a custom CommandRunner,
// used by tests and by dry runs.
func NewClientWithRunner(bins Binaries, runner CommandRunner, logger *slog.Logger) *Client {
	return &Client{
		bins:   bins.withDefaults(),
		runner: runner,
		logger: logger.With("component", "slurm-client"),
	}
}

// run executes name and converts non-zero exits into ExternalCommandError.
func (c *Client) run(ctx context.Context, name string, args ...string) (string, error) {
	start := time.Now()
	stdout, stderr, code, err := c.runner.Run(ctx, name, args...)
	c.logger.Debug("command finished",
		"command", name,
		"args", args,
		"exit_code", code,
		"duration", time.Since(start).String(),
	)
	if err != nil || code != 0 {
		return stdout, &model.ExternalCommandError{
			Command:  name,
			Args:     args,
			ExitCode: code,
			Stderr:   stderr,
			Err:      err,
		}
	}
	return stdout, nil
}

var (
	parsableJobID = regexp.MustCompile(`^(\d+)(;\S+)?$`)
	legacyJobID   = regexp.MustCompile(`^Submitted batch job (\d+)`)
)

// Submit runs sbatch on scriptPath and returns the scheduler job id.
func (c *Client) Submit(ctx context.Context, scriptPath string) (string, error) {
	if _, err := os.Stat(scriptPath); err != nil {
		return "", model.NewFilesystemError("submit", scriptPath, err)
	}

	out, err := c.run(ctx, c.bins.Sbatch, "--parsable", scriptPath)
	if err != nil {
		return "", err
	}
	id, err := ParseSubmitOutput(out)
	if err != nil {
		return "", err
	}
	c.logger.Info("job submitted", "script", scriptPath, "job_id", id)
	return id, nil
}

// ParseSubmitOutput extracts the job id from sbatch output. Both the
// --parsable form ("123" or "123;cluster") and the default
// "Submitted batch job 123" message are accepted.
func ParseSubmitOutput(out string) (string, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := parsableJobID.FindStringSubmatch(line); m != nil {
			return m[1], nil
		}
		if m := legacyJobID.FindStringSubmatch(line); m != nil {
			return m[1], nil
		}
	}
	return "", model.NewParseError("submit", "no job id in sbatch output %q", strings.TrimSpace(out))
}

// Query lists the queue records owned by user, in squeue's order.
func (c *Client) Query(ctx context.Context, user string) ([]model.QueueRecord, error) {
	if user == "" {
		return nil, model.NewConfigurationError("query", "username is empty")
	}
	out, err := c.run(ctx, c.bins.Squeue, "-u", user, "-h", "-o", QueueFormat)
	if err != nil {
		return nil, err
	}
	return ParseQueue(out)
}

// ParseQueue parses squeue output produced with QueueFormat.
// Job names may themselves contain '|': the id is the first field and the
// last five fields are fixed, so everything in between is the name.
func ParseQueue(out string) ([]model.QueueRecord, error) {
	var records []model.QueueRecord
	for i, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < queueFields {
			return nil, model.NewParseError("query", "line %d: want %d fields, got %d: %q", i+1, queueFields, len(fields), line)
		}
		id := strings.TrimSpace(fields[0])
		if id == "" || strings.ContainsAny(id, " \t") {
			return nil, model.NewParseError("query", "line %d: bad job id %q", i+1, fields[0])
		}
		tail := fields[len(fields)-5:]
		raw := strings.TrimSpace(tail[0])
		if raw == "" {
			return nil, model.NewParseError("query", "line %d: empty state", i+1)
		}
		records = append(records, model.QueueRecord{
			JobID:     id,
			Name:      strings.Join(fields[1:len(fields)-5], "|"),
			State:     model.ParseQueueState(raw),
			RawState:  raw,
			Partition: strings.TrimSpace(tail[1]),
			Elapsed:   strings.TrimSpace(tail[2]),
			TimeLimit: strings.TrimSpace(tail[3]),
			Reason:    strings.TrimSpace(tail[4]),
		})
	}
	return records, nil
}

// Cancel runs scancel for one job id.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	if jobID == "" {
		return model.NewValidationError("cancel", "empty job id")
	}
	if _, err := c.run(ctx, c.bins.Scancel, jobID); err != nil {
		return fmt.Errorf("cancel job %s: %w", jobID, err)
	}
	c.logger.Info("job cancelled", "job_id", jobID)
	return nil
}

// Package batch renders sbatch submission scripts from job directives.
package batch

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/me/slurmjm/pkg/model"
)

// DirectivePrefix starts every scheduler directive line.
const DirectivePrefix = "#SBATCH"

// knownDirectives lists the sbatch long options accepted in scripts.
// Keys and option flags outside this set are rejected before anything is written.
var knownDirectives = map[string]bool{
	"account": true, "acctg-freq": true, "array": true, "batch": true,
	"bb": true, "begin": true, "chdir": true, "clusters": true,
	"comment": true, "constraint": true, "container": true, "contiguous": true,
	"core-spec": true, "cores-per-socket": true, "cpu-freq": true,
	"cpus-per-gpu": true, "cpus-per-task": true, "deadline": true,
	"delay-boot": true, "dependency": true, "distribution": true,
	"error": true, "exclude": true, "exclusive": true, "export": true,
	"export-file": true, "extra-node-info": true, "get-user-env": true,
	"gpu-bind": true, "gpu-freq": true, "gpus": true, "gpus-per-node": true,
	"gpus-per-socket": true, "gpus-per-task": true, "gres": true,
	"gres-flags": true, "hint": true, "hold": true, "ignore-pbs": true,
	"input": true, "job-name": true, "kill-on-invalid-dep": true,
	"licenses": true, "mail-type": true, "mail-user": true, "mcs-label": true,
	"mem": true, "mem-bind": true, "mem-per-cpu": true, "mem-per-gpu": true,
	"mincpus": true, "network": true, "nice": true, "no-kill": true,
	"no-requeue": true, "nodefile": true, "nodelist": true, "nodes": true,
	"ntasks": true, "ntasks-per-core": true, "ntasks-per-gpu": true,
	"ntasks-per-node": true, "ntasks-per-socket": true, "open-mode": true,
	"output": true, "overcommit": true, "oversubscribe": true,
	"partition": true, "power": true, "prefer": true, "priority": true,
	"profile": true, "propagate": true, "qos": true, "quiet": true,
	"reboot": true, "requeue": true, "reservation": true, "signal": true,
	"sockets-per-node": true, "spread-job": true, "switches": true,
	"thread-spec": true, "threads-per-core": true, "time": true,
	"time-min": true, "tmp": true, "tres-per-task": true,
	"use-min-nodes": true, "verbose": true, "wait-all-nodes": true,
	"wckey": true,
}

// IsKnownDirective reports whether name is an accepted sbatch long option.
func IsKnownDirective(name string) bool {
	return knownDirectives[name]
}

// Descriptor is a materialised submission unit.
type Descriptor struct {
	Directives Directives
	Options    []string
	ScriptPath string
	Command    string
}

// Build merges explicit args over computed defaults and validates the result.
// Defaults only fill gaps: a key set in args always keeps the job's value.
func Build(defaults, args Directives, opts []string, scriptPath, command string) (*Descriptor, error) {
	merged := defaults.Clone()
	merged.Merge(args)

	d := &Descriptor{
		Directives: merged,
		Options:    append([]string(nil), opts...),
		ScriptPath: scriptPath,
		Command:    command,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks directive names against the allow-list and values for
// well-formedness.
func (d *Descriptor) Validate() error {
	const op = "build script"
	if strings.TrimSpace(d.ScriptPath) == "" {
		return model.NewValidationError(op, "script path is empty")
	}
	if strings.TrimSpace(d.Command) == "" {
		return model.NewValidationError(op, "command is empty")
	}
	for _, k := range d.Directives.keys {
		if !knownDirectives[k] {
			return model.NewValidationError(op, "unknown directive %q", k)
		}
		v := d.Directives.vals[k]
		switch v.Kind {
		case KindInt:
		case KindString, KindPath:
			if v.str == "" {
				return model.NewValidationError(op, "directive %q has an empty value", k)
			}
			if strings.ContainsAny(v.str, "\r\n") {
				return model.NewValidationError(op, "directive %q value contains a newline", k)
			}
		default:
			return model.NewValidationError(op, "directive %q has no value", k)
		}
	}
	for _, opt := range d.Options {
		name, _, _ := strings.Cut(opt, "=")
		if !knownDirectives[name] {
			return model.NewValidationError(op, "unknown option %q", opt)
		}
		if strings.ContainsAny(opt, "\r\n") {
			return model.NewValidationError(op, "option %q contains a newline", name)
		}
	}
	return nil
}

// Render produces the script text.
func Render(d *Descriptor) ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("#!/bin/bash\n")
	for _, k := range d.Directives.keys {
		fmt.Fprintf(&buf, "%s --%s=%s\n", DirectivePrefix, k, d.Directives.vals[k])
	}
	for _, opt := range d.Options {
		fmt.Fprintf(&buf, "%s --%s\n", DirectivePrefix, opt)
	}
	buf.WriteString(d.Command)
	if !strings.HasSuffix(d.Command, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Write renders d and replaces the file at d.ScriptPath.
// The script is written to a temporary file in the same directory and
// renamed into place, so a failed write never leaves a partial script.
func Write(d *Descriptor) error {
	data, err := Render(d)
	if err != nil {
		return err
	}

	const op = "write script"
	dir := filepath.Dir(d.ScriptPath)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(d.ScriptPath)+".*")
	if err != nil {
		return model.NewFilesystemError(op, d.ScriptPath, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return model.NewFilesystemError(op, d.ScriptPath, err)
	}
	if err := tmp.Chmod(0o755); err != nil {
		tmp.Close()
		return model.NewFilesystemError(op, d.ScriptPath, err)
	}
	if err := tmp.Close(); err != nil {
		return model.NewFilesystemError(op, d.ScriptPath, err)
	}
	if err := os.Rename(tmpName, d.ScriptPath); err != nil {
		return model.NewFilesystemError(op, d.ScriptPath, err)
	}
	return nil
}

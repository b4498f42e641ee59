// Package scriptjob implements jobs declared in a YAML manifest.
//
// A manifest lists shell commands together with the files they produce:
//
//	jobs:
//	  - name: align
//	    command: bwa mem ref.fa reads.fq > aligned.sam
//	    workdir: align
//	    outputs: [aligned.sam]
//	    runtime: 3h
//	    resources: {cpus-per-task: 8, mem: 16G}
//	  - name: sort
//	    command: samtools sort -o sorted.bam ../align/aligned.sam
//	    depends_on: [align]
//	    outputs: [sorted.bam]
//
// Relative workdirs resolve against the manifest's directory, and
// outputs resolve against the job's workdir.
package scriptjob

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/me/slurmjm/internal/batch"
	"github.com/me/slurmjm/internal/job"
	"github.com/me/slurmjm/pkg/model"
	"gopkg.in/yaml.v3"
)

// Spec is one job entry as written in the manifest.
type Spec struct {
	Name      string         `yaml:"name"`
	Command   string         `yaml:"command"`
	Workdir   string         `yaml:"workdir,omitempty"`
	Outputs   []string       `yaml:"outputs"`
	DependsOn []string       `yaml:"depends_on,omitempty"`
	Runtime   string         `yaml:"runtime,omitempty"`
	Resources map[string]any `yaml:"resources,omitempty"`
	Options   []string       `yaml:"options,omitempty"`
}

type manifestFile struct {
	Jobs []Spec `yaml:"jobs"`
}

// Manifest is the ordered set of jobs loaded from one file.
type Manifest struct {
	Path   string
	jobs   []*ScriptJob
	byName map[string]*ScriptJob
}

// Load reads and resolves the manifest at path. InProgress of every job
// consults tracker, normally the Environment the jobs are queued through.
func Load(path string, tracker job.Tracker) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, model.NewFilesystemError("load manifest", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, model.NewFilesystemError("load manifest", abs, err)
	}
	specs, err := Parse(data)
	if err != nil {
		return nil, err
	}
	m, err := Resolve(specs, filepath.Dir(abs), tracker)
	if err != nil {
		return nil, err
	}
	m.Path = abs
	return m, nil
}

// Parse decodes manifest YAML. Unknown fields are rejected.
func Parse(data []byte) ([]Spec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f manifestFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, model.NewParseError("parse manifest", "manifest is empty")
		}
		return nil, model.NewParseError("parse manifest", "%v", err)
	}
	return f.Jobs, nil
}

// Resolve turns specs into jobs rooted at baseDir and wires each job to
// the jobs it depends on. Unknown or cyclic dependencies are rejected.
func Resolve(specs []Spec, baseDir string, tracker job.Tracker) (*Manifest, error) {
	const op = "resolve manifest"
	m := &Manifest{byName: make(map[string]*ScriptJob, len(specs))}

	for i, s := range specs {
		j, err := newScriptJob(s, baseDir, tracker)
		if err != nil {
			return nil, err
		}
		if _, dup := m.byName[j.name]; dup {
			return nil, model.NewValidationError(op, "job %q (entry %d) is declared twice", j.name, i+1)
		}
		m.byName[j.name] = j
		m.jobs = append(m.jobs, j)
	}

	for _, j := range m.jobs {
		for _, dep := range j.spec.DependsOn {
			up, ok := m.byName[dep]
			if !ok {
				return nil, model.NewValidationError(op, "job %q depends on unknown job %q", j.name, dep)
			}
			if up == j {
				return nil, model.NewValidationError(op, "job %q depends on itself", j.name)
			}
			j.deps = append(j.deps, up)
		}
	}
	if err := m.checkCycles(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manifest) checkCycles() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[*ScriptJob]int, len(m.jobs))

	var visit func(j *ScriptJob, path []string) error
	visit = func(j *ScriptJob, path []string) error {
		switch state[j] {
		case visiting:
			return model.NewValidationError("resolve manifest", "dependency cycle: %s",
				strings.Join(append(path, j.name), " -> "))
		case done:
			return nil
		}
		state[j] = visiting
		for _, d := range j.deps {
			if err := visit(d, append(path, j.name)); err != nil {
				return err
			}
		}
		state[j] = done
		return nil
	}

	for _, j := range m.jobs {
		if err := visit(j, nil); err != nil {
			return err
		}
	}
	return nil
}

// Jobs returns the jobs in manifest order.
func (m *Manifest) Jobs() []*ScriptJob {
	out := make([]*ScriptJob, len(m.jobs))
	copy(out, m.jobs)
	return out
}

// Get returns the job named name.
func (m *Manifest) Get(name string) (*ScriptJob, bool) {
	j, ok := m.byName[name]
	return j, ok
}

func newScriptJob(s Spec, baseDir string, tracker job.Tracker) (*ScriptJob, error) {
	const op = "resolve manifest"
	name := strings.TrimSpace(s.Name)
	switch {
	case name == "":
		return nil, model.NewValidationError(op, "job without a name")
	case strings.ContainsAny(name, "/\\ \t\r\n"):
		return nil, model.NewValidationError(op, "job name %q must not contain separators or whitespace", name)
	case strings.TrimSpace(s.Command) == "":
		return nil, model.NewValidationError(op, "job %q has no command", name)
	case len(s.Outputs) == 0:
		return nil, model.NewValidationError(op, "job %q declares no outputs", name)
	}

	workdir := s.Workdir
	if workdir == "" {
		workdir = name
	}
	if !filepath.IsAbs(workdir) {
		workdir = filepath.Join(baseDir, workdir)
	}

	var runtime time.Duration
	if s.Runtime != "" {
		d, err := time.ParseDuration(s.Runtime)
		if err != nil || d <= 0 {
			return nil, model.NewValidationError(op, "job %q: invalid runtime %q", name, s.Runtime)
		}
		runtime = d
	}

	args, err := batch.DirectivesFromMap(s.Resources)
	if err != nil {
		return nil, err
	}
	for _, k := range args.Keys() {
		if k == "job-name" || k == "output" || k == "chdir" {
			return nil, model.NewValidationError(op, "job %q: resource %q is managed by slurmjm", name, k)
		}
	}

	workdir = filepath.Clean(workdir)
	logDir := filepath.Join(workdir, logDirName)
	script := filepath.Join(workdir, name+".sh")
	outputs := make([]string, len(s.Outputs))
	for i, o := range s.Outputs {
		if strings.TrimSpace(o) == "" {
			return nil, model.NewValidationError(op, "job %q: output %d is empty", name, i+1)
		}
		p := filepath.Clean(o)
		if !filepath.IsAbs(p) {
			p = filepath.Join(workdir, p)
		}
		// Setup creates the log dir and its parents and queueing writes the
		// script, so none of them can serve as completion evidence.
		if p == script || within(logDir, p) {
			return nil, model.NewValidationError(op,
				"job %q: output %q is the working directory, the log directory, the script or a parent of them", name, o)
		}
		outputs[i] = p
	}

	return &ScriptJob{
		spec:    s,
		name:    name,
		workdir: workdir,
		outputs: outputs,
		runtime: runtime,
		args:    args,
		tracker: tracker,
	}, nil
}

// within reports whether path is dir or lies below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

package batch

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/me/slurmjm/pkg/model"
)

func mustDirectives(t *testing.T, pairs ...any) Directives {
	t.Helper()
	d, err := NewDirectives(pairs...)
	if err != nil {
		t.Fatalf("NewDirectives() error = %v", err)
	}
	return d
}

func TestBuild_ExplicitWinsDefaultsFillGaps(t *testing.T) {
	defaults := mustDirectives(t, "time", "00:30:00", "partition", "short")
	args := mustDirectives(t, "time", "01:00:00")

	d, err := Build(defaults, args, nil, filepath.Join(t.TempDir(), "job.sh"), "echo hi")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	data, err := Render(d)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	script := string(data)
	if !strings.Contains(script, "#SBATCH --time=01:00:00\n") {
		t.Errorf("explicit time lost:\n%s", script)
	}
	if strings.Contains(script, "00:30:00") {
		t.Errorf("default time overrode explicit value:\n%s", script)
	}
	if !strings.Contains(script, "#SBATCH --partition=short\n") {
		t.Errorf("default partition missing:\n%s", script)
	}
}

func TestBuild_DoesNotMutateDefaults(t *testing.T) {
	defaults := mustDirectives(t, "time", "00:30:00")
	args := mustDirectives(t, "time", "01:00:00", "mem", "4G")

	if _, err := Build(defaults, args, nil, "/tmp/x.sh", "true"); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if v, _ := defaults.Get("time"); v.String() != "00:30:00" {
		t.Errorf("defaults time = %q, want 00:30:00", v)
	}
	if defaults.Has("mem") {
		t.Error("defaults gained mem from args")
	}
}

func TestRender_Layout(t *testing.T) {
	d := &Descriptor{
		Directives: mustDirectives(t,
			"job-name", "align",
			"ntasks", 4,
			"output", Path("/scratch/align.out"),
		),
		Options:    []string{"exclusive", "mail-type=END"},
		ScriptPath: "/tmp/align.sh",
		Command:    "python align.py --fast",
	}

	data, err := Render(d)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := strings.Join([]string{
		"#!/bin/bash",
		"#SBATCH --job-name=align",
		"#SBATCH --ntasks=4",
		"#SBATCH --output=/scratch/align.out",
		"#SBATCH --exclusive",
		"#SBATCH --mail-type=END",
		"python align.py --fast",
		"",
	}, "\n")
	if string(data) != want {
		t.Errorf("Render() =\n%s\nwant\n%s", data, want)
	}
}

func TestBuild_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		args Directives
		opts []string
		cmd  string
	}{
		{"unknown directive", mustDirectives(t, "tyme", "01:00:00"), nil, "true"},
		{"unknown option", Directives{}, []string{"turbo"}, "true"},
		{"empty value", mustDirectives(t, "partition", ""), nil, "true"},
		{"newline in value", mustDirectives(t, "comment", "a\nb"), nil, "true"},
		{"zero value", func() Directives { var d Directives; d.Set("mem", Value{}); return d }(), nil, "true"},
		{"empty command", Directives{}, nil, "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(Directives{}, tt.args, tt.opts, "/tmp/x.sh", tt.cmd)
			if !model.IsKind(err, model.ErrValidation) {
				t.Fatalf("Build() error = %v, want %s", err, model.ErrValidation)
			}
		})
	}
}

func TestDirectivesFromMap_RejectsNonScalar(t *testing.T) {
	_, err := DirectivesFromMap(map[string]any{
		"time": "01:00:00",
		"mem":  []any{"4G", "8G"},
	})
	if !model.IsKind(err, model.ErrValidation) {
		t.Fatalf("DirectivesFromMap() error = %v, want %s", err, model.ErrValidation)
	}

	_, err = DirectivesFromMap(map[string]any{"ntasks": 2.5})
	if !model.IsKind(err, model.ErrValidation) {
		t.Fatalf("DirectivesFromMap(2.5) error = %v, want %s", err, model.ErrValidation)
	}
}

func TestDirectivesFromMap_IntegerRange(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		ok   bool
	}{
		{"whole float", float64(16), true},
		{"large whole float", 1e30, false},
		{"float at 2^63", float64(math.MaxInt64), false},
		{"negative float below int64", -1e19, false},
		{"uint in range", uint(8), true},
		{"uint64 past int64", uint64(math.MaxInt64) + 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DirectivesFromMap(map[string]any{"ntasks": tt.raw})
			if tt.ok && err != nil {
				t.Errorf("DirectivesFromMap(%v) error = %v", tt.raw, err)
			}
			if !tt.ok && !model.IsKind(err, model.ErrValidation) {
				t.Errorf("DirectivesFromMap(%v) error = %v, want %s", tt.raw, err, model.ErrValidation)
			}
		})
	}
}

func TestDirectivesFromMap_SortedOrder(t *testing.T) {
	d, err := DirectivesFromMap(map[string]any{"time": "1:00:00", "mem": "4G", "ntasks": 2})
	if err != nil {
		t.Fatalf("DirectivesFromMap() error = %v", err)
	}
	got := strings.Join(d.Keys(), ",")
	if got != "mem,ntasks,time" {
		t.Errorf("Keys() = %s, want mem,ntasks,time", got)
	}
	if v, _ := d.Get("ntasks"); v.Kind != KindInt || v.String() != "2" {
		t.Errorf("ntasks = %v (%s), want int 2", v, v.Kind)
	}
}

func TestDirectives_SetKeepsPosition(t *testing.T) {
	var d Directives
	d.Set("time", String("1"))
	d.Set("mem", String("2"))
	d.Set("time", String("3"))
	if got := strings.Join(d.Keys(), ","); got != "time,mem" {
		t.Errorf("Keys() = %s, want time,mem", got)
	}
	if v, _ := d.Get("time"); v.String() != "3" {
		t.Errorf("time = %s, want 3", v)
	}
}

func TestWrite_OverwritesExistingScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.sh")
	if err := os.WriteFile(path, []byte("old contents"), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := Build(Directives{}, mustDirectives(t, "job-name", "j"), nil, path, "echo new")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := Write(d); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "old contents") {
		t.Errorf("script was not overwritten:\n%s", data)
	}
	if !strings.HasSuffix(string(data), "echo new\n") {
		t.Errorf("script does not end with the command:\n%s", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the script", len(entries))
	}
}

func TestWrite_UnwritableDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "job.sh")
	d, err := Build(Directives{}, Directives{}, nil, path, "true")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := Write(d); !model.IsKind(err, model.ErrFilesystem) {
		t.Fatalf("Write() error = %v, want %s", err, model.ErrFilesystem)
	}
}

func TestWrite_InvalidDescriptorWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.sh")
	d := &Descriptor{
		Directives: mustDirectives(t, "bogus", "1"),
		ScriptPath: path,
		Command:    "true",
	}
	if err := Write(d); !model.IsKind(err, model.ErrValidation) {
		t.Fatalf("Write() error = %v, want %s", err, model.ErrValidation)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("script exists after validation failure: %v", err)
	}
}

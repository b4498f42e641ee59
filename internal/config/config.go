// Package config loads slurmjm settings from YAML, .env files and the
// process environment.
package config

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/me/slurmjm/internal/batch"
	"github.com/me/slurmjm/internal/environment"
	"github.com/me/slurmjm/internal/logging"
	"github.com/me/slurmjm/internal/slurm"
	"github.com/me/slurmjm/pkg/model"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvUser      = "SLURMJM_USER"
	EnvLogLevel  = "SLURMJM_LOG_LEVEL"
	EnvLogFormat = "SLURMJM_LOG_FORMAT"
	EnvManifest  = "SLURMJM_MANIFEST"
)

// PartitionConfig is a partition table entry. MaxTime uses Go duration
// syntax, e.g. "2h" or "96h".
type PartitionConfig struct {
	Name    string `yaml:"name"`
	MaxTime string `yaml:"max_time"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr string `yaml:"addr"` // listen address (default ":8080")
}

// Config is the complete slurmjm configuration.
type Config struct {
	User       string            `yaml:"user"`
	Buffer     float64           `yaml:"buffer"`
	Manifest   string            `yaml:"manifest"`
	Binaries   slurm.Binaries    `yaml:"binaries"`
	Partitions []PartitionConfig `yaml:"partitions"`
	Defaults   map[string]any    `yaml:"defaults"`
	LogLevel   string            `yaml:"log_level"`
	LogFormat  string            `yaml:"log_format"`
	Server     ServerConfig      `yaml:"server"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	var parts []PartitionConfig
	for _, p := range environment.DefaultPartitions() {
		parts = append(parts, PartitionConfig{Name: p.Name, MaxTime: p.MaxTime.String()})
	}
	return Config{
		Buffer:     0.25,
		Manifest:   "jobs.yaml",
		Binaries:   slurm.Binaries{Sbatch: "sbatch", Squeue: "squeue", Scancel: "scancel"},
		Partitions: parts,
		LogLevel:   "info",
		LogFormat:  logging.FormatText,
		Server:     ServerConfig{Addr: ":8080"},
	}
}

// Load reads the YAML file at path over DefaultConfig, then applies
// overrides from envFiles (".env" when none are given) and the process
// environment. An empty path skips the file. A missing .env file is not
// an error; variables already set in the process take precedence over it.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, model.NewFilesystemError("load config", path, err)
		}
		if err := Decode(data, &cfg); err != nil {
			return nil, err
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, model.NewConfigurationError("load config", "read %s: %v", f, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	return &cfg, nil
}

// Decode parses YAML into cfg. Fields absent from data keep their value;
// unknown keys are rejected. An empty document changes nothing.
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return model.NewParseError("load config", "%v", err)
	}
	return nil
}

// ApplyEnv overrides settings from getenv. The username falls back to $USER.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvUser); v != "" {
		c.User = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvLogFormat); v != "" {
		c.LogFormat = v
	}
	if v := getenv(EnvManifest); v != "" {
		c.Manifest = v
	}
	if c.User == "" {
		c.User = getenv("USER")
	}
}

// Validate reports the first invalid setting as a CONFIGURATION_ERROR.
func (c *Config) Validate() error {
	const op = "validate config"
	if strings.TrimSpace(c.User) == "" {
		return model.NewConfigurationError(op, "user is empty; set user, %s or USER", EnvUser)
	}
	if c.Buffer < 0 {
		return model.NewConfigurationError(op, "buffer must not be negative, got %v", c.Buffer)
	}
	if _, err := c.PartitionTable(); err != nil {
		return err
	}
	if _, err := batch.DirectivesFromMap(c.Defaults); err != nil {
		return model.NewConfigurationError(op, "defaults: %v", err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return logging.ValidateFormat(c.LogFormat)
}

// PartitionTable converts the configured partitions.
func (c *Config) PartitionTable() ([]environment.Partition, error) {
	const op = "validate config"
	if len(c.Partitions) == 0 {
		return nil, model.NewConfigurationError(op, "partition table is empty")
	}
	seen := make(map[string]bool, len(c.Partitions))
	out := make([]environment.Partition, 0, len(c.Partitions))
	for _, p := range c.Partitions {
		if p.Name == "" {
			return nil, model.NewConfigurationError(op, "partition without a name")
		}
		if seen[p.Name] {
			return nil, model.NewConfigurationError(op, "partition %q listed twice", p.Name)
		}
		seen[p.Name] = true

		d, err := time.ParseDuration(p.MaxTime)
		if err != nil {
			return nil, model.NewConfigurationError(op, "partition %q: invalid max_time %q", p.Name, p.MaxTime)
		}
		if d <= 0 {
			return nil, model.NewConfigurationError(op, "partition %q: max_time must be positive", p.Name)
		}
		out = append(out, environment.Partition{Name: p.Name, MaxTime: d})
	}
	return out, nil
}

// EnvironmentConfig validates c and converts it for environment.New.
func (c *Config) EnvironmentConfig() (environment.Config, error) {
	if err := c.Validate(); err != nil {
		return environment.Config{}, err
	}
	parts, err := c.PartitionTable()
	if err != nil {
		return environment.Config{}, err
	}
	defaults, err := batch.DirectivesFromMap(c.Defaults)
	if err != nil {
		return environment.Config{}, err
	}
	return environment.Config{
		User:       c.User,
		Partitions: parts,
		Buffer:     c.Buffer,
		Defaults:   defaults,
	}, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eargollo/autofilebot/internal/failure"
)

// Config holds all configuration loaded from config.yaml.
type Config struct {
	IntakeDir     string        `yaml:"intake_dir"`
	QuarantineDir string        `yaml:"quarantine_dir"`
	BackupDir     string        `yaml:"backup_dir"`
	ArchiveDir    string        `yaml:"archive_dir"`
	Thresholds    []int         `yaml:"thresholds"`
	Schedule      string        `yaml:"schedule"`
	Watch         *bool         `yaml:"watch"`
	Debounce      time.Duration `yaml:"debounce"`
	DBPath        string        `yaml:"db_path"`
	HTTPAddr      string        `yaml:"http_addr"`
	LogLevel      string        `yaml:"log_level"`
	LogFile       string        `yaml:"log_file"`
}

// Pipeline is the immutable subset of Config a pass runs with.
type Pipeline struct {
	IntakeDir     string `json:"intake_dir"`
	QuarantineDir string `json:"quarantine_dir"`
	BackupDir     string `json:"backup_dir"`
	ArchiveDir    string `json:"archive_dir"`
	Thresholds    [3]int `json:"thresholds"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// applyDefaults fills zero/empty fields with sensible defaults. db_path and
// http_addr are only defaulted when absent from the file; an explicit empty
// string in YAML is indistinguishable, so both are disabled with "-".
func (c *Config) applyDefaults() {
	if c.IntakeDir == "" {
		c.IntakeDir = "files"
	}
	if c.QuarantineDir == "" {
		c.QuarantineDir = "error"
	}
	if c.BackupDir == "" {
		c.BackupDir = "backup"
	}
	if c.ArchiveDir == "" {
		c.ArchiveDir = "hadoop"
	}
	if c.Thresholds == nil {
		c.Thresholds = []int{1, 1, 1}
	}
	if c.Schedule == "" {
		c.Schedule = "@every 1m"
	}
	if c.Watch == nil {
		on := true
		c.Watch = &on
	}
	if c.Debounce == 0 {
		c.Debounce = 500 * time.Millisecond
	}
	if c.DBPath == "" {
		c.DBPath = "autofilebot.db"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Load reads and parses the YAML config file at path.
// If the file does not exist, Load returns a default Config so the agent can
// run from a working directory that only holds the four stage directories.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, failure.Configuration("open config", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, failure.Configuration("parse config", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Enabled reports whether an optional address or path setting is switched on.
func Enabled(v string) bool { return v != "" && v != "-" }

// WatchEnabled reports whether the filesystem-change trigger is on.
func (c *Config) WatchEnabled() bool { return c.Watch == nil || *c.Watch }

// Dirs returns the four stage directories in pipeline order.
func (c *Config) Dirs() []string {
	return []string{c.IntakeDir, c.QuarantineDir, c.BackupDir, c.ArchiveDir}
}

// Validate checks that the stage directories exist, are directories and are
// pairwise distinct, and that exactly three non-negative thresholds are set.
// Every violation is a configuration failure.
func (c *Config) Validate() error {
	if len(c.Thresholds) != 3 {
		return failure.Configuration("validate thresholds", "",
			fmt.Errorf("want 3 thresholds, got %d", len(c.Thresholds)))
	}
	for i, t := range c.Thresholds {
		if t < 0 {
			return failure.Configuration("validate thresholds", "",
				fmt.Errorf("threshold %d is negative: %d", i, t))
		}
	}

	seen := make(map[string]string, 4)
	for _, dir := range c.Dirs() {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return failure.Configuration("resolve dir", dir, err)
		}
		if prev, ok := seen[abs]; ok {
			return failure.Configuration("validate dirs", dir,
				fmt.Errorf("same directory as %q", prev))
		}
		seen[abs] = dir

		info, err := os.Stat(dir)
		if err != nil {
			return failure.Configuration("stat dir", dir, err)
		}
		if !info.IsDir() {
			return failure.Configuration("stat dir", dir, errors.New("not a directory"))
		}
	}
	return nil
}

// Pipeline returns the immutable pass configuration. Call Validate first.
func (c *Config) Pipeline() Pipeline {
	p := Pipeline{
		IntakeDir:     c.IntakeDir,
		QuarantineDir: c.QuarantineDir,
		BackupDir:     c.BackupDir,
		ArchiveDir:    c.ArchiveDir,
	}
	copy(p.Thresholds[:], c.Thresholds)
	return p
}

// Package config loads quill.yaml, the shared settings file for the
// coordinator and the editor.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds settings read from quill.yaml in the working directory.
// Missing file and missing fields fall back to defaults.
type Config struct {
	RuntimeDir  string `yaml:"runtime_dir,omitempty"` // where coordinator sockets live
	DocPath     string `yaml:"doc_path,omitempty"`    // document written on clean shutdown
	DBPath      string `yaml:"db_path,omitempty"`     // sqlite audit log
	RolesPath   string `yaml:"roles_path,omitempty"`
	MaxSessions int    `yaml:"max_sessions,omitempty"`
	IntakeRate  int    `yaml:"intake_rate,omitempty"`  // commands/sec per session
	IntakeBurst int    `yaml:"intake_burst,omitempty"` // burst size per session
	LogLevel    string `yaml:"log_level,omitempty"`
	LogFile     string `yaml:"log_file,omitempty"`
}

// Default settings used when quill.yaml is absent or partial.
func defaults() *Config {
	return &Config{
		RuntimeDir:  os.TempDir(),
		DocPath:     "doc.md",
		DBPath:      "quill.db",
		RolesPath:   "roles.txt",
		MaxSessions: 10,
		IntakeRate:  100,
		IntakeBurst: 200,
		LogLevel:    "info",
	}
}

// Load reads quill.yaml from dir. A missing file returns the defaults with
// no error; a malformed one is an error.
func Load(dir string) (*Config, error) {
	cfg := defaults()
	path := filepath.Join(dir, "quill.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) fillDefaults() {
	d := defaults()
	if c.RuntimeDir == "" {
		c.RuntimeDir = d.RuntimeDir
	}
	if c.DocPath == "" {
		c.DocPath = d.DocPath
	}
	if c.DBPath == "" {
		c.DBPath = d.DBPath
	}
	if c.RolesPath == "" {
		c.RolesPath = d.RolesPath
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = d.MaxSessions
	}
	if c.IntakeRate <= 0 {
		c.IntakeRate = d.IntakeRate
	}
	if c.IntakeBurst <= 0 {
		c.IntakeBurst = d.IntakeBurst
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// SocketPath returns the coordinator socket for the given PID.
func (c *Config) SocketPath(pid int) string {
	return filepath.Join(c.RuntimeDir, fmt.Sprintf("quilld-%d.sock", pid))
}

// Save writes the config to quill.yaml in dir.
func Save(dir string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "quill.yaml"), data, 0644)
}

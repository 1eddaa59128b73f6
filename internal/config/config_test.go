package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxSessions != 10 {
		t.Errorf("want max_sessions=10, got %d", cfg.MaxSessions)
	}
	if cfg.DocPath != "doc.md" {
		t.Errorf("want doc_path=doc.md, got %s", cfg.DocPath)
	}
	if cfg.RolesPath != "roles.txt" {
		t.Errorf("want roles_path=roles.txt, got %s", cfg.RolesPath)
	}
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	content := "max_sessions: 3\nroles_path: /etc/quill/roles.txt\n"
	if err := os.WriteFile(filepath.Join(dir, "quill.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxSessions != 3 {
		t.Errorf("want max_sessions=3, got %d", cfg.MaxSessions)
	}
	if cfg.RolesPath != "/etc/quill/roles.txt" {
		t.Errorf("want overridden roles_path, got %s", cfg.RolesPath)
	}
	if cfg.DBPath != "quill.db" {
		t.Errorf("want default db_path, got %s", cfg.DBPath)
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "quill.yaml"), []byte("max_sessions: [oops\n"), 0644)
	if _, err := Load(dir); err == nil {
		t.Error("want error for malformed yaml")
	}
}

func TestSocketPath(t *testing.T) {
	cfg := &Config{RuntimeDir: "/run/quill"}
	got := cfg.SocketPath(4242)
	if got != filepath.Join("/run/quill", "quilld-4242.sock") {
		t.Errorf("unexpected socket path %s", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := Load(dir)
	cfg.MaxSessions = 5
	if err := Save(dir, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "quill.yaml"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(data), "max_sessions: 5") {
		t.Errorf("saved file missing field: %s", data)
	}
	back, err := Load(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if back.MaxSessions != 5 {
		t.Errorf("want max_sessions=5 after round trip, got %d", back.MaxSessions)
	}
}

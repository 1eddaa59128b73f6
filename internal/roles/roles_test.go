package roles

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ehrlich-b/quill/internal/protocol"
)

func writeRoles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roles.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write roles: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeRoles(t, "alice write\nbob read\n\ncarol admin\n")
	table, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tests := []struct {
		user string
		want protocol.Role
	}{
		{"alice", protocol.RoleWrite},
		{"bob", protocol.RoleRead},
		{"carol", protocol.RoleNone}, // unknown role word
		{"dave", protocol.RoleNone},  // unknown user
	}
	for _, tt := range tests {
		if got := table.Lookup(tt.user); got != tt.want {
			t.Errorf("Lookup(%s): want %v, got %v", tt.user, tt.want, got)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("want error for missing roles file")
	}
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	path := writeRoles(t, "justoneword\nalice write\n")
	table, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if table.Len() != 1 {
		t.Errorf("want 1 user, got %d", table.Len())
	}
}

func TestWatchReload(t *testing.T) {
	path := writeRoles(t, "alice read\n")
	table, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	done := make(chan struct{})
	defer close(done)
	if err := table.Watch(done); err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := os.WriteFile(path, []byte("alice write\n"), 0644); err != nil {
		t.Fatalf("rewrite roles: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if table.Lookup("alice") == protocol.RoleWrite {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("roles file change not picked up")
}

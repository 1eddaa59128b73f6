// Package roles loads the username→role mapping from the roles file and
// keeps it fresh while the coordinator runs.
package roles

import (
	"bufio"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ehrlich-b/quill/internal/logger"
	"github.com/ehrlich-b/quill/internal/protocol"
)

// Table is a concurrency-safe view of the roles file. Unknown usernames map
// to RoleNone.
type Table struct {
	mu    sync.RWMutex
	path  string
	users map[string]protocol.Role
}

// Load reads the roles file at path. Each non-empty line is
// "<username> <role>"; unknown role words demote the user to none.
func Load(path string) (*Table, error) {
	t := &Table{path: path}
	if err := t.reload(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) reload() error {
	f, err := os.Open(t.path)
	if err != nil {
		return err
	}
	defer f.Close()

	users := make(map[string]protocol.Role)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		users[fields[0]] = protocol.ParseRole(fields[1])
	}
	if err := sc.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	t.users = users
	t.mu.Unlock()
	return nil
}

// Lookup returns the role for username.
func (t *Table) Lookup(username string) protocol.Role {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.users[username]
}

// Len returns the number of known users.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.users)
}

// Watch re-reads the roles file whenever it changes, until the done channel
// closes. Editors that connect after a change see the new mapping without a
// coordinator restart.
func (t *Table) Watch(done <-chan struct{}) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(t.path); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-done:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := t.reload(); err != nil {
					logger.Warn("roles reload failed", "path", t.path, "error", err)
					continue
				}
				logger.Info("roles reloaded", "path", t.path, "users", t.Len())
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("roles watcher error", "error", err)
			}
		}
	}()
	return nil
}

package coordinator

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ehrlich-b/quill/internal/logger"
	"github.com/ehrlich-b/quill/internal/protocol"
)

// Session is one connected editor. The connection doubles as both channel
// directions; writes are serialized so broadcast frames and query replies
// never interleave.
type Session struct {
	ID       string
	Username string
	Role     protocol.Role

	conn    net.Conn
	writeMu sync.Mutex
	ready   atomic.Bool // handshake complete, include in broadcasts
	closed  atomic.Bool
}

// Write sends b in a single serialized write.
func (s *Session) Write(b []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.conn.Write(b)
	return err
}

// Close tears the connection down once.
func (s *Session) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.conn.Close()
	}
}

// SessionManager owns the fixed-capacity session table. Its lock is a leaf:
// it is never held while acquiring the document or queue locks, and writes to
// session connections happen outside it.
type SessionManager struct {
	mu    sync.RWMutex
	slots []*Session
}

func NewSessionManager(capacity int) *SessionManager {
	return &SessionManager{slots: make([]*Session, capacity)}
}

// Reserve claims a free slot for conn. It returns nil when the table is
// full; the caller drops the connection without a handshake.
func (m *SessionManager) Reserve(conn net.Conn) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.slots {
		if s == nil {
			sess := &Session{ID: uuid.NewString(), conn: conn}
			m.slots[i] = sess
			return sess
		}
	}
	return nil
}

// Remove frees the session's slot and closes its connection.
func (m *SessionManager) Remove(sess *Session) {
	m.mu.Lock()
	for i, s := range m.slots {
		if s == sess {
			m.slots[i] = nil
			break
		}
	}
	m.mu.Unlock()
	sess.Close()
}

// Count returns the number of occupied slots.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.slots {
		if s != nil {
			n++
		}
	}
	return n
}

// active snapshots the handshaken sessions so callers can write without
// holding the table lock.
func (m *SessionManager) active() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.slots))
	for _, s := range m.slots {
		if s != nil && s.ready.Load() {
			out = append(out, s)
		}
	}
	return out
}

// Roles returns the username→role view of the connected, handshaken
// sessions. The scheduler gates commands against this snapshot.
func (m *SessionManager) Roles() map[string]protocol.Role {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]protocol.Role)
	for _, s := range m.slots {
		if s != nil && s.ready.Load() {
			out[s.Username] = s.Role
		}
	}
	return out
}

// Broadcast writes frame to every active session. A failed write marks the
// session dead and frees its slot; slow consumers cost one write, nothing
// more.
func (m *SessionManager) Broadcast(frame []byte) {
	for _, s := range m.active() {
		if err := s.Write(frame); err != nil {
			logger.Warn("broadcast write failed, dropping session",
				"session", s.ID, "user", s.Username, "error", err)
			m.Remove(s)
		}
	}
}

// CloseAll tears down every session, for coordinator shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.slots))
	for i, s := range m.slots {
		if s != nil {
			sessions = append(sessions, s)
			m.slots[i] = nil
		}
	}
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

package coordinator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ehrlich-b/quill/internal/logger"
	"github.com/ehrlich-b/quill/internal/protocol"
)

// serveConn runs one editor session from accept to teardown: slot
// reservation, handshake, then the command loop.
func (c *Coordinator) serveConn(ctx context.Context, conn net.Conn) {
	sess := c.sessions.Reserve(conn)
	if sess == nil {
		// Table full: ignore the connection attempt.
		logger.Warn("session table full, dropping connection")
		conn.Close()
		return
	}
	defer c.sessions.Remove(sess)

	// Unblock reads when the coordinator shuts down.
	stop := context.AfterFunc(ctx, sess.Close)
	defer stop()

	reader := bufio.NewReader(conn)

	username, err := readLine(reader)
	if err != nil {
		logger.Warn("handshake read failed", "error", err)
		return
	}
	sess.Username = username
	sess.Role = c.roles.Lookup(username)

	if sess.Role == protocol.RoleNone {
		sess.Write([]byte(protocol.RejectUnauthorised + "\n"))
		// Give the reject a moment to flush before teardown.
		time.Sleep(100 * time.Millisecond)
		return
	}

	c.docMu.Lock()
	version := c.doc.Version()
	body := c.doc.Flatten()
	c.docMu.Unlock()

	var hs strings.Builder
	fmt.Fprintf(&hs, "%s\n%d\n%d\n", sess.Role, version, len(body))
	hs.Write(body)
	if err := sess.Write([]byte(hs.String())); err != nil {
		logger.Warn("handshake write failed", "user", username, "error", err)
		return
	}

	sess.ready.Store(true)
	logger.Info("session established", "session", sess.ID, "user", username, "role", sess.Role.String())

	limiter := rate.NewLimiter(rate.Limit(c.cfg.IntakeRate), c.cfg.IntakeBurst)

	for {
		line, err := readLine(reader)
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				logger.Warn("session read failed", "session", sess.ID, "error", err)
			}
			return
		}

		switch line {
		case protocol.CmdDisconnect:
			logger.Info("session disconnected", "session", sess.ID, "user", username)
			return

		case protocol.CmdDocQuery:
			c.docMu.Lock()
			v := c.doc.Version()
			b := c.doc.Flatten()
			c.docMu.Unlock()
			if err := sess.Write([]byte(fmt.Sprintf("%d\n%s\n", v, b))); err != nil {
				return
			}

		case protocol.CmdPermQuery:
			if err := sess.Write([]byte(sess.Role.String() + "\n")); err != nil {
				return
			}

		default:
			if line == "" {
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			c.docMu.Lock()
			v := c.doc.Version()
			c.docMu.Unlock()
			c.queue.Push(Entry{
				Username: username,
				Raw:      line,
				Version:  v,
				At:       time.Now(),
			})
		}
	}
}

// readLine reads one newline-terminated line, stripping the terminator.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

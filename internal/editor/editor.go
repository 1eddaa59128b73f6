// Package editor implements the quill client: session handshake, the local
// replica kept converged by broadcast frames, and snapshot resynchronisation
// when the replica drifts.
package editor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/ehrlich-b/quill/internal/document"
	"github.com/ehrlich-b/quill/internal/logger"
	"github.com/ehrlich-b/quill/internal/protocol"
)

// ErrRejected is returned when the coordinator refuses the handshake.
var ErrRejected = errors.New("connection rejected: unauthorised")

// Editor is one connected editor process.
type Editor struct {
	Username string
	Role     protocol.Role

	conn net.Conn
	br   *bufio.Reader
	out  io.Writer // replica/query output for the user

	mu     sync.Mutex
	doc    *document.Document
	frames []protocol.Frame // everything broadcast since connect, for LOG?

	// resync state driven by the read loop
	syncing  bool
	awaiting bool // next payload is a DOC? body
	syncVer  uint64
}

// Connect dials the coordinator socket and performs the handshake. The
// returned editor holds a replica equal to the coordinator's snapshot.
func Connect(socketPath, username string, out io.Writer) (*Editor, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", socketPath, err)
	}

	e := &Editor{
		Username: username,
		conn:     conn,
		br:       bufio.NewReader(conn),
		out:      out,
		doc:      document.New(),
	}

	if _, err := fmt.Fprintf(conn, "%s\n", username); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send username: %w", err)
	}

	roleLine, err := e.readLine()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read role: %w", err)
	}
	if strings.HasPrefix(roleLine, protocol.FrameReject) {
		conn.Close()
		return nil, ErrRejected
	}
	e.Role = protocol.ParseRole(roleLine)

	versionLine, err := e.readLine()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read version: %w", err)
	}
	version, err := strconv.ParseUint(versionLine, 10, 64)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("bad version line %q: %w", versionLine, err)
	}

	lengthLine, err := e.readLine()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read length: %w", err)
	}
	length, err := strconv.Atoi(lengthLine)
	if err != nil || length < 0 {
		conn.Close()
		return nil, fmt.Errorf("bad length line %q", lengthLine)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(e.br, body); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	e.doc.Load(version, body)
	logger.Info("connected", "user", username, "role", e.Role.String(), "version", version, "bytes", length)
	return e, nil
}

// Run consumes server messages until the connection closes or ctx ends.
func (e *Editor) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { e.conn.Close() })
	defer stop()

	for {
		line, err := e.readLine()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := e.handleLine(line); err != nil {
			logger.Warn("replica drift, requesting snapshot", "error", err)
			e.requestResync()
		}
	}
}

// handleLine dispatches one server line: a frame header, an EDIT record, an
// END terminator, a PERM? reply, or the version line of a DOC? reply.
func (e *Editor) handleLine(line string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.awaiting {
		return e.finishResync(line)
	}

	switch {
	case strings.HasPrefix(line, protocol.FrameVersion+" "):
		v, err := protocol.ParseFrameHeader(line)
		if err != nil {
			return err
		}
		e.frames = append(e.frames, protocol.Frame{Version: v})
		return nil

	case strings.HasPrefix(line, protocol.FrameEdit+" "):
		rec, err := protocol.ParseFrameRecord(line)
		if err != nil {
			return err
		}
		if n := len(e.frames); n > 0 {
			e.frames[n-1].Records = append(e.frames[n-1].Records, rec)
		}
		return nil

	case line == protocol.FrameEnd:
		// The frame is complete; replay it against the replica unless a
		// snapshot rebuild is already underway.
		if e.syncing || len(e.frames) == 0 {
			return nil
		}
		return Replay(e.doc, e.frames[len(e.frames)-1])

	case line == "read" || line == "write":
		fmt.Fprintln(e.out, line)
		return nil

	default:
		// A bare decimal is the version line of a DOC? reply; the body
		// follows.
		v, err := strconv.ParseUint(line, 10, 64)
		if err != nil {
			return fmt.Errorf("unexpected server line %q", line)
		}
		e.syncVer = v
		e.awaiting = true
		return nil
	}
}

// finishResync consumes the DOC? body and rebuilds the replica. The
// coordinator writes the whole reply in one call, so any bytes already
// buffered behind the first body line belong to the body too.
func (e *Editor) finishResync(first string) error {
	body := first
	if n := e.br.Buffered(); n > 0 {
		rest := make([]byte, n)
		if _, err := io.ReadFull(e.br, rest); err != nil {
			return err
		}
		body += "\n" + strings.TrimSuffix(string(rest), "\n")
	}
	e.doc.Load(e.syncVer, []byte(body))
	e.awaiting = false
	e.syncing = false
	logger.Info("replica rebuilt", "version", e.syncVer, "bytes", len(body))
	return nil
}

// requestResync asks for a snapshot and ignores frames until it lands.
func (e *Editor) requestResync() {
	e.mu.Lock()
	e.syncing = true
	e.mu.Unlock()
	if err := e.Send(protocol.CmdDocQuery); err != nil {
		logger.Error("resync request failed", "error", err)
	}
}

func (e *Editor) readLine() (string, error) {
	line, err := e.br.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Send writes one command line to the coordinator.
func (e *Editor) Send(line string) error {
	_, err := fmt.Fprintf(e.conn, "%s\n", line)
	return err
}

// Disconnect notifies the coordinator and closes the connection.
func (e *Editor) Disconnect() {
	e.Send(protocol.CmdDisconnect)
	e.conn.Close()
}

// Snapshot returns the replica's version and body.
func (e *Editor) Snapshot() (uint64, []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Version(), e.doc.Flatten()
}

// PrintLog writes every frame seen since connect, in frame form.
func (e *Editor) PrintLog(w io.Writer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.frames {
		w.Write(e.frames[i].Encode())
	}
}

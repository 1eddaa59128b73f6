// Package coordinator implements the quilld side of the protocol: session
// intake over a unix socket, the batched edit pipeline, and broadcast of
// committed ticks to every connected editor.
package coordinator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ehrlich-b/quill/internal/config"
	"github.com/ehrlich-b/quill/internal/document"
	"github.com/ehrlich-b/quill/internal/logger"
	"github.com/ehrlich-b/quill/internal/roles"
	"github.com/ehrlich-b/quill/internal/store"
)

// Coordinator owns the shared document and everything that feeds it.
// Lock discipline: docMu guards the document; the queue and session table
// carry their own locks and are leaves — neither is held while waiting on
// docMu.
type Coordinator struct {
	cfg      *config.Config
	interval time.Duration

	docMu sync.Mutex
	doc   *document.Document

	sessions *SessionManager
	queue    *Queue
	roles    *roles.Table
	store    *store.Store

	socketPath string
}

// New assembles a coordinator. store may be nil (audit logging disabled).
func New(cfg *config.Config, interval time.Duration, rt *roles.Table, st *store.Store) *Coordinator {
	return &Coordinator{
		cfg:        cfg,
		interval:   interval,
		doc:        document.New(),
		sessions:   NewSessionManager(cfg.MaxSessions),
		queue:      NewQueue(),
		roles:      rt,
		store:      st,
		socketPath: cfg.SocketPath(os.Getpid()),
	}
}

// SocketPath returns the unix socket editors dial.
func (c *Coordinator) SocketPath() string {
	return c.socketPath
}

// SessionCount returns the number of live sessions; QUIT is gated on it.
func (c *Coordinator) SessionCount() int {
	return c.sessions.Count()
}

// Snapshot returns the current version and body, for tests and the operator.
func (c *Coordinator) Snapshot() (uint64, []byte) {
	c.docMu.Lock()
	defer c.docMu.Unlock()
	return c.doc.Version(), c.doc.Flatten()
}

// Run listens for editors and drives the batch scheduler until ctx is
// cancelled, then persists the document and tears everything down.
func (c *Coordinator) Run(ctx context.Context) error {
	// Clean up stale socket.
	os.Remove(c.socketPath)

	ln, err := net.Listen("unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("listen unix %s: %w", c.socketPath, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.runScheduler(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		ln.Close()
		return nil
	})

	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			go c.serveConn(ctx, conn)
		}
	})

	logger.Info("coordinator listening", "socket", c.socketPath, "interval", c.interval)

	err = g.Wait()
	c.shutdown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// shutdown discards the in-flight queue, persists the document, and unlinks
// the socket. Best effort: failures are logged, not returned.
func (c *Coordinator) shutdown() {
	c.queue.TakeAll()
	c.sessions.CloseAll()

	c.docMu.Lock()
	body := c.doc.Flatten()
	version := c.doc.Version()
	c.docMu.Unlock()

	if err := os.WriteFile(c.cfg.DocPath, body, 0644); err != nil {
		logger.Error("persist document failed", "path", c.cfg.DocPath, "error", err)
	} else {
		logger.Info("document persisted", "path", c.cfg.DocPath, "version", version, "bytes", len(body))
	}

	os.Remove(c.socketPath)
}

// RunOperator reads operator commands from in until ctx ends. QUIT shuts the
// coordinator down only when no editor is connected; otherwise it is
// rejected and sessions continue.
func (c *Coordinator) RunOperator(ctx context.Context, cancel context.CancelFunc, in io.Reader, out io.Writer) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		switch sc.Text() {
		case "QUIT":
			if n := c.SessionCount(); n > 0 {
				fmt.Fprintf(out, "QUIT rejected, %d clients still connected.\n", n)
				continue
			}
			cancel()
			return
		default:
			// Unknown operator input is ignored.
		}
	}
}

package coordinator

import (
	"context"
	"sort"
	"time"

	"github.com/ehrlich-b/quill/internal/document"
	"github.com/ehrlich-b/quill/internal/logger"
	"github.com/ehrlich-b/quill/internal/protocol"
)

// runScheduler drains the intake queue once per interval. Ticks never
// overlap: this is the only goroutine that mutates the document.
func (c *Coordinator) runScheduler(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick applies one batch: drain, order, role-gate, apply, broadcast, commit.
// The frame for a tick is written out before the version increments, so
// editors always see frames stamped with the version they were applied at.
func (c *Coordinator) tick() {
	entries := c.queue.TakeAll()
	if len(entries) == 0 {
		return
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].At.Equal(entries[j].At) {
			return entries[i].Seq < entries[j].Seq
		}
		return entries[i].At.Before(entries[j].At)
	})

	// Role snapshot first: the session-table lock is never taken while the
	// document lock is held for mutation.
	rolesNow := c.sessions.Roles()

	c.docMu.Lock()
	defer c.docMu.Unlock()

	for _, e := range entries {
		role, connected := rolesNow[e.Username]
		if !connected || role == protocol.RoleNone {
			continue
		}
		if protocol.IsMutatingWord(e.Raw) && role != protocol.RoleWrite {
			c.doc.RecordUnauthorised(e.Version, e.Username, e.Raw)
			continue
		}
		cmd, err := protocol.Parse(e.Raw)
		if err != nil {
			// Malformed lines carry no usable sender context; drop them.
			logger.Debug("dropping unparseable command", "user", e.Username, "raw", e.Raw)
			continue
		}
		if !cmd.Mutating() {
			continue
		}
		c.doc.Apply(e.Version, cmd, e.Username, e.Raw)
	}

	pending := c.doc.Pending()
	if len(pending) == 0 {
		return
	}
	version := c.doc.Version()

	frame := buildFrame(version, pending)
	c.sessions.Broadcast(frame.Encode())

	if c.store != nil {
		if err := c.store.AppendTick(version, pending); err != nil {
			logger.Error("audit log append failed", "version", version, "error", err)
		}
	}

	c.doc.IncrementVersion()
	logger.Debug("tick committed", "version", version, "records", len(pending))
}

func buildFrame(version uint64, records []document.Record) *protocol.Frame {
	f := &protocol.Frame{Version: version}
	for _, r := range records {
		f.Records = append(f.Records, protocol.FrameRecord{
			Username: r.Username,
			Raw:      r.Raw,
			Status:   r.Status,
		})
	}
	return f
}

// Package document holds the shared Markdown document: the piece list, the
// version counter, the current tick's pending records, and the committed
// edit history. Formatting commands reduce to inserts at computed positions.
package document

import (
	"fmt"

	"github.com/ehrlich-b/quill/internal/piece"
	"github.com/ehrlich-b/quill/internal/protocol"
)

// Record is one accepted or rejected edit, as it will appear in the tick's
// broadcast frame and in the audit log.
type Record struct {
	Type             string
	SubmittedVersion uint64
	Pos1, Pos2       int
	Content          string
	Level            int
	Status           protocol.Status
	Username         string
	Raw              string
}

// Document is the live document. It is not goroutine-safe; the coordinator
// guards it with its own mutex and the editor touches its replica from a
// single goroutine.
type Document struct {
	list    piece.List
	version uint64
	pending []Record
	history []Record
}

func New() *Document {
	return &Document{}
}

// Version returns the current committed version.
func (d *Document) Version() uint64 {
	return d.version
}

// Len returns the document length in bytes.
func (d *Document) Len() int {
	return d.list.Len()
}

// Flatten returns the full document body.
func (d *Document) Flatten() []byte {
	return d.list.Flatten()
}

func (d *Document) String() string {
	return string(d.list.Flatten())
}

// Pending returns the records produced since the last version increment.
func (d *Document) Pending() []Record {
	out := make([]Record, len(d.pending))
	copy(out, d.pending)
	return out
}

// History returns all committed records in tick order.
func (d *Document) History() []Record {
	out := make([]Record, len(d.history))
	copy(out, d.history)
	return out
}

// IncrementVersion commits the tick: pending records move onto the history
// tail and the version advances by one.
func (d *Document) IncrementVersion() {
	d.version++
	d.history = append(d.history, d.pending...)
	d.pending = nil
}

// record appends the tick record for a command and returns its status
// unchanged, so mutation paths can end with `return d.record(...)`.
func (d *Document) record(r Record, status protocol.Status) protocol.Status {
	r.Status = status
	d.pending = append(d.pending, r)
	return status
}

// RecordUnauthorised appends a rejection record for a mutating command
// submitted without the write role. The document is untouched.
func (d *Document) RecordUnauthorised(version uint64, username, raw string) {
	d.record(Record{
		SubmittedVersion: version,
		Username:         username,
		Raw:              raw,
	}, protocol.StatusUnauthorised)
}

func (d *Document) validRange(start, end int) bool {
	return start < end && start <= d.list.Len() && end <= d.list.Len()
}

// Insert places text at pos.
func (d *Document) Insert(version uint64, pos int, text, username, raw string) protocol.Status {
	r := Record{Type: protocol.CmdInsert, SubmittedVersion: version, Pos1: pos, Content: text, Username: username, Raw: raw}
	if version != d.version {
		return d.record(r, protocol.StatusOutdatedVersion)
	}
	if pos > d.list.Len() {
		return d.record(r, protocol.StatusInvalidPosition)
	}
	d.list.Insert(pos, []byte(text))
	return d.record(r, protocol.StatusSuccess)
}

// Delete removes n bytes starting at pos. n == 0 succeeds without mutating.
func (d *Document) Delete(version uint64, pos, n int, username, raw string) protocol.Status {
	r := Record{Type: protocol.CmdDelete, SubmittedVersion: version, Pos1: pos, Pos2: n, Username: username, Raw: raw}
	if version != d.version {
		return d.record(r, protocol.StatusOutdatedVersion)
	}
	if pos > d.list.Len() || pos+n > d.list.Len() {
		return d.record(r, protocol.StatusInvalidPosition)
	}
	d.list.Delete(pos, n)
	return d.record(r, protocol.StatusSuccess)
}

// Newline inserts "\n" at pos.
func (d *Document) Newline(version uint64, pos int, username, raw string) protocol.Status {
	r := Record{Type: protocol.CmdNewline, SubmittedVersion: version, Pos1: pos, Username: username, Raw: raw}
	if version != d.version {
		return d.record(r, protocol.StatusOutdatedVersion)
	}
	if pos > d.list.Len() {
		return d.record(r, protocol.StatusInvalidPosition)
	}
	d.list.Insert(pos, []byte("\n"))
	return d.record(r, protocol.StatusSuccess)
}

// lineStart ensures pos sits at the start of a line: if the preceding byte is
// not a newline, one is inserted and the adjusted position returned.
func (d *Document) lineStart(pos int) int {
	if pos == 0 {
		return pos
	}
	if b, ok := d.list.ByteAt(pos - 1); ok && b != '\n' {
		d.list.Insert(pos, []byte("\n"))
		pos++
	}
	return pos
}

// Heading inserts a level-1..3 heading marker at pos, first breaking the line
// there when pos is not already at a line start.
func (d *Document) Heading(version uint64, level, pos int, username, raw string) protocol.Status {
	r := Record{Type: protocol.CmdHeading, SubmittedVersion: version, Pos1: pos, Level: level, Username: username, Raw: raw}
	if version != d.version {
		return d.record(r, protocol.StatusOutdatedVersion)
	}
	if pos > d.list.Len() || level < 1 || level > 3 {
		return d.record(r, protocol.StatusInvalidPosition)
	}
	pos = d.lineStart(pos)
	prefix := []string{"# ", "## ", "### "}[level-1]
	d.list.Insert(pos, []byte(prefix))
	return d.record(r, protocol.StatusSuccess)
}

// Blockquote inserts "> " at pos, first breaking the line there when pos is
// not already at a line start.
func (d *Document) Blockquote(version uint64, pos int, username, raw string) protocol.Status {
	r := Record{Type: protocol.CmdBlockquote, SubmittedVersion: version, Pos1: pos, Username: username, Raw: raw}
	if version != d.version {
		return d.record(r, protocol.StatusOutdatedVersion)
	}
	if pos > d.list.Len() {
		return d.record(r, protocol.StatusInvalidPosition)
	}
	pos = d.lineStart(pos)
	d.list.Insert(pos, []byte("> "))
	return d.record(r, protocol.StatusSuccess)
}

// UnorderedList inserts "- " at pos, first breaking the line there when pos
// is not already at a line start.
func (d *Document) UnorderedList(version uint64, pos int, username, raw string) protocol.Status {
	r := Record{Type: protocol.CmdUnorderedList, SubmittedVersion: version, Pos1: pos, Username: username, Raw: raw}
	if version != d.version {
		return d.record(r, protocol.StatusOutdatedVersion)
	}
	if pos > d.list.Len() {
		return d.record(r, protocol.StatusInvalidPosition)
	}
	pos = d.lineStart(pos)
	d.list.Insert(pos, []byte("- "))
	return d.record(r, protocol.StatusSuccess)
}

// OrderedList inserts "k. " at pos, first breaking the line there when pos is
// not already at a line start. The number continues a "d. " item found right after the previous newline,
// wrapping back to 1 past 9; otherwise it starts at 1.
func (d *Document) OrderedList(version uint64, pos int, username, raw string) protocol.Status {
	r := Record{Type: protocol.CmdOrderedList, SubmittedVersion: version, Pos1: pos, Username: username, Raw: raw}
	if version != d.version {
		return d.record(r, protocol.StatusOutdatedVersion)
	}
	if pos > d.list.Len() {
		return d.record(r, protocol.StatusInvalidPosition)
	}
	pos = d.lineStart(pos)

	number := 1
	for search := pos - 1; search >= 0; search-- {
		b, ok := d.list.ByteAt(search)
		if !ok {
			break
		}
		if b != '\n' {
			continue
		}
		d1, ok1 := d.list.ByteAt(search + 1)
		d2, ok2 := d.list.ByteAt(search + 2)
		d3, ok3 := d.list.ByteAt(search + 3)
		if ok1 && ok2 && ok3 && d1 >= '1' && d1 <= '9' && d2 == '.' && d3 == ' ' {
			number = int(d1-'0') + 1
			if number > 9 {
				number = 1
			}
		}
		break
	}

	d.list.Insert(pos, []byte(fmt.Sprintf("%d. ", number)))
	return d.record(r, protocol.StatusSuccess)
}

// HorizontalRule inserts "---" on its own line at pos, adding the trailing
// newline unless one is already there.
func (d *Document) HorizontalRule(version uint64, pos int, username, raw string) protocol.Status {
	r := Record{Type: protocol.CmdHorizontalRule, SubmittedVersion: version, Pos1: pos, Username: username, Raw: raw}
	if version != d.version {
		return d.record(r, protocol.StatusOutdatedVersion)
	}
	if pos > d.list.Len() {
		return d.record(r, protocol.StatusInvalidPosition)
	}
	pos = d.lineStart(pos)
	d.list.Insert(pos, []byte("---"))
	if b, ok := d.list.ByteAt(pos + 3); !ok || b != '\n' {
		d.list.Insert(pos+3, []byte("\n"))
	}
	return d.record(r, protocol.StatusSuccess)
}

// wrap surrounds [start, end) with the given markers, inserting at end first
// so start stays valid.
func (d *Document) wrap(start, end int, left, right string) {
	d.list.Insert(end, []byte(right))
	d.list.Insert(start, []byte(left))
}

// Bold wraps [start, end) in "**".
func (d *Document) Bold(version uint64, start, end int, username, raw string) protocol.Status {
	r := Record{Type: protocol.CmdBold, SubmittedVersion: version, Pos1: start, Pos2: end, Username: username, Raw: raw}
	if version != d.version {
		return d.record(r, protocol.StatusOutdatedVersion)
	}
	if !d.validRange(start, end) {
		return d.record(r, protocol.StatusInvalidPosition)
	}
	d.wrap(start, end, "**", "**")
	return d.record(r, protocol.StatusSuccess)
}

// Italic wraps [start, end) in "*".
func (d *Document) Italic(version uint64, start, end int, username, raw string) protocol.Status {
	r := Record{Type: protocol.CmdItalic, SubmittedVersion: version, Pos1: start, Pos2: end, Username: username, Raw: raw}
	if version != d.version {
		return d.record(r, protocol.StatusOutdatedVersion)
	}
	if !d.validRange(start, end) {
		return d.record(r, protocol.StatusInvalidPosition)
	}
	d.wrap(start, end, "*", "*")
	return d.record(r, protocol.StatusSuccess)
}

// Code wraps [start, end) in backticks.
func (d *Document) Code(version uint64, start, end int, username, raw string) protocol.Status {
	r := Record{Type: protocol.CmdCode, SubmittedVersion: version, Pos1: start, Pos2: end, Username: username, Raw: raw}
	if version != d.version {
		return d.record(r, protocol.StatusOutdatedVersion)
	}
	if !d.validRange(start, end) {
		return d.record(r, protocol.StatusInvalidPosition)
	}
	d.wrap(start, end, "`", "`")
	return d.record(r, protocol.StatusSuccess)
}

// Link turns [start, end) into a Markdown link to url.
func (d *Document) Link(version uint64, start, end int, url, username, raw string) protocol.Status {
	r := Record{Type: protocol.CmdLink, SubmittedVersion: version, Pos1: start, Pos2: end, Content: url, Username: username, Raw: raw}
	if version != d.version {
		return d.record(r, protocol.StatusOutdatedVersion)
	}
	if !d.validRange(start, end) {
		return d.record(r, protocol.StatusInvalidPosition)
	}
	d.wrap(start, end, "[", "]("+url+")")
	return d.record(r, protocol.StatusSuccess)
}

// Apply dispatches a parsed command against the document at the submitted
// version. raw is the verbatim line the editor sent; it is what broadcast
// frames and the audit log carry. Session words are not document commands
// and report invalid position without mutating.
func (d *Document) Apply(version uint64, cmd protocol.Command, username, raw string) protocol.Status {
	switch cmd.Type {
	case protocol.CmdInsert:
		return d.Insert(version, cmd.Pos1, cmd.Text, username, raw)
	case protocol.CmdDelete:
		return d.Delete(version, cmd.Pos1, cmd.Pos2, username, raw)
	case protocol.CmdNewline:
		return d.Newline(version, cmd.Pos1, username, raw)
	case protocol.CmdHeading:
		return d.Heading(version, cmd.Level, cmd.Pos1, username, raw)
	case protocol.CmdBold:
		return d.Bold(version, cmd.Pos1, cmd.Pos2, username, raw)
	case protocol.CmdItalic:
		return d.Italic(version, cmd.Pos1, cmd.Pos2, username, raw)
	case protocol.CmdCode:
		return d.Code(version, cmd.Pos1, cmd.Pos2, username, raw)
	case protocol.CmdBlockquote:
		return d.Blockquote(version, cmd.Pos1, username, raw)
	case protocol.CmdOrderedList:
		return d.OrderedList(version, cmd.Pos1, username, raw)
	case protocol.CmdUnorderedList:
		return d.UnorderedList(version, cmd.Pos1, username, raw)
	case protocol.CmdHorizontalRule:
		return d.HorizontalRule(version, cmd.Pos1, username, raw)
	case protocol.CmdLink:
		return d.Link(version, cmd.Pos1, cmd.Pos2, cmd.Text, username, raw)
	}
	return d.record(Record{Type: cmd.Type, SubmittedVersion: version, Username: username, Raw: raw}, protocol.StatusInvalidPosition)
}

// Load replaces the document body with a snapshot at the given version,
// discarding pending records. Used when an editor rebuilds its replica.
func (d *Document) Load(version uint64, body []byte) {
	d.list = piece.List{}
	if len(body) > 0 {
		d.list.Insert(0, body)
	}
	d.version = version
	d.pending = nil
}

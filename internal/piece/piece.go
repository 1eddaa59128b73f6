// Package piece implements the segmented byte sequence backing a document.
// The list holds immutable-content segments; positional edits split, trim,
// or unlink segments rather than shifting bytes around.
package piece

import "errors"

// ErrOutOfRange is returned when a position or range falls outside the list.
var ErrOutOfRange = errors.New("position out of range")

type segment struct {
	data []byte
	next *segment
}

// List is a singly linked sequence of non-empty segments. The zero value is
// an empty list and ready to use.
type List struct {
	head   *segment
	length int
}

// Len returns the total byte length of the list.
func (l *List) Len() int {
	return l.length
}

// find locates the segment containing byte pos, its in-segment offset, and
// the preceding segment (nil when the target is head). pos == Len() resolves
// to the last segment at offset len(data).
func (l *List) find(pos int) (seg *segment, offset int, prev *segment) {
	cur := l.head
	at := 0
	for cur != nil {
		if at+len(cur.data) > pos {
			return cur, pos - at, prev
		}
		at += len(cur.data)
		prev = cur
		cur = cur.next
	}
	if pos == l.length && l.head != nil {
		// prev now points at the last segment.
		cur = prev
		var before *segment
		for s := l.head; s != cur; s = s.next {
			before = s
		}
		return cur, len(cur.data), before
	}
	return nil, 0, nil
}

// Insert places s at byte position pos. Inserting at Len() appends; inserting
// into an empty list creates the first segment. Empty s is a no-op.
func (l *List) Insert(pos int, s []byte) error {
	if pos > l.length {
		return ErrOutOfRange
	}
	if len(s) == 0 {
		return nil
	}
	data := make([]byte, len(s))
	copy(data, s)

	if l.head == nil {
		l.head = &segment{data: data}
		l.length = len(data)
		return nil
	}

	target, offset, prev := l.find(pos)
	if target == nil {
		return ErrOutOfRange
	}

	switch {
	case offset == 0:
		ins := &segment{data: data, next: target}
		if prev == nil {
			l.head = ins
		} else {
			prev.next = ins
		}
	case offset == len(target.data):
		ins := &segment{data: data, next: target.next}
		target.next = ins
	default:
		// Split the target around the insertion point.
		left := &segment{data: target.data[:offset:offset]}
		mid := &segment{data: data}
		right := &segment{data: target.data[offset:]}
		left.next = mid
		mid.next = right
		right.next = target.next
		if prev == nil {
			l.head = left
		} else {
			prev.next = left
		}
	}

	l.length += len(data)
	return nil
}

// Delete removes n bytes starting at pos. n == 0 is a no-op. Segments fully
// covered by the range are unlinked; boundary segments are trimmed. Segments
// that become empty are removed so the non-empty invariant holds.
func (l *List) Delete(pos, n int) error {
	if pos > l.length || pos+n > l.length {
		return ErrOutOfRange
	}
	if n == 0 {
		return nil
	}

	start, so, sprev := l.find(pos)
	if start == nil {
		return ErrOutOfRange
	}

	if so+n <= len(start.data) {
		// Range contained in a single segment.
		rest := len(start.data) - so - n
		data := make([]byte, so+rest)
		copy(data, start.data[:so])
		copy(data[so:], start.data[so+n:])
		if len(data) == 0 {
			l.unlink(start, sprev)
		} else {
			start.data = data
		}
		l.length -= n
		return nil
	}

	remaining := n
	// Trim or drop the start segment.
	if so == 0 {
		remaining -= len(start.data)
		next := start.next
		l.unlink(start, sprev)
		start = next
	} else {
		remaining -= len(start.data) - so
		start.data = start.data[:so:so]
		sprev = start
		start = start.next
	}

	// Drop fully covered interior segments.
	for start != nil && remaining >= len(start.data) {
		remaining -= len(start.data)
		next := start.next
		l.unlink(start, sprev)
		start = next
	}

	// Trim the end segment.
	if remaining > 0 {
		start.data = start.data[remaining:]
	}

	l.length -= n
	return nil
}

func (l *List) unlink(seg, prev *segment) {
	if prev == nil {
		l.head = seg.next
	} else {
		prev.next = seg.next
	}
}

// Flatten returns the concatenation of all segments.
func (l *List) Flatten() []byte {
	out := make([]byte, 0, l.length)
	for s := l.head; s != nil; s = s.next {
		out = append(out, s.data...)
	}
	return out
}

// ByteAt returns the byte at pos, or false when pos is outside [0, Len()).
func (l *List) ByteAt(pos int) (byte, bool) {
	if pos < 0 || pos >= l.length {
		return 0, false
	}
	seg, offset, _ := l.find(pos)
	if seg == nil || offset >= len(seg.data) {
		return 0, false
	}
	return seg.data[offset], true
}

// Segments returns the number of linked segments. Used by tests to check
// split and segment-removal behavior.
func (l *List) Segments() int {
	n := 0
	for s := l.head; s != nil; s = s.next {
		n++
	}
	return n
}

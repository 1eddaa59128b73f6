package piece

import (
	"bytes"
	"testing"
)

func build(t *testing.T, parts ...string) *List {
	t.Helper()
	l := &List{}
	for _, p := range parts {
		if err := l.Insert(l.Len(), []byte(p)); err != nil {
			t.Fatalf("insert %q: %v", p, err)
		}
	}
	return l
}

func TestInsertEmptyList(t *testing.T) {
	l := &List{}
	if err := l.Insert(0, []byte("hello")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := string(l.Flatten()); got != "hello" {
		t.Errorf("want hello, got %q", got)
	}
	if l.Len() != 5 {
		t.Errorf("want len=5, got %d", l.Len())
	}
}

func TestInsertAppend(t *testing.T) {
	l := build(t, "hello")
	if err := l.Insert(5, []byte(" world")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := string(l.Flatten()); got != "hello world" {
		t.Errorf("want hello world, got %q", got)
	}
}

func TestInsertPrepend(t *testing.T) {
	l := build(t, "world")
	if err := l.Insert(0, []byte("hello ")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := string(l.Flatten()); got != "hello world" {
		t.Errorf("want hello world, got %q", got)
	}
}

func TestInsertSplitsSegment(t *testing.T) {
	l := build(t, "helloworld")
	if err := l.Insert(5, []byte(", ")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := string(l.Flatten()); got != "hello, world" {
		t.Errorf("want hello, world, got %q", got)
	}
	if l.Segments() != 3 {
		t.Errorf("want 3 segments after split, got %d", l.Segments())
	}
}

func TestInsertAtSegmentBoundary(t *testing.T) {
	l := build(t, "ab", "cd")
	if err := l.Insert(2, []byte("X")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := string(l.Flatten()); got != "abXcd" {
		t.Errorf("want abXcd, got %q", got)
	}
}

func TestInsertPastEnd(t *testing.T) {
	l := build(t, "ab")
	if err := l.Insert(3, []byte("X")); err != ErrOutOfRange {
		t.Errorf("want ErrOutOfRange, got %v", err)
	}
}

func TestInsertEmptyContent(t *testing.T) {
	l := build(t, "ab")
	if err := l.Insert(1, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := string(l.Flatten()); got != "ab" {
		t.Errorf("want ab, got %q", got)
	}
}

func TestDeleteWithinSegment(t *testing.T) {
	l := build(t, "hello world")
	if err := l.Delete(5, 6); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := string(l.Flatten()); got != "hello" {
		t.Errorf("want hello, got %q", got)
	}
	if l.Len() != 5 {
		t.Errorf("want len=5, got %d", l.Len())
	}
}

func TestDeleteWholeDocument(t *testing.T) {
	l := build(t, "abc", "def")
	if err := l.Delete(0, 6); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if l.Len() != 0 {
		t.Errorf("want len=0, got %d", l.Len())
	}
	if l.Segments() != 0 {
		t.Errorf("want 0 segments, got %d", l.Segments())
	}
	// List stays usable after total deletion.
	if err := l.Insert(0, []byte("x")); err != nil {
		t.Fatalf("insert after delete: %v", err)
	}
	if got := string(l.Flatten()); got != "x" {
		t.Errorf("want x, got %q", got)
	}
}

func TestDeleteAcrossSegments(t *testing.T) {
	l := build(t, "abc", "def", "ghi")
	if err := l.Delete(1, 7); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := string(l.Flatten()); got != "ai" {
		t.Errorf("want ai, got %q", got)
	}
}

func TestDeleteDropsBoundarySegments(t *testing.T) {
	l := build(t, "abc", "def", "ghi")
	// Start offset 0 and end offset == segment length: both boundary
	// segments drop entirely.
	if err := l.Delete(3, 3); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := string(l.Flatten()); got != "abcghi" {
		t.Errorf("want abcghi, got %q", got)
	}
	if l.Segments() != 2 {
		t.Errorf("want 2 segments, got %d", l.Segments())
	}
}

func TestDeleteZeroBytes(t *testing.T) {
	l := build(t, "abc")
	if err := l.Delete(1, 0); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := string(l.Flatten()); got != "abc" {
		t.Errorf("want abc, got %q", got)
	}
}

func TestDeletePastEnd(t *testing.T) {
	l := build(t, "abc")
	if err := l.Delete(1, 3); err != ErrOutOfRange {
		t.Errorf("want ErrOutOfRange, got %v", err)
	}
}

func TestInsertDeleteRoundTrip(t *testing.T) {
	l := build(t, "base text")
	before := l.Flatten()
	if err := l.Insert(4, []byte("XYZ")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := l.Delete(4, 3); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !bytes.Equal(l.Flatten(), before) {
		t.Errorf("want %q, got %q", before, l.Flatten())
	}
}

func TestByteAt(t *testing.T) {
	l := build(t, "ab", "cd")
	tests := []struct {
		pos  int
		want byte
		ok   bool
	}{
		{0, 'a', true},
		{1, 'b', true},
		{2, 'c', true},
		{3, 'd', true},
		{4, 0, false},
		{-1, 0, false},
	}
	for _, tt := range tests {
		got, ok := l.ByteAt(tt.pos)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ByteAt(%d): want (%q,%v), got (%q,%v)", tt.pos, tt.want, tt.ok, got, ok)
		}
	}
}

func TestLengthInvariant(t *testing.T) {
	l := build(t, "abc", "def", "ghi")
	ops := func() {
		l.Insert(2, []byte("12"))
		l.Delete(0, 4)
		l.Insert(l.Len(), []byte("!"))
	}
	ops()
	sum := 0
	for s := l.head; s != nil; s = s.next {
		if len(s.data) == 0 {
			t.Error("empty segment linked")
		}
		sum += len(s.data)
	}
	if sum != l.Len() {
		t.Errorf("length invariant broken: segments sum %d, Len %d", sum, l.Len())
	}
}

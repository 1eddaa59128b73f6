package protocol

import (
	"strings"
	"testing"
)

func TestParseFormatRoundTrip(t *testing.T) {
	cmds := []Command{
		{Type: CmdInsert, Pos1: 0, Text: "Hello"},
		{Type: CmdInsert, Pos1: 5, Text: "two words here"},
		{Type: CmdDelete, Pos1: 3, Pos2: 7},
		{Type: CmdNewline, Pos1: 12},
		{Type: CmdHeading, Level: 2, Pos1: 4},
		{Type: CmdBold, Pos1: 0, Pos2: 5},
		{Type: CmdItalic, Pos1: 1, Pos2: 2},
		{Type: CmdCode, Pos1: 8, Pos2: 20},
		{Type: CmdBlockquote, Pos1: 0},
		{Type: CmdOrderedList, Pos1: 6},
		{Type: CmdUnorderedList, Pos1: 6},
		{Type: CmdHorizontalRule, Pos1: 9},
		{Type: CmdLink, Pos1: 2, Pos2: 9, Text: "https://example.com/a"},
		{Type: CmdDisconnect},
		{Type: CmdDocQuery},
		{Type: CmdPermQuery},
	}
	for _, want := range cmds {
		got, err := Parse(want.String())
		if err != nil {
			t.Errorf("Parse(%q): %v", want.String(), err)
			continue
		}
		if got != want {
			t.Errorf("round trip %q: want %+v, got %+v", want.String(), want, got)
		}
	}
}

func TestParseMalformed(t *testing.T) {
	lines := []string{
		"",
		"NOPE 1",
		"INSERT",
		"INSERT x text",
		"INSERT 5",
		"DEL 1",
		"DEL 1 2 3",
		"DEL -1 2",
		"HEADING 1",
		"BOLD a b",
		"LINK 1 2",
		"NEWLINE",
		"NEWLINE 1 2",
		"DISCONNECT now",
		"DOC? 3",
	}
	for _, line := range lines {
		if _, err := Parse(line); err == nil {
			t.Errorf("Parse(%q): want error, got nil", line)
		}
	}
}

func TestParseTrimsLineEnding(t *testing.T) {
	got, err := Parse("INSERT 0 hi\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Text != "hi" {
		t.Errorf("want text=hi, got %q", got.Text)
	}
}

func TestMutating(t *testing.T) {
	if !(Command{Type: CmdDelete}).Mutating() {
		t.Error("DEL should be mutating")
	}
	if (Command{Type: CmdDocQuery}).Mutating() {
		t.Error("DOC? should not be mutating")
	}
	if !IsMutatingWord("INSERT 0 hi") {
		t.Error("INSERT line should be mutating")
	}
	if IsMutatingWord("PERM?") {
		t.Error("PERM? line should not be mutating")
	}
}

func TestStatusStrings(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusSuccess, "SUCCESS"},
		{StatusInvalidPosition, "Reject INVALID_POSITION"},
		{StatusDeletedPosition, "Reject DELETED_POSITION"},
		{StatusOutdatedVersion, "Reject OUTDATED_VERSION"},
		{StatusUnauthorised, "Reject UNAUTHORISED"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("want %q, got %q", tt.want, got)
		}
		back, err := ParseStatus(tt.want)
		if err != nil {
			t.Errorf("ParseStatus(%q): %v", tt.want, err)
		}
		if back != tt.status {
			t.Errorf("ParseStatus(%q): want %v, got %v", tt.want, tt.status, back)
		}
	}
}

func TestFrameEncode(t *testing.T) {
	f := &Frame{
		Version: 0,
		Records: []FrameRecord{
			{Username: "A", Raw: "INSERT 0 Hello", Status: StatusSuccess},
			{Username: "B", Raw: "DEL 0 1", Status: StatusUnauthorised},
		},
	}
	want := "VERSION 0\n" +
		"EDIT A INSERT 0 Hello SUCCESS\n" +
		"EDIT B DEL 0 1 Reject UNAUTHORISED\n" +
		"END\n"
	if got := string(f.Encode()); got != want {
		t.Errorf("frame mismatch:\nwant %q\ngot  %q", want, got)
	}
}

func TestFrameDecode(t *testing.T) {
	v, err := ParseFrameHeader("VERSION 17")
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if v != 17 {
		t.Errorf("want version=17, got %d", v)
	}

	rec, err := ParseFrameRecord("EDIT alice INSERT 3 a b c SUCCESS")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.Username != "alice" || rec.Raw != "INSERT 3 a b c" || rec.Status != StatusSuccess {
		t.Errorf("unexpected record %+v", rec)
	}

	rec, err = ParseFrameRecord("EDIT bob BOLD 0 5 Reject INVALID_POSITION")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.Raw != "BOLD 0 5" || rec.Status != StatusInvalidPosition {
		t.Errorf("unexpected record %+v", rec)
	}

	if _, err := ParseFrameRecord("EDIT bob"); err == nil {
		t.Error("want error for truncated record")
	}
	if _, err := ParseFrameRecord("VERSION 2"); err == nil {
		t.Error("want error for non-edit line")
	}
}

func TestRoles(t *testing.T) {
	if ParseRole("read") != RoleRead || ParseRole("write") != RoleWrite {
		t.Error("known roles should parse")
	}
	if ParseRole("admin") != RoleNone || ParseRole("") != RoleNone {
		t.Error("unknown roles should map to none")
	}
	if RoleWrite.String() != "write" || RoleNone.String() != "none" {
		t.Error("role strings wrong")
	}
	if !strings.HasPrefix(RejectUnauthorised, "Reject ") {
		t.Error("reject line must start with Reject")
	}
}

package mapconf

import (
	"strings"
	"testing"
)

func TestRewriteBackgroundReplacesOnlyDirectiveLine(t *testing.T) {
	input := "# header\nBACKGROUND images/backgrounds/old.png\nWIDTH 800\nHEIGHT 600\nTITLE office\n"
	got := RewriteBackground(input, "../maps/office_abc.png")

	wantLines := []string{
		"# header",
		"BACKGROUND ../maps/office_abc.png",
		"WIDTH 800",
		"HEIGHT 600",
		"TITLE office",
		"",
	}
	gotLines := strings.Split(got, "\n")
	if len(gotLines) != len(wantLines) {
		t.Fatalf("line count changed: got %d want %d", len(gotLines), len(wantLines))
	}
	for i := range wantLines {
		if gotLines[i] != wantLines[i] {
			t.Fatalf("line %d: got %q want %q", i, gotLines[i], wantLines[i])
		}
	}
}

func TestRewriteBackgroundKeepsDirectiveWhitespace(t *testing.T) {
	got := RewriteBackground("BACKGROUND\t\told.png", "new.png")
	if got != "BACKGROUND\t\tnew.png" {
		t.Fatalf("whitespace after keyword not preserved: %q", got)
	}
}

func TestRewriteBackgroundFirstMatchOnly(t *testing.T) {
	input := "BACKGROUND a.png\nBACKGROUND b.png"
	got := RewriteBackground(input, "x.png")
	if got != "BACKGROUND x.png\nBACKGROUND b.png" {
		t.Fatalf("expected only first directive rewritten, got %q", got)
	}
}

func TestRewriteBackgroundPassThrough(t *testing.T) {
	cases := []string{
		"WIDTH 800\nHEIGHT 600",
		"",
		"BACKGROUNDX old.png",         // not the directive
		"  BACKGROUND indented.png",   // directive must start the line
		"BACKGROUND",                  // keyword without separator
		"# BACKGROUND commented.png",
	}
	for _, input := range cases {
		if got := RewriteBackground(input, "new.png"); got != input {
			t.Fatalf("expected pass-through for %q, got %q", input, got)
		}
	}
}

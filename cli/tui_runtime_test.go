package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestShouldUsePanelUI(t *testing.T) {
	tests := []struct {
		name  string
		isTTY bool
		noUI  bool
		want  bool
	}{
		{"tty without opt-out", true, false, true},
		{"tty with opt-out", true, true, false},
		{"pipe", false, false, false},
		{"pipe with opt-out", false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldUsePanelUI(tt.isTTY, tt.noUI); got != tt.want {
				t.Errorf("shouldUsePanelUI(%v, %v) = %v, want %v", tt.isTTY, tt.noUI, got, tt.want)
			}
		})
	}
}

func TestIsTerminalFD(t *testing.T) {
	if isTerminalFD(nil) {
		t.Error("nil file reported as terminal")
	}

	f, err := os.Create(filepath.Join(t.TempDir(), "plain"))
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer f.Close()
	if isTerminalFD(f) {
		t.Error("regular file reported as terminal")
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly ten chars!", 18, "exactly ten chars!"},
		{"this line is far too long", 10, "this li..."},
		{"abc", 2, "ab"},
		{"anything", 0, ""},
	}
	for _, tt := range tests {
		if got := truncateRunes(tt.in, tt.limit); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("one\ntwo"); got != "one" {
		t.Errorf("firstLine = %q, want one", got)
	}
	if got := firstLine("single"); got != "single" {
		t.Errorf("firstLine = %q, want single", got)
	}
}

package security

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "unknown"},
		{"ruler-sweep_01.run", "ruler-sweep_01.run"},
		{"../../etc/passwd", "etc_passwd"},
		{"led  bank / 400 Hz", "led_bank_400_Hz"},
		{"___", "unknown"},
		{"héllo", "h_llo"},
		{"a__b", "a__b"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFilename_Length(t *testing.T) {
	got := SanitizeFilename(strings.Repeat("x", 500))
	if len(got) != maxFilenameLen {
		t.Errorf("len = %d, want %d", len(got), maxFilenameLen)
	}
}

func TestExportFilename(t *testing.T) {
	if got := ExportFilename("bench run", "abc", "png"); got != "bench_run.png" {
		t.Errorf("ExportFilename = %q", got)
	}
	if got := ExportFilename("  ", "3f2a-11", ".html"); got != "3f2a-11.html" {
		t.Errorf("ExportFilename fallback = %q", got)
	}
}

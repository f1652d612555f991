package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

// capture redirects stdout for the duration of fn and returns what was written.
func capture(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()

	w.Close()
	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestInfo_Success_Warn_Error_NoPanic(t *testing.T) {
	out := capture(t, func() {
		Info("TAG", "message")
		Success("TAG", "message")
		Warn("TAG", "message")
		Error("TAG", "message")
	})
	if strings.Count(out, "[TAG]") != 4 {
		t.Errorf("expected 4 tagged lines, got %q", out)
	}
}

func TestBanner_NoPanic(t *testing.T) {
	out := capture(t, func() {
		Banner("v1.0.0")
		Banner("")
	})
	if !strings.Contains(out, "v1.0.0") || !strings.Contains(out, "dev") {
		t.Errorf("banner output = %q", out)
	}
}

func TestSectionAndStats_NoPanic(t *testing.T) {
	out := capture(t, func() {
		Section("Test")
		Stats("key", 42)
	})
	if !strings.Contains(out, "key:") || !strings.Contains(out, "42") {
		t.Errorf("stats output = %q", out)
	}
}

func TestQuiet_SuppressesInfoButNotWarn(t *testing.T) {
	SetQuiet(true)
	defer SetQuiet(false)

	out := capture(t, func() {
		Info("Q", "hidden")
		Success("Q", "hidden")
		Warn("Q", "shown")
	})
	if strings.Contains(out, "hidden") {
		t.Errorf("quiet mode leaked info lines: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("quiet mode dropped warning: %q", out)
	}
}

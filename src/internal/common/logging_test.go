package common

import (
	"os"
	"strings"
	"testing"
)

func TestNewSafeLoggerLevels(t *testing.T) {
	old := os.Getenv("LSP_POOL_DEBUG")
	defer os.Setenv("LSP_POOL_DEBUG", old)
	os.Unsetenv("LSP_POOL_DEBUG")
	l := NewSafeLogger("TEST")
	if l.level != LogInfo {
		t.Fatalf("expected info level")
	}
	os.Setenv("LSP_POOL_DEBUG", "true")
	l2 := NewSafeLogger("TEST")
	if l2.level != LogDebug {
		t.Fatalf("expected debug level")
	}
}

func TestLoggerWritesToStderr(t *testing.T) {
	r, w, _ := os.Pipe()
	oldErr := os.Stderr
	oldOut := os.Stdout
	os.Stderr = w
	os.Stdout = w
	defer func() { os.Stderr = oldErr; os.Stdout = oldOut }()

	l := NewSafeLogger("TEST")
	l.SetLevel(LogInfo)
	l.Info("hello")
	w.Close()
	buf := make([]byte, 1024)
	n, _ := r.Read(buf)
	s := string(buf[:n])
	if !strings.Contains(s, "TEST:") {
		t.Fatalf("missing prefix: %q", s)
	}
	if !strings.Contains(s, "hello") {
		t.Fatalf("missing message: %q", s)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	r, w, _ := os.Pipe()
	oldErr := os.Stderr
	os.Stderr = w
	defer func() { os.Stderr = oldErr }()

	l := NewSafeLogger("TEST")
	l.SetLevel(LogWarn)
	l.Info("filtered")
	l.Warn("kept")
	w.Close()
	buf := make([]byte, 1024)
	n, _ := r.Read(buf)
	s := string(buf[:n])
	if strings.Contains(s, "filtered") {
		t.Fatalf("info should be filtered at warn level: %q", s)
	}
	if !strings.Contains(s, "kept") {
		t.Fatalf("warn should pass at warn level: %q", s)
	}
}

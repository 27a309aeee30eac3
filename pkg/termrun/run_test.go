package termrun

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWhich_KnownBinary(t *testing.T) {
	path := Which("ls")
	if path == "" {
		t.Fatal("expected ls to resolve")
	}
	if !filepath.IsAbs(path) {
		t.Errorf("expected absolute path, got %q", path)
	}
	if !strings.HasSuffix(path, "/ls") {
		t.Errorf("expected path ending in /ls, got %q", path)
	}
}

func TestWhich_UnknownBinary(t *testing.T) {
	if path := Which("definitely-not-a-real-binary"); path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestWhich_Empty(t *testing.T) {
	if path := Which(""); path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestRun_Echo(t *testing.T) {
	res, err := Run(context.Background(), "echo", "", Options{
		Timeout:   10 * time.Second,
		ExtraArgs: []string{"hello"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Text, "hello") {
		t.Errorf("expected output to contain hello, got %q", res.Text)
	}
}

func TestRun_BinaryNotFound(t *testing.T) {
	_, err := Run(context.Background(), "definitely-not-a-real-binary", "", Options{})
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected RunError, got %v", err)
	}
	if runErr.Kind != ErrBinaryNotFound {
		t.Errorf("expected ErrBinaryNotFound, got %v", runErr.Kind)
	}
	if runErr.Binary != "definitely-not-a-real-binary" {
		t.Errorf("unexpected binary in error: %q", runErr.Binary)
	}
}

func TestRun_TimeoutOnSilentChild(t *testing.T) {
	start := time.Now()
	_, err := Run(context.Background(), "sleep", "", Options{
		Timeout:   500 * time.Millisecond,
		ExtraArgs: []string{"30"},
	})
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected RunError, got %v", err)
	}
	if runErr.Kind != ErrTimedOut {
		t.Errorf("expected ErrTimedOut, got %v", runErr.Kind)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}
}

func TestRun_IdleStopsInteractiveChild(t *testing.T) {
	// cat never exits on its own; the echo of the input line must end the
	// session through idle detection, not the timeout.
	res, err := Run(context.Background(), "cat", "hello idle", Options{
		Timeout: 15 * time.Second,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(res.Text, "hello idle") {
		t.Errorf("expected echoed input in output, got %q", res.Text)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit code 0 for idle-terminated session, got %d", res.ExitCode)
	}
}

func TestSearchPath_PrependsKnownDirs(t *testing.T) {
	path := SearchPath()
	if path == "" {
		t.Fatal("expected non-empty search path")
	}
	if !strings.Contains(path, "/usr/local/bin") {
		t.Errorf("expected /usr/local/bin in search path, got %q", path)
	}
}

// Package termrun launches CLI tools inside a pseudo-terminal and captures
// their output. Many AI CLIs only print rich status text when they believe
// they are attached to an interactive terminal, so plain pipes are not
// enough for scraping.
package termrun

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
)

const (
	// DefaultTimeout bounds a whole run when the caller does not.
	DefaultTimeout = 30 * time.Second

	// defaultIdle: output is considered settled after this much silence,
	// once at least one byte has arrived. Interactive CLIs never exit on
	// their own, so idle detection is what ends most sessions.
	defaultIdle = 1500 * time.Millisecond

	pollInterval   = 50 * time.Millisecond
	maxOutputBytes = 1 << 20
)

// Options configure a single Run call.
type Options struct {
	// Timeout bounds the whole session. Zero means DefaultTimeout.
	Timeout time.Duration
	// IdleTimeout is the silence window after which output is considered
	// complete. Zero means the default of 1.5s.
	IdleTimeout time.Duration
	// ExtraArgs are passed to the binary verbatim.
	ExtraArgs []string
}

// Result is the accumulated terminal output and the child's exit code.
// ExitCode is 0 when the session ended by idle detection with the child
// still running.
type Result struct {
	Text     string
	ExitCode int
}

// Run resolves binary on the effective search path, starts it under a PTY,
// writes input as a single newline-terminated line, and reads output until
// the child exits, output settles, or the timeout fires. The child process
// is always terminated and reaped before Run returns, on every exit path.
func Run(ctx context.Context, binary, input string, opts Options) (Result, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = defaultIdle
	}

	resolved := Which(binary)
	if resolved == "" {
		return Result{}, &RunError{Kind: ErrBinaryNotFound, Binary: binary}
	}

	cmd := exec.Command(resolved, opts.ExtraArgs...) //nolint:gosec // G204: binary comes from provider config
	cmd.Env = Environ()

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return Result{}, &RunError{Kind: ErrLaunchFailed, Binary: binary, Msg: err.Error()}
	}

	s := &session{cmd: cmd, ptmx: ptmx, done: make(chan error, 1), lastRead: time.Now()}
	defer s.teardown()

	go s.readLoop()
	go func() { s.done <- cmd.Wait() }()

	if input != "" {
		// A write error here usually means the child already exited;
		// keep going and collect whatever it printed.
		_, _ = ptmx.Write([]byte(input + "\n"))
	}

	deadline := time.Now().Add(timeout)
	for {
		select {
		case waitErr := <-s.done:
			// Give the read loop a moment to drain the final chunk.
			time.Sleep(pollInterval)
			return Result{Text: s.text(), ExitCode: exitCode(waitErr)}, nil
		case <-ctx.Done():
			return Result{}, &RunError{Kind: ErrTimedOut, Binary: binary}
		case <-time.After(pollInterval):
		}
		if s.settled(idle) {
			return Result{Text: s.text(), ExitCode: 0}, nil
		}
		if time.Now().After(deadline) {
			return Result{}, &RunError{Kind: ErrTimedOut, Binary: binary}
		}
	}
}

// session owns the child process and its PTY handle for one Run call.
// teardown is idempotent and safe even when the child already exited.
type session struct {
	cmd  *exec.Cmd
	ptmx *os.File
	done chan error

	mu       sync.Mutex
	buf      []byte
	lastRead time.Time

	closeOnce sync.Once
}

func (s *session) readLoop() {
	chunk := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(chunk)
		if n > 0 {
			s.append(chunk[:n])
		}
		if err != nil {
			// EIO is the normal PTY close signal on Linux.
			return
		}
	}
}

func (s *session) append(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRead = time.Now()
	s.buf = append(s.buf, chunk...)
	if len(s.buf) > maxOutputBytes {
		s.buf = append([]byte(nil), s.buf[len(s.buf)-maxOutputBytes:]...)
	}
}

func (s *session) text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.buf)
}

// settled reports whether output has arrived and then gone quiet for the
// idle window.
func (s *session) settled(idle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf) > 0 && time.Since(s.lastRead) >= idle
}

// teardown closes the PTY and kills the child. The wait goroutine reaps the
// process, so no zombie is left behind regardless of how the session ended.
func (s *session) teardown() {
	s.closeOnce.Do(func() {
		_ = s.ptmx.Close()
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
	})
}

func exitCode(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

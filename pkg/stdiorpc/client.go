// Package stdiorpc speaks line-delimited JSON-RPC 2.0 with a child process
// over its stdio. One JSON object per line in each direction; requests carry
// a monotonically increasing integer id, notifications carry none.
//
// The client issues requests serially: exactly one request is outstanding at
// a time, and the reader keeps consuming lines until a reply bearing the
// matching id arrives or the stream closes. Lines that are not JSON objects
// are skipped as noise, since low-quality server implementations interleave
// their own logs with RPC frames on stdout.
package stdiorpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/rmax-ai/usagelord/pkg/termrun"
)

const (
	// DefaultTimeout bounds each individual request.
	DefaultTimeout = 15 * time.Second

	maxLineBytes = 1 << 20
)

// Message is one JSON-RPC frame. A frame with no id is a notification and
// is never treated as a reply.
type Message struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is the error member of a reply.
type ErrorObject struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

// Session is a JSON-RPC conversation with one child process. Construction
// starts the subprocess; Close terminates it and is idempotent, safe to call
// even if the process already exited.
type Session struct {
	r       *bufio.Scanner
	w       io.Writer
	timeout time.Duration

	mu     sync.Mutex
	nextID int64

	terminate func()
	closeOnce sync.Once
}

// Start resolves binary on the effective search path, launches it with args
// and piped stdio, and returns a session ready for the handshake.
func Start(binary string, args []string, timeout time.Duration) (*Session, error) {
	resolved := termrun.Which(binary)
	if resolved == "" {
		return nil, fmt.Errorf("binary %q not found", binary)
	}

	cmd := exec.Command(resolved, args...) //nolint:gosec // G204: binary comes from provider config
	cmd.Env = termrun.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch %s: %w", binary, err)
	}

	s := NewSession(stdout, stdin, timeout)
	s.terminate = func() {
		_ = stdin.Close()
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		_ = cmd.Wait() // reap; never leave a zombie
	}
	return s, nil
}

// NewSession wraps an arbitrary reader/writer pair. Used directly in tests;
// production sessions come from Start.
func NewSession(r io.Reader, w io.Writer, timeout time.Duration) *Session {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &Session{r: scanner, w: w, timeout: timeout}
}

// Close tears the session down: stdin closed, process killed and reaped.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.terminate != nil {
			s.terminate()
		}
	})
}

// Initialize performs the version/capability handshake: an "initialize"
// request followed by the fire-and-forget "initialized" notification.
func (s *Session) Initialize(ctx context.Context) error {
	params := map[string]any{
		"clientInfo": map[string]string{"name": "usagelord", "version": "1.0.0"},
	}
	if _, err := s.Request(ctx, "initialize", params); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if err := s.Notify("initialized", nil); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}
	return nil
}

// Request sends a framed request and blocks until the reply with the same
// id arrives, the stream closes, or the timeout fires. Replies whose id does
// not match are discarded, never delivered to the wrong caller.
func (s *Session) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	if err := s.write(Message{JSONRPC: "2.0", ID: &id, Method: method, Params: marshalParams(params)}); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	replies := make(chan replyOutcome, 1)
	go func() { replies <- s.awaitReply(id) }()

	select {
	case out := <-replies:
		return out.result, out.err
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	case <-time.After(s.timeout):
		// Killing the process closes the pipe and unblocks the reader.
		s.Close()
		return nil, fmt.Errorf("%s: timed out waiting for reply", method)
	}
}

// Notify sends a fire-and-forget notification: method and params, no id,
// no reply expected.
func (s *Session) Notify(method string, params any) error {
	return s.write(Message{JSONRPC: "2.0", Method: method, Params: marshalParams(params)})
}

type replyOutcome struct {
	result json.RawMessage
	err    error
}

func (s *Session) awaitReply(id int64) replyOutcome {
	for s.r.Scan() {
		line := bytes.TrimSpace(s.r.Bytes())
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			continue // not a JSON frame; treat as log noise
		}
		if msg.ID == nil {
			continue // notification, never a reply
		}
		if *msg.ID != id {
			continue // stale or foreign reply; discard
		}
		if msg.Error != nil {
			return replyOutcome{err: fmt.Errorf("RPC error: %s", msg.Error.Message)}
		}
		return replyOutcome{result: msg.Result}
	}
	return replyOutcome{err: errors.New("stream closed before reply")}
}

func (s *Session) write(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = s.w.Write(data)
	return err
}

func marshalParams(params any) json.RawMessage {
	if params == nil {
		return json.RawMessage(`{}`)
	}
	data, err := json.Marshal(params)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}

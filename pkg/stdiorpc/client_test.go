package stdiorpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"
)

func TestRequest_MatchingReply(t *testing.T) {
	replies := `{"jsonrpc":"2.0","id":1,"result":{"ok":true}}` + "\n"
	var sent bytes.Buffer
	s := NewSession(strings.NewReader(replies), &sent, time.Second)

	result, err := s.Request(context.Background(), "status/read", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if string(result) != `{"ok":true}` {
		t.Errorf("unexpected result: %s", result)
	}

	var req Message
	if err := json.Unmarshal(sent.Bytes(), &req); err != nil {
		t.Fatalf("failed to decode sent frame: %v", err)
	}
	if req.ID == nil || *req.ID != 1 {
		t.Errorf("expected id 1, got %v", req.ID)
	}
	if req.Method != "status/read" {
		t.Errorf("expected method status/read, got %q", req.Method)
	}
}

func TestRequest_SkipsNoiseNotificationsAndStaleIDs(t *testing.T) {
	replies := strings.Join([]string{
		"starting server on stdio...",                        // log noise
		`{"jsonrpc":"2.0","method":"log","params":{}}`,       // notification
		`{"jsonrpc":"2.0","id":99,"result":{"stale":true}}`,  // foreign id
		`{"jsonrpc":"2.0","id":1,"result":{"fresh":true}}`,   // the reply
		`{"jsonrpc":"2.0","id":2,"result":{"unread":true}}`,  // never consumed
	}, "\n") + "\n"
	s := NewSession(strings.NewReader(replies), io.Discard, time.Second)

	result, err := s.Request(context.Background(), "ping", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if string(result) != `{"fresh":true}` {
		t.Errorf("expected fresh reply, got %s", result)
	}
}

func TestRequest_ErrorReply(t *testing.T) {
	replies := `{"jsonrpc":"2.0","id":1,"error":{"message":"unknown method"}}` + "\n"
	s := NewSession(strings.NewReader(replies), io.Discard, time.Second)

	_, err := s.Request(context.Background(), "nope", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "RPC error: unknown method") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRequest_StreamClosed(t *testing.T) {
	s := NewSession(strings.NewReader(""), io.Discard, time.Second)
	_, err := s.Request(context.Background(), "ping", nil)
	if err == nil || !strings.Contains(err.Error(), "stream closed") {
		t.Errorf("expected stream closed error, got %v", err)
	}
}

func TestRequest_Timeout(t *testing.T) {
	r, _ := io.Pipe() // never delivers
	s := NewSession(r, io.Discard, 100*time.Millisecond)

	_, err := s.Request(context.Background(), "ping", nil)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout error, got %v", err)
	}
}

func TestRequest_SerialIDs(t *testing.T) {
	replies := `{"jsonrpc":"2.0","id":1,"result":1}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"result":2}` + "\n"
	var sent bytes.Buffer
	s := NewSession(strings.NewReader(replies), &sent, time.Second)

	for i := 0; i < 2; i++ {
		if _, err := s.Request(context.Background(), "ping", nil); err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
	}

	scanner := bufio.NewScanner(bytes.NewReader(sent.Bytes()))
	var ids []int64
	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		if msg.ID != nil {
			ids = append(ids, *msg.ID)
		}
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("expected serial ids [1 2], got %v", ids)
	}
}

func TestInitialize_HandshakeFrames(t *testing.T) {
	replies := `{"jsonrpc":"2.0","id":1,"result":{}}` + "\n"
	var sent bytes.Buffer
	s := NewSession(strings.NewReader(replies), &sent, time.Second)

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(sent.Bytes()))
	var frames []Message
	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		frames = append(frames, msg)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Method != "initialize" || frames[0].ID == nil {
		t.Errorf("first frame should be initialize request, got %+v", frames[0])
	}
	if frames[1].Method != "initialized" || frames[1].ID != nil {
		t.Errorf("second frame should be initialized notification, got %+v", frames[1])
	}
}

func TestClose_Idempotent(t *testing.T) {
	s := NewSession(strings.NewReader(""), io.Discard, time.Second)
	calls := 0
	s.terminate = func() { calls++ }
	s.Close()
	s.Close()
	if calls != 1 {
		t.Errorf("expected terminate once, got %d", calls)
	}
}

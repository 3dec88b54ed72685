package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomlink/internal/proto"
)

// fakeConn is an in-memory Conn. Tests inspect what the session sent
// and feed frames back through the captured callbacks.
type fakeConn struct {
	mu       sync.Mutex
	open     bool
	closes   int
	sent     chan proto.Body
	onClosed func()
}

func (c *fakeConn) Send(body proto.Body) {
	c.sent <- body
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	wasOpen := c.open
	c.open = false
	c.closes++
	c.mu.Unlock()

	if wasOpen && c.onClosed != nil {
		c.onClosed()
	}
}

func (c *fakeConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// harness wires a session to a fakeConn and records emissions.
type harness struct {
	sess    *Session
	conn    *fakeConn
	deliver func(proto.Body)
	states  chan SessionState
	errors  chan string
}

func testCredentials() Credentials {
	return Credentials{Username: "alice", ServerURL: "wss://rooms.example.com/ws"}
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	h := &harness{
		states: make(chan SessionState, 64),
		errors: make(chan string, 16),
	}

	cfg := Config{
		Credentials: testCredentials(),
		Logger:      zerolog.Nop(),
		// Timers stay out of the way unless a test opts in.
		KeepaliveInterval: -1,
		LivenessTimeout:   -1,
		OnState:           func(_ *Session, st SessionState) { h.states <- st },
		OnError:           func(_ *Session, msg string) { h.errors <- msg },
	}
	cfg.Dial = func(_ context.Context, _ string, onMessage func(proto.Message), onClosed func()) (Conn, error) {
		conn := &fakeConn{open: true, sent: make(chan proto.Body, 64), onClosed: onClosed}
		h.conn = conn
		h.deliver = func(body proto.Body) {
			onMessage(proto.Message{TS: time.Now(), Body: body})
		}
		return conn, nil
	}
	if mutate != nil {
		mutate(&cfg)
	}

	sess, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	h.sess = sess
	t.Cleanup(sess.Close)

	return h
}

// loggedIn builds a harness, starts the loop, and completes the login
// handshake.
func loggedIn(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	h := newHarness(t, mutate)
	h.sess.Start()
	mustSend(t, h.conn, proto.TagLogin)
	mustState(t, h, StatusNotInRoom) // initial snapshot
	h.deliver(proto.LoginAck{})
	return h
}

func mustSend(t *testing.T, conn *fakeConn, tag proto.Tag) proto.Body {
	t.Helper()

	select {
	case body := <-conn.sent:
		if body.Tag() != tag {
			t.Fatalf("sent %s, want %s", body.Tag(), tag)
		}
		return body
	case <-time.After(2 * time.Second):
		t.Fatalf("nothing sent, want %s", tag)
		return nil
	}
}

func mustNotSend(t *testing.T, conn *fakeConn) {
	t.Helper()

	select {
	case body := <-conn.sent:
		t.Fatalf("unexpected frame sent: %s", body.Tag())
	case <-time.After(100 * time.Millisecond):
	}
}

func mustState(t *testing.T, h *harness, status RoomConnectionStatus) SessionState {
	t.Helper()

	select {
	case st := <-h.states:
		if st.Status != status {
			t.Fatalf("snapshot status %s, want %s", st.Status, status)
		}
		return st
	case <-time.After(2 * time.Second):
		t.Fatalf("no snapshot, want status %s", status)
		return SessionState{}
	}
}

func mustError(t *testing.T, h *harness) string {
	t.Helper()

	select {
	case msg := <-h.errors:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no error event")
		return ""
	}
}

func mustNoError(t *testing.T, h *harness) {
	t.Helper()

	select {
	case msg := <-h.errors:
		t.Fatalf("unexpected error event: %s", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func mustDone(t *testing.T, h *harness) {
	t.Helper()

	select {
	case <-h.sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session never ended")
	}
}

func testRoom(id string) proto.RoomState {
	return proto.RoomState{
		ID:       id,
		Name:     "alpha",
		Password: "secret",
		Users: []proto.RoomUser{
			{ID: "u-1", Name: "alice", Role: proto.RoleHost},
		},
	}
}

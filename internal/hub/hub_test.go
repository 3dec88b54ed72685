package hub

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomlink/internal/proto"
	"github.com/vovakirdan/roomlink/internal/session"
)

type nopConn struct{}

func (nopConn) Send(proto.Body) {}
func (nopConn) Close()          {}
func (nopConn) IsOpen() bool    { return true }

// newTestSession builds a session over a no-op transport. The hub only
// cares about pointer identity; the loop is never started.
func newTestSession(t *testing.T) *session.Session {
	t.Helper()

	s, err := session.New(context.Background(), session.Config{
		Credentials:       session.Credentials{Username: "alice", ServerURL: "wss://rooms.example.com"},
		Logger:            zerolog.Nop(),
		KeepaliveInterval: -1,
		LivenessTimeout:   -1,
		Dial: func(context.Context, string, func(proto.Message), func()) (session.Conn, error) {
			return nopConn{}, nil
		},
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}

func mustEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()

	select {
	case ev := <-sub.Events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func mustQuiet(t *testing.T, sub *Subscription) {
	t.Helper()

	select {
	case ev := <-sub.Events:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func snapshotWith(status session.RoomConnectionStatus) session.SessionState {
	return session.SessionState{Status: status, Joined: status == session.StatusInRoom}
}

func TestAllObserversReceiveEveryUpdateInOrder(t *testing.T) {
	h := New(zerolog.Nop())
	sess := newTestSession(t)
	h.Supersede(sess)

	a := h.Subscribe()
	b := h.Subscribe()
	defer a.Close()
	defer b.Close()

	sequence := []session.RoomConnectionStatus{
		session.StatusNotInRoom,
		session.StatusJoining,
		session.StatusInRoom,
	}
	for _, status := range sequence {
		h.PublishState(sess, snapshotWith(status))
	}

	for _, sub := range []*Subscription{a, b} {
		for _, want := range sequence {
			ev := mustEvent(t, sub)
			if ev.State == nil || ev.State.Status != want {
				t.Fatalf("got %+v, want status %s", ev, want)
			}
		}
	}
}

func TestLateAttacherGetsCachedSnapshot(t *testing.T) {
	h := New(zerolog.Nop())
	sess := newTestSession(t)
	h.Supersede(sess)

	room := proto.RoomState{ID: "r-1", Name: "alpha"}
	h.PublishState(sess, session.SessionState{
		Joined: true,
		Status: session.StatusInRoom,
		Room:   &room,
	})

	late := h.Subscribe()
	defer late.Close()

	ev := mustEvent(t, late)
	if ev.State == nil || ev.State.Room == nil || ev.State.Room.ID != "r-1" {
		t.Fatalf("late attacher missed cached state: %+v", ev)
	}
}

func TestDetachDuringEmissionDoesNotSkipOthers(t *testing.T) {
	h := New(zerolog.Nop())
	sess := newTestSession(t)
	h.Supersede(sess)

	a := h.Subscribe()
	b := h.Subscribe()
	c := h.Subscribe()
	defer a.Close()
	defer c.Close()

	b.Close()
	h.PublishState(sess, snapshotWith(session.StatusJoining))

	if ev := mustEvent(t, a); ev.State == nil {
		t.Fatalf("observer a: %+v", ev)
	}
	if ev := mustEvent(t, c); ev.State == nil {
		t.Fatalf("observer c: %+v", ev)
	}
	mustQuiet(t, b)
}

func TestSupersededSessionIsSilenced(t *testing.T) {
	h := New(zerolog.Nop())
	old := newTestSession(t)
	h.Supersede(old)

	sub := h.Subscribe()
	defer sub.Close()

	h.PublishState(old, snapshotWith(session.StatusInRoom))
	mustEvent(t, sub)

	next := newTestSession(t)
	if got := h.Supersede(next); got != old {
		t.Fatalf("supersede returned %p, want %p", got, old)
	}
	if _, ok := h.Snapshot(); ok {
		t.Fatal("snapshot survived supersede")
	}

	// Anything the old session still emits is dropped.
	h.PublishState(old, snapshotWith(session.StatusNotInRoom))
	h.PublishError(old, "stale boom")
	mustQuiet(t, sub)

	h.PublishState(next, snapshotWith(session.StatusJoining))
	if ev := mustEvent(t, sub); ev.State == nil || ev.State.Status != session.StatusJoining {
		t.Fatalf("new session event: %+v", ev)
	}
}

func TestHostLevelErrorsAlwaysDelivered(t *testing.T) {
	h := New(zerolog.Nop())

	sub := h.Subscribe()
	defer sub.Close()

	h.PublishError(nil, "username is not configured")

	ev := mustEvent(t, sub)
	if ev.Err != "username is not configured" {
		t.Fatalf("got %+v", ev)
	}
}

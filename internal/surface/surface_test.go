package surface

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/roomlink/internal/config"
	"github.com/vovakirdan/roomlink/internal/hub"
	"github.com/vovakirdan/roomlink/internal/log"
	"github.com/vovakirdan/roomlink/internal/proto"
	"github.com/vovakirdan/roomlink/internal/session"
)

type fakeControl struct {
	hub *hub.Hub

	mu          sync.Mutex
	created     []string
	createErr   error
	invalidated int
}

func (f *fakeControl) Subscribe() *hub.Subscription { return f.hub.Subscribe() }

func (f *fakeControl) Snapshot() (session.SessionState, bool) { return f.hub.Snapshot() }

func (f *fakeControl) CreateRoom(ctx context.Context, name, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, name)
	return f.createErr
}

func (f *fakeControl) JoinRoom(ctx context.Context, id, password string) error { return nil }

func (f *fakeControl) LeaveRoom(ctx context.Context) error { return nil }

func (f *fakeControl) InvalidateSettings() {
	f.mu.Lock()
	f.invalidated++
	f.mu.Unlock()
}

func startSurface(t *testing.T) (*fakeControl, *websocket.Conn) {
	t.Helper()

	logger := log.New("error")
	ctrl := &fakeControl{hub: hub.New(*logger)}
	srv := NewServer(ctrl, config.Default(), logger)

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/surface"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial surface: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	return ctrl, conn
}

func readReply(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var reply map[string]any
	if err := wsjson.Read(ctx, conn, &reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	return reply
}

func writeIntent(t *testing.T, conn *websocket.Conn, intent Intent) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := wsjson.Write(ctx, conn, intent); err != nil {
		t.Fatalf("write intent: %v", err)
	}
}

func TestGetSessionStateBeforeAnySession(t *testing.T) {
	_, conn := startSurface(t)

	writeIntent(t, conn, Intent{Type: IntentGetSessionState})
	reply := readReply(t, conn)

	if reply["type"] != ReplySessionState {
		t.Fatalf("type = %v", reply["type"])
	}
	if reply["status"] != "NOT_IN_ROOM" {
		t.Fatalf("status = %v", reply["status"])
	}
	if reply["joined"] != false {
		t.Fatalf("joined = %v", reply["joined"])
	}
	if _, ok := reply["room"]; ok {
		t.Fatal("room present in empty snapshot")
	}
}

func TestStateUpdatesReachSurface(t *testing.T) {
	ctrl, conn := startSurface(t)

	st := session.SessionState{
		Joined: true,
		Status: session.StatusInRoom,
		Room: &proto.RoomState{
			ID:       "r-1",
			Name:     "standup",
			Password: "hunter2",
			Users: []proto.RoomUser{
				{ID: "u-1", Name: "ira", Role: proto.RoleHost},
			},
		},
	}
	ctrl.hub.PublishState(nil, st)

	reply := readReply(t, conn)
	if reply["type"] != ReplySessionState {
		t.Fatalf("type = %v", reply["type"])
	}
	room, ok := reply["room"].(map[string]any)
	if !ok {
		t.Fatalf("room = %v", reply["room"])
	}
	if room["name"] != "standup" {
		t.Fatalf("room name = %v", room["name"])
	}
	if _, leaked := room["password"]; leaked {
		t.Fatal("room password forwarded to surface")
	}
}

func TestFailedOperationGetsErrorReply(t *testing.T) {
	ctrl, conn := startSurface(t)
	ctrl.mu.Lock()
	ctrl.createErr = errors.New("operation already in flight")
	ctrl.mu.Unlock()

	writeIntent(t, conn, Intent{Type: IntentCreateRoom, Name: "standup"})
	reply := readReply(t, conn)

	if reply["type"] != ReplySessionError {
		t.Fatalf("type = %v", reply["type"])
	}
	if reply["message"] != "operation already in flight" {
		t.Fatalf("message = %v", reply["message"])
	}
}

func TestOptionsChangedInvalidatesSettings(t *testing.T) {
	ctrl, conn := startSurface(t)

	writeIntent(t, conn, Intent{Type: IntentOptionsChanged})

	// options_changed has no reply; probe with a request that does.
	writeIntent(t, conn, Intent{Type: IntentGetSessionState})
	readReply(t, conn)

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if ctrl.invalidated != 1 {
		t.Fatalf("invalidated = %d, want 1", ctrl.invalidated)
	}
}

func TestUnknownIntentGetsErrorReply(t *testing.T) {
	_, conn := startSurface(t)

	writeIntent(t, conn, Intent{Type: "reticulate_splines"})
	reply := readReply(t, conn)

	if reply["type"] != ReplySessionError {
		t.Fatalf("type = %v", reply["type"])
	}
}

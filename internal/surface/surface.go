// Package surface is the local endpoint UI surfaces connect to: one
// websocket per surface, JSON intents in, session state and error
// events out. Surfaces observe the session through the broadcast hub;
// none of them owns the connection to the room server.
package surface

import (
	"context"

	"github.com/vovakirdan/roomlink/internal/hub"
	"github.com/vovakirdan/roomlink/internal/session"
)

// Intent type strings accepted from a UI surface.
const (
	IntentGetSessionState = "get_session_state"
	IntentCreateRoom      = "create_room"
	IntentJoinRoom        = "join_room"
	IntentLeaveRoom       = "leave_room"
	IntentOptionsChanged  = "options_changed"
)

// Reply type strings sent back.
const (
	ReplySessionState = "session_state"
	ReplySessionError = "session_error"
)

// Intent is one request from a UI surface.
type Intent struct {
	Type     string `json:"type"`
	Name     string `json:"name,omitempty"`
	ID       string `json:"id,omitempty"`
	Password string `json:"password,omitempty"`
}

// StateReply mirrors a SessionState snapshot to a surface. The room
// password stays server-side and is never forwarded to UI.
type StateReply struct {
	Type   string       `json:"type"`
	Joined bool         `json:"joined"`
	Status string       `json:"status"`
	Room   *RoomPayload `json:"room,omitempty"`
}

// RoomPayload is the UI-facing view of a room.
type RoomPayload struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Users []UserPayload `json:"users"`
}

// UserPayload is the UI-facing view of a room participant.
type UserPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// ErrorReply carries a human-readable failure to a surface.
type ErrorReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// SessionControl is what the surface layer needs from the host: the
// intent handlers plus hub access for the event feed.
type SessionControl interface {
	Subscribe() *hub.Subscription
	Snapshot() (session.SessionState, bool)
	CreateRoom(ctx context.Context, name, password string) error
	JoinRoom(ctx context.Context, id, password string) error
	LeaveRoom(ctx context.Context) error
	InvalidateSettings()
}

func stateReply(st session.SessionState) StateReply {
	reply := StateReply{
		Type:   ReplySessionState,
		Joined: st.Joined,
		Status: st.Status.String(),
	}
	if st.Room != nil {
		room := &RoomPayload{
			ID:    st.Room.ID,
			Name:  st.Room.Name,
			Users: make([]UserPayload, 0, len(st.Room.Users)),
		}
		for _, u := range st.Room.Users {
			room.Users = append(room.Users, UserPayload{ID: u.ID, Name: u.Name, Role: string(u.Role)})
		}
		reply.Room = room
	}
	return reply
}

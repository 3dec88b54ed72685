package session

import "github.com/vovakirdan/roomlink/internal/proto"

// RoomConnectionStatus is the room sub-state projected to observers.
type RoomConnectionStatus int

const (
	// StatusNotInRoom means no room membership and nothing in flight.
	StatusNotInRoom RoomConnectionStatus = iota

	// StatusJoining covers both a pending create and a pending join.
	StatusJoining

	// StatusInRoom means a create/join was acknowledged.
	StatusInRoom

	// StatusLeaving means a leave was sent and not yet acknowledged.
	StatusLeaving
)

// String returns the wire-facing name of the status.
func (s RoomConnectionStatus) String() string {
	switch s {
	case StatusNotInRoom:
		return "NOT_IN_ROOM"
	case StatusJoining:
		return "JOINING"
	case StatusInRoom:
		return "IN_ROOM"
	case StatusLeaving:
		return "LEAVING"
	default:
		return "UNKNOWN"
	}
}

// SessionState is the snapshot handed to observers. Each emission is a
// fresh value with its own room copy; the session never mutates one in
// place, so observers may retain a reference indefinitely.
type SessionState struct {
	Joined bool
	Status RoomConnectionStatus
	Room   *proto.RoomState
}

func cloneRoom(r *proto.RoomState) *proto.RoomState {
	if r == nil {
		return nil
	}
	out := *r
	out.Users = make([]proto.RoomUser, len(r.Users))
	copy(out.Users, r.Users)
	return &out
}

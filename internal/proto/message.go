package proto

import "time"

// Tag discriminates wire message variants. The tag alone determines the
// body shape; see schemas in schema.go.
type Tag string

const (
	TagLogin        Tag = "connection::login"
	TagLoginAck     Tag = "connection::login_ack"
	TagPing         Tag = "connection::ping"
	TagPong         Tag = "connection::pong"
	TagClientError  Tag = "connection::client_error"
	TagClosed       Tag = "connection::closed"
	TagKeepalive    Tag = "connection::keepalive"
	TagCreate       Tag = "room::create"
	TagCreateAck    Tag = "room::create_ack"
	TagClose        Tag = "room::close"
	TagCloseAck     Tag = "room::close_ack"
	TagJoin         Tag = "room::join"
	TagJoinAck      Tag = "room::join_ack"
	TagLeave        Tag = "room::leave"
	TagLeaveAck     Tag = "room::leave_ack"
	TagDisconnected Tag = "room::disconnected"
	TagRequestState Tag = "room::request_state"
	TagState        Tag = "room::state"
)

// Role of a user inside a room. A room has exactly one host.
type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// ClosedReason classifies why the server ended the connection or kicked
// the client out of a room.
type ClosedReason string

const (
	ReasonUnauthorized ClosedReason = "unauthorized"
	ReasonServerError  ClosedReason = "server_error"
	ReasonRoomClosed   ClosedReason = "room_closed"
	ReasonTimeout      ClosedReason = "timeout"
	ReasonUnknown      ClosedReason = "unknown"
)

// RoomUser identifies one participant of a room.
type RoomUser struct {
	ID   string
	Name string
	Role Role
}

// RoomState is the server-owned room snapshot. The client keeps a
// read-only copy and replaces it wholesale on every room::state.
type RoomState struct {
	ID       string
	Name     string
	Password string
	Users    []RoomUser
}

// Body is one variant of the wire message union. The unexported fields
// method keeps the set closed to this package.
type Body interface {
	Tag() Tag
	fields() map[string]any
}

// Message is a decoded wire frame: a body plus the timestamp every
// frame carries.
type Message struct {
	TS   time.Time
	Body Body
}

// Tag returns the variant of the carried body.
func (m Message) Tag() Tag { return m.Body.Tag() }

// Login introduces the client to the server.
type Login struct {
	Username string
	APIKey   string
}

func (Login) Tag() Tag { return TagLogin }

func (b Login) fields() map[string]any {
	f := map[string]any{"username": b.Username}
	if b.APIKey != "" {
		f["api_key"] = b.APIKey
	}
	return f
}

// LoginAck confirms a successful login.
type LoginAck struct{}

func (LoginAck) Tag() Tag               { return TagLoginAck }
func (LoginAck) fields() map[string]any { return nil }

// Ping is a server liveness probe; the client answers with Pong.
type Ping struct{}

func (Ping) Tag() Tag               { return TagPing }
func (Ping) fields() map[string]any { return nil }

// Pong answers a Ping.
type Pong struct{}

func (Pong) Tag() Tag               { return TagPong }
func (Pong) fields() map[string]any { return nil }

// Keepalive is the client-initiated liveness message.
type Keepalive struct{}

func (Keepalive) Tag() Tag               { return TagKeepalive }
func (Keepalive) fields() map[string]any { return nil }

// ClientError reports a client-side fault to the server.
type ClientError struct {
	Message string
}

func (ClientError) Tag() Tag { return TagClientError }

func (b ClientError) fields() map[string]any {
	return map[string]any{"message": b.Message}
}

// Closed tells the client the connection is over and why.
type Closed struct {
	Reason  ClosedReason
	Message string
}

func (Closed) Tag() Tag { return TagClosed }

func (b Closed) fields() map[string]any {
	return map[string]any{"reason": string(b.Reason), "message": b.Message}
}

// Create asks the server to create a room with the client as host.
type Create struct {
	Name     string
	Password string
}

func (Create) Tag() Tag { return TagCreate }

func (b Create) fields() map[string]any {
	return map[string]any{"name": b.Name, "password": b.Password}
}

// CreateAck confirms room creation and carries the initial state.
type CreateAck struct {
	Room RoomState
}

func (CreateAck) Tag() Tag { return TagCreateAck }

func (b CreateAck) fields() map[string]any {
	return map[string]any{"room": roomFields(b.Room)}
}

// Close asks the server to close the room the client hosts.
type Close struct{}

func (Close) Tag() Tag               { return TagClose }
func (Close) fields() map[string]any { return nil }

// CloseAck confirms the room was closed.
type CloseAck struct{}

func (CloseAck) Tag() Tag               { return TagCloseAck }
func (CloseAck) fields() map[string]any { return nil }

// Join asks to enter an existing room.
type Join struct {
	ID       string
	Password string
}

func (Join) Tag() Tag { return TagJoin }

func (b Join) fields() map[string]any {
	return map[string]any{"id": b.ID, "password": b.Password}
}

// JoinAck confirms the join and carries the room state.
type JoinAck struct {
	Room RoomState
}

func (JoinAck) Tag() Tag { return TagJoinAck }

func (b JoinAck) fields() map[string]any {
	return map[string]any{"room": roomFields(b.Room)}
}

// Leave asks to leave the current room.
type Leave struct{}

func (Leave) Tag() Tag               { return TagLeave }
func (Leave) fields() map[string]any { return nil }

// LeaveAck confirms the leave.
type LeaveAck struct{}

func (LeaveAck) Tag() Tag               { return TagLeaveAck }
func (LeaveAck) fields() map[string]any { return nil }

// Disconnected is pushed by the server when the client is removed from
// a room without having asked to leave.
type Disconnected struct {
	Reason  ClosedReason
	Message string
}

func (Disconnected) Tag() Tag { return TagDisconnected }

func (b Disconnected) fields() map[string]any {
	return map[string]any{"reason": string(b.Reason), "message": b.Message}
}

// RequestState asks the server to push a fresh room::state.
type RequestState struct{}

func (RequestState) Tag() Tag               { return TagRequestState }
func (RequestState) fields() map[string]any { return nil }

// State carries the authoritative room snapshot.
type State struct {
	Room RoomState
}

func (State) Tag() Tag { return TagState }

func (b State) fields() map[string]any {
	return map[string]any{"room": roomFields(b.Room)}
}

func roomFields(r RoomState) map[string]any {
	users := make([]any, 0, len(r.Users))
	for _, u := range r.Users {
		users = append(users, map[string]any{
			"id":   u.ID,
			"name": u.Name,
			"role": string(u.Role),
		})
	}
	return map[string]any{
		"id":       r.ID,
		"name":     r.Name,
		"password": r.Password,
		"users":    users,
	}
}

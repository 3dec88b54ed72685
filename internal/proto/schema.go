package proto

// schema describes one message variant: the body fields it may carry
// and how to build the typed body from a decoded frame. Adding a new
// variant is one table row plus one body struct in message.go.
type schema struct {
	fields []string
	decode func(d *fieldReader) Body
}

var schemas = map[Tag]schema{
	TagLogin: {
		fields: []string{"username", "api_key"},
		decode: func(d *fieldReader) Body {
			return Login{Username: d.str("username"), APIKey: d.optStr("api_key")}
		},
	},
	TagLoginAck:  {decode: func(*fieldReader) Body { return LoginAck{} }},
	TagPing:      {decode: func(*fieldReader) Body { return Ping{} }},
	TagPong:      {decode: func(*fieldReader) Body { return Pong{} }},
	TagKeepalive: {decode: func(*fieldReader) Body { return Keepalive{} }},
	TagClientError: {
		fields: []string{"message"},
		decode: func(d *fieldReader) Body {
			return ClientError{Message: d.str("message")}
		},
	},
	TagClosed: {
		fields: []string{"reason", "message"},
		decode: func(d *fieldReader) Body {
			return Closed{Reason: d.reason("reason"), Message: d.str("message")}
		},
	},
	TagCreate: {
		fields: []string{"name", "password"},
		decode: func(d *fieldReader) Body {
			return Create{Name: d.str("name"), Password: d.str("password")}
		},
	},
	TagCreateAck: {
		fields: []string{"room"},
		decode: func(d *fieldReader) Body {
			return CreateAck{Room: d.room("room")}
		},
	},
	TagClose:    {decode: func(*fieldReader) Body { return Close{} }},
	TagCloseAck: {decode: func(*fieldReader) Body { return CloseAck{} }},
	TagJoin: {
		fields: []string{"id", "password"},
		decode: func(d *fieldReader) Body {
			return Join{ID: d.str("id"), Password: d.str("password")}
		},
	},
	TagJoinAck: {
		fields: []string{"room"},
		decode: func(d *fieldReader) Body {
			return JoinAck{Room: d.room("room")}
		},
	},
	TagLeave:    {decode: func(*fieldReader) Body { return Leave{} }},
	TagLeaveAck: {decode: func(*fieldReader) Body { return LeaveAck{} }},
	TagDisconnected: {
		fields: []string{"reason", "message"},
		decode: func(d *fieldReader) Body {
			return Disconnected{Reason: d.reason("reason"), Message: d.str("message")}
		},
	},
	TagRequestState: {decode: func(*fieldReader) Body { return RequestState{} }},
	TagState: {
		fields: []string{"room"},
		decode: func(d *fieldReader) Body {
			return State{Room: d.room("room")}
		},
	},
}

var roomFieldNames = []string{"id", "name", "password", "users"}
var userFieldNames = []string{"id", "name", "role"}

// fieldReader pulls typed fields out of a decoded map, recording the
// first fault it hits. Decode checks d.err once at the end, so the
// table entries stay linear.
type fieldReader struct {
	tag    Tag
	prefix string
	m      map[string]any
	err    error
}

func (d *fieldReader) fail(field, reason string) {
	if d.err == nil {
		d.err = &DecodeError{Tag: string(d.tag), Field: d.prefix + field, Reason: reason}
	}
}

func (d *fieldReader) str(key string) string {
	v, ok := d.m[key]
	if !ok {
		d.fail(key, "missing required field")
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(key, "expected string")
		return ""
	}
	return s
}

func (d *fieldReader) optStr(key string) string {
	v, ok := d.m[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(key, "expected string")
		return ""
	}
	return s
}

func (d *fieldReader) reason(key string) ClosedReason {
	s := d.str(key)
	switch r := ClosedReason(s); r {
	case ReasonUnauthorized, ReasonServerError, ReasonRoomClosed, ReasonTimeout, ReasonUnknown:
		return r
	}
	d.fail(key, "unknown reason")
	return ""
}

func (d *fieldReader) role(key string) Role {
	s := d.str(key)
	switch r := Role(s); r {
	case RoleHost, RoleGuest:
		return r
	}
	d.fail(key, "unknown role")
	return ""
}

func (d *fieldReader) sub(key string, m map[string]any) *fieldReader {
	return &fieldReader{tag: d.tag, prefix: d.prefix + key + ".", m: m}
}

func (d *fieldReader) adopt(sub *fieldReader) {
	if d.err == nil {
		d.err = sub.err
	}
}

func (d *fieldReader) room(key string) RoomState {
	v, ok := d.m[key]
	if !ok {
		d.fail(key, "missing required field")
		return RoomState{}
	}
	m, ok := v.(map[string]any)
	if !ok {
		d.fail(key, "expected object")
		return RoomState{}
	}
	rd := d.sub(key, m)
	rd.strictKeys(roomFieldNames)
	room := RoomState{
		ID:       rd.str("id"),
		Name:     rd.str("name"),
		Password: rd.str("password"),
	}
	uv, ok := m["users"]
	if !ok {
		rd.fail("users", "missing required field")
	} else if list, ok := uv.([]any); !ok {
		rd.fail("users", "expected array")
	} else {
		for _, item := range list {
			um, ok := item.(map[string]any)
			if !ok {
				rd.fail("users", "expected array of objects")
				break
			}
			ud := rd.sub("users", um)
			ud.strictKeys(userFieldNames)
			user := RoomUser{ID: ud.str("id"), Name: ud.str("name"), Role: ud.role("role")}
			rd.adopt(ud)
			if rd.err != nil {
				break
			}
			room.Users = append(room.Users, user)
		}
	}
	d.adopt(rd)
	return room
}

// strictKeys rejects fields the schema does not know about, so a frame
// is either fully understood or not accepted at all.
func (d *fieldReader) strictKeys(allowed []string) {
	for k := range d.m {
		if !contains(allowed, k) {
			d.fail(k, "unexpected field")
			return
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomlink/internal/proto"
)

const (
	// The server pings every 25s or so; going silent for twice that is
	// treated as a dead connection (see DESIGN.md).
	defaultKeepaliveInterval = 25 * time.Second
	defaultLivenessTimeout   = 50 * time.Second
)

type phase int

const (
	phaseLoggingIn phase = iota
	phaseLoggedIn
	phaseClosed
)

type opKind int

const (
	opCreate opKind = iota
	opJoin
	opLeave
	opCloseRoom
	opRequestState
)

type command struct {
	kind     opKind
	name     string
	id       string
	password string
	reply    chan error
}

// Config assembles a session. OnState and OnError receive the emitting
// session so a fan-out layer can drop events from a superseded one.
type Config struct {
	Credentials Credentials
	Logger      zerolog.Logger

	// Dial opens the connection channel. Nil means the production
	// websocket dialer.
	Dial Dialer

	// KeepaliveInterval is the cadence of outbound connection::keepalive
	// frames. Zero picks the default, negative disables them.
	KeepaliveInterval time.Duration

	// LivenessTimeout is how long the server may stay silent before the
	// session closes itself with reason timeout. Zero picks the
	// default, negative disables self-detection.
	LivenessTimeout time.Duration

	OnState func(*Session, SessionState)
	OnError func(*Session, string)
}

// Session drives login, keepalive, and the room lifecycle over one
// connection channel. All protocol state lives on the run loop
// goroutine; public methods post commands into it and wait. A session
// never reconnects: once closed, a fresh one replaces it.
type Session struct {
	cfg  Config
	log  zerolog.Logger
	conn Conn

	keepaliveEvery time.Duration
	livenessAfter  time.Duration

	cmds       chan command
	msgs       chan proto.Message
	connClosed chan struct{}
	closedOnce sync.Once
	done       chan struct{}
	quiet      atomic.Bool

	state   atomic.Value // SessionState
	lastErr atomic.Pointer[SessionError]

	// run-loop owned, never touched elsewhere
	phase      phase
	roomStatus RoomConnectionStatus
	room       *proto.RoomState
	pending    map[opKind]chan error
	loginQueue []command
}

// New validates the credentials, opens the channel, and sends
// connection::login. Validation failures return before any network
// traffic. The run loop only starts with Start, so the caller can
// register the session with its fan-out layer first.
func New(ctx context.Context, cfg Config) (*Session, error) {
	if err := cfg.Credentials.Validate(time.Now()); err != nil {
		return nil, err
	}

	dial := cfg.Dial
	if dial == nil {
		dial = WebsocketDialer(cfg.Logger)
	}

	s := &Session{
		cfg:            cfg,
		log:            cfg.Logger,
		keepaliveEvery: effective(cfg.KeepaliveInterval, defaultKeepaliveInterval),
		livenessAfter:  effective(cfg.LivenessTimeout, defaultLivenessTimeout),
		cmds:           make(chan command, 16),
		msgs:           make(chan proto.Message, 64),
		connClosed:     make(chan struct{}),
		done:           make(chan struct{}),
		pending:        make(map[opKind]chan error),
	}
	s.state.Store(SessionState{Status: StatusNotInRoom})

	conn, err := dial(ctx, cfg.Credentials.ServerURL, s.handleMessage, s.handleClosed)
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	s.conn = conn

	conn.Send(proto.Login{
		Username: cfg.Credentials.Username,
		APIKey:   cfg.Credentials.APIKey,
	})

	return s, nil
}

func effective(configured, fallback time.Duration) time.Duration {
	switch {
	case configured < 0:
		return 0
	case configured == 0:
		return fallback
	default:
		return configured
	}
}

// Start launches the run loop. Inbound frames that arrived before Start
// are buffered and processed in receipt order.
func (s *Session) Start() {
	go s.run()
}

// Close tears the session down without raising an error event. Used
// when a new session supersedes this one.
func (s *Session) Close() {
	s.quiet.Store(true)
	s.conn.Close()
}

// Done is closed when the session has fully ended.
func (s *Session) Done() <-chan struct{} { return s.done }

// Alive reports whether the session can still carry operations.
func (s *Session) Alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return s.conn.IsOpen()
	}
}

// State returns the latest snapshot.
func (s *Session) State() SessionState {
	return s.state.Load().(SessionState)
}

// Err returns the terminal error, if the session ended with one.
func (s *Session) Err() *SessionError { return s.lastErr.Load() }

// CreateRoom sends room::create and waits for the acknowledgement that
// makes this client the host.
func (s *Session) CreateRoom(ctx context.Context, name, password string) error {
	return s.do(ctx, command{kind: opCreate, name: name, password: password})
}

// JoinRoom sends room::join and waits for the acknowledgement.
func (s *Session) JoinRoom(ctx context.Context, id, password string) error {
	return s.do(ctx, command{kind: opJoin, id: id, password: password})
}

// LeaveRoom sends room::leave and reverts to NOT_IN_ROOM only once the
// server acknowledges (or forcibly disconnects us first).
func (s *Session) LeaveRoom(ctx context.Context) error {
	return s.do(ctx, command{kind: opLeave})
}

// CloseRoom asks the server to close the room this client hosts.
func (s *Session) CloseRoom(ctx context.Context) error {
	return s.do(ctx, command{kind: opCloseRoom})
}

// RequestState asks for a fresh room::state push.
func (s *Session) RequestState(ctx context.Context) error {
	return s.do(ctx, command{kind: opRequestState})
}

func (s *Session) do(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)

	select {
	case s.cmds <- cmd:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-s.done:
		// The loop may have resolved the reply right before exiting.
		select {
		case err := <-cmd.reply:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleMessage runs on the channel's reader goroutine; ordering is
// preserved by the msgs queue.
func (s *Session) handleMessage(msg proto.Message) {
	select {
	case s.msgs <- msg:
	case <-s.done:
	}
}

func (s *Session) handleClosed() {
	s.closedOnce.Do(func() { close(s.connClosed) })
}

func (s *Session) run() {
	defer close(s.done)

	s.publish()

	var keepalive *time.Ticker
	var keepaliveC <-chan time.Time
	if s.keepaliveEvery > 0 {
		keepalive = time.NewTicker(s.keepaliveEvery)
		keepaliveC = keepalive.C
		defer keepalive.Stop()
	}

	var liveness *time.Timer
	var livenessC <-chan time.Time
	if s.livenessAfter > 0 {
		liveness = time.NewTimer(s.livenessAfter)
		livenessC = liveness.C
		defer liveness.Stop()
	}

	for {
		select {
		case msg := <-s.msgs:
			if liveness != nil {
				resetTimer(liveness, s.livenessAfter)
			}
			s.handleInbound(msg)

		case cmd := <-s.cmds:
			s.handleCommand(cmd)

		case <-keepaliveC:
			s.conn.Send(proto.Keepalive{})

		case <-livenessC:
			s.fail(&SessionError{Reason: proto.ReasonTimeout, Message: "server went silent"})

		case <-s.connClosed:
			s.drainInbound()
			if s.phase != phaseClosed {
				if s.quiet.Load() {
					s.shutdown()
				} else {
					s.fail(&SessionError{Reason: proto.ReasonUnknown, Message: "connection lost"})
				}
			}
		}

		if s.phase == phaseClosed {
			s.drainCommands()
			return
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// drainInbound processes frames that arrived before the transport
// closed, so a final connection::closed is not lost to the race.
func (s *Session) drainInbound() {
	for s.phase != phaseClosed {
		select {
		case msg := <-s.msgs:
			s.handleInbound(msg)
		default:
			return
		}
	}
}

func (s *Session) drainCommands() {
	for {
		select {
		case cmd := <-s.cmds:
			cmd.reply <- ErrClosed
		default:
			return
		}
	}
}

func (s *Session) handleInbound(msg proto.Message) {
	switch body := msg.Body.(type) {
	case proto.Ping:
		// Answer immediately, no other side effects.
		s.conn.Send(proto.Pong{})

	case proto.Pong, proto.Keepalive:
		// Liveness already reset on receipt.

	case proto.LoginAck:
		if s.phase != phaseLoggingIn {
			s.log.Warn().Msg("duplicate login_ack ignored")
			return
		}
		s.phase = phaseLoggedIn
		s.log.Debug().Msg("logged in")
		queued := s.loginQueue
		s.loginQueue = nil
		for _, cmd := range queued {
			s.dispatch(cmd)
		}

	case proto.ClientError:
		s.log.Warn().Str("message", body.Message).Msg("server relayed client error")

	case proto.Closed:
		s.fail(&SessionError{Reason: body.Reason, Message: body.Message})

	case proto.CreateAck:
		if !s.resolve(opCreate, nil) {
			s.unexpected(msg)
			return
		}
		s.applyRoomAck(body.Room)

	case proto.JoinAck:
		if !s.resolve(opJoin, nil) {
			s.unexpected(msg)
			return
		}
		s.applyRoomAck(body.Room)

	case proto.LeaveAck:
		if !s.resolve(opLeave, nil) {
			s.unexpected(msg)
			return
		}
		s.room = nil
		s.roomStatus = StatusNotInRoom
		s.publish()

	case proto.CloseAck:
		if !s.resolve(opCloseRoom, nil) {
			s.unexpected(msg)
			return
		}
		s.room = nil
		s.roomStatus = StatusNotInRoom
		s.publish()

	case proto.Disconnected:
		s.handleDisconnected(body)

	case proto.State:
		if s.room == nil {
			s.log.Warn().Msg("room state without room membership ignored")
			return
		}
		s.room = cloneRoom(&body.Room)
		s.publish()

	default:
		s.unexpected(msg)
	}
}

func (s *Session) applyRoomAck(room proto.RoomState) {
	s.room = cloneRoom(&room)
	s.roomStatus = StatusInRoom
	s.publish()
}

// handleDisconnected is the forced exit: the server removed us from the
// room regardless of anything in flight.
func (s *Session) handleDisconnected(body proto.Disconnected) {
	serr := &SessionError{Reason: body.Reason, Message: body.Message}

	// A pending leave got what it wanted; create/join lost the race.
	s.resolve(opLeave, nil)
	s.resolve(opCloseRoom, nil)
	s.resolve(opCreate, serr)
	s.resolve(opJoin, serr)

	s.room = nil
	s.roomStatus = StatusNotInRoom
	s.publish()

	switch body.Reason {
	case proto.ReasonUnauthorized, proto.ReasonRoomClosed, proto.ReasonServerError:
		// Rejection-shaped: the session is no longer usable.
		s.terminate(serr)
	default:
		s.emitError(fmt.Sprintf("removed from room (%s): %s", body.Reason, body.Message))
	}
}

func (s *Session) unexpected(msg proto.Message) {
	s.log.Warn().Str("tag", string(msg.Tag())).Msg("unexpected message")
	s.conn.Send(proto.ClientError{Message: fmt.Sprintf("unexpected %s", msg.Tag())})
}

func (s *Session) resolve(kind opKind, err error) bool {
	reply, ok := s.pending[kind]
	if !ok {
		return false
	}
	delete(s.pending, kind)
	reply <- err
	return true
}

func (s *Session) handleCommand(cmd command) {
	if s.phase == phaseClosed {
		cmd.reply <- ErrClosed
		return
	}
	if !s.conn.IsOpen() {
		// The channel died under us; the session is invalid from here.
		serr := &SessionError{Reason: proto.ReasonUnknown, Message: "connection lost"}
		s.fail(serr)
		cmd.reply <- serr
		return
	}
	if s.phase == phaseLoggingIn {
		// Held until login completes, then flushed in order.
		s.loginQueue = append(s.loginQueue, cmd)
		return
	}
	s.dispatch(cmd)
}

func (s *Session) dispatch(cmd command) {
	if _, inFlight := s.pending[cmd.kind]; inFlight {
		cmd.reply <- ErrOperationPending
		return
	}

	switch cmd.kind {
	case opCreate:
		if s.roomStatus != StatusNotInRoom {
			cmd.reply <- ErrAlreadyInRoom
			return
		}
		s.pending[opCreate] = cmd.reply
		s.roomStatus = StatusJoining
		s.conn.Send(proto.Create{Name: cmd.name, Password: cmd.password})
		s.publish()

	case opJoin:
		if s.roomStatus != StatusNotInRoom {
			cmd.reply <- ErrAlreadyInRoom
			return
		}
		s.pending[opJoin] = cmd.reply
		s.roomStatus = StatusJoining
		s.conn.Send(proto.Join{ID: cmd.id, Password: cmd.password})
		s.publish()

	case opLeave:
		if s.roomStatus != StatusInRoom {
			cmd.reply <- ErrNotInRoom
			return
		}
		s.pending[opLeave] = cmd.reply
		s.roomStatus = StatusLeaving
		s.conn.Send(proto.Leave{})
		s.publish()

	case opCloseRoom:
		if s.roomStatus != StatusInRoom {
			cmd.reply <- ErrNotInRoom
			return
		}
		s.pending[opCloseRoom] = cmd.reply
		s.roomStatus = StatusLeaving
		s.conn.Send(proto.Close{})
		s.publish()

	case opRequestState:
		if s.roomStatus != StatusInRoom {
			cmd.reply <- ErrNotInRoom
			return
		}
		s.conn.Send(proto.RequestState{})
		cmd.reply <- nil
	}
}

// fail ends the session with exactly one error event.
func (s *Session) fail(serr *SessionError) {
	if s.phase == phaseClosed {
		return
	}
	s.log.Warn().Str("reason", string(serr.Reason)).Str("message", serr.Message).Msg("session ended")

	s.rejectAll(serr)
	s.room = nil
	s.roomStatus = StatusNotInRoom
	s.phase = phaseClosed
	s.lastErr.Store(serr)
	s.conn.Close()

	s.publish()
	s.emitError(serr.Error())
}

// terminate ends the session after an error event was already due for
// another cause; it still emits exactly one event total.
func (s *Session) terminate(serr *SessionError) {
	if s.phase == phaseClosed {
		return
	}
	s.rejectAll(serr)
	s.phase = phaseClosed
	s.lastErr.Store(serr)
	s.conn.Close()
	s.emitError(serr.Error())
}

// shutdown ends the session quietly (supersede path): no error event,
// no final snapshot.
func (s *Session) shutdown() {
	if s.phase == phaseClosed {
		return
	}
	s.rejectAll(ErrClosed)
	s.room = nil
	s.roomStatus = StatusNotInRoom
	s.phase = phaseClosed
	s.conn.Close()
}

func (s *Session) rejectAll(err error) {
	for kind, reply := range s.pending {
		delete(s.pending, kind)
		reply <- err
	}
	for _, cmd := range s.loginQueue {
		cmd.reply <- err
	}
	s.loginQueue = nil
}

func (s *Session) publish() {
	snap := SessionState{
		Joined: s.room != nil,
		Status: s.roomStatus,
		Room:   cloneRoom(s.room),
	}
	s.state.Store(snap)
	if s.cfg.OnState != nil {
		s.cfg.OnState(s, snap)
	}
}

func (s *Session) emitError(message string) {
	if s.cfg.OnError != nil {
		s.cfg.OnError(s, message)
	}
}

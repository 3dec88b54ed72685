package surface

import (
	"context"
	"errors"
	"io"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomlink/internal/hub"
	"github.com/vovakirdan/roomlink/internal/session"
)

// Handler upgrades surface connections and bridges them to the hub.
type Handler struct {
	ctrl SessionControl
	log  *zerolog.Logger
}

// Handle serves one UI surface for the lifetime of its websocket. The
// surface is subscribed on attach and unsubscribed when it goes away.
func (h *Handler) Handle(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("surface accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	surfaceID := uuid.NewString()
	sub := h.ctrl.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, surfaceID)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, sub)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
			h.log.Warn().Err(err).Str("surface_id", surfaceID).Msg("surface closed with error")
			reason = "error"
		}
	}

	conn.Close(status, reason)
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, surfaceID string) error {
	for {
		var intent Intent
		if err := wsjson.Read(ctx, conn, &intent); err != nil {
			return err
		}

		switch intent.Type {
		case IntentGetSessionState:
			snap, ok := h.ctrl.Snapshot()
			if !ok {
				snap = session.SessionState{Status: session.StatusNotInRoom}
			}
			if err := wsjson.Write(ctx, conn, stateReply(snap)); err != nil {
				return err
			}

		case IntentCreateRoom:
			h.runOp(ctx, conn, surfaceID, func() error {
				return h.ctrl.CreateRoom(ctx, intent.Name, intent.Password)
			})

		case IntentJoinRoom:
			h.runOp(ctx, conn, surfaceID, func() error {
				return h.ctrl.JoinRoom(ctx, intent.ID, intent.Password)
			})

		case IntentLeaveRoom:
			h.runOp(ctx, conn, surfaceID, func() error {
				return h.ctrl.LeaveRoom(ctx)
			})

		case IntentOptionsChanged:
			// One-shot notification; the next settings read is fresh.
			h.ctrl.InvalidateSettings()

		default:
			h.log.Warn().Str("surface_id", surfaceID).Str("type", intent.Type).Msg("unknown intent")
			if err := wsjson.Write(ctx, conn, ErrorReply{
				Type:    ReplySessionError,
				Message: "unknown intent: " + intent.Type,
			}); err != nil {
				return err
			}
		}
	}
}

// runOp executes a room operation off the read loop, so a slow
// acknowledgement does not stall further intents from this surface.
// Success is observable through the state feed; only failures get a
// direct reply.
func (h *Handler) runOp(ctx context.Context, conn *websocket.Conn, surfaceID string, op func() error) {
	go func() {
		err := op()
		if err == nil {
			return
		}
		h.log.Debug().Err(err).Str("surface_id", surfaceID).Msg("room operation failed")
		if writeErr := wsjson.Write(ctx, conn, ErrorReply{
			Type:    ReplySessionError,
			Message: err.Error(),
		}); writeErr != nil && !errors.Is(writeErr, context.Canceled) {
			h.log.Debug().Err(writeErr).Str("surface_id", surfaceID).Msg("error reply not delivered")
		}
	}()
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, sub *hub.Subscription) error {
	for {
		select {
		case ev := <-sub.Events:
			var payload any
			if ev.State != nil {
				payload = stateReply(*ev.State)
			} else {
				payload = ErrorReply{Type: ReplySessionError, Message: ev.Err}
			}
			if err := wsjson.Write(ctx, conn, payload); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

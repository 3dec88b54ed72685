package session

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomlink/internal/auth"
	"github.com/vovakirdan/roomlink/internal/channel"
	"github.com/vovakirdan/roomlink/internal/proto"
)

// Conn is the transport surface the session drives. channel.Channel is
// the production implementation; tests substitute an in-memory one.
type Conn interface {
	Send(body proto.Body)
	Close()
	IsOpen() bool
}

// Dialer opens a Conn and wires the session's inbound callbacks before
// any frame can arrive.
type Dialer func(ctx context.Context, url string, onMessage func(proto.Message), onClosed func()) (Conn, error)

// WebsocketDialer returns the production dialer backed by channel.Dial.
func WebsocketDialer(logger zerolog.Logger) Dialer {
	return func(ctx context.Context, rawURL string, onMessage func(proto.Message), onClosed func()) (Conn, error) {
		return channel.Dial(ctx, rawURL, channel.Options{
			OnMessage: onMessage,
			OnClosed:  onClosed,
			Logger:    logger,
		})
	}
}

// Credentials is what a session needs to exist: who to log in as and
// where. The API key is optional.
type Credentials struct {
	Username  string
	ServerURL string
	APIKey    string
}

// Validate fails fast on credentials the server could never accept.
func (c Credentials) Validate(now time.Time) error {
	if strings.TrimSpace(c.Username) == "" {
		return ErrNoUsername
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Host == "" || (u.Scheme != "ws" && u.Scheme != "wss") {
		return ErrBadServerURL
	}
	if err := auth.CheckAPIKey(c.APIKey, now); err != nil {
		return err
	}
	return nil
}

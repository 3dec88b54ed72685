package channel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomlink/internal/proto"
)

const writeTimeout = 10 * time.Second

// Channel owns one binary duplex connection to the server. It frames
// messages through the proto codec and knows nothing of the protocol
// beyond that. Transport errors and explicit closes both collapse into
// the single closed callback, which fires at most once; a Channel is
// never reopened, reconnecting means constructing a new one.
type Channel struct {
	conn      *websocket.Conn
	log       zerolog.Logger
	onMessage func(proto.Message)
	onClosed  func()
	cancel    context.CancelFunc
	closeOnce sync.Once
	open      atomic.Bool
}

// Options configures the callbacks a Channel drives. Both callbacks are
// invoked from the channel's reader goroutine.
type Options struct {
	OnMessage func(proto.Message)
	OnClosed  func()
	Logger    zerolog.Logger
}

// Dial opens the underlying transport immediately. Only ws and wss
// server URLs are accepted. Dial returning is the "open" signal; the
// caller may send right away.
func Dial(ctx context.Context, rawURL string, opts Options) (*Channel, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported scheme %q: want ws or wss", u.Scheme)
	}

	conn, _, err := websocket.Dial(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	ch := &Channel{
		conn:      conn,
		log:       opts.Logger,
		onMessage: opts.OnMessage,
		onClosed:  opts.OnClosed,
		cancel:    cancel,
	}
	ch.open.Store(true)

	go ch.readLoop(readCtx)

	return ch, nil
}

// Send encodes the body and writes one frame. Write failures are logged
// and the frame is dropped; reliability lives a layer up.
func (c *Channel) Send(body proto.Body) {
	data, err := proto.Encode(body)
	if err != nil {
		c.log.Error().Err(err).Str("tag", string(body.Tag())).Msg("encode frame")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := c.conn.Write(ctx, websocket.MessageBinary, data); err != nil {
		c.log.Warn().Err(err).Str("tag", string(body.Tag())).Msg("ws write failed, frame dropped")
	}
}

// Close tears the transport down. Safe to call more than once; the
// closed callback still fires exactly once.
func (c *Channel) Close() {
	c.terminate()
}

// IsOpen reports whether the closed callback has not fired yet.
func (c *Channel) IsOpen() bool {
	return c.open.Load()
}

func (c *Channel) readLoop(ctx context.Context) {
	defer c.terminate()

	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			c.log.Debug().Err(err).Msg("ws read ended")
			return
		}

		if typ != websocket.MessageBinary {
			c.log.Warn().Int("type", int(typ)).Msg("non-binary frame dropped")
			continue
		}

		msg, err := proto.Decode(data)
		if err != nil {
			// A bad frame never closes the connection.
			c.log.Warn().Err(err).Msg("undecodable frame dropped")
			continue
		}

		if c.onMessage != nil {
			c.onMessage(msg)
		}
	}
}

func (c *Channel) terminate() {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		c.cancel()
		_ = c.conn.Close(websocket.StatusNormalClosure, "closing")
		if c.onClosed != nil {
			c.onClosed()
		}
	})
}

// Package agent wires the pieces into the running host process: it
// owns the settings store, the broadcast hub, the current session, and
// the local surface server.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomlink/internal/config"
	"github.com/vovakirdan/roomlink/internal/hub"
	"github.com/vovakirdan/roomlink/internal/log"
	"github.com/vovakirdan/roomlink/internal/session"
	"github.com/vovakirdan/roomlink/internal/settings"
	"github.com/vovakirdan/roomlink/internal/settings/sqlite"
	"github.com/vovakirdan/roomlink/internal/surface"
)

// ErrNoSession is returned by operations that need a live session when
// none exists and none could be started.
var ErrNoSession = errors.New("no active session")

// Agent is the long-lived host object behind the surface endpoint.
type Agent struct {
	cfg    config.Config
	logger *zerolog.Logger

	hub   *hub.Hub
	store settings.Store
	cache *settings.Cache

	server *http.Server

	// dial overrides the production websocket dialer in tests.
	dial session.Dialer

	// mu serializes session starts; the hub serializes everything else.
	mu sync.Mutex
}

// New opens the settings store and assembles the agent. The surface
// server is created but not yet listening; Run starts it.
func New(cfg config.Config, logger *zerolog.Logger) (*Agent, error) {
	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open settings store: %w", err)
	}

	hubLog := log.Component(logger, "hub")
	a := &Agent{
		cfg:    cfg,
		logger: logger,
		hub:    hub.New(hubLog),
		store:  store,
		cache:  settings.NewCache(store),
	}
	a.server = surface.NewServer(a, cfg, logger)
	return a, nil
}

// Run serves the surface endpoint until ctx is cancelled, then shuts
// everything down in order: listener, session, store.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info().Str("addr", a.cfg.Addr).Msg("surface endpoint listening")

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn().Err(err).Msg("surface shutdown error")
	}
	<-serverErr

	a.cleanup()
	a.logger.Info().Msg("stopped")
	return nil
}

func (a *Agent) cleanup() {
	if current := a.hub.Current(); current != nil {
		current.Close()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("settings store close error")
	}
}

// EnsureSession returns the current session if it can still carry
// operations, otherwise starts a fresh one from settings.
func (a *Agent) EnsureSession(ctx context.Context) (*session.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if current := a.hub.Current(); current != nil && current.Alive() {
		return current, nil
	}
	return a.startSessionLocked(ctx)
}

// StartSession unconditionally replaces the current session with a
// fresh one. The previous session is closed quietly.
func (a *Agent) StartSession(ctx context.Context) (*session.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startSessionLocked(ctx)
}

func (a *Agent) startSessionLocked(ctx context.Context) (*session.Session, error) {
	rec, err := a.cache.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	creds := session.Credentials{
		Username:  rec.Username,
		ServerURL: rec.ServerURL,
		APIKey:    rec.APIKey,
	}
	if a.cfg.ServerURL != "" {
		creds.ServerURL = a.cfg.ServerURL
	}

	sessLog := log.Component(a.logger, "session")
	s, err := session.New(ctx, session.Config{
		Credentials:       creds,
		Logger:            sessLog,
		Dial:              a.dial,
		KeepaliveInterval: a.cfg.KeepaliveInterval,
		LivenessTimeout:   a.cfg.LivenessTimeout,
		OnState:           a.hub.PublishState,
		OnError:           a.hub.PublishError,
	})
	if err != nil {
		a.hub.PublishError(nil, err.Error())
		return nil, err
	}

	// Register before Start so no event from the new session can be
	// dropped, and no late event from the old one can slip through.
	if old := a.hub.Supersede(s); old != nil {
		old.Close()
	}
	s.Start()

	a.logger.Info().Str("server_url", creds.ServerURL).Msg("session started")
	return s, nil
}

// Subscribe attaches a surface to the session event feed.
func (a *Agent) Subscribe() *hub.Subscription {
	return a.hub.Subscribe()
}

// Snapshot returns the latest published session state, if any.
func (a *Agent) Snapshot() (session.SessionState, bool) {
	return a.hub.Snapshot()
}

// InvalidateSettings makes the next session start re-read settings.
func (a *Agent) InvalidateSettings() {
	a.cache.Invalidate()
	a.logger.Debug().Msg("settings cache invalidated")
}

// CreateRoom validates the name locally, then runs room::create on the
// current session, starting one if needed.
func (a *Agent) CreateRoom(ctx context.Context, name, password string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("room name must not be empty")
	}

	s, err := a.EnsureSession(ctx)
	if err != nil {
		return err
	}
	return s.CreateRoom(ctx, name, password)
}

// JoinRoom validates the id locally, then runs room::join on the
// current session, starting one if needed.
func (a *Agent) JoinRoom(ctx context.Context, id, password string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("room id must not be empty")
	}

	s, err := a.EnsureSession(ctx)
	if err != nil {
		return err
	}
	return s.JoinRoom(ctx, id, password)
}

// LeaveRoom runs room::leave on the current session. Unlike the entry
// operations it never starts a session: no session means no room.
func (a *Agent) LeaveRoom(ctx context.Context) error {
	current := a.hub.Current()
	if current == nil || !current.Alive() {
		return ErrNoSession
	}
	return current.LeaveRoom(ctx)
}

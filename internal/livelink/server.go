// Package livelink serves a websocket endpoint through which an external
// editor pulls entity trees from a running world and pushes edited trees
// back.
package livelink

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/zeusync/metacore/internal/core/config"
	"github.com/zeusync/metacore/internal/core/events/bus"
	"github.com/zeusync/metacore/internal/core/observability/log"
	"github.com/zeusync/metacore/internal/core/world"
)

const Path = "/ws"

type Option func(*Server)

func WithLogger(l log.Log) Option { return func(s *Server) { s.log = l } }

// WithEvents forwards asset reloads and deletions on b to every client and
// publishes applied entities back on it.
func WithEvents(b *bus.Bus) Option { return func(s *Server) { s.events = b } }

// ArchetypeResolver returns the archetype asset with the given id.
type ArchetypeResolver func(ctx context.Context, id uuid.UUID) (*world.Archetype, error)

// WithArchetypes enables the instantiate op.
func WithArchetypes(r ArchetypeResolver) Option { return func(s *Server) { s.archetypes = r } }

type Server struct {
	scene      *Scene
	cfg        config.LiveLinkConfig
	log        log.Log
	upgrader   websocket.Upgrader
	events     *bus.Bus
	subs       []*bus.Subscription
	archetypes ArchetypeResolver

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	clients  map[*client]struct{}
}

func NewServer(scene *Scene, cfg config.LiveLinkConfig, opts ...Option) *Server {
	s := &Server{
		scene: scene,
		cfg:   cfg,
		log:   log.Nop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.events != nil {
		s.subs = append(s.subs,
			s.events.Subscribe(bus.AssetReloaded, s.forward(OpAssetReloaded)),
			s.events.Subscribe(bus.AssetDeleted, s.forward(OpAssetDeleted)),
		)
	}
	return s
}

func (s *Server) forward(op string) bus.Handler {
	return func(e bus.Event) error {
		s.broadcast(nil, Message{Op: op, Asset: e.Asset.String(), Name: e.Name})
		return nil
	}
}

// Close drops the event subscriptions.
func (s *Server) Close() {
	for _, sub := range s.subs {
		sub.Cancel()
	}
	s.subs = nil
}

func (s *Server) Scene() *Scene { return s.scene }

// Handler returns the HTTP handler serving the websocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleWebSocket)
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return ErrServerAlreadyRunning
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("livelink server stopped", log.Err(err))
		}
	}()
	s.log.Info("livelink listening", log.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address while the server runs.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes every client connection and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server, s.listener = nil, nil
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	if srv == nil {
		return ErrServerNotRunning
	}
	for _, c := range clients {
		c.close(websocket.CloseGoingAway, "server shutting down")
	}
	return srv.Shutdown(ctx)
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

// broadcast sends a notice to every client except from.
func (s *Server) broadcast(from *client, msg Message) {
	s.mu.Lock()
	targets := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		if c != from {
			targets = append(targets, c)
		}
	}
	s.mu.Unlock()
	for _, c := range targets {
		if err := c.sendText(msg); err != nil {
			s.log.Debug("broadcast failed", log.String("client", c.id), log.Err(err))
		}
	}
}

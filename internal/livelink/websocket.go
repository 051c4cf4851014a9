package livelink

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/zeusync/metacore/internal/core/events/bus"
	"github.com/zeusync/metacore/internal/core/observability/log"
)

const (
	OpSnapshot    = "snapshot"
	OpRoots       = "roots"
	OpInspect     = "inspect"
	OpInstantiate = "instantiate"
	OpApplied     = "applied"
	OpChanged     = "changed"
	OpError       = "error"

	OpAssetReloaded = "asset.reloaded"
	OpAssetDeleted  = "asset.deleted"
)

// Message is the JSON body of every text frame. Requests carry Op and, for
// entity operations, Entity. Instantiate names the archetype in Asset.
// Entity trees travel as binary frames.
type Message struct {
	Op         string           `json:"op"`
	Entity     string           `json:"entity,omitempty"`
	Asset      string           `json:"asset,omitempty"`
	Name       string           `json:"name,omitempty"`
	Entities   []EntityInfo     `json:"entities,omitempty"`
	Components []map[string]any `json:"components,omitempty"`
	Error      string           `json:"error,omitempty"`
}

type client struct {
	id      string
	conn    *websocket.Conn
	timeout time.Duration

	mu sync.Mutex
}

func (c *client) write(kind int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	return c.conn.WriteMessage(kind, data)
}

func (c *client) sendText(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

func (c *client) sendError(err error) error {
	return c.sendText(Message{Op: OpError, Error: err.Error()})
}

func (c *client) close(code int, reason string) {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	c.mu.Unlock()
	_ = c.conn.Close()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", log.String("remote", r.RemoteAddr), log.Err(err))
		return
	}
	if s.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(s.cfg.MaxMessageSize)
	}
	c := &client{id: conn.RemoteAddr().String(), conn: conn, timeout: s.cfg.WriteTimeout}
	s.register(c)
	defer func() {
		s.unregister(c)
		_ = conn.Close()
	}()
	s.log.Debug("editor connected", log.String("client", c.id))

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("editor read failed", log.String("client", c.id), log.Err(err))
			}
			return
		}
		switch kind {
		case websocket.TextMessage:
			err = s.handleRequest(r.Context(), c, data)
		case websocket.BinaryMessage:
			err = s.handleBlob(c, data)
		}
		if err != nil {
			s.log.Warn("editor request failed", log.String("client", c.id), log.Err(err))
			if werr := c.sendError(err); werr != nil {
				return
			}
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, c *client, data []byte) error {
	var req Message
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	switch req.Op {
	case OpRoots:
		return c.sendText(Message{Op: OpRoots, Entities: s.scene.Roots()})
	case OpSnapshot, OpInspect:
		id, err := uuid.Parse(req.Entity)
		if err != nil {
			return fmt.Errorf("%w: entity %q", ErrInvalidMessage, req.Entity)
		}
		if req.Op == OpInspect {
			cs, err := s.scene.Inspect(id)
			if err != nil {
				return err
			}
			return c.sendText(Message{Op: OpInspect, Entity: req.Entity, Components: cs})
		}
		blob, err := s.scene.Snapshot(id)
		if err != nil {
			return err
		}
		return c.write(websocket.BinaryMessage, blob)
	case OpInstantiate:
		return s.instantiate(ctx, c, req.Asset)
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidMessage, req.Op)
	}
}

func (s *Server) instantiate(ctx context.Context, c *client, ref string) error {
	if s.archetypes == nil {
		return fmt.Errorf("%w: archetypes are not served", ErrInvalidMessage)
	}
	id, err := uuid.Parse(ref)
	if err != nil {
		return fmt.Errorf("%w: asset %q", ErrInvalidMessage, ref)
	}
	a, err := s.archetypes(ctx, id)
	if err != nil {
		return err
	}
	info, err := s.scene.Instantiate(a)
	if err != nil {
		return err
	}
	s.log.Info("archetype instantiated", log.String("client", c.id), log.String("asset", ref), log.String("entity", info.ID))
	if err = c.sendText(Message{Op: OpInstantiate, Asset: ref, Entity: info.ID, Name: info.Name}); err != nil {
		return err
	}
	s.broadcast(c, Message{Op: OpChanged, Entity: info.ID, Name: info.Name})
	return nil
}

func (s *Server) handleBlob(c *client, data []byte) error {
	info, err := s.scene.Apply(data)
	if err != nil {
		return err
	}
	s.log.Info("entity applied", log.String("client", c.id), log.String("entity", info.ID), log.String("name", info.Name))
	if s.events != nil {
		id, _ := uuid.Parse(info.ID)
		if perr := s.events.Publish(bus.NewEntityEvent(bus.EntityApplied, "livelink", id, info.Name)); perr != nil {
			s.log.Warn("event handler failed", log.String("event", bus.EntityApplied), log.Err(perr))
		}
	}
	if err = c.sendText(Message{Op: OpApplied, Entity: info.ID, Name: info.Name}); err != nil {
		return err
	}
	s.broadcast(c, Message{Op: OpChanged, Entity: info.ID, Name: info.Name})
	return nil
}

package world

import (
	"github.com/google/uuid"
	"github.com/zeusync/metacore/internal/core/archive"
	"github.com/zeusync/metacore/internal/core/meta"
	"github.com/zeusync/metacore/internal/core/observability/log"
	"github.com/zeusync/metacore/pkg/bytebuffer"
)

type pendingRef struct {
	id   uuid.UUID
	bind func(meta.EntityHandle) error
}

type pendingPrototype struct {
	entity meta.EntityHandle
	id     uuid.UUID
}

// session collects what an entity tree decode can only resolve once every
// node of the tree exists.
type session struct {
	remap  map[uuid.UUID]meta.EntityHandle
	refs   []pendingRef
	protos []pendingPrototype
}

func newSession() *session {
	return &session{remap: make(map[uuid.UUID]meta.EntityHandle)}
}

// resolve binds deferred entity references and prototype links. References
// to identities inside the decoded tree follow the remap, the rest are looked
// up in the world. Unresolved ones become invalid handles.
func (s *session) resolve(w *World) error {
	for _, r := range s.refs {
		h, ok := s.remap[r.id]
		if !ok {
			if h, ok = w.Lookup(r.id); !ok {
				w.log.Debug("entity reference unresolved", log.Stringer("identity", r.id))
			}
		}
		if err := r.bind(h); err != nil {
			return err
		}
	}
	for _, p := range s.protos {
		e, ok := w.Get(p.entity)
		if !ok {
			continue
		}
		var proto meta.EntityHandle
		if p.id != uuid.Nil {
			if proto, ok = w.Lookup(p.id); !ok {
				w.log.Debug("prototype not in world",
					log.String("entity", e.name), log.Stringer("prototype", p.id))
			}
		}
		w.linkPrototype(e, proto)
	}
	s.refs, s.protos = nil, nil
	return nil
}

// entityCodec writes entity handles as the identity of the entity they point
// at. Outside a tree decode references resolve immediately against the world.
type entityCodec struct {
	world   *World
	session *session
}

var _ archive.EntityCodec = (*entityCodec)(nil)

func (c *entityCodec) EncodeEntity(buf *bytebuffer.ByteBuffer, h meta.EntityHandle) error {
	id := uuid.Nil
	if e, ok := c.world.Get(h); ok {
		id = e.id
	}
	archive.WriteUUID(buf, id)
	return nil
}

func (c *entityCodec) DecodeEntity(buf *bytebuffer.ByteBuffer, bind func(meta.EntityHandle) error) error {
	id, err := archive.ReadUUID(buf)
	if err != nil {
		return err
	}
	if id == uuid.Nil {
		return bind(meta.InvalidEntity)
	}
	if c.session != nil {
		c.session.refs = append(c.session.refs, pendingRef{id: id, bind: bind})
		return nil
	}
	h, _ := c.world.Lookup(id)
	return bind(h)
}

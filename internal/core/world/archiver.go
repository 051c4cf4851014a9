package world

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/zeusync/metacore/internal/core/archive"
	"github.com/zeusync/metacore/internal/core/meta"
	"github.com/zeusync/metacore/internal/core/observability/log"
	"github.com/zeusync/metacore/pkg/bytebuffer"
)

// Archiver serializes entity trees. An entity blob is
//
//	Identity:String Name:String Transform(10xf32) Prototype:String
//	EntityOverrides TransformOverrides
//	ComponentCount:u32 (Size:u32 ObjectBlob)* ChildCount:u32 EntityBlob*
//
// Components and entity references go through the object archiver; entity
// references are written as identities and rebound on decode.
type Archiver struct {
	objects *archive.ObjectArchiver
	log     log.Log
}

func NewArchiver(objects *archive.ObjectArchiver) *Archiver {
	return &Archiver{objects: objects, log: objects.Logger()}
}

func (a *Archiver) Objects() *archive.ObjectArchiver { return a.objects }

// Codec returns an entity codec bound to w, for object archivers that
// serialize components outside an entity tree.
func (a *Archiver) Codec(w *World) archive.EntityCodec {
	return &entityCodec{world: w}
}

// For returns the object archiver used for components living in w.
func (a *Archiver) For(w *World) *archive.ObjectArchiver {
	return a.objects.WithEntities(a.Codec(w))
}

type decodeOptions struct {
	regenerate bool
	apply      bool
}

type DecodeOption func(*decodeOptions)

// RegenerateIdentity gives every decoded entity a fresh identity. References
// between entities of the decoded tree follow the new identities.
func RegenerateIdentity() DecodeOption {
	return func(o *decodeOptions) { o.regenerate = true }
}

func (a *Archiver) classes() (entity, transform *meta.Class, err error) {
	r := a.objects.Registry()
	var ok bool
	if entity, ok = r.Class(EntityClassName); !ok {
		return nil, nil, fmt.Errorf("%w: %s", meta.ErrUnregisteredType, EntityClassName)
	}
	if transform, ok = r.Class(meta.TransformClassName); !ok {
		return nil, nil, fmt.Errorf("%w: %s", meta.ErrUnregisteredType, meta.TransformClassName)
	}
	return entity, transform, nil
}

// Serialize encodes h and its descendants.
func (a *Archiver) Serialize(w *World, h meta.EntityHandle) ([]byte, error) {
	buf := bytebuffer.New()
	if err := a.SerializeTo(buf, w, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *Archiver) SerializeTo(buf *bytebuffer.ByteBuffer, w *World, h meta.EntityHandle) error {
	e, err := w.mustGet(h)
	if err != nil {
		return err
	}
	ec, tc, err := a.classes()
	if err != nil {
		return err
	}
	return a.encode(buf, a.For(w), ec, tc, w, e)
}

func (a *Archiver) encode(buf *bytebuffer.ByteBuffer, objs *archive.ObjectArchiver, ec, tc *meta.Class, w *World, e *Entity) error {
	archive.WriteUUID(buf, e.id)
	buf.WriteString(e.name)
	archive.WriteTransform(buf, *e.transform)
	proto := uuid.Nil
	if p, ok := w.Get(e.prototype); ok {
		proto = p.id
	}
	archive.WriteUUID(buf, proto)
	objs.WriteOverrides(buf, ec, e)
	objs.WriteOverrides(buf, tc, e.transform)

	buf.WriteUint32(uint32(len(e.components)))
	scratch := bytebuffer.Acquire()
	defer bytebuffer.Release(scratch)
	for _, c := range e.components {
		scratch.Reset()
		if err := objs.SerializeTo(scratch, c); err != nil {
			return fmt.Errorf("entity %s: %w", e.name, err)
		}
		buf.WriteUint32(uint32(scratch.Len()))
		buf.Append(scratch)
	}

	children := make([]*Entity, 0, len(e.children))
	for _, h := range e.children {
		if c, ok := w.Get(h); ok {
			children = append(children, c)
		}
	}
	buf.WriteUint32(uint32(len(children)))
	for _, c := range children {
		if err := a.encode(buf, objs, ec, tc, w, c); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize decodes an entity blob into w as a new root. Identities are
// kept unless RegenerateIdentity is given or they are already taken in w.
func (a *Archiver) Deserialize(w *World, data []byte, opts ...DecodeOption) (meta.EntityHandle, error) {
	return a.DeserializeFrom(w, bytebuffer.FromBytes(data), opts...)
}

func (a *Archiver) DeserializeFrom(w *World, buf *bytebuffer.ByteBuffer, opts ...DecodeOption) (meta.EntityHandle, error) {
	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return a.decodeTree(w, buf, o)
}

// Apply decodes an entity blob onto w. Nodes whose identity is live are
// updated in place: name, transform, overrides and prototype link are
// replaced, components are replaced by the decoded ones and children missing
// from the blob are destroyed. Other nodes are created.
func (a *Archiver) Apply(w *World, data []byte) (meta.EntityHandle, error) {
	return a.decodeTree(w, bytebuffer.FromBytes(data), decodeOptions{apply: true})
}

func (a *Archiver) decodeTree(w *World, buf *bytebuffer.ByteBuffer, o decodeOptions) (meta.EntityHandle, error) {
	ec, tc, err := a.classes()
	if err != nil {
		return meta.InvalidEntity, err
	}
	s := newSession()
	objs := a.objects.WithEntities(&entityCodec{world: w, session: s})
	h, err := a.decode(buf, objs, ec, tc, w, s, o)
	if err != nil {
		return meta.InvalidEntity, err
	}
	if err = s.resolve(w); err != nil {
		if !o.apply {
			_ = w.DestroyEntity(h)
		}
		return meta.InvalidEntity, err
	}
	return h, nil
}

func (a *Archiver) decode(buf *bytebuffer.ByteBuffer, objs *archive.ObjectArchiver, ec, tc *meta.Class, w *World, s *session, o decodeOptions) (h meta.EntityHandle, err error) {
	id, err := archive.ReadUUID(buf)
	if err != nil {
		return meta.InvalidEntity, err
	}
	name, err := buf.ReadString()
	if err != nil {
		return meta.InvalidEntity, err
	}
	local, err := archive.ReadTransform(buf)
	if err != nil {
		return meta.InvalidEntity, err
	}
	protoID, err := archive.ReadUUID(buf)
	if err != nil {
		return meta.InvalidEntity, err
	}

	e, existed, err := a.allocate(w, id, name, o)
	if err != nil {
		return meta.InvalidEntity, err
	}
	h = e.handle
	if !existed {
		defer func() {
			if err != nil {
				_ = w.DestroyEntity(h)
			}
		}()
	}
	if id != uuid.Nil {
		s.remap[id] = h
	}
	e.name = name
	e.SetLocal(local)
	if protoID != uuid.Nil || existed {
		s.protos = append(s.protos, pendingPrototype{entity: h, id: protoID})
	}
	if err = objs.ReadOverrides(buf, ec, e); err != nil {
		return h, err
	}
	if err = objs.ReadOverrides(buf, tc, e.transform); err != nil {
		return h, err
	}
	if err = a.decodeComponents(buf, objs, w, e, existed); err != nil {
		return h, err
	}
	return h, a.decodeChildren(buf, objs, ec, tc, w, s, o, e, existed)
}

// allocate picks the entity a blob node decodes into.
func (a *Archiver) allocate(w *World, id uuid.UUID, name string, o decodeOptions) (*Entity, bool, error) {
	if o.apply && id != uuid.Nil {
		if h, ok := w.Lookup(id); ok {
			e, _ := w.Get(h)
			return e, true, nil
		}
	}
	fresh := id
	if o.regenerate || id == uuid.Nil {
		fresh = uuid.New()
	} else if _, taken := w.Lookup(id); taken {
		a.log.Debug("entity identity taken, assigning a new one",
			log.String("entity", name), log.Stringer("identity", id))
		fresh = uuid.New()
	}
	h, err := w.CreateEntityWithID(fresh, name)
	if err != nil {
		return nil, false, err
	}
	e, _ := w.Get(h)
	return e, false, nil
}

func (a *Archiver) decodeComponents(buf *bytebuffer.ByteBuffer, objs *archive.ObjectArchiver, w *World, e *Entity, replace bool) error {
	count, err := buf.ReadUint32()
	if err != nil {
		return err
	}
	if int64(count)*4 > int64(buf.Remaining()) {
		return fmt.Errorf("%w: entity %s declares %d components", bytebuffer.ErrCorruptData, e.name, count)
	}
	decoded := make([]meta.Object, 0, count)
	for i := uint32(0); i < count; i++ {
		size, err := buf.ReadUint32()
		if err != nil {
			return err
		}
		sub, err := buf.Slice(int(size))
		if err != nil {
			return err
		}
		c, err := objs.DeserializeFrom(sub)
		if errors.Is(err, archive.ErrClassNotFound) {
			a.log.Warn("skipping component of unknown class",
				log.String("entity", e.name), log.Err(err))
			continue
		}
		if err != nil {
			for _, d := range decoded {
				w.dropComponent(d)
			}
			return fmt.Errorf("entity %s component %d: %w", e.name, i, err)
		}
		decoded = append(decoded, c)
	}
	if replace {
		for _, c := range e.components {
			w.dropComponent(c)
		}
		e.components = nil
	}
	e.components = append(e.components, decoded...)
	return nil
}

func (a *Archiver) decodeChildren(buf *bytebuffer.ByteBuffer, objs *archive.ObjectArchiver, ec, tc *meta.Class, w *World, s *session, o decodeOptions, e *Entity, existed bool) error {
	count, err := buf.ReadUint32()
	if err != nil {
		return err
	}
	if int64(count)*4 > int64(buf.Remaining()) {
		return fmt.Errorf("%w: entity %s declares %d children", bytebuffer.ErrCorruptData, e.name, count)
	}
	kept := make([]meta.EntityHandle, 0, count)
	for i := uint32(0); i < count; i++ {
		ch, err := a.decode(buf, objs, ec, tc, w, s, o)
		if err != nil {
			return err
		}
		child, _ := w.Get(ch)
		if child.parent != e.handle {
			// AddChild keeps the world transform; the decoded local one wins.
			local := *child.transform
			if err = w.AddChild(e.handle, ch); err != nil {
				return err
			}
			child.SetLocal(local)
		}
		kept = append(kept, ch)
	}
	if existed {
		for _, old := range e.Children() {
			if !slices.Contains(kept, old) {
				if err = w.DestroyEntity(old); err != nil {
					return err
				}
			}
		}
		e.children = kept
	}
	return nil
}

// CopyEntity copies h with its descendants from one world into another,
// keeping identities unless they collide.
func (a *Archiver) CopyEntity(from *World, h meta.EntityHandle, to *World) (meta.EntityHandle, error) {
	scratch := bytebuffer.Acquire()
	defer bytebuffer.Release(scratch)
	if err := a.SerializeTo(scratch, from, h); err != nil {
		return meta.InvalidEntity, err
	}
	return a.DeserializeFrom(to, scratch)
}

// InstanceEntity creates an instance of proto: a copy with fresh identities
// whose every node records the matching prototype node. The copy starts
// without overrides.
func (a *Archiver) InstanceEntity(w *World, proto meta.EntityHandle) (meta.EntityHandle, error) {
	scratch := bytebuffer.Acquire()
	defer bytebuffer.Release(scratch)
	if err := a.SerializeTo(scratch, w, proto); err != nil {
		return meta.InvalidEntity, err
	}
	h, err := a.DeserializeFrom(w, scratch, RegenerateIdentity())
	if err != nil {
		return meta.InvalidEntity, err
	}
	a.linkTrees(w, proto, h)
	if err = a.ClearEntityOverrides(w, h); err != nil {
		return meta.InvalidEntity, err
	}
	return h, nil
}

// linkTrees walks two trees of the same shape and links every node of inst
// to the node of proto at the same position.
func (a *Archiver) linkTrees(w *World, proto, inst meta.EntityHandle) {
	p, ok := w.Get(proto)
	if !ok {
		return
	}
	i, ok := w.Get(inst)
	if !ok {
		return
	}
	w.linkPrototype(i, proto)
	for k := 0; k < len(p.children) && k < len(i.children); k++ {
		a.linkTrees(w, p.children[k], i.children[k])
	}
}

type componentPair struct {
	source, dest meta.Object
}

// pairComponents matches components by class and occurrence: the n-th
// component of a class on one side pairs with the n-th of that class on the
// other. It returns the pairs (dest nil when unmatched) and the leftover
// dest components.
func (a *Archiver) pairComponents(source, dest []meta.Object) ([]componentPair, []meta.Object) {
	r := a.objects.Registry()
	classOf := func(o meta.Object) *meta.Class {
		c, _ := r.ClassOf(o)
		return c
	}
	used := make([]bool, len(dest))
	pairs := make([]componentPair, 0, len(source))
	for _, sc := range source {
		class := classOf(sc)
		pair := componentPair{source: sc}
		for i, dc := range dest {
			if !used[i] && classOf(dc) == class {
				used[i] = true
				pair.dest = dc
				break
			}
		}
		pairs = append(pairs, pair)
	}
	var extra []meta.Object
	for i, dc := range dest {
		if !used[i] {
			extra = append(extra, dc)
		}
	}
	return pairs, extra
}

type childPair struct {
	source, dest *Entity
}

// pairChildren matches the children of s and d. When d is an instance of s
// children pair through their prototype links, otherwise by position.
func (a *Archiver) pairChildren(w *World, s, d *Entity) ([]childPair, []*Entity) {
	live := func(hs []meta.EntityHandle) []*Entity {
		out := make([]*Entity, 0, len(hs))
		for _, h := range hs {
			if e, ok := w.Get(h); ok {
				out = append(out, e)
			}
		}
		return out
	}
	sc, dc := live(s.children), live(d.children)
	used := make([]bool, len(dc))
	pairs := make([]childPair, 0, len(sc))
	linked := d.prototype == s.handle
	for k, src := range sc {
		pair := childPair{source: src}
		if linked {
			for i, dst := range dc {
				if !used[i] && dst.prototype == src.handle {
					used[i] = true
					pair.dest = dst
					break
				}
			}
		} else if k < len(dc) {
			used[k] = true
			pair.dest = dc[k]
		}
		pairs = append(pairs, pair)
	}
	var extra []*Entity
	for i, dst := range dc {
		if !used[i] {
			extra = append(extra, dst)
		}
	}
	return pairs, extra
}

// MergeEntity merges the tree under source into the tree under dest. Entity
// state and components merge property by property under policy. Components
// and children missing from dest are added; with AcceptSource, dest
// components and children without a counterpart are removed.
func (a *Archiver) MergeEntity(w *World, source, dest meta.EntityHandle, policy archive.MergePolicy) error {
	if policy == archive.AcceptTarget {
		source, dest, policy = dest, source, archive.AcceptSource
	}
	s, err := w.mustGet(source)
	if err != nil {
		return err
	}
	d, err := w.mustGet(dest)
	if err != nil {
		return err
	}
	return a.mergeNode(w, a.For(w), s, d, policy)
}

func (a *Archiver) mergeNode(w *World, objs *archive.ObjectArchiver, s, d *Entity, policy archive.MergePolicy) error {
	if err := objs.Merge(s, d, policy); err != nil {
		return err
	}

	pairs, extra := a.pairComponents(s.components, d.components)
	for _, p := range pairs {
		if p.dest != nil {
			if err := objs.Merge(p.source, p.dest, policy); err != nil {
				return fmt.Errorf("entity %s: %w", d.name, err)
			}
			continue
		}
		c, err := objs.Clone(p.source)
		if err != nil {
			return fmt.Errorf("entity %s: %w", d.name, err)
		}
		objs.ClearAllPropertyOverrides(c)
		d.components = append(d.components, c)
	}
	if policy == archive.AcceptSource {
		for _, c := range extra {
			if err := w.RemoveComponent(d.handle, c); err != nil {
				return err
			}
		}
	}

	children, orphans := a.pairChildren(w, s, d)
	for _, p := range children {
		if p.dest != nil {
			if err := a.mergeNode(w, objs, p.source, p.dest, policy); err != nil {
				return err
			}
			continue
		}
		if err := a.adoptCopy(w, s, d, p.source); err != nil {
			return err
		}
	}
	if policy == archive.AcceptSource {
		for _, o := range orphans {
			if err := w.DestroyEntity(o.handle); err != nil {
				return err
			}
		}
	}
	return nil
}

// adoptCopy places a copy of src under d. When d is an instance of s the copy
// becomes an instance of src.
func (a *Archiver) adoptCopy(w *World, s, d, src *Entity) error {
	var (
		h   meta.EntityHandle
		err error
	)
	if d.prototype == s.handle {
		h, err = a.InstanceEntity(w, src.handle)
	} else {
		scratch := bytebuffer.Acquire()
		defer bytebuffer.Release(scratch)
		if err = a.SerializeTo(scratch, w, src.handle); err != nil {
			return err
		}
		h, err = a.DeserializeFrom(w, scratch, RegenerateIdentity())
	}
	if err != nil {
		return err
	}
	c, _ := w.Get(h)
	local := *c.transform
	if err = w.AddChild(d.handle, h); err != nil {
		return err
	}
	c.SetLocal(local)
	return nil
}

// RecordEntityOverrides flags every property of the dest tree that differs
// from the source tree, pairing components and children as MergeEntity does.
func (a *Archiver) RecordEntityOverrides(w *World, source, dest meta.EntityHandle) error {
	s, err := w.mustGet(source)
	if err != nil {
		return err
	}
	d, err := w.mustGet(dest)
	if err != nil {
		return err
	}
	return a.recordNode(w, a.For(w), s, d)
}

func (a *Archiver) recordNode(w *World, objs *archive.ObjectArchiver, s, d *Entity) error {
	if err := objs.RecordAllPropertyOverrides(s, d); err != nil {
		return err
	}
	pairs, _ := a.pairComponents(s.components, d.components)
	for _, p := range pairs {
		if p.dest == nil {
			continue
		}
		if err := objs.RecordAllPropertyOverrides(p.source, p.dest); err != nil {
			return fmt.Errorf("entity %s: %w", d.name, err)
		}
	}
	children, _ := a.pairChildren(w, s, d)
	for _, p := range children {
		if p.dest == nil {
			continue
		}
		if err := a.recordNode(w, objs, p.source, p.dest); err != nil {
			return err
		}
	}
	return nil
}

// ClearEntityOverrides drops the overrides of h, its components and its
// descendants.
func (a *Archiver) ClearEntityOverrides(w *World, h meta.EntityHandle) error {
	return w.Walk(h, func(e *Entity) error {
		a.objects.ClearAllPropertyOverrides(e)
		for _, c := range e.components {
			a.objects.ClearAllPropertyOverrides(c)
		}
		return nil
	})
}

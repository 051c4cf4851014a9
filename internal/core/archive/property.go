package archive

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/zeusync/metacore/internal/core/asset"
	"github.com/zeusync/metacore/internal/core/meta"
	"github.com/zeusync/metacore/internal/core/observability/log"
	"github.com/zeusync/metacore/pkg/bytebuffer"
)

// SerializeProperty writes one self-describing property frame:
// Name:String Category:i32 ByteSize:u32 Payload.
func (a *ObjectArchiver) SerializeProperty(buf *bytebuffer.ByteBuffer, obj meta.Object, p *meta.Property) error {
	payload := bytebuffer.Acquire()
	defer bytebuffer.Release(payload)
	if err := a.writePayload(payload, obj, p); err != nil {
		return &PropertyError{Class: p.Owner().Name(), Property: p.Name(), Err: err}
	}
	buf.WriteString(p.Name())
	buf.WriteInt32(int32(p.Category()))
	buf.WriteUint32(uint32(payload.Len()))
	buf.Append(payload)
	return nil
}

// DeserializeProperty reads the next property frame of buf into obj. A frame
// whose name is unknown to class, or whose category differs from the live
// property, is skipped without touching obj.
func (a *ObjectArchiver) DeserializeProperty(buf *bytebuffer.ByteBuffer, class *meta.Class, obj meta.Object) error {
	name, err := buf.ReadString()
	if err != nil {
		return err
	}
	raw, err := buf.ReadInt32()
	if err != nil {
		return err
	}
	size, err := buf.ReadUint32()
	if err != nil {
		return err
	}
	if int64(size) > int64(buf.Remaining()) {
		return fmt.Errorf("%w: property %s.%s declares %d bytes", bytebuffer.ErrBufferUnderrun, class.Name(), name, size)
	}

	category := meta.Category(raw)
	p := class.Property(name)
	if p == nil || p.Category() != category || p.Transient() {
		a.log.Warn("skipping serialized property",
			log.String("class", class.Name()),
			log.String("property", name),
			log.Stringer("category", category),
			log.Err(ErrUnknownProperty))
		return buf.AdvanceReadPosition(int(size))
	}

	if fixed := category.FixedSize(); fixed >= 0 && int(size) != fixed {
		return &PropertyError{Class: class.Name(), Property: name,
			Err: fmt.Errorf("%w: %s payload of %d bytes, want %d", bytebuffer.ErrCorruptData, category, size, fixed)}
	}
	payload, err := buf.Slice(int(size))
	if err != nil {
		return err
	}
	if err = a.readPayload(payload, obj, p); err != nil {
		return &PropertyError{Class: class.Name(), Property: name, Err: err}
	}
	return nil
}

func (a *ObjectArchiver) writePayload(buf *bytebuffer.ByteBuffer, obj meta.Object, p *meta.Property) error {
	switch p.Category() {
	case meta.CategoryArray:
		return a.writeArray(buf, obj, p)
	case meta.CategoryMap:
		return a.writeMap(buf, obj, p)
	default:
		v, err := p.Get(obj)
		if err != nil {
			return err
		}
		return a.writeValue(buf, p.Category(), v)
	}
}

func (a *ObjectArchiver) readPayload(buf *bytebuffer.ByteBuffer, obj meta.Object, p *meta.Property) error {
	switch p.Category() {
	case meta.CategoryArray:
		return a.readArray(buf, obj, p)
	case meta.CategoryMap:
		return a.readMap(buf, obj, p)
	case meta.CategoryEntity:
		return a.readEntity(buf, func(h meta.EntityHandle) error { return p.Set(obj, h) })
	case meta.CategoryObject:
		return a.readObjectProperty(buf, obj, p)
	case meta.CategoryAsset:
		v, err := a.readAsset(buf, p.Element())
		if err != nil {
			return err
		}
		return a.setAsset(p.Element(), v, func(v any) error { return p.Set(obj, v) })
	default:
		v, err := readPlain(buf, p.Category())
		if err != nil {
			return err
		}
		return p.Set(obj, v)
	}
}

// writeValue encodes a single value of category c. Containers never nest.
func (a *ObjectArchiver) writeValue(buf *bytebuffer.ByteBuffer, c meta.Category, v any) error {
	switch c {
	case meta.CategoryObject:
		return a.encodeNested(buf, v)
	case meta.CategoryAsset:
		id := uuid.Nil
		if v != nil {
			x, ok := asset.As(v)
			if !ok {
				return fmt.Errorf("%w: %T", asset.ErrNotAnAsset, v)
			}
			id = x.AssetID()
		}
		WriteUUID(buf, id)
		return nil
	case meta.CategoryEntity:
		h, ok := v.(meta.EntityHandle)
		if !ok {
			return fmt.Errorf("%w: entity cannot hold %T", meta.ErrTypeMismatch, v)
		}
		return a.writeEntity(buf, h)
	default:
		return writePlain(buf, c, v)
	}
}

// readValue decodes a value for a container slot. Entities are bound
// through readEntity instead.
func (a *ObjectArchiver) readValue(buf *bytebuffer.ByteBuffer, elem meta.Element) (any, error) {
	switch elem.Category {
	case meta.CategoryObject:
		obj, _, err := a.decodeNested(buf, elem, nil)
		return obj, err
	case meta.CategoryAsset:
		return a.readAsset(buf, elem)
	default:
		return readPlain(buf, elem.Category)
	}
}

func (a *ObjectArchiver) writeEntity(buf *bytebuffer.ByteBuffer, h meta.EntityHandle) error {
	if a.entities == nil {
		WriteUUID(buf, uuid.Nil)
		return nil
	}
	return a.entities.EncodeEntity(buf, h)
}

func (a *ObjectArchiver) readEntity(buf *bytebuffer.ByteBuffer, bind func(meta.EntityHandle) error) error {
	if a.entities == nil {
		if _, err := ReadUUID(buf); err != nil {
			return err
		}
		return bind(meta.InvalidEntity)
	}
	return a.entities.DecodeEntity(buf, bind)
}

func (a *ObjectArchiver) readObjectProperty(buf *bytebuffer.ByteBuffer, obj meta.Object, p *meta.Property) error {
	existing, err := p.Get(obj)
	if err != nil {
		return err
	}
	var reuse meta.Object
	if p.Ownership() == meta.Owned {
		reuse = existing
	}
	child, present, err := a.decodeNested(buf, p.Element(), reuse)
	if err != nil {
		return err
	}
	if present && child == nil {
		// skipped frame, keep the current value
		return nil
	}
	if child != nil && child == existing {
		return nil
	}
	if err = p.Set(obj, child); err != nil {
		return err
	}
	if existing != nil && p.Ownership() == meta.Owned {
		a.destroy(existing)
	}
	return nil
}

// readAsset resolves a serialized asset UUID through the asset table. Unset
// or unresolved references fall back to the default instance of the class.
func (a *ObjectArchiver) readAsset(buf *bytebuffer.ByteBuffer, elem meta.Element) (any, error) {
	id, err := ReadUUID(buf)
	if err != nil {
		return nil, err
	}
	class, ok := a.registry.ElementClass(elem)
	if !ok {
		return nil, fmt.Errorf("%w: %s", meta.ErrUnresolvedClass, elem.ClassName)
	}
	if id != uuid.Nil {
		found, err := a.assets.Resolve(class, id)
		if err == nil {
			return found, nil
		}
		a.log.Warn("asset reference unresolved, using default",
			log.String("class", class.Name()),
			log.String("asset", id.String()),
			log.Err(fmt.Errorf("%w: %w", ErrAssetUnresolved, err)))
	}
	if d := a.assets.Default(class); d != nil {
		return d, nil
	}
	return nil, nil
}

// setAsset stores v through set, falling back to the default instance when
// the resolved asset does not fit the property.
func (a *ObjectArchiver) setAsset(elem meta.Element, v any, set func(any) error) error {
	err := set(v)
	if err == nil || v == nil {
		return err
	}
	class, ok := a.registry.ElementClass(elem)
	if !ok {
		return err
	}
	d := a.assets.Default(class)
	if d == nil || any(d) == v {
		return err
	}
	a.log.Warn("asset reference has the wrong type, using default",
		log.String("class", class.Name()), log.Err(err))
	return set(d)
}

func (a *ObjectArchiver) writeArray(buf *bytebuffer.ByteBuffer, obj meta.Object, p *meta.Property) error {
	n, err := p.Len(obj)
	if err != nil {
		return err
	}
	elem := p.Element()
	buf.WriteInt32(int32(elem.Category))
	buf.WriteUint32(uint32(n))
	for i := 0; i < n; i++ {
		v, err := p.Index(obj, i)
		if err != nil {
			return err
		}
		if err = a.writeValue(buf, elem.Category, v); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

func (a *ObjectArchiver) readArray(buf *bytebuffer.ByteBuffer, obj meta.Object, p *meta.Property) error {
	raw, err := buf.ReadInt32()
	if err != nil {
		return err
	}
	count, err := buf.ReadUint32()
	if err != nil {
		return err
	}
	elem := p.Element()
	if meta.Category(raw) != elem.Category {
		a.log.Warn("skipping array with mismatched element category",
			log.String("property", p.Name()),
			log.Stringer("serialized", meta.Category(raw)),
			log.Stringer("live", elem.Category))
		return nil
	}
	if int64(count) > int64(buf.Remaining()) {
		return fmt.Errorf("%w: array declares %d elements", bytebuffer.ErrCorruptData, count)
	}
	if fixed := p.FixedLen(); fixed > 0 && int(count) != fixed {
		return fmt.Errorf("%w: capacity %d, serialized %d", ErrCapacityMismatch, fixed, count)
	}

	// decode everything before touching obj; entity references bound after
	// the commit go straight to the property
	vals := make([]any, count)
	committed := false
	for i := range vals {
		idx := i
		if elem.Category == meta.CategoryEntity {
			vals[idx] = meta.InvalidEntity
		}
		set := func(v any) error {
			if committed {
				return p.SetIndex(obj, idx, v)
			}
			vals[idx] = v
			return nil
		}
		if err = a.readSlot(buf, elem, set); err != nil {
			a.discard(p, vals)
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	committed = true
	return a.storeArray(obj, p, vals)
}

func (a *ObjectArchiver) writeMap(buf *bytebuffer.ByteBuffer, obj meta.Object, p *meta.Property) error {
	keys, err := p.Keys(obj)
	if err != nil {
		return err
	}
	elem := p.Element()
	buf.WriteInt32(int32(p.KeyCategory()))
	buf.WriteInt32(int32(elem.Category))
	buf.WriteUint32(uint32(len(keys)))
	for _, k := range keys {
		if err = writePlain(buf, p.KeyCategory(), k); err != nil {
			return fmt.Errorf("key %v: %w", k, err)
		}
		v, _, err := p.Lookup(obj, k)
		if err != nil {
			return err
		}
		if err = a.writeValue(buf, elem.Category, v); err != nil {
			return fmt.Errorf("value of %v: %w", k, err)
		}
	}
	return nil
}

func (a *ObjectArchiver) readMap(buf *bytebuffer.ByteBuffer, obj meta.Object, p *meta.Property) error {
	rawKey, err := buf.ReadInt32()
	if err != nil {
		return err
	}
	rawVal, err := buf.ReadInt32()
	if err != nil {
		return err
	}
	count, err := buf.ReadUint32()
	if err != nil {
		return err
	}
	elem := p.Element()
	if meta.Category(rawKey) != p.KeyCategory() || meta.Category(rawVal) != elem.Category {
		a.log.Warn("skipping map with mismatched key or value category",
			log.String("property", p.Name()),
			log.Stringer("key", meta.Category(rawKey)),
			log.Stringer("value", meta.Category(rawVal)))
		return nil
	}
	if int64(count)*2 > int64(buf.Remaining()) {
		return fmt.Errorf("%w: map declares %d pairs", bytebuffer.ErrCorruptData, count)
	}
	keys := make([]any, 0, count)
	vals := make([]any, 0, count)
	committed := false
	for i := uint32(0); i < count; i++ {
		k, err := readPlain(buf, p.KeyCategory())
		if err != nil {
			a.discard(p, vals)
			return err
		}
		slot := len(vals)
		keys = append(keys, k)
		if elem.Category == meta.CategoryEntity {
			vals = append(vals, meta.InvalidEntity)
		} else {
			vals = append(vals, nil)
		}
		set := func(v any) error {
			if committed {
				return p.SetKey(obj, k, v)
			}
			vals[slot] = v
			return nil
		}
		if err = a.readSlot(buf, elem, set); err != nil {
			a.discard(p, vals)
			return fmt.Errorf("value of %v: %w", k, err)
		}
	}
	committed = true
	return a.storeMap(obj, p, keys, vals)
}

// destroy tears obj down and forgets the overrides of everything destroyed.
func (a *ObjectArchiver) destroy(obj meta.Object) {
	a.registry.Destroy(obj, a.overrides.Clear)
}

// discard destroys freshly built elements of an owned object container
// that never made it into the property.
func (a *ObjectArchiver) discard(p *meta.Property, vals []any) {
	if p.Element().Category != meta.CategoryObject || p.Ownership() != meta.Owned {
		return
	}
	for _, v := range vals {
		a.destroy(v)
	}
}

// ownedElements returns the object elements p owns in obj, or nil when p
// holds values or references.
func (a *ObjectArchiver) ownedElements(obj meta.Object, p *meta.Property) []any {
	if p.Element().Category != meta.CategoryObject || p.Ownership() != meta.Owned {
		return nil
	}
	var out []any
	switch p.Category() {
	case meta.CategoryArray:
		n, _ := p.Len(obj)
		for i := 0; i < n; i++ {
			if v, err := p.Index(obj, i); err == nil && !meta.IsNil(v) {
				out = append(out, v)
			}
		}
	case meta.CategoryMap:
		keys, _ := p.Keys(obj)
		for _, k := range keys {
			if v, _, err := p.Lookup(obj, k); err == nil && !meta.IsNil(v) {
				out = append(out, v)
			}
		}
	}
	return out
}

// retire destroys the old owned elements no longer held after a replace.
func (a *ObjectArchiver) retire(old, now []any) {
	if len(old) == 0 {
		return
	}
	kept := make(map[any]struct{}, len(now))
	for _, v := range now {
		if !meta.IsNil(v) {
			kept[v] = struct{}{}
		}
	}
	for _, v := range old {
		if _, ok := kept[v]; !ok {
			a.destroy(v)
		}
	}
}

// storeArray replaces the elements of p with vals.
func (a *ObjectArchiver) storeArray(obj meta.Object, p *meta.Property, vals []any) error {
	old := a.ownedElements(obj, p)
	if err := p.Resize(obj, len(vals)); err != nil {
		return err
	}
	elem := p.Element()
	for i, v := range vals {
		idx := i
		set := func(v any) error { return p.SetIndex(obj, idx, v) }
		if elem.Category == meta.CategoryAsset {
			if err := a.setAsset(elem, v, set); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			continue
		}
		if err := set(v); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	a.retire(old, vals)
	return nil
}

// storeMap replaces the entries of p with keys[i] → vals[i].
func (a *ObjectArchiver) storeMap(obj meta.Object, p *meta.Property, keys, vals []any) error {
	old := a.ownedElements(obj, p)
	if err := p.ClearMap(obj); err != nil {
		return err
	}
	elem := p.Element()
	for i, k := range keys {
		set := func(v any) error { return p.SetKey(obj, k, v) }
		if elem.Category == meta.CategoryAsset {
			if err := a.setAsset(elem, vals[i], set); err != nil {
				return fmt.Errorf("value of %v: %w", k, err)
			}
			continue
		}
		if err := set(vals[i]); err != nil {
			return fmt.Errorf("value of %v: %w", k, err)
		}
	}
	a.retire(old, vals)
	return nil
}

// readSlot decodes one container value and stores it with set.
func (a *ObjectArchiver) readSlot(buf *bytebuffer.ByteBuffer, elem meta.Element, set func(any) error) error {
	switch elem.Category {
	case meta.CategoryEntity:
		return a.readEntity(buf, func(h meta.EntityHandle) error { return set(h) })
	case meta.CategoryAsset:
		v, err := a.readAsset(buf, elem)
		if err != nil {
			return err
		}
		return a.setAsset(elem, v, set)
	default:
		v, err := a.readValue(buf, elem)
		if err != nil {
			return err
		}
		return set(v)
	}
}

package archive

import (
	"errors"
	"fmt"

	"github.com/zeusync/metacore/internal/core/asset"
	"github.com/zeusync/metacore/internal/core/meta"
	"github.com/zeusync/metacore/internal/core/observability/log"
	"github.com/zeusync/metacore/pkg/bytebuffer"
)

// FormatVersion is written into every class header. It is reserved and not
// interpreted on read.
const FormatVersion uint32 = 0

// EntityCodec encodes entity handle properties. The world package provides
// one bound to a world; without it entity references are written as unset.
type EntityCodec interface {
	EncodeEntity(buf *bytebuffer.ByteBuffer, h meta.EntityHandle) error
	// DecodeEntity reads a reference written by EncodeEntity. bind receives
	// the resolved handle and may be called after DecodeEntity returns.
	DecodeEntity(buf *bytebuffer.ByteBuffer, bind func(meta.EntityHandle) error) error
}

type Option func(*ObjectArchiver)

func WithLogger(l log.Log) Option {
	return func(a *ObjectArchiver) { a.log = l }
}

func WithOverrides(t *meta.OverrideTable) Option {
	return func(a *ObjectArchiver) { a.overrides = t }
}

func WithEntityCodec(c EntityCodec) Option {
	return func(a *ObjectArchiver) { a.entities = c }
}

// ObjectArchiver serializes reflected objects, merges them under a policy
// and tracks per-instance property overrides.
type ObjectArchiver struct {
	registry  *meta.Registry
	assets    *asset.Table
	overrides *meta.OverrideTable
	entities  EntityCodec
	log       log.Log
}

func NewObjectArchiver(registry *meta.Registry, assets *asset.Table, opts ...Option) *ObjectArchiver {
	a := &ObjectArchiver{
		registry: registry,
		assets:   assets,
		log:      log.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.assets == nil {
		a.assets = asset.NewTable(registry)
	}
	if a.overrides == nil {
		a.overrides = meta.NewOverrideTable()
	}
	return a
}

// WithEntities returns an archiver sharing a's registry, asset table and
// overrides that encodes entity references through c.
func (a *ObjectArchiver) WithEntities(c EntityCodec) *ObjectArchiver {
	cp := *a
	cp.entities = c
	return &cp
}

func (a *ObjectArchiver) Registry() *meta.Registry       { return a.registry }
func (a *ObjectArchiver) Assets() *asset.Table           { return a.assets }
func (a *ObjectArchiver) Overrides() *meta.OverrideTable { return a.overrides }
func (a *ObjectArchiver) Logger() log.Log                { return a.log }

// Serialize encodes obj into a fresh byte slice.
func (a *ObjectArchiver) Serialize(obj meta.Object) ([]byte, error) {
	buf := bytebuffer.New()
	if err := a.SerializeTo(buf, obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SerializeTo appends the blob of obj to buf.
func (a *ObjectArchiver) SerializeTo(buf *bytebuffer.ByteBuffer, obj meta.Object) error {
	class, err := a.registry.ClassOf(obj)
	if err != nil {
		return err
	}
	writeClassHeader(buf, class)
	return a.writeBody(buf, class, obj)
}

// Deserialize decodes a blob produced by Serialize into a new object.
func (a *ObjectArchiver) Deserialize(data []byte) (meta.Object, error) {
	return a.DeserializeFrom(bytebuffer.FromBytes(data))
}

// DeserializeFrom decodes the next blob of buf into a new object. An unknown
// class fails with ErrClassNotFound.
func (a *ObjectArchiver) DeserializeFrom(buf *bytebuffer.ByteBuffer) (meta.Object, error) {
	class, err := a.readClassHeader(buf)
	if err != nil {
		return nil, err
	}
	obj := class.Construct()
	if err = a.readBody(buf, class, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// DeserializeInto decodes the next blob of buf into obj, which must be of the
// serialized class. Properties absent from the blob keep their values.
func (a *ObjectArchiver) DeserializeInto(buf *bytebuffer.ByteBuffer, obj meta.Object) error {
	target, err := a.registry.ClassOf(obj)
	if err != nil {
		return err
	}
	class, err := a.readClassHeader(buf)
	if err != nil {
		return err
	}
	if class != target {
		return fmt.Errorf("%w: blob holds %s, target is %s", ErrClassMismatch, class.Name(), target.Name())
	}
	return a.readBody(buf, class, obj)
}

// Clone returns a deep copy of obj, including its override flags.
func (a *ObjectArchiver) Clone(obj meta.Object) (meta.Object, error) {
	scratch := bytebuffer.Acquire()
	defer bytebuffer.Release(scratch)
	if err := a.SerializeTo(scratch, obj); err != nil {
		return nil, err
	}
	return a.DeserializeFrom(scratch)
}

func writeClassHeader(buf *bytebuffer.ByteBuffer, class *meta.Class) {
	buf.WriteString(class.Name())
	buf.WriteUint32(FormatVersion)
}

func (a *ObjectArchiver) readClassHeader(buf *bytebuffer.ByteBuffer) (*meta.Class, error) {
	name, err := buf.ReadString()
	if err != nil {
		return nil, err
	}
	if _, err = buf.ReadUint32(); err != nil {
		return nil, err
	}
	class, ok := a.registry.Class(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}
	return class, nil
}

func serializable(class *meta.Class) []*meta.Property {
	props := class.Properties()
	out := make([]*meta.Property, 0, len(props))
	for _, p := range props {
		if !p.Transient() {
			out = append(out, p)
		}
	}
	return out
}

func (a *ObjectArchiver) writeBody(buf *bytebuffer.ByteBuffer, class *meta.Class, obj meta.Object) error {
	props := serializable(class)
	buf.WriteUint32(uint32(len(props)))
	for _, p := range props {
		if err := a.SerializeProperty(buf, obj, p); err != nil {
			return err
		}
	}
	a.WriteOverrides(buf, class, obj)
	return nil
}

// WriteOverrides writes the override section of obj:
// Count:u32 Name:String*.
func (a *ObjectArchiver) WriteOverrides(buf *bytebuffer.ByteBuffer, class *meta.Class, obj meta.Object) {
	var names []string
	if set := a.overrides.Get(obj); set != nil && set.Class() == class {
		names = set.Names()
	}
	buf.WriteUint32(uint32(len(names)))
	for _, name := range names {
		buf.WriteString(name)
	}
}

// ReadOverrides replaces the override flags of obj with the section written
// by WriteOverrides. Names unknown to class are dropped.
func (a *ObjectArchiver) ReadOverrides(buf *bytebuffer.ByteBuffer, class *meta.Class, obj meta.Object) error {
	count, err := buf.ReadUint32()
	if err != nil {
		return err
	}
	if int64(count)*4 > int64(buf.Remaining()) {
		return fmt.Errorf("%w: %s declares %d overrides", bytebuffer.ErrCorruptData, class.Name(), count)
	}
	names := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := buf.ReadString()
		if err != nil {
			return err
		}
		names = append(names, name)
	}
	for _, name := range a.overrides.Replace(obj, class, names) {
		a.log.Debug("dropping override of unknown property",
			log.String("class", class.Name()), log.String("property", name))
	}
	return nil
}

// minPropertySize is the smallest encoded property frame: an empty name, the
// category and the payload size.
const minPropertySize = 12

func (a *ObjectArchiver) readBody(buf *bytebuffer.ByteBuffer, class *meta.Class, obj meta.Object) error {
	count, err := buf.ReadUint32()
	if err != nil {
		return err
	}
	if int64(count)*minPropertySize > int64(buf.Remaining()) {
		return fmt.Errorf("%w: %s declares %d properties", bytebuffer.ErrCorruptData, class.Name(), count)
	}
	for i := uint32(0); i < count; i++ {
		if err = a.DeserializeProperty(buf, class, obj); err != nil {
			return err
		}
	}
	return a.ReadOverrides(buf, class, obj)
}

// decodeNested reads a framed nested object: Present:u8 [Size:u32 ObjectBlob].
// present is false for an empty slot. A present frame whose class cannot be
// used is skipped and yields a nil object. When reuse is of the serialized
// class it is decoded in place and returned.
func (a *ObjectArchiver) decodeNested(buf *bytebuffer.ByteBuffer, elem meta.Element, reuse meta.Object) (obj meta.Object, present bool, err error) {
	if present, err = buf.ReadBool(); err != nil || !present {
		return nil, false, err
	}
	size, err := buf.ReadUint32()
	if err != nil {
		return nil, true, err
	}
	sub, err := buf.Slice(int(size))
	if err != nil {
		return nil, true, err
	}

	class, err := a.readClassHeader(sub)
	if err != nil {
		if errors.Is(err, ErrClassNotFound) {
			a.log.Warn("skipping nested object of unknown class", log.Err(err))
			return nil, true, nil
		}
		return nil, true, err
	}
	if want, ok := a.registry.ElementClass(elem); ok && !class.IsA(want) {
		a.log.Warn("skipping nested object of unexpected class",
			log.String("class", class.Name()), log.String("expected", want.Name()))
		return nil, true, nil
	}

	obj = reuse
	if obj == nil {
		obj = class.Construct()
	} else if rc, err := a.registry.ClassOf(reuse); err != nil || rc != class {
		obj = class.Construct()
	}
	if err = a.readBody(sub, class, obj); err != nil {
		return nil, true, err
	}
	return obj, true, nil
}

func (a *ObjectArchiver) encodeNested(buf *bytebuffer.ByteBuffer, obj meta.Object) error {
	if obj == nil {
		buf.WriteBool(false)
		return nil
	}
	scratch := bytebuffer.Acquire()
	defer bytebuffer.Release(scratch)
	if err := a.SerializeTo(scratch, obj); err != nil {
		return err
	}
	buf.WriteBool(true)
	buf.WriteUint32(uint32(scratch.Len()))
	buf.Append(scratch)
	return nil
}

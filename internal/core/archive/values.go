package archive

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/zeusync/metacore/internal/core/meta"
	"github.com/zeusync/metacore/pkg/bytebuffer"
)

func readF32s(buf *bytebuffer.ByteBuffer, dst ...*float32) error {
	for _, d := range dst {
		v, err := buf.ReadFloat32()
		if err != nil {
			return err
		}
		*d = v
	}
	return nil
}

func writeF32s(buf *bytebuffer.ByteBuffer, src ...float32) {
	for _, v := range src {
		buf.WriteFloat32(v)
	}
}

// WriteTransform writes position, rotation and scale as ten float32 values.
func WriteTransform(buf *bytebuffer.ByteBuffer, t meta.Transform) {
	writeF32s(buf,
		t.Position.X, t.Position.Y, t.Position.Z,
		t.Rotation.X, t.Rotation.Y, t.Rotation.Z, t.Rotation.W,
		t.Scale.X, t.Scale.Y, t.Scale.Z)
}

func ReadTransform(buf *bytebuffer.ByteBuffer) (meta.Transform, error) {
	var t meta.Transform
	err := readF32s(buf,
		&t.Position.X, &t.Position.Y, &t.Position.Z,
		&t.Rotation.X, &t.Rotation.Y, &t.Rotation.Z, &t.Rotation.W,
		&t.Scale.X, &t.Scale.Y, &t.Scale.Z)
	return t, err
}

// WriteUUID writes the canonical string form of id.
func WriteUUID(buf *bytebuffer.ByteBuffer, id uuid.UUID) {
	buf.WriteString(id.String())
}

func ReadUUID(buf *bytebuffer.ByteBuffer) (uuid.UUID, error) {
	s, err := buf.ReadString()
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: uuid %q", bytebuffer.ErrCorruptData, s)
	}
	return id, nil
}

// writePlain encodes values whose layout depends on the category alone.
func writePlain(buf *bytebuffer.ByteBuffer, c meta.Category, v any) error {
	ok := true
	switch c {
	case meta.CategoryBool:
		var x bool
		if x, ok = v.(bool); ok {
			buf.WriteBool(x)
		}
	case meta.CategoryInt8:
		var x int8
		if x, ok = v.(int8); ok {
			buf.WriteInt8(x)
		}
	case meta.CategoryInt16:
		var x int16
		if x, ok = v.(int16); ok {
			buf.WriteInt16(x)
		}
	case meta.CategoryInt32:
		var x int32
		if x, ok = v.(int32); ok {
			buf.WriteInt32(x)
		}
	case meta.CategoryInt64:
		var x int64
		if x, ok = v.(int64); ok {
			buf.WriteInt64(x)
		}
	case meta.CategoryUint8:
		var x uint8
		if x, ok = v.(uint8); ok {
			buf.WriteUint8(x)
		}
	case meta.CategoryUint16:
		var x uint16
		if x, ok = v.(uint16); ok {
			buf.WriteUint16(x)
		}
	case meta.CategoryUint32:
		var x uint32
		if x, ok = v.(uint32); ok {
			buf.WriteUint32(x)
		}
	case meta.CategoryUint64:
		var x uint64
		if x, ok = v.(uint64); ok {
			buf.WriteUint64(x)
		}
	case meta.CategoryFloat32:
		var x float32
		if x, ok = v.(float32); ok {
			buf.WriteFloat32(x)
		}
	case meta.CategoryFloat64:
		var x float64
		if x, ok = v.(float64); ok {
			buf.WriteFloat64(x)
		}
	case meta.CategoryString:
		var x string
		if x, ok = v.(string); ok {
			buf.WriteString(x)
		}
	case meta.CategoryVec2:
		var x meta.Vec2
		if x, ok = v.(meta.Vec2); ok {
			writeF32s(buf, x.X, x.Y)
		}
	case meta.CategoryVec3:
		var x meta.Vec3
		if x, ok = v.(meta.Vec3); ok {
			writeF32s(buf, x.X, x.Y, x.Z)
		}
	case meta.CategoryVec4:
		var x meta.Vec4
		if x, ok = v.(meta.Vec4); ok {
			writeF32s(buf, x.X, x.Y, x.Z, x.W)
		}
	case meta.CategoryInt3:
		var x meta.Int3
		if x, ok = v.(meta.Int3); ok {
			buf.WriteInt32(x.X)
			buf.WriteInt32(x.Y)
			buf.WriteInt32(x.Z)
		}
	case meta.CategoryColor:
		var x meta.Color
		if x, ok = v.(meta.Color); ok {
			writeF32s(buf, x.R, x.G, x.B, x.A)
		}
	case meta.CategoryTransform:
		var x meta.Transform
		if x, ok = v.(meta.Transform); ok {
			WriteTransform(buf, x)
		}
	case meta.CategoryUUID:
		var x uuid.UUID
		if x, ok = v.(uuid.UUID); ok {
			WriteUUID(buf, x)
		}
	case meta.CategoryEnum:
		var x int64
		if x, ok = v.(int64); ok {
			buf.WriteInt64(x)
		}
	default:
		return fmt.Errorf("%w: %s is not a plain category", meta.ErrTypeMismatch, c)
	}
	if !ok {
		return fmt.Errorf("%w: %s cannot hold %T", meta.ErrTypeMismatch, c, v)
	}
	return nil
}

func readPlain(buf *bytebuffer.ByteBuffer, c meta.Category) (any, error) {
	switch c {
	case meta.CategoryBool:
		return buf.ReadBool()
	case meta.CategoryInt8:
		return buf.ReadInt8()
	case meta.CategoryInt16:
		return buf.ReadInt16()
	case meta.CategoryInt32:
		return buf.ReadInt32()
	case meta.CategoryInt64, meta.CategoryEnum:
		return buf.ReadInt64()
	case meta.CategoryUint8:
		return buf.ReadUint8()
	case meta.CategoryUint16:
		return buf.ReadUint16()
	case meta.CategoryUint32:
		return buf.ReadUint32()
	case meta.CategoryUint64:
		return buf.ReadUint64()
	case meta.CategoryFloat32:
		return buf.ReadFloat32()
	case meta.CategoryFloat64:
		return buf.ReadFloat64()
	case meta.CategoryString:
		return buf.ReadString()
	case meta.CategoryVec2:
		var v meta.Vec2
		err := readF32s(buf, &v.X, &v.Y)
		return v, err
	case meta.CategoryVec3:
		var v meta.Vec3
		err := readF32s(buf, &v.X, &v.Y, &v.Z)
		return v, err
	case meta.CategoryVec4:
		var v meta.Vec4
		err := readF32s(buf, &v.X, &v.Y, &v.Z, &v.W)
		return v, err
	case meta.CategoryInt3:
		var (
			v   meta.Int3
			err error
		)
		for _, d := range []*int32{&v.X, &v.Y, &v.Z} {
			if *d, err = buf.ReadInt32(); err != nil {
				return nil, err
			}
		}
		return v, nil
	case meta.CategoryColor:
		var v meta.Color
		err := readF32s(buf, &v.R, &v.G, &v.B, &v.A)
		return v, err
	case meta.CategoryTransform:
		return ReadTransform(buf)
	case meta.CategoryUUID:
		return ReadUUID(buf)
	default:
		return nil, fmt.Errorf("%w: %s is not a plain category", meta.ErrTypeMismatch, c)
	}
}

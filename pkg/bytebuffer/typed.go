package bytebuffer

import (
	"fmt"

	"github.com/zeusync/metacore/pkg/generic"
)

// Value lists the types Write and Read accept.
type Value interface {
	bool | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64 | string
}

// Write appends v using the encoding of its type.
func Write[T Value](b *ByteBuffer, v T) {
	switch x := any(v).(type) {
	case bool:
		b.WriteBool(x)
	case int8:
		b.WriteInt8(x)
	case int16:
		b.WriteInt16(x)
	case int32:
		b.WriteInt32(x)
	case int64:
		b.WriteInt64(x)
	case uint8:
		b.WriteUint8(x)
	case uint16:
		b.WriteUint16(x)
	case uint32:
		b.WriteUint32(x)
	case uint64:
		b.WriteUint64(x)
	case float32:
		b.WriteFloat32(x)
	case float64:
		b.WriteFloat64(x)
	case string:
		b.WriteString(x)
	}
}

// Read consumes a value of type T.
func Read[T Value](b *ByteBuffer) (T, error) {
	var zero T
	var (
		v   any
		err error
	)
	switch any(zero).(type) {
	case bool:
		v, err = b.ReadBool()
	case int8:
		v, err = b.ReadInt8()
	case int16:
		v, err = b.ReadInt16()
	case int32:
		v, err = b.ReadInt32()
	case int64:
		v, err = b.ReadInt64()
	case uint8:
		v, err = b.ReadUint8()
	case uint16:
		v, err = b.ReadUint16()
	case uint32:
		v, err = b.ReadUint32()
	case uint64:
		v, err = b.ReadUint64()
	case float32:
		v, err = b.ReadFloat32()
	case float64:
		v, err = b.ReadFloat64()
	case string:
		v, err = b.ReadString()
	default:
		return zero, fmt.Errorf("unsupported type %T", zero)
	}
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// maxPooledCapacity keeps very large scratch buffers out of the pool.
const maxPooledCapacity = 64 * 1024

var scratch = generic.NewPool(func() *ByteBuffer { return New() },
	generic.WithReset((*ByteBuffer).Reset),
	generic.WithDiscard(func(b *ByteBuffer) bool { return len(b.data) > maxPooledCapacity }),
)

// Acquire returns an empty scratch buffer. Return it with Release.
func Acquire() *ByteBuffer { return scratch.Get() }

// Release hands b back to the scratch pool. b must not be used afterwards.
func Release(b *ByteBuffer) {
	if b != nil {
		scratch.Put(b)
	}
}

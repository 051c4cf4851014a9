package bytebuffer

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadUint32AndString(t *testing.T) {
	b := New()
	Write[uint32](b, 42)
	Write(b, "hello")

	n, err := Read[uint32](b)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), n)

	s, err := Read[string](b)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	_, err = Read[uint32](b)
	assert.ErrorIs(t, err, ErrBufferUnderrun)
}

func TestBoundaryValues(t *testing.T) {
	b := New(1)
	b.WriteInt64(math.MinInt64)
	b.WriteInt64(math.MaxInt64)
	b.WriteUint64(math.MaxUint64)
	b.WriteInt8(math.MinInt8)
	b.WriteFloat32(float32(math.Inf(-1)))
	b.WriteFloat64(math.SmallestNonzeroFloat64)
	b.WriteString("")
	b.WriteBool(true)

	v1, err := b.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), v1)
	v2, _ := b.ReadInt64()
	assert.Equal(t, int64(math.MaxInt64), v2)
	v3, _ := b.ReadUint64()
	assert.Equal(t, uint64(math.MaxUint64), v3)
	v4, _ := b.ReadInt8()
	assert.Equal(t, int8(math.MinInt8), v4)
	v5, _ := b.ReadFloat32()
	assert.True(t, math.IsInf(float64(v5), -1))
	v6, _ := b.ReadFloat64()
	assert.Equal(t, math.SmallestNonzeroFloat64, v6)
	s, err := b.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "", s)
	ok, err := b.ReadBool()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, b.Remaining())
}

func TestGrowthKeepsData(t *testing.T) {
	b := New(2)
	for i := 0; i < 1000; i++ {
		b.WriteUint32(uint32(i))
	}
	assert.Equal(t, 4000, b.Len())
	for i := 0; i < 1000; i++ {
		v, err := b.ReadUint32()
		require.NoError(t, err)
		require.Equal(t, uint32(i), v)
	}
}

func TestStringLengthPastEnd(t *testing.T) {
	b := New()
	b.WriteUint32(1 << 20)
	b.WriteRaw([]byte("abc"))

	_, err := b.ReadString()
	assert.ErrorIs(t, err, ErrBufferUnderrun)
	assert.Equal(t, 0, b.ReadPosition())
}

func TestAdvanceAndSlice(t *testing.T) {
	b := New()
	b.WriteUint32(7)
	b.WriteUint16(9)
	b.WriteUint8(3)

	require.NoError(t, b.AdvanceReadPosition(4))
	sub, err := b.Slice(2)
	require.NoError(t, err)
	v, err := sub.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(9), v)
	_, err = sub.ReadUint8()
	assert.ErrorIs(t, err, ErrBufferUnderrun)

	last, err := b.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(3), last)
	assert.ErrorIs(t, b.AdvanceReadPosition(1), ErrBufferUnderrun)
}

func TestAppendCopiesUnread(t *testing.T) {
	a := New()
	a.WriteUint8(1)
	other := New()
	other.WriteUint8(2)
	other.WriteUint8(3)
	_, _ = other.ReadUint8()

	a.Append(other)
	assert.Equal(t, []byte{1, 3}, a.Bytes())
	assert.Equal(t, 1, other.ReadPosition())
}

func TestCorruptBool(t *testing.T) {
	b := FromBytes([]byte{7})
	_, err := b.ReadBool()
	assert.ErrorIs(t, err, ErrCorruptData)
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.bin")
	b := New()
	b.WriteString("payload")
	b.WriteFloat64(1.5)
	require.NoError(t, b.WriteToFile(path))

	in := New()
	require.NoError(t, in.ReadFromFile(path))
	assert.Equal(t, StatusReadyToRead, in.Status())
	s, err := in.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "payload", s)
	f, err := in.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)
}

func TestReadFromMissingFileInvalidates(t *testing.T) {
	b := New()
	err := b.ReadFromFile(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrFileIO)
	assert.Equal(t, StatusInvalid, b.Status())

	_, err = b.ReadUint8()
	assert.ErrorIs(t, err, ErrInvalidBuffer)
}

func TestAcquireReturnsEmptyBuffer(t *testing.T) {
	b := Acquire()
	b.WriteString("scratch")
	Release(b)

	again := Acquire()
	defer Release(again)
	assert.Equal(t, 0, again.Len())
	assert.Equal(t, StatusReadyToWrite, again.Status())
}

// Package bytebuffer provides a growable byte region with independent read and
// write cursors. Every fixed-width value is little-endian; strings are a u32
// length followed by raw bytes. The buffer carries no framing of its own: the
// reader must consume values in exactly the order and types they were written.
package bytebuffer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

var (
	// ErrBufferUnderrun is returned when a read would pass the written data.
	ErrBufferUnderrun = errors.New("buffer underrun")
	// ErrCorruptData is returned when a length prefix is not plausible.
	ErrCorruptData = errors.New("corrupt data")
	// ErrFileIO is returned when a file round trip fails.
	ErrFileIO = errors.New("file io failure")
	// ErrInvalidBuffer is returned by reads on a buffer whose load failed.
	ErrInvalidBuffer = errors.New("buffer is invalid")
)

// Status describes what the buffer is ready for.
type Status uint8

const (
	StatusReadyToWrite Status = iota
	StatusReadyToRead
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusReadyToWrite:
		return "ReadyToWrite"
	case StatusReadyToRead:
		return "ReadyToRead"
	case StatusInvalid:
		return "Invalid"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

const defaultCapacity = 256

// ByteBuffer is not safe for concurrent use.
type ByteBuffer struct {
	data     []byte
	readPos  int
	writePos int
	status   Status
}

// New creates an empty buffer ready for writing.
func New(capacity ...int) *ByteBuffer {
	c := defaultCapacity
	if len(capacity) > 0 && capacity[0] > 0 {
		c = capacity[0]
	}
	return &ByteBuffer{data: make([]byte, c), status: StatusReadyToWrite}
}

// FromBytes wraps a copy of b, ready for reading from the start.
func FromBytes(b []byte) *ByteBuffer {
	data := make([]byte, len(b))
	copy(data, b)
	return &ByteBuffer{data: data, writePos: len(b), status: StatusReadyToRead}
}

func (b *ByteBuffer) Status() Status     { return b.status }
func (b *ByteBuffer) ReadPosition() int  { return b.readPos }
func (b *ByteBuffer) WritePosition() int { return b.writePos }

// Len returns the number of written bytes.
func (b *ByteBuffer) Len() int { return b.writePos }

// Remaining returns the number of written bytes not yet read.
func (b *ByteBuffer) Remaining() int { return b.writePos - b.readPos }

// Bytes returns the written region. The slice aliases the buffer until the
// next write.
func (b *ByteBuffer) Bytes() []byte { return b.data[:b.writePos] }

// Unread returns the written bytes after the read cursor.
func (b *ByteBuffer) Unread() []byte { return b.data[b.readPos:b.writePos] }

// Reset empties the buffer and keeps its capacity.
func (b *ByteBuffer) Reset() {
	b.readPos = 0
	b.writePos = 0
	b.status = StatusReadyToWrite
}

// ResetRead moves the read cursor back to the start.
func (b *ByteBuffer) ResetRead() { b.readPos = 0 }

// AdvanceReadPosition skips n bytes.
func (b *ByteBuffer) AdvanceReadPosition(n int) error {
	if err := b.require(n); err != nil {
		return err
	}
	b.readPos += n
	return nil
}

// Append copies the unread bytes of other to the end of b. The read cursor
// of other is not moved.
func (b *ByteBuffer) Append(other *ByteBuffer) {
	b.WriteRaw(other.Unread())
}

// Slice returns a buffer over the next n unread bytes and advances past them.
// Reads from the returned buffer can never cross into the bytes that follow.
func (b *ByteBuffer) Slice(n int) (*ByteBuffer, error) {
	if err := b.require(n); err != nil {
		return nil, err
	}
	sub := &ByteBuffer{
		data:     b.data[b.readPos : b.readPos+n : b.readPos+n],
		writePos: n,
		status:   StatusReadyToRead,
	}
	b.readPos += n
	return sub, nil
}

// grow makes room for n more bytes, doubling the capacity as needed.
func (b *ByteBuffer) grow(n int) {
	need := b.writePos + n
	if need <= len(b.data) {
		return
	}
	c := len(b.data)
	if c == 0 {
		c = defaultCapacity
	}
	for c < need {
		c *= 2
	}
	data := make([]byte, c)
	copy(data, b.data[:b.writePos])
	b.data = data
}

func (b *ByteBuffer) require(n int) error {
	if b.status == StatusInvalid {
		return ErrInvalidBuffer
	}
	if n < 0 {
		return fmt.Errorf("%w: negative length %d", ErrCorruptData, n)
	}
	if b.Remaining() < n {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrBufferUnderrun, n, b.readPos, b.Remaining())
	}
	return nil
}

// WriteRaw appends p without a length prefix.
func (b *ByteBuffer) WriteRaw(p []byte) {
	b.grow(len(p))
	copy(b.data[b.writePos:], p)
	b.writePos += len(p)
}

// ReadRaw returns a copy of the next n bytes.
func (b *ByteBuffer) ReadRaw(n int) ([]byte, error) {
	if err := b.require(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b.data[b.readPos:b.readPos+n])
	b.readPos += n
	return out, nil
}

func (b *ByteBuffer) WriteBool(v bool) {
	if v {
		b.WriteUint8(1)
		return
	}
	b.WriteUint8(0)
}

func (b *ByteBuffer) WriteUint8(v uint8) {
	b.grow(1)
	b.data[b.writePos] = v
	b.writePos++
}

func (b *ByteBuffer) WriteUint16(v uint16) {
	b.grow(2)
	binary.LittleEndian.PutUint16(b.data[b.writePos:], v)
	b.writePos += 2
}

func (b *ByteBuffer) WriteUint32(v uint32) {
	b.grow(4)
	binary.LittleEndian.PutUint32(b.data[b.writePos:], v)
	b.writePos += 4
}

func (b *ByteBuffer) WriteUint64(v uint64) {
	b.grow(8)
	binary.LittleEndian.PutUint64(b.data[b.writePos:], v)
	b.writePos += 8
}

func (b *ByteBuffer) WriteInt8(v int8)       { b.WriteUint8(uint8(v)) }
func (b *ByteBuffer) WriteInt16(v int16)     { b.WriteUint16(uint16(v)) }
func (b *ByteBuffer) WriteInt32(v int32)     { b.WriteUint32(uint32(v)) }
func (b *ByteBuffer) WriteInt64(v int64)     { b.WriteUint64(uint64(v)) }
func (b *ByteBuffer) WriteFloat32(v float32) { b.WriteUint32(math.Float32bits(v)) }
func (b *ByteBuffer) WriteFloat64(v float64) { b.WriteUint64(math.Float64bits(v)) }

// WriteString writes a u32 length followed by the raw bytes of s.
func (b *ByteBuffer) WriteString(s string) {
	b.WriteUint32(uint32(len(s)))
	b.grow(len(s))
	copy(b.data[b.writePos:], s)
	b.writePos += len(s)
}

func (b *ByteBuffer) ReadBool() (bool, error) {
	v, err := b.ReadUint8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: bool byte %d", ErrCorruptData, v)
	}
}

func (b *ByteBuffer) ReadUint8() (uint8, error) {
	if err := b.require(1); err != nil {
		return 0, err
	}
	v := b.data[b.readPos]
	b.readPos++
	return v, nil
}

func (b *ByteBuffer) ReadUint16() (uint16, error) {
	if err := b.require(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(b.data[b.readPos:])
	b.readPos += 2
	return v, nil
}

func (b *ByteBuffer) ReadUint32() (uint32, error) {
	if err := b.require(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(b.data[b.readPos:])
	b.readPos += 4
	return v, nil
}

func (b *ByteBuffer) ReadUint64() (uint64, error) {
	if err := b.require(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(b.data[b.readPos:])
	b.readPos += 8
	return v, nil
}

func (b *ByteBuffer) ReadInt8() (int8, error) {
	v, err := b.ReadUint8()
	return int8(v), err
}

func (b *ByteBuffer) ReadInt16() (int16, error) {
	v, err := b.ReadUint16()
	return int16(v), err
}

func (b *ByteBuffer) ReadInt32() (int32, error) {
	v, err := b.ReadUint32()
	return int32(v), err
}

func (b *ByteBuffer) ReadInt64() (int64, error) {
	v, err := b.ReadUint64()
	return int64(v), err
}

func (b *ByteBuffer) ReadFloat32() (float32, error) {
	v, err := b.ReadUint32()
	return math.Float32frombits(v), err
}

func (b *ByteBuffer) ReadFloat64() (float64, error) {
	v, err := b.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadString reads a u32 length and that many bytes. A length larger than
// the remaining data is reported as an underrun before anything is copied.
func (b *ByteBuffer) ReadString() (string, error) {
	n, err := b.ReadUint32()
	if err != nil {
		return "", err
	}
	if err = b.require(int(n)); err != nil {
		b.readPos -= 4
		return "", err
	}
	s := string(b.data[b.readPos : b.readPos+int(n)])
	b.readPos += int(n)
	return s, nil
}

// ReadFromFile replaces the contents of b with the file at path. On failure
// the status becomes StatusInvalid and every later read fails.
func (b *ByteBuffer) ReadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		b.data = nil
		b.readPos, b.writePos = 0, 0
		b.status = StatusInvalid
		return fmt.Errorf("%w: read %s: %v", ErrFileIO, path, err)
	}
	b.data = data
	b.readPos = 0
	b.writePos = len(data)
	b.status = StatusReadyToRead
	return nil
}

// WriteToFile writes the written region of b to path.
func (b *ByteBuffer) WriteToFile(path string) error {
	if b.status == StatusInvalid {
		return ErrInvalidBuffer
	}
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrFileIO, path, err)
	}
	return nil
}

package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// ErrVarIntTooBig is returned when a varint runs past 5 bytes.
var ErrVarIntTooBig = errors.New("codec: varint longer than 5 bytes")

// Buffer reads the scalar wire types of protocol 47 out of a packet payload.
type Buffer struct {
	*bytes.Reader
	data []byte
}

// NewBuffer wraps a packet payload for decoding.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{Reader: bytes.NewReader(data), data: data}
}

// Bytes returns the full underlying payload, regardless of read position.
func (b *Buffer) Bytes() []byte { return b.data }

// Remaining returns all bytes that have not been consumed yet.
func (b *Buffer) Remaining() []byte {
	rest := make([]byte, b.Len())
	_, _ = io.ReadFull(b.Reader, rest)
	return rest
}

// ReadVarInt decodes a signed 32-bit LEB128 varint.
//
// Seven data bits per byte, bit 7 as continuation flag, little-endian group
// order. Negative values occupy the full 5 bytes via two's complement.
func ReadVarInt(r io.Reader) (int32, error) {
	var value uint32
	var position uint
	var buf [1]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		value |= uint32(buf[0]&0x7F) << position
		if buf[0]&0x80 == 0 {
			return int32(value), nil
		}
		position += 7
		if position >= 35 {
			return 0, ErrVarIntTooBig
		}
	}
}

// WriteVarInt encodes v as a LEB128 varint.
func WriteVarInt(w io.Writer, v int32) error {
	var buf [5]byte
	n := PutVarInt(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

// PutVarInt encodes v into buf and returns the number of bytes written.
// buf must have room for 5 bytes.
func PutVarInt(buf []byte, v int32) int {
	value := uint32(v)
	n := 0
	for {
		if value&^uint32(0x7F) == 0 {
			buf[n] = byte(value)
			return n + 1
		}
		buf[n] = byte(value&0x7F | 0x80)
		n++
		value >>= 7
	}
}

// VarIntLen returns the encoded size of v in bytes.
func VarIntLen(v int32) int {
	value := uint32(v)
	switch {
	case value < 1<<7:
		return 1
	case value < 1<<14:
		return 2
	case value < 1<<21:
		return 3
	case value < 1<<28:
		return 4
	default:
		return 5
	}
}

func (b *Buffer) ReadVarInt() (int32, error) { return ReadVarInt(b.Reader) }

// ReadString decodes a varint-length-prefixed UTF-8 string.
func (b *Buffer) ReadString() (string, error) {
	raw, err := b.ReadByteArray()
	return string(raw), err
}

// ReadByteArray decodes a varint-length-prefixed byte blob.
func (b *Buffer) ReadByteArray() ([]byte, error) {
	length, err := b.ReadVarInt()
	if err != nil {
		return nil, err
	}
	if length < 0 || int(length) > b.Len() {
		return nil, fmt.Errorf("codec: byte array length %d exceeds remaining %d", length, b.Len())
	}
	raw := make([]byte, length)
	_, err = io.ReadFull(b.Reader, raw)
	return raw, err
}

// ReadUnsignedShort decodes a big-endian uint16.
func (b *Buffer) ReadUnsignedShort() (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(b.Reader, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

// ReadShort decodes a big-endian int16.
func (b *Buffer) ReadShort() (int16, error) {
	v, err := b.ReadUnsignedShort()
	return int16(v), err
}

// ReadLong decodes a big-endian int64.
func (b *Buffer) ReadLong() (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(b.Reader, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

// ReadBool decodes a single-byte boolean.
func (b *Buffer) ReadBool() (bool, error) {
	v, err := b.Reader.ReadByte()
	return v != 0, err
}

// ReadUUID decodes 16 bytes in network order.
func (b *Buffer) ReadUUID() (uuid.UUID, error) {
	var raw [16]byte
	if _, err := io.ReadFull(b.Reader, raw[:]); err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(raw[:])
}

// Pack helpers build payload fragments for outgoing packets.

// PackVarInt returns v encoded as a varint.
func PackVarInt(v int32) []byte {
	var buf [5]byte
	n := PutVarInt(buf[:], v)
	return append([]byte(nil), buf[:n]...)
}

// PackString returns s with a varint byte-length prefix.
func PackString(s string) []byte {
	return PackByteArray([]byte(s))
}

// PackByteArray returns raw with a varint length prefix.
func PackByteArray(raw []byte) []byte {
	out := make([]byte, 0, VarIntLen(int32(len(raw)))+len(raw))
	var buf [5]byte
	n := PutVarInt(buf[:], int32(len(raw)))
	out = append(out, buf[:n]...)
	return append(out, raw...)
}

// PackUnsignedShort returns v big-endian.
func PackUnsignedShort(v uint16) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return buf[:]
}

// PackLong returns v big-endian.
func PackLong(v int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return buf[:]
}

// PackBool returns v as a single byte.
func PackBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// PackUUID returns the 16 raw bytes of id.
func PackUUID(id uuid.UUID) []byte {
	raw := make([]byte, 16)
	copy(raw, id[:])
	return raw
}

// PackByte returns a single byte fragment.
func PackByte(v byte) []byte { return []byte{v} }

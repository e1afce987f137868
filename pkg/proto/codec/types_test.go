package codec

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarIntRoundTrip(t *testing.T) {
	for _, v := range []int32{
		0, 1, 2, 127, 128, 255, 16383, 16384, 2097151,
		2147483647, -1, -128, -2147483648,
	} {
		var buf bytes.Buffer
		require.NoError(t, WriteVarInt(&buf, v))
		got, err := ReadVarInt(&buf)
		require.NoError(t, err)
		assert.Equal(t, v, got, "value %d", v)
	}
}

func TestVarIntWireFormat(t *testing.T) {
	cases := []struct {
		value int32
		wire  []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{255, []byte{0xff, 0x01}},
		{2147483647, []byte{0xff, 0xff, 0xff, 0xff, 0x07}},
		{-1, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}
	for _, c := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteVarInt(&buf, c.value))
		assert.Equal(t, c.wire, buf.Bytes(), "value %d", c.value)
		assert.Equal(t, len(c.wire), VarIntLen(c.value))
	}
}

func TestVarIntTooLong(t *testing.T) {
	_, err := ReadVarInt(bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}))
	assert.ErrorIs(t, err, ErrVarIntTooBig)
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"", "tester", "mc.hypixel.net", "§aHello §cworld", "ユニコード"} {
		b := NewBuffer(PackString(s))
		got, err := b.ReadString()
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestByteArrayLengthGuard(t *testing.T) {
	// Claims 100 bytes but carries 2.
	payload := append(PackVarInt(100), 0x01, 0x02)
	_, err := NewBuffer(payload).ReadByteArray()
	assert.Error(t, err)
}

func TestScalarRoundTrips(t *testing.T) {
	id := uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5")

	payload := append([]byte{}, PackUnsignedShort(25565)...)
	payload = append(payload, PackLong(-42)...)
	payload = append(payload, PackBool(true)...)
	payload = append(payload, PackUUID(id)...)

	b := NewBuffer(payload)
	port, err := b.ReadUnsignedShort()
	require.NoError(t, err)
	assert.Equal(t, uint16(25565), port)

	l, err := b.ReadLong()
	require.NoError(t, err)
	assert.Equal(t, int64(-42), l)

	ok, err := b.ReadBool()
	require.NoError(t, err)
	assert.True(t, ok)

	gotID, err := b.ReadUUID()
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
}

func TestBufferRemaining(t *testing.T) {
	b := NewBuffer([]byte{1, 2, 3, 4})
	_, err := b.Reader.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3, 4}, b.Remaining())
	assert.Equal(t, []byte{1, 2, 3, 4}, b.Bytes())
}

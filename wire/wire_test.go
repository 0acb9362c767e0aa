package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	w := NewWriter()
	w.U8(7).U64(1<<40 + 3).Fixed([]byte{1, 2, 3, 4}).Varint(300).VarBytes([]byte("hello"))

	r := NewReader(w.Bytes())
	u8, err := r.U8()
	require.NoError(t, err)
	require.Equal(t, uint8(7), u8)

	u64, err := r.U64()
	require.NoError(t, err)
	require.Equal(t, uint64(1<<40+3), u64)

	fixed, err := r.Fixed(4)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, fixed)

	v, err := r.Varint()
	require.NoError(t, err)
	require.Equal(t, uint64(300), v)

	vb, err := r.VarBytes()
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), vb)

	require.True(t, r.Done())
}

func TestShortRead(t *testing.T) {
	r := NewReader([]byte{1, 2})
	_, err := r.U64()
	require.Error(t, err)
}

func TestDoneFalseOnTrailingBytes(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	_, err := r.U8()
	require.NoError(t, err)
	require.False(t, r.Done())
}

package codec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LayerTwo-Labs/bitassetsd/internal/codec"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := codec.NewWriter()
	w.WriteTag(3)
	w.WriteUint64(1 << 40)
	w.WriteBytes([]byte("hello"))
	w.WriteBool(true)
	w.WriteFixed([]byte{1, 2, 3, 4})

	r := codec.NewReader(w.Bytes())
	require.EqualValues(t, 3, r.ReadTag())
	require.EqualValues(t, 1<<40, r.ReadUint64())
	require.Equal(t, []byte("hello"), r.ReadBytes())
	require.True(t, r.ReadBool())
	require.Equal(t, []byte{1, 2, 3, 4}, r.ReadFixed(4))
	require.NoError(t, r.Done())
}

func TestReaderTruncatedInput(t *testing.T) {
	r := codec.NewReader([]byte{1, 2})
	r.ReadUint64()
	require.Error(t, r.Err())
}

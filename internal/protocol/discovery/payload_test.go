package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestDiscoveryResponse_RoundTrip(t *testing.T) {
	for _, id := range []uint64{0, 1, 1 << 40, ^uint64(0)} {
		got, err := DecodeDiscoveryResponse(EncodeDiscoveryResponse(id))
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
}

func TestDiscoveryResponse_Missing(t *testing.T) {
	_, err := DecodeDiscoveryResponse(nil)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

// TestDecode_SkipsUnknownFields 测试跳过未知字段
func TestDecode_SkipsUnknownFields(t *testing.T) {
	b := protowire.AppendTag(nil, 9, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	b = append(b, EncodeDiscoveryResponse(5)...)

	id, err := DecodeDiscoveryResponse(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), id)

	ids, err := DecodePeerList(b)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPeerList_RoundTrip(t *testing.T) {
	in := []string{"127.0.0.1:1", "10.0.0.2:9000"}
	got, err := DecodePeerList(EncodePeerList(in))
	require.NoError(t, err)
	assert.Equal(t, in, got)

	empty, err := DecodePeerList(EncodePeerList(nil))
	require.NoError(t, err)
	assert.Nil(t, empty)
}

// TestPeerList_Truncated 测试截断载荷
func TestPeerList_Truncated(t *testing.T) {
	b := EncodePeerList([]string{"127.0.0.1:9000"})
	_, err := DecodePeerList(b[:len(b)-3])
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

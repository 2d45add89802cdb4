package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEndpoint_PeerID 测试规范节点 ID
func TestEndpoint_PeerID(t *testing.T) {
	assert.Equal(t, "127.0.0.1:9000", NewEndpoint("127.0.0.1", 9000).PeerID())
	assert.Equal(t, "node1:8080", NewEndpoint("node1", 8080).PeerID())
	assert.Equal(t, "[::1]:7000", NewEndpoint("::1", 7000).PeerID())
}

// TestEndpoint_IsValid 测试端点有效性
func TestEndpoint_IsValid(t *testing.T) {
	assert.True(t, NewEndpoint("10.0.0.1", 1).IsValid())
	assert.False(t, NewEndpoint("", 9000).IsValid())
	assert.False(t, NewEndpoint("10.0.0.1", 0).IsValid())
	assert.False(t, Endpoint{}.IsValid())
}

// TestParsePeerID 测试节点 ID 解析
func TestParsePeerID(t *testing.T) {
	t.Run("往返", func(t *testing.T) {
		for _, ep := range []Endpoint{
			NewEndpoint("127.0.0.1", 9000),
			NewEndpoint("localhost", 65535),
			NewEndpoint("fe80::1", 1),
		} {
			parsed, err := ParsePeerID(ep.PeerID())
			require.NoError(t, err)
			assert.Equal(t, ep, parsed)
		}
	})

	t.Run("格式错误", func(t *testing.T) {
		for _, in := range []string{
			"",
			"no-colon",
			":9000",
			"127.0.0.1:",
			"127.0.0.1:abc",
			"127.0.0.1:70000",
			"127.0.0.1:0",
			"127.0.0.1:-1",
		} {
			ep, err := ParsePeerID(in)
			require.Error(t, err, in)
			assert.True(t, errors.Is(err, ErrInvalidPeerID), in)
			assert.False(t, ep.IsValid(), in)

			var pidErr *PeerIDError
			require.ErrorAs(t, err, &pidErr)
			assert.Equal(t, in, pidErr.PeerID)
		}
	})
}

// TestMustParsePeerID 测试 MustParsePeerID
func TestMustParsePeerID(t *testing.T) {
	assert.Equal(t, NewEndpoint("1.2.3.4", 5), MustParsePeerID("1.2.3.4:5"))
	assert.Panics(t, func() { MustParsePeerID("broken") })
}

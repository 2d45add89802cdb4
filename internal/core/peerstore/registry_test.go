package peerstore

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-udpmesh/pkg/types"
)

func ep(port uint16) types.Endpoint {
	return types.NewEndpoint("127.0.0.1", port)
}

// TestRegistry_AddIdempotent 测试重复加入只保留一个条目
func TestRegistry_AddIdempotent(t *testing.T) {
	clk := clock.NewMock()
	r := New(WithClock(clk))

	added, err := r.Add(ep(9000))
	require.NoError(t, err)
	assert.True(t, added)

	clk.Add(time.Second)
	added, err = r.Add(ep(9000))
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, r.Len())

	p, ok := r.Get("127.0.0.1:9000")
	require.True(t, ok)
	assert.True(t, p.IsActive)
	assert.Equal(t, clk.Now().Add(-time.Second), p.LastSeen)
	assert.Equal(t, clk.Now().Add(-time.Second), p.AddedAt)
}

// TestRegistry_AddDoesNotRefresh 测试重复加入不延长节点存活
func TestRegistry_AddDoesNotRefresh(t *testing.T) {
	clk := clock.NewMock()
	r := New(WithClock(clk))

	_, err := r.Add(ep(9000))
	require.NoError(t, err)

	clk.Add(20 * time.Second)
	added, err := r.Add(ep(9000))
	require.NoError(t, err)
	assert.False(t, added)

	clk.Add(15 * time.Second)
	expired := r.Expire(30 * time.Second)
	require.Len(t, expired, 1)
	assert.Equal(t, "127.0.0.1:9000", expired[0].ID())
	assert.Zero(t, r.Len())
}

// TestRegistry_AddInvalid 测试无效端点
func TestRegistry_AddInvalid(t *testing.T) {
	r := New()
	_, err := r.Add(types.Endpoint{Address: "127.0.0.1"})
	assert.ErrorIs(t, err, types.ErrInvalidEndpoint)
	_, err = r.Add(types.Endpoint{Port: 1})
	assert.ErrorIs(t, err, types.ErrInvalidEndpoint)
	assert.Equal(t, 0, r.Len())
}

// TestRegistry_Full 测试容量限制
func TestRegistry_Full(t *testing.T) {
	r := New(WithMaxPeers(2))

	_, err := r.Add(ep(1))
	require.NoError(t, err)
	_, err = r.Add(ep(2))
	require.NoError(t, err)
	_, err = r.Add(ep(3))
	assert.ErrorIs(t, err, ErrPeerTableFull)

	// 已存在节点仍可刷新
	_, err = r.Add(ep(1))
	assert.NoError(t, err)
	assert.Equal(t, 2, r.MaxPeers())
}

// TestRegistry_Expire 测试过期节点被移除，新鲜节点保留
func TestRegistry_Expire(t *testing.T) {
	clk := clock.NewMock()
	r := New(WithClock(clk))

	_, err := r.Add(ep(1))
	require.NoError(t, err)

	clk.Add(31 * time.Second)
	_, err = r.Add(ep(2))
	require.NoError(t, err)

	expired := r.Expire(30 * time.Second)
	require.Len(t, expired, 1)
	assert.Equal(t, "127.0.0.1:1", expired[0].ID())
	assert.False(t, expired[0].IsActive)

	_, ok := r.Get("127.0.0.1:1")
	assert.False(t, ok)
	_, ok = r.Get("127.0.0.1:2")
	assert.True(t, ok)

	// 再次执行不会重复报告
	assert.Empty(t, r.Expire(30*time.Second))
}

// TestRegistry_ExpireBoundary 测试恰好等于超时不移除
func TestRegistry_ExpireBoundary(t *testing.T) {
	clk := clock.NewMock()
	r := New(WithClock(clk))
	_, err := r.Add(ep(1))
	require.NoError(t, err)

	clk.Add(30 * time.Second)
	assert.Empty(t, r.Expire(30*time.Second))
	clk.Add(time.Nanosecond)
	assert.Len(t, r.Expire(30*time.Second), 1)
}

// TestRegistry_TouchAndRTT 测试刷新与 RTT
func TestRegistry_TouchAndRTT(t *testing.T) {
	clk := clock.NewMock()
	r := New(WithClock(clk))
	_, err := r.Add(ep(1))
	require.NoError(t, err)

	clk.Add(20 * time.Second)
	assert.True(t, r.Touch("127.0.0.1:1"))
	assert.False(t, r.Touch("127.0.0.1:2"))

	clk.Add(20 * time.Second)
	assert.Empty(t, r.Expire(30*time.Second))

	assert.True(t, r.UpdateRTT("127.0.0.1:1", 3*time.Millisecond))
	assert.False(t, r.UpdateRTT("127.0.0.1:2", time.Millisecond))
	p, _ := r.Get("127.0.0.1:1")
	assert.Equal(t, 3*time.Millisecond, p.RTT)
}

// TestRegistry_Snapshots 测试快照排序与拷贝语义
func TestRegistry_Snapshots(t *testing.T) {
	r := New()
	for _, port := range []uint16{3, 1, 2} {
		_, err := r.Add(ep(port))
		require.NoError(t, err)
	}

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "127.0.0.1:1", all[0].ID())
	assert.Equal(t, "127.0.0.1:3", all[2].ID())

	all[0].IsActive = false
	assert.True(t, r.IsActive("127.0.0.1:1"))
	assert.Len(t, r.Active(), 3)

	assert.True(t, r.Remove("127.0.0.1:1"))
	assert.False(t, r.Remove("127.0.0.1:1"))
	assert.Equal(t, 2, r.Len())
}

// TestRegistry_Concurrent 测试并发读写
func TestRegistry_Concurrent(t *testing.T) {
	r := New(WithMaxPeers(0))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				port := uint16(base*100 + j + 1)
				_, _ = r.Add(ep(port))
				r.Touch(ep(port).PeerID())
				_ = r.Active()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 800, r.Len())
}

package discovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-udpmesh/internal/config"
	"github.com/dep2p/go-udpmesh/internal/core/codec"
	"github.com/dep2p/go-udpmesh/internal/core/peerstore"
	"github.com/dep2p/go-udpmesh/pkg/lib/log"
	"github.com/dep2p/go-udpmesh/pkg/types"
)

type sent struct {
	to types.Endpoint
	m  types.Message
}

// fakeHost 记录出站消息的宿主
type fakeHost struct {
	id       string
	registry *peerstore.Registry

	mu        sync.Mutex
	sent      []sent
	broadcast []types.Message
	added     []string
}

func (h *fakeHost) ID() string { return h.id }

func (h *fakeHost) AddPeer(_ context.Context, ep types.Endpoint) error {
	added, err := h.registry.Add(ep)
	if added {
		h.mu.Lock()
		h.added = append(h.added, ep.PeerID())
		h.mu.Unlock()
	}
	return err
}

func (h *fakeHost) NewMessage(typ types.MessageType, payload []byte) types.Message {
	return types.Message{
		Header:  types.MessageHeader{Type: typ, ID: codec.NewMessageID(), SourceID: h.id, TTL: 8},
		Payload: payload,
	}
}

func (h *fakeHost) Send(_ context.Context, to types.Endpoint, m types.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, sent{to: to, m: m})
	return nil
}

func (h *fakeHost) BroadcastMessage(_ context.Context, m types.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcast = append(h.broadcast, m)
	return nil
}

func (h *fakeHost) sentOfType(typ types.MessageType) []sent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []sent
	for _, s := range h.sent {
		if s.m.Header.Type == typ {
			out = append(out, s)
		}
	}
	return out
}

func newTestService(t *testing.T, clk *clock.Mock) (*Service, *fakeHost) {
	t.Helper()

	reg := peerstore.New(peerstore.WithClock(clk))
	host := &fakeHost{id: "127.0.0.1:9000", registry: reg}
	svc, err := New(host, reg, ConfigFromUnified(config.NewConfig()), WithLogger(log.Discard()))
	require.NoError(t, err)
	return svc, host
}

func msgFrom(source string, typ types.MessageType, id uint64, payload []byte) types.Message {
	return types.Message{
		Header:  types.MessageHeader{Type: typ, ID: id, SourceID: source, TTL: 8},
		Payload: payload,
	}
}

var observed = types.NewEndpoint("127.0.0.1", 9001)

// TestHandleInbound_Discovery 测试发现请求：加入来源并应答
func TestHandleInbound_Discovery(t *testing.T) {
	ctx := context.Background()
	svc, host := newTestService(t, clock.NewMock())

	deliver, err := svc.HandleInbound(ctx, msgFrom("127.0.0.1:9001", types.MessageTypeDiscovery, 77, nil), observed)
	require.NoError(t, err)
	assert.False(t, deliver)
	assert.Equal(t, []string{"127.0.0.1:9001"}, host.added)

	resp := host.sentOfType(types.MessageTypeDiscoveryResponse)
	require.Len(t, resp, 1)
	assert.Equal(t, "127.0.0.1:9001", resp[0].to.PeerID())
	id, err := DecodeDiscoveryResponse(resp[0].m.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), id)

	// 除请求方外没有其他节点，不发送 PeerList
	assert.Empty(t, host.sentOfType(types.MessageTypePeerList))
}

// TestHandleInbound_DiscoveryPeerList 测试已知其他节点时附带 PeerList
func TestHandleInbound_DiscoveryPeerList(t *testing.T) {
	ctx := context.Background()
	svc, host := newTestService(t, clock.NewMock())
	require.NoError(t, host.AddPeer(ctx, types.NewEndpoint("127.0.0.1", 9002)))

	_, err := svc.HandleInbound(ctx, msgFrom("127.0.0.1:9001", types.MessageTypeDiscovery, 1, nil), observed)
	require.NoError(t, err)

	lists := host.sentOfType(types.MessageTypePeerList)
	require.Len(t, lists, 1)
	ids, err := DecodePeerList(lists[0].m.Payload)
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1:9002"}, ids)
}

// TestHandleInbound_ResponseRTT 测试应答计算 RTT
func TestHandleInbound_ResponseRTT(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	svc, host := newTestService(t, clk)
	require.NoError(t, host.AddPeer(ctx, observed))

	require.NoError(t, svc.Probe(ctx))
	require.Len(t, host.broadcast, 1)
	probe := host.broadcast[0]
	assert.Equal(t, types.MessageTypeDiscovery, probe.Header.Type)
	assert.Equal(t, 1, svc.PendingProbes())

	clk.Add(15 * time.Millisecond)
	payload := EncodeDiscoveryResponse(probe.Header.ID)
	_, err := svc.HandleInbound(ctx, msgFrom("127.0.0.1:9001", types.MessageTypeDiscoveryResponse, 5, payload), observed)
	require.NoError(t, err)

	p, ok := svc.registry.Get("127.0.0.1:9001")
	require.True(t, ok)
	assert.Equal(t, 15*time.Millisecond, p.RTT)
}

// TestHandleInbound_PeerList 测试节点列表加入新节点，跳过自身与无效 ID
func TestHandleInbound_PeerList(t *testing.T) {
	ctx := context.Background()
	svc, host := newTestService(t, clock.NewMock())

	payload := EncodePeerList([]string{"127.0.0.1:9000", "127.0.0.1:9003", "garbage", "127.0.0.1:9003"})
	_, err := svc.HandleInbound(ctx, msgFrom("127.0.0.1:9001", types.MessageTypePeerList, 9, payload), observed)
	require.NoError(t, err)

	assert.Equal(t, []string{"127.0.0.1:9001", "127.0.0.1:9003"}, host.added)
}

// TestHandleInbound_SelfAndDuplicate 测试丢弃自身与重复消息
func TestHandleInbound_SelfAndDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, host := newTestService(t, clock.NewMock())

	deliver, err := svc.HandleInbound(ctx, msgFrom(host.id, types.MessageTypeData, 1, []byte("x")), observed)
	require.NoError(t, err)
	assert.False(t, deliver)

	m := msgFrom("127.0.0.1:9001", types.MessageTypeData, 2, []byte("x"))
	deliver, err = svc.HandleInbound(ctx, m, observed)
	require.NoError(t, err)
	assert.True(t, deliver)

	deliver, err = svc.HandleInbound(ctx, m, observed)
	require.NoError(t, err)
	assert.False(t, deliver)
}

// TestHandleInbound_Heartbeat 测试心跳刷新已知节点
func TestHandleInbound_Heartbeat(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	svc, host := newTestService(t, clk)
	require.NoError(t, host.AddPeer(ctx, observed))

	clk.Add(20 * time.Second)
	_, err := svc.HandleInbound(ctx, msgFrom("127.0.0.1:9001", types.MessageTypeHeartbeat, 3, nil), observed)
	require.NoError(t, err)

	p, _ := svc.registry.Get("127.0.0.1:9001")
	assert.Equal(t, clk.Now(), p.LastSeen)

	// 未知来源的心跳不加入节点表
	_, err = svc.HandleInbound(ctx, msgFrom("127.0.0.1:9009", types.MessageTypeHeartbeat, 4, nil), observed)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.registry.Len())

	require.NoError(t, svc.Heartbeat(ctx))
	require.Len(t, host.broadcast, 1)
	assert.Equal(t, types.MessageTypeHeartbeat, host.broadcast[0].Header.Type)
}

// TestHandleInbound_InvalidSource 测试控制消息源 ID 无效
func TestHandleInbound_InvalidSource(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, clock.NewMock())

	_, err := svc.HandleInbound(ctx, msgFrom("not-an-id", types.MessageTypeDiscovery, 1, nil), observed)
	assert.ErrorIs(t, err, ErrInvalidSource)

	// 数据消息仍然交付
	deliver, err := svc.HandleInbound(ctx, msgFrom("not-an-id", types.MessageTypeData, 2, nil), observed)
	require.NoError(t, err)
	assert.True(t, deliver)
}

// TestHandleInbound_MalformedResponse 测试格式错误的应答载荷
func TestHandleInbound_MalformedResponse(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, clock.NewMock())

	_, err := svc.HandleInbound(ctx, msgFrom("127.0.0.1:9001", types.MessageTypeDiscoveryResponse, 1, []byte{0xFF}), observed)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

// TestHandleInbound_RateLimit 测试应答限速
func TestHandleInbound_RateLimit(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	svc, host := newTestService(t, clk)

	burst := svc.config.ResponseBurst
	for i := 0; i < burst+3; i++ {
		_, err := svc.HandleInbound(ctx, msgFrom("127.0.0.1:9001", types.MessageTypeDiscovery, uint64(100+i), nil), observed)
		require.NoError(t, err)
	}
	assert.Len(t, host.sentOfType(types.MessageTypeDiscoveryResponse), burst)

	// 时间流逝后恢复
	clk.Add(time.Second)
	_, err := svc.HandleInbound(ctx, msgFrom("127.0.0.1:9001", types.MessageTypeDiscovery, 999, nil), observed)
	require.NoError(t, err)
	assert.Len(t, host.sentOfType(types.MessageTypeDiscoveryResponse), burst+1)
}

// TestResolveSource 测试未指定地址替换为观察地址
func TestResolveSource(t *testing.T) {
	svc, _ := newTestService(t, clock.NewMock())

	ep, err := svc.ResolveSource("0.0.0.0:9005", types.NewEndpoint("10.0.0.7", 4000))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7:9005", ep.PeerID())

	ep, err = svc.ResolveSource("10.0.0.1:9005", types.NewEndpoint("10.0.0.7", 4000))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:9005", ep.PeerID())
}

func TestNew_Errors(t *testing.T) {
	reg := peerstore.New()
	_, err := New(nil, reg, Config{})
	assert.ErrorIs(t, err, ErrNilHost)
	_, err = New(&fakeHost{}, nil, Config{})
	assert.ErrorIs(t, err, ErrNilRegistry)
	_, err = New(&fakeHost{}, reg, Config{})
	assert.Error(t, err)
}

package udpmesh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-udpmesh/internal/config"
	"github.com/dep2p/go-udpmesh/internal/core/eventbus"
	"github.com/dep2p/go-udpmesh/internal/core/metrics"
	"github.com/dep2p/go-udpmesh/internal/core/peerstore"
	"github.com/dep2p/go-udpmesh/internal/core/task"
	"github.com/dep2p/go-udpmesh/internal/core/transport/udp"
	"github.com/dep2p/go-udpmesh/internal/protocol/discovery"
	"github.com/dep2p/go-udpmesh/pkg/lib/log"
	"github.com/dep2p/go-udpmesh/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              节点状态
// ════════════════════════════════════════════════════════════════════════════

// NodeState 节点状态
type NodeState int32

const (
	// StateStopped 已停止（可启动）
	StateStopped NodeState = iota

	// StateRunning 运行中
	StateRunning

	// StateClosed 已关闭（终态）
	StateClosed
)

// String 返回状态名
func (s NodeState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("NodeState(%d)", int32(s))
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              Node
// ════════════════════════════════════════════════════════════════════════════

// Node 网格节点
type Node struct {
	cfg    *config.Config
	self   types.Endpoint
	logger log.Sink
	clock  clock.Clock

	metrics    *metrics.Metrics
	socket     *udp.Socket
	registry   *peerstore.Registry
	dispatcher *eventbus.Dispatcher
	discovery  *discovery.Service

	// lifecycle 串行化 Start/Stop/Close
	lifecycle  sync.Mutex
	state      atomic.Int32
	loopCancel context.CancelFunc
	loops      []*task.Task[struct{}]

	// pendingRecv 跨越 Stop 保留的在途接收，仅由接收循环访问
	pendingRecv *task.Task[udp.Datagram]
}

// New 创建节点并绑定套接字
//
// cfg 为 nil 时使用默认配置。绑定失败返回 *NodeError（包裹 *udp.BindError）。
func New(cfg *config.Config, opts ...Option) (*Node, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, &NodeError{Op: "config", Err: err}
	}

	o := &options{clock: clock.New()}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, &NodeError{Op: "option", Err: err}
		}
	}

	n := &Node{
		cfg:    cfg,
		clock:  o.clock,
		logger: log.OrDefault(o.logger, "udpmesh"),
	}

	n.metrics = o.metrics
	if n.metrics == nil {
		m, err := metrics.New(
			metrics.WithNamespace(cfg.Metrics.Namespace),
			metrics.WithRegisterer(o.registerer),
			metrics.WithClock(o.clock),
		)
		if err != nil {
			return nil, &NodeError{Op: "metrics", Err: err}
		}
		n.metrics = m
	}

	n.socket = o.socket
	if n.socket == nil {
		s, err := udp.New(udp.ConfigFromUnified(cfg),
			udp.WithLogger(o.logger),
			udp.WithMetrics(n.metrics),
		)
		if err != nil {
			return nil, &NodeError{Op: "bind", Err: err}
		}
		n.socket = s
	}

	n.dispatcher = o.dispatcher
	if n.dispatcher == nil {
		n.dispatcher = eventbus.New(
			eventbus.WithLogger(o.logger),
			eventbus.WithMetrics(n.metrics),
		)
	}

	n.registry = peerstore.New(
		peerstore.WithClock(o.clock),
		peerstore.WithMaxPeers(cfg.Discovery.MaxPeers),
		peerstore.WithMetrics(n.metrics),
	)
	n.self = types.NewEndpoint(cfg.Node.Address, n.socket.LocalPort())

	svc, err := discovery.New(n, n.registry, discovery.ConfigFromUnified(cfg),
		discovery.WithLogger(o.logger),
		discovery.WithMetrics(n.metrics),
	)
	if err != nil {
		_ = n.socket.Close()
		return nil, &NodeError{Op: "discovery", Err: err}
	}
	n.discovery = svc

	n.logger.Info("节点已创建", "id", n.ID())
	return n, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              查询
// ════════════════════════════════════════════════════════════════════════════

// ID 返回本节点 ID（"address:port"）
func (n *Node) ID() string {
	return n.self.PeerID()
}

// Endpoint 返回本节点端点
func (n *Node) Endpoint() types.Endpoint {
	return n.self
}

// LocalPort 返回实际绑定端口
func (n *Node) LocalPort() uint16 {
	return n.socket.LocalPort()
}

// State 返回节点状态
func (n *Node) State() NodeState {
	return NodeState(n.state.Load())
}

// IsRunning 节点是否运行中
func (n *Node) IsRunning() bool {
	return n.State() == StateRunning
}

// Peers 返回节点表快照，按 peer id 排序
func (n *Node) Peers() []types.Peer {
	return n.registry.All()
}

// ActivePeers 返回活跃节点快照
func (n *Node) ActivePeers() []types.Peer {
	return n.registry.Active()
}

// Peer 返回指定节点
func (n *Node) Peer(id string) (types.Peer, bool) {
	return n.registry.Get(id)
}

// Dispatcher 返回事件分发器
func (n *Node) Dispatcher() *eventbus.Dispatcher {
	return n.dispatcher
}

// Stats 返回收发统计
func (n *Node) Stats() metrics.Snapshot {
	return n.metrics.Snapshot()
}

// Metrics 返回节点指标
func (n *Node) Metrics() *metrics.Metrics {
	return n.metrics
}

// ════════════════════════════════════════════════════════════════════════════
//                              节点表与事件
// ════════════════════════════════════════════════════════════════════════════

// AddPeer 加入节点
//
// 无效端点返回 types.ErrInvalidEndpoint；自身为空操作；重复加入只刷新
// LastSeen。新节点发布一次 PeerConnected，处理器错误原样返回。
func (n *Node) AddPeer(ctx context.Context, ep types.Endpoint) error {
	if !ep.IsValid() {
		return types.ErrInvalidEndpoint
	}
	if ep.PeerID() == n.ID() {
		return nil
	}

	added, err := n.registry.Add(ep)
	if err != nil {
		return err
	}
	if !added {
		return nil
	}

	n.logger.Info("节点已加入", "peer", ep.PeerID())
	return n.publish(ctx, types.PeerConnected{Endpoint: ep})
}

// RemovePeer 移除节点
func (n *Node) RemovePeer(id string) bool {
	return n.registry.Remove(id)
}

// Subscribe 订阅事件主题
func (n *Node) Subscribe(topic string, h eventbus.Handler) *eventbus.Subscription {
	return n.dispatcher.Subscribe(topic, h)
}

// SubscribeTyped 以具体事件类型订阅节点事件
func SubscribeTyped[E types.Event](n *Node, fn func(ctx context.Context, ev E) error) *eventbus.Subscription {
	return eventbus.SubscribeTyped(n.dispatcher, fn)
}

// SleepAsync 发布 SleepFor 后等待 d 或 ctx 结束
//
// 处理器错误不会缩短等待，在等待结束后返回。
func (n *Node) SleepAsync(ctx context.Context, d time.Duration) error {
	pubErr := n.publish(ctx, types.SleepFor{Duration: d})

	timer := n.clock.Timer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return pubErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Node) publish(ctx context.Context, ev types.Event) error {
	return n.dispatcher.Dispatch(ctx, ev)
}

// publishState 发布网络状态事件，处理器错误只记录日志
func (n *Node) publishState(ctx context.Context, healthy bool, status string) {
	if err := n.publish(ctx, types.NetworkStateChanged{Healthy: healthy, Status: status}); err != nil {
		n.logger.Warn("网络状态事件处理失败", "status", status, "err", err)
	}
}

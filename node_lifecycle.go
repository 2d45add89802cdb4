package udpmesh

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-udpmesh/internal/core/task"
	"github.com/dep2p/go-udpmesh/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Start 启动节点
//
// 已运行时为空操作。加入种子节点后启动接收、健康检查与发现三个循环，
// 并发布 NetworkStateChanged{true, "Node started"}。
// 事件处理器内不得调用 Start/Stop/Close。
func (n *Node) Start(ctx context.Context) error {
	n.lifecycle.Lock()
	defer n.lifecycle.Unlock()

	switch n.State() {
	case StateRunning:
		return nil
	case StateClosed:
		return ErrNodeClosed
	}

	// 上次 Stop 超时遗留的循环
	if err := n.awaitLoops(ctx, "start"); err != nil {
		return err
	}

	n.state.Store(int32(StateRunning))
	n.addSeeds(ctx)

	loopCtx, cancel := context.WithCancel(context.Background())
	n.loopCancel = cancel
	n.loops = []*task.Task[struct{}]{
		runLoop(func() { n.receiveLoop(loopCtx) }),
		runLoop(func() { n.healthLoop(loopCtx) }),
		runLoop(func() { n.discoveryLoop(loopCtx) }),
	}

	n.logger.Info("节点已启动", "id", n.ID(), "seeds", len(n.cfg.Seeds))
	n.publishState(ctx, true, "Node started")
	return nil
}

// Stop 停止节点
//
// 已停止时为空操作。取消循环上下文（在循环边界生效，进行中的操作照常完成），
// 等待循环退出后发布 NetworkStateChanged{false, "Node stopped"}。
// ctx 先于循环结束时返回 *TimeoutError。
func (n *Node) Stop(ctx context.Context) error {
	n.lifecycle.Lock()
	defer n.lifecycle.Unlock()

	if n.State() != StateRunning {
		return nil
	}
	return n.stopLocked(ctx)
}

func (n *Node) stopLocked(ctx context.Context) error {
	n.state.Store(int32(StateStopped))
	if n.loopCancel != nil {
		n.loopCancel()
		n.loopCancel = nil
	}

	if err := n.awaitLoops(ctx, "stop"); err != nil {
		return err
	}

	n.logger.Info("节点已停止", "id", n.ID())
	n.publishState(ctx, false, "Node stopped")
	return nil
}

// Close 停止节点并释放套接字，关闭后不可再启动
func (n *Node) Close() error {
	n.lifecycle.Lock()
	defer n.lifecycle.Unlock()

	var err error
	switch n.State() {
	case StateClosed:
		return nil
	case StateRunning:
		err = n.stopLocked(context.Background())
	}

	n.state.Store(int32(StateClosed))
	err = multierr.Append(err, n.socket.Close())
	if err != nil {
		return &NodeError{Op: "close", Err: err}
	}
	return nil
}

// awaitLoops 等待全部循环退出
func (n *Node) awaitLoops(ctx context.Context, op string) error {
	start := time.Now()
	for len(n.loops) > 0 {
		if _, err := n.loops[0].Await(ctx); err != nil && ctx.Err() != nil {
			return &TimeoutError{Op: op, After: time.Since(start)}
		}
		n.loops = n.loops[1:]
	}
	n.loops = nil
	return nil
}

func (n *Node) addSeeds(ctx context.Context) {
	for _, s := range n.cfg.Seeds {
		ep, err := types.ParsePeerID(s)
		if err != nil {
			n.logger.Warn("忽略无效种子节点", "seed", s, "err", err)
			continue
		}
		if err := n.AddPeer(ctx, ep); err != nil {
			n.logger.Warn("加入种子节点失败", "seed", s, "err", err)
		}
	}
}

func runLoop(fn func()) *task.Task[struct{}] {
	return task.Go(func() (struct{}, error) {
		fn()
		return struct{}{}, nil
	})
}

// ════════════════════════════════════════════════════════════════════════════
//                              后台循环
// ════════════════════════════════════════════════════════════════════════════

// healthLoop 周期性移除超时节点并发送心跳
func (n *Node) healthLoop(ctx context.Context) {
	interval := n.cfg.Liveness.HealthCheckInterval.Duration()
	for ctx.Err() == nil {
		if err := n.checkHealth(ctx); err != nil {
			n.logger.Warn("健康检查失败", "err", err)
			n.publishState(ctx, false, "Health check error: "+err.Error())
		}
		if !n.pause(ctx, interval) {
			return
		}
	}
}

// checkHealth 执行一次健康检查
//
// 每个被移除的节点发布一次 PeerDisconnected。
func (n *Node) checkHealth(ctx context.Context) error {
	var err error

	expired := n.registry.Expire(n.cfg.Liveness.PeerTimeout.Duration())
	for _, p := range expired {
		n.logger.Info("节点超时移除", "peer", p.ID(), "lastSeen", p.LastSeen)
		err = multierr.Append(err, n.publish(ctx, types.PeerDisconnected{PeerID: p.ID()}))
	}

	if n.cfg.Liveness.HeartbeatEnabled {
		err = multierr.Append(err, n.discovery.Heartbeat(ctx))
	}
	return err
}

// discoveryLoop 周期性向活跃节点广播发现请求
func (n *Node) discoveryLoop(ctx context.Context) {
	interval := n.cfg.Discovery.Interval.Duration()
	for ctx.Err() == nil {
		if err := n.discovery.Probe(ctx); err != nil {
			n.logger.Warn("节点发现失败", "err", err)
			n.publishState(ctx, false, "Discovery error: "+err.Error())
		}
		if !n.pause(ctx, interval) {
			return
		}
	}
}

// pause 发布 SleepFor 并休眠，ctx 结束时返回 false
func (n *Node) pause(ctx context.Context, d time.Duration) bool {
	err := n.SleepAsync(ctx, d)
	if ctx.Err() != nil {
		return false
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		n.logger.Warn("SleepFor 事件处理失败", "err", err)
	}
	return true
}

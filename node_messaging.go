package udpmesh

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-udpmesh/internal/core/codec"
	"github.com/dep2p/go-udpmesh/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              消息发送
// ════════════════════════════════════════════════════════════════════════════

// NewMessage 以本节点身份构造消息（新 id，默认 TTL）
func (n *Node) NewMessage(typ types.MessageType, payload []byte) types.Message {
	return types.Message{
		Header: types.MessageHeader{
			Type:     typ,
			ID:       codec.NewMessageID(),
			SourceID: n.ID(),
			TTL:      uint16(n.cfg.Messaging.DefaultTTL),
		},
		Payload: payload,
	}
}

// Send 编码消息并发送到 to
//
// 不检查节点表，协议应答也经由此处发出。SourceID 总是改写为本节点 ID。
func (n *Node) Send(ctx context.Context, to types.Endpoint, m types.Message) error {
	if n.State() == StateClosed {
		return ErrNodeClosed
	}

	m.Header.SourceID = n.ID()
	data, err := codec.Encode(m)
	if err != nil {
		return &NodeError{Op: "encode", Err: err}
	}
	return n.sendEncoded(ctx, to, data)
}

func (n *Node) sendEncoded(ctx context.Context, to types.Endpoint, data []byte) error {
	if _, err := n.socket.SendTo(ctx, to, data); err != nil {
		return &NodeError{Op: "send", Err: fmt.Errorf("%s: %w", to.PeerID(), err)}
	}
	return nil
}

// SendMessage 向端点发送指定类型的消息
func (n *Node) SendMessage(ctx context.Context, to types.Endpoint, typ types.MessageType, payload []byte) error {
	return n.Send(ctx, to, n.NewMessage(typ, payload))
}

// SendToPeer 向单个节点发送 Data 消息
//
// 节点不在节点表中或不活跃时静默跳过。
func (n *Node) SendToPeer(ctx context.Context, to types.Endpoint, payload []byte) error {
	if !n.registry.IsActive(to.PeerID()) {
		n.logger.Debug("跳过未知或不活跃节点", "peer", to.PeerID())
		return nil
	}
	return n.SendMessage(ctx, to, types.MessageTypeData, payload)
}

// Broadcast 向全部活跃节点发送 Data 消息
func (n *Node) Broadcast(ctx context.Context, payload []byte) error {
	return n.BroadcastMessage(ctx, n.NewMessage(types.MessageTypeData, payload))
}

// BroadcastMessage 向全部活跃节点发送同一消息
//
// 并发度受 BroadcastParallelism 限制；单个节点的失败不影响其余发送，
// 全部错误合并返回。SourceID 总是改写为本节点 ID。
func (n *Node) BroadcastMessage(ctx context.Context, m types.Message) error {
	if n.State() == StateClosed {
		return ErrNodeClosed
	}

	peers := n.registry.Active()
	if len(peers) == 0 {
		return nil
	}

	m.Header.SourceID = n.ID()
	data, err := codec.Encode(m)
	if err != nil {
		return &NodeError{Op: "encode", Err: err}
	}

	var (
		mu   sync.Mutex
		errs error
	)
	var g errgroup.Group
	if limit := n.cfg.Messaging.BroadcastParallelism; limit > 0 {
		g.SetLimit(limit)
	}
	for _, p := range peers {
		ep := p.Endpoint
		g.Go(func() error {
			if err := n.sendEncoded(ctx, ep, data); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if errs != nil {
		return &NodeError{Op: "broadcast", Err: errs}
	}
	return nil
}

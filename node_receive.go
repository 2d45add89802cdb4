package udpmesh

import (
	"context"
	"errors"
	"fmt"

	"github.com/dep2p/go-udpmesh/internal/core/codec"
	"github.com/dep2p/go-udpmesh/internal/core/metrics"
	"github.com/dep2p/go-udpmesh/internal/core/transport/udp"
	"github.com/dep2p/go-udpmesh/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              接收循环
// ════════════════════════════════════════════════════════════════════════════

// receiveLoop 逐个接收并处理数据报
//
// ctx 结束时在途接收保留在 pendingRecv，下次 Start 继续等待它。
func (n *Node) receiveLoop(ctx context.Context) {
	size := n.cfg.Socket.MaxDatagramSize

	for ctx.Err() == nil {
		if n.pendingRecv == nil {
			n.pendingRecv = n.socket.ReceiveAsync(ctx, size)
		}

		t := n.pendingRecv
		_, _ = t.Await(ctx)
		if !t.IsDone() {
			return
		}
		n.pendingRecv = nil

		dg, err := t.Result()
		if errors.Is(err, udp.ErrSocketClosed) {
			return
		}
		if err == nil {
			err = n.handleDatagram(ctx, dg)
		}
		if err != nil && ctx.Err() == nil {
			n.logger.Warn("接收处理失败", "err", err)
			n.publishState(ctx, false, "Receive error: "+err.Error())
		}
	}
}

// handleDatagram 解码并处理一个数据报，Data 消息发布 MessageReceived
func (n *Node) handleDatagram(ctx context.Context, dg udp.Datagram) error {
	from := dg.From.PeerID()

	if dg.Truncated {
		n.metrics.RecordDropped(metrics.DropOversize)
		return fmt.Errorf("datagram from %s exceeds %d bytes", from, n.cfg.Socket.MaxDatagramSize)
	}

	m, err := codec.Decode(dg.Data)
	if err != nil {
		n.metrics.RecordDecodeError()
		return fmt.Errorf("decode datagram from %s: %w", from, err)
	}

	deliver, err := n.discovery.HandleInbound(ctx, m, dg.From)
	if err != nil {
		return fmt.Errorf("handle %s from %s: %w", m.Header.Type, m.Header.SourceID, err)
	}
	if !deliver {
		return nil
	}

	return n.publish(ctx, types.MessageReceived{
		Message: m,
		From:    dg.From,
		Data:    dg.Data,
	})
}

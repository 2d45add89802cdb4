package types

import (
	"fmt"
	"time"
)

// Peer 节点表条目
//
// 首次观察到节点时创建（显式添加或发现流量），每次收到该节点的
// 有效消息时刷新 LastSeen，由健康检查在超时后移除。
type Peer struct {
	// Endpoint 节点端点
	Endpoint Endpoint

	// IsActive 是否活跃
	IsActive bool

	// RTT 最近一次发现往返时延
	RTT time.Duration

	// LastSeen 最近一次收到该节点消息的时间
	LastSeen time.Time

	// AddedAt 加入节点表的时间
	AddedAt time.Time
}

// ID 返回节点 ID
func (p Peer) ID() string {
	return p.Endpoint.PeerID()
}

// RTTMillis 以毫秒返回 RTT
func (p Peer) RTTMillis() float64 {
	return float64(p.RTT) / float64(time.Millisecond)
}

// String 返回可读字符串
func (p Peer) String() string {
	return fmt.Sprintf("peer{%s active=%t rtt=%.2fms last_seen=%s}",
		p.Endpoint, p.IsActive, p.RTTMillis(), p.LastSeen.Format(time.RFC3339Nano))
}

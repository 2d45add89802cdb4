package types

import (
	"time"
)

// ============================================================================
//                              事件主题
// ============================================================================

// 事件主题名（Dispatcher 的键）
const (
	TopicPeerConnected       = "peer_connected"
	TopicPeerDisconnected    = "peer_disconnected"
	TopicMessageReceived     = "message_received"
	TopicNetworkStateChanged = "network_state_changed"
	TopicSleepFor            = "sleep_for"
)

// Topics 返回全部事件主题
func Topics() []string {
	return []string{
		TopicPeerConnected,
		TopicPeerDisconnected,
		TopicMessageReceived,
		TopicNetworkStateChanged,
		TopicSleepFor,
	}
}

// ============================================================================
//                              Event - 封闭和类型
// ============================================================================

// Event 节点事件
//
// 变体集合固定：PeerConnected, PeerDisconnected, MessageReceived,
// NetworkStateChanged, SleepFor。未导出的 isEvent 方法阻止包外扩展，
// 处理器可对 Event 做完整的 type switch。
type Event interface {
	// Topic 返回事件主题
	Topic() string

	isEvent()
}

// PeerConnected 节点加入节点表
type PeerConnected struct {
	Endpoint Endpoint
}

// PeerDisconnected 节点因超时被移除
type PeerDisconnected struct {
	PeerID string
}

// MessageReceived 收到数据消息
type MessageReceived struct {
	// Message 解码后的消息
	Message Message

	// From 数据报的观察来源地址
	From Endpoint

	// Data 原始数据报
	Data []byte
}

// NetworkStateChanged 网络状态变化
type NetworkStateChanged struct {
	Healthy bool
	Status  string
}

// SleepFor 后台循环即将休眠
type SleepFor struct {
	Duration time.Duration
}

// Topic 返回事件主题
func (PeerConnected) Topic() string { return TopicPeerConnected }

// Topic 返回事件主题
func (PeerDisconnected) Topic() string { return TopicPeerDisconnected }

// Topic 返回事件主题
func (MessageReceived) Topic() string { return TopicMessageReceived }

// Topic 返回事件主题
func (NetworkStateChanged) Topic() string { return TopicNetworkStateChanged }

// Topic 返回事件主题
func (SleepFor) Topic() string { return TopicSleepFor }

func (PeerConnected) isEvent()       {}
func (PeerDisconnected) isEvent()    {}
func (MessageReceived) isEvent()     {}
func (NetworkStateChanged) isEvent() {}
func (SleepFor) isEvent()            {}

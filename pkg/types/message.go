package types

import (
	"fmt"
)

// MessageType 消息类型
type MessageType uint8

const (
	// MessageTypeNone 未设置
	MessageTypeNone MessageType = 0
	// MessageTypeDiscovery 发现请求
	MessageTypeDiscovery MessageType = 1
	// MessageTypeDiscoveryResponse 发现应答
	MessageTypeDiscoveryResponse MessageType = 2
	// MessageTypePeerList 节点列表
	MessageTypePeerList MessageType = 3
	// MessageTypeData 用户数据
	MessageTypeData MessageType = 4
	// MessageTypeHeartbeat 心跳
	MessageTypeHeartbeat MessageType = 5
)

// IsValid 是否为已定义的消息类型
func (t MessageType) IsValid() bool {
	return t <= MessageTypeHeartbeat
}

// IsControl 是否为协议控制消息
func (t MessageType) IsControl() bool {
	switch t {
	case MessageTypeDiscovery, MessageTypeDiscoveryResponse, MessageTypePeerList, MessageTypeHeartbeat:
		return true
	default:
		return false
	}
}

// String 返回类型名
func (t MessageType) String() string {
	switch t {
	case MessageTypeNone:
		return "None"
	case MessageTypeDiscovery:
		return "Discovery"
	case MessageTypeDiscoveryResponse:
		return "DiscoveryResponse"
	case MessageTypePeerList:
		return "PeerList"
	case MessageTypeData:
		return "Data"
	case MessageTypeHeartbeat:
		return "Heartbeat"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(t))
	}
}

// MessageHeader 消息头
type MessageHeader struct {
	// Type 消息类型
	Type MessageType

	// ID 消息 ID
	ID uint64

	// SourceID 发送方节点 ID
	SourceID string

	// TTL 跳数预算（仅存储，不做转发）
	TTL uint16
}

// String 返回可读字符串
func (h MessageHeader) String() string {
	return fmt.Sprintf("type=%s id=%d source=%s ttl=%d", h.Type, h.ID, h.SourceID, h.TTL)
}

// Message 线上消息
type Message struct {
	Header  MessageHeader
	Payload []byte
}

// String 返回可读字符串（不含载荷内容）
func (m Message) String() string {
	return fmt.Sprintf("message{%s payload=%dB}", m.Header, len(m.Payload))
}

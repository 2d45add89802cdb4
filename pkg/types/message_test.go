package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestMessageType 测试消息类型枚举
func TestMessageType(t *testing.T) {
	for typ, name := range map[MessageType]string{
		MessageTypeNone:              "None",
		MessageTypeDiscovery:         "Discovery",
		MessageTypeDiscoveryResponse: "DiscoveryResponse",
		MessageTypePeerList:          "PeerList",
		MessageTypeData:              "Data",
		MessageTypeHeartbeat:         "Heartbeat",
	} {
		assert.Equal(t, name, typ.String())
		assert.True(t, typ.IsValid())
	}

	assert.False(t, MessageType(6).IsValid())
	assert.Equal(t, "MessageType(42)", MessageType(42).String())

	assert.True(t, MessageTypeDiscovery.IsControl())
	assert.True(t, MessageTypeHeartbeat.IsControl())
	assert.False(t, MessageTypeData.IsControl())
	assert.False(t, MessageTypeNone.IsControl())
}

// TestMessage_String 测试消息的可读表示
func TestMessage_String(t *testing.T) {
	m := Message{
		Header:  MessageHeader{Type: MessageTypeData, ID: 7, SourceID: "127.0.0.1:9000", TTL: 3},
		Payload: []byte("hello"),
	}
	assert.Equal(t, "message{type=Data id=7 source=127.0.0.1:9000 ttl=3 payload=5B}", m.String())
}

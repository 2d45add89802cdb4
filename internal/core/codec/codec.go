// Package codec 实现消息的线上格式
//
// 所有多字节整数为大端序：
//
//	+---------+------+------------+---------------+-----------+-----+---------+
//	| version | type | message_id | source_id_len | source_id | ttl | payload |
//	|   1B    |  1B  |     8B     |      2B       |     N     | 2B  |   ...   |
//	+---------+------+------------+---------------+-----------+-----+---------+
//
// 载荷占据剩余全部字节，长度隐含在数据报大小中。
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/dep2p/go-udpmesh/pkg/types"
)

const (
	// Version 当前协议版本
	Version uint8 = 1

	// MinHeaderSize 空源 ID 时的头部大小
	MinHeaderSize = 1 + 1 + 8 + 2 + 2

	// MaxSourceIDLength 源 ID 最大长度
	MaxSourceIDLength = 0xFFFF
)

// EncodedSize 返回消息编码后的字节数
func EncodedSize(m types.Message) int {
	return MinHeaderSize + len(m.Header.SourceID) + len(m.Payload)
}

// Encode 编码消息
//
// 输出只由 m 决定。只有源 ID 过长或类型未定义时失败。
func Encode(m types.Message) ([]byte, error) {
	if !m.Header.Type.IsValid() {
		return nil, protocolError("type", fmt.Errorf("%w: %d", ErrUnknownType, m.Header.Type))
	}
	if len(m.Header.SourceID) > MaxSourceIDLength {
		return nil, protocolError("source_id", fmt.Errorf("%w: %d bytes", ErrSourceIDTooLong, len(m.Header.SourceID)))
	}

	buf := make([]byte, 0, EncodedSize(m))
	buf = append(buf, Version, byte(m.Header.Type))
	buf = binary.BigEndian.AppendUint64(buf, m.Header.ID)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(m.Header.SourceID)))
	buf = append(buf, m.Header.SourceID...)
	buf = binary.BigEndian.AppendUint16(buf, m.Header.TTL)
	buf = append(buf, m.Payload...)
	return buf, nil
}

// Decode 解码消息
//
// 任何越界读取都返回 ErrTruncated。载荷为拷贝，空载荷解码为 nil。
func Decode(b []byte) (types.Message, error) {
	var m types.Message

	if len(b) < 1 {
		return m, protocolError("version", ErrTruncated)
	}
	if b[0] != Version {
		return m, protocolError("version", fmt.Errorf("%w: %d", ErrUnsupportedVersion, b[0]))
	}
	if len(b) < 2 {
		return m, protocolError("type", ErrTruncated)
	}
	m.Header.Type = types.MessageType(b[1])
	if !m.Header.Type.IsValid() {
		return types.Message{}, protocolError("type", fmt.Errorf("%w: %d", ErrUnknownType, b[1]))
	}
	if len(b) < 10 {
		return types.Message{}, protocolError("message_id", ErrTruncated)
	}
	m.Header.ID = binary.BigEndian.Uint64(b[2:10])
	if len(b) < 12 {
		return types.Message{}, protocolError("source_id_len", ErrTruncated)
	}
	srcLen := int(binary.BigEndian.Uint16(b[10:12]))

	off := 12
	if len(b) < off+srcLen {
		return types.Message{}, protocolError("source_id", ErrTruncated)
	}
	m.Header.SourceID = string(b[off : off+srcLen])
	off += srcLen

	if len(b) < off+2 {
		return types.Message{}, protocolError("ttl", ErrTruncated)
	}
	m.Header.TTL = binary.BigEndian.Uint16(b[off : off+2])
	off += 2

	if rest := b[off:]; len(rest) > 0 {
		m.Payload = append([]byte(nil), rest...)
	}
	return m, nil
}

// NewMessageID 生成随机消息 ID
func NewMessageID() uint64 {
	id := uuid.New()
	return binary.BigEndian.Uint64(id[:8])
}

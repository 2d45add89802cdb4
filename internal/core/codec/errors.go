package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated 输入短于声明的长度
	ErrTruncated = errors.New("truncated message")

	// ErrUnsupportedVersion 不支持的协议版本
	ErrUnsupportedVersion = errors.New("unsupported protocol version")

	// ErrUnknownType 未定义的消息类型
	ErrUnknownType = errors.New("unknown message type")

	// ErrSourceIDTooLong 源节点 ID 超过 2 字节长度前缀
	ErrSourceIDTooLong = errors.New("source id too long")
)

// ProtocolError 线上格式错误
type ProtocolError struct {
	// Field 出错的字段
	Field string

	// Err 具体原因
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s: %v", e.Field, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func protocolError(field string, err error) error {
	return &ProtocolError{Field: field, Err: err}
}

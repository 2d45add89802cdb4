package discovery

import "errors"

var (
	// ErrNilHost 缺少宿主节点
	ErrNilHost = errors.New("discovery: nil host")

	// ErrNilRegistry 缺少节点表
	ErrNilRegistry = errors.New("discovery: nil registry")

	// ErrMalformedPayload 控制消息载荷格式错误
	ErrMalformedPayload = errors.New("discovery: malformed payload")

	// ErrInvalidSource 控制消息的源节点 ID 无效
	ErrInvalidSource = errors.New("discovery: invalid source id")
)

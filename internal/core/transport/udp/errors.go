package udp

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAddress 无法解析为 IPv4 地址
	ErrInvalidAddress = errors.New("invalid ipv4 address")

	// ErrSocketClosed 套接字已关闭
	ErrSocketClosed = errors.New("socket closed")

	// ErrInvalidSize 接收缓冲区大小无效
	ErrInvalidSize = errors.New("invalid receive buffer size")
)

// BindError 套接字创建或绑定失败
type BindError struct {
	// Addr 绑定地址
	Addr string

	// Err 底层错误
	Err error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

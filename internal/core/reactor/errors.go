package reactor

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

var (
	// ErrClosed 反应器已关闭
	ErrClosed = errors.New("reactor closed")

	// ErrUnsupportedPlatform 当前平台不支持完成队列轮询
	ErrUnsupportedPlatform = errors.New("reactor: unsupported platform")

	// ErrInvalidFD 无效文件描述符
	ErrInvalidFD = errors.New("reactor: invalid file descriptor")
)

// IOError I/O 操作失败
//
// 携带操作类型与系统错误码。Unwrap 返回 unix.Errno，
// 可直接 errors.Is(err, unix.ECONNREFUSED)。
type IOError struct {
	// Op 操作类型（send/receive）
	Op string

	// Errno 系统错误码
	Errno unix.Errno
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s failed: %v (errno %d)", e.Op, e.Errno, int(e.Errno))
}

// Unwrap 返回系统错误码
func (e *IOError) Unwrap() error {
	return e.Errno
}

// Temporary 是否为瞬时错误
func (e *IOError) Temporary() bool {
	switch e.Errno {
	case unix.EAGAIN, unix.EINTR, unix.ENOBUFS, unix.ENOMEM:
		return true
	default:
		return false
	}
}

// resultError 将负结果转换为 IOError
func resultError(kind Kind, result int) error {
	return &IOError{Op: kind.String(), Errno: unix.Errno(-result)}
}

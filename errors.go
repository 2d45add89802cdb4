package udpmesh

import (
	"errors"
	"fmt"
	"time"
)

// 公共错误定义
var (
	// ErrNodeClosed 节点已关闭
	ErrNodeClosed = errors.New("node closed")
)

// NodeError 节点操作失败
type NodeError struct {
	// Op 操作名
	Op string

	// Err 底层错误
	Err error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Op, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// TimeoutError 操作在期限内未完成
type TimeoutError struct {
	// Op 操作名
	Op string

	// After 已等待的时长
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("node %s: timed out after %s", e.Op, e.After)
}

// Timeout 实现 net.Error 风格的超时判断
func (e *TimeoutError) Timeout() bool {
	return true
}

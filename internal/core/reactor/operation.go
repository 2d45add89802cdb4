package reactor

import (
	"golang.org/x/sys/unix"

	"github.com/dep2p/go-udpmesh/internal/core/task"
)

// Kind 操作类型
type Kind int

const (
	// KindNone 未知
	KindNone Kind = iota
	// KindSend 发送数据报
	KindSend
	// KindReceive 接收数据报
	KindReceive
)

// String 返回类型名
func (k Kind) String() string {
	switch k {
	case KindSend:
		return "send"
	case KindReceive:
		return "receive"
	default:
		return "none"
	}
}

// Operation 可提交给反应器的操作
//
// Attempt 只由反应器的轮询 goroutine 调用；ok 为 false 表示套接字
// 暂不可用（EAGAIN），操作保持挂起。Complete 恰好被调用一次。
type Operation interface {
	Kind() Kind
	Attempt(fd int) (result int, ok bool)
	Complete(result int)
}

// Completion 完成队列条目
type Completion struct {
	Op     Operation
	Result int
}

// attemptResult 将系统调用结果转换为有符号结果
func attemptResult(n int, err error) (int, bool) {
	if err == nil {
		return n, true
	}
	errno, isErrno := err.(unix.Errno)
	if !isErrno {
		return -int(unix.EIO), true
	}
	if errno == unix.EAGAIN || errno == unix.EWOULDBLOCK {
		return 0, false
	}
	return -int(errno), true
}

// ============================================================================
//                              SendOp
// ============================================================================

// SendOp 发送数据报操作
//
// 结果为内核接受的字节数。UDP 无部分发送重试，结果即数据报最终大小。
type SendOp struct {
	to   unix.Sockaddr
	data []byte
	t    *task.Task[int]
}

// NewSendOp 创建发送操作
func NewSendOp(to unix.Sockaddr, data []byte) *SendOp {
	return &SendOp{to: to, data: data, t: task.New[int]()}
}

// Kind 返回操作类型
func (op *SendOp) Kind() Kind { return KindSend }

// Attempt 执行非阻塞 sendmsg
func (op *SendOp) Attempt(fd int) (int, bool) {
	return attemptResult(unix.SendmsgN(fd, op.data, nil, op.to, 0))
}

// Complete 以原始结果完成操作
func (op *SendOp) Complete(result int) {
	if result < 0 {
		op.t.Fail(resultError(KindSend, result))
		return
	}
	op.t.Resolve(result)
}

// Task 返回操作的完成任务
func (op *SendOp) Task() *task.Task[int] { return op.t }

// ============================================================================
//                              RecvOp
// ============================================================================

// RecvOp 接收数据报操作
//
// 提交时的缓冲区长度即最大接收长度，只有 buf[:result] 有效。
// 完成后 From 返回数据报来源地址。
type RecvOp struct {
	buf       []byte
	from      unix.Sockaddr
	truncated bool
	t         *task.Task[int]
}

// NewRecvOp 创建接收操作
func NewRecvOp(buf []byte) *RecvOp {
	return &RecvOp{buf: buf, t: task.New[int]()}
}

// Kind 返回操作类型
func (op *RecvOp) Kind() Kind { return KindReceive }

// Attempt 执行非阻塞 recvmsg
func (op *RecvOp) Attempt(fd int) (int, bool) {
	n, _, flags, from, err := unix.Recvmsg(fd, op.buf, nil, 0)
	result, ok := attemptResult(n, err)
	if ok && result >= 0 {
		op.from = from
		op.truncated = flags&unix.MSG_TRUNC != 0
	}
	return result, ok
}

// Complete 以原始结果完成操作
func (op *RecvOp) Complete(result int) {
	if result < 0 {
		op.t.Fail(resultError(KindReceive, result))
		return
	}
	op.t.Resolve(result)
}

// Task 返回操作的完成任务
func (op *RecvOp) Task() *task.Task[int] { return op.t }

// Buffer 返回接收缓冲区
func (op *RecvOp) Buffer() []byte { return op.buf }

// From 返回来源地址，完成前为 nil
func (op *RecvOp) From() unix.Sockaddr { return op.from }

// Truncated 数据报是否超过缓冲区而被截断
func (op *RecvOp) Truncated() bool { return op.truncated }

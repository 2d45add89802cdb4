// Package reactor 实现单套接字提交/完成队列反应器
//
// 每个 Reactor 绑定一个非阻塞 UDP 文件描述符：
//   - 提交队列：有界 channel，任意 goroutine 通过 Submit 入队
//   - 轮询 goroutine：唯一执行该 fd 系统调用的执行上下文，
//     遇到 EAGAIN 时挂起操作并在 epoll 上等待就绪
//   - 完成队列：轮询 goroutine 推入 Completion，DrainOne 取出并
//     调用 op.Complete 唤醒对应任务
//
// 结果为有符号整数：负数为 -errno，非负为传输字节数。
package reactor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/dep2p/go-udpmesh/pkg/lib/log"
)

// 默认参数
const (
	// DefaultQueueDepth 默认队列深度
	DefaultQueueDepth = 32

	// DefaultMaxBackoff 提交队列满时的最大退避
	DefaultMaxBackoff = 50 * time.Millisecond

	minBackoff = time.Millisecond
)

// Option 反应器选项
type Option func(*Reactor)

// WithQueueDepth 设置提交/完成队列深度
func WithQueueDepth(n int) Option {
	return func(r *Reactor) {
		if n > 0 {
			r.depth = n
		}
	}
}

// WithMaxBackoff 设置提交重试的最大退避
func WithMaxBackoff(d time.Duration) Option {
	return func(r *Reactor) {
		if d > 0 {
			r.maxBackoff = d
		}
	}
}

// WithLogger 注入日志输出
func WithLogger(s log.Sink) Option {
	return func(r *Reactor) {
		r.logger = s
	}
}

// Reactor 提交/完成队列反应器
type Reactor struct {
	fd         int
	depth      int
	maxBackoff time.Duration
	logger     log.Sink

	poller poller

	sq chan Operation
	cq chan Completion

	// mu 保护 closed，保证关闭后不再有操作进入提交队列
	mu      sync.RWMutex
	closed  bool
	closing chan struct{}
	exited  chan struct{}
	started atomic.Bool
	once    sync.Once
	stop    sync.Once

	// 仅由轮询 goroutine 访问
	sends []Operation
	recvs []Operation

	submitted atomic.Uint64
	completed atomic.Uint64
	pending   atomic.Int64
}

// New 创建绑定 fd 的反应器
func New(fd int, opts ...Option) (*Reactor, error) {
	if fd < 0 {
		return nil, ErrInvalidFD
	}

	r := &Reactor{
		fd:         fd,
		depth:      DefaultQueueDepth,
		maxBackoff: DefaultMaxBackoff,
		closing:    make(chan struct{}),
		exited:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = log.OrDefault(r.logger, "core/reactor")

	p, err := newPoller(fd)
	if err != nil {
		return nil, err
	}
	r.poller = p
	r.sq = make(chan Operation, r.depth)
	r.cq = make(chan Completion, r.depth)

	return r, nil
}

// Start 启动轮询 goroutine
func (r *Reactor) Start() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	if !r.started.CompareAndSwap(false, true) {
		return nil
	}
	go r.run()
	r.logger.Debug("反应器已启动", "fd", r.fd, "depth", r.depth)
	return nil
}

// Submit 提交操作，立即返回
//
// 提交队列满时以指数退避重试，直至入队、ctx 结束或反应器关闭；
// 操作不会被静默丢弃。
func (r *Reactor) Submit(ctx context.Context, op Operation) error {
	backoff := minBackoff
	for {
		queued, err := r.trySubmit(op)
		if err != nil {
			return err
		}
		if queued {
			r.submitted.Add(1)
			r.pending.Add(1)
			r.wake()
			return nil
		}

		r.logger.Debug("提交队列已满，退避重试", "kind", op.Kind(), "backoff", backoff)
		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-r.closing:
			timer.Stop()
			return ErrClosed
		}

		backoff *= 2
		if backoff > r.maxBackoff {
			backoff = r.maxBackoff
		}
	}
}

func (r *Reactor) trySubmit(op Operation) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false, ErrClosed
	}
	select {
	case r.sq <- op:
		return true, nil
	default:
		return false, nil
	}
}

// DrainOne 等待任意一个完成并分发给其操作
func (r *Reactor) DrainOne(ctx context.Context) (Completion, error) {
	select {
	case c := <-r.cq:
		r.dispatch(c)
		return c, nil
	case <-r.closing:
		return Completion{}, ErrClosed
	case <-ctx.Done():
		return Completion{}, ctx.Err()
	}
}

// Pump 循环分发完成，直至 ctx 结束或反应器关闭
func (r *Reactor) Pump(ctx context.Context) error {
	for {
		if _, err := r.DrainOne(ctx); err != nil {
			return err
		}
	}
}

func (r *Reactor) dispatch(c Completion) {
	r.pending.Add(-1)
	r.completed.Add(1)
	c.Op.Complete(c.Result)
}

// Close 停止轮询，挂起的操作以 -ECANCELED 完成
func (r *Reactor) Close() error {
	var err error
	r.once.Do(func() {
		r.markClosed()
		if r.started.Load() {
			r.wake()
			<-r.exited
		}

		r.cancelQueued()
		err = multierr.Append(err, r.poller.close())
		r.logger.Debug("反应器已关闭", "fd", r.fd)
	})
	return err
}

// markClosed 拒绝后续提交并通知所有等待方，可重复调用
func (r *Reactor) markClosed() {
	r.stop.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.closing)
	})
}

// cancelQueued 完成提交队列与完成队列中的剩余条目
func (r *Reactor) cancelQueued() {
	for {
		select {
		case op := <-r.sq:
			r.dispatch(Completion{Op: op, Result: -int(unix.ECANCELED)})
		case c := <-r.cq:
			r.dispatch(c)
		default:
			return
		}
	}
}

// Pending 已提交未完成的操作数
func (r *Reactor) Pending() int {
	return int(r.pending.Load())
}

// Submitted 累计提交数
func (r *Reactor) Submitted() uint64 {
	return r.submitted.Load()
}

// Completed 累计完成数
func (r *Reactor) Completed() uint64 {
	return r.completed.Load()
}

func (r *Reactor) wake() {
	if err := r.poller.wake(); err != nil {
		r.logger.Warn("唤醒轮询失败", "err", err)
	}
}

// ============================================================================
//                              轮询 goroutine
// ============================================================================

func (r *Reactor) run() {
	defer close(r.exited)

	for {
		r.takeSubmissions()
		r.sends = r.attemptAll(r.sends)
		r.recvs = r.attemptAll(r.recvs)

		select {
		case <-r.closing:
			r.failParked()
			return
		default:
		}

		if err := r.poller.wait(); err != nil {
			r.logger.Error("轮询等待失败，反应器关闭", "err", err)
			r.markClosed()
			r.failParked()
			r.cancelQueued()
			return
		}
	}
}

// takeSubmissions 非阻塞取出全部已提交操作
func (r *Reactor) takeSubmissions() {
	for {
		select {
		case op := <-r.sq:
			if op.Kind() == KindSend {
				r.sends = append(r.sends, op)
			} else {
				r.recvs = append(r.recvs, op)
			}
		default:
			return
		}
	}
}

// attemptAll 按提交顺序尝试挂起操作，遇到 EAGAIN 即停止
func (r *Reactor) attemptAll(ops []Operation) []Operation {
	i := 0
	for ; i < len(ops); i++ {
		result, ok := ops[i].Attempt(r.fd)
		if !ok {
			break
		}
		r.push(Completion{Op: ops[i], Result: result})
	}
	remaining := copy(ops, ops[i:])
	for j := remaining; j < len(ops); j++ {
		ops[j] = nil
	}
	return ops[:remaining]
}

// push 将完成推入完成队列，关闭中直接分发
func (r *Reactor) push(c Completion) {
	select {
	case r.cq <- c:
	case <-r.closing:
		r.dispatch(c)
	}
}

// failParked 以 -ECANCELED 完成所有挂起操作
func (r *Reactor) failParked() {
	for _, op := range append(r.sends, r.recvs...) {
		r.dispatch(Completion{Op: op, Result: -int(unix.ECANCELED)})
	}
	r.sends, r.recvs = nil, nil
}

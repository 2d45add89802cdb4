// Package udp 提供基于完成队列反应器的 UDP 套接字
//
// Socket 拥有一个非阻塞 IPv4 数据报套接字和绑定其上的 reactor：
//
//	s, err := udp.New(udp.Config{Port: 9000})
//	n, err := s.Send(ctx, "127.0.0.1", 9001, []byte("hello"))
//	dg, err := s.ReceiveFrom(ctx, buf)
//
// 所有异步操作返回 task.Task，由套接字的完成泵 goroutine 唤醒。
package udp

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/dep2p/go-udpmesh/internal/config"
	"github.com/dep2p/go-udpmesh/internal/core/metrics"
	"github.com/dep2p/go-udpmesh/internal/core/reactor"
	"github.com/dep2p/go-udpmesh/internal/core/task"
	"github.com/dep2p/go-udpmesh/pkg/lib/log"
	"github.com/dep2p/go-udpmesh/pkg/types"
)

// Config 套接字配置
type Config struct {
	// BindAddress 绑定的 IPv4 地址，空表示 0.0.0.0
	BindAddress string

	// Port 绑定端口，0 表示由系统分配
	Port uint16

	// QueueDepth 反应器队列深度
	QueueDepth int

	// MaxBackoff 提交队列满时的最大退避
	MaxBackoff time.Duration
}

// NewConfig 创建默认配置
func NewConfig() Config {
	return Config{
		BindAddress: "0.0.0.0",
		QueueDepth:  reactor.DefaultQueueDepth,
		MaxBackoff:  reactor.DefaultMaxBackoff,
	}
}

// ConfigFromUnified 从统一配置创建套接字配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return NewConfig()
	}
	return Config{
		BindAddress: cfg.Node.BindAddress,
		Port:        uint16(cfg.Node.Port),
		QueueDepth:  cfg.Socket.QueueDepth,
		MaxBackoff:  cfg.Socket.SubmitMaxBackoff.Duration(),
	}
}

// Datagram 接收到的数据报
type Datagram struct {
	// Data 数据报内容
	Data []byte

	// From 发送方端点
	From types.Endpoint

	// Truncated 数据报超过缓冲区，超出部分已丢弃
	Truncated bool
}

// Option 套接字选项
type Option func(*Socket)

// WithLogger 注入日志输出
func WithLogger(s log.Sink) Option {
	return func(sock *Socket) {
		sock.logger = s
	}
}

// WithMetrics 注入指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(sock *Socket) {
		sock.metrics = m
	}
}

// Socket 基于反应器的 UDP 套接字
type Socket struct {
	fd      int
	port    uint16
	reactor *reactor.Reactor
	logger  log.Sink
	metrics *metrics.Metrics

	pumpDone chan struct{}
	closed   atomic.Bool
	once     sync.Once
	closeErr error
}

// New 创建、绑定套接字并启动反应器
//
// 端口已被占用等绑定失败返回 *BindError。
func New(cfg Config, opts ...Option) (*Socket, error) {
	s := &Socket{fd: -1, pumpDone: make(chan struct{})}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.OrDefault(s.logger, "core/transport/udp")

	bindAddr := cfg.BindAddress
	if bindAddr == "" {
		bindAddr = "0.0.0.0"
	}
	display := net.JoinHostPort(bindAddr, strconv.Itoa(int(cfg.Port)))

	ip, err := netip.ParseAddr(bindAddr)
	if err != nil || !ip.Unmap().Is4() {
		return nil, &BindError{Addr: display, Err: ErrInvalidAddress}
	}

	fd, err := openSocket()
	if err != nil {
		return nil, &BindError{Addr: display, Err: err}
	}
	s.fd = fd

	if err := unix.Bind(fd, &unix.SockaddrInet4{Addr: ip.Unmap().As4(), Port: int(cfg.Port)}); err != nil {
		_ = unix.Close(fd)
		return nil, &BindError{Addr: display, Err: err}
	}

	sa, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, &BindError{Addr: display, Err: err}
	}
	s.port = endpointOf(sa).Port

	r, err := reactor.New(fd,
		reactor.WithQueueDepth(cfg.QueueDepth),
		reactor.WithMaxBackoff(cfg.MaxBackoff),
		reactor.WithLogger(s.logger),
	)
	if err != nil {
		_ = unix.Close(fd)
		return nil, &BindError{Addr: display, Err: err}
	}
	if err := r.Start(); err != nil {
		_ = r.Close()
		_ = unix.Close(fd)
		return nil, &BindError{Addr: display, Err: err}
	}
	s.reactor = r

	go s.pump()

	s.logger.Info("UDP 套接字已绑定", "addr", bindAddr, "port", s.port)
	return s, nil
}

// openSocket 创建非阻塞、close-on-exec 的 IPv4 数据报套接字
func openSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}
	unix.CloseOnExec(fd)

	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("set nonblock: %w", err)
	}
	// 不设置 SO_REUSEADDR/SO_REUSEPORT：Linux 上二者都允许 UDP 端口被重复绑定
	return fd, nil
}

// pump 完成泵：分发完成队列直至反应器关闭
func (s *Socket) pump() {
	defer close(s.pumpDone)
	_ = s.reactor.Pump(context.Background())
}

// LocalPort 返回实际绑定的端口
func (s *Socket) LocalPort() uint16 {
	return s.port
}

// ============================================================================
//                              发送
// ============================================================================

// SendAsync 提交发送，返回完成时携带字节数的任务
func (s *Socket) SendAsync(ctx context.Context, address string, port uint16, data []byte) *task.Task[int] {
	if s.closed.Load() {
		return task.Failed[int](ErrSocketClosed)
	}

	sa, err := resolve(address, port)
	if err != nil {
		return task.Failed[int](err)
	}

	op := &sendOp{SendOp: reactor.NewSendOp(sa, data), metrics: s.metrics}
	if err := s.reactor.Submit(ctx, op); err != nil {
		return task.Failed[int](s.submitError(err))
	}
	return op.Task()
}

// Send 发送数据报并等待完成
func (s *Socket) Send(ctx context.Context, address string, port uint16, data []byte) (int, error) {
	return s.SendAsync(ctx, address, port, data).Await(ctx)
}

// SendTo 向端点发送数据报
func (s *Socket) SendTo(ctx context.Context, to types.Endpoint, data []byte) (int, error) {
	return s.Send(ctx, to.Address, to.Port, data)
}

// ============================================================================
//                              接收
// ============================================================================

// ReceiveAsync 提交接收，缓冲区由套接字分配
func (s *Socket) ReceiveAsync(ctx context.Context, size int) *task.Task[Datagram] {
	if size <= 0 {
		return task.Failed[Datagram](ErrInvalidSize)
	}
	return s.receive(ctx, make([]byte, size))
}

// ReceiveFrom 接收数据报到 buf 并返回来源
//
// ctx 结束时操作仍在进行，buf 在其完成前不可复用。
func (s *Socket) ReceiveFrom(ctx context.Context, buf []byte) (Datagram, error) {
	if len(buf) == 0 {
		return Datagram{}, ErrInvalidSize
	}
	return s.receive(ctx, buf).Await(ctx)
}

// Receive 接收数据报到 buf，返回字节数
func (s *Socket) Receive(ctx context.Context, buf []byte) (int, error) {
	dg, err := s.ReceiveFrom(ctx, buf)
	if err != nil {
		return 0, err
	}
	return len(dg.Data), nil
}

func (s *Socket) receive(ctx context.Context, buf []byte) *task.Task[Datagram] {
	if s.closed.Load() {
		return task.Failed[Datagram](ErrSocketClosed)
	}

	op := &recvOp{RecvOp: reactor.NewRecvOp(buf), metrics: s.metrics, t: task.New[Datagram]()}
	if err := s.reactor.Submit(ctx, op); err != nil {
		return task.Failed[Datagram](s.submitError(err))
	}
	return op.t
}

func (s *Socket) submitError(err error) error {
	if err == reactor.ErrClosed {
		return ErrSocketClosed
	}
	return err
}

// ============================================================================
//                              关闭
// ============================================================================

// Close 关闭反应器与套接字，可重复调用
//
// 挂起的操作以 ECANCELED 失败。
func (s *Socket) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		s.closeErr = multierr.Append(s.closeErr, s.reactor.Close())
		<-s.pumpDone
		s.closeErr = multierr.Append(s.closeErr, unix.Close(s.fd))
		s.logger.Info("UDP 套接字已关闭", "port", s.port)
	})
	return s.closeErr
}

// ============================================================================
//                              操作包装
// ============================================================================

// sendOp 在完成时记录指标
type sendOp struct {
	*reactor.SendOp
	metrics *metrics.Metrics
}

func (op *sendOp) Complete(result int) {
	if result < 0 {
		op.metrics.RecordIOError(reactor.KindSend.String())
	} else {
		op.metrics.RecordSent(result)
	}
	op.SendOp.Complete(result)
}

// recvOp 在完成时构造 Datagram
type recvOp struct {
	*reactor.RecvOp
	metrics *metrics.Metrics
	t       *task.Task[Datagram]
}

func (op *recvOp) Complete(result int) {
	op.RecvOp.Complete(result)

	n, err := op.RecvOp.Task().Result()
	if err != nil {
		op.metrics.RecordIOError(reactor.KindReceive.String())
		op.t.Fail(err)
		return
	}

	op.metrics.RecordReceived(n)
	op.t.Resolve(Datagram{
		Data:      op.Buffer()[:n],
		From:      endpointOf(op.From()),
		Truncated: op.Truncated(),
	})
}

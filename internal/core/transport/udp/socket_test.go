package udp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"golang.org/x/sys/unix"

	"github.com/dep2p/go-udpmesh/internal/config"
	"github.com/dep2p/go-udpmesh/internal/core/metrics"
	"github.com/dep2p/go-udpmesh/internal/core/reactor"
	"github.com/dep2p/go-udpmesh/pkg/lib/log"
	"github.com/dep2p/go-udpmesh/pkg/types"
)

func newLoopback(t *testing.T, opts ...Option) *Socket {
	t.Helper()

	cfg := NewConfig()
	cfg.BindAddress = "127.0.0.1"
	s, err := New(cfg, append([]Option{WithLogger(log.Discard())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSocket_EphemeralPort 测试端口 0 分配临时端口
func TestSocket_EphemeralPort(t *testing.T) {
	s := newLoopback(t)
	assert.NotZero(t, s.LocalPort())
}

// TestSocket_SendReceiveExact 测试收发字节完全一致
func TestSocket_SendReceiveExact(t *testing.T) {
	ctx := testContext(t)
	a := newLoopback(t)
	b := newLoopback(t)

	recv := b.ReceiveAsync(ctx, 64)

	payload := []byte{0x01, 0x02, 0x03, 0x04}
	n, err := a.Send(ctx, "127.0.0.1", b.LocalPort(), payload)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	dg, err := recv.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, payload, dg.Data)
	assert.False(t, dg.Truncated)
	assert.Equal(t, "127.0.0.1", dg.From.Address)
	assert.Equal(t, a.LocalPort(), dg.From.Port)
}

// TestSocket_ReceiveIntoBuffer 测试接收到调用方缓冲区
func TestSocket_ReceiveIntoBuffer(t *testing.T) {
	ctx := testContext(t)
	a := newLoopback(t)
	b := newLoopback(t)

	done := make(chan struct{})
	buf := make([]byte, 3)
	var n int
	var recvErr error
	go func() {
		defer close(done)
		n, recvErr = b.Receive(ctx, buf)
	}()

	_, err := a.SendTo(ctx, types.NewEndpoint("127.0.0.1", b.LocalPort()), []byte("hello"))
	require.NoError(t, err)

	<-done
	require.NoError(t, recvErr)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("hel"), buf)
}

// TestSocket_ResolveHostname 测试主机名解析
func TestSocket_ResolveHostname(t *testing.T) {
	ctx := testContext(t)
	a := newLoopback(t)
	b := newLoopback(t)

	recv := b.ReceiveAsync(ctx, 16)
	_, err := a.Send(ctx, "localhost", b.LocalPort(), []byte("x"))
	require.NoError(t, err)

	dg, err := recv.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), dg.Data)
}

// TestSocket_BindConflict 测试端口占用时绑定失败
func TestSocket_BindConflict(t *testing.T) {
	a := newLoopback(t)

	cfg := NewConfig()
	cfg.BindAddress = "127.0.0.1"
	cfg.Port = a.LocalPort()
	_, err := New(cfg, WithLogger(log.Discard()))
	require.Error(t, err)

	var bindErr *BindError
	require.True(t, errors.As(err, &bindErr))
	assert.ErrorIs(t, err, unix.EADDRINUSE)
}

// TestSocket_InvalidBindAddress 测试无效绑定地址
func TestSocket_InvalidBindAddress(t *testing.T) {
	cfg := NewConfig()
	cfg.BindAddress = "::1"
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

// TestSocket_InvalidDestination 测试无效目标地址
func TestSocket_InvalidDestination(t *testing.T) {
	ctx := testContext(t)
	s := newLoopback(t)

	_, err := s.Send(ctx, "not a host!", 9, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = s.Send(ctx, "::1", 9, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

// TestSocket_SendFailure 测试发送失败返回 IOError
func TestSocket_SendFailure(t *testing.T) {
	ctx := testContext(t)
	m, err := metrics.New()
	require.NoError(t, err)
	s := newLoopback(t, WithMetrics(m))

	_, err = s.Send(ctx, "127.0.0.1", 0, []byte("x"))
	var ioErr *reactor.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "send", ioErr.Op)

	n, err := testutil.GatherAndCount(m.Gatherer(), "udpmesh_io_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestSocket_Metrics 测试收发计数
func TestSocket_Metrics(t *testing.T) {
	ctx := testContext(t)
	ma, err := metrics.New()
	require.NoError(t, err)
	mb, err := metrics.New()
	require.NoError(t, err)

	a := newLoopback(t, WithMetrics(ma))
	b := newLoopback(t, WithMetrics(mb))

	recv := b.ReceiveAsync(ctx, 16)
	_, err = a.Send(ctx, "127.0.0.1", b.LocalPort(), []byte("abcd"))
	require.NoError(t, err)
	_, err = recv.Await(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(4), ma.Snapshot().BytesSent)
	assert.Equal(t, int64(4), mb.Snapshot().BytesReceived)
}

// TestSocket_Close 测试关闭取消挂起接收
func TestSocket_Close(t *testing.T) {
	ctx := testContext(t)

	cfg := NewConfig()
	cfg.BindAddress = "127.0.0.1"
	s, err := New(cfg, WithLogger(log.Discard()))
	require.NoError(t, err)

	recv := s.ReceiveAsync(ctx, 16)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = recv.Await(ctx)
	assert.ErrorIs(t, err, unix.ECANCELED)

	_, err = s.Send(ctx, "127.0.0.1", 9, []byte("x"))
	assert.ErrorIs(t, err, ErrSocketClosed)
	_, err = s.ReceiveAsync(ctx, 8).Await(ctx)
	assert.ErrorIs(t, err, ErrSocketClosed)
}

// TestSocket_InvalidSize 测试无效缓冲区大小
func TestSocket_InvalidSize(t *testing.T) {
	ctx := testContext(t)
	s := newLoopback(t)

	_, err := s.ReceiveAsync(ctx, 0).Await(ctx)
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = s.ReceiveFrom(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

// TestModule 测试 Fx 模块生命周期
func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Node.BindAddress = "127.0.0.1"

	var s *Socket
	app := fxtest.New(t,
		config.Module(cfg),
		Module,
		fx.Populate(&s),
	)
	app.RequireStart()
	require.NotNil(t, s)
	assert.NotZero(t, s.LocalPort())

	app.RequireStop()
	assert.True(t, s.closed.Load())
}

func TestConfigFromUnified(t *testing.T) {
	assert.Equal(t, NewConfig(), ConfigFromUnified(nil))

	cfg := config.NewConfig()
	cfg.Node.Port = 4000
	got := ConfigFromUnified(cfg)
	assert.Equal(t, uint16(4000), got.Port)
	assert.Equal(t, 32, got.QueueDepth)
	assert.Equal(t, 50*time.Millisecond, got.MaxBackoff)
}

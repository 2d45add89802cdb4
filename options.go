package udpmesh

import (
	"errors"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-udpmesh/internal/core/eventbus"
	"github.com/dep2p/go-udpmesh/internal/core/metrics"
	"github.com/dep2p/go-udpmesh/internal/core/transport/udp"
	"github.com/dep2p/go-udpmesh/pkg/lib/log"
)

// Option 节点选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	logger     log.Sink
	clock      clock.Clock
	metrics    *metrics.Metrics
	registerer prometheus.Registerer
	socket     *udp.Socket
	dispatcher *eventbus.Dispatcher
}

// WithLogger 注入日志输出，未设置时使用组件 LazyLogger
func WithLogger(s log.Sink) Option {
	return func(o *options) error {
		o.logger = s
		return nil
	}
}

// WithClock 设置时钟（节点表时间戳与循环定时器）
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		if c == nil {
			return errors.New("clock cannot be nil")
		}
		o.clock = c
		return nil
	}
}

// WithMetrics 使用已创建的指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) error {
		o.metrics = m
		return nil
	}
}

// WithRegisterer 将节点指标注册到指定 Registerer
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = r
		return nil
	}
}

// WithSocket 使用已绑定的套接字
func WithSocket(s *udp.Socket) Option {
	return func(o *options) error {
		o.socket = s
		return nil
	}
}

// WithDispatcher 使用共享的事件分发器
func WithDispatcher(d *eventbus.Dispatcher) Option {
	return func(o *options) error {
		o.dispatcher = d
		return nil
	}
}

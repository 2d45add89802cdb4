package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-udpmesh/internal/core/metrics"
	"github.com/dep2p/go-udpmesh/pkg/lib/log"
	"github.com/dep2p/go-udpmesh/pkg/types"
)

// ErrNilHandler 处理器为空
var ErrNilHandler = errors.New("eventbus: nil handler")

// Handler 事件处理器
type Handler func(ctx context.Context, ev types.Event) error

// HandlerError 处理器失败
type HandlerError struct {
	// Topic 事件主题
	Topic string

	// Index 失败处理器在快照中的位置
	Index int

	// Err 处理器返回的错误
	Err error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %d for %s failed: %v", e.Index, e.Topic, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// ============================================================================
//                              Dispatcher
// ============================================================================

type entry struct {
	id uint64
	h  Handler
}

// Option 分发器选项
type Option func(*Dispatcher)

// WithLogger 注入日志输出
func WithLogger(s log.Sink) Option {
	return func(d *Dispatcher) {
		d.logger = s
	}
}

// WithMetrics 注入指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// Dispatcher 事件分发器
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]entry

	nextID  atomic.Uint64
	logger  log.Sink
	metrics *metrics.Metrics
}

// New 创建分发器
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string][]entry),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = log.OrDefault(d.logger, "core/eventbus")
	return d
}

// Subscribe 订阅主题
//
// 处理器按订阅顺序调用。同一处理器订阅两次会被调用两次。
func (d *Dispatcher) Subscribe(topic string, h Handler) *Subscription {
	if h == nil {
		panic(ErrNilHandler)
	}

	id := d.nextID.Add(1)

	d.mu.Lock()
	// 写时复制：分发中的快照不受影响
	old := d.handlers[topic]
	next := make([]entry, len(old), len(old)+1)
	copy(next, old)
	d.handlers[topic] = append(next, entry{id: id, h: h})
	d.mu.Unlock()

	d.logger.Debug("订阅事件", "topic", topic, "id", id)
	return &Subscription{d: d, topic: topic, id: id}
}

// unsubscribe 移除指定订阅
func (d *Dispatcher) unsubscribe(topic string, id uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	old := d.handlers[topic]
	for i, e := range old {
		if e.id != id {
			continue
		}
		next := make([]entry, 0, len(old)-1)
		next = append(next, old[:i]...)
		next = append(next, old[i+1:]...)
		if len(next) == 0 {
			delete(d.handlers, topic)
		} else {
			d.handlers[topic] = next
		}
		return true
	}
	return false
}

// Dispatch 同步分发事件
//
// 返回第一个失败处理器的 *HandlerError，其后的处理器不会被调用。
func (d *Dispatcher) Dispatch(ctx context.Context, ev types.Event) error {
	if ev == nil {
		return nil
	}
	topic := ev.Topic()

	d.mu.RLock()
	snapshot := d.handlers[topic]
	d.mu.RUnlock()

	d.metrics.RecordEvent(topic)

	for i, e := range snapshot {
		if err := e.h(ctx, ev); err != nil {
			d.logger.Debug("事件处理器失败", "topic", topic, "index", i, "err", err)
			return &HandlerError{Topic: topic, Index: i, Err: err}
		}
	}
	return nil
}

// HandlerCount 返回主题的处理器数量
func (d *Dispatcher) HandlerCount(topic string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[topic])
}

// ============================================================================
//                              Subscription
// ============================================================================

// Subscription 订阅句柄
type Subscription struct {
	d      *Dispatcher
	topic  string
	id     uint64
	cancel sync.Once
}

// Topic 返回订阅的主题
func (s *Subscription) Topic() string {
	return s.topic
}

// Cancel 取消订阅，可重复调用
func (s *Subscription) Cancel() {
	s.cancel.Do(func() {
		s.d.unsubscribe(s.topic, s.id)
	})
}

// ============================================================================
//                              类型化订阅
// ============================================================================

// topicOf 返回事件类型的主题
func topicOf[E types.Event]() string {
	var zero E
	return zero.Topic()
}

// SubscribeTyped 以具体事件类型订阅
//
//	eventbus.SubscribeTyped(d, func(ctx context.Context, ev types.SleepFor) error { ... })
func SubscribeTyped[E types.Event](d *Dispatcher, fn func(ctx context.Context, ev E) error) *Subscription {
	return d.Subscribe(topicOf[E](), func(ctx context.Context, ev types.Event) error {
		typed, ok := ev.(E)
		if !ok {
			return nil
		}
		return fn(ctx, typed)
	})
}

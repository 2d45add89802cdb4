package metrics

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

// DefaultNamespace 默认指标命名空间
const DefaultNamespace = "udpmesh"

// 丢弃原因标签
const (
	DropSelf      = "self"
	DropDuplicate = "duplicate"
	DropRateLimit = "rate_limited"
	DropOversize  = "oversize"
	DropUnknown   = "unknown_type"
)

// Snapshot 指标快照
type Snapshot struct {
	DatagramsSent     int64
	DatagramsReceived int64
	BytesSent         int64
	BytesReceived     int64

	// RateOut / RateIn 最近 60 秒的平均速率（字节/秒）
	RateOut float64
	RateIn  float64
}

// Metrics 节点指标集合
type Metrics struct {
	registry prometheus.Gatherer

	datagramsSent     prometheus.Counter
	datagramsReceived prometheus.Counter
	bytesSent         prometheus.Counter
	bytesReceived     prometheus.Counter
	ioErrors          *prometheus.CounterVec
	decodeErrors      prometheus.Counter
	dropped           *prometheus.CounterVec
	peers             prometheus.Gauge
	events            *prometheus.CounterVec

	sentCount *RateMeter
	recvCount *RateMeter
	sentBytes *RateMeter
	recvBytes *RateMeter
}

// Option 指标选项
type Option func(*options)

type options struct {
	namespace  string
	registerer prometheus.Registerer
	clock      clock.Clock
}

// WithNamespace 设置命名空间
func WithNamespace(ns string) Option {
	return func(o *options) {
		if ns != "" {
			o.namespace = ns
		}
	}
}

// WithRegisterer 注册到指定 Registerer
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = r
	}
}

// WithClock 设置速率计算使用的时钟
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// New 创建并注册指标
//
// 未指定 Registerer 时注册到私有 Registry，多个节点可在同一进程共存。
func New(opts ...Option) (*Metrics, error) {
	o := &options{namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(o)
	}

	m := &Metrics{
		datagramsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "datagrams_sent_total",
			Help:      "Total datagrams sent.",
		}),
		datagramsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "datagrams_received_total",
			Help:      "Total datagrams received.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "bytes_sent_total",
			Help:      "Total bytes sent.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "bytes_received_total",
			Help:      "Total bytes received.",
		}),
		ioErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "io_errors_total",
			Help:      "Total failed socket operations.",
		}, []string{"op"}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "decode_errors_total",
			Help:      "Total datagrams that failed to decode.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "dropped_messages_total",
			Help:      "Total inbound messages dropped.",
		}, []string{"reason"}),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: o.namespace,
			Name:      "peers",
			Help:      "Number of peers in the peer table.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "events_dispatched_total",
			Help:      "Total events dispatched.",
		}, []string{"topic"}),

		sentCount: NewRateMeter(o.clock),
		recvCount: NewRateMeter(o.clock),
		sentBytes: NewRateMeter(o.clock),
		recvBytes: NewRateMeter(o.clock),
	}

	reg := o.registerer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg = r
		m.registry = r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		m.registry = g
	}

	var err error
	for _, c := range m.collectors() {
		err = multierr.Append(err, reg.Register(c))
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.datagramsSent, m.datagramsReceived,
		m.bytesSent, m.bytesReceived,
		m.ioErrors, m.decodeErrors, m.dropped,
		m.peers, m.events,
	}
}

// Gatherer 返回指标所在的 Gatherer，注册到非 Gatherer 时为 nil
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return nil
	}
	return m.registry
}

// ============================================================================
//                              记录方法
// ============================================================================

// RecordSent 记录一次发送
func (m *Metrics) RecordSent(n int) {
	if m == nil {
		return
	}
	m.datagramsSent.Inc()
	m.bytesSent.Add(float64(n))
	m.sentCount.Add(1)
	m.sentBytes.Add(int64(n))
}

// RecordReceived 记录一次接收
func (m *Metrics) RecordReceived(n int) {
	if m == nil {
		return
	}
	m.datagramsReceived.Inc()
	m.bytesReceived.Add(float64(n))
	m.recvCount.Add(1)
	m.recvBytes.Add(int64(n))
}

// RecordIOError 记录 I/O 失败
func (m *Metrics) RecordIOError(op string) {
	if m == nil {
		return
	}
	m.ioErrors.WithLabelValues(op).Inc()
}

// RecordDecodeError 记录解码失败
func (m *Metrics) RecordDecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

// RecordDropped 记录丢弃的消息
func (m *Metrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

// SetPeers 设置节点表大小
func (m *Metrics) SetPeers(n int) {
	if m == nil {
		return
	}
	m.peers.Set(float64(n))
}

// RecordEvent 记录一次事件分发
func (m *Metrics) RecordEvent(topic string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(topic).Inc()
}

// Snapshot 返回当前计数快照
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		DatagramsSent:     m.sentCount.Total(),
		DatagramsReceived: m.recvCount.Total(),
		BytesSent:         m.sentBytes.Total(),
		BytesReceived:     m.recvBytes.Total(),
		RateOut:           m.sentBytes.Rate(),
		RateIn:            m.recvBytes.Rate(),
	}
}

// Package discovery 实现节点发现与心跳协议
//
// 所有控制消息复用 Message 封装：
//
//	A → B  Discovery          空载荷，A 记录请求 ID 的发送时间
//	B → A  DiscoveryResponse  request_id，A 据此计算到 B 的 RTT
//	B → A  PeerList           B 已知的其他活跃节点（可选）
//	*      Heartbeat          空载荷，只刷新接收方的 LastSeen
//
// 自身发出的消息与最近出现过的 (SourceID, ID) 会被丢弃。
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"go.uber.org/multierr"

	"github.com/dep2p/go-udpmesh/internal/config"
	"github.com/dep2p/go-udpmesh/internal/core/metrics"
	"github.com/dep2p/go-udpmesh/internal/core/peerstore"
	"github.com/dep2p/go-udpmesh/pkg/lib/log"
	"github.com/dep2p/go-udpmesh/pkg/types"
)

// Host 协议所需的节点能力
type Host interface {
	// ID 返回本节点 ID
	ID() string

	// AddPeer 加入节点（幂等，新节点发布 PeerConnected）
	AddPeer(ctx context.Context, ep types.Endpoint) error

	// NewMessage 以本节点身份构造消息
	NewMessage(typ types.MessageType, payload []byte) types.Message

	// Send 向单个端点发送消息
	Send(ctx context.Context, to types.Endpoint, m types.Message) error

	// BroadcastMessage 向全部活跃节点发送同一消息
	BroadcastMessage(ctx context.Context, m types.Message) error
}

// Config 协议配置
type Config struct {
	MaxPeerListSize int
	ResponseRate    float64
	ResponseBurst   int
	PendingProbes   int
	DedupCacheSize  int
}

// ConfigFromUnified 从统一配置创建协议配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return Config{
		MaxPeerListSize: cfg.Discovery.MaxPeerListSize,
		ResponseRate:    cfg.Discovery.ResponseRate,
		ResponseBurst:   cfg.Discovery.ResponseBurst,
		PendingProbes:   cfg.Discovery.PendingProbes,
		DedupCacheSize:  cfg.Messaging.DedupCacheSize,
	}
}

// Option 服务选项
type Option func(*Service)

// WithLogger 注入日志输出
func WithLogger(s log.Sink) Option {
	return func(svc *Service) {
		svc.logger = s
	}
}

// WithMetrics 注入指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(svc *Service) {
		svc.metrics = m
	}
}

// Service 发现协议服务
type Service struct {
	host     Host
	registry *peerstore.Registry
	config   Config
	logger   log.Sink
	metrics  *metrics.Metrics

	dedup   *Dedup
	probes  *Probes
	limiter *ReplyLimiter
}

// New 创建发现服务
func New(host Host, registry *peerstore.Registry, cfg Config, opts ...Option) (*Service, error) {
	if host == nil {
		return nil, ErrNilHost
	}
	if registry == nil {
		return nil, ErrNilRegistry
	}

	s := &Service{host: host, registry: registry, config: cfg}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.OrDefault(s.logger, "protocol/discovery")

	var err error
	if s.dedup, err = NewDedup(cfg.DedupCacheSize); err != nil {
		return nil, fmt.Errorf("dedup cache: %w", err)
	}
	if s.probes, err = NewProbes(cfg.PendingProbes, registry.Clock()); err != nil {
		return nil, fmt.Errorf("probe cache: %w", err)
	}
	if s.limiter, err = NewReplyLimiter(cfg.PendingProbes, cfg.ResponseRate, cfg.ResponseBurst, registry.Clock()); err != nil {
		return nil, fmt.Errorf("reply limiter: %w", err)
	}
	return s, nil
}

// ============================================================================
//                              出站
// ============================================================================

// Probe 向全部活跃节点广播 Discovery
func (s *Service) Probe(ctx context.Context) error {
	m := s.host.NewMessage(types.MessageTypeDiscovery, nil)
	s.probes.Track(m.Header.ID)

	s.logger.Debug("广播发现请求", "id", m.Header.ID, "peers", s.registry.Len())
	return s.host.BroadcastMessage(ctx, m)
}

// Heartbeat 向全部活跃节点广播心跳
func (s *Service) Heartbeat(ctx context.Context) error {
	return s.host.BroadcastMessage(ctx, s.host.NewMessage(types.MessageTypeHeartbeat, nil))
}

// ============================================================================
//                              入站
// ============================================================================

// HandleInbound 处理一条入站消息
//
// 返回 true 表示消息应作为 MessageReceived 交付给应用（仅 Data）。
// from 为数据报的观察来源。
func (s *Service) HandleInbound(ctx context.Context, m types.Message, from types.Endpoint) (bool, error) {
	h := m.Header

	if h.SourceID == s.host.ID() {
		s.metrics.RecordDropped(metrics.DropSelf)
		return false, nil
	}
	if s.dedup.Seen(h.SourceID, h.ID) {
		s.metrics.RecordDropped(metrics.DropDuplicate)
		s.logger.Debug("丢弃重复消息", "source", h.SourceID, "id", h.ID)
		return false, nil
	}

	src, srcErr := s.ResolveSource(h.SourceID, from)
	if srcErr == nil {
		s.registry.Touch(src.PeerID())
	}

	switch h.Type {
	case types.MessageTypeData:
		return true, nil
	case types.MessageTypeNone:
		s.metrics.RecordDropped(metrics.DropUnknown)
		return false, nil
	}

	if srcErr != nil {
		return false, srcErr
	}

	switch h.Type {
	case types.MessageTypeDiscovery:
		return false, s.handleDiscovery(ctx, m, src)
	case types.MessageTypeDiscoveryResponse:
		return false, s.handleResponse(ctx, m, src)
	case types.MessageTypePeerList:
		return false, s.handlePeerList(ctx, m, src)
	case types.MessageTypeHeartbeat:
		// LastSeen 已刷新
		return false, nil
	default:
		return false, nil
	}
}

// ResolveSource 解析消息源端点
//
// 未指定地址（0.0.0.0 / ::）替换为数据报的观察地址。
func (s *Service) ResolveSource(sourceID string, from types.Endpoint) (types.Endpoint, error) {
	ep, err := types.ParsePeerID(sourceID)
	if err != nil {
		return types.Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if addr, perr := netip.ParseAddr(ep.Address); perr == nil && addr.IsUnspecified() && from.Address != "" {
		ep.Address = from.Address
	}
	return ep, nil
}

func (s *Service) handleDiscovery(ctx context.Context, m types.Message, src types.Endpoint) error {
	if err := s.addPeer(ctx, src); err != nil {
		return err
	}

	if !s.limiter.Allow(src.PeerID()) {
		s.metrics.RecordDropped(metrics.DropRateLimit)
		s.logger.Debug("发现应答被限速", "source", src)
		return nil
	}

	resp := s.host.NewMessage(types.MessageTypeDiscoveryResponse, EncodeDiscoveryResponse(m.Header.ID))
	err := s.host.Send(ctx, src, resp)

	if known := s.knownPeers(src.PeerID()); len(known) > 0 {
		list := s.host.NewMessage(types.MessageTypePeerList, EncodePeerList(known))
		err = multierr.Append(err, s.host.Send(ctx, src, list))
	}
	return err
}

func (s *Service) handleResponse(ctx context.Context, m types.Message, src types.Endpoint) error {
	if err := s.addPeer(ctx, src); err != nil {
		return err
	}

	requestID, err := DecodeDiscoveryResponse(m.Payload)
	if err != nil {
		return err
	}
	if rtt, ok := s.probes.RTT(requestID); ok {
		s.registry.UpdateRTT(src.PeerID(), rtt)
		s.logger.Debug("更新 RTT", "peer", src, "rtt", rtt)
	}
	return nil
}

func (s *Service) handlePeerList(ctx context.Context, m types.Message, src types.Endpoint) error {
	if err := s.addPeer(ctx, src); err != nil {
		return err
	}

	ids, err := DecodePeerList(m.Payload)
	if err != nil {
		return err
	}

	self := s.host.ID()
	for _, id := range ids {
		if id == self {
			continue
		}
		ep, perr := types.ParsePeerID(id)
		if perr != nil {
			s.logger.Debug("忽略无效节点 ID", "peer", id, "err", perr)
			continue
		}
		if err := s.host.AddPeer(ctx, ep); err != nil {
			if errors.Is(err, peerstore.ErrPeerTableFull) {
				s.logger.Debug("节点表已满，停止处理节点列表", "remaining", len(ids))
				return nil
			}
			return err
		}
	}
	return nil
}

// addPeer 加入节点，节点表已满不视为错误
func (s *Service) addPeer(ctx context.Context, ep types.Endpoint) error {
	err := s.host.AddPeer(ctx, ep)
	if errors.Is(err, peerstore.ErrPeerTableFull) {
		return nil
	}
	return err
}

// knownPeers 返回应答方已知的其他活跃节点
func (s *Service) knownPeers(exclude string) []string {
	active := s.registry.Active()
	ids := make([]string, 0, len(active))
	for _, p := range active {
		if len(ids) >= s.config.MaxPeerListSize {
			break
		}
		if id := p.ID(); id != exclude {
			ids = append(ids, id)
		}
	}
	return ids
}

// PendingProbes 返回待应答探测数
func (s *Service) PendingProbes() int {
	return s.probes.Len()
}

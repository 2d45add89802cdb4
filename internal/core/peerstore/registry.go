// Package peerstore 实现节点表
//
// Registry 以 peer id（"address:port"）为键保存 types.Peer：
//   - 所有读写由一把 RWMutex 保护，读操作返回值拷贝
//   - 时间戳来自注入的 clock.Clock，测试可使用 clock.Mock
//   - Registry 不发布事件，调用方根据返回值在释放锁后发布
package peerstore

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-udpmesh/internal/core/metrics"
	"github.com/dep2p/go-udpmesh/pkg/types"
)

// DefaultMaxPeers 默认节点表容量
const DefaultMaxPeers = 256

// Option 节点表选项
type Option func(*Registry)

// WithClock 设置时钟
func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithMaxPeers 设置容量，非正数表示不限制
func WithMaxPeers(n int) Option {
	return func(r *Registry) {
		r.maxPeers = n
	}
}

// WithMetrics 注入指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// Registry 节点表
type Registry struct {
	mu    sync.RWMutex
	peers map[string]*types.Peer

	clock    clock.Clock
	maxPeers int
	metrics  *metrics.Metrics
}

// New 创建节点表
func New(opts ...Option) *Registry {
	r := &Registry{
		peers:    make(map[string]*types.Peer),
		clock:    clock.New(),
		maxPeers: DefaultMaxPeers,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Clock 返回节点表使用的时钟
func (r *Registry) Clock() clock.Clock {
	return r.clock
}

// Add 加入节点
//
// 新节点以 IsActive=true、LastSeen=now 插入并返回 true；已存在的节点
// 保持不变并返回 false。存活状态只通过 Touch 刷新。
func (r *Registry) Add(ep types.Endpoint) (bool, error) {
	if !ep.IsValid() {
		return false, types.ErrInvalidEndpoint
	}
	id := ep.PeerID()
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.peers[id]; ok {
		return false, nil
	}
	if r.maxPeers > 0 && len(r.peers) >= r.maxPeers {
		return false, ErrPeerTableFull
	}

	r.peers[id] = &types.Peer{
		Endpoint: ep,
		IsActive: true,
		LastSeen: now,
		AddedAt:  now,
	}
	r.metrics.SetPeers(len(r.peers))
	return true, nil
}

// Touch 刷新节点 LastSeen，节点不存在时返回 false
func (r *Registry) Touch(id string) bool {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[id]
	if !ok {
		return false
	}
	p.LastSeen = now
	p.IsActive = true
	return true
}

// UpdateRTT 记录节点往返时延
func (r *Registry) UpdateRTT(id string, rtt time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[id]
	if !ok {
		return false
	}
	p.RTT = rtt
	return true
}

// Expire 移除超过 timeout 未被观察到的节点
//
// 标记与移除在同一次写锁内完成，返回被移除的节点。
func (r *Registry) Expire(timeout time.Duration) []types.Peer {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []types.Peer
	for id, p := range r.peers {
		if now.Sub(p.LastSeen) > timeout {
			p.IsActive = false
			expired = append(expired, *p)
			delete(r.peers, id)
		}
	}
	if len(expired) > 0 {
		r.metrics.SetPeers(len(r.peers))
	}
	sortPeers(expired)
	return expired
}

// Remove 移除节点
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.peers[id]; !ok {
		return false
	}
	delete(r.peers, id)
	r.metrics.SetPeers(len(r.peers))
	return true
}

// Get 返回节点拷贝
func (r *Registry) Get(id string) (types.Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.peers[id]
	if !ok {
		return types.Peer{}, false
	}
	return *p, true
}

// IsActive 节点是否存在且活跃
func (r *Registry) IsActive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.peers[id]
	return ok && p.IsActive
}

// All 返回全部节点拷贝，按 peer id 排序
func (r *Registry) All() []types.Peer {
	return r.collect(func(*types.Peer) bool { return true })
}

// Active 返回活跃节点拷贝，按 peer id 排序
func (r *Registry) Active() []types.Peer {
	return r.collect(func(p *types.Peer) bool { return p.IsActive })
}

func (r *Registry) collect(keep func(*types.Peer) bool) []types.Peer {
	r.mu.RLock()
	out := make([]types.Peer, 0, len(r.peers))
	for _, p := range r.peers {
		if keep(p) {
			out = append(out, *p)
		}
	}
	r.mu.RUnlock()

	sortPeers(out)
	return out
}

// Len 返回节点数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// MaxPeers 返回容量
func (r *Registry) MaxPeers() int {
	return r.maxPeers
}

func sortPeers(ps []types.Peer) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID() < ps[j].ID() })
}

package discovery

import (
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// ============================================================================
//                              去重缓存
// ============================================================================

type dedupKey struct {
	source string
	id     uint64
}

// Dedup 最近消息去重
type Dedup struct {
	seen *lru.Cache[dedupKey, struct{}]
}

// NewDedup 创建容量为 size 的去重缓存
func NewDedup(size int) (*Dedup, error) {
	c, err := lru.New[dedupKey, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &Dedup{seen: c}, nil
}

// Seen 记录 (source, id)，已存在时返回 true
func (d *Dedup) Seen(source string, id uint64) bool {
	ok, _ := d.seen.ContainsOrAdd(dedupKey{source: source, id: id}, struct{}{})
	return ok
}

// ============================================================================
//                              待应答探测
// ============================================================================

// Probes 记录发现请求的发送时间，用于 RTT 测量
//
// 一次广播的所有应答共享同一请求 ID，条目在被淘汰前持续有效。
type Probes struct {
	clock   clock.Clock
	pending *lru.Cache[uint64, time.Time]
}

// NewProbes 创建探测表
func NewProbes(size int, clk clock.Clock) (*Probes, error) {
	c, err := lru.New[uint64, time.Time](size)
	if err != nil {
		return nil, err
	}
	return &Probes{clock: clk, pending: c}, nil
}

// Track 记录请求发送时间
func (p *Probes) Track(id uint64) {
	p.pending.Add(id, p.clock.Now())
}

// RTT 返回请求的往返时延
func (p *Probes) RTT(id uint64) (time.Duration, bool) {
	sentAt, ok := p.pending.Get(id)
	if !ok {
		return 0, false
	}
	return p.clock.Since(sentAt), true
}

// Len 返回待应答探测数
func (p *Probes) Len() int {
	return p.pending.Len()
}

// ============================================================================
//                              应答限速
// ============================================================================

// ReplyLimiter 按来源限制发现应答频率
type ReplyLimiter struct {
	clock    clock.Clock
	limit    rate.Limit
	burst    int
	limiters *lru.Cache[string, *rate.Limiter]
}

// NewReplyLimiter 创建限速器，最多跟踪 size 个来源
func NewReplyLimiter(size int, perSecond float64, burst int, clk clock.Clock) (*ReplyLimiter, error) {
	c, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		return nil, err
	}
	return &ReplyLimiter{
		clock:    clk,
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: c,
	}, nil
}

// Allow 来源当前是否允许应答
func (l *ReplyLimiter) Allow(source string) bool {
	lim, ok := l.limiters.Get(source)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		if existing, found, _ := l.limiters.PeekOrAdd(source, lim); found {
			lim = existing
		}
	}
	return lim.AllowN(l.clock.Now(), 1)
}

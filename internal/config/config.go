// Package config 提供 udpmesh 配置管理
//
// config 包负责：
//   - 定义节点配置结构
//   - 提供默认值
//   - 从 TOML 文件加载（缺省字段保留默认值）
//   - 配置校验
package config

import (
	"net"
	"strconv"
	"time"
)

// Config 节点配置
type Config struct {
	// Node 本地节点配置
	Node NodeConfig `toml:"node"`

	// Seeds 启动时加入的种子节点（"address:port"）
	Seeds []string `toml:"seeds"`

	// Socket 套接字与反应器配置
	Socket SocketConfig `toml:"socket"`

	// Liveness 存活检测配置
	Liveness LivenessConfig `toml:"liveness"`

	// Discovery 节点发现配置
	Discovery DiscoveryConfig `toml:"discovery"`

	// Messaging 消息配置
	Messaging MessagingConfig `toml:"messaging"`

	// Metrics 指标配置
	Metrics MetricsConfig `toml:"metrics"`

	// Log 日志配置
	Log LogConfig `toml:"log"`
}

// NodeConfig 本地节点配置
type NodeConfig struct {
	// Address 对外宣告地址，构成本节点的 peer id
	Address string `toml:"address"`

	// Port 监听端口，0 表示由系统分配
	Port int `toml:"port"`

	// BindAddress 套接字绑定地址
	BindAddress string `toml:"bind_address"`
}

// SocketConfig 套接字与反应器配置
type SocketConfig struct {
	// QueueDepth 提交/完成队列深度
	QueueDepth int `toml:"queue_depth"`

	// MaxDatagramSize 接收缓冲区大小
	MaxDatagramSize int `toml:"max_datagram_size"`

	// SubmitMaxBackoff 提交队列满时的最大退避
	SubmitMaxBackoff Duration `toml:"submit_max_backoff"`
}

// LivenessConfig 存活检测配置
type LivenessConfig struct {
	// HealthCheckInterval 健康检查间隔
	HealthCheckInterval Duration `toml:"health_check_interval"`

	// PeerTimeout 超过此时长未收到消息的节点被移除
	PeerTimeout Duration `toml:"peer_timeout"`

	// HeartbeatEnabled 是否向活跃节点发送心跳
	HeartbeatEnabled bool `toml:"heartbeat_enabled"`
}

// DiscoveryConfig 节点发现配置
type DiscoveryConfig struct {
	// Interval 发现广播间隔
	Interval Duration `toml:"interval"`

	// MaxPeers 节点表容量
	MaxPeers int `toml:"max_peers"`

	// MaxPeerListSize 单个 PeerList 最多携带的节点数
	MaxPeerListSize int `toml:"max_peer_list_size"`

	// ResponseRate 每个来源每秒允许的应答数
	ResponseRate float64 `toml:"response_rate"`

	// ResponseBurst 每个来源的应答突发上限
	ResponseBurst int `toml:"response_burst"`

	// PendingProbes 用于 RTT 测量的待应答探测上限
	PendingProbes int `toml:"pending_probes"`
}

// MessagingConfig 消息配置
type MessagingConfig struct {
	// DefaultTTL 出站消息 TTL
	DefaultTTL int `toml:"default_ttl"`

	// DedupCacheSize 去重缓存大小
	DedupCacheSize int `toml:"dedup_cache_size"`

	// BroadcastParallelism 广播并发度
	BroadcastParallelism int `toml:"broadcast_parallelism"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Namespace 指标命名空间
	Namespace string `toml:"namespace"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别规格，如 "info" 或 "core/reactor=debug,info"
	Level string `toml:"level"`

	// Format 输出格式（text/json）
	Format string `toml:"format"`
}

// ============================================================================
//                              默认值
// ============================================================================

// NewConfig 返回默认配置
func NewConfig() *Config {
	return &Config{
		Node:      DefaultNodeConfig(),
		Socket:    DefaultSocketConfig(),
		Liveness:  DefaultLivenessConfig(),
		Discovery: DefaultDiscoveryConfig(),
		Messaging: DefaultMessagingConfig(),
		Metrics:   DefaultMetricsConfig(),
		Log:       DefaultLogConfig(),
	}
}

// DefaultNodeConfig 返回默认节点配置
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		Address:     "127.0.0.1",
		Port:        0,
		BindAddress: "0.0.0.0",
	}
}

// DefaultSocketConfig 返回默认套接字配置
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		QueueDepth:       32,
		MaxDatagramSize:  65536,
		SubmitMaxBackoff: Duration(50 * time.Millisecond),
	}
}

// DefaultLivenessConfig 返回默认存活检测配置
func DefaultLivenessConfig() LivenessConfig {
	return LivenessConfig{
		HealthCheckInterval: Duration(5 * time.Second),
		PeerTimeout:         Duration(30 * time.Second),
		HeartbeatEnabled:    true,
	}
}

// DefaultDiscoveryConfig 返回默认发现配置
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		Interval:        Duration(30 * time.Second),
		MaxPeers:        256,
		MaxPeerListSize: 64,
		ResponseRate:    4,
		ResponseBurst:   8,
		PendingProbes:   1024,
	}
}

// DefaultMessagingConfig 返回默认消息配置
func DefaultMessagingConfig() MessagingConfig {
	return MessagingConfig{
		DefaultTTL:           8,
		DedupCacheSize:       4096,
		BroadcastParallelism: 16,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Namespace: "udpmesh"}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info", Format: "text"}
}

// ListenAddr 返回绑定地址
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Node.BindAddress, strconv.Itoa(c.Node.Port))
}

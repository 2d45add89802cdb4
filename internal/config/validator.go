package config

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/dep2p/go-udpmesh/pkg/types"
)

// ValidationError 配置校验错误
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("配置错误 [%s]: %s", e.Field, e.Message)
}

// ValidationErrors 多个配置校验错误
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors 是否有错误
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator 配置校验器
type Validator struct {
	errors ValidationErrors
}

// NewValidator 创建校验器
func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) addError(field, format string, args ...any) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

// Errors 返回所有错误
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// Validate 校验配置
func Validate(cfg *Config) error {
	if cfg == nil {
		return ValidationErrors{{Field: "config", Message: "配置为空"}}
	}

	v := NewValidator()
	v.validateNode(&cfg.Node)
	v.validateSeeds(cfg.Seeds)
	v.validateSocket(&cfg.Socket)
	v.validateLiveness(&cfg.Liveness)
	v.validateDiscovery(&cfg.Discovery)
	v.validateMessaging(&cfg.Messaging)
	v.validateLog(&cfg.Log)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateNode(c *NodeConfig) {
	if c.Address == "" {
		v.addError("node.address", "不能为空")
	}
	if c.Port < 0 || c.Port > 65535 {
		v.addError("node.port", "必须在 0-65535 之间，当前 %d", c.Port)
	}
	if _, err := netip.ParseAddr(c.BindAddress); err != nil {
		v.addError("node.bind_address", "无效的 IP 地址 %q", c.BindAddress)
	}
}

func (v *Validator) validateSeeds(seeds []string) {
	for i, s := range seeds {
		if _, err := types.ParsePeerID(s); err != nil {
			v.addError(fmt.Sprintf("seeds[%d]", i), "%v", err)
		}
	}
}

func (v *Validator) validateSocket(c *SocketConfig) {
	if c.QueueDepth <= 0 {
		v.addError("socket.queue_depth", "必须大于 0")
	}
	if c.MaxDatagramSize <= 0 || c.MaxDatagramSize > 65536 {
		v.addError("socket.max_datagram_size", "必须在 1-65536 之间，当前 %d", c.MaxDatagramSize)
	}
	if c.SubmitMaxBackoff <= 0 {
		v.addError("socket.submit_max_backoff", "必须大于 0")
	}
}

func (v *Validator) validateLiveness(c *LivenessConfig) {
	if c.HealthCheckInterval <= 0 {
		v.addError("liveness.health_check_interval", "必须大于 0")
	}
	if c.PeerTimeout <= 0 {
		v.addError("liveness.peer_timeout", "必须大于 0")
	}
}

func (v *Validator) validateDiscovery(c *DiscoveryConfig) {
	if c.Interval <= 0 {
		v.addError("discovery.interval", "必须大于 0")
	}
	if c.MaxPeers <= 0 {
		v.addError("discovery.max_peers", "必须大于 0")
	}
	if c.MaxPeerListSize < 0 {
		v.addError("discovery.max_peer_list_size", "不能为负数")
	}
	if c.ResponseRate <= 0 {
		v.addError("discovery.response_rate", "必须大于 0")
	}
	if c.ResponseBurst <= 0 {
		v.addError("discovery.response_burst", "必须大于 0")
	}
	if c.PendingProbes <= 0 {
		v.addError("discovery.pending_probes", "必须大于 0")
	}
}

func (v *Validator) validateMessaging(c *MessagingConfig) {
	if c.DefaultTTL < 0 || c.DefaultTTL > 65535 {
		v.addError("messaging.default_ttl", "必须在 0-65535 之间，当前 %d", c.DefaultTTL)
	}
	if c.DedupCacheSize <= 0 {
		v.addError("messaging.dedup_cache_size", "必须大于 0")
	}
	if c.BroadcastParallelism <= 0 {
		v.addError("messaging.broadcast_parallelism", "必须大于 0")
	}
}

func (v *Validator) validateLog(c *LogConfig) {
	switch strings.ToLower(c.Format) {
	case "", "text", "json":
	default:
		v.addError("log.format", "仅支持 text/json，当前 %q", c.Format)
	}
}

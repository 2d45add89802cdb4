package eventbus

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-udpmesh/internal/core/metrics"
)

// Params Dispatcher 依赖参数
type Params struct {
	fx.In

	Metrics *metrics.Metrics `optional:"true"`
}

// Module 是 eventbus 的 Fx 模块，提供共享的 *Dispatcher
var Module = fx.Module("eventbus",
	fx.Provide(ProvideDispatcher),
)

// ProvideDispatcher 提供 Dispatcher 实例
func ProvideDispatcher(p Params) *Dispatcher {
	return New(WithMetrics(p.Metrics))
}

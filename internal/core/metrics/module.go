package metrics

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-udpmesh/internal/config"
)

// Params Metrics 依赖参数
type Params struct {
	fx.In

	Config *config.Config `optional:"true"`
}

// Module 是 metrics 的 Fx 模块
var Module = fx.Module("metrics",
	fx.Provide(NewFromParams),
)

// NewFromParams 从参数创建 Metrics
func NewFromParams(p Params) (*Metrics, error) {
	ns := DefaultNamespace
	if p.Config != nil && p.Config.Metrics.Namespace != "" {
		ns = p.Config.Metrics.Namespace
	}
	return New(WithNamespace(ns))
}

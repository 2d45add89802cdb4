package udp

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-udpmesh/internal/config"
	"github.com/dep2p/go-udpmesh/internal/core/metrics"
)

// Params Socket 依赖参数
type Params struct {
	fx.In

	Config  *config.Config   `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

// Module 是 udp 套接字的 Fx 模块
var Module = fx.Module("udp",
	fx.Provide(NewFromParams),
	fx.Invoke(registerLifecycle),
)

// NewFromParams 从参数创建 Socket
func NewFromParams(p Params) (*Socket, error) {
	return New(ConfigFromUnified(p.Config),
		WithMetrics(p.Metrics),
	)
}

// registerLifecycle 注册生命周期：停止时关闭套接字
func registerLifecycle(lc fx.Lifecycle, s *Socket) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return s.Close()
		},
	})
}

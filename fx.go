package udpmesh

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dep2p/go-udpmesh/internal/config"
	"github.com/dep2p/go-udpmesh/internal/core/eventbus"
	"github.com/dep2p/go-udpmesh/internal/core/metrics"
	"github.com/dep2p/go-udpmesh/internal/core/transport/udp"
	"github.com/dep2p/go-udpmesh/pkg/lib/log"
)

var fxLogger = log.Logger("udpmesh/fx")

// ════════════════════════════════════════════════════════════════════════════
// Fx 模块
// ════════════════════════════════════════════════════════════════════════════

// NodeParams Node 依赖参数
type NodeParams struct {
	fx.In

	Config     *config.Config
	Socket     *udp.Socket
	Dispatcher *eventbus.Dispatcher
	Metrics    *metrics.Metrics
}

// Module 组装节点所需的全部模块
//
// 加载顺序（按依赖）：metrics → eventbus → udp → node。
// 启动时 Start 节点，停止时先关闭节点再关闭套接字。
func Module() fx.Option {
	return fx.Options(
		metrics.Module,
		eventbus.Module,
		udp.Module,
		fx.Provide(ProvideNode),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideNode 从 Fx 依赖创建 Node
func ProvideNode(p NodeParams) (*Node, error) {
	return New(p.Config,
		WithSocket(p.Socket),
		WithDispatcher(p.Dispatcher),
		WithMetrics(p.Metrics),
	)
}

func registerLifecycle(lc fx.Lifecycle, n *Node) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			fxLogger.Debug("启动节点", "id", n.ID())
			return n.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			fxLogger.Debug("停止节点", "id", n.ID())
			return multierr.Append(n.Stop(ctx), n.Close())
		},
	})
}

// NewApp 构建节点 Fx 应用
//
// cfg 为 nil 时使用默认配置；extra 追加用户 Fx 选项（如 fx.Populate）。
func NewApp(cfg *config.Config, extra ...fx.Option) *fx.App {
	if cfg == nil {
		cfg = config.NewConfig()
	}

	modules := []fx.Option{
		config.Module(cfg),
		Module(),
	}
	modules = append(modules, extra...)

	// 禁用 Fx 日志输出（避免干扰用户日志）
	modules = append(modules,
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)
	return fx.New(modules...)
}

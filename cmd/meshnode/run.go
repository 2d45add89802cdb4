package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	udpmesh "github.com/dep2p/go-udpmesh"
	"github.com/dep2p/go-udpmesh/internal/config"
	"github.com/dep2p/go-udpmesh/internal/util/logger"
	"github.com/dep2p/go-udpmesh/pkg/lib/log"
	"github.com/dep2p/go-udpmesh/pkg/types"
)

var cmdLogger = log.Logger("meshnode/cmd")

const shutdownTimeout = 10 * time.Second

// runFlags run 子命令参数
//
// 命令行参数覆盖配置文件中的同名字段。
type runFlags struct {
	configFile string
	port       int
	address    string
	peers      []string
	logLevel   string
}

func newRunCmd() *cobra.Command {
	return newRunCommand(&runFlags{})
}

func newRunCommand(f *runFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "启动节点并运行直至收到 SIGINT/SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.buildConfig(cmd)
			if err != nil {
				return fmt.Errorf("配置错误: %w", err)
			}
			return runNode(cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configFile, "config", "", "TOML 配置文件路径")
	flags.IntVar(&f.port, "port", 0, "监听端口（0 = 随机端口）")
	flags.StringVar(&f.address, "address", "", "对外宣告地址")
	flags.StringArrayVar(&f.peers, "peer", nil, "种子节点 address:port，可重复")
	flags.StringVar(&f.logLevel, "log-level", "", "日志级别，如 info 或 core/reactor=debug,info")
	return cmd
}

// buildConfig 加载配置文件并应用命令行覆盖
func (f *runFlags) buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	if f.configFile != "" {
		loaded, err := config.Load(f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Node.Port = f.port
	}
	if flags.Changed("address") {
		cfg.Node.Address = f.address
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	cfg.Seeds = append(cfg.Seeds, f.peers...)

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	lc := logger.ConfigFromEnv()
	if cfg.Log.Level != "" {
		logger.ParseLevelSpec(lc, cfg.Log.Level)
	}
	if cfg.Log.Format != "" {
		lc.Format = logger.ParseFormat(cfg.Log.Format)
	}
	logger.Setup(os.Stderr, lc)
}

func runNode(cmd *cobra.Command, cfg *config.Config) error {
	setupLogging(cfg)

	var node *udpmesh.Node
	app := udpmesh.NewApp(cfg,
		fx.Populate(&node),
		fx.Invoke(logEvents),
	)
	if err := app.Err(); err != nil {
		return fmt.Errorf("构建节点失败: %w", err)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "节点已启动: %s\n", node.ID())
	fmt.Fprintln(out, "按 Ctrl+C 退出")
	waitForSignal()

	fmt.Fprintln(out, "\n正在关闭节点...")
	stopCtx, cancelStop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelStop()
	return app.Stop(stopCtx)
}

// logEvents 将节点事件输出到日志
func logEvents(n *udpmesh.Node) {
	udpmesh.SubscribeTyped(n, func(_ context.Context, ev types.PeerConnected) error {
		cmdLogger.Info("节点加入", "peer", ev.Endpoint.PeerID())
		return nil
	})
	udpmesh.SubscribeTyped(n, func(_ context.Context, ev types.PeerDisconnected) error {
		cmdLogger.Info("节点离开", "peer", ev.PeerID)
		return nil
	})
	udpmesh.SubscribeTyped(n, func(_ context.Context, ev types.MessageReceived) error {
		cmdLogger.Info("收到消息",
			"from", ev.Message.Header.SourceID,
			"bytes", len(ev.Message.Payload),
			"payload", string(ev.Message.Payload))
		return nil
	})
	udpmesh.SubscribeTyped(n, func(_ context.Context, ev types.NetworkStateChanged) error {
		if ev.Healthy {
			cmdLogger.Info("网络状态", "status", ev.Status)
		} else {
			cmdLogger.Warn("网络状态", "status", ev.Status)
		}
		return nil
	})
}

// waitForSignal 等待退出信号
func waitForSignal() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
}

package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	output = &dynamicWriter{out: os.Stderr}

	mu     sync.Mutex
	levels *levelTable
)

// Setup 安装进程级默认 logger
//
// cfg 为 nil 时从环境变量读取。pkg/lib/log 的 LazyLogger 在每次调用时
// 读取 slog.Default()，因此 Setup 之后所有组件日志按组件级别过滤。
//
//	logger.Setup(os.Stderr, nil)
//	log.Logger("core/reactor").Debug("...") // 受 MESH_LOG_LEVEL 控制
func Setup(w io.Writer, cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = ConfigFromEnv()
	}
	if w != nil {
		output.set(w)
	}

	mu.Lock()
	levels = &levelTable{cfg: cfg}
	l := slog.New(newHandler(output, levels, cfg.Format, cfg.AddSource))
	mu.Unlock()

	slog.SetDefault(l)
	return l
}

// SetOutput 切换日志输出目标，已创建的 logger 同样生效
func SetOutput(w io.Writer) {
	output.set(w)
}

// SetLevel 动态设置组件的日志级别，component 为空表示默认级别
func SetLevel(component string, level slog.Level) {
	mu.Lock()
	t := levels
	mu.Unlock()
	if t != nil {
		t.set(component, level)
	}
}

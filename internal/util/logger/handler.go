package logger

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// componentKey LazyLogger 附加的组件属性名
const componentKey = "component"

// dynamicWriter 动态查找当前输出目标的 io.Writer
type dynamicWriter struct {
	mu  sync.RWMutex
	out io.Writer
}

func (w *dynamicWriter) Write(p []byte) (int, error) {
	w.mu.RLock()
	out := w.out
	w.mu.RUnlock()
	return out.Write(p)
}

func (w *dynamicWriter) set(out io.Writer) {
	w.mu.Lock()
	w.out = out
	w.mu.Unlock()
}

// levelTable 可动态调整的组件级别表
type levelTable struct {
	mu  sync.RWMutex
	cfg *Config
}

func (t *levelTable) levelFor(component string) slog.Level {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg.LevelFor(component)
}

func (t *levelTable) set(component string, level slog.Level) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if component == "" {
		t.cfg.DefaultLevel = level
		return
	}
	t.cfg.ComponentLevels[component] = level
}

// componentHandler 按组件属性过滤级别的 slog.Handler
//
// WithAttrs 遇到 component 属性时记录组件名，Enabled 据此查询级别表。
type componentHandler struct {
	component string
	levels    *levelTable
	inner     slog.Handler
}

func newHandler(w io.Writer, levels *levelTable, format LogFormat, addSource bool) *componentHandler {
	opts := &slog.HandlerOptions{
		// 过滤由 Enabled 负责，内层 handler 放行全部级别
		Level:     slog.LevelDebug,
		AddSource: addSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelToString(lvl))
				}
			}
			return a
		},
	}

	var inner slog.Handler
	if format == FormatJSON {
		inner = slog.NewJSONHandler(w, opts)
	} else {
		inner = slog.NewTextHandler(w, opts)
	}

	return &componentHandler{levels: levels, inner: inner}
}

// Enabled 检查是否启用指定级别
func (h *componentHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.levels.levelFor(h.component)
}

// Handle 处理日志记录
func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

// WithAttrs 添加属性
func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	component := h.component
	for _, a := range attrs {
		if a.Key == componentKey {
			component = a.Value.String()
		}
	}
	return &componentHandler{
		component: component,
		levels:    h.levels,
		inner:     h.inner.WithAttrs(attrs),
	}
}

// WithGroup 添加组
func (h *componentHandler) WithGroup(name string) slog.Handler {
	return &componentHandler{
		component: h.component,
		levels:    h.levels,
		inner:     h.inner.WithGroup(name),
	}
}

// levelToString 将日志级别转换为小写字符串
func levelToString(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "debug"
	case level < slog.LevelWarn:
		return "info"
	case level < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}

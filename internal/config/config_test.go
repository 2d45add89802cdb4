package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

// TestNewConfig_Defaults 测试默认值
func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "127.0.0.1", cfg.Node.Address)
	assert.Equal(t, 0, cfg.Node.Port)
	assert.Equal(t, 32, cfg.Socket.QueueDepth)
	assert.Equal(t, 65536, cfg.Socket.MaxDatagramSize)
	assert.Equal(t, 5*time.Second, cfg.Liveness.HealthCheckInterval.Duration())
	assert.Equal(t, 30*time.Second, cfg.Liveness.PeerTimeout.Duration())
	assert.Equal(t, 30*time.Second, cfg.Discovery.Interval.Duration())
	assert.Equal(t, 8, cfg.Messaging.DefaultTTL)
	assert.Equal(t, "0.0.0.0:0", cfg.ListenAddr())
	require.NoError(t, Validate(cfg))
}

// TestDecode_OverridesDefaults 测试 TOML 覆盖默认值
func TestDecode_OverridesDefaults(t *testing.T) {
	src := `
seeds = ["127.0.0.1:9001", "10.0.0.2:9002"]

[node]
address = "10.0.0.1"
port = 9000

[liveness]
peer_timeout = "45s"
heartbeat_enabled = false

[log]
level = "core/reactor=debug,info"
`
	cfg, err := Decode(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1", cfg.Node.Address)
	assert.Equal(t, 9000, cfg.Node.Port)
	assert.Equal(t, []string{"127.0.0.1:9001", "10.0.0.2:9002"}, cfg.Seeds)
	assert.Equal(t, 45*time.Second, cfg.Liveness.PeerTimeout.Duration())
	assert.False(t, cfg.Liveness.HeartbeatEnabled)
	// 未出现的字段保留默认值
	assert.Equal(t, 5*time.Second, cfg.Liveness.HealthCheckInterval.Duration())
	assert.Equal(t, "0.0.0.0", cfg.Node.BindAddress)
}

// TestDecode_Errors 测试解析失败
func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"bad duration", "[liveness]\npeer_timeout = \"soon\"\n"},
		{"unknown key", "[node]\nnickname = \"x\"\n"},
		{"invalid port", "[node]\nport = 70000\n"},
		{"invalid seed", "seeds = [\"nope\"]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src))
			assert.Error(t, err)
		})
	}
}

// TestLoad_File 测试从文件加载
func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mesh.toml")
	require.NoError(t, os.WriteFile(path, []byte("[node]\nport = 7000\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Node.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

// TestEncode_RoundTrip 测试写出后可重新加载
func TestEncode_RoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.Node.Port = 1234
	cfg.Seeds = []string{"127.0.0.1:1"}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, cfg))
	assert.Contains(t, buf.String(), `peer_timeout = "30s"`)

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

// TestValidate_Collects 测试校验收集全部错误
func TestValidate_Collects(t *testing.T) {
	cfg := NewConfig()
	cfg.Node.Address = ""
	cfg.Socket.QueueDepth = 0
	cfg.Log.Format = "xml"

	err := Validate(cfg)
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 3)
	assert.Equal(t, "node.address", verrs[0].Field)
	assert.Contains(t, err.Error(), "socket.queue_depth")

	assert.Error(t, Validate(nil))
}

// TestDuration_JSON 测试 JSON 编解码
func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1m30s"`), &d))
	assert.Equal(t, 90*time.Second, d.Duration())

	require.NoError(t, json.Unmarshal([]byte(`1000`), &d))
	assert.Equal(t, time.Microsecond, d.Duration())

	out, err := json.Marshal(Duration(2 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"2s"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}

// TestModule 测试 Fx 模块
func TestModule(t *testing.T) {
	var got *Config
	app := fxtest.New(t,
		Module(nil),
		fx.Populate(&got),
	)
	app.RequireStart()
	app.RequireStop()

	require.NotNil(t, got)
	assert.Equal(t, 32, got.Socket.QueueDepth)
}

// TestModule_Invalid 测试无效配置使 Fx 应用构建失败
func TestModule_Invalid(t *testing.T) {
	cfg := NewConfig()
	cfg.Socket.QueueDepth = 0

	var got *Config
	app := fx.New(
		Module(cfg),
		fx.Populate(&got),
		fx.NopLogger,
	)
	assert.Error(t, app.Err())
}

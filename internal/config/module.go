package config

import "go.uber.org/fx"

// Module 提供 *Config 的 Fx 模块
//
// cfg 为 nil 时使用默认配置。配置在提供前校验，无效配置使应用构建失败。
func Module(cfg *Config) fx.Option {
	if cfg == nil {
		cfg = NewConfig()
	}
	return fx.Module("config",
		fx.Provide(func() (*Config, error) {
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}),
	)
}

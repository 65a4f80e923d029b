package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New 生产模式输出 JSON，其余输出带颜色的控制台格式
func New(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.DisableStacktrace = true
	return cfg.Build()
}

package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// L 全局日志实例, 在 main/测试装置里初始化一次, 各包直接引用
var L *zap.Logger

// InitLogger 按运行模式装配全局日志
// level 取 zap 认识的级别名(debug/info/warn/error...), 解析失败退回 info
// isProduction 为真时输出JSON, 否则输出带颜色的控制台格式
func InitLogger(level string, isProduction bool) error {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
		fmt.Fprintf(os.Stderr, "Warning: Invalid log level '%s', using default 'info'. Error: %v\n", level, err)
	}

	var zapConfig zap.Config
	if isProduction {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)

	var err error
	if L, err = zapConfig.Build(zap.AddCallerSkip(1)); err != nil {
		return fmt.Errorf("failed to initialize zap logger: %w", err)
	}

	L.Info("Logger initialized for team chat core",
		zap.String("level", zapLevel.String()), zap.Bool("productionMode", isProduction))
	return nil
}

// Sync 刷出缓冲的日志, 进程退出前调用
func Sync() {
	if L != nil {
		_ = L.Sync()
	}
}

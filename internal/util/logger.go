// internal/util/logger.go
package util

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "fdvault"

var logger *zap.Logger

// InitLogger initializes the global structured logger.
// level is one of debug, info, warn, error; anything else falls back to info.
func InitLogger(level string) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zap.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.MessageKey = "msg"

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		zapLevel,
	)
	logger = zap.New(core, zap.AddCaller()).With(zap.String("service", serviceName))
	zap.ReplaceGlobals(logger)
}

// GetLogger returns the initialized global logger.
func GetLogger() *zap.Logger {
	if logger == nil {
		InitLogger("info") // should be called explicitly at app start
	}
	return logger
}

// SyncLogger flushes buffered log entries.
func SyncLogger() {
	if logger != nil {
		_ = logger.Sync()
	}
}

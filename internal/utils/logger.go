// Package utils provides logging and catalog parsing helpers for the game
// recommendation engine.
package utils

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the global logger instance.
var Logger *zap.Logger

var loggerMu sync.Mutex

// InitLogger initializes the global logger.
func InitLogger(level string) error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	logger, err := buildLogger(level)
	if err != nil {
		return err
	}
	Logger = logger
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	// JSON to stdout inside Lambda, colored console everywhere else
	var config zap.Config
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		config = zap.NewProductionConfig()
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	return config.Build()
}

// GetLogger returns the global logger, initializing if necessary.
func GetLogger() *zap.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if Logger == nil {
		logger, err := buildLogger("info")
		if err != nil {
			return zap.NewNop()
		}
		Logger = logger
	}
	return Logger
}

// Component returns the global logger named after a pipeline component.
func Component(name string) *zap.Logger {
	return GetLogger().Named(name)
}

// Sync flushes any buffered log entries.
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// LogField creates a zap field for structured logging.
type LogField = zap.Field

// Common field constructors
var (
	String   = zap.String
	Strings  = zap.Strings
	Int      = zap.Int
	Int64    = zap.Int64
	Float64  = zap.Float64
	Bool     = zap.Bool
	Error    = zap.Error
	Any      = zap.Any
	Duration = zap.Duration
)

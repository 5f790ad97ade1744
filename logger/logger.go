package logger

import (
	"go.uber.org/zap"
)

// Log is a no-op until Init runs so packages and tests can log before bootstrap.
var Log = zap.NewNop().Sugar()

// Init builds the production logger at the given level ("debug", "info", "warn", "error").
func Init(level string) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			panic("invalid log level " + level + ": " + err.Error())
		}
		cfg.Level = lvl
	}
	logger, err := cfg.Build()
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = logger.Sugar()
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Log.Sync()
}

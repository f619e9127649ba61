package goroutine

import (
	"runtime/debug"

	"go.uber.org/zap"
)

// Recover logs a panic in the calling goroutine instead of crashing the
// process. Use as: defer goroutine.Recover("name", logger)
func Recover(name string, logger *zap.SugaredLogger) {
	if r := recover(); r != nil {
		logPanic(name, r, logger)
	}
}

// Go runs fn in a new goroutine guarded by Recover
func Go(name string, logger *zap.SugaredLogger, fn func()) {
	go func() {
		defer Recover(name, logger)
		fn()
	}()
}

func logPanic(name string, r interface{}, logger *zap.SugaredLogger) {
	if logger == nil {
		logger = zap.L().Sugar()
	}
	logger.Errorw("Goroutine panic recovered",
		"goroutine", name,
		"panic", r,
		"stack", string(debug.Stack()))
}

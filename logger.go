package voicesdk

import (
	"log/slog"

	protoLogger "github.com/livekit/protocol/logger"
)

var globalLog *slog.Logger

func getLogger() *slog.Logger {
	if globalLog != nil {
		return globalLog
	}
	return slog.Default()
}

// SetLogger overrides the package's default logger. To use a
// [logr](https://github.com/go-logr/logr) compatible logger, pass in
// SetLogger(logger.LogRLogger(logRLogger)).
//
// If no logger is set, slog.Default will be used.
func SetLogger(l protoLogger.Logger) {
	if l == nil {
		globalLog = nil
		return
	}
	globalLog = slog.New(protoLogger.ToSlogHandler(l))
}

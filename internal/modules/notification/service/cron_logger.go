package service

import (
	"log/slog"

	"anoa.com/tunehub/pkg/logger"
)

// cronLogger adapts slog to cron.Logger. Scheduler chatter goes to debug.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{logger.Error(err)}, keysAndValues...)
	l.log.Error("cron: "+msg, args...)
}

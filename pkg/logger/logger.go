package logger

import (
	"io"
	"log/slog"
	"os"
)

// New builds the process logger. Development gets readable text output at
// debug level, everything else JSON at info level.
func New(appEnv string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	if appEnv == "development" {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// Discard returns a logger that drops every record. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Error records err under the key "error". Nil errors yield an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

func ConnectionID(id string) slog.Attr {
	return slog.String("connection_id", id)
}

func NotificationID(id any) slog.Attr {
	return slog.Any("notification_id", id)
}

func NotificationType(t string) slog.Attr {
	return slog.String("notification_type", t)
}

func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

func Reason(r string) slog.Attr {
	return slog.String("reason", r)
}

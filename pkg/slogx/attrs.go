package slogx

import (
	"fmt"
	"log/slog"
)

// KeyLoggerName is the attribute key that names the emitting component.
const KeyLoggerName = "logger"

// Error returns an "error" attribute holding the error's message.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// Stringer returns an attribute with the string form of value.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// LoggerName returns the attribute naming a logger.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

// Task groups the identity of a unit of work under the "task" key.
//
// kind and executor are passed as plain values so that this package stays
// free of the taskrt types.
func Task(id string, kind fmt.Stringer, executor string) slog.Attr {
	return slog.Group("task",
		slog.String("id", id),
		slog.String("kind", kind.String()),
		slog.String("executor", executor),
	)
}

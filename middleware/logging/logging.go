// Package logging reports unit execution and task transitions through slog.
package logging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/casualjim/taskrt"
	"github.com/casualjim/taskrt/pkg/slogx"
)

// Options attaches Middleware and Observer for logger. A nil logger means
// slog.Default() at the time of each call.
func Options(logger *slog.Logger) []taskrt.Option {
	return []taskrt.Option{taskrt.Use(Middleware(logger)), taskrt.Observe(Observer(logger))}
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func taskAttr(info taskrt.Info) slog.Attr {
	return slogx.Task(info.ID, info.Kind, info.Executor)
}

// Middleware logs the start and the end of every unit at debug level.
// Units that return their own error are logged at warn.
func Middleware(logger *slog.Logger) taskrt.Middleware {
	return func(info taskrt.Info, next taskrt.Future) taskrt.Future {
		return func(ctx context.Context) (any, error) {
			log := loggerOrDefault(logger)
			log.DebugContext(ctx, "unit started", taskAttr(info))
			start := time.Now()

			v, err := next(ctx)
			elapsed := slog.Duration("elapsed", time.Since(start))
			switch {
			case err == nil:
				log.DebugContext(ctx, "unit finished", taskAttr(info), elapsed)
			case ctx.Err() != nil && errors.Is(err, ctx.Err()):
				log.DebugContext(ctx, "unit aborted", taskAttr(info), elapsed)
			default:
				log.WarnContext(ctx, "unit returned an error", taskAttr(info), elapsed, slogx.Error(err))
			}
			return v, err
		}
	}
}

type observer struct {
	logger *slog.Logger
}

// Observer logs spawns and transitions at debug level; fatal resolutions at error.
func Observer(logger *slog.Logger) taskrt.Observer {
	return observer{logger: logger}
}

func (o observer) OnSpawn(info taskrt.Info) {
	loggerOrDefault(o.logger).Debug("unit spawned", taskAttr(info))
}

func (o observer) OnTransition(info taskrt.Info, state taskrt.State, err error) {
	log := loggerOrDefault(o.logger)
	if err != nil {
		log.Error("task failed", taskAttr(info), slogx.Stringer("state", state), slogx.Error(err))
		return
	}
	log.Debug("task transitioned", taskAttr(info), slogx.Stringer("state", state))
}

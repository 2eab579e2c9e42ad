package logger

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// SystemLogFile receives everything except the access log.
const SystemLogFile = "steeze.log"

var Module = fx.Options(
	fx.Provide(
		func() *Middleware { return &Middleware{} },
		func() *zap.Logger { return NewLog(SystemLogFile) },
	),
	fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: l.Named("fx")}
	}),
	fx.Invoke(func(lc fx.Lifecycle, l *zap.Logger) {
		lc.Append(fx.StopHook(func() { _ = l.Sync() }))
	}),
)

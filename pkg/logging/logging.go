package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
	"github.com/lmittmann/tint"
	"github.com/natefinch/lumberjack"
	slogmulti "github.com/samber/slog-multi"
)

const (
	prodEnvironment = "PROD"
	flushTimeout    = 2 * time.Second

	debugMaxSizeMB  = 10
	debugMaxBackups = 3
	debugMaxAgeDays = 14
)

type Options struct {
	Level        slog.Level
	SentryDSN    string
	Environment  string
	DebugLogPath string
	Writer       io.Writer
}

// Setup installs the default logger and returns the debug logger together
// with a cleanup func that flushes sentry and closes the debug log file.
func Setup(opts Options) (*slog.Logger, func(), error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         opts.SentryDSN,
		Environment: opts.Environment,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if opts.Environment == prodEnvironment { // only ship events in prod
				return event
			}
			return nil
		},
	})
	if err != nil {
		return nil, nil, err
	}

	writer := opts.Writer
	if writer == nil {
		writer = os.Stdout
	}
	logger := slog.New(slogmulti.Fanout(
		tint.NewHandler(writer, &tint.Options{
			Level:      opts.Level,
			TimeFormat: time.DateTime,
		}),
		sentryslog.Option{
			EventLevel: []slog.Level{slog.LevelWarn, slog.LevelError},
			LogLevel:   []slog.Level{},
		}.NewSentryHandler(context.Background()),
	))
	slog.SetDefault(logger)

	debugLogger := slog.New(slog.DiscardHandler)
	var rotator *lumberjack.Logger
	if opts.DebugLogPath != "" {
		rotator = &lumberjack.Logger{
			Filename:   opts.DebugLogPath,
			MaxSize:    debugMaxSizeMB,
			MaxBackups: debugMaxBackups,
			MaxAge:     debugMaxAgeDays,
			Compress:   true,
		}
		debugLogger = slog.New(slog.NewTextHandler(rotator, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	cleanup := func() {
		sentry.Flush(flushTimeout)
		if rotator != nil {
			_ = rotator.Close()
		}
	}
	return debugLogger, cleanup, nil
}

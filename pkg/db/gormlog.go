package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormLogger routes gorm output through the default slog logger.
type gormLogger struct {
	slowThreshold time.Duration
}

func newGormLogger(slowThreshold time.Duration) gormLogger {
	return gormLogger{slowThreshold: slowThreshold}
}

func (g gormLogger) LogMode(_ logger.LogLevel) logger.Interface {
	return g
}

func (g gormLogger) Info(ctx context.Context, s string, args ...any) {
	slog.InfoContext(ctx, "db: "+fmt.Sprintf(s, args...))
}

func (g gormLogger) Warn(ctx context.Context, s string, args ...any) {
	slog.WarnContext(ctx, "db: "+fmt.Sprintf(s, args...))
}

func (g gormLogger) Error(ctx context.Context, s string, args ...any) {
	slog.ErrorContext(ctx, "db: "+fmt.Sprintf(s, args...))
}

func (g gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	attrs := []any{
		slog.Duration("elapsed", elapsed),
		slog.Int64("rows", rows),
		slog.String("sql", sql),
	}
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		slog.ErrorContext(ctx, "db: sql failed", append(attrs, tint.Err(err))...)
	case g.slowThreshold != 0 && elapsed > g.slowThreshold:
		slog.WarnContext(ctx, "db: slow sql", append(attrs, slog.Duration("threshold", g.slowThreshold))...)
	default:
		slog.DebugContext(ctx, "db: sql completed", attrs...)
	}
}

package logger

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// shopifyTokenPattern matches Admin API access tokens (shpat_, shpca_, shpss_ ...)
var shopifyTokenPattern = regexp.MustCompile(`shp[a-z]{2}_[0-9A-Za-z]+`)

const redactedToken = "[REDACTED]"

// GormLogger implements GORM's logger interface using zap.
// Access tokens are redacted from logged statements.
type GormLogger struct {
	logger        *zap.Logger
	logLevel      gormlogger.LogLevel
	slowThreshold time.Duration
}

// GormLoggerOption is a function that configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the slow query threshold. Zero disables slow query warnings.
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) {
		l.slowThreshold = threshold
	}
}

// NewGormLogger creates a GORM logger backed by zap
func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	gl := &GormLogger{
		logger:        zapLogger.Named("gorm"),
		logLevel:      level,
		slowThreshold: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(gl)
	}
	return gl
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Info {
		l.logger.Info(redactTokens(fmt.Sprintf(msg, data...)), statementFields(ctx)...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Warn {
		l.logger.Warn(redactTokens(fmt.Sprintf(msg, data...)), statementFields(ctx)...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Error {
		l.logger.Error(redactTokens(fmt.Sprintf(msg, data...)), statementFields(ctx)...)
	}
}

// Trace implements gormlogger.Interface. Errors log at error, slow statements
// at warn and everything else at debug when the level is Info. A missing row
// is an expected lookup result, not an error.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.logLevel <= gormlogger.Silent {
		return
	}
	if err != nil && errors.Is(err, gormlogger.ErrRecordNotFound) {
		err = nil
	}

	elapsed := time.Since(begin)
	slow := l.slowThreshold != 0 && elapsed > l.slowThreshold

	switch {
	case err != nil && l.logLevel >= gormlogger.Error:
		l.logger.Error("SQL error", append(l.queryFields(ctx, elapsed, fc), zap.Error(err))...)
	case slow && l.logLevel >= gormlogger.Warn:
		l.logger.Warn("Slow SQL", append(l.queryFields(ctx, elapsed, fc), zap.Duration("threshold", l.slowThreshold))...)
	case l.logLevel >= gormlogger.Info:
		l.logger.Debug("SQL query", l.queryFields(ctx, elapsed, fc)...)
	}
}

func (l *GormLogger) queryFields(ctx context.Context, elapsed time.Duration, fc func() (string, int64)) []zap.Field {
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", redactTokens(sql)),
	}
	return append(fields, statementFields(ctx)...)
}

// statementFields ties a statement to the request or sync run that issued it
func statementFields(ctx context.Context) []zap.Field {
	fields := correlationFields(ctx)
	if shop := GetShop(ctx); shop != "" {
		fields = append(fields, zap.String("shop", shop))
	}
	return fields
}

func redactTokens(s string) string {
	return shopifyTokenPattern.ReplaceAllString(s, redactedToken)
}

// MapGormLogLevel maps the service log level to a GORM log level.
// SQL statements are only traced at debug.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	Logger *zap.Logger
}

var (
	ProductionMode  = "production"
	DevelopmentMode = "development"
)

func New(mode string) *Logger {
	var config zap.Config
	if mode == ProductionMode {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapLogger, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	return &Logger{Logger: zapLogger}
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

type ctxKey string

var RequestIdKey ctxKey = "request_id"
var UserIdKey ctxKey = "user_id"

// WithContext returns a zap logger carrying the request and user ids found in ctx.
func (l *Logger) WithContext(ctx context.Context) *zap.Logger {
	var fields []zap.Field
	if ctx != nil {
		if requestId, ok := ctx.Value(RequestIdKey).(string); ok {
			fields = append(fields, zap.String(string(RequestIdKey), requestId))
		}
		if userId, ok := ctx.Value(UserIdKey).(string); ok {
			fields = append(fields, zap.String(string(UserIdKey), userId))
		}
	}
	return l.Logger.With(fields...)
}

// Named returns a child logger tagged with a component field.
func (l *Logger) Named(component string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("component", component))}
}

var logger *Logger

// SetGlobalLogger also replaces zap's globals so zap.L() picks up the same core.
func SetGlobalLogger(l *Logger) {
	logger = l
	zap.ReplaceGlobals(l.Logger)
}

func GetGlobalLogger() *Logger {
	if logger == nil {
		return NewNop()
	}
	return logger
}

func (l *Logger) Infof(template string, args ...interface{}) {
	l.Logger.Sugar().Infof(template, args...)
}

func (l *Logger) Warnf(template string, args ...interface{}) {
	l.Logger.Sugar().Warnf(template, args...)
}

func (l *Logger) Errorf(template string, args ...interface{}) {
	l.Logger.Sugar().Errorf(template, args...)
}

func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.Logger.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.Logger.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.Logger.Error(msg, fields...)
}

func (l *Logger) Sync() {
	_ = l.Logger.Sync()
}

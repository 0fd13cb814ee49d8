package logs

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/fsandov/go-rollbar/pkg/config"
	"github.com/fsandov/go-rollbar/pkg/notifiers"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger *Logger
	initOnce     sync.Once
)

type Logger struct {
	zap       *zap.Logger
	notifiers map[string][]notifiers.Notifier
	appName   string
	mu        sync.RWMutex
	wg        sync.WaitGroup
}

// NewLogger initialises the global logger from ROLLBAR_LOGGING_* settings.
func NewLogger(opts ...zap.Option) *Logger {
	return Init(config.FromEnv().Logging, opts...)
}

// Init initialises the global logger once; later calls return it unchanged.
func Init(cfg config.LoggingConfig, opts ...zap.Option) *Logger {
	initOnce.Do(func() {
		zapLogger, err := build(cfg, append(opts, zap.AddCallerSkip(3))...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logs: %v, falling back to production defaults\n", err)
			zapLogger, _ = zap.NewProduction()
		}
		globalLogger = newLogger(zapLogger)
		zap.ReplaceGlobals(zapLogger)
	})
	return globalLogger
}

func newLogger(z *zap.Logger) *Logger {
	return &Logger{
		zap:       z,
		notifiers: make(map[string][]notifiers.Notifier),
		appName:   os.Getenv("APP_NAME"),
	}
}

func build(cfg config.LoggingConfig, opts ...zap.Option) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level '%s': %w", cfg.Level, err)
		}
		level = parsed
	}

	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	opts = append(opts, zap.AddCaller())

	if cfg.OutputPath == "" || cfg.OutputPath == "stdout" {
		return zapCfg.Build(opts...)
	}

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(zapCfg.EncoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(zapCfg.EncoderConfig)
	}
	writer := &lumberjack.Logger{
		Filename:   cfg.OutputPath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	core := zapcore.NewCore(encoder, zapcore.AddSync(writer), level)
	return zap.New(core, opts...), nil
}

func GetLogger() *Logger {
	if globalLogger == nil {
		return NewLogger()
	}
	return globalLogger
}

// Zap returns the underlying zap logger, for components that take one.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

func (l *Logger) AddNotifier(level string, notifier notifiers.Notifier) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notifiers[level] = append(l.notifiers[level], notifier)
}

func Info(ctx context.Context, msg string, fieldsAndOpts ...any) {
	GetLogger().Info(ctx, msg, fieldsAndOpts...)
}
func Warn(ctx context.Context, msg string, fieldsAndOpts ...any) {
	GetLogger().Warn(ctx, msg, fieldsAndOpts...)
}
func Error(ctx context.Context, msg string, fieldsAndOpts ...any) {
	GetLogger().Error(ctx, msg, fieldsAndOpts...)
}
func Debug(ctx context.Context, msg string, fieldsAndOpts ...any) {
	GetLogger().Debug(ctx, msg, fieldsAndOpts...)
}

func (l *Logger) Info(ctx context.Context, msg string, fieldsAndOpts ...any) {
	l.logWithOpts(ctx, "info", msg, fieldsAndOpts...)
}
func (l *Logger) Warn(ctx context.Context, msg string, fieldsAndOpts ...any) {
	l.logWithOpts(ctx, "warn", msg, fieldsAndOpts...)
}
func (l *Logger) Error(ctx context.Context, msg string, fieldsAndOpts ...any) {
	l.logWithOpts(ctx, "error", msg, fieldsAndOpts...)
}
func (l *Logger) Debug(ctx context.Context, msg string, fieldsAndOpts ...any) {
	l.logWithOpts(ctx, "debug", msg, fieldsAndOpts...)
}

func (l *Logger) logWithOpts(ctx context.Context, level, msg string, fieldsAndOpts ...any) {
	var zapFields []zap.Field
	opts := &logOptions{}
	for i := 0; i < len(fieldsAndOpts); i++ {
		switch v := fieldsAndOpts[i].(type) {
		case []zap.Field:
			zapFields = append(zapFields, v...)
		case zap.Field:
			zapFields = append(zapFields, v)
		case LogOption:
			v.apply(opts)
		case error:
			zapFields = append(zapFields, zap.Error(v))
		case string:
			// key/value pair; a trailing key without a value is kept under orphanKey.
			if i+1 < len(fieldsAndOpts) {
				zapFields = append(zapFields, zap.Any(v, fieldsAndOpts[i+1]))
				i++
			} else {
				zapFields = append(zapFields, zap.String("orphanKey", v))
			}
		default:
			zapFields = append(zapFields, zap.Any(fmt.Sprintf("arg%d", i), v))
		}
	}

	if l.appName != "" {
		msg = "[" + l.appName + "] " + msg
	}

	switch level {
	case "info":
		l.zap.Info(msg, zapFields...)
	case "warn":
		l.zap.Warn(msg, zapFields...)
	case "error":
		l.zap.Error(msg, zapFields...)
	case "debug":
		l.zap.Debug(msg, zapFields...)
	}
	if opts.withNotifier {
		l.sendNotifications(ctx, level, msg, zapFields)
	}
}

func (l *Logger) sendNotifications(ctx context.Context, level, msg string, fields []zap.Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	notifiersForLevel := l.notifiers[level]
	if len(notifiersForLevel) == 0 {
		l.zap.Warn("No notifiers configured for level", zap.String("level", level))
		return
	}
	fieldMap := fieldsToMap(fields)
	ctx = context.WithoutCancel(ctx)
	for _, notifier := range notifiersForLevel {
		l.wg.Add(1)
		go func(n notifiers.Notifier) {
			defer l.wg.Done()
			if err := n.Notify(ctx, level, msg, fieldMap); err != nil {
				l.zap.Error("failed to send notification", zap.String("level", level), zap.Error(err))
			}
		}(notifier)
	}
}

func fieldsToMap(fields []zap.Field) map[string]any {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return enc.Fields
}

// Flush waits for pending notifications and syncs the zap core.
func (l *Logger) Flush() {
	l.wg.Wait()
	_ = l.zap.Sync()
}

func Flush() {
	if globalLogger != nil {
		globalLogger.Flush()
	}
}

package logger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ZapLogger is a Logger implementation using uber-go/zap for structured logging.
// It writes to the console and, when Config.Dir is set, to a time-rotated main
// file and a size-capped error file.
type ZapLogger struct {
	logger *zap.Logger
	sugar  *zap.SugaredLogger
	sinks  *fileSinks
}

// LogLevel represents the logging level
type LogLevel string

// Log level constants
const (
	// DebugLevel enables debug and above logs
	DebugLevel LogLevel = "debug"
	// InfoLevel enables info and above logs
	InfoLevel LogLevel = "info"
	// WarnLevel enables warning and above logs
	WarnLevel LogLevel = "warn"
	// ErrorLevel enables error and critical logs
	ErrorLevel LogLevel = "error"
	// CriticalLevel enables critical logs only
	CriticalLevel LogLevel = "critical"
)

// LogFormat represents the output format for logs
type LogFormat string

// Log format constants
const (
	// JSONFormat outputs structured JSON logs
	JSONFormat LogFormat = "json"
	// TextFormat outputs human-readable text logs
	TextFormat LogFormat = "text"
)

const (
	defaultFileName         = "app"
	defaultRotationInterval = 15 * time.Minute
	defaultRetentionDays    = 7
	defaultErrorFileMaxMB   = 500
	errorFileName           = "error.log"
)

// Config holds configuration for the logger.
type Config struct {
	// Level is the console verbosity. Files always receive debug (main) and error (error file).
	Level  LogLevel
	Format LogFormat

	// Dir enables file output when non-empty.
	Dir string
	// FileName is the main log file prefix; ".log" is appended.
	FileName         string
	RotationInterval time.Duration
	RetentionDays    int
	ErrorFileMaxMB   int
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() Config {
	return Config{
		Level:            InfoLevel,
		Format:           TextFormat,
		FileName:         defaultFileName,
		RotationInterval: defaultRotationInterval,
		RetentionDays:    defaultRetentionDays,
		ErrorFileMaxMB:   defaultErrorFileMaxMB,
	}
}

// fileSinks owns the rotating writers and the rotation ticker; shared by child loggers.
type fileSinks struct {
	main      *lumberjack.Logger
	errors    *lumberjack.Logger
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewZapLogger creates a new ZapLogger with the specified configuration.
// Console output honours cfg.Level; the main file records everything from debug up and
// the error file records error and critical entries.
func NewZapLogger(cfg Config) (*ZapLogger, error) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    encodeLevel,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var consoleEncoder zapcore.Encoder
	if cfg.Format == JSONFormat {
		consoleEncoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		consoleEncoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), zapLevel(cfg.Level)),
	}

	var sinks *fileSinks
	if strings.TrimSpace(cfg.Dir) != "" {
		var err error
		sinks, err = openFileSinks(cfg)
		if err != nil {
			return nil, err
		}
		fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
		cores = append(cores,
			zapcore.NewCore(fileEncoder, zapcore.AddSync(sinks.main), zapcore.DebugLevel),
			zapcore.NewCore(fileEncoder, zapcore.AddSync(sinks.errors), zapcore.ErrorLevel),
		)
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))

	return &ZapLogger{
		logger: logger,
		sugar:  logger.Sugar(),
		sinks:  sinks,
	}, nil
}

func openFileSinks(cfg Config) (*fileSinks, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory %s: %w", cfg.Dir, err)
	}

	name := strings.TrimSpace(cfg.FileName)
	if name == "" {
		name = defaultFileName
	}
	interval := cfg.RotationInterval
	if interval <= 0 {
		interval = defaultRotationInterval
	}
	retention := cfg.RetentionDays
	if retention <= 0 {
		retention = defaultRetentionDays
	}
	maxMB := cfg.ErrorFileMaxMB
	if maxMB <= 0 {
		maxMB = defaultErrorFileMaxMB
	}

	sinks := &fileSinks{
		main: &lumberjack.Logger{
			Filename: filepath.Join(cfg.Dir, name+".log"),
			MaxAge:   retention,
		},
		errors: &lumberjack.Logger{
			Filename: filepath.Join(cfg.Dir, errorFileName),
			MaxSize:  maxMB,
		},
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go sinks.rotateEvery(interval)
	return sinks, nil
}

// rotateEvery forces a time-based rollover of the main file; lumberjack prunes
// backups older than MaxAge on each rotation.
func (s *fileSinks) rotateEvery(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = s.main.Rotate()
		case <-s.stop:
			return
		}
	}
}

func (s *fileSinks) close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		err = errors.Join(s.main.Close(), s.errors.Close())
	})
	return err
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case CriticalLevel:
		return zapcore.DPanicLevel
	default:
		return zapcore.InfoLevel
	}
}

// encodeLevel renders zap's DPanic level as "critical". The logger is never built in
// development mode, so DPanic entries do not panic.
func encodeLevel(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if level == zapcore.DPanicLevel {
		enc.AppendString("critical")
		return
	}
	zapcore.LowercaseLevelEncoder(level, enc)
}

// Debug logs a debug-level message with optional key-value pairs
func (l *ZapLogger) Debug(msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
}

// Info logs an info-level message with optional key-value pairs
func (l *ZapLogger) Info(msg string, args ...any) {
	l.sugar.Infow(msg, args...)
}

// Warn logs a warning-level message with optional key-value pairs
func (l *ZapLogger) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
}

// Error logs an error-level message with optional key-value pairs
func (l *ZapLogger) Error(msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
}

// Critical logs a critical-level message with optional key-value pairs
func (l *ZapLogger) Critical(msg string, args ...any) {
	l.sugar.DPanicw(msg, args...)
}

// Exception logs err at error level with the stack of the caller attached.
func (l *ZapLogger) Exception(msg string, err error, args ...any) {
	fields := make([]any, 0, len(args)+2)
	fields = append(fields, zap.Error(err), zap.StackSkip("stacktrace", 1))
	fields = append(fields, args...)
	l.sugar.Errorw(msg, fields...)
}

// With creates a child logger with additional key-value pairs that will be
// included in all subsequent log entries
func (l *ZapLogger) With(args ...any) Logger {
	return &ZapLogger{
		logger: l.logger,
		sugar:  l.sugar.With(args...),
		sinks:  l.sinks,
	}
}

// WithContext creates a child logger carrying the request ID found in ctx, if any.
func (l *ZapLogger) WithContext(ctx context.Context) Logger {
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		return l.With("request_id", requestID)
	}
	return l
}

// Sync flushes any buffered log entries. Applications should call this before exiting.
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

// Close flushes pending entries, stops the rotation ticker and closes the log files.
// It is safe to call more than once.
func (l *ZapLogger) Close() error {
	// Sync on stdout fails with EINVAL on some platforms; that is not worth surfacing.
	_ = l.logger.Sync()
	if l.sinks == nil {
		return nil
	}
	return l.sinks.close()
}

// ParseLogLevel converts a string to a LogLevel. Matching is case-insensitive and
// accepts "warning" for warn.
func ParseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "critical":
		return CriticalLevel, nil
	default:
		return "", fmt.Errorf("invalid log level: %s", level)
	}
}

// ParseLogFormat converts a string to a LogFormat
func ParseLogFormat(format string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return JSONFormat, nil
	case "text", "console":
		return TextFormat, nil
	default:
		return "", fmt.Errorf("invalid log format: %s", format)
	}
}

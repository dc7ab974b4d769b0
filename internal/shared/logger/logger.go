package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"franchise-bootstrap/internal/shared/utils"

	"github.com/sirupsen/logrus"
)

// Constants for configuration
const (
	// Log levels
	logLevelDebug = "DEBUG"
	logLevelInfo  = "INFO"
	logLevelWarn  = "WARN"
	logLevelError = "ERROR"
	logLevelFatal = "FATAL"

	// Log formats
	logFormatJSON = "json"
	logFormatText = "text"

	// Backends
	backendLogrus = "logrus"
	backendZap    = "zap"

	// Environment types
	envProduction = "production"
	envProd       = "prod"

	// Timestamp format
	timestampFormat = "2006-01-02T15:04:05.000Z07:00"
	textTimestamp   = "2006-01-02 15:04:05"
)

// Logger defines the interface for structured logging operations
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Fatal(args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	WithFields(fields map[string]interface{}) Logger
	WithContext(ctx context.Context) Logger
	WithComponent(component string) Logger
}

// Options selects the backend, level and format of a Logger
type Options struct {
	Backend string
	Level   string
	Format  string
	Output  io.Writer
}

// OptionsFromEnv reads LOG_BACKEND, LOG_LEVEL, LOG_FORMAT and ENVIRONMENT
func OptionsFromEnv() Options {
	format := os.Getenv("LOG_FORMAT")
	if format == "" {
		env := os.Getenv("ENVIRONMENT")
		if env == envProduction || env == envProd {
			format = logFormatJSON
		} else {
			format = logFormatText
		}
	}
	backend := os.Getenv("LOG_BACKEND")
	if backend == "" {
		backend = backendLogrus
	}
	return Options{
		Backend: backend,
		Level:   os.Getenv("LOG_LEVEL"),
		Format:  format,
		Output:  os.Stderr,
	}
}

// NewLogger creates a new logger instance configured from the environment
func NewLogger() Logger {
	return New(OptionsFromEnv())
}

// New creates a logger with explicit options
func New(opts Options) Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if strings.EqualFold(opts.Backend, backendZap) {
		return newZapLogger(opts)
	}
	return newLogrusLogger(opts)
}

// LogrusLogger implements the Logger interface using logrus
type LogrusLogger struct {
	entry *logrus.Entry
}

func newLogrusLogger(opts Options) *LogrusLogger {
	logger := logrus.New()
	logger.SetLevel(parseLogrusLevel(opts.Level))
	logger.SetFormatter(logrusFormatter(opts.Format))
	logger.SetOutput(opts.Output)

	return &LogrusLogger{
		entry: logrus.NewEntry(logger),
	}
}

// Debug logs a debug message
func (l *LogrusLogger) Debug(args ...interface{}) {
	l.entry.Debug(args...)
}

// Info logs an info message
func (l *LogrusLogger) Info(args ...interface{}) {
	l.entry.Info(args...)
}

// Warn logs a warning message
func (l *LogrusLogger) Warn(args ...interface{}) {
	l.entry.Warn(args...)
}

// Error logs an error message
func (l *LogrusLogger) Error(args ...interface{}) {
	l.entry.Error(args...)
}

// Fatal logs a fatal message and exits
func (l *LogrusLogger) Fatal(args ...interface{}) {
	l.entry.Fatal(args...)
}

// Debugf logs a formatted debug message
func (l *LogrusLogger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

// Infof logs a formatted info message
func (l *LogrusLogger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// Warnf logs a formatted warning message
func (l *LogrusLogger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

// Errorf logs a formatted error message
func (l *LogrusLogger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// Fatalf logs a formatted fatal message and exits
func (l *LogrusLogger) Fatalf(format string, args ...interface{}) {
	l.entry.Fatalf(format, args...)
}

// WithFields adds structured fields to the logger
func (l *LogrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &LogrusLogger{
		entry: l.entry.WithFields(logrus.Fields(fields)),
	}
}

// WithContext adds the bootstrap run information carried by ctx
func (l *LogrusLogger) WithContext(ctx context.Context) Logger {
	return &LogrusLogger{
		entry: l.entry.WithFields(logrus.Fields(contextFields(ctx))),
	}
}

// WithComponent adds component name to the logger
func (l *LogrusLogger) WithComponent(component string) Logger {
	return &LogrusLogger{
		entry: l.entry.WithField("component", component),
	}
}

// contextFields extracts the run id, step and database carried by ctx
func contextFields(ctx context.Context) map[string]interface{} {
	fields := map[string]interface{}{}
	addContextField(ctx, fields, "run_id", utils.GetRunIDFromContext)
	addContextField(ctx, fields, "step", utils.GetStepFromContext)
	addContextField(ctx, fields, "database", utils.GetDatabaseFromContext)
	return fields
}

func addContextField(ctx context.Context, fields map[string]interface{}, name string, get func(context.Context) (string, error)) {
	if v, err := get(ctx); err == nil && v != "" {
		fields[name] = v
	}
}

// parseLogrusLevel maps LOG_LEVEL values to logrus levels, defaulting to info
func parseLogrusLevel(level string) logrus.Level {
	switch level {
	case logLevelDebug, "debug":
		return logrus.DebugLevel
	case logLevelInfo, "info":
		return logrus.InfoLevel
	case logLevelWarn, "warn", "WARNING", "warning":
		return logrus.WarnLevel
	case logLevelError, "error":
		return logrus.ErrorLevel
	case logLevelFatal, "fatal":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

func logrusFormatter(format string) logrus.Formatter {
	if format == logFormatJSON {
		return &logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		}
	}

	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: textTimestamp,
	}
}

package logger

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements the Logger interface on top of zap's SugaredLogger
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

func newZapLogger(opts Options) *ZapLogger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.MessageKey = "message"
	encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout(timestampFormat)

	var encoder zapcore.Encoder
	if opts.Format == logFormatJSON {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(opts.Output), parseZapLevel(opts.Level))
	return &ZapLogger{sugar: zap.New(core).Sugar()}
}

func parseZapLevel(level string) zapcore.Level {
	switch parseLogrusLevel(level).String() {
	case "debug":
		return zapcore.DebugLevel
	case "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Debug logs a debug message
func (l *ZapLogger) Debug(args ...interface{}) { l.sugar.Debug(args...) }

// Info logs an info message
func (l *ZapLogger) Info(args ...interface{}) { l.sugar.Info(args...) }

// Warn logs a warning message
func (l *ZapLogger) Warn(args ...interface{}) { l.sugar.Warn(args...) }

// Error logs an error message
func (l *ZapLogger) Error(args ...interface{}) { l.sugar.Error(args...) }

// Fatal logs a fatal message and exits
func (l *ZapLogger) Fatal(args ...interface{}) { l.sugar.Fatal(args...) }

// Debugf logs a formatted debug message
func (l *ZapLogger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

// Infof logs a formatted info message
func (l *ZapLogger) Infof(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

// Warnf logs a formatted warning message
func (l *ZapLogger) Warnf(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }

// Errorf logs a formatted error message
func (l *ZapLogger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// Fatalf logs a formatted fatal message and exits
func (l *ZapLogger) Fatalf(format string, args ...interface{}) { l.sugar.Fatalf(format, args...) }

// WithFields adds structured fields to the logger
func (l *ZapLogger) WithFields(fields map[string]interface{}) Logger {
	return &ZapLogger{sugar: l.sugar.With(keysAndValues(fields)...)}
}

// WithContext adds the bootstrap run information carried by ctx
func (l *ZapLogger) WithContext(ctx context.Context) Logger {
	return l.WithFields(contextFields(ctx))
}

// WithComponent adds component name to the logger
func (l *ZapLogger) WithComponent(component string) Logger {
	return &ZapLogger{sugar: l.sugar.With(zap.String("component", component))}
}

// keysAndValues flattens fields in key order so output is stable
func keysAndValues(fields map[string]interface{}) []interface{} {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		out = append(out, k, fields[k])
	}
	return out
}

// Package logging provides structured logging for the registry daemon.
//
// Two logger variants are available:
//   - Logger: non-sugared zap.Logger for hot paths (add/remove) where
//     allocation-free structured fields matter
//   - SugaredLogger: printf-style logging for CLI/admin surfaces
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with the daemon's fixed encoder config.
type Logger struct {
	zap *zap.Logger
}

// SugaredLogger wraps zap.SugaredLogger for printf-style logging.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// New creates a logger writing JSON lines to os.Stderr.
func New() *Logger {
	return newWithWriter(os.Stderr)
}

// WithOutput returns a new logger writing to a different writer, used
// by admin/inspect tooling that wants to capture daemon logs in tests.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	core := jsonCore(w)
	return &Logger{zap: l.zap.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core { return core }))}
}

// With returns a new logger with additional structured fields bound,
// e.g. a per-queue logger carrying queue="events".
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zap: l.zap.With(fields...)}
}

func newWithWriter(w io.Writer) *Logger {
	return &Logger{zap: zap.New(jsonCore(w))}
}

func jsonCore(w io.Writer) zapcore.Core {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(w), zapcore.DebugLevel)
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.zap.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.zap.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.zap.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.zap.Error(msg, fields...) }

// Sugar returns a SugaredLogger for printf-style logging, used by the
// ferryctl CLI and admin command handlers.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

func (s *SugaredLogger) Debugf(template string, args ...any) { s.sugar.Debugf(template, args...) }
func (s *SugaredLogger) Infof(template string, args ...any)  { s.sugar.Infof(template, args...) }
func (s *SugaredLogger) Warnf(template string, args ...any)  { s.sugar.Warnf(template, args...) }
func (s *SugaredLogger) Errorf(template string, args ...any) { s.sugar.Errorf(template, args...) }

func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}

package log

import (
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu      sync.RWMutex
	sugar   *zap.SugaredLogger
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	initOne sync.Once
)

// initLogger installs the default console logger on stderr.
func initLogger() {
	initOne.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if sugar == nil {
			sugar = build(os.Stderr, "console")
		}
	})
}

func build(w io.Writer, format string) *zap.SugaredLogger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).Sugar()
}

// SetOutput redirects log output to w using format "console" or "json".
func SetOutput(w io.Writer, format string) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	sugar = build(w, format)
}

// SetLevel changes the minimum level. Unknown names fall back to INFO.
func SetLevel(l Level) {
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(strings.ToLower(string(l)))); err != nil {
		zl = zapcore.InfoLevel
	}
	level.SetLevel(zl)
}

// Sync flushes buffered entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if sugar != nil {
		_ = sugar.Sync()
	}
}

func Debug(msg string, kv ...any) {
	logWithLevel(zapcore.DebugLevel, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(zapcore.InfoLevel, msg, kv...)
}

func Warn(msg string, kv ...any) {
	logWithLevel(zapcore.WarnLevel, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logWithLevel(zapcore.ErrorLevel, msg, extended...)
}

func logWithLevel(l zapcore.Level, msg string, kv ...any) {
	initLogger()
	mu.RLock()
	s := sugar
	mu.RUnlock()

	// Odd trailing keys are dropped rather than reported by zap.
	if len(kv)%2 != 0 {
		kv = kv[:len(kv)-1]
	}

	switch l {
	case zapcore.DebugLevel:
		s.Debugw(msg, kv...)
	case zapcore.WarnLevel:
		s.Warnw(msg, kv...)
	case zapcore.ErrorLevel:
		s.Errorw(msg, kv...)
	default:
		s.Infow(msg, kv...)
	}
}

package logger

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type handle struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
}

var (
	current  atomic.Pointer[handle]
	fallback sync.Once
)

// New builds a stderr logger for one process. Stdout belongs to the terminal client.
// env "dev" selects colored console output; anything else writes JSON. An unknown
// level falls back to info.
func New(service, env, level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build(zap.AddCaller(), zap.Fields(zap.String("service", service)))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

// Init installs the process-wide logger used by L, S and Named.
func Init(service, env, level string) {
	l, err := New(service, env, level)
	if err != nil {
		panic(err)
	}
	Set(l)
	l.Debug("logger initialized", zap.String("env", env), zap.String("level", level))
}

// Set replaces the process-wide logger. Tests use it to capture output.
func Set(l *zap.Logger) {
	current.Store(&handle{base: l, sugar: l.Sugar()})
}

func get() *handle {
	if h := current.Load(); h != nil {
		return h
	}
	fallback.Do(func() {
		if current.Load() == nil {
			Init("unknown", "dev", "info")
		}
	})
	return current.Load()
}

func L() *zap.Logger { return get().base }

func S() *zap.SugaredLogger { return get().sugar }

// Named scopes a child logger to one component, e.g. "catalog" or "store".
func Named(component string) *zap.Logger {
	return L().Named(component)
}

// Sync flushes buffered entries; defer it in main.
func Sync() {
	if h := current.Load(); h != nil {
		_ = h.base.Sync()
	}
}

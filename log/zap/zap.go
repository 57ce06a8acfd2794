// Package zap adapts go.uber.org/zap to reccache.Logger.
package zap

import (
	"fmt"
	"sort"

	"github.com/unkn0wn-root/reccache"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ reccache.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

// New builds a JSON production logger at the given level
// (debug, info, warn, error).
func New(level string) (ZapLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return ZapLogger{}, fmt.Errorf("zap level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		return ZapLogger{}, err
	}
	return ZapLogger{L: l}, nil
}

// Sync flushes buffered entries.
func (z ZapLogger) Sync() error { return z.L.Sync() }

func (z ZapLogger) Debug(msg string, f reccache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f reccache.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f reccache.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f reccache.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f reccache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}

// Package logging constructs the structured logger every lattice daemon
// component shares. The teacher CLI gets away with fmt.Fprintln plus
// github.com/fatih/color because it is a short-lived, single-shot
// process; the lattice host is a long-lived daemon, so it adopts
// go.uber.org/zap the way the rest of the retrieved corpus's daemon-style
// repos do (jordigilh/kubernaut, gardener/gardener, openshift/hypershift
// all carry zap/zapr) rather than inventing an ambient logging style with
// no precedent in the pack.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap.Logger at the given level ("debug", "info",
// "warn", "error"), stamped with the owning component's name and, when
// non-empty, the host ID it is running as.
func New(component, level, hostID string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("logging: invalid level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build: %w", err)
	}

	fields := []zap.Field{zap.String("component", component)}
	if hostID != "" {
		fields = append(fields, zap.String("host_id", hostID))
	}
	return logger.With(fields...), nil
}

// Nop returns a logger that discards everything, for tests.
func Nop() *zap.Logger {
	return zap.NewNop()
}

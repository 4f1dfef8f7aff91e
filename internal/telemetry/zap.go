// Package telemetry is a zap-backed ports.TelemetryPort. Emit is
// fire-and-forget: it logs at Info level and never returns an error the
// actor could act on.
package telemetry

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/octorelay/blesync-engine/internal/ports"
)

// ZapPort logs every TelemetryEvent as a structured zap entry.
type ZapPort struct {
	log *zap.Logger
}

// NewZapPort wraps an existing *zap.Logger.
func NewZapPort(log *zap.Logger) *ZapPort {
	return &ZapPort{log: log.Named("telemetry")}
}

// BuildLogger constructs a zap.Logger for the given level/format,
// mirroring the engine's own startup logging conventions: "console" is
// the human-readable development encoder, anything else is the
// production JSON encoder.
func BuildLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	return cfg.Build()
}

func (p *ZapPort) Emit(e ports.TelemetryEvent) {
	fields := make([]zap.Field, 0, len(e.Data)+2)
	fields = append(fields, zap.Int64("at", int64(e.At)), zap.String("deviceId", string(e.DeviceId)))
	for k, v := range e.Data {
		fields = append(fields, zap.String(k, v))
	}
	p.log.Info(e.Name, fields...)
}

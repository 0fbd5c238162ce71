// Package observability builds the server's zap logger and the OpenTelemetry
// instruments the executor and regeneration driver record into.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/actioncore/internal/config"
)

// NewLogger builds the process logger. Every entry carries the server's type
// and mode so logs from several instances can be told apart.
//
// Precondition: logging must pass config validation.
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(logging config.LoggingConfig, server config.ServerConfig) (*zap.Logger, error) {
	zapCfg, err := loggerConfig(logging, server)
	if err != nil {
		return nil, err
	}
	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// loggerConfig maps settings onto a zap.Config. Sampling is off: a burst of
// identical action failures must all reach the log.
func loggerConfig(logging config.LoggingConfig, server config.ServerConfig) (zap.Config, error) {
	level, err := zapcore.ParseLevel(logging.Level)
	if err != nil {
		return zap.Config{}, fmt.Errorf("parsing log level %q: %w", logging.Level, err)
	}

	var zapCfg zap.Config
	switch logging.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return zap.Config{}, fmt.Errorf("unknown log format %q", logging.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Sampling = nil
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.InitialFields = map[string]any{}
	if server.Type != "" {
		zapCfg.InitialFields["server"] = server.Type
	}
	if server.Mode != "" {
		zapCfg.InitialFields["mode"] = server.Mode
	}
	return zapCfg, nil
}

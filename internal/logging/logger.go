// Package logging builds the process-wide zap logger from configuration.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/glossary-harvester/internal/config"
	"github.com/JakeFAU/glossary-harvester/internal/glossary"
)

// New starts from zap's development or production preset and applies the
// configured level and encoding on top of it.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zcfg.EncoderConfig.TimeKey = "ts"

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("%w: logging level: %w", glossary.ErrConfiguration, err)
		}
		zcfg.Level = level
	}

	switch cfg.Encoding {
	case "":
	case "json":
		zcfg.Encoding = "json"
		// Color codes do not belong in JSON.
		zcfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	case "console":
		zcfg.Encoding = "console"
	default:
		return nil, fmt.Errorf("%w: unknown logging encoding %q", glossary.ErrConfiguration, cfg.Encoding)
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

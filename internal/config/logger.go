package config

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the process logger: production JSON output by default,
// the console development logger when lc.Development is set.
func NewLogger(lc LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if lc.Level != "" {
		level, err := zap.ParseAtomicLevel(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		zc.Level = level
	}
	return zc.Build()
}

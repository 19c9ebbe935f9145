// Package logging builds the process logger from config.
package logging

import (
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/fern/config"
)

// New builds a zap-backed logger at the configured level.
func New(cfg config.Config) (ectologger.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	zlog, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	zlog = zlog.With(zap.String("app", cfg.AppName))

	return zapadapter.NewZapEctoLogger(zlog, nil), nil
}

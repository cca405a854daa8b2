// Package config handles application configuration and setup.
package config

import (
	"github.com/retroenv/retrodemo/internal/options"
	"github.com/retroenv/retrogolib/log"
)

// CreateLogger creates a logger for the compiler run. Debug output wins over
// quiet mode.
func CreateLogger(flags options.Flags) *log.Logger {
	cfg := log.DefaultConfig()
	switch {
	case flags.Debug:
		cfg.Level = log.DebugLevel
	case flags.Quiet:
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

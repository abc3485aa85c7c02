package main

import (
	"strings"

	"unspool/internal/config"
	"unspool/internal/daemonrun"
)

// buildRunOptions resolves runtime logging options. An explicit -log-level
// beats the configured level; -diagnostic forces debug either way.
func buildRunOptions(cfg *config.Config, logLevel string, diagnostic bool) daemonrun.Options {
	level := strings.TrimSpace(logLevel)
	if level == "" && cfg != nil {
		level = cfg.Logging.Level
	}
	if diagnostic {
		level = "debug"
	}

	development := diagnostic
	if cfg != nil && strings.EqualFold(strings.TrimSpace(cfg.Logging.Format), "console") {
		development = true
	}

	return daemonrun.Options{
		LogLevel:    level,
		Development: development,
		Diagnostic:  diagnostic,
	}
}

package app

import (
	"strings"

	"github.com/taskhive/taskhive/pkg/logger"
)

// ConfigureLogging initialises the global logger from the configured level,
// defaulting to info when unset.
func ConfigureLogging(level string) error {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "info"
	}
	return logger.Init(level)
}

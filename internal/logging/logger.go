package logging

import (
	"github.com/ternarybob/arbor"
	arbormodels "github.com/ternarybob/arbor/models"
)

// New returns a console logger filtered at the given level (debug, info, warn, error).
func New(level string) arbor.ILogger {
	if level == "" {
		level = "info"
	}
	return arbor.NewLogger().WithConsoleWriter(arbormodels.WriterConfiguration{
		Type:             arbormodels.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString(level)
}

// Discard returns a logger for tests and tools that should stay quiet.
func Discard() arbor.ILogger {
	return arbor.NewLogger()
}

package logging

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// New создаёт логгер с заданным уровнем (debug, info, warn, error).
// Неизвестный уровень - info.
func New(w io.Writer, level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}

	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Level:           lvl,
	})
}

// Setup устанавливает логгер по умолчанию для всего процесса (вывод в stderr,
// stdout остаётся для ответов и MCP)
func Setup(level string) *log.Logger {
	logger := New(os.Stderr, level)
	log.SetDefault(logger)
	return logger
}

package logger

import "github.com/harrison/resultsync/internal/models"

// Logger is implemented by every sink in this package.
type Logger interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogCommandOutput(command, output string)
	LogSummary(summary models.ExportSummary)
}

// MultiLogger forwards every event to all of its sinks in order.
type MultiLogger struct {
	sinks []Logger
}

// NewMultiLogger creates a MultiLogger. Nil sinks are ignored.
func NewMultiLogger(sinks ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiLogger) LogTrace(message string) {
	for _, s := range m.sinks {
		s.LogTrace(message)
	}
}

func (m *MultiLogger) LogDebug(message string) {
	for _, s := range m.sinks {
		s.LogDebug(message)
	}
}

func (m *MultiLogger) LogInfo(message string) {
	for _, s := range m.sinks {
		s.LogInfo(message)
	}
}

func (m *MultiLogger) LogWarn(message string) {
	for _, s := range m.sinks {
		s.LogWarn(message)
	}
}

func (m *MultiLogger) LogError(message string) {
	for _, s := range m.sinks {
		s.LogError(message)
	}
}

func (m *MultiLogger) LogCommandOutput(command, output string) {
	for _, s := range m.sinks {
		s.LogCommandOutput(command, output)
	}
}

func (m *MultiLogger) LogSummary(summary models.ExportSummary) {
	for _, s := range m.sinks {
		s.LogSummary(summary)
	}
}

var (
	_ Logger = (*ConsoleLogger)(nil)
	_ Logger = (*FileLogger)(nil)
	_ Logger = (*NoOpLogger)(nil)
	_ Logger = (*MultiLogger)(nil)
)

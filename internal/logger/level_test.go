package logger

import (
	"bytes"
	"strings"
	"testing"
)

// TestLogLevelFiltering verifies that messages are filtered based on log level
func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		name         string
		logLevel     string
		messageLevel string
		shouldAppear bool
	}{
		{name: "trace sees trace", logLevel: "trace", messageLevel: "trace", shouldAppear: true},
		{name: "trace sees error", logLevel: "trace", messageLevel: "error", shouldAppear: true},
		{name: "debug blocks trace", logLevel: "debug", messageLevel: "trace", shouldAppear: false},
		{name: "debug sees debug", logLevel: "debug", messageLevel: "debug", shouldAppear: true},
		{name: "info blocks debug", logLevel: "info", messageLevel: "debug", shouldAppear: false},
		{name: "info sees info", logLevel: "info", messageLevel: "info", shouldAppear: true},
		{name: "info sees warn", logLevel: "info", messageLevel: "warn", shouldAppear: true},
		{name: "warn blocks info", logLevel: "warn", messageLevel: "info", shouldAppear: false},
		{name: "warn sees error", logLevel: "warn", messageLevel: "error", shouldAppear: true},
		{name: "error blocks warn", logLevel: "error", messageLevel: "warn", shouldAppear: false},
		{name: "error sees error", logLevel: "error", messageLevel: "error", shouldAppear: true},
		{name: "invalid level defaults to info", logLevel: "loud", messageLevel: "debug", shouldAppear: false},
		{name: "level is case-insensitive", logLevel: " DEBUG ", messageLevel: "debug", shouldAppear: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			cl := NewConsoleLogger(buf, tt.logLevel)

			switch tt.messageLevel {
			case "trace":
				cl.LogTrace("msg")
			case "debug":
				cl.LogDebug("msg")
			case "info":
				cl.LogInfo("msg")
			case "warn":
				cl.LogWarn("msg")
			case "error":
				cl.LogError("msg")
			}

			appeared := strings.Contains(buf.String(), "msg")
			if appeared != tt.shouldAppear {
				t.Errorf("message at %s with level %s: appeared=%v, want %v", tt.messageLevel, tt.logLevel, appeared, tt.shouldAppear)
			}
			if appeared && !strings.Contains(buf.String(), "["+strings.ToUpper(tt.messageLevel)+"]") {
				t.Errorf("expected level tag in %q", buf.String())
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	for _, level := range []string{"trace", "debug", "info", "warn", "error", "INFO"} {
		if !ValidLevel(level) {
			t.Errorf("ValidLevel(%q) = false, want true", level)
		}
	}
	for _, level := range []string{"", "verbose", "warning"} {
		if ValidLevel(level) {
			t.Errorf("ValidLevel(%q) = true, want false", level)
		}
	}
}

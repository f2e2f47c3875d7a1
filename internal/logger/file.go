package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/harrison/resultsync/internal/models"
)

// DefaultLogDir is used when no log directory is configured.
var DefaultLogDir = filepath.Join(".resultsync", "logs")

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileLogger logs run events to files in a log directory.
// It creates a timestamped per-run log file, one file per external command
// in the commands/ subdirectory, and maintains a latest.log symlink pointing
// to the most recent run.
type FileLogger struct {
	logDir      string
	runLog      *os.File
	runFile     string
	commandsDir string
	commands    int
	logLevel    string
	mu          sync.Mutex
}

// NewFileLogger creates a FileLogger in DefaultLogDir at level "info".
func NewFileLogger() (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(DefaultLogDir, "info")
}

// NewFileLoggerWithDirAndLevel creates a FileLogger with a custom log
// directory and log level.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	commandsDir := filepath.Join(logDir, "commands")
	if err := os.MkdirAll(commandsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create commands directory: %w", err)
	}

	// Generate timestamped filename: run-YYYYMMDD-HHMMSS.log
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405")))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	logger := &FileLogger{
		logDir:      logDir,
		runLog:      file,
		runFile:     runFile,
		commandsDir: commandsDir,
		logLevel:    normalizeLogLevel(logLevel),
	}

	logger.writeRunLog("=== resultsync Run Log ===\n")
	logger.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return logger, nil
}

// RunFile returns the path of the run log.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (fl *FileLogger) LogTrace(message string) {
	fl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	fl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.logWithLevel("ERROR", message)
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("15:04:05"), level, message))
}

// LogCommandOutput stores the output of an external command, with ANSI
// escape sequences removed, in commands/NN-<program>.log regardless of the
// log level. The run log records where it went.
func (fl *FileLogger) LogCommandOutput(command, output string) {
	fl.mu.Lock()
	fl.commands++
	n := fl.commands
	fl.mu.Unlock()

	program := "command"
	if fields := strings.Fields(command); len(fields) > 0 {
		program = unsafeName.ReplaceAllString(filepath.Base(fields[0]), "_")
	}
	path := filepath.Join(fl.commandsDir, fmt.Sprintf("%02d-%s.log", n, program))

	content := fmt.Sprintf("$ %s\n\n%s", command, stripansi.Strip(output))
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += fmt.Sprintf("\nCompleted at: %s\n", time.Now().Format(time.RFC3339))

	ts := time.Now().Format("15:04:05")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		fl.writeRunLog(fmt.Sprintf("[%s] [WARN] failed to write command log: %v\n", ts, err))
		return
	}
	rel, _ := filepath.Rel(fl.logDir, path)
	fl.writeRunLog(fmt.Sprintf("[%s] [INFO] Output of %q saved to %s\n", ts, command, rel))
}

// LogSummary logs the export summary at INFO level.
func (fl *FileLogger) LogSummary(summary models.ExportSummary) {
	if !fl.shouldLog("info") {
		return
	}

	ts := time.Now().Format("15:04:05")

	mode := "full"
	if summary.DescriptionOnly {
		mode = "description only"
	}
	status := "WRITTEN"
	if summary.DryRun {
		status = "DRY RUN"
	}

	message := fmt.Sprintf(
		"\n[%s] === EXPORT SUMMARY ===\n"+
			"[%s] Run:          %s\n"+
			"[%s] Page:         %s (%s)\n"+
			"[%s] Source:       %s\n"+
			"[%s] Created:      %d\n"+
			"[%s] Updated:      %d\n"+
			"[%s] Skipped:      %d\n"+
			"[%s] Requirements: %d\n"+
			"[%s] Mode:         %s\n"+
			"[%s] Total time:   %.1fs\n"+
			"[%s] Status:       %s\n",
		ts,
		ts, summary.RunID,
		ts, summary.PageTitle, summary.PageID,
		ts, summary.SourceFile,
		ts, summary.Created,
		ts, summary.Updated,
		ts, summary.Skipped,
		ts, summary.Requirements,
		ts, mode,
		ts, summary.Duration.Seconds(),
		ts, status,
	)

	fl.writeRunLog(message)
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}

	return nil
}

// writeRunLog is a thread-safe helper to write to the run log file.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		// Flush after each write for real-time logging
		fl.runLog.Sync()
	}
}

// Package logger provides centralized diagnostic logging using arbor.
//
// taskgate speaks its RPC protocol on stdout; this package never writes
// there. All writers are pinned to stderr (console writer with stderr
// target) plus an optional file writer, so a misconfigured "stdout" output
// can never corrupt the wire protocol.
package logger

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	arborcommon "github.com/ternarybob/arbor/common"
	"github.com/ternarybob/arbor/models"

	"github.com/ternarybob/taskgate/internal/config"
)

var (
	globalLogger arbor.ILogger
	loggerMutex  sync.RWMutex
)

// GetLogger returns the global logger instance, initializing a stderr
// fallback if SetupLogger hasn't run yet.
func GetLogger() arbor.ILogger {
	loggerMutex.RLock()
	if globalLogger != nil {
		loggerMutex.RUnlock()
		return globalLogger
	}
	loggerMutex.RUnlock()

	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	if globalLogger == nil {
		globalLogger = arbor.NewLogger().WithConsoleWriter(writerConfig(nil, models.LogWriterTypeConsole, ""))
		globalLogger.Warn().Msg("using fallback logger - SetupLogger was not called during startup")
	}
	return globalLogger
}

// InitLogger stores the provided logger as the global singleton.
func InitLogger(l arbor.ILogger) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	globalLogger = l
}

// SetupLogger configures and installs the global logger from config.
//
// Console output always targets stderr; cfg.Logging.Output may additionally
// request "file" to also persist diagnostics under cfg.Logging.Dir.
func SetupLogger(cfg *config.Config) arbor.ILogger {
	l := arbor.NewLogger()

	hasFile := false
	for _, out := range cfg.Logging.Output {
		if out == "file" {
			hasFile = true
		}
	}

	if hasFile {
		dir := cfg.Logging.Dir
		if dir == "" {
			dir = filepath.Join(os.TempDir(), "taskgate", "logs")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			l = l.WithConsoleWriter(writerConfig(cfg, models.LogWriterTypeConsole, ""))
			l.Warn().Err(err).Str("log_dir", dir).Msg("failed to create log directory")
		} else {
			logFile := filepath.Join(dir, "taskgate.log")
			l = l.WithFileWriter(writerConfig(cfg, models.LogWriterTypeFile, logFile))
		}
	}

	// Console writer always present, always stderr - this is the protocol
	// safety boundary (see package doc).
	l = l.WithConsoleWriter(writerConfig(cfg, models.LogWriterTypeConsole, ""))
	l = l.WithLevelFromString(cfg.Logging.Level)

	InitLogger(l)
	return l
}

func writerConfig(cfg *config.Config, wt models.LogWriterType, filename string) models.WriterConfiguration {
	timeFormat := "2006-01-02T15:04:05.000Z07:00"
	outputType := models.OutputFormatJSON
	var maxSize int64 = 50 * 1024 * 1024
	maxBackups := 3

	if cfg != nil {
		if cfg.Logging.TimeFormat != "" {
			timeFormat = cfg.Logging.TimeFormat
		}
		if cfg.Logging.Format == "text" {
			outputType = models.OutputFormatLogfmt
		}
		if cfg.Logging.MaxSizeMB > 0 {
			maxSize = int64(cfg.Logging.MaxSizeMB) * 1024 * 1024
		}
		if cfg.Logging.MaxBackups > 0 {
			maxBackups = cfg.Logging.MaxBackups
		}
	}

	return models.WriterConfiguration{
		Type:       wt,
		FileName:   filename,
		TimeFormat: timeFormat,
		OutputType: outputType,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
	}
}

// Stop flushes any buffered logs before shutdown. Safe to call repeatedly.
func Stop() {
	arborcommon.Stop()
}

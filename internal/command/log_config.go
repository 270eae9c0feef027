package command

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joeycumines/goja-scene/internal/config"
	"github.com/joeycumines/goja-scene/internal/scripting"
)

// logConfig holds resolved logging configuration for script-executing
// commands.
type logConfig struct {
	level      slog.Level
	logFile    io.WriteCloser // nil if no file logging
	bufferSize int
}

// resolveLogConfig resolves logging from flags, falling back to the config
// for empty or zero flags. The caller must close logFile when it is set.
func resolveLogConfig(flagPath, flagLevel string, flagBufferSize int, cfg *config.Config, section string) (logConfig, error) {
	schema := config.DefaultSchema()
	var lc logConfig

	levelStr := flagLevel
	if levelStr == "" {
		levelStr = schema.Resolve(cfg, section, config.KeyLogLevel)
	}
	switch strings.ToLower(levelStr) {
	case "debug", "info", "", "warn", "error":
		lc.level = scripting.ParseLevel(levelStr)
	default:
		return lc, fmt.Errorf("invalid log level: %s", levelStr)
	}

	lc.bufferSize = flagBufferSize
	if lc.bufferSize <= 0 {
		lc.bufferSize = schema.ResolveInt(cfg, section, config.KeyLogBuffer)
	}

	logPath := flagPath
	if logPath == "" {
		logPath = schema.Resolve(cfg, section, config.KeyLogFile)
	}
	if logPath != "" {
		maxSizeMB := schema.ResolveInt(cfg, section, config.KeyLogMaxSizeMB)
		if maxSizeMB <= 0 {
			maxSizeMB = 10
		}
		// zero backups is valid: the file is truncated on rotation
		maxFiles := max(schema.ResolveInt(cfg, section, config.KeyLogMaxFiles), 0)
		w, err := scripting.OpenLogFile(logPath, maxSizeMB, maxFiles)
		if err != nil {
			return lc, fmt.Errorf("failed to open log file %s: %w", logPath, err)
		}
		lc.logFile = w
	}
	return lc, nil
}

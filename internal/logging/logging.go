package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"optionsViewer/internal/config"
)

// Setup configures the global logrus logger: text format, the configured
// level, and output to the console and/or a rotated file. With no file path
// set, logs go to the console only.
func Setup(cfg config.Logging, appName string) error {
	if appName == "" {
		return fmt.Errorf("appName cannot be empty")
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	level, errLevel := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if errLevel != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	console := cfg.Console == nil || *cfg.Console
	var writers []io.Writer
	if console {
		writers = append(writers, os.Stdout)
	}
	var logFile string
	if cfg.FilePath != "" {
		logFile = cfg.FilePath
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory '%s': %w", filepath.Dir(logFile), err)
		}
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 50
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    maxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}
	logrus.SetOutput(io.MultiWriter(writers...))

	if errLevel != nil {
		logrus.Warnf("Invalid log level '%s' (from config) was overridden to 'info'. Error: %v", cfg.Level, errLevel)
	}
	logrus.Infof("-------------------------------- Started %s --------------------------------", appName)
	logrus.Infof("Logging configured: Level=%s, File=%s, Console=%t", logrus.GetLevel().String(), logFile, console)
	return nil
}

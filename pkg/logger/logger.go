package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Fields type is an alias for logrus.Fields
type Fields = logrus.Fields

// Config for the logger
type Config struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig logs warnings and above as text to stderr
func DefaultConfig() Config {
	return Config{
		Level:      "warn",
		Format:     "text",
		MaxSize:    10,
		MaxAge:     28,
		MaxBackups: 3,
	}
}

var (
	mu     sync.RWMutex
	global *logrus.Logger
)

// New builds a logger from config. Human output goes to stderr so stdout
// stays free for command output; when File is set, entries are also written
// to a rotating log file.
func New(config Config, stderr io.Writer) (*logrus.Logger, error) {
	if config.Level == "" {
		config.Level = "warn"
	}
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(level)

	switch strings.ToLower(config.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:          true,
			DisableLevelTruncation: true,
			PadLevelText:           true,
			TimestampFormat:        "2006-01-02 15:04:05",
		})
	default:
		return nil, fmt.Errorf("invalid log format %q (expected text or json)", config.Format)
	}

	outputs := []io.Writer{stderr}

	if config.File != "" {
		if err := os.MkdirAll(filepath.Dir(config.File), 0o755); err != nil {
			return nil, fmt.Errorf("could not create log directory: %w", err)
		}
		outputs = append(outputs, &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    config.MaxSize,
			MaxAge:     config.MaxAge,
			MaxBackups: config.MaxBackups,
			Compress:   config.Compress,
		})
	}

	if len(outputs) > 1 {
		logger.SetOutput(io.MultiWriter(outputs...))
	} else {
		logger.SetOutput(outputs[0])
	}

	return logger, nil
}

// Init builds a logger from config and installs it as the process logger
func Init(config Config) error {
	logger, err := New(config, os.Stderr)
	if err != nil {
		return err
	}

	mu.Lock()
	global = logger
	mu.Unlock()

	logger.WithFields(Fields{
		"level":  logger.GetLevel().String(),
		"format": config.Format,
		"file":   config.File,
	}).Debug("Logger initialized")
	return nil
}

// Get returns the process logger, or the logrus standard logger before Init
func Get() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		return logrus.StandardLogger()
	}
	return global
}

// Module returns an entry tagged with the component name
func Module(name string) *logrus.Entry {
	return Get().WithField("module", name)
}

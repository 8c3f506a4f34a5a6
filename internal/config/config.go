package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nickromney-org/ota-release-selector/internal/selector"
	"github.com/nickromney-org/ota-release-selector/pkg/logger"
)

// EnvPrefix is prepended to environment variable names, e.g. OTA_TOKEN or
// OTA_INSTALL_PATH
const EnvPrefix = "OTA"

// Config holds all application configuration
type Config struct {
	Repository     string `mapstructure:"repository"`
	APIURL         string `mapstructure:"api_url"`
	Token          string `mapstructure:"token"`
	Filename       string `mapstructure:"filename"`
	CurrentVersion string `mapstructure:"current_version"`
	ReleaseID      int64  `mapstructure:"release_id"`
	Newer          bool   `mapstructure:"newer"`
	Latest         bool   `mapstructure:"latest"`
	Prerelease     bool   `mapstructure:"prerelease"`
	Capacity       int    `mapstructure:"capacity"`

	Install InstallConfig `mapstructure:"install"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Logging logger.Config `mapstructure:"logging"`
}

// InstallConfig controls where firmware images are written
type InstallConfig struct {
	Path    string        `mapstructure:"path"`
	Backup  bool          `mapstructure:"backup"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// WatchConfig controls the polling loop
type WatchConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxFailures uint32        `mapstructure:"max_failures"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("repository", def.Repository)
	v.SetDefault("api_url", def.APIURL)
	v.SetDefault("token", def.Token)
	v.SetDefault("filename", def.Filename)
	v.SetDefault("current_version", def.CurrentVersion)
	v.SetDefault("release_id", def.ReleaseID)
	v.SetDefault("newer", def.Newer)
	v.SetDefault("latest", def.Latest)
	v.SetDefault("prerelease", def.Prerelease)
	v.SetDefault("capacity", def.Capacity)

	v.SetDefault("install.path", def.Install.Path)
	v.SetDefault("install.backup", def.Install.Backup)
	v.SetDefault("install.timeout", def.Install.Timeout)

	v.SetDefault("watch.interval", def.Watch.Interval)
	v.SetDefault("watch.max_failures", def.Watch.MaxFailures)
	v.SetDefault("watch.cooldown", def.Watch.Cooldown)

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.file", def.Logging.File)
	v.SetDefault("logging.max_size", def.Logging.MaxSize)
	v.SetDefault("logging.max_age", def.Logging.MaxAge)
	v.SetDefault("logging.max_backups", def.Logging.MaxBackups)
	v.SetDefault("logging.compress", def.Logging.Compress)
}

// Load loads configuration from file. With an empty path, ota.yaml is looked
// up in the working directory and $HOME/.config/ota; a missing file is not an
// error. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ota")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/ota")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Filename: "firmware.bin",
		Capacity: selector.DefaultCapacity,
		Install: InstallConfig{
			Path:    "firmware.bin",
			Backup:  true,
			Timeout: 10 * time.Minute,
		},
		Watch: WatchConfig{
			Interval:    time.Hour,
			MaxFailures: 3,
			Cooldown:    5 * time.Minute,
		},
		Logging: logger.DefaultConfig(),
	}
}

// Selection returns the release filter described by the configuration
func (c *Config) Selection() selector.Config {
	sel := selector.Config{
		TargetFilename: c.Filename,
		LatestOnly:     c.Latest,
		Prerelease:     c.Prerelease,
		ReleaseID:      c.ReleaseID,
		Capacity:       c.Capacity,
	}
	if c.Newer {
		sel.NewerThan = c.CurrentVersion
	}
	return sel
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	if c.Newer && c.CurrentVersion == "" {
		return errors.New("newer filter requires current_version")
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch interval must be positive, got %s", c.Watch.Interval)
	}
	return c.Selection().Validate()
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the application configuration, loaded from an optional YAML file
// with defaults for every key
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Player   PlayerConfig   `mapstructure:"player"`
	Network  NetworkConfig  `mapstructure:"network"`
	Database DatabaseConfig `mapstructure:"database"`
}

// LoggingConfig controls the slog handler and file rotation
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // text or json
	File       string `mapstructure:"file"`   // empty logs to stderr
	Color      bool   `mapstructure:"color"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// PlayerConfig carries the per-session defaults applied at create time
type PlayerConfig struct {
	MPVPath                   string  `mapstructure:"mpv_path"`
	Volume                    float64 `mapstructure:"volume"`
	Speed                     float64 `mapstructure:"speed"`
	Looping                   bool    `mapstructure:"looping"`
	BufferingTier             string  `mapstructure:"buffering_tier"`
	ShowSubtitlesByDefault    bool    `mapstructure:"show_subtitles_by_default"`
	PreferredSubtitleLanguage string  `mapstructure:"preferred_subtitle_language"`
	AllowPip                  bool    `mapstructure:"allow_pip"`
	AllowBackgroundPlayback   bool    `mapstructure:"allow_background_playback"`
}

// NetworkConfig covers subtitle fetches and the connectivity probe
type NetworkConfig struct {
	UserAgent         string `mapstructure:"user_agent"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	MaxRetries        int    `mapstructure:"max_retries"`
	ProbeAddress      string `mapstructure:"probe_address"`
	ProbeIntervalSecs int    `mapstructure:"probe_interval_seconds"`
}

// DatabaseConfig locates the resume-history sqlite file
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SetDefaults registers the default value for every configuration key
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.color", true)
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	v.SetDefault("player.mpv_path", "")
	v.SetDefault("player.volume", 1.0)
	v.SetDefault("player.speed", 1.0)
	v.SetDefault("player.looping", false)
	v.SetDefault("player.buffering_tier", "medium")
	v.SetDefault("player.show_subtitles_by_default", false)
	v.SetDefault("player.preferred_subtitle_language", "")
	v.SetDefault("player.allow_pip", true)
	v.SetDefault("player.allow_background_playback", true)

	v.SetDefault("network.user_agent", "provideo/1.0")
	v.SetDefault("network.timeout_seconds", 15)
	v.SetDefault("network.max_retries", 2)
	v.SetDefault("network.probe_address", "1.1.1.1:443")
	v.SetDefault("network.probe_interval_seconds", 3)

	v.SetDefault("database.path", filepath.Join(GetDataDir(), "provideo.db"))
}

// Load reads the config file (optional) and unmarshals it over the defaults.
// Pass an empty path to search the standard config directory.
func Load(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(GetConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
		// no config file, defaults apply
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, v, nil
}

// InitializeDirs makes sure the config/state/data directories exist
func InitializeDirs() error {
	for _, dir := range []string{GetConfigDir(), getStateDir(), GetDataDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// GetConfigDir returns $XDG_CONFIG_HOME/provideo (or ~/.config/provideo)
func GetConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "provideo")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "provideo")
	}
	return filepath.Join(home, ".config", "provideo")
}

// GetDataDir returns $XDG_DATA_HOME/provideo (or ~/.local/share/provideo)
func GetDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "provideo")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", "provideo")
	}
	return filepath.Join(home, ".local", "share", "provideo")
}

func getStateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return xdg
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "state")
	}
	return filepath.Join(home, ".local", "state")
}

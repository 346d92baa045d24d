package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"resource-downloader/resource"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// Values are loaded by Viper from a config file and/or environment variables.
type Config struct {
	MinecraftInstallationType string `mapstructure:"MINECRAFT_INSTALLATION_TYPE"`
	MinecraftLoader           string `mapstructure:"MINECRAFT_LOADER"`
	MinecraftVersion          string `mapstructure:"MINECRAFT_VERSION"`
	ModrinthAPIKey            string `mapstructure:"MODRINTH_API_KEY"`
	ModrinthAPIURL            string `mapstructure:"MODRINTH_API_URL"`
	UserAgent                 string `mapstructure:"USERAGENT"`
	MinecraftDir              string `mapstructure:"MINECRAFT_DIR"`
	KeepOldVersions           bool   `mapstructure:"KEEP_OLD_VERSIONS"`
	ReleaseChannel            string `mapstructure:"RELEASE_CHANNEL"`
	DownloadWorkers           int    `mapstructure:"DOWNLOAD_WORKERS"`
	DownloadAttempts          int    `mapstructure:"DOWNLOAD_ATTEMPTS"`
	RequestTimeoutSeconds     int    `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	DatabasePath              string `mapstructure:"-"` // derived from MinecraftDir
}

var keys = []string{
	"MINECRAFT_INSTALLATION_TYPE",
	"MINECRAFT_LOADER",
	"MINECRAFT_VERSION",
	"MODRINTH_API_KEY",
	"MODRINTH_API_URL",
	"USERAGENT",
	"MINECRAFT_DIR",
	"KEEP_OLD_VERSIONS",
	"RELEASE_CHANNEL",
	"DOWNLOAD_WORKERS",
	"DOWNLOAD_ATTEMPTS",
	"REQUEST_TIMEOUT_SECONDS",
}

const defaultUserAgent = "resource-downloader/dev (unknown-user)"

// LoadConfig reads configuration from a .env file in path and the environment.
func LoadConfig(path string) (Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	err := viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		slog.Info("Config file (.env) not found, relying on environment variables.")
	} else if err != nil {
		return Config{}, fmt.Errorf("fatal error config file: %w", err)
	}

	viper.AutomaticEnv()
	for _, key := range keys {
		if err := viper.BindEnv(key); err != nil {
			slog.Warn("Unable to bind env var", "key", key, "error", err)
		}
	}
	viper.SetDefault("KEEP_OLD_VERSIONS", false)
	viper.SetDefault("DOWNLOAD_WORKERS", 4)
	viper.SetDefault("DOWNLOAD_ATTEMPTS", 3)
	viper.SetDefault("REQUEST_TIMEOUT_SECONDS", 30)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct, %w", err)
	}

	processConfigDefaults(&cfg)
	if err := validateAndEnsureDirectories(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func processConfigDefaults(cfg *Config) {
	if cfg.MinecraftLoader == "" {
		cfg.MinecraftLoader = "fabric"
	}
	cfg.MinecraftLoader = strings.ToLower(cfg.MinecraftLoader)
	if cfg.MinecraftInstallationType == "" {
		cfg.MinecraftInstallationType = "server"
	}
	cfg.MinecraftInstallationType = strings.ToLower(cfg.MinecraftInstallationType)
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
		slog.Warn("USERAGENT not set in config or environment, using default.")
	}
	ch, err := resource.ParseChannel(cfg.ReleaseChannel)
	if err != nil {
		slog.Warn("Invalid RELEASE_CHANNEL, defaulting to release", "value", cfg.ReleaseChannel)
	}
	cfg.ReleaseChannel = ch.String()
	if cfg.DownloadWorkers <= 0 {
		cfg.DownloadWorkers = 4
	}
	if cfg.DownloadAttempts <= 0 {
		cfg.DownloadAttempts = 3
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		cfg.RequestTimeoutSeconds = 30
	}
}

func validateAndEnsureDirectories(cfg *Config) error {
	if cfg.MinecraftDir == "" {
		slog.Error("MINECRAFT_DIR is not set")
		return fmt.Errorf("MINECRAFT_DIR is required")
	}
	dir, err := homedir.Expand(cfg.MinecraftDir)
	if err != nil {
		return fmt.Errorf("expand MINECRAFT_DIR: %w", err)
	}
	cfg.MinecraftDir = dir

	dirs := []string{dir}
	for _, k := range resource.Kinds() {
		dirs = append(dirs, filepath.Join(dir, k.Dir()))
	}
	for _, d := range dirs {
		if _, err := os.Stat(d); os.IsNotExist(err) {
			slog.Info("Directory does not exist, creating it", "path", d)
			if err := os.MkdirAll(d, 0755); err != nil {
				slog.Error("Failed to create directory", "path", d, "error", err)
				return err
			}
		} else if err != nil {
			slog.Error("Failed to check directory", "path", d, "error", err)
			return err
		}
	}

	cfg.DatabasePath = filepath.Join(dir, "resources.db")
	return nil
}

// Target returns the configured game version and loader.
func (c Config) Target() resource.Target {
	return resource.Target{GameVersion: c.MinecraftVersion, Loader: c.MinecraftLoader}
}

// Channel returns the configured release channel preference.
func (c Config) Channel() resource.Channel {
	ch, err := resource.ParseChannel(c.ReleaseChannel)
	if err != nil {
		return resource.Release
	}
	return ch
}

// RequestTimeout is the per-request timeout for catalog calls.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

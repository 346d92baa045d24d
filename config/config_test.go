package config

import (
	"os"
	"path/filepath"
	"testing"

	"resource-downloader/resource"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

func TestProcessConfigDefaults(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		viper.Reset()
		cfg := Config{}
		processConfigDefaults(&cfg)

		if cfg.MinecraftLoader != "fabric" {
			t.Errorf("Expected MinecraftLoader to be fabric, got %s", cfg.MinecraftLoader)
		}
		if cfg.MinecraftInstallationType != "server" {
			t.Errorf("Expected MinecraftInstallationType to be server, got %s", cfg.MinecraftInstallationType)
		}
		if cfg.UserAgent == "" {
			t.Error("Expected UserAgent to have a default value")
		}
		if cfg.ReleaseChannel != "release" {
			t.Errorf("Expected ReleaseChannel to be release, got %s", cfg.ReleaseChannel)
		}
		if cfg.DownloadWorkers != 4 || cfg.DownloadAttempts != 3 || cfg.RequestTimeoutSeconds != 30 {
			t.Errorf("Unexpected download defaults: %+v", cfg)
		}
	})

	t.Run("respects existing values", func(t *testing.T) {
		viper.Reset()
		cfg := Config{
			MinecraftLoader:           "Forge",
			MinecraftInstallationType: "client",
			UserAgent:                 "custom-agent",
			ReleaseChannel:            "beta",
			DownloadWorkers:           8,
		}
		processConfigDefaults(&cfg)

		if cfg.MinecraftLoader != "forge" {
			t.Errorf("Expected MinecraftLoader to be forge, got %s", cfg.MinecraftLoader)
		}
		if cfg.MinecraftInstallationType != "client" {
			t.Errorf("Expected MinecraftInstallationType to stay client, got %s", cfg.MinecraftInstallationType)
		}
		if cfg.UserAgent != "custom-agent" {
			t.Errorf("Expected UserAgent to stay custom-agent, got %s", cfg.UserAgent)
		}
		if cfg.Channel() != resource.Beta {
			t.Errorf("Expected beta channel, got %s", cfg.Channel())
		}
		if cfg.DownloadWorkers != 8 {
			t.Errorf("Expected DownloadWorkers to stay 8, got %d", cfg.DownloadWorkers)
		}
	})

	t.Run("invalid channel falls back", func(t *testing.T) {
		cfg := Config{ReleaseChannel: "nightly"}
		processConfigDefaults(&cfg)
		if cfg.ReleaseChannel != "release" {
			t.Errorf("Expected ReleaseChannel to fall back to release, got %s", cfg.ReleaseChannel)
		}
	})
}

func TestValidateAndEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("missing minecraft dir", func(t *testing.T) {
		cfg := Config{MinecraftDir: ""}
		err := validateAndEnsureDirectories(&cfg)
		if err == nil {
			t.Error("Expected error for missing MinecraftDir")
		}
	})

	t.Run("creates directories", func(t *testing.T) {
		mcDir := filepath.Join(tmpDir, "mc")
		cfg := Config{MinecraftDir: mcDir}
		err := validateAndEnsureDirectories(&cfg)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		subDirs := []string{"mods", "shaderpacks", "resourcepacks", "datapacks", "plugins"}
		for _, sub := range subDirs {
			path := filepath.Join(mcDir, sub)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				t.Errorf("Directory %s was not created", sub)
			}
		}
		if cfg.DatabasePath != filepath.Join(mcDir, "resources.db") {
			t.Errorf("Unexpected DatabasePath %s", cfg.DatabasePath)
		}
	})

	t.Run("expands home directory", func(t *testing.T) {
		home := filepath.Join(tmpDir, "home")
		t.Setenv("HOME", home)
		homedir.DisableCache = true
		cfg := Config{MinecraftDir: "~/server"}
		if err := validateAndEnsureDirectories(&cfg); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if cfg.MinecraftDir != filepath.Join(home, "server") {
			t.Errorf("Expected expanded dir, got %s", cfg.MinecraftDir)
		}
	})
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	mcDir := filepath.Join(dir, "mc")
	env := "MINECRAFT_VERSION=1.20.1\nMINECRAFT_DIR=" + mcDir + "\nKEEP_OLD_VERSIONS=true\nDOWNLOAD_WORKERS=2\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Target() != (resource.Target{GameVersion: "1.20.1", Loader: "fabric"}) {
		t.Errorf("Unexpected target %s", cfg.Target())
	}
	if !cfg.KeepOldVersions {
		t.Error("Expected KeepOldVersions to be true")
	}
	if cfg.DownloadWorkers != 2 {
		t.Errorf("Expected 2 workers, got %d", cfg.DownloadWorkers)
	}
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/lazypower/vaultactivity/internal/activity"
)

// Config holds all vaultactivity configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Vault    VaultConfig    `toml:"vault"`
	Storage  StorageConfig  `toml:"storage"`
	Tracking TrackingConfig `toml:"tracking"`
	Schedule ScheduleConfig `toml:"schedule"`
}

type ServerConfig struct {
	Bind        string   `toml:"bind"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	RateLimit   int      `toml:"rate_limit"` // event posts per minute per client, 0 disables
}

type VaultConfig struct {
	Path      string `toml:"path"`
	ConfigDir string `toml:"config_dir"`
	Watch     bool   `toml:"watch"`  // report file writes as modifications
	Opener    string `toml:"opener"` // command used to open documents, empty for the platform default
}

type StorageConfig struct {
	// DSN selects the backend: empty or file:// stores data.json in the
	// vault, memory://, sqlite:///path or postgres://...
	DSN string `toml:"dsn"`
}

type TrackingConfig struct {
	ExcludedFolders   []string `toml:"excluded_folders"`
	TrackAccess       bool     `toml:"track_access"`
	TrackModification bool     `toml:"track_modification"`
	ShowFullPath      bool     `toml:"show_full_path"`
}

type ScheduleConfig struct {
	SaveDelay     Duration `toml:"save_delay"`
	RefreshDelay  Duration `toml:"refresh_delay"`
	FlushInterval Duration `toml:"flush_interval"`
}

// Duration is a time.Duration written as a string such as "2s" or "5m".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind:      "127.0.0.1",
			Port:      37778,
			RateLimit: 600,
		},
		Vault: VaultConfig{
			Path:      ".",
			ConfigDir: ".obsidian",
			Watch:     true,
		},
		Tracking: TrackingConfig{
			ExcludedFolders:   []string{},
			TrackAccess:       true,
			TrackModification: true,
			ShowFullPath:      true,
		},
		Schedule: ScheduleConfig{
			SaveDelay:     Duration(activity.DefaultSaveDelay),
			RefreshDelay:  Duration(activity.DefaultRefreshDelay),
			FlushInterval: Duration(activity.DefaultFlushInterval),
		},
	}
}

// DefaultPath returns ~/.vaultactivity/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".vaultactivity", "config.toml"), nil
}

// Load reads the TOML file at path over the defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("VAULTACTIVITY_VAULT"); v != "" {
		c.Vault.Path = v
	}
	if v := os.Getenv("VAULTACTIVITY_STORAGE"); v != "" {
		c.Storage.DSN = v
	}
	if v, ok := os.LookupEnv("VAULTACTIVITY_EXCLUDE"); ok {
		c.Tracking.ExcludedFolders = activity.ParseFolderList(v)
	}
	if v := os.Getenv("VAULTACTIVITY_BIND"); v != "" {
		c.Server.Bind = v
	}
	if v := os.Getenv("VAULTACTIVITY_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("VAULTACTIVITY_PORT: invalid port %q", v)
		}
		c.Server.Port = port
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// ServerURL is the base URL clients use to reach the server.
func (c *Config) ServerURL() string {
	return "http://" + c.ListenAddr()
}

// Settings converts the tracking section into tracker settings.
func (c *Config) Settings() activity.Settings {
	return activity.Settings{
		ExcludedFolders:   append([]string{}, c.Tracking.ExcludedFolders...),
		TrackAccess:       c.Tracking.TrackAccess,
		TrackModification: c.Tracking.TrackModification,
		ShowFullPath:      c.Tracking.ShowFullPath,
	}
}

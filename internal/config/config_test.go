package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("Load = %+v, want defaults", cfg)
	}
	if cfg.ListenAddr() != "127.0.0.1:37778" {
		t.Errorf("ListenAddr = %s", cfg.ListenAddr())
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9000

[vault]
path = "/notes"
watch = false

[storage]
dsn = "sqlite:///tmp/activity.db"

[tracking]
excluded_folders = ["Archive", "templates"]
track_modification = false

[schedule]
save_delay = "500ms"
flush_interval = "1m"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Server.Bind != "127.0.0.1" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Vault.Path != "/notes" || cfg.Vault.Watch || cfg.Vault.ConfigDir != ".obsidian" {
		t.Errorf("Vault = %+v", cfg.Vault)
	}
	if cfg.Storage.DSN != "sqlite:///tmp/activity.db" {
		t.Errorf("DSN = %q", cfg.Storage.DSN)
	}
	if time.Duration(cfg.Schedule.SaveDelay) != 500*time.Millisecond {
		t.Errorf("SaveDelay = %v", time.Duration(cfg.Schedule.SaveDelay))
	}
	if time.Duration(cfg.Schedule.RefreshDelay) != time.Second {
		t.Errorf("RefreshDelay = %v", time.Duration(cfg.Schedule.RefreshDelay))
	}
	if time.Duration(cfg.Schedule.FlushInterval) != time.Minute {
		t.Errorf("FlushInterval = %v", time.Duration(cfg.Schedule.FlushInterval))
	}

	s := cfg.Settings()
	if !reflect.DeepEqual(s.ExcludedFolders, []string{"Archive", "templates"}) {
		t.Errorf("ExcludedFolders = %v", s.ExcludedFolders)
	}
	if !s.TrackAccess || s.TrackModification || !s.ShowFullPath {
		t.Errorf("Settings = %+v", s)
	}
}

func TestLoadInvalid(t *testing.T) {
	for _, body := range []string{
		"[server\nport = 1",
		"[schedule]\nsave_delay = \"soon\"",
	} {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Errorf("Load(%q): expected error", body)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VAULTACTIVITY_VAULT", "/env/vault")
	t.Setenv("VAULTACTIVITY_STORAGE", "memory://")
	t.Setenv("VAULTACTIVITY_BIND", "0.0.0.0")
	t.Setenv("VAULTACTIVITY_PORT", "8123")

	cfg, err := Load(writeConfig(t, "[vault]\npath = \"/file/vault\"\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Vault.Path != "/env/vault" {
		t.Errorf("Vault.Path = %q", cfg.Vault.Path)
	}
	if cfg.Storage.DSN != "memory://" {
		t.Errorf("DSN = %q", cfg.Storage.DSN)
	}
	if cfg.ServerURL() != "http://0.0.0.0:8123" {
		t.Errorf("ServerURL = %q", cfg.ServerURL())
	}
}

func TestEnvExcludedFolders(t *testing.T) {
	t.Setenv("VAULTACTIVITY_EXCLUDE", " Archive, Templates/Daily,, ")

	cfg, err := Load(writeConfig(t, "[tracking]\nexcluded_folders = [\"file\"]\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := cfg.Settings().ExcludedFolders
	if len(got) != 2 || got[0] != "Archive" || got[1] != "Templates/Daily" {
		t.Errorf("ExcludedFolders = %q", got)
	}
}

func TestEnvInvalidPort(t *testing.T) {
	t.Setenv("VAULTACTIVITY_PORT", "eighty")
	if _, err := Load(filepath.Join(t.TempDir(), "none.toml")); err == nil {
		t.Error("expected error for invalid port")
	}
}

func TestSettingsIsACopy(t *testing.T) {
	cfg := Default()
	cfg.Tracking.ExcludedFolders = []string{"a"}
	s := cfg.Settings()
	s.ExcludedFolders[0] = "b"
	if cfg.Tracking.ExcludedFolders[0] != "a" {
		t.Error("Settings shares its folder slice with the config")
	}
}

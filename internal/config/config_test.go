package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
devices:
  - name: Hallway
    address: 192.168.1.40
    restore_on_reconnect: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Devices) != 1 || cfg.Devices[0].Address != "192.168.1.40" {
		t.Errorf("devices = %+v", cfg.Devices)
	}
	if got := cfg.Link.ReconnectInterval.Duration(); got != 15*time.Second {
		t.Errorf("reconnect_interval default = %v, want 15s", got)
	}
	if got := cfg.Link.StatusInterval.Duration(); got != 20*time.Second {
		t.Errorf("status_interval default = %v, want 20s", got)
	}
	if got := cfg.Link.ActivityTimeout.Duration(); got != 30*time.Second {
		t.Errorf("activity_timeout default = %v, want 30s", got)
	}
	if cfg.Database.Path != "./sternetd.sqlite" {
		t.Errorf("database path default = %q", cfg.Database.Path)
	}
	if cfg.HomeKit.Pin != "00102003" {
		t.Errorf("homekit pin default = %q", cfg.HomeKit.Pin)
	}
	if cfg.API.Port != 9190 {
		t.Errorf("api port default = %d", cfg.API.Port)
	}
}

func TestLoad_OverridesAndEnvExpansion(t *testing.T) {
	t.Setenv("LIGHT_ADDR", "10.0.0.7:8080")

	path := writeConfig(t, `
devices:
  - name: Desk
    address: ${LIGHT_ADDR}
link:
  reconnect_interval: 3s
  activity_timeout: 45s
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Devices[0].Address != "10.0.0.7:8080" {
		t.Errorf("env expansion failed, address = %q", cfg.Devices[0].Address)
	}
	if got := cfg.Link.ReconnectInterval.Duration(); got != 3*time.Second {
		t.Errorf("reconnect_interval = %v, want 3s", got)
	}
	if got := cfg.Link.ActivityTimeout.Duration(); got != 45*time.Second {
		t.Errorf("activity_timeout = %v, want 45s", got)
	}
	if cfg.Log.GetLevel() != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.GetLevel())
	}
}

func TestLoad_RejectsDuplicateAddresses(t *testing.T) {
	path := writeConfig(t, `
devices:
  - name: One
    address: 192.168.1.40
  - name: Two
    address: 192.168.1.40
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for duplicate device addresses")
	}
}

func TestLoad_RejectsMissingAddress(t *testing.T) {
	path := writeConfig(t, `
devices:
  - name: Nameless
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for device without address")
	}
}

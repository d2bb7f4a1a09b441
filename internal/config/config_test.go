package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Port)
	}
	if cfg.Chat.MaxReconnects != 5 {
		t.Errorf("Expected 5 max reconnects, got %d", cfg.Chat.MaxReconnects)
	}
	if !cfg.Chat.ReconnectEnabled {
		t.Error("Expected reconnection enabled by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("CHAT_DIAL_TIMEOUT", "3s")
	t.Setenv("CHAT_MAX_RECONNECTS", "2")
	t.Setenv("USE_TEST_STORE", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("Expected port 9000, got %s", cfg.Port)
	}
	if cfg.Chat.DialTimeout != 3*time.Second {
		t.Errorf("Expected 3s dial timeout, got %v", cfg.Chat.DialTimeout)
	}
	if cfg.Chat.MaxReconnects != 2 {
		t.Errorf("Expected 2 max reconnects, got %d", cfg.Chat.MaxReconnects)
	}
	if cfg.Purchase.UseTestStore {
		t.Error("Expected test store disabled")
	}
}

func TestValidate_RejectsTestStoreInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("USE_TEST_STORE", "true")

	if _, err := Load(); err == nil {
		t.Error("Expected error for test store key outside development")
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty port", Config{APIURL: "http://x", SocketURL: "ws://x", DBPath: "x"}},
		{"empty api url", Config{Port: "8080", SocketURL: "ws://x", DBPath: "x"}},
		{"empty socket url", Config{Port: "8080", APIURL: "http://x", DBPath: "x"}},
		{"empty db path", Config{Port: "8080", APIURL: "http://x", SocketURL: "ws://x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Errorf("Expected validation error for %s", tt.name)
			}
		})
	}
}

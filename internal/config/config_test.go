package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon-key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIEndpoint != "" {
		t.Errorf("APIEndpoint = %q, want empty by default", cfg.APIEndpoint)
	}
	if cfg.HistoryPageLimit != 3 {
		t.Errorf("HistoryPageLimit = %d, want 3", cfg.HistoryPageLimit)
	}
	if cfg.RecentDetectionsLimit != 5 {
		t.Errorf("RecentDetectionsLimit = %d, want 5", cfg.RecentDetectionsLimit)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.RequestTimeout)
	}
	if cfg.CallbackListenAddr != "127.0.0.1:8799" {
		t.Errorf("CallbackListenAddr = %q", cfg.CallbackListenAddr)
	}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false for default env")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want missing-variable failure")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("AURA_API_ENDPOINT", "https://api.aura.example")
	t.Setenv("HISTORY_PAGE_LIMIT", "10")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("ENV", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIEndpoint != "https://api.aura.example" {
		t.Errorf("APIEndpoint = %q", cfg.APIEndpoint)
	}
	if cfg.HistoryPageLimit != 10 {
		t.Errorf("HistoryPageLimit = %d, want 10", cfg.HistoryPageLimit)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true with ENV=production")
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	setRequired(t)
	t.Setenv("HISTORY_PAGE_LIMIT", "not-a-number")
	t.Setenv("REQUEST_TIMEOUT", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HistoryPageLimit != 3 {
		t.Errorf("HistoryPageLimit = %d, want default 3", cfg.HistoryPageLimit)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want default 30s", cfg.RequestTimeout)
	}
}

func TestLoad_ZeroPageLimitClamped(t *testing.T) {
	setRequired(t)
	t.Setenv("HISTORY_PAGE_LIMIT", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HistoryPageLimit != 3 {
		t.Errorf("HistoryPageLimit = %d, want clamped to 3", cfg.HistoryPageLimit)
	}
}

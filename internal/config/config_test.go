package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Gemini.Model != "gemini-2.0-flash" {
		t.Errorf("Model = %q, want default gemini-2.0-flash", cfg.Gemini.Model)
	}
	if cfg.Gemini.BaseURL != "https://generativelanguage.googleapis.com/v1beta" {
		t.Errorf("BaseURL = %q", cfg.Gemini.BaseURL)
	}
	if cfg.Audit.LogFile != "mcp-server.log" {
		t.Errorf("LogFile = %q, want default mcp-server.log", cfg.Audit.LogFile)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("GEMINI_MODEL", "gemini-2.0-pro")
	t.Setenv("AUDIT_LOG_FILE", "/tmp/peer.log")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Gemini.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", cfg.Gemini.APIKey)
	}
	if cfg.Gemini.Model != "gemini-2.0-pro" {
		t.Errorf("Model = %q, want gemini-2.0-pro", cfg.Gemini.Model)
	}
	if cfg.Audit.LogFile != "/tmp/peer.log" {
		t.Errorf("LogFile = %q", cfg.Audit.LogFile)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "gemini:\n  api_key: file-key\n  model: gemini-1.5-flash\naudit:\n  log_file: custom.log\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Gemini.APIKey != "file-key" {
		t.Errorf("APIKey = %q, want file-key", cfg.Gemini.APIKey)
	}
	if cfg.Gemini.Model != "gemini-1.5-flash" {
		t.Errorf("Model = %q, want gemini-1.5-flash", cfg.Gemini.Model)
	}
	if cfg.Audit.LogFile != "custom.log" {
		t.Errorf("LogFile = %q, want custom.log", cfg.Audit.LogFile)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "gemini:\n  api_key: file-key\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Gemini.APIKey != "env-key" {
		t.Errorf("APIKey = %q, env should win over file", cfg.Gemini.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load should tolerate a missing file: %v", err)
	}
	if cfg.Gemini.Model == "" {
		t.Error("defaults should still apply with a missing file")
	}
}

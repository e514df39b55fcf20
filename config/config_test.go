package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	content := `
server:
  port: 9090
  mode: debug
database:
  path: "./test.db"
upload:
  dir: "./files"
  max_size: 2048
  allowed_extensions: ["txt"]
websocket:
  ping_interval: 15
  pong_timeout: 5
assistant:
  delay_ms: 0
  default_locale: zh-CN
`
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.Mode != "debug" {
		t.Errorf("expected mode debug, got %s", cfg.Server.Mode)
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("expected db path ./test.db, got %s", cfg.Database.Path)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("expected default driver sqlite, got %s", cfg.Database.Driver)
	}
	if cfg.Upload.MaxSize != 2048 {
		t.Errorf("expected max_size 2048, got %d", cfg.Upload.MaxSize)
	}
	if len(cfg.Upload.AllowedExtensions) != 1 || cfg.Upload.AllowedExtensions[0] != "txt" {
		t.Errorf("expected allowed_extensions [txt], got %v", cfg.Upload.AllowedExtensions)
	}
	if cfg.WebSocket.PingInterval != 15 {
		t.Errorf("expected ping_interval 15, got %d", cfg.WebSocket.PingInterval)
	}
	if cfg.WebSocket.PongTimeout != 5 {
		t.Errorf("expected pong_timeout 5, got %d", cfg.WebSocket.PongTimeout)
	}
	if cfg.Assistant.DelayMS != 0 {
		t.Errorf("expected delay_ms 0, got %d", cfg.Assistant.DelayMS)
	}
	if cfg.Assistant.DefaultLocale != "zh-CN" {
		t.Errorf("expected default_locale zh-CN, got %s", cfg.Assistant.DefaultLocale)
	}
}

func TestLoadDefaults(t *testing.T) {
	content := `{}`
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("expected default port 5000, got %d", cfg.Server.Port)
	}
	if cfg.Database.Path != "./data/ai_chat.db" {
		t.Errorf("expected default db path ./data/ai_chat.db, got %s", cfg.Database.Path)
	}
	if cfg.Upload.MaxSize != 10<<20 {
		t.Errorf("expected default max_size 10MiB, got %d", cfg.Upload.MaxSize)
	}
	if len(cfg.Upload.AllowedExtensions) != 10 {
		t.Errorf("expected 10 default extensions, got %d", len(cfg.Upload.AllowedExtensions))
	}
	if cfg.WebSocket.PingInterval != 30 {
		t.Errorf("expected default ping_interval 30, got %d", cfg.WebSocket.PingInterval)
	}
	if cfg.WebSocket.PongTimeout != 10 {
		t.Errorf("expected default pong_timeout 10, got %d", cfg.WebSocket.PongTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [1, 2"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("AI_CHAT_PORT", "7001")
	t.Setenv("AI_CHAT_DB_PATH", "/tmp/env.db")
	t.Setenv("AI_CHAT_UPLOAD_MAX_SIZE", "4096")
	t.Setenv("AI_CHAT_ASSISTANT_DELAY_MS", "0")
	t.Setenv("AI_CHAT_LOG_LEVEL", "debug")

	cfg := Default()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("expected port 7001, got %d", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("expected db path /tmp/env.db, got %s", cfg.Database.Path)
	}
	if cfg.Upload.MaxSize != 4096 {
		t.Errorf("expected max_size 4096, got %d", cfg.Upload.MaxSize)
	}
	if cfg.Assistant.DelayMS != 0 {
		t.Errorf("expected delay 0, got %d", cfg.Assistant.DelayMS)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Log.Level)
	}
}

func TestApplyEnvInvalidPort(t *testing.T) {
	t.Setenv("AI_CHAT_PORT", "not-a-port")
	if err := ApplyEnv(Default()); err == nil {
		t.Error("expected error for invalid AI_CHAT_PORT")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = DriverPostgres }},
		{"max size", func(c *Config) { c.Upload.MaxSize = 0 }},
		{"delay", func(c *Config) { c.Assistant.DelayMS = -1 }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"mode", func(c *Config) { c.Server.Mode = "prod" }},
		{"ping interval zero", func(c *Config) { c.WebSocket.PingInterval = 0 }},
		{"ping interval negative", func(c *Config) { c.WebSocket.PingInterval = -5 }},
		{"pong timeout negative", func(c *Config) { c.WebSocket.PongTimeout = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestValidateAcceptsZeroPongTimeout(t *testing.T) {
	cfg := Default()
	cfg.WebSocket.PongTimeout = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("pong_timeout 0 should be accepted: %v", err)
	}
}

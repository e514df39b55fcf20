package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Upload    UploadConfig    `yaml:"upload"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Assistant AssistantConfig `yaml:"assistant"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	Mode        string   `yaml:"mode"` // debug/test/release
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite/sqlite-pure/postgres
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"` // postgres only
}

type UploadConfig struct {
	Dir               string   `yaml:"dir"`
	MaxSize           int64    `yaml:"max_size"` // bytes
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

type WebSocketConfig struct {
	PingInterval int `yaml:"ping_interval"`
	PongTimeout  int `yaml:"pong_timeout"`
}

type AssistantConfig struct {
	DelayMS       int    `yaml:"delay_ms"`
	DefaultLocale string `yaml:"default_locale"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug/info/warn/error
}

const (
	DriverSQLite     = "sqlite"
	DriverSQLitePure = "sqlite-pure"
	DriverPostgres   = "postgres"
)

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        5000,
			Mode:        "release",
			CORSOrigins: []string{"*"},
		},
		Database: DatabaseConfig{Driver: DriverSQLite, Path: "./data/ai_chat.db"},
		Upload: UploadConfig{
			Dir:     "./uploads",
			MaxSize: 10 << 20,
			AllowedExtensions: []string{
				"txt", "pdf", "png", "jpg", "jpeg", "gif", "doc", "docx", "xls", "xlsx",
			},
		},
		WebSocket: WebSocketConfig{
			PingInterval: 30,
			PongTimeout:  10,
		},
		Assistant: AssistantConfig{DelayMS: 500, DefaultLocale: "en"},
		Log:       LogConfig{Level: "info"},
	}
}

// Load 从文件加载配置，以默认值为基础覆盖
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyEnv 用 AI_CHAT_* 环境变量覆盖配置
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("AI_CHAT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AI_CHAT_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("AI_CHAT_MODE"); v != "" {
		cfg.Server.Mode = v
	}
	if v := os.Getenv("AI_CHAT_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("AI_CHAT_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("AI_CHAT_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("AI_CHAT_UPLOAD_DIR"); v != "" {
		cfg.Upload.Dir = v
	}
	if v := os.Getenv("AI_CHAT_UPLOAD_MAX_SIZE"); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("AI_CHAT_UPLOAD_MAX_SIZE: %w", err)
		}
		cfg.Upload.MaxSize = size
	}
	if v := os.Getenv("AI_CHAT_ASSISTANT_DELAY_MS"); v != "" {
		delay, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AI_CHAT_ASSISTANT_DELAY_MS: %w", err)
		}
		cfg.Assistant.DelayMS = delay
	}
	if v := os.Getenv("AI_CHAT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "test", "release":
	default:
		return fmt.Errorf("unknown server.mode %q", c.Server.Mode)
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverSQLitePure:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for driver %s", c.Database.Driver)
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver postgres")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Upload.MaxSize <= 0 {
		return fmt.Errorf("upload.max_size must be positive")
	}
	if c.Upload.Dir == "" {
		return fmt.Errorf("upload.dir is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("websocket.ping_interval must be positive")
	}
	if c.WebSocket.PongTimeout < 0 {
		return fmt.Errorf("websocket.pong_timeout must not be negative")
	}
	if c.Assistant.DelayMS < 0 {
		return fmt.Errorf("assistant.delay_ms must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
	return nil
}

// Addr 返回 HTTP 监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/KodaTao/ai-chat/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "ai-chat",
	Short:         "AI chat backend: conversations, messages, file uploads",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "配置文件路径")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(conversationsCmd)
}

// loadConfig .env -> 配置文件 -> 环境变量，配置文件不存在时使用默认值（defaulted 为 true）
func loadConfig() (cfg *config.Config, defaulted bool, err error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("load .env: %w", err)
	}

	cfg, err = config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, defaulted = config.Default(), true
	} else if err != nil {
		return nil, false, fmt.Errorf("load config: %w", err)
	}

	if err := config.ApplyEnv(cfg); err != nil {
		return nil, false, fmt.Errorf("config env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, fmt.Errorf("config: %w", err)
	}
	return cfg, defaulted, nil
}

// setup 加载配置并创建 logger
func setup() (*config.Config, *zap.Logger, error) {
	cfg, defaulted, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if defaulted {
		logger.Warn("config file not found, using defaults", zap.String("path", configPath))
	}
	return cfg, logger, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Server.Mode == "debug" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	pureSQLite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/KodaTao/ai-chat/config"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Conversation struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string         `gorm:"size:255;not null" json:"title"`
	Messages  []Message      `gorm:"constraint:OnDelete:CASCADE" json:"messages,omitempty"`
	Files     []UploadedFile `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"`
}

type Message struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint      `gorm:"index;not null" json:"conversation_id"`
	Role           string    `gorm:"size:16;not null" json:"role"` // "user" or "assistant"
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// UploadedFile 上传文件的元数据，文件内容保存在磁盘上
type UploadedFile struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Filename         string    `gorm:"size:255;uniqueIndex;not null" json:"filename"`
	OriginalFilename string    `gorm:"size:255;not null" json:"original_filename"`
	FileSize         int64     `gorm:"not null" json:"file_size"`
	Filepath         string    `gorm:"size:512;not null" json:"filepath"`
	ContentType      string    `gorm:"size:128" json:"content_type"`
	ConversationID   *uint     `gorm:"index" json:"conversation_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// NormalizeRole 兼容旧版本的 "ai" 发送方
func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "", RoleUser:
		return RoleUser
	case RoleAssistant, "ai":
		return RoleAssistant
	default:
		return ""
	}
}

func InitDB(cfg config.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(logLevel)),
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case config.DriverSQLitePure:
		if err := ensureDir(cfg.Path); err != nil {
			return nil, err
		}
		dialector = pureSQLite.Open(cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	case config.DriverSQLite, "":
		if err := ensureDir(cfg.Path); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.Path + "?_foreign_keys=on&_busy_timeout=5000")
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	if cfg.Driver != config.DriverPostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// SQLite 只支持单个写入连接
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&Conversation{}, &Message{}, &UploadedFile{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return db, nil
}

// Close 关闭底层连接
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	return nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.Info
	case "error":
		return logger.Error
	case "info", "warn":
		return logger.Warn
	default:
		return logger.Silent
	}
}

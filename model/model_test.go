package model

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/KodaTao/ai-chat/config"
)

func openTestDB(t *testing.T, driver string) *gorm.DB {
	t.Helper()
	tmpDir := t.TempDir()
	db, err := InitDB(config.DatabaseConfig{
		Driver: driver,
		Path:   filepath.Join(tmpDir, "nested", "test.db"),
	}, "error")
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { Close(db) })
	return db
}

func TestInitDB(t *testing.T) {
	for _, driver := range []string{config.DriverSQLite, config.DriverSQLitePure} {
		t.Run(driver, func(t *testing.T) {
			db := openTestDB(t, driver)

			// 验证表已创建
			for _, table := range []string{"conversations", "messages", "uploaded_files"} {
				if !db.Migrator().HasTable(table) {
					t.Errorf("%s table not created", table)
				}
			}
		})
	}
}

func TestInitDBUnknownDriver(t *testing.T) {
	if _, err := InitDB(config.DatabaseConfig{Driver: "oracle"}, "error"); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestCRUD(t *testing.T) {
	db := openTestDB(t, config.DriverSQLite)

	// 创建 Conversation
	conv := Conversation{Title: "Test Conversation"}
	if err := db.Create(&conv).Error; err != nil {
		t.Fatalf("create conversation failed: %v", err)
	}
	if conv.ID == 0 {
		t.Fatal("expected auto-increment id")
	}

	// 创建 Message
	msg := Message{
		ConversationID: conv.ID,
		Role:           RoleUser,
		Content:        "Hello",
	}
	if err := db.Create(&msg).Error; err != nil {
		t.Fatalf("create message failed: %v", err)
	}

	// 查询验证
	var loaded Message
	if err := db.First(&loaded, msg.ID).Error; err != nil {
		t.Fatalf("query message failed: %v", err)
	}
	if loaded.Content != "Hello" {
		t.Errorf("expected content 'Hello', got '%s'", loaded.Content)
	}
	if loaded.ConversationID != conv.ID {
		t.Errorf("expected conversation_id %d, got %d", conv.ID, loaded.ConversationID)
	}
}

func TestForeignKeyEnforced(t *testing.T) {
	db := openTestDB(t, config.DriverSQLite)

	orphan := Message{ConversationID: 4242, Role: RoleUser, Content: "lost"}
	if err := db.Create(&orphan).Error; err == nil {
		t.Error("expected foreign key violation for message without conversation")
	}
}

func TestCascadeDelete(t *testing.T) {
	db := openTestDB(t, config.DriverSQLite)

	conv := Conversation{Title: "to delete"}
	db.Create(&conv)
	db.Create(&Message{ConversationID: conv.ID, Role: RoleUser, Content: "a"})
	db.Create(&Message{ConversationID: conv.ID, Role: RoleAssistant, Content: "b"})

	if err := db.Delete(&Conversation{}, conv.ID).Error; err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	var count int64
	db.Model(&Message{}).Where("conversation_id = ?", conv.ID).Count(&count)
	if count != 0 {
		t.Errorf("expected messages to cascade, %d left", count)
	}
}

func TestNormalizeRole(t *testing.T) {
	tests := map[string]string{
		"":          RoleUser,
		"user":      RoleUser,
		"USER":      RoleUser,
		"assistant": RoleAssistant,
		"ai":        RoleAssistant,
		"system":    "",
	}
	for in, want := range tests {
		if got := NormalizeRole(in); got != want {
			t.Errorf("NormalizeRole(%q) = %q, want %q", in, got, want)
		}
	}
}

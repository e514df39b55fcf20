package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/KodaTao/ai-chat/model"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// ConversationService 会话服务
type ConversationService struct {
	db *gorm.DB
}

func NewConversationService(db *gorm.DB) *ConversationService {
	return &ConversationService{db: db}
}

// Create 创建会话，标题由调用方保证非空
func (s *ConversationService) Create(ctx context.Context, title string) (*model.Conversation, error) {
	conversation := &model.Conversation{Title: title}
	if err := s.db.WithContext(ctx).Create(conversation).Error; err != nil {
		return nil, err
	}
	return conversation, nil
}

// List 按最近活动时间倒序列出会话
func (s *ConversationService) List(ctx context.Context, skip, limit int) ([]model.Conversation, error) {
	skip, limit = clampPage(skip, limit)
	conversations := make([]model.Conversation, 0)
	err := s.db.WithContext(ctx).
		Order("updated_at DESC").
		Order("id DESC").
		Offset(skip).
		Limit(limit).
		Find(&conversations).Error
	return conversations, err
}

// Get 获取会话，withMessages 时按插入顺序附带所有消息
func (s *ConversationService) Get(ctx context.Context, id uint, withMessages bool) (*model.Conversation, error) {
	q := s.db.WithContext(ctx)
	if withMessages {
		q = q.Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		})
	}

	var conversation model.Conversation
	if err := q.First(&conversation, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if withMessages && conversation.Messages == nil {
		conversation.Messages = []model.Message{}
	}
	return &conversation, nil
}

// UpdateTitle 更新会话标题
func (s *ConversationService) UpdateTitle(ctx context.Context, id uint, title string) (*model.Conversation, error) {
	res := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"title":      title,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrConversationNotFound
	}
	return s.Get(ctx, id, false)
}

// Delete 删除会话及其消息和文件记录，返回被删除的文件记录供调用方清理磁盘
func (s *ConversationService) Delete(ctx context.Context, id uint) ([]model.UploadedFile, error) {
	var files []model.UploadedFile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conversation model.Conversation
		if err := tx.First(&conversation, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrConversationNotFound
			}
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Find(&files).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&model.UploadedFile{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&conversation).Error
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func clampPage(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	} else if limit > maxListLimit {
		limit = maxListLimit
	}
	return skip, limit
}

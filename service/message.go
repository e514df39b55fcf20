package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/KodaTao/ai-chat/model"
	"github.com/KodaTao/ai-chat/responder"
)

// MessageService 消息服务
type MessageService struct {
	db        *gorm.DB
	responder responder.Responder
}

func NewMessageService(db *gorm.DB, r responder.Responder) *MessageService {
	return &MessageService{db: db, responder: r}
}

// Exchange 一问一答的结果
type Exchange struct {
	UserMessage *model.Message `json:"user_message"`
	AIMessage   *model.Message `json:"ai_message"`
}

// List 按插入顺序返回会话消息
func (s *MessageService) List(ctx context.Context, conversationID uint, skip, limit int) ([]model.Message, error) {
	if err := s.ensureConversation(s.db.WithContext(ctx), conversationID); err != nil {
		return nil, err
	}

	skip, limit = clampPage(skip, limit)
	messages := make([]model.Message, 0)
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id ASC").
		Offset(skip).
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// Append 写入一条消息并刷新会话的更新时间
func (s *MessageService) Append(ctx context.Context, conversationID uint, role, content string) (*model.Message, error) {
	role = model.NormalizeRole(role)
	if role == "" {
		return nil, ErrInvalidRole
	}

	msg := &model.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureConversation(tx, conversationID); err != nil {
			return err
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).
			Where("id = ?", conversationID).
			Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Exchange 保存用户消息，生成并保存助手回复
func (s *MessageService) Exchange(ctx context.Context, conversationID uint, locale, content string) (*Exchange, error) {
	userMsg, err := s.Append(ctx, conversationID, model.RoleUser, content)
	if err != nil {
		return nil, err
	}

	reply, err := s.responder.Reply(ctx, locale, content)
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}

	aiMsg, err := s.Append(ctx, conversationID, model.RoleAssistant, reply)
	if err != nil {
		return nil, err
	}

	return &Exchange{UserMessage: userMsg, AIMessage: aiMsg}, nil
}

func (s *MessageService) ensureConversation(db *gorm.DB, id uint) error {
	var conversation model.Conversation
	err := db.Select("id").First(&conversation, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrConversationNotFound
	}
	return err
}

package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KodaTao/ai-chat/model"
	"github.com/KodaTao/ai-chat/responder"
	"github.com/KodaTao/ai-chat/service"
)

type createConversationRequest struct {
	Title string `json:"title" binding:"max=200"`
}

type updateConversationRequest struct {
	Title string `json:"title" binding:"required,max=200"`
}

// conversationDetail 没有消息时也输出 "messages": []
type conversationDetail struct {
	*model.Conversation
	Messages []model.Message `json:"messages"`
}

// ConversationHandler 会话相关接口
type ConversationHandler struct {
	Conversations *service.ConversationService
	Files         *service.FileService
	Hub           *Hub
	Logger        *zap.Logger
}

func (h *ConversationHandler) List(c *gin.Context) {
	list, err := h.Conversations.List(c.Request.Context(), queryInt(c, "skip", 0), queryInt(c, "limit", 0))
	if err != nil {
		h.fail(c, err)
		return
	}
	respondOK(c, http.StatusOK, list)
}

func (h *ConversationHandler) Create(c *gin.Context) {
	var req createConversationRequest
	// 允许空 body
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = responder.DefaultTitle(localeOf(c), time.Now())
	}

	conversation, err := h.Conversations.Create(c.Request.Context(), title)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Hub.Publish(EventConversationCreated, conversation)
	respondOK(c, http.StatusCreated, conversation)
}

func (h *ConversationHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	conversation, err := h.Conversations.Get(c.Request.Context(), id, true)
	if err != nil {
		h.fail(c, err)
		return
	}
	respondOK(c, http.StatusOK, conversationDetail{
		Conversation: conversation,
		Messages:     conversation.Messages,
	})
}

func (h *ConversationHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		respondError(c, http.StatusBadRequest, "title is required")
		return
	}

	conversation, err := h.Conversations.UpdateTitle(c.Request.Context(), id, title)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Hub.Publish(EventConversationUpdated, conversation)
	respondOK(c, http.StatusOK, conversation)
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	files, err := h.Conversations.Delete(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	// 记录已删除，磁盘清理失败只记日志
	if err := h.Files.RemoveStored(files); err != nil {
		h.Logger.Warn("remove stored files", zap.Uint("conversation_id", id), zap.Error(err))
	}

	h.Hub.Publish(EventConversationDeleted, gin.H{"id": id})
	respondOK(c, http.StatusOK, gin.H{"id": id})
}

func (h *ConversationHandler) fail(c *gin.Context, err error) {
	respondServiceError(c, h.Logger, err)
}

package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KodaTao/ai-chat/model"
	"github.com/KodaTao/ai-chat/service"
)

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
	Role    string `json:"role"`
}

// MessageHandler 消息相关接口
type MessageHandler struct {
	Messages *service.MessageService
	Hub      *Hub
	Logger   *zap.Logger
}

func (h *MessageHandler) List(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	messages, err := h.Messages.List(c.Request.Context(), id, queryInt(c, "skip", 0), queryInt(c, "limit", 0))
	if err != nil {
		respondServiceError(c, h.Logger, err)
		return
	}
	respondOK(c, http.StatusOK, messages)
}

// Send 用户消息会触发一次助手回复；assistant 消息原样保存
func (h *MessageHandler) Send(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		respondError(c, http.StatusBadRequest, "content is required")
		return
	}

	role := model.NormalizeRole(req.Role)
	if role == "" {
		respondServiceError(c, h.Logger, service.ErrInvalidRole)
		return
	}

	if role == model.RoleAssistant {
		msg, err := h.Messages.Append(c.Request.Context(), id, role, req.Content)
		if err != nil {
			respondServiceError(c, h.Logger, err)
			return
		}
		h.Hub.Publish(EventMessageCreated, msg)
		respondOK(c, http.StatusCreated, gin.H{"message": msg})
		return
	}

	exchange, err := h.Messages.Exchange(c.Request.Context(), id, localeOf(c), req.Content)
	if err != nil {
		respondServiceError(c, h.Logger, err)
		return
	}
	h.Hub.Publish(EventMessageCreated, exchange.UserMessage)
	h.Hub.Publish(EventMessageCreated, exchange.AIMessage)
	respondOK(c, http.StatusCreated, exchange)
}

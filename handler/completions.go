package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KodaTao/ai-chat/model"
	"github.com/KodaTao/ai-chat/service"
)

const (
	defaultModelName = "mock-assistant"
	titleRunes       = 30
)

// OpenAI 兼容请求/响应结构

type ChatRequest struct {
	Model          string        `json:"model"`
	Messages       []ChatMessage `json:"messages"`
	Stream         bool          `json:"stream"`
	ConversationID uint          `json:"conversation_id,omitempty"`
}

type ChatMessage struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Index        int          `json:"index"`
	Message      *ChatMessage `json:"message,omitempty"`
	FinishReason *string      `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIError struct {
	Error openAIErrorBody `json:"error"`
}

type openAIErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ChatHandler 处理 /v1/chat/completions 请求
type ChatHandler struct {
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Hub           *Hub
	Logger        *zap.Logger
}

func (h *ChatHandler) Handle(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abort(c, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.Stream {
		h.abort(c, http.StatusBadRequest, "stream is not supported")
		return
	}

	// 提取最后一条 user 消息作为 prompt
	prompt := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == model.RoleUser {
			prompt = req.Messages[i].Content
			break
		}
	}
	if strings.TrimSpace(prompt) == "" {
		h.abort(c, http.StatusBadRequest, "no user message found")
		return
	}

	ctx := c.Request.Context()
	conversationID := req.ConversationID
	if conversationID == 0 {
		conversation, err := h.Conversations.Create(ctx, truncateRunes(strings.TrimSpace(prompt), titleRunes))
		if err != nil {
			h.fail(c, err)
			return
		}
		conversationID = conversation.ID
		h.Hub.Publish(EventConversationCreated, conversation)
	}

	exchange, err := h.Messages.Exchange(ctx, conversationID, localeOf(c), prompt)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Hub.Publish(EventMessageCreated, exchange.UserMessage)
	h.Hub.Publish(EventMessageCreated, exchange.AIMessage)

	modelName := req.Model
	if modelName == "" {
		modelName = defaultModelName
	}

	finishReason := "stop"
	promptTokens := len(strings.Fields(prompt))
	completionTokens := len(strings.Fields(exchange.AIMessage.Content))
	resp := ChatResponse{
		ID:      fmt.Sprintf("chatcmpl-%s", uuid.New().String()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   modelName,
		Choices: []Choice{
			{
				Index: 0,
				Message: &ChatMessage{
					Role:    model.RoleAssistant,
					Content: exchange.AIMessage.Content,
				},
				FinishReason: &finishReason,
			},
		},
		Usage: Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}

	c.Header("X-Conversation-ID", strconv.FormatUint(uint64(conversationID), 10))
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("chat completion failed", zap.Error(err))
		h.abort(c, status, "internal server error")
		return
	}
	h.abort(c, status, err.Error())
}

// abort 使用 OpenAI 的错误格式，方便 SDK 解析
func (h *ChatHandler) abort(c *gin.Context, status int, msg string) {
	errType := "invalid_request_error"
	if status >= http.StatusInternalServerError {
		errType = "server_error"
	}
	c.AbortWithStatusJSON(status, openAIError{Error: openAIErrorBody{Message: msg, Type: errType}})
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

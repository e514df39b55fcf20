package handler

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KodaTao/ai-chat/config"
	"github.com/KodaTao/ai-chat/service"
)

// Services 路由依赖的服务集合
type Services struct {
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Files         *service.FileService
}

// NewRouter 注册全部路由
func NewRouter(cfg *config.Config, svc Services, hub *Hub, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	r.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))
	r.Use(LocaleMiddleware(cfg.Assistant.DefaultLocale))

	conversations := &ConversationHandler{
		Conversations: svc.Conversations,
		Files:         svc.Files,
		Hub:           hub,
		Logger:        logger,
	}
	messages := &MessageHandler{Messages: svc.Messages, Hub: hub, Logger: logger}
	files := &FileHandler{Files: svc.Files, Hub: hub, Logger: logger}
	chat := &ChatHandler{
		Conversations: svc.Conversations,
		Messages:      svc.Messages,
		Hub:           hub,
		Logger:        logger,
	}

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			respondOK(c, http.StatusOK, gin.H{"status": "ok"})
		})

		api.GET("/conversations", conversations.List)
		api.POST("/conversations", conversations.Create)
		api.GET("/conversations/:id", conversations.Get)
		api.PUT("/conversations/:id", conversations.Update)
		api.DELETE("/conversations/:id", conversations.Delete)

		api.GET("/conversations/:id/messages", messages.List)
		api.POST("/conversations/:id/messages", messages.Send)

		api.POST("/conversations/:id/files", files.UploadToConversation)
		api.DELETE("/conversations/:id/files/:file_id", files.Delete)

		api.POST("/upload", files.Upload)
		api.GET("/files", files.List)
		api.GET("/files/:filename", files.Download)
	}

	r.GET("/ws/events", hub.HandleWS)
	r.POST("/v1/chat/completions", chat.Handle)

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Accept-Language", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Conversation-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

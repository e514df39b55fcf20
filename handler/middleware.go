package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KodaTao/ai-chat/responder"
)

const localeKey = "locale"

// LocaleMiddleware 解析请求语言：query > cookie > Accept-Language > 默认值
func LocaleMiddleware(defaultLocale string) gin.HandlerFunc {
	defaultLocale = responder.MatchLocale(defaultLocale)
	return func(c *gin.Context) {
		raw := c.Query(localeKey)
		if raw == "" {
			if cookie, err := c.Cookie(localeKey); err == nil {
				raw = cookie
			}
		}
		if raw == "" {
			raw = c.GetHeader("Accept-Language")
		}

		locale := defaultLocale
		if raw != "" {
			locale = responder.MatchLocale(raw)
		}
		c.Set(localeKey, locale)
		c.Next()
	}
}

func localeOf(c *gin.Context) string {
	if v, ok := c.Get(localeKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return responder.LocaleEN
}

// RequestLogger 用 zap 记录每个请求
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.Error("request", fields...)
		case c.Writer.Status() >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

package handlers

import (
	"time"

	"evocoder/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = "RequestID"

// RequestID 为每个请求分配 ID，优先使用客户端传入的 X-Request-ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// AccessLog 用 zap 记录访问日志
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("HTTP 请求",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("elapsed", logger.Since(start)))
	}
}

// NewRouter 创建 gin 引擎并注册所有路由；research 为空时不注册研究库接口
func NewRouter(project *ProjectHandler, research *ResearchHandler, events *EventsHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), AccessLog())

	api := router.Group("/api")
	{
		api.GET("/status", project.HandleStatus)
		api.GET("/logs", project.HandleLogs)

		api.POST("/projects", project.HandleCreate)
		api.GET("/project", project.HandleGet)
		api.GET("/project/tree", project.HandleTree)
		api.GET("/project/files/*path", project.HandleGetFile)
		api.PUT("/project/files/*path", project.HandleSaveFile)
		api.POST("/project/audit", project.HandleAudit)
		api.POST("/project/tests", project.HandleTests)
		api.POST("/project/autocomplete", project.HandleAutocomplete)
		api.POST("/project/export", project.HandleExport)

		api.POST("/components", project.HandleComponent)
		api.POST("/evolve", project.HandleEvolve)

		if research != nil {
			api.GET("/research", research.HandleList)
			api.POST("/research", research.HandleRecord)
			api.DELETE("/research", research.HandleClear)
		}
		if events != nil {
			api.GET("/events", events.HandleEvents)
		}
	}
	return router
}

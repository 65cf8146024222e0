package handlers

import (
	"errors"
	"net/http"

	"evocoder/internal/app/service"
	"evocoder/internal/application"
	"evocoder/internal/infrastructure/export"
	"evocoder/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor 将业务错误映射为 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrBusy), errors.Is(err, service.ErrNotReady), errors.Is(err, export.ErrEmptyProject):
		return http.StatusConflict
	case errors.Is(err, service.ErrNoProject), errors.Is(err, service.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEmptyPrompt), errors.Is(err, application.ErrUnknownTarget):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("请求处理失败",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string, err error) {
	body := gin.H{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

// resultBody 网关结果的响应体；reason 只在降级或失败时出现
func resultBody[T any](res service.Result[T]) gin.H {
	body := gin.H{
		"status": res.Status,
		"data":   res.Data,
	}
	if len(res.Sources) > 0 {
		body["sources"] = res.Sources
	}
	if reason := res.Reason(); reason != "" {
		body["reason"] = reason
	}
	return body
}

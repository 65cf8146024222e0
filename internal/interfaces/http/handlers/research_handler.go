package handlers

import (
	"errors"
	"net/http"

	"evocoder/internal/app/service"
	"evocoder/internal/infrastructure/github"

	"github.com/gin-gonic/gin"
)

// ResearchHandler 研究库 HTTP 处理器
type ResearchHandler struct {
	research *service.ResearchService
}

// NewResearchHandler 创建研究库 HTTP 处理器实例
func NewResearchHandler(research *service.ResearchService) *ResearchHandler {
	return &ResearchHandler{research: research}
}

// HandleList 返回所有研究记录，最新的在前
func (h *ResearchHandler) HandleList(c *gin.Context) {
	records, err := h.research.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

type researchRequest struct {
	Topic string `json:"topic" binding:"required"`
}

// HandleRecord 执行一次研究并保存
func (h *ResearchHandler) HandleRecord(c *gin.Context) {
	var req researchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求参数", err)
		return
	}

	record, err := h.research.Record(c.Request.Context(), req.Topic)
	switch {
	case errors.Is(err, service.ErrNoResults):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, github.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		return
	case err != nil:
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// HandleClear 清空研究库
func (h *ResearchHandler) HandleClear(c *gin.Context) {
	if err := h.research.Clear(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

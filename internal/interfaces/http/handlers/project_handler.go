package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"evocoder/internal/app/service"
	"evocoder/internal/application"
	"evocoder/internal/infrastructure/export"
	"evocoder/pkg/logger"
	"evocoder/pkg/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProjectHandler 项目相关的 HTTP 处理器
type ProjectHandler struct {
	orchestrator  *service.Orchestrator
	exportService *application.ExportService
	version       string
	defaults      service.Request
}

// NewProjectHandler 创建项目 HTTP 处理器实例；defaults 提供请求未指定时的 research/self_improve 取值
func NewProjectHandler(orchestrator *service.Orchestrator, exportService *application.ExportService, version string, defaults service.Request) *ProjectHandler {
	return &ProjectHandler{
		orchestrator:  orchestrator,
		exportService: exportService,
		version:       version,
		defaults:      defaults,
	}
}

// HandleStatus 返回运行模式、当前活动和项目进度
func (h *ProjectHandler) HandleStatus(c *gin.Context) {
	snap := h.orchestrator.Snapshot()
	body := gin.H{
		"version":  h.version,
		"mode":     snap.Mode,
		"activity": snap.Activity,
	}
	if snap.Project != nil {
		body["project_id"] = snap.Project.ID
		body["project_status"] = snap.Project.Status
		body["progress"] = snap.Project.Progress
	}
	c.JSON(http.StatusOK, body)
}

// HandleLogs 返回工作流日志
func (h *ProjectHandler) HandleLogs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"logs": h.orchestrator.Logs()})
}

type createRequest struct {
	Prompt      string `json:"prompt"`
	Research    *bool  `json:"research"`
	SelfImprove *bool  `json:"self_improve"`
}

// HandleCreate 启动一次后台构建
func (h *ProjectHandler) HandleCreate(c *gin.Context) {
	var body createRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "无效的请求参数", err)
		return
	}
	req := h.defaults
	req.Prompt = body.Prompt
	if body.Research != nil {
		req.Research = *body.Research
	}
	if body.SelfImprove != nil {
		req.SelfImprove = *body.SelfImprove
	}

	project, err := h.orchestrator.StartAsync(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	logger.Info("开始构建项目",
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.String("project_id", project.ID),
		zap.Bool("research", req.Research),
		zap.Bool("self_improve", req.SelfImprove))
	c.JSON(http.StatusAccepted, project)
}

// HandleGet 返回当前项目
func (h *ProjectHandler) HandleGet(c *gin.Context) {
	project, err := h.orchestrator.Project()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// HandleTree 返回项目文件树，?format=text 时返回纯文本
func (h *ProjectHandler) HandleTree(c *gin.Context) {
	project, err := h.orchestrator.Project()
	if err != nil {
		writeError(c, err)
		return
	}
	tree := types.BuildTree(project.Paths())
	if c.Query("format") == "text" {
		c.String(http.StatusOK, tree.String())
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": project.Name, "tree": tree})
}

// HandleGetFile 读取单个文件
func (h *ProjectHandler) HandleGetFile(c *gin.Context) {
	file, err := h.orchestrator.File(c.Param("path"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

type saveFileRequest struct {
	Content string `json:"content"`
}

// HandleSaveFile 覆盖文件内容
func (h *ProjectHandler) HandleSaveFile(c *gin.Context) {
	var req saveFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求参数", err)
		return
	}
	path := strings.Trim(c.Param("path"), "/")
	if path == "" {
		badRequest(c, "文件路径不能为空", nil)
		return
	}

	file, err := h.orchestrator.SaveFile(path, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

// HandleAudit 对当前项目执行审计
func (h *ProjectHandler) HandleAudit(c *gin.Context) {
	audit, err := h.orchestrator.RunAudit(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, audit)
}

type testsRequest struct {
	Path string `json:"path" binding:"required"`
}

// HandleTests 为单个文件生成测试
func (h *ProjectHandler) HandleTests(c *gin.Context) {
	var req testsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求参数", err)
		return
	}
	tests, err := h.orchestrator.RunTests(c.Request.Context(), req.Path)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": req.Path, "tests": tests})
}

type autocompleteRequest struct {
	Path   string `json:"path" binding:"required"`
	Prefix string `json:"prefix"`
}

// HandleAutocomplete 代码续写
func (h *ProjectHandler) HandleAutocomplete(c *gin.Context) {
	var req autocompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求参数", err)
		return
	}
	res, err := h.orchestrator.Autocomplete(c.Request.Context(), req.Path, req.Prefix)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resultBody(res))
}

type exportRequest struct {
	Target string `json:"target"`
}

// HandleExport 导出项目；target 为空或 download=1 时直接返回 zip 文件
func (h *ProjectHandler) HandleExport(c *gin.Context) {
	var req exportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "无效的请求参数", err)
			return
		}
	}

	project, err := h.orchestrator.Project()
	if err != nil {
		writeError(c, err)
		return
	}

	if req.Target == "" || c.Query("download") == "1" {
		if len(project.Files) == 0 {
			writeError(c, export.ErrEmptyProject)
			return
		}
		c.Header("Content-Type", "application/zip")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.ZipRoot(project)+".zip"))
		if err := export.WriteZip(c.Writer, project); err != nil {
			logger.Error("写入 zip 失败", zap.String("project_id", project.ID), zap.Error(err))
		}
		return
	}

	location, err := h.exportService.Export(c.Request.Context(), req.Target, project)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"target": req.Target, "location": location})
}

type componentRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// HandleComponent 生成独立的交互组件
func (h *ProjectHandler) HandleComponent(c *gin.Context) {
	var req componentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求参数", err)
		return
	}
	res, err := h.orchestrator.SynthesizeComponent(c.Request.Context(), req.Prompt)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resultBody(res))
}

// HandleEvolve 请求系统演进建议
func (h *ProjectHandler) HandleEvolve(c *gin.Context) {
	res, err := h.orchestrator.EvolveSystem(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resultBody(res))
}

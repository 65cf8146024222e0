package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"evocoder/internal/domain/models"
	"evocoder/pkg/logger"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// ErrEmptyResponse 模型没有返回任何候选内容
var ErrEmptyResponse = errors.New("gemini: 空响应")

// Request 一次模型调用
type Request struct {
	Model          string
	Prompt         string
	ThinkingBudget int
	WebSearch      bool
	Schema         *genai.Schema
}

// Response 模型调用结果
type Response struct {
	Text    string
	Sources []models.GroundingSource
}

// Options 客户端选项
type Options struct {
	APIKey  string
	Model   string
	BaseURL string // 测试或代理时覆盖 API 地址
	Timeout time.Duration
}

// Client 是基于官方 genai SDK 的 Gemini 客户端
type Client struct {
	cli   *genai.Client
	model string
}

// NewClient 创建一个新的 Gemini 客户端
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("Gemini API 密钥未配置")
	}

	cc := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions.BaseURL = opts.BaseURL
	}
	if opts.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("创建 genai 客户端失败: %w", err)
	}
	return &Client{cli: cli, model: opts.Model}, nil
}

// Generate 发送提示词并返回文本和引用来源
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	start := time.Now()
	logger.Debug("准备发送提示词到 Gemini API",
		zap.String("model", model),
		zap.Int("prompt_length", len(req.Prompt)),
		zap.Bool("web_search", req.WebSearch),
		zap.Bool("json", req.Schema != nil))

	prompt, config := buildConfig(req)
	resp, err := c.cli.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
	if err != nil {
		return nil, fmt.Errorf("调用 Gemini API 失败: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, ErrEmptyResponse
	}

	out := &Response{
		Text:    resp.Text(),
		Sources: ExtractSources(resp),
	}

	logger.Debug("从 Gemini 收到响应",
		zap.String("model", model),
		zap.Int("response_length", len(out.Text)),
		zap.Int("sources", len(out.Sources)),
		zap.Duration("latency", logger.Since(start)))
	return out, nil
}

// buildConfig 组装请求配置。搜索工具不能与结构化输出同时使用，此时把 schema 写进提示词
func buildConfig(req Request) (string, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{}
	prompt := req.Prompt

	if req.ThinkingBudget > 0 {
		config.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(int32(req.ThinkingBudget))}
	}

	if req.WebSearch {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
		if req.Schema != nil {
			if raw, err := json.Marshal(req.Schema); err == nil {
				prompt = strings.TrimRight(prompt, "\n") + "\n\nRespond with a single JSON object matching this schema:\n" + string(raw) + "\n"
			}
		}
		return prompt, config
	}

	if req.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = req.Schema
	}
	return prompt, config
}

// ExtractSources 从 candidate → groundingMetadata → groundingChunks 中提取网页来源
func ExtractSources(resp *genai.GenerateContentResponse) []models.GroundingSource {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	meta := resp.Candidates[0].GroundingMetadata
	if meta == nil {
		return nil
	}

	var sources []models.GroundingSource
	for _, chunk := range meta.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		sources = append(sources, models.GroundingSource{
			Title: chunk.Web.Title,
			URI:   chunk.Web.URI,
		})
	}
	return sources
}

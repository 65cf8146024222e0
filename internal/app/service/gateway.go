package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"evocoder/internal/domain/models"
	"evocoder/internal/domain/prompts"
	"evocoder/internal/infrastructure/gemini"
	"evocoder/pkg/config"
	"evocoder/pkg/logger"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Generator 外部生成模型，gemini.Client 实现了该接口
type Generator interface {
	Generate(ctx context.Context, req gemini.Request) (*gemini.Response, error)
}

// ModelGateway 编排器依赖的网关操作
type ModelGateway interface {
	Mode() GatewayMode
	CollectKnowledge(ctx context.Context, topic string) Result[models.TechnicalKnowledge]
	PlanStructure(ctx context.Context, request, knowledge string) Result[models.ProjectStructure]
	GenerateFileContent(ctx context.Context, req FileRequest) Result[string]
	SelfImprove(ctx context.Context, path, content, goal string) Result[string]
	Autocomplete(ctx context.Context, path, prefix string) Result[string]
	GenerateTests(ctx context.Context, path, content string) Result[[]models.TestCase]
	RunAudit(ctx context.Context, name string, files []models.GeneratedFile) Result[models.ProjectAudit]
	SynthesizeComponent(ctx context.Context, request string) Result[models.ComponentArtifact]
	EvolveSystem(ctx context.Context, version, capabilities string) Result[models.EvolutionPlan]
}

// FileRequest 单个文件生成请求
type FileRequest struct {
	Request   string
	Path      string
	Purpose   string
	Knowledge string
	Context   string
}

// Gateway 模型网关：组装提示词、声明输出结构、解析回复，失败时降级为占位数据
type Gateway struct {
	mode   GatewayMode
	gen    Generator
	model  string
	budget func(op string) int
}

// GatewayOptions 网关选项
type GatewayOptions struct {
	Model string
	// Budget 返回操作的思考预算，为空时使用 config.DefaultBudgets
	Budget func(op string) int
}

// NewGateway 根据密钥确定运行模式；gen 为空时始终为 demo
func NewGateway(apiKey string, gen Generator, opts GatewayOptions) *Gateway {
	mode := ResolveMode(apiKey)
	if gen == nil {
		mode = ModeDemo
	}
	if opts.Budget == nil {
		opts.Budget = func(op string) int { return config.DefaultBudgets[op] }
	}
	return &Gateway{mode: mode, gen: gen, model: opts.Model, budget: opts.Budget}
}

// NewGatewayFromConfig 从配置创建网关，密钥无效或客户端创建失败时进入 demo 模式
func NewGatewayFromConfig(ctx context.Context, cfg *config.Config) *Gateway {
	opts := GatewayOptions{Model: cfg.Gemini.Model, Budget: cfg.Budget}
	if ResolveMode(cfg.Gemini.APIKey) == ModeDemo {
		logger.Warn("未配置有效的 Gemini API 密钥，进入 demo 模式")
		return NewGateway("", nil, opts)
	}

	client, err := gemini.NewClient(ctx, gemini.Options{APIKey: cfg.Gemini.APIKey, Model: cfg.Gemini.Model})
	if err != nil {
		logger.Warn("创建 Gemini 客户端失败，进入 demo 模式", zap.Error(err))
		return NewGateway("", nil, opts)
	}
	return NewGateway(cfg.Gemini.APIKey, client, opts)
}

// Mode 返回运行模式
func (g *Gateway) Mode() GatewayMode { return g.mode }

type call struct {
	op        string
	template  string
	slots     prompts.Slots
	webSearch bool
	schema    *genai.Schema
}

// invoke 渲染模板并调用模型，返回原始文本和来源
func (g *Gateway) invoke(ctx context.Context, c call) (*gemini.Response, error) {
	prompt, err := prompts.Render(c.template, c.slots)
	if err != nil {
		return nil, err
	}
	return g.gen.Generate(ctx, gemini.Request{
		Model:          g.model,
		Prompt:         prompt,
		ThinkingBudget: g.budget(c.op),
		WebSearch:      c.webSearch,
		Schema:         c.schema,
	})
}

// generateText 自由文本调用；去掉代码围栏后为空的回复按失败处理
func generateText(ctx context.Context, g *Gateway, c call, placeholder string) Result[string] {
	if g.mode == ModeDemo {
		return fallback(placeholder, nil)
	}
	resp, err := g.invoke(ctx, c)
	if err != nil {
		return degrade(ctx, c.op, placeholder, err)
	}
	text := stripFences(resp.Text)
	if strings.TrimSpace(text) == "" {
		return degrade(ctx, c.op, placeholder, gemini.ErrEmptyResponse)
	}
	return ok(text, resp.Sources)
}

// generateJSON 结构化调用，宽松解析；validate 返回错误时同样降级
func generateJSON[T any](ctx context.Context, g *Gateway, c call, placeholder T, validate func(*T) error) Result[T] {
	if g.mode == ModeDemo {
		return fallback(placeholder, nil)
	}
	resp, err := g.invoke(ctx, c)
	if err != nil {
		return degrade(ctx, c.op, placeholder, err)
	}

	var out T
	raw, err := ExtractJSONObject(resp.Text)
	if err == nil {
		err = json.Unmarshal([]byte(raw), &out)
	}
	if err == nil && validate != nil {
		err = validate(&out)
	}
	if err != nil {
		return degrade(ctx, c.op, placeholder, fmt.Errorf("解析回复失败: %w", err))
	}
	return ok(out, resp.Sources)
}

// degrade live 调用失败时返回占位数据；调用方取消时没有降级意义，直接失败
func degrade[T any](ctx context.Context, op string, placeholder T, err error) Result[T] {
	err = wrapOp(op, err)
	if ctxErr := ctx.Err(); ctxErr != nil {
		logger.Warn("网关调用被取消", zap.String("op", op), zap.Error(err))
		return failed[T](errors.Join(err, ctxErr))
	}
	logger.Warn("网关调用失败，使用占位数据", zap.String("op", op), zap.Error(err))
	return fallback(placeholder, err)
}

var (
	knowledgeSchema = gemini.Object(map[string]*genai.Schema{
		"topic":   gemini.String(),
		"summary": gemini.String(),
		"libraries": gemini.Array(gemini.Object(map[string]*genai.Schema{
			"name":    gemini.String(),
			"version": gemini.String(),
			"reason":  gemini.String(),
		}, "name", "version", "reason")),
		"keyFacts": gemini.Array(gemini.String()),
	}, "topic", "summary", "libraries", "keyFacts")

	structureSchema = gemini.Object(map[string]*genai.Schema{
		"projectName": gemini.String(),
		"files": gemini.Array(gemini.Object(map[string]*genai.Schema{
			"path":    gemini.String(),
			"purpose": gemini.String(),
		}, "path", "purpose")),
	}, "projectName", "files")

	testsSchema = gemini.Object(map[string]*genai.Schema{
		"tests": gemini.Array(gemini.Object(map[string]*genai.Schema{
			"name":        gemini.String(),
			"description": gemini.String(),
			"status":      {Type: genai.TypeString, Enum: []string{"passed", "failed", "pending"}},
			"expected":    gemini.String(),
			"actual":      gemini.String(),
		}, "name", "description", "status", "expected")),
	}, "tests")

	auditSchema = gemini.Object(map[string]*genai.Schema{
		"score":   gemini.Integer(),
		"summary": gemini.String(),
		"issues": gemini.Array(gemini.Object(map[string]*genai.Schema{
			"severity":    {Type: genai.TypeString, Enum: []string{"critical", "warning", "info"}},
			"category":    gemini.String(),
			"title":       gemini.String(),
			"description": gemini.String(),
			"remediation": gemini.String(),
		}, "severity", "category", "title", "description", "remediation")),
	}, "score", "summary", "issues")

	componentSchema = gemini.Object(map[string]*genai.Schema{
		"title": gemini.String(),
		"html":  gemini.String(),
	}, "title", "html")

	evolveSchema = gemini.Object(map[string]*genai.Schema{
		"version":      gemini.String(),
		"summary":      gemini.String(),
		"improvements": gemini.Array(gemini.String()),
	}, "version", "summary", "improvements")
)

// CollectKnowledge 联网检索主题的技术资料。live 调用失败时没有可信的占位数据，返回 Failed
func (g *Gateway) CollectKnowledge(ctx context.Context, topic string) Result[models.TechnicalKnowledge] {
	if g.mode == ModeDemo {
		return fallback(mockKnowledge(topic), nil)
	}
	res := generateJSON(ctx, g, call{
		op:        "knowledge",
		template:  prompts.Knowledge,
		slots:     prompts.Slots{"Topic": topic},
		webSearch: true,
		schema:    knowledgeSchema,
	}, models.TechnicalKnowledge{}, func(k *models.TechnicalKnowledge) error {
		if strings.TrimSpace(k.Summary) == "" {
			return errors.New("知识摘要为空")
		}
		if k.Topic == "" {
			k.Topic = topic
		}
		return nil
	})
	if res.Status == StatusFallback {
		return failed[models.TechnicalKnowledge](res.Err)
	}
	return res
}

// PlanStructure 规划项目名称和有序的文件列表；空列表视为失败
func (g *Gateway) PlanStructure(ctx context.Context, request, knowledge string) Result[models.ProjectStructure] {
	return generateJSON(ctx, g, call{
		op:       "structure",
		template: prompts.Structure,
		slots:    prompts.Slots{"Request": request, "Knowledge": knowledge},
		schema:   structureSchema,
	}, mockStructure(), func(s *models.ProjectStructure) error {
		files := s.Files[:0]
		for _, f := range s.Files {
			f.Path = strings.TrimSpace(f.Path)
			if f.Path != "" {
				files = append(files, f)
			}
		}
		s.Files = files
		if len(s.Files) == 0 {
			return errors.New("结构中没有文件")
		}
		if strings.TrimSpace(s.ProjectName) == "" {
			s.ProjectName = "generated-project"
		}
		return nil
	})
}

// GenerateFileContent 生成单个文件内容
func (g *Gateway) GenerateFileContent(ctx context.Context, req FileRequest) Result[string] {
	return generateText(ctx, g, call{
		op:       "file",
		template: prompts.File,
		slots: prompts.Slots{
			"Path":      req.Path,
			"Purpose":   req.Purpose,
			"Request":   req.Request,
			"Knowledge": req.Knowledge,
			"Context":   req.Context,
		},
		webSearch: true,
	}, mockFileContent(req.Path))
}

// SelfImprove 按原始目标重写文件；占位结果为原内容
func (g *Gateway) SelfImprove(ctx context.Context, path, content, goal string) Result[string] {
	placeholder := content
	if strings.TrimSpace(placeholder) == "" {
		placeholder = mockFileContent(path)
	}
	return generateText(ctx, g, call{
		op:       "improve",
		template: prompts.Improve,
		slots:    prompts.Slots{"Goal": goal, "Path": path, "Content": content},
	}, placeholder)
}

// Autocomplete 从光标位置续写代码
func (g *Gateway) Autocomplete(ctx context.Context, path, prefix string) Result[string] {
	return generateText(ctx, g, call{
		op:       "autocomplete",
		template: prompts.Autocomplete,
		slots:    prompts.Slots{"Path": path, "Prefix": prefix},
	}, mockCompletion(path))
}

// GenerateTests 为单个文件生成测试用例描述
func (g *Gateway) GenerateTests(ctx context.Context, path, content string) Result[[]models.TestCase] {
	type payload struct {
		Tests []models.TestCase `json:"tests"`
	}
	res := generateJSON(ctx, g, call{
		op:       "tests",
		template: prompts.Tests,
		slots:    prompts.Slots{"Path": path, "Content": content},
		schema:   testsSchema,
	}, payload{Tests: mockTests(path)}, func(p *payload) error {
		if len(p.Tests) == 0 {
			return errors.New("没有测试用例")
		}
		for i := range p.Tests {
			p.Tests[i] = p.Tests[i].Normalize()
		}
		return nil
	})
	return Result[[]models.TestCase]{Status: res.Status, Data: res.Data.Tests, Sources: res.Sources, Err: res.Err}
}

// RunAudit 对所有文件拼接后的内容做安全审计
func (g *Gateway) RunAudit(ctx context.Context, name string, files []models.GeneratedFile) Result[models.ProjectAudit] {
	return generateJSON(ctx, g, call{
		op:       "audit",
		template: prompts.Audit,
		slots:    prompts.Slots{"Name": name, "Bundle": models.Bundle(files)},
		schema:   auditSchema,
	}, mockAudit(), func(a *models.ProjectAudit) error {
		*a = a.Normalize()
		return nil
	})
}

// SynthesizeComponent 生成独立的交互式 HTML 组件
func (g *Gateway) SynthesizeComponent(ctx context.Context, request string) Result[models.ComponentArtifact] {
	return generateJSON(ctx, g, call{
		op:       "component",
		template: prompts.Component,
		slots:    prompts.Slots{"Request": request},
		schema:   componentSchema,
	}, mockComponent(request), func(c *models.ComponentArtifact) error {
		if strings.TrimSpace(c.HTML) == "" {
			return errors.New("组件 HTML 为空")
		}
		return nil
	})
}

// EvolveSystem 提出系统下一版本的演进建议
func (g *Gateway) EvolveSystem(ctx context.Context, version, capabilities string) Result[models.EvolutionPlan] {
	return generateJSON(ctx, g, call{
		op:       "evolve",
		template: prompts.Evolve,
		slots:    prompts.Slots{"Version": version, "Capabilities": capabilities},
		schema:   evolveSchema,
	}, mockEvolution(version), func(p *models.EvolutionPlan) error {
		if len(p.Improvements) == 0 {
			return errors.New("没有演进建议")
		}
		if p.Version == "" {
			p.Version = version
		}
		return nil
	})
}

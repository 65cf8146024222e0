package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"evocoder/internal/domain/models"
	"evocoder/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Activity 当前在执行的工作；同一时刻最多一个
type Activity string

const (
	ActivityIdle        Activity = "idle"
	ActivityResearching Activity = "researching"
	ActivityBuilding    Activity = "building"
	ActivityAuditing    Activity = "auditing"
	ActivityTesting     Activity = "testing"
)

var (
	// ErrBusy 已有工作在执行
	ErrBusy = errors.New("已有任务在执行")
	// ErrNoProject 尚未创建项目
	ErrNoProject = errors.New("当前没有项目")
	// ErrNotReady 项目还没有可用的文件
	ErrNotReady = errors.New("项目还没有生成文件")
	// ErrEmptyPrompt 需求为空
	ErrEmptyPrompt = errors.New("需求描述不能为空")
	// ErrFileNotFound 项目中没有该文件
	ErrFileNotFound = errors.New("文件不存在")
)

const (
	progressKnowledge = 5
	progressPlanned   = 10
	shareGenerate     = 50
	shareImprove      = 30
	maxLogs           = 500

	systemCapabilities = "Structure planning, serial file generation, self-improvement, security audit, " +
		"test generation, code autocomplete, standalone component synthesis, repository research."
)

// Request 一次构建请求
type Request struct {
	Prompt      string `json:"prompt"`
	Research    bool   `json:"research"`
	SelfImprove bool   `json:"self_improve"`
}

// Snapshot 工作流状态的只读副本
type Snapshot struct {
	Activity Activity        `json:"activity"`
	Mode     string          `json:"mode"`
	Project  *models.Project `json:"project,omitempty"`
	Logs     []string        `json:"logs"`
}

// OrchestratorOptions 编排器选项
type OrchestratorOptions struct {
	Version string
}

// Orchestrator 工作流编排：串行执行各阶段，以整体替换的方式更新项目状态
type Orchestrator struct {
	gateway ModelGateway
	bus     *Bus
	version string

	mu       sync.Mutex
	activity Activity
	project  *models.Project
	logs     []string

	wg    sync.WaitGroup
	now   func() time.Time
	newID func() string
}

// NewOrchestrator 创建编排器；bus 为空时创建一个新的
func NewOrchestrator(gateway ModelGateway, bus *Bus, opts OrchestratorOptions) *Orchestrator {
	if bus == nil {
		bus = NewBus()
	}
	if opts.Version == "" {
		opts.Version = "1.2"
	}
	return &Orchestrator{
		gateway:  gateway,
		bus:      bus,
		version:  opts.Version,
		activity: ActivityIdle,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Bus 返回事件总线
func (o *Orchestrator) Bus() *Bus { return o.bus }

// Snapshot 返回当前状态副本
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		Activity: o.activity,
		Mode:     o.gateway.Mode().String(),
		Project:  o.project.Clone(),
		Logs:     append([]string(nil), o.logs...),
	}
}

// Project 返回当前项目副本
func (o *Orchestrator) Project() (*models.Project, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.project == nil {
		return nil, ErrNoProject
	}
	return o.project.Clone(), nil
}

// Logs 返回日志副本
func (o *Orchestrator) Logs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.logs...)
}

// Start 同步执行一次完整构建
func (o *Orchestrator) Start(ctx context.Context, req Request) (*models.Project, error) {
	if err := o.begin(req); err != nil {
		return nil, err
	}
	defer o.release()
	o.build(ctx, req)
	return o.Project()
}

// StartAsync 校验并占用执行槽后在后台构建，返回初始项目；调用方的取消不会中断构建
func (o *Orchestrator) StartAsync(ctx context.Context, req Request) (*models.Project, error) {
	if err := o.begin(req); err != nil {
		return nil, err
	}
	project, _ := o.Project()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.release()
		o.build(context.WithoutCancel(ctx), req)
	}()
	return project, nil
}

// Wait 等待后台工作结束
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// begin 校验请求、占用执行槽并替换当前项目
func (o *Orchestrator) begin(req Request) error {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return ErrEmptyPrompt
	}

	activity := ActivityBuilding
	if req.Research {
		activity = ActivityResearching
	}
	if err := o.claim(activity); err != nil {
		return err
	}

	now := o.now()
	project := &models.Project{
		ID:          o.newID(),
		Name:        "untitled",
		Description: prompt,
		Files:       []models.GeneratedFile{},
		Status:      models.StatusIdle,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	o.mu.Lock()
	o.project = project
	o.logs = nil
	o.mu.Unlock()
	o.publish(Event{Type: EventProject, Project: project.Clone()})
	return nil
}

func (o *Orchestrator) claim(activity Activity) error {
	o.mu.Lock()
	if o.activity != ActivityIdle {
		current := o.activity
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrBusy, current)
	}
	o.activity = activity
	o.mu.Unlock()
	o.publish(Event{Type: EventActivity, Activity: activity})
	return nil
}

func (o *Orchestrator) setActivity(activity Activity) {
	o.mu.Lock()
	o.activity = activity
	o.mu.Unlock()
	o.publish(Event{Type: EventActivity, Activity: activity})
}

func (o *Orchestrator) release() {
	o.setActivity(ActivityIdle)
}

// build 执行所有阶段；任何错误或 panic 都把项目置为 error，不重试
func (o *Orchestrator) build(ctx context.Context, req Request) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.fail(fmt.Errorf("panic: %v", r))
		}
	}()

	if err := o.runPhases(ctx, req); err != nil {
		o.fail(err)
		return
	}
	o.projectLogger().Info("项目构建完成", zap.Duration("elapsed", logger.Since(start)))
}

func (o *Orchestrator) runPhases(ctx context.Context, req Request) error {
	prompt := strings.TrimSpace(req.Prompt)
	o.mutate(func(p *models.Project) { p.Status = models.StatusGenerating })

	var knowledge string
	if req.Research {
		o.log("Collecting technical knowledge...")
		res := o.gateway.CollectKnowledge(ctx, prompt)
		if res.Failed() {
			return fmt.Errorf("知识收集失败: %w", res.Err)
		}
		k := res.Data
		knowledge = k.Digest()
		o.mutate(func(p *models.Project) {
			p.Knowledge = &k
			p.Sources = models.MergeSources(p.Sources, res.Sources...)
			p.Progress = progressKnowledge
		})
		o.logResult("Knowledge collected", res.Status, res.Err)
		o.setActivity(ActivityBuilding)
	}

	o.log("Planning project structure...")
	plan := o.gateway.PlanStructure(ctx, prompt, knowledge)
	if plan.Failed() {
		return fmt.Errorf("结构规划失败: %w", plan.Err)
	}
	structure := plan.Data
	if len(structure.Files) == 0 {
		structure = mockStructure()
	}
	o.mutate(func(p *models.Project) {
		p.Name = structure.ProjectName
		p.Sources = models.MergeSources(p.Sources, plan.Sources...)
		p.Progress = progressPlanned
	})
	o.logResult(fmt.Sprintf("Structure planned: %d files", len(structure.Files)), plan.Status, plan.Err)

	paths := make([]string, 0, len(structure.Files))
	for _, f := range structure.Files {
		paths = append(paths, f.Path)
	}
	fileContext := strings.Join(paths, ", ")

	n := float64(len(structure.Files))
	for i, spec := range structure.Files {
		o.log("Generating " + spec.Path + "...")
		res := o.gateway.GenerateFileContent(ctx, FileRequest{
			Request:   prompt,
			Path:      spec.Path,
			Purpose:   spec.Purpose,
			Knowledge: knowledge,
			Context:   fileContext,
		})
		if res.Failed() {
			return fmt.Errorf("生成 %s 失败: %w", spec.Path, res.Err)
		}
		file := models.NewGeneratedFile(spec.Path, res.Data)
		progress := progressPlanned + float64(i+1)/n*shareGenerate
		o.mutate(func(p *models.Project) {
			p.Files = append(p.Files, file)
			p.Sources = models.MergeSources(p.Sources, res.Sources...)
			p.Progress = progress
		})
		o.logResult("Generated "+spec.Path, res.Status, res.Err)
	}

	if req.SelfImprove {
		o.mutate(func(p *models.Project) { p.Status = models.StatusOptimizing })
		current, _ := o.Project()
		for i, f := range current.Files {
			o.log("Optimizing " + f.Path + "...")
			res := o.gateway.SelfImprove(ctx, f.Path, f.Content, prompt)
			if res.Failed() {
				return fmt.Errorf("优化 %s 失败: %w", f.Path, res.Err)
			}
			progress := progressPlanned + shareGenerate + float64(i+1)/n*shareImprove
			idx, content := i, res.Data
			o.mutate(func(p *models.Project) {
				p.Files[idx].Content = content
				p.Progress = progress
			})
			o.logResult("Optimized "+f.Path, res.Status, res.Err)
		}
	} else {
		o.mutate(func(p *models.Project) { p.Status = models.StatusReviewing })
	}

	o.mutate(func(p *models.Project) {
		p.Status = models.StatusCompleted
		p.Progress = 100
	})
	o.log("Project completed.")
	return nil
}

// projectLogger 带当前项目 ID 的 logger
func (o *Orchestrator) projectLogger() *zap.Logger {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := ""
	if o.project != nil {
		id = o.project.ID
	}
	return logger.WithFields(zap.String("project_id", id))
}

func (o *Orchestrator) fail(err error) {
	o.projectLogger().Error("项目构建失败", zap.Error(err))
	o.mutate(func(p *models.Project) { p.Status = models.StatusError })
	o.log("Error: " + err.Error())
}

// mutate 在副本上应用修改后整体替换当前项目；进度不回退，非法的状态迁移被忽略
func (o *Orchestrator) mutate(fn func(p *models.Project)) {
	o.mu.Lock()
	if o.project == nil {
		o.mu.Unlock()
		return
	}
	prev := o.project
	next := prev.Clone()
	fn(next)

	if next.Status != prev.Status && !prev.Status.CanTransition(next.Status) {
		logger.Warn("忽略非法的状态迁移",
			zap.String("from", string(prev.Status)),
			zap.String("to", string(next.Status)))
		next.Status = prev.Status
	}
	next.Progress = clampProgress(prev.Progress, next.Progress, next.Status)
	next.UpdatedAt = o.now()
	o.project = next
	snapshot := next.Clone()
	o.mu.Unlock()

	o.publish(Event{Type: EventProject, Project: snapshot})
}

// clampProgress 进度保持在 [prev, 100] 之间，只有 completed 才能到 100
func clampProgress(prev, next float64, status models.ProjectStatus) float64 {
	limit := 100.0
	if status != models.StatusCompleted {
		limit = 99
	}
	if next > limit {
		next = limit
	}
	if next < prev {
		next = prev
	}
	return next
}

func (o *Orchestrator) log(line string) {
	entry := fmt.Sprintf("[%s] %s", o.now().Format("15:04:05"), line)
	o.mu.Lock()
	o.logs = append(o.logs, entry)
	if len(o.logs) > maxLogs {
		o.logs = append([]string(nil), o.logs[len(o.logs)-maxLogs:]...)
	}
	o.mu.Unlock()

	logger.Info(line)
	o.publish(Event{Type: EventLog, Log: entry})
}

func (o *Orchestrator) logResult(line string, status ResultStatus, err error) {
	switch {
	case status == StatusFallback && err != nil:
		o.log(line + " (placeholder: " + err.Error() + ")")
	case status == StatusFallback:
		o.log(line + " (demo)")
	default:
		o.log(line)
	}
}

func (o *Orchestrator) publish(ev Event) {
	o.bus.Publish(ev)
}

// files 返回当前项目；没有项目或没有文件时返回对应错误
func (o *Orchestrator) files() (*models.Project, error) {
	project, err := o.Project()
	if err != nil {
		return nil, err
	}
	if len(project.Files) == 0 {
		return nil, ErrNotReady
	}
	return project, nil
}

// RunAudit 审计当前所有文件，覆盖上一次的结果
func (o *Orchestrator) RunAudit(ctx context.Context) (*models.ProjectAudit, error) {
	if err := o.claim(ActivityAuditing); err != nil {
		return nil, err
	}
	defer o.release()

	project, err := o.files()
	if err != nil {
		return nil, err
	}
	o.log("Running security audit...")
	res := o.gateway.RunAudit(ctx, project.Name, project.Files)
	if res.Failed() {
		o.log("Audit failed: " + res.Reason())
		return nil, res.Err
	}
	audit := res.Data
	o.mutate(func(p *models.Project) { p.Audit = &audit })
	o.logResult(fmt.Sprintf("Audit finished: score %d, %d issues", audit.Score, len(audit.Issues)), res.Status, res.Err)
	return &audit, nil
}

// RunTests 为单个文件生成测试，覆盖上一次的结果
func (o *Orchestrator) RunTests(ctx context.Context, path string) ([]models.TestCase, error) {
	if err := o.claim(ActivityTesting); err != nil {
		return nil, err
	}
	defer o.release()

	project, err := o.files()
	if err != nil {
		return nil, err
	}
	idx := project.FileIndex(path)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	o.log("Generating tests for " + path + "...")
	res := o.gateway.GenerateTests(ctx, path, project.Files[idx].Content)
	if res.Failed() {
		o.log("Test generation failed: " + res.Reason())
		return nil, res.Err
	}
	tests := append([]models.TestCase(nil), res.Data...)
	o.mutate(func(p *models.Project) { p.Tests = tests })
	o.logResult(fmt.Sprintf("Generated %d tests for %s", len(tests), path), res.Status, res.Err)
	return tests, nil
}

// SaveFile 覆盖文件内容，文件不存在时新建
func (o *Orchestrator) SaveFile(path, content string) (*models.GeneratedFile, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil, ErrFileNotFound
	}
	if err := o.claim(ActivityBuilding); err != nil {
		return nil, err
	}
	defer o.release()

	if _, err := o.Project(); err != nil {
		return nil, err
	}
	file := models.NewGeneratedFile(path, content)
	o.mutate(func(p *models.Project) {
		if idx := p.FileIndex(path); idx >= 0 {
			p.Files[idx] = file
			return
		}
		p.Files = append(p.Files, file)
	})
	o.log("Saved " + path)
	return &file, nil
}

// File 返回单个文件
func (o *Orchestrator) File(path string) (*models.GeneratedFile, error) {
	project, err := o.Project()
	if err != nil {
		return nil, err
	}
	idx := project.FileIndex(strings.Trim(path, "/"))
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	return &project.Files[idx], nil
}

// Autocomplete 从光标前的内容续写
func (o *Orchestrator) Autocomplete(ctx context.Context, path, prefix string) (Result[string], error) {
	if strings.TrimSpace(path) == "" {
		return Result[string]{}, ErrFileNotFound
	}
	res := o.gateway.Autocomplete(ctx, path, prefix)
	if res.Failed() {
		return res, res.Err
	}
	return res, nil
}

// SynthesizeComponent 生成独立组件，不改变项目状态
func (o *Orchestrator) SynthesizeComponent(ctx context.Context, request string) (Result[models.ComponentArtifact], error) {
	if strings.TrimSpace(request) == "" {
		return Result[models.ComponentArtifact]{}, ErrEmptyPrompt
	}
	o.log("Synthesizing component...")
	res := o.gateway.SynthesizeComponent(ctx, request)
	if res.Failed() {
		return res, res.Err
	}
	o.logResult("Component ready: "+res.Data.Title, res.Status, res.Err)
	return res, nil
}

// EvolveSystem 请求系统自身的演进建议
func (o *Orchestrator) EvolveSystem(ctx context.Context) (Result[models.EvolutionPlan], error) {
	o.log("Requesting evolution plan for v" + o.version + "...")
	res := o.gateway.EvolveSystem(ctx, o.version, systemCapabilities)
	if res.Failed() {
		return res, res.Err
	}
	o.logResult(fmt.Sprintf("Evolution plan %s: %d improvements", res.Data.Version, len(res.Data.Improvements)), res.Status, res.Err)
	return res, nil
}

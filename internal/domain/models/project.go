package models

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// ProjectStatus 项目生命周期状态
type ProjectStatus string

const (
	StatusIdle       ProjectStatus = "idle"
	StatusGenerating ProjectStatus = "generating"
	StatusReviewing  ProjectStatus = "reviewing"
	StatusOptimizing ProjectStatus = "optimizing"
	StatusCompleted  ProjectStatus = "completed"
	StatusError      ProjectStatus = "error"
)

// statusRank 状态只能向前推进，reviewing 和 optimizing 处于同一阶段
var statusRank = map[ProjectStatus]int{
	StatusIdle:       0,
	StatusGenerating: 1,
	StatusReviewing:  2,
	StatusOptimizing: 2,
	StatusCompleted:  3,
}

// CanTransition 判断状态迁移是否合法
func (s ProjectStatus) CanTransition(to ProjectStatus) bool {
	if s == StatusError {
		return false
	}
	if to == StatusError {
		return true
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	next, ok := statusRank[to]
	if !ok {
		return false
	}
	return next > from
}

// GeneratedFile 生成的单个文件
type GeneratedFile struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// NewGeneratedFile 创建文件并根据扩展名推断语言
func NewGeneratedFile(path, content string) GeneratedFile {
	return GeneratedFile{
		Path:     path,
		Content:  content,
		Language: LanguageFromPath(path),
	}
}

// LanguageFromPath 返回路径最后一个 "." 之后的小写文本，没有扩展名时返回 "text"
func LanguageFromPath(path string) string {
	base := path
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	i := strings.LastIndex(base, ".")
	if i < 0 || i == len(base)-1 {
		return "text"
	}
	return strings.ToLower(base[i+1:])
}

// FileSpec 结构规划阶段返回的文件描述
type FileSpec struct {
	Path    string `json:"path"`
	Purpose string `json:"purpose"`
}

// ProjectStructure 结构规划结果
type ProjectStructure struct {
	ProjectName string     `json:"projectName"`
	Files       []FileSpec `json:"files"`
}

// Project 一次生成任务对应的项目
type Project struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Files       []GeneratedFile     `json:"files"`
	Tests       []TestCase          `json:"tests,omitempty"`
	Audit       *ProjectAudit       `json:"audit,omitempty"`
	Knowledge   *TechnicalKnowledge `json:"knowledge,omitempty"`
	Sources     []GroundingSource   `json:"sources,omitempty"`
	Status      ProjectStatus       `json:"status"`
	Progress    float64             `json:"progress"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// Clone 深拷贝项目，用于状态替换
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Files = append([]GeneratedFile(nil), p.Files...)
	cp.Sources = append([]GroundingSource(nil), p.Sources...)
	if p.Tests != nil {
		cp.Tests = append([]TestCase(nil), p.Tests...)
	}
	if p.Audit != nil {
		audit := *p.Audit
		audit.Issues = append([]SecurityIssue(nil), p.Audit.Issues...)
		cp.Audit = &audit
	}
	if p.Knowledge != nil {
		k := *p.Knowledge
		k.Libraries = append([]Library(nil), p.Knowledge.Libraries...)
		k.KeyFacts = append([]string(nil), p.Knowledge.KeyFacts...)
		cp.Knowledge = &k
	}
	return &cp
}

// FileIndex 返回指定路径文件的下标，不存在时返回 -1
func (p *Project) FileIndex(path string) int {
	for i, f := range p.Files {
		if f.Path == path {
			return i
		}
	}
	return -1
}

// Paths 返回所有文件路径
func (p *Project) Paths() []string {
	paths := make([]string, 0, len(p.Files))
	for _, f := range p.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

// Bundle 将所有文件拼接为一段文本
func Bundle(files []GeneratedFile) string {
	var buf bytes.Buffer
	for _, f := range files {
		buf.WriteString(fmt.Sprintf("=== %s ===\n", f.Path))
		buf.WriteString(f.Content)
		if !strings.HasSuffix(f.Content, "\n") {
			buf.WriteString("\n")
		}
		buf.WriteString("\n")
	}
	return buf.String()
}
